package session

import (
	"context"
	"errors"
	"testing"

	"github.com/go-shop-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}
func (m *mockSessionStore) DisableByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(userID, role, sessionID string) (string, error) {
	args := m.Called(userID, role, sessionID)
	return args.String(0), args.Error(1)
}

// --- builder ---

func newService(us *mockUserStore, ss *mockSessionStore, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{UserRepo: us, SessionRepo: ss, JWTProvider: jwt})
}

func userWithPassword(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{UserID: "42", Username: "alice", Role: domain.RoleUser, PasswordHash: string(hash), Enable: 1}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "correct-horse"), nil)
	ss := &mockSessionStore{}
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "42", domain.RoleUser, mock.AnythingOfType("string")).Return("bearer-token", nil)

	res, err := newService(us, ss, jwt).Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "correct-horse"})

	require.NoError(t, err)
	assert.Equal(t, "bearer-token", res.Bearer)
	assert.True(t, res.Session.Enable)
	assert.Equal(t, "42", res.Session.UserID)
	assert.Equal(t, "alice", res.Session.User.Username)
}

func TestLogin_UnknownUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	_, err := newService(us, nil, nil).Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "whatever1"})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogin_WrongPassword(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(userWithPassword(t, "correct-horse"), nil)
	ss := &mockSessionStore{}

	_, err := newService(us, ss, nil).Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "battery-staple"})

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestLogin_DisabledAccount(t *testing.T) {
	u := userWithPassword(t, "correct-horse")
	u.Enable = 0
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(u, nil)

	_, err := newService(us, nil, nil).Login(context.Background(), domain.LoginRequest{Username: "alice", Password: "correct-horse"})

	assert.ErrorIs(t, err, domain.ErrForbidden)
}

// --- RecreateToken ---

func TestRecreateToken_RevokesThenOpens(t *testing.T) {
	var order []string
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "42").Return(&domain.User{UserID: "42", Role: domain.RoleUser}, nil)
	ss := &mockSessionStore{}
	ss.On("DisableByUser", mock.Anything, "42").Run(func(mock.Arguments) { order = append(order, "revoke") }).Return(nil)
	ss.On("Put", mock.Anything, mock.Anything).Run(func(mock.Arguments) { order = append(order, "open") }).Return(nil)
	jwt := &mockJWTSigner{}
	jwt.On("Sign", "42", domain.RoleUser, mock.Anything).Return("new-bearer", nil)

	res, err := newService(us, ss, jwt).RecreateToken(context.Background(), "42")

	require.NoError(t, err)
	assert.Equal(t, "new-bearer", res.Bearer)
	assert.Equal(t, []string{"revoke", "open"}, order)
}

func TestRecreateToken_RevokeFailure(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "42").Return(&domain.User{UserID: "42"}, nil)
	ss := &mockSessionStore{}
	ss.On("DisableByUser", mock.Anything, "42").Return(errors.New("throttled"))

	_, err := newService(us, ss, nil).RecreateToken(context.Background(), "42")

	require.Error(t, err)
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- Current / IsActive / Logout ---

func TestCurrent_AttachesUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "42").Return(&domain.User{UserID: "42", Username: "alice"}, nil)
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", UserID: "42", Enable: true}, nil)

	sess, err := newService(us, ss, nil).Current(context.Background(), "s1")

	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestCurrent_Revoked(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newService(nil, ss, nil).Current(context.Background(), "s1")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIsActive(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Get", mock.Anything, "on").Return(&domain.Session{Enable: true}, nil)
	ss.On("Get", mock.Anything, "off").Return(&domain.Session{Enable: false}, nil)
	ss.On("Get", mock.Anything, "gone").Return(nil, domain.ErrNotFound)
	ss.On("Get", mock.Anything, "err").Return(nil, errors.New("throttled"))
	svc := newService(nil, ss, nil)
	ctx := context.Background()

	ok, err := svc.IsActive(ctx, "on")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsActive(ctx, "off")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsActive(ctx, "gone")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsActive(ctx, "err")
	assert.Error(t, err)
}

func TestLogout_DisablesSession(t *testing.T) {
	ss := &mockSessionStore{}
	ss.On("Disable", mock.Anything, "s1").Return(nil)

	require.NoError(t, newService(nil, ss, nil).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}
