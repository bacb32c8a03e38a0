package confirmation

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-shop-api/internal/application/notification"
	"github.com/go-shop-api/internal/domain"
	"github.com/go-shop-api/internal/infrastructure/metrics"
	"github.com/go-shop-api/internal/pkg/token"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KeyStore holds at most one live key per (subject, purpose).
type KeyStore interface {
	Save(ctx context.Context, subjectID string, purpose domain.Purpose, value string) error
	Get(ctx context.Context, subjectID string, purpose domain.Purpose) (string, bool, error)
	Delete(ctx context.Context, subjectID string, purpose domain.Purpose) error
	// Fail records a wrong guess against the live key and returns the running
	// count. Saving a new key resets it; with no live key it returns 0.
	Fail(ctx context.Context, subjectID string, purpose domain.Purpose) (int, error)
}

type SubjectRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	MarkConfirmed(ctx context.Context, userID string, purpose domain.Purpose) error
}

type Dispatcher interface {
	Submit(t notification.Task)
}

type Service interface {
	// Issue stores a fresh key for the subject, replacing any previous one,
	// and queues its delivery. Delivery failures never reach the caller.
	Issue(ctx context.Context, purpose domain.Purpose, subjectID string) error
	// Verify redeems a key. Any mismatch, expiry or absence is ErrInvalidToken.
	Verify(ctx context.Context, purpose domain.Purpose, subjectID, supplied string) error
}

// ServiceDeps holds all dependencies for the confirmation service.
type ServiceDeps struct {
	Keys       KeyStore
	Subjects   SubjectRepository
	Dispatcher Dispatcher
	SiteURL    string
	// TTL is quoted in the delivered message. Defaults to domain.ConfirmationTTL.
	TTL time.Duration
	// MaxAttempts wrong keys burn the live one. Defaults to domain.MaxVerifyAttempts.
	MaxAttempts int
	Metrics     *metrics.Metrics
	Tracer      trace.Tracer
	// NewToken defaults to a UUID for email and a 6-digit code for phone.
	NewToken func(domain.Purpose) (string, error)
}

type service struct {
	keys        KeyStore
	subjects    SubjectRepository
	dispatcher  Dispatcher
	siteURL     string
	ttl         time.Duration
	maxAttempts int
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	newToken    func(domain.Purpose) (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		keys:        deps.Keys,
		subjects:    deps.Subjects,
		dispatcher:  deps.Dispatcher,
		siteURL:     deps.SiteURL,
		ttl:         deps.TTL,
		maxAttempts: deps.MaxAttempts,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		newToken:    deps.NewToken,
	}
	if s.ttl <= 0 {
		s.ttl = domain.ConfirmationTTL
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = domain.MaxVerifyAttempts
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("github.com/go-shop-api/confirmation")
	}
	if s.newToken == nil {
		s.newToken = generateToken
	}
	return s
}

func (s *service) Issue(ctx context.Context, purpose domain.Purpose, subjectID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "confirmation.Issue", trace.WithAttributes(
		attribute.String("purpose", string(purpose)),
		attribute.String("subject_id", subjectID),
	))
	defer func() { endSpan(span, err) }()

	u, err := s.resolve(ctx, subjectID)
	if err != nil {
		return err
	}

	var to string
	switch purpose {
	case domain.PurposeEmail:
		to = u.Email
	case domain.PurposePhone:
		if u.Phone == nil || *u.Phone == "" {
			return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
		}
		to = *u.Phone
	default:
		return fmt.Errorf("unknown purpose %q: %w", purpose, domain.ErrBadRequest)
	}

	tok, err := s.newToken(purpose)
	if err != nil {
		return fmt.Errorf("generate %s key: %w", purpose, err)
	}
	if err := s.keys.Save(ctx, u.UserID, purpose, tok); err != nil {
		return fmt.Errorf("store %s key: %w", purpose, err)
	}

	s.dispatcher.Submit(render(purpose, s.siteURL, s.ttl, u.UserID, to, tok))
	s.metrics.Issued(string(purpose))
	slog.Info("confirmation key issued", "user_id", u.UserID, "purpose", purpose)
	return nil
}

func (s *service) Verify(ctx context.Context, purpose domain.Purpose, subjectID, supplied string) (err error) {
	ctx, span := s.tracer.Start(ctx, "confirmation.Verify", trace.WithAttributes(
		attribute.String("purpose", string(purpose)),
		attribute.String("subject_id", subjectID),
	))
	defer func() { endSpan(span, err) }()

	u, err := s.resolve(ctx, subjectID)
	if err != nil {
		return err
	}

	stored, found, err := s.keys.Get(ctx, u.UserID, purpose)
	if err != nil {
		slog.Warn("key store lookup failed, treating key as absent", "user_id", u.UserID, "purpose", purpose, "err", err)
		found = false
	}
	if !found {
		s.metrics.Verified(string(purpose), "invalid")
		return domain.ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) != 1 {
		s.metrics.Verified(string(purpose), "invalid")
		s.recordFailure(ctx, u.UserID, purpose)
		return domain.ErrInvalidToken
	}

	if err := s.subjects.MarkConfirmed(ctx, u.UserID, purpose); err != nil {
		s.metrics.Verified(string(purpose), "error")
		return fmt.Errorf("mark %s confirmed: %w", purpose, err)
	}
	if err := s.keys.Delete(ctx, u.UserID, purpose); err != nil {
		slog.Warn("failed to delete redeemed key", "user_id", u.UserID, "purpose", purpose, "err", err)
	}
	s.metrics.Verified(string(purpose), "confirmed")
	slog.Info("confirmation key redeemed", "user_id", u.UserID, "purpose", purpose)
	return nil
}

// recordFailure counts a wrong guess and discards the key once the
// subject has used up its attempts.
func (s *service) recordFailure(ctx context.Context, userID string, purpose domain.Purpose) {
	n, err := s.keys.Fail(ctx, userID, purpose)
	if err != nil {
		slog.Warn("failed to record wrong key", "user_id", userID, "purpose", purpose, "err", err)
		return
	}
	if n < s.maxAttempts {
		return
	}
	if err := s.keys.Delete(ctx, userID, purpose); err != nil {
		slog.Warn("failed to discard key after too many attempts", "user_id", userID, "purpose", purpose, "err", err)
		return
	}
	slog.Warn("confirmation key discarded after too many attempts", "user_id", userID, "purpose", purpose, "attempts", n)
}

func (s *service) resolve(ctx context.Context, subjectID string) (*domain.User, error) {
	u, err := s.subjects.Get(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("load user %s: %w", subjectID, err)
	}
	return u, nil
}

func generateToken(purpose domain.Purpose) (string, error) {
	if purpose == domain.PurposePhone {
		return token.NewNumericCode(6)
	}
	return token.NewLinkKey(), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, domain.ErrInvalidToken) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
