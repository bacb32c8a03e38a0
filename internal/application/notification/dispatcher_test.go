package notification

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/go-shop-api/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, msg string) error {
	return m.Called(ctx, to, msg).Error(0)
}

type panicMailer struct{}

func (panicMailer) SendEmail(string, string, string) error { panic("smtp exploded") }

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, nil)), buf
}

func closeNow(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

var emailTask = Task{Channel: ChannelEmail, SubjectID: "42", To: "alice@example.com", Subject: "Confirm", Body: "link"}

// --- tests ---

func TestDispatcher_SendsEmail(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", "alice@example.com", "Confirm", "link").Return(nil).Once()
	m := metrics.New(prometheus.NewRegistry())

	d := NewDispatcher(Transports{Mailer: ml}, WithWorkers(2), WithMetrics(m))
	d.Start()
	d.Submit(emailTask)
	closeNow(t, d)

	ml.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "sent")))
}

func TestDispatcher_SendsSMS(t *testing.T) {
	sms := &mockSMSSender{}
	sms.On("SendSMS", mock.Anything, "+15550100", "code").Return(nil).Once()

	d := NewDispatcher(Transports{SMS: sms})
	d.Start()
	d.Submit(Task{Channel: ChannelSMS, SubjectID: "42", To: "+15550100", Body: "code"})
	closeNow(t, d)

	sms.AssertExpectations(t)
}

func TestDispatcher_FailureLoggedNotRetried(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("relay denied"))
	logger, buf := testLogger()
	m := metrics.New(prometheus.NewRegistry())

	d := NewDispatcher(Transports{Mailer: ml}, WithLogger(logger), WithMetrics(m))
	d.Start()
	d.Submit(emailTask)
	closeNow(t, d)

	ml.AssertNumberOfCalls(t, "SendEmail", 1)
	assert.Contains(t, buf.String(), "notification delivery failed")
	assert.Contains(t, buf.String(), "relay denied")
	assert.Contains(t, buf.String(), `"subject_id":"42"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "failed")))
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	logger, buf := testLogger()
	m := metrics.New(prometheus.NewRegistry())

	// Not started yet, so nothing drains the single slot.
	d := NewDispatcher(Transports{Mailer: ml}, WithQueueSize(1), WithLogger(logger), WithMetrics(m))
	d.Submit(emailTask)
	d.Submit(emailTask)

	assert.Contains(t, buf.String(), "notification queue full")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("email", "dropped")))

	closeNow(t, d)
	ml.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	logger, buf := testLogger()

	d := NewDispatcher(Transports{Mailer: panicMailer{}}, WithWorkers(1), WithLogger(logger))
	d.Start()
	d.Submit(emailTask)
	closeNow(t, d)

	assert.Contains(t, buf.String(), "transport panic")
	assert.Contains(t, buf.String(), "smtp exploded")
}

func TestDispatcher_MissingTransportDropped(t *testing.T) {
	logger, buf := testLogger()
	d := NewDispatcher(Transports{}, WithLogger(logger))
	d.Start()
	d.Submit(Task{Channel: ChannelSMS, SubjectID: "42", To: "+15550100"})
	closeNow(t, d)

	assert.Contains(t, buf.String(), "no transport configured")
}

func TestDispatcher_SubmitAfterCloseDropped(t *testing.T) {
	ml := &mockMailer{}
	logger, buf := testLogger()
	d := NewDispatcher(Transports{Mailer: ml}, WithLogger(logger))
	d.Start()
	closeNow(t, d)

	d.Submit(emailTask)
	assert.Contains(t, buf.String(), "dispatcher closed")
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	release := make(chan struct{})
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return(nil)

	d := NewDispatcher(Transports{Mailer: ml}, WithWorkers(1))
	d.Start()
	d.Submit(emailTask)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestDispatcher_SubmitDoesNotBlockOnSlowTransport(t *testing.T) {
	release := make(chan struct{})
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return(nil)

	d := NewDispatcher(Transports{Mailer: ml}, WithWorkers(1), WithQueueSize(1))
	d.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Submit(emailTask)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked")
	}
	close(release)
	closeNow(t, d)
}
