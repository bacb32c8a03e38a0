package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-shop-api/internal/infrastructure/metrics"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Task is one outbound message. It is attempted once.
type Task struct {
	Channel   Channel
	SubjectID string
	To        string
	Subject   string // email only
	Body      string
}

// Mailer is satisfied by smtp.Mailer.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMSSender is satisfied by sns.SMSSender.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Transports holds the per-channel senders. A nil entry disables that channel.
type Transports struct {
	Mailer Mailer
	SMS    SMSSender
}

var errNoTransport = errors.New("no transport configured")

// Dispatcher delivers tasks in the background on a fixed worker pool.
// Submit never blocks the caller; a full queue drops the task.
type Dispatcher struct {
	transports  Transports
	workers     int
	queueSize   int
	sendTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	queue     chan Task
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	wg        sync.WaitGroup
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithSendTimeout bounds each SMS send through its context. Mailer has no
// context; the SMTP transport enforces its own deadline (SMTP_TIMEOUT).
func WithSendTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.sendTimeout = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(transports Transports, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transports:  transports,
		workers:     4,
		queueSize:   256,
		sendTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan Task, d.queueSize)
	return d
}

// Start launches the worker pool. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.wg.Add(d.workers)
		for i := 0; i < d.workers; i++ {
			go d.work()
		}
		d.logger.Info("notification dispatcher started", "workers", d.workers, "queue_size", d.queueSize)
	})
}

// Submit enqueues t and returns immediately.
func (d *Dispatcher) Submit(t Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("notification dropped, dispatcher closed",
			"channel", t.Channel, "subject_id", t.SubjectID)
		d.metrics.Notification(string(t.Channel), "dropped", 0)
		return
	}
	select {
	case d.queue <- t:
		d.metrics.QueueDepth(len(d.queue))
	default:
		d.logger.Warn("notification queue full, task dropped",
			"channel", t.Channel, "subject_id", t.SubjectID)
		d.metrics.Notification(string(t.Channel), "dropped", 0)
	}
}

// Close stops intake and waits for queued tasks to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	// Tasks submitted before Start still get drained.
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		d.metrics.QueueDepth(len(d.queue))
		d.deliver(t)
	}
}

func (d *Dispatcher) deliver(t Task) {
	start := time.Now()
	err := d.send(t)
	took := time.Since(start)
	if err != nil {
		d.logger.Error("notification delivery failed",
			"channel", t.Channel,
			"subject_id", t.SubjectID,
			"err", err,
		)
		d.metrics.Notification(string(t.Channel), "failed", took)
		return
	}
	d.metrics.Notification(string(t.Channel), "sent", took)
}

func (d *Dispatcher) send(t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	switch t.Channel {
	case ChannelEmail:
		if d.transports.Mailer == nil {
			return fmt.Errorf("%s: %w", t.Channel, errNoTransport)
		}
		return d.transports.Mailer.SendEmail(t.To, t.Subject, t.Body)
	case ChannelSMS:
		if d.transports.SMS == nil {
			return fmt.Errorf("%s: %w", t.Channel, errNoTransport)
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()
		return d.transports.SMS.SendSMS(ctx, t.To, t.Body)
	default:
		return fmt.Errorf("unknown channel %q: %w", t.Channel, errNoTransport)
	}
}
