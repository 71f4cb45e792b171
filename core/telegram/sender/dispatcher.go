// Package sender runs outbound Telegram calls on a small worker pool so
// handlers never block on the network.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/netutil"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

const (
	defaultQueueSize   = 256
	defaultWorkers     = 4
	defaultBackoff     = 2 * time.Second
	defaultMaxDuration = 12 * time.Second
)

// Options tunes the dispatcher. Zero fields take defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps one job including every retry.
	MaxDuration time.Duration
}

// OptionsFromConfig maps the sender section onto Options.
func OptionsFromConfig(cfg coreconfig.SenderConfig) Options {
	return Options{
		QueueSize:    cfg.QueueSize,
		Workers:      cfg.Workers,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultBackoff
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = defaultMaxDuration
	}
	return o
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Sent    uint64
	Retried uint64
	Failed  uint64
	Queued  int
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued jobs with retry on transient errors.
type Dispatcher struct {
	opts Options
	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Uint64
	retried atomic.Uint64
	failed  atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run without blocking. run may be invoked more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Retried: d.retried.Load(),
		Failed:  d.failed.Load(),
		Queued:  len(d.jobs),
	}
}

// Close rejects new jobs, drains the queue and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := sendLogAttrs(j)
	logger.Debug(j.ctx, logger.CompSender, "send.start", attrs...)

	attempts, err := d.runWithRetry(ctx, j, attrs)
	elapsed := slog.Int("elapsed_ms", durationToMS(time.Since(start)))
	if err != nil {
		d.failed.Add(1)
		logger.Error(j.ctx, logger.CompSender, "send.fail", append(attrs,
			slog.String("error", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
			slog.Int("attempts", attempts),
			elapsed,
		)...)
		return
	}

	d.sent.Add(1)
	if attempts > 1 {
		logger.Info(j.ctx, logger.CompSender, "send.retry.success", append(attrs, slog.Int("attempt", attempts), elapsed)...)
		return
	}
	logger.Debug(j.ctx, logger.CompSender, "send.success", append(attrs, elapsed)...)
}

// runWithRetry returns the number of attempts made and the final error.
func (d *Dispatcher) runWithRetry(ctx context.Context, j job, attrs []slog.Attr) (int, error) {
	limit := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := j.run()
		if err == nil {
			return attempt, nil
		}
		if attempt == limit || !netutil.ShouldRetry(err) {
			return attempt, err
		}

		delay := netutil.RetryDelay(err, d.opts.RetryBackoff*time.Duration(attempt))
		logger.Debug(j.ctx, logger.CompSender, "send.retry.backoff", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", classifyError(err)),
		)...)
		d.retried.Add(1)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
}

func sendLogAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
