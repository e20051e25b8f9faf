// Package sender delivers outbound Telegram calls asynchronously.
// Jobs sharing a key (normally the chat id) run in FIFO order on one worker.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the per-worker buffer.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx    context.Context
	key    int64
	action string
	run    func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts   Options
	queues []chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
	sent   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules run on the worker owning key.
// The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, key int64, action string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	j := job{ctx: ctx, key: key, action: action, run: run}
	select {
	case d.queues[d.shard(key)] <- j:
		return nil
	default:
		d.errs.Add(1)
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(key int64) int {
	return int(uint64(key) % uint64(len(d.queues)))
}

// ErrorCount returns the number of failed or rejected jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// SentCount returns the number of jobs that completed successfully.
func (d *Dispatcher) SentCount() uint64 {
	return d.sent.Load()
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(queue <-chan job) {
	defer d.wg.Done()
	for j := range queue {
		d.handleJob(j)
	}
}

func (d *Dispatcher) handleJob(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Jobs outlive the update handler; only values are inherited.
	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = j.run()
		if lastErr == nil {
			d.sent.Add(1)
			attrs := sendLogAttrs(j)
			if attempt > 1 {
				attrs = append(attrs, slog.Int("attempts", attempt))
			}
			logger.Debug(ctx, logger.CompSender, "send.success",
				append(attrs, slog.Duration("duration", logger.Took(start)))...,
			)
			return
		}
		delay, retry := d.retryDelay(lastErr, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(ctx, logger.CompSender, "send.retry",
			append(sendLogAttrs(j),
				slog.Int("attempts", attempt),
				slog.Duration("backoff", delay),
				slog.String("cause", classifyError(lastErr)),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			attempts = attempt
		case <-timer.C:
			continue
		}
		break
	}

	d.errs.Add(1)
	logger.Error(ctx, logger.CompSender, "send.fail",
		append(sendLogAttrs(j),
			slog.String("status", "fail"),
			slog.String("err", sanitizeErrorMessage(lastErr)),
			slog.String("err_code", classifyError(lastErr)),
			slog.Int("attempts", attempts),
			slog.Duration("duration", logger.Took(start)),
		)...,
	)
}

// retryDelay honours Telegram flood control before falling back to linear backoff.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		wait := time.Duration(flood.RetryAfter) * time.Second
		if wait <= 0 {
			wait = d.opts.RetryBackoff
		}
		return wait, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func sendLogAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("handler", j.action)}
	if j.key != 0 {
		attrs = append(attrs, slog.Int64("chat_id", j.key))
	}
	return attrs
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
