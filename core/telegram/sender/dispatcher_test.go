package sender

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"
)

func TestDispatcherKeepsPerKeyOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 4, QueueSize: 32})

	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 20; i++ {
		for _, key := range []int64{7, 8, -9} {
			key, i := key, i
			err := d.Enqueue(context.Background(), key, "send", func() error {
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for key, seq := range got {
		if len(seq) != 20 {
			t.Fatalf("key %d: got %d jobs", key, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("key %d out of order: %v", key, seq)
			}
		}
	}
	if d.SentCount() != 60 {
		t.Fatalf("sent = %d", d.SentCount())
	}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	calls := 0
	err := d.Enqueue(context.Background(), 1, "send", func() error {
		calls++
		if calls < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherCountsPermanentFailure(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	calls := 0
	_ = d.Enqueue(context.Background(), 1, "send", func() error {
		calls++
		return errors.New("Telegram: bad request (400)")
	})
	d.Close()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("errors = %d", d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	d.Close()
	if err := d.Enqueue(context.Background(), 1, "send", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), 1, "block", func() error {
		close(started)
		<-release
		return nil
	})
	<-started
	_ = d.Enqueue(context.Background(), 1, "queued", func() error { return nil })
	err := d.Enqueue(context.Background(), 1, "overflow", func() error { return nil })
	close(release)
	d.Close()
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New("post https://api.telegram.org/bot123:ABC-def_1/sendMessage: timeout")
	if got := sanitizeErrorMessage(err); got != "post https://api.telegram.org/bot<redacted>/sendMessage: timeout" {
		t.Fatalf("sanitized = %q", got)
	}
}

func TestDispatcherShardInRange(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3})
	defer d.Close()

	for _, key := range []int64{0, 1, -1, -1001234567890, math.MaxInt64, math.MinInt64} {
		if got := d.shard(key); got < 0 || got >= 3 {
			t.Fatalf("shard(%d) = %d, want [0,3)", key, got)
		}
		if d.shard(key) != d.shard(key) {
			t.Fatalf("shard(%d) not stable", key)
		}
	}
}
