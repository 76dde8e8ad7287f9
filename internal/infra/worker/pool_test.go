//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"exam-access/internal/infra/logging"
)

func TestPool_RunsAndDrains(t *testing.T) {
	p := NewPool(2, nil)
	p.Start(context.Background())

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	p.Stop()
	if got := ran.Load(); got != 8 {
		t.Fatalf("want 8 tasks run, got %d", got)
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("want ErrStopped after Stop, got %v", err)
	}
	p.Stop()
}

func TestPool_RejectsWhenSaturated(t *testing.T) {
	p := NewPool(1, nil)
	// not started: the queue holds workers*4 tasks
	noop := func(context.Context) error { return nil }
	for i := 0; i < 4; i++ {
		if err := p.Submit(noop); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	if err := p.Submit(noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got %v", err)
	}
	if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
		t.Errorf("want ErrNilTask, got %v", err)
	}
}

type chatRecorder struct {
	mu     sync.Mutex
	texts  []string
	traces []string
}

func (c *chatRecorder) NotifyAdmins(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	c.traces = append(c.traces, logging.TraceIDFrom(ctx))
	return errors.New("chat api down")
}

func TestAsyncNotifier_DeliversInBackground(t *testing.T) {
	p := NewPool(1, nil)
	p.Start(context.Background())
	rec := &chatRecorder{}
	n := NewAsyncNotifier(rec, p, nil)

	ctx, cancel := context.WithCancel(logging.WithTraceID(context.Background(), "trace-1"))
	if err := n.NotifyAdmins(ctx, "pool exhausted"); err != nil {
		t.Fatalf("expected the alert to be queued, got %v", err)
	}
	cancel()
	p.Stop()

	if len(rec.texts) != 1 || rec.texts[0] != "pool exhausted" {
		t.Fatalf("unexpected deliveries %q", rec.texts)
	}
	if rec.traces[0] != "trace-1" {
		t.Errorf("want trace id carried over, got %q", rec.traces[0])
	}

	if err := n.NotifyAdmins(context.Background(), "late"); !errors.Is(err, ErrStopped) {
		t.Errorf("want ErrStopped, got %v", err)
	}
}
