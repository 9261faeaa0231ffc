package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, n *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for n.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("job ran %d times, want at least %d", n.Load(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEveryRunsUntilStop(t *testing.T) {
	s := New()
	var n atomic.Int32
	s.Every(5*time.Millisecond, func(ctx context.Context) { n.Add(1) })

	waitFor(t, &n, 2)
	s.Stop()

	// Stop 返回后循环已退出，计数不再变化
	final := n.Load()
	time.Sleep(30 * time.Millisecond)
	if got := n.Load(); got != final {
		t.Fatalf("job ran after Stop: %d -> %d", final, got)
	}
}

func TestCronRunsRegisteredJob(t *testing.T) {
	cr := NewCron(nil)
	var n atomic.Int32
	if err := cr.Add("@every 10ms", func(ctx context.Context) { n.Add(1) }); err != nil {
		t.Fatalf("add job: %v", err)
	}
	cr.Start()
	waitFor(t, &n, 1)
	cr.Stop()
}

func TestCronRejectsBadExpression(t *testing.T) {
	cr := NewCron(nil)
	if err := cr.Add("not a cron expr", func(ctx context.Context) {}); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}
