package audit

import (
	"context"
	"testing"
	"time"
)

func TestNewRetentionWorker(t *testing.T) {
	worker := NewRetentionWorker(nil, 30, nil)

	if got := int(worker.retention.Hours()); got != 30*24 {
		t.Errorf("expected retention %d hours, got %d", 30*24, got)
	}
	if got := int(worker.interval.Hours()); got != 24 {
		t.Errorf("expected interval 24 hours, got %d", got)
	}
}

func TestRetentionWorker_DisabledReturns(t *testing.T) {
	done := make(chan struct{})
	go func() {
		NewRetentionWorker(newTestStore(t), 0, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("zero retention worker should return immediately")
	}
}

func TestRetentionWorker_SweepsOnStart(t *testing.T) {
	store := newTestStore(t)
	appendEvent(t, store, "alice", "assets", "success", time.Now().Add(-40*24*time.Hour))
	appendEvent(t, store, "alice", "assets", "success", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRetentionWorker(store, 30, nil).Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, _, total, err := store.List(ListFilter{}, 10, "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected old event to be swept, %d remain", total)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	<-done
}
