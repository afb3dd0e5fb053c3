package memlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hylla/metricops/internal/adapters/storage/logtest"
	"github.com/hylla/metricops/internal/app"
	"github.com/hylla/metricops/internal/domain"
)

func TestLogContract(t *testing.T) {
	logtest.Run(t, func(*testing.T) app.RecordLog { return New() })
}

// TestConcurrentAppendsAssignUniqueSeq verifies the global counter under contention.
func TestConcurrentAppendsAssignUniqueSeq(t *testing.T) {
	log := New()
	ctx := context.Background()
	now := time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC)

	const writers = 32
	var wg sync.WaitGroup
	seqs := make(chan int64, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			event, err := domain.NewEvent("e", "w1", "u1", domain.EventCreated, nil, now.Add(time.Duration(i)))
			if err != nil {
				t.Errorf("NewEvent() error = %v", err)
				return
			}
			stored, err := log.AppendEvent(ctx, event)
			if err != nil {
				t.Errorf("AppendEvent() error = %v", err)
				return
			}
			seqs <- stored.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := map[int64]bool{}
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("duplicate seq %d", seq)
		}
		seen[seq] = true
	}
	if len(seen) != writers {
		t.Fatalf("expected %d seqs, got %d", writers, len(seen))
	}
}

// TestReturnedRowsAreCopies verifies callers cannot mutate stored rows.
func TestReturnedRowsAreCopies(t *testing.T) {
	log := New()
	ctx := context.Background()
	sla := 8
	item := logtest.NewItem(t, "w1", domain.BoardRequests, time.Date(2026, 2, 21, 10, 0, 0, 0, time.UTC))
	item.SLAHours = &sla
	stored, err := log.AppendWorkItem(ctx, item, 0)
	if err != nil {
		t.Fatalf("AppendWorkItem() error = %v", err)
	}
	*stored.SLAHours = 99
	sla = 42

	current, err := log.CurrentWorkItem(ctx, "w1")
	if err != nil {
		t.Fatalf("CurrentWorkItem() error = %v", err)
	}
	if *current.SLAHours != 8 {
		t.Fatalf("expected stored sla 8, got %d", *current.SLAHours)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().CurrentWorkItem(ctx, "w1"); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
