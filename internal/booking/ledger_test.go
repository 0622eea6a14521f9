package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
)

func TestSerializeAdmitsExactlyCapacity(t *testing.T) {
	const (
		capacity = 3
		callers  = 50
	)
	l := NewLedger()
	confirmed := 0 // guarded by the ledger
	var accepted, full atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Serialize(context.Background(), 42, func(context.Context) error {
				if err := Admit(capacity, confirmed); err != nil {
					return err
				}
				// widen the window a racing writer would need
				time.Sleep(time.Millisecond)
				confirmed++
				return nil
			})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, apperr.ErrSlotFull):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted.Load() != capacity {
		t.Fatalf("accepted = %d, want %d", accepted.Load(), capacity)
	}
	if full.Load() != callers-capacity {
		t.Fatalf("full = %d, want %d", full.Load(), callers-capacity)
	}
	if confirmed != capacity {
		t.Fatalf("confirmed = %d, want %d", confirmed, capacity)
	}
}

func TestSerializeDifferentSlotsRunInParallel(t *testing.T) {
	l := NewLedger()
	inside := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.Serialize(context.Background(), 1, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ran := false
	if err := l.Serialize(ctx, 2, func(context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("Serialize(slot 2) = %v while slot 1 is held", err)
	}
	close(release)
	if !ran {
		t.Fatal("fn for slot 2 did not run")
	}
}

func TestSerializeHonoursDeadline(t *testing.T) {
	l := NewLedger()
	inside := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Serialize(context.Background(), 9, func(context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := l.Serialize(ctx, 9, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Serialize() = %v, want DeadlineExceeded", err)
	}
	if called {
		t.Fatal("fn ran without holding the lock")
	}
	close(release)
	<-done

	l.mu.Lock()
	n := len(l.slots)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("ledger kept %d idle slot locks", n)
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct{ capacity, confirmed, want int }{
		{5, 0, 5},
		{5, 4, 1},
		{5, 5, 0},
		{5, 7, 0},
	}
	for _, tt := range tests {
		if got := Remaining(tt.capacity, tt.confirmed); got != tt.want {
			t.Errorf("Remaining(%d, %d) = %d, want %d", tt.capacity, tt.confirmed, got, tt.want)
		}
	}
	if err := Admit(1, 1); !errors.Is(err, apperr.ErrSlotFull) {
		t.Errorf("Admit(1, 1) = %v, want ErrSlotFull", err)
	}
	if err := Admit(2, 1); err != nil {
		t.Errorf("Admit(2, 1) = %v, want nil", err)
	}
}
