package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunPreservesOrder(t *testing.T) {
	p := New(4)
	results, errs := p.Run(context.Background(), 20, func(_ context.Context, i int) (interface{}, error) {
		return i * i, nil
	})
	for i := 0; i < 20; i++ {
		if errs[i] != nil {
			t.Fatalf("task %d: unexpected error %v", i, errs[i])
		}
		if got := results[i].(int); got != i*i {
			t.Errorf("results[%d] = %d, want %d", i, got, i*i)
		}
	}
}

func TestRunCollectsPerTaskErrors(t *testing.T) {
	p := New(2)
	boom := errors.New("boom")
	_, errs := p.Run(context.Background(), 3, func(_ context.Context, i int) (interface{}, error) {
		if i == 1 {
			return nil, boom
		}
		return i, nil
	})
	if errs[1] != boom {
		t.Errorf("errs[1] = %v, want boom", errs[1])
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("expected errs[0] and errs[2] to be nil, got %v, %v", errs[0], errs[2])
	}
}

func TestNewFallsBackToDefault(t *testing.T) {
	p := New(0)
	if p.maxWorkers != DefaultMaxWorkers {
		t.Errorf("maxWorkers = %d, want %d", p.maxWorkers, DefaultMaxWorkers)
	}
}

func TestRunRespectsMaxWorkersBound(t *testing.T) {
	p := New(3)
	var current, maxSeen int64
	var mu sync.Mutex
	p.Run(context.Background(), 50, func(_ context.Context, i int) (interface{}, error) {
		n := atomic.AddInt64(&current, 1)
		mu.Lock()
		if n > maxSeen {
			maxSeen = n
		}
		mu.Unlock()
		atomic.AddInt64(&current, -1)
		return nil, nil
	})
	if maxSeen > 3 {
		t.Errorf("observed %d concurrent tasks, want <= 3", maxSeen)
	}
}
