package flight_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/quietridge/copilot-core/flight"
)

func TestAcquireDeduplicatesConcurrentCallers(t *testing.T) {
	var g flight.Group[int]
	var calls int32

	var wg sync.WaitGroup
	results := make([]int, 20)
	start := make(chan struct{})

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			v, err, _ := g.Acquire("k", func() (int, error) {
				atomic.AddInt32(&calls, 1)
				return 42, nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}
	close(start)
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one producer invocation, got %d", calls)
	}
	for _, v := range results {
		if v != 42 {
			t.Fatalf("expected every caller to observe the leader's result, got %d", v)
		}
	}
}

func TestAcquireStartsFreshAttemptAfterSettle(t *testing.T) {
	var g flight.Group[int]

	_, err1, _ := g.Acquire("k", func() (int, error) { return 0, errors.New("boom") })
	if err1 == nil {
		t.Fatalf("expected first call to fail")
	}

	v, err2, _ := g.Acquire("k", func() (int, error) { return 7, nil })
	if err2 != nil || v != 7 {
		t.Fatalf("expected a fresh attempt after the first settled, got v=%d err=%v", v, err2)
	}
}
