package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func constant(v ...float32) func(context.Context) ([]float32, error) {
	return func(context.Context) ([]float32, error) { return v, nil }
}

func TestQueryCache_evictsLeastRecent(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(2)
	c.Resolve(ctx, "ayuno", constant(1))
	c.Resolve(ctx, "anestesia", constant(2))
	c.Resolve(ctx, "ayuno", constant(9)) // hit, refreshes recency
	c.Resolve(ctx, "alergias", constant(3))

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	got, _ := c.Resolve(ctx, "ayuno", constant(9))
	if got[0] != 1 {
		t.Errorf("ayuno should still be cached, got %v", got)
	}
	got, _ = c.Resolve(ctx, "anestesia", constant(7))
	if got[0] != 7 {
		t.Errorf("anestesia should have been evicted, got %v", got)
	}
}

func TestQueryCache_returnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(4)
	first, _ := c.Resolve(ctx, "q", constant(1, 2))
	first[0] = 100
	again, _ := c.Resolve(ctx, "q", constant(5, 5))
	if again[0] != 1 {
		t.Errorf("cached vector was mutated through a returned slice: %v", again)
	}
}

func TestQueryCache_errorsNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(4)
	boom := errors.New("provider down")
	if _, err := c.Resolve(ctx, "q", func(context.Context) ([]float32, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed embedding was cached")
	}
}

func TestQueryCache_disabled(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(0)
	var calls int
	embed := func(context.Context) ([]float32, error) { calls++; return []float32{1}, nil }
	c.Resolve(ctx, "q", embed)
	c.Resolve(ctx, "q", embed)
	if calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, len = %d", calls, c.Len())
	}
}

func TestQueryCache_concurrentMissesShareCall(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(4)
	var calls atomic.Int32
	release := make(chan struct{})
	embed := func(context.Context) ([]float32, error) {
		calls.Add(1)
		<-release
		return []float32{1}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Resolve(ctx, "mismo texto", embed); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("embed called %d times, want 1", n)
	}
}
