package embedding

import (
	"container/list"
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// QueryCache remembers recent query vectors. Concurrent misses for the same
// text share one embedding call. Vectors are copied in and out so callers
// may mutate what they receive.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	byText   map[string]*list.Element
	recency  *list.List
	inflight singleflight.Group
}

type cached struct {
	text string
	vec  []float32
}

// NewQueryCache returns a cache holding at most capacity vectors.
// capacity <= 0 disables it; Resolve then always calls through.
func NewQueryCache(capacity int) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		byText:   make(map[string]*list.Element),
		recency:  list.New(),
	}
}

// Resolve returns the vector for text, calling embed on a miss.
func (c *QueryCache) Resolve(ctx context.Context, text string, embed func(context.Context) ([]float32, error)) ([]float32, error) {
	if c.capacity <= 0 {
		return embed(ctx)
	}
	if vec, ok := c.lookup(text); ok {
		return vec, nil
	}
	v, err, _ := c.inflight.Do(text, func() (any, error) {
		vec, err := embed(ctx)
		if err != nil {
			return nil, err
		}
		c.store(text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]float32)), nil
}

func (c *QueryCache) lookup(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.byText[text]
	if !ok {
		return nil, false
	}
	c.recency.MoveToFront(elem)
	return clone(elem.Value.(*cached).vec), true
}

func (c *QueryCache) store(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byText[text]; ok {
		elem.Value.(*cached).vec = clone(vec)
		c.recency.MoveToFront(elem)
		return
	}
	c.byText[text] = c.recency.PushFront(&cached{text: text, vec: clone(vec)})
	for c.recency.Len() > c.capacity {
		last := c.recency.Back()
		c.recency.Remove(last)
		delete(c.byText, last.Value.(*cached).text)
	}
}

// Len returns the number of cached vectors.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
