package profile

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes successful resolutions of an underlying Resolver. Failures
// are not stored, so a missing profile fails the same way on every attempt.
type Cache struct {
	next  Resolver
	group singleflight.Group

	mu       sync.RWMutex
	profiles map[string]*Profile
}

// Cached wraps next with a process-wide cache.
func Cached(next Resolver) *Cache {
	return &Cache{next: next, profiles: make(map[string]*Profile)}
}

// Resolve implements Resolver. Concurrent lookups of one name share a single
// load. The shared load ignores cancellation of whichever caller started it;
// each caller stops waiting only when its own ctx ends.
func (c *Cache) Resolve(ctx context.Context, name string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	p, ok := c.profiles[name]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(name, func() (interface{}, error) {
		p, err := c.next.Resolve(loadCtx, name)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.profiles[name] = p
		c.mu.Unlock()
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Profile), nil
	}
}
