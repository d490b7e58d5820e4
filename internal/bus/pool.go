package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// pool holds one lazily dialed connection per connection string. Concurrent
// first calls for the same key share a single dial; a failed dial is
// forgotten so the next call retries.
type pool[T io.Closer] struct {
	dial func(ctx context.Context, key string) (T, error)

	mu     sync.Mutex
	closed bool
	conns  map[string]*lazyConn[T]
}

type lazyConn[T io.Closer] struct {
	once sync.Once
	val  T
	err  error
}

func newPool[T io.Closer](dial func(ctx context.Context, key string) (T, error)) *pool[T] {
	return &pool[T]{dial: dial, conns: make(map[string]*lazyConn[T])}
}

func (p *pool[T]) get(ctx context.Context, key string) (T, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		var zero T
		return zero, ErrClosed
	}
	c, ok := p.conns[key]
	if !ok {
		c = &lazyConn[T]{}
		p.conns[key] = c
	}
	p.mu.Unlock()

	c.once.Do(func() {
		c.val, c.err = p.dial(ctx, key)
	})

	if c.err != nil {
		p.mu.Lock()
		if p.conns[key] == c {
			delete(p.conns, key)
		}
		p.mu.Unlock()
	}
	return c.val, c.err
}

func (p *pool[T]) close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*lazyConn[T])
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for key, c := range conns {
		c.once.Do(func() { c.err = ErrClosed })
		if c.err != nil {
			continue
		}
		if err := c.val.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
