package redis

import (
	"context"
	"time"

	"github.com/schoolhub/library-service/internal/domain/book"
	"github.com/schoolhub/library-service/pkg/circuitbreaker"
)

// BookCache implements book.Cache using the generic Redis Cache.
// Shares a breaker with LoanCache so one failing Redis trips both.
type BookCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewBookCache creates a new BookCache. A nil breaker disables breaking.
func NewBookCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *BookCache {
	return &BookCache{
		cache:   cache,
		breaker: breaker,
	}
}

func (c *BookCache) execute(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// Get gets a book from cache. Returns ErrCacheMiss when absent.
func (c *BookCache) Get(ctx context.Context, id string) (*book.Book, error) {
	var b book.Book
	err := c.execute(ctx, func(ctx context.Context) error {
		if err := c.cache.Get(ctx, BookKey(id), &b); err != nil {
			if isMiss(err) {
				return ErrCacheMiss
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Set stores a book in cache.
func (c *BookCache) Set(ctx context.Context, b *book.Book, ttl time.Duration) error {
	if b == nil {
		return nil
	}
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, BookKey(b.ID), b, ttl)
	})
}

// Delete removes a book from cache.
func (c *BookCache) Delete(ctx context.Context, id string) error {
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, BookKey(id))
	})
}
