package redis

import (
	"context"
	"errors"
	"time"

	"github.com/schoolhub/library-service/internal/domain/loan"
	"github.com/schoolhub/library-service/pkg/circuitbreaker"
)

// LoanCache implements loan.Cache using the generic Redis Cache.
//
// All operations run behind a circuit breaker: when Redis starts failing
// the breaker trips and reads degrade straight to the database instead of
// waiting out Redis timeouts on every request.
type LoanCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewLoanCache creates a new LoanCache. A nil breaker disables breaking.
func NewLoanCache(cache *Cache, breaker *circuitbreaker.CircuitBreaker) *LoanCache {
	return &LoanCache{
		cache:   cache,
		breaker: breaker,
	}
}

// execute runs fn behind the breaker when one is configured.
func (c *LoanCache) execute(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.Execute(ctx, fn)
}

// isMiss treats a cache miss as a non-failure so misses never trip the breaker.
func isMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// GetLoan gets a loan from cache. Returns ErrCacheMiss when absent.
func (c *LoanCache) GetLoan(ctx context.Context, id string) (*loan.Loan, error) {
	var l loan.Loan
	err := c.execute(ctx, func(ctx context.Context) error {
		if err := c.cache.Get(ctx, LoanKey(id), &l); err != nil {
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
	return &l, nil
}

// SetLoan stores a loan in cache.
func (c *LoanCache) SetLoan(ctx context.Context, l *loan.Loan, ttl time.Duration) error {
	if l == nil {
		return nil
	}
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, LoanKey(l.ID), l, ttl)
	})
}

// DeleteLoan removes a loan from cache.
func (c *LoanCache) DeleteLoan(ctx context.Context, id string) error {
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, LoanKey(id))
	})
}

// GetStatistics gets a cached statistics report. Returns ErrCacheMiss when absent.
func (c *LoanCache) GetStatistics(ctx context.Context, filter loan.StatisticsFilter) (*loan.Statistics, error) {
	var stats loan.Statistics
	key := StatisticsKey(filter.SchoolID, filter.Period.From, filter.Period.To, filter.TopN)
	err := c.execute(ctx, func(ctx context.Context) error {
		if err := c.cache.Get(ctx, key, &stats); err != nil {
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
	return &stats, nil
}

// SetStatistics stores a statistics report in cache.
func (c *LoanCache) SetStatistics(ctx context.Context, filter loan.StatisticsFilter, stats *loan.Statistics, ttl time.Duration) error {
	if stats == nil {
		return nil
	}
	key := StatisticsKey(filter.SchoolID, filter.Period.From, filter.Period.To, filter.TopN)
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.Set(ctx, key, stats, ttl)
	})
}

// DeleteStatistics drops every cached report for a school.
func (c *LoanCache) DeleteStatistics(ctx context.Context, schoolID string) error {
	return c.execute(ctx, func(ctx context.Context) error {
		return c.cache.DeleteByPattern(ctx, StatisticsPattern(schoolID))
	})
}
