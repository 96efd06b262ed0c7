// Package resource bounds the background footprint of analyze/optimize:
// a semaphore caps concurrent rebalancing jobs and a rate limiter caps
// their IO throughput, so foreground writes keep their bandwidth.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundJobs is the maximum number of concurrent optimize
	// passes. If 0, defaults to 1.
	MaxBackgroundJobs int64

	// IOLimitBytesPerSec is the maximum IO throughput for background
	// reads. If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages shared limits for background work.
type Controller struct {
	cfg Config

	bgSem     *semaphore.Weighted
	ioLimiter *rate.Limiter
}

// NewController creates a resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundJobs <= 0 {
		cfg.MaxBackgroundJobs = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundJobs),
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireJob blocks until a background job slot is free or ctx is
// cancelled. Callers must pair it with ReleaseJob.
func (c *Controller) AcquireJob(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseJob frees a background job slot.
func (c *Controller) ReleaseJob() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// WaitIO blocks until the given number of bytes fits the IO budget.
// A nil controller or unconfigured limit never blocks.
func (c *Controller) WaitIO(ctx context.Context, bytes int64) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := int64(c.ioLimiter.Burst())
	// Requests above the burst are charged in slices.
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, int(n)); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
