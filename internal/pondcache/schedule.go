package pondcache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// refreshTimeout bounds one scheduled refresh.
const refreshTimeout = 2 * time.Minute

// Schedule starts a cron job that refreshes the entry on spec (for example
// "@daily"). Stop the returned scheduler on shutdown.
func (c *Cache) Schedule(spec string) (*cron.Cron, error) {
	sched := cron.New()
	_, err := sched.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Warn("scheduled ponds url refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	sched.Start()
	return sched, nil
}
