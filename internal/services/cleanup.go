package services

import (
	"context"
	"log"
	"time"
)

// Cleanup периодически вычищает уведомления старше окна хранения
type Cleanup struct {
	store     Store
	retention time.Duration
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCleanup(store Store, retention, interval time.Duration) *Cleanup {
	ctx, cancel := context.WithCancel(context.Background())
	return &Cleanup{
		store:     store,
		retention: retention,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Cleanup) Run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

func (c *Cleanup) Stop() {
	c.cancel()
}

func (c *Cleanup) purge() {
	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.store.PurgeNotificationsBefore(c.ctx, cutoff)
	if err != nil {
		log.Printf("Notification cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Notification cleanup: removed %d records older than %s", deleted, c.retention)
	}
}
