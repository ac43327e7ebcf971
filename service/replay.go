package service

import (
	"context"
	"sync"
	"time"
)

var sweepInterval = 1 * time.Minute

// replayCache remembers job keys for a fixed time so repeated jobs can be refused
type replayCache struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	lk  sync.Mutex
	m   map[string]time.Time
	ttl time.Duration
}

func newReplayCache(ttl time.Duration) *replayCache {
	ctx, cancel := context.WithCancel(context.Background())

	rc := &replayCache{
		ctx:    ctx,
		cancel: cancel,

		m:   make(map[string]time.Time),
		ttl: ttl,
	}

	rc.wg.Add(1)
	go rc.background()

	return rc
}

// Seen records key and reports whether it was already present and unexpired
func (rc *replayCache) Seen(key string) bool {
	rc.lk.Lock()
	defer rc.lk.Unlock()

	now := time.Now()
	if expiry, ok := rc.m[key]; ok && expiry.After(now) {
		return true
	}
	rc.m[key] = now.Add(rc.ttl)
	return false
}

func (rc *replayCache) Len() int {
	rc.lk.Lock()
	defer rc.lk.Unlock()
	return len(rc.m)
}

func (rc *replayCache) background() {
	defer rc.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rc.sweep(now)

		case <-rc.ctx.Done():
			return
		}
	}
}

func (rc *replayCache) sweep(now time.Time) {
	rc.lk.Lock()
	defer rc.lk.Unlock()

	for k, expiry := range rc.m {
		if expiry.Before(now) {
			delete(rc.m, k)
		}
	}
}

func (rc *replayCache) Close() error {
	rc.cancel()
	rc.wg.Wait()
	return nil
}
