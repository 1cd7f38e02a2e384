package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DedupeCache maps a CodeFingerprint to the job id that last owned it,
// with a TTL, per spec.md §3. It is backed by redis when configured (the
// teacher's go-redis client, repurposed from cross-process pub/sub into a
// SETEX-shaped cache since this pipeline's pub/sub is in-process — see
// ProgressBus) and falls back to an in-memory map otherwise so local dev
// doesn't require a running redis.
type DedupeCache struct {
	client *redis.Client
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]localEntry
}

type localEntry struct {
	jobID     string
	expiresAt time.Time
}

func NewDedupeCache(client *redis.Client, ttl time.Duration) *DedupeCache {
	return &DedupeCache{
		client: client,
		ttl:    ttl,
		local:  make(map[string]localEntry),
	}
}

// Get returns the job id mapped to fingerprint, if any and not expired.
func (d *DedupeCache) Get(ctx context.Context, fingerprint string) (string, bool) {
	if d.client != nil {
		jobID, err := d.client.Get(ctx, fingerprint).Result()
		if err == redis.Nil {
			return "", false
		}
		if err != nil {
			return "", false
		}
		return jobID, true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.local[fingerprint]
	if !ok || time.Now().After(entry.expiresAt) {
		return "", false
	}
	return entry.jobID, true
}

// Set maps fingerprint to jobID with the cache's configured TTL.
func (d *DedupeCache) Set(ctx context.Context, fingerprint, jobID string) {
	if d.client != nil {
		d.client.Set(ctx, fingerprint, jobID, d.ttl)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.local[fingerprint] = localEntry{jobID: jobID, expiresAt: time.Now().Add(d.ttl)}
}

// Invalidate removes fingerprint's mapping, used when its job lands in a
// terminal failed/cancelled state (spec.md §3: "Failed/cancelled jobs
// invalidate the mapping").
func (d *DedupeCache) Invalidate(ctx context.Context, fingerprint string) {
	if d.client != nil {
		d.client.Del(ctx, fingerprint)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.local, fingerprint)
}
