package domain

import (
	"context"
	"time"
)

// RateLimiter answers whether one more event fits under limit per window for
// key. The dispatch gate spends alert budget through it ("alerts" or
// "alerts:<channel>") and the HTTP API limits clients by IP.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out expiring locks shared by every instance. Acquire
// returns ErrLockHeld while another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage is one stream entry. ID is "<unix ms>-<seq>".
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus carries JSON payloads between instances: raw trades in from the
// bus feed, and published alerts out to subscribers and a capped stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRead returns up to count entries after lastID without blocking.
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
