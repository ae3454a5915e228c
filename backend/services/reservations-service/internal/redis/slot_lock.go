package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargeslot/backend/services/reservations-service/internal/booking"
)

const (
	defaultLockTTL   = 10 * time.Second
	defaultLockWait  = 3 * time.Second
	defaultLockRetry = 25 * time.Millisecond
	maxLockTTL       = time.Minute
)

// releaseScript deletes the key only if it still carries our token, so an expired
// lease taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SlotLockConfig tunes the lease.
type SlotLockConfig struct {
	// TTL bounds how long a crashed holder can block the slot. A request whose
	// deadline lies further out holds the lease until that deadline, up to a minute.
	TTL time.Duration
	// Wait is how long Lock retries before reporting the slot as busy.
	Wait time.Duration
	// Retry is the delay between acquisition attempts.
	Retry time.Duration
}

// SlotLock is a booking.SlotLocker shared by all service replicas through Redis.
type SlotLock struct {
	client *redis.Client
	cfg    SlotLockConfig
	logger *zap.Logger
}

// NewSlotLock returns redis-backed slot lock.
func NewSlotLock(client *redis.Client, cfg SlotLockConfig, logger *zap.Logger) *SlotLock {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLockTTL
	}
	if cfg.Wait <= 0 {
		cfg.Wait = defaultLockWait
	}
	if cfg.Retry <= 0 {
		cfg.Retry = defaultLockRetry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotLock{client: client, cfg: cfg, logger: logger}
}

// leaseTTL is the lease lifetime for a holder working under ctx.
func (l *SlotLock) leaseTTL(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return l.cfg.TTL
	}
	remaining := time.Until(deadline)
	switch {
	case remaining <= l.cfg.TTL:
		return l.cfg.TTL
	case remaining > maxLockTTL:
		return maxLockTTL
	default:
		return remaining
	}
}

func (l *SlotLock) key(slot string) string {
	return fmt.Sprintf("reservations:slot-lock:%s", slot)
}

// Lock acquires the lease for slot. When the lease stays busy for cfg.Wait it
// fails with booking.ErrSlotConflict.
func (l *SlotLock) Lock(ctx context.Context, slot string) (func(), error) {
	key := l.key(slot)
	token := uuid.NewString()
	ttl := l.leaseTTL(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(l.cfg.Retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, ttl).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("slot lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token, ttl) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: slot is being reserved by another request, try again", booking.ErrSlotConflict)
		case <-ticker.C:
		}
	}
}

func (l *SlotLock) release(key, token string, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.logger.Warn("failed to release slot lock", zap.String("key", key), zap.Error(err))
		return
	}
	if deleted == 0 {
		// The slot was unguarded for part of the write; the unique index still holds.
		l.logger.Warn("slot lock expired before release", zap.String("key", key), zap.Duration("ttl", ttl))
	}
}
