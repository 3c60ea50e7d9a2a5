package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrLockTimeout occurs when lock acquisition times out
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrLockNotHeld occurs when releasing a lock this instance no longer owns
	ErrLockNotHeld = errors.New("lock not held by this instance")
	// ErrLockAlreadyHeld occurs when another instance holds the lock
	ErrLockAlreadyHeld = errors.New("lock already held by another instance")
)

const (
	DefaultLockTTL        = 10 * time.Second
	DefaultAcquireTimeout = 3 * time.Second
	DefaultRetryAttempts  = 3
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// LockManager serializes work on a key across platform instances using
// SET NX PX with token-checked release.
type LockManager struct {
	redis         *redis.Client
	instanceID    string
	retryAttempts int
	baseBackoff   time.Duration
	log           *zap.Logger
}

// Lock is a held distributed lock
type Lock struct {
	key        string
	value      string
	manager    *LockManager
	ttl        time.Duration
	acquiredAt time.Time
}

func NewLockManager(redisClient *redis.Client, log *zap.Logger) *LockManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &LockManager{
		redis:         redisClient,
		instanceID:    uuid.New().String(),
		retryAttempts: DefaultRetryAttempts,
		baseBackoff:   100 * time.Millisecond,
		log:           log.With(zap.String("component", "locks")),
	}
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}

// AcquireLock tries SET NX PX up to retryAttempts times with exponential
// backoff, bounded by DefaultAcquireTimeout.
func (lm *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	acquireCtx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()

	value := fmt.Sprintf("%s:%s", lm.instanceID, uuid.New().String())
	fullKey := lockKey(key)

	var lastErr error
	for attempt := 0; attempt < lm.retryAttempts; attempt++ {
		acquired, err := lm.redis.SetNX(acquireCtx, fullKey, value, ttl).Result()
		switch {
		case err != nil:
			lastErr = fmt.Errorf("redis error: %w", err)
			lm.log.Warn("Redis error acquiring lock", zap.String("key", fullKey), zap.Int("attempt", attempt+1), zap.Error(err))
		case acquired:
			lm.log.Debug("Acquired lock", zap.String("key", fullKey), zap.Int("attempt", attempt+1))
			return &Lock{key: fullKey, value: value, manager: lm, ttl: ttl, acquiredAt: time.Now()}, nil
		default:
			lastErr = ErrLockAlreadyHeld
		}

		select {
		case <-acquireCtx.Done():
			return nil, ErrLockTimeout
		case <-time.After(lm.calculateBackoff(attempt)):
		}
	}

	lm.log.Debug("Failed to acquire lock", zap.String("key", fullKey), zap.Error(lastErr))
	if lastErr == nil {
		lastErr = ErrLockTimeout
	}
	return nil, lastErr
}

// WithLock runs fn while holding the lock for key. A nil manager runs fn
// directly, which is the single-instance setup without Redis.
func (lm *LockManager) WithLock(ctx context.Context, key string, fn func() error) error {
	if lm == nil {
		return fn()
	}
	lock, err := lm.AcquireLock(ctx, key, DefaultLockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			lm.log.Warn("Failed to release lock", zap.String("key", lock.key), zap.Error(err))
		}
	}()
	return fn()
}

// Release deletes the lock only if this instance still owns it
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}

	result, err := releaseScript.Run(ctx, l.manager.redis, []string{l.key}, l.value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}

	l.manager.log.Debug("Released lock", zap.String("key", l.key), zap.Duration("held", time.Since(l.acquiredAt)))
	return nil
}

// Extend resets the lock TTL if it is still held
func (l *Lock) Extend(ctx context.Context, ttl time.Duration) error {
	if l == nil {
		return ErrLockNotHeld
	}

	result, err := extendScript.Run(ctx, l.manager.redis, []string{l.key}, l.value, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	l.ttl = ttl
	return nil
}

// calculateBackoff doubles from baseBackoff, capped at one second
func (lm *LockManager) calculateBackoff(attempt int) time.Duration {
	backoff := lm.baseBackoff * time.Duration(1<<attempt)
	if backoff > time.Second {
		backoff = time.Second
	}
	return backoff
}

// GetLockInfo reports whether key is locked, by whom, and for how long
func (lm *LockManager) GetLockInfo(ctx context.Context, key string) (exists bool, holder string, ttl time.Duration, err error) {
	fullKey := lockKey(key)

	value, err := lm.redis.Get(ctx, fullKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", 0, nil
	}
	if err != nil {
		return false, "", 0, fmt.Errorf("failed to get lock: %w", err)
	}

	ttlDuration, err := lm.redis.PTTL(ctx, fullKey).Result()
	if err != nil {
		return true, value, 0, fmt.Errorf("failed to get lock TTL: %w", err)
	}
	return true, value, ttlDuration, nil
}
