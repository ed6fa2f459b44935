package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
)

// The holder's token guards release and refresh so an expired holder can
// never drop or extend a lock that someone else has taken since.
var (
	releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// LockConfig configures a SlotLock.
type LockConfig struct {
	// TTL bounds how long a crashed holder keeps the slot.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
	// MaxWait bounds how long Acquire spins. Zero waits until ctx is done.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
	// RetryMin and RetryMax bound the spin backoff.
	RetryMin time.Duration `yaml:"retry_min" mapstructure:"retry_min"`
	RetryMax time.Duration `yaml:"retry_max" mapstructure:"retry_max"`
	// Refresh extends the TTL every TTL/3 while the slot is held.
	Refresh bool `yaml:"refresh" mapstructure:"refresh"`
}

// ApplyDefaults fills zero-valued fields.
func (c *LockConfig) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.RetryMin <= 0 {
		c.RetryMin = 50 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2 * time.Second
	}
}

// SlotLock is a distributed single-holder slot on one Redis key, taken with
// SET NX PX and released with a token-checked script.
type SlotLock struct {
	rdb goredis.Cmdable
	key string
	cfg LockConfig
	log *logger.Logger
}

// NewSlotLock creates a lock on key.
func NewSlotLock(rdb goredis.Cmdable, key string, cfg LockConfig, log *logger.Logger) *SlotLock {
	cfg.ApplyDefaults()
	return &SlotLock{rdb: rdb, key: key, cfg: cfg, log: log.WithComponent("slot-lock")}
}

// Key returns the Redis key guarding the slot.
func (l *SlotLock) Key() string { return l.key }

// Acquire spins with backoff until the slot is taken, MaxWait elapses
// (SlotBusy) or ctx is done (ctx.Err). The returned release is idempotent.
func (l *SlotLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()

	var deadline <-chan time.Time
	if l.cfg.MaxWait > 0 {
		t := time.NewTimer(l.cfg.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	backoff := l.cfg.RetryMin
	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.cfg.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.SlotBusy(l.key).WithCause(err)
		}
		if ok {
			return l.holder(token), nil
		}

		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			return nil, ctx.Err()
		case <-deadline:
			wait.Stop()
			return nil, errors.SlotBusy(l.key)
		case <-wait.C:
		}
		backoff = min(backoff*2, l.cfg.RetryMax)
	}
}

func (l *SlotLock) holder(token string) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	if l.cfg.Refresh {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.keepAlive(token, stop)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err(); err != nil {
				l.log.Warn("slot release failed; lock expires with its ttl", map[string]interface{}{
					"key":             l.key,
					logger.FieldError: err.Error(),
				})
			}
		})
	}
}

func (l *SlotLock) keepAlive(token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.TTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL/3)
			held, err := l.extend(ctx, token)
			cancel()
			if err != nil || !held {
				l.log.Warn("slot refresh failed", map[string]interface{}{"key": l.key, "held": held})
			}
		}
	}
}

// extend resets the TTL if token still holds the slot.
func (l *SlotLock) extend(ctx context.Context, token string) (bool, error) {
	n, err := refreshScript.Run(ctx, l.rdb, []string{l.key}, token, l.cfg.TTL.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
