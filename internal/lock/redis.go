// Package lock provides a cluster-wide transfer slot backed by Redis, for
// deployments that run more than one ledger process against the same store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/bankledger/internal/ledger"
)

// DefaultKey names the Redis key guarding the transfer commit phase.
const DefaultKey = "ledger:transfer-slot"

const releaseTimeout = 2 * time.Second

var (
	ErrEmptyKey       = errors.New("lock key cannot be empty")
	ErrInvalidExpiry  = errors.New("lock expiry must be greater than 0")
	ErrInvalidTries   = errors.New("lock tries must be at least 1")
	ErrNegativeDelay  = errors.New("lock retry delay cannot be negative")
	ErrSlotNotHeld    = errors.New("transfer slot was not held or already expired")
	errNilRedisClient = errors.New("redis client is nil")
)

// Options tunes how the slot is acquired.
type Options struct {
	Key        string
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// DefaultOptions suits a commit phase that completes in well under a second.
func DefaultOptions() Options {
	return Options{
		Key:        DefaultKey,
		Expiry:     10 * time.Second,
		Tries:      32,
		RetryDelay: 50 * time.Millisecond,
	}
}

func (o Options) validate() error {
	switch {
	case strings.TrimSpace(o.Key) == "":
		return ErrEmptyKey
	case o.Expiry <= 0:
		return ErrInvalidExpiry
	case o.Tries < 1:
		return ErrInvalidTries
	case o.RetryDelay < 0:
		return ErrNegativeDelay
	}
	return nil
}

// RedisSlot is a ledger.Slot held through the RedLock algorithm.
type RedisSlot struct {
	rs     *redsync.Redsync
	opts   Options
	logger *slog.Logger
}

var _ ledger.Slot = (*RedisSlot)(nil)

// NewRedisSlot builds a slot on client.
func NewRedisSlot(client *redis.Client, opts Options, logger *slog.Logger) (*RedisSlot, error) {
	if client == nil {
		return nil, errNilRedisClient
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSlot{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger.With(slog.String("lock_key", opts.Key)),
	}, nil
}

// Acquire blocks until the slot is held, the retries run out or ctx is done.
func (s *RedisSlot) Acquire(ctx context.Context) (func(), error) {
	mutex := s.rs.NewMutex(
		s.opts.Key,
		redsync.WithExpiry(s.opts.Expiry),
		redsync.WithTries(s.opts.Tries),
		redsync.WithRetryDelay(s.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.ErrorContext(ctx, "acquire transfer slot failed", slog.Any("error", err))
		return nil, fmt.Errorf("acquire %s: %w", s.opts.Key, err)
	}
	s.logger.DebugContext(ctx, "transfer slot acquired")

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled; release regardless.
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if ok, err := mutex.UnlockContext(releaseCtx); !ok || err != nil {
				if err == nil {
					err = ErrSlotNotHeld
				}
				s.logger.Error("release transfer slot failed", slog.Bool("unlock_ok", ok), slog.Any("error", err))
				return
			}
			s.logger.Debug("transfer slot released")
		})
	}, nil
}
