// Package spentset implements the hot-path double-spend guard (spec §4.6,
// component C7): a low-latency "is spent?" check and an atomic
// "check-and-mark" used as the concurrency fence in redemption.Coordinator.
//
// The spent-set is a cache/guard, not the source of truth — ledger is
// authoritative (spec §4.6, §5). Backed by Redis (go-redis/redis, v6 client
// API), seen in the retrieval pack via the ethereum-go-ethereum manifest.
package spentset

import (
	"context"
	"time"

	"github.com/go-redis/redis"

	"github.com/chronocoders/ecash/ecashlog"
	"github.com/chronocoders/ecash/ecashutil"
)

var log = ecashlog.SubLogger(ecashlog.SubsystemSpentSet)

// Set is the contract spec §4.6 describes. redemption.Coordinator depends
// on this interface, not on *RedisSet directly, so tests can substitute an
// in-memory fake.
type Set interface {
	// IsSpent is a best-effort fast check.
	IsSpent(ctx context.Context, serialHex string) (bool, error)
	// CheckAndMark atomically transitions serialHex from absent to
	// present, returning true iff this call performed that transition.
	// ttl bounds how long the mark is retained.
	CheckAndMark(ctx context.Context, serialHex string, ttl time.Duration) (bool, error)
	// Health probes reachability.
	Health(ctx context.Context) error
}

const spentValue = "1"

// RedisSet is the Set implementation backed by a single Redis instance.
type RedisSet struct {
	client *redis.Client
	prefix string
}

// NewRedisSet wraps an existing *redis.Client. prefix namespaces every key
// this package touches (e.g. "ecash:spent:") so the spent-set can safely
// share a Redis instance with other data.
func NewRedisSet(client *redis.Client, prefix string) *RedisSet {
	return &RedisSet{client: client, prefix: prefix}
}

func (s *RedisSet) key(serialHex string) string {
	return s.prefix + serialHex
}

// IsSpent implements Set.IsSpent via GET.
func (s *RedisSet) IsSpent(ctx context.Context, serialHex string) (bool, error) {
	_, err := s.client.WithContext(ctx).Get(s.key(serialHex)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, ecashutil.Wrap(err, "spentset: checking serial")
	}
	return true, nil
}

// CheckAndMark implements Set.CheckAndMark via SETNX with an expiry, which
// Redis performs as a single atomic operation — the linearization point
// spec §5 requires for concurrent redeemers racing the same serial.
func (s *RedisSet) CheckAndMark(ctx context.Context, serialHex string, ttl time.Duration) (bool, error) {
	ok, err := s.client.WithContext(ctx).SetNX(s.key(serialHex), spentValue, ttl).Result()
	if err != nil {
		return false, ecashutil.Wrap(err, "spentset: marking serial")
	}
	if !ok {
		log.Debugf("spentset: serial %s already marked, losing the race", serialHex)
	}
	return ok, nil
}

// Health implements Set.Health via PING.
func (s *RedisSet) Health(ctx context.Context) error {
	if err := s.client.WithContext(ctx).Ping().Err(); err != nil {
		return ecashutil.Wrap(err, "spentset: redis unreachable")
	}
	return nil
}
