package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Lease decides which process polls a given duel on a given tick.
type Lease interface {
	Acquire(ctx context.Context, duelId string, ttl time.Duration) bool
	Release(ctx context.Context, duelId string)
}

// LocalLease is used by single instance deployments.
type LocalLease struct{}

func (LocalLease) Acquire(context.Context, string, time.Duration) bool { return true }

func (LocalLease) Release(context.Context, string) {}

const leaseKeyPrefix = "clash-duels:monitor:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease shares duel ownership between instances. Redis errors fail open:
// a duplicate poll is harmless because transitions are guarded in the store.
type RedisLease struct {
	client *redis.Client
	owner  string
}

func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client, owner: uuid.NewString()}
}

func (l *RedisLease) Acquire(ctx context.Context, duelId string, ttl time.Duration) bool {
	key := leaseKeyPrefix + duelId
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		log.Warn().Err(err).Str("duelId", duelId).Msg("Lease acquire failed, polling anyway")
		return true
	}
	if ok {
		return true
	}

	holder, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		ok, err = l.client.SetNX(ctx, key, l.owner, ttl).Result()
		return err != nil || ok
	}
	if err != nil {
		log.Warn().Err(err).Str("duelId", duelId).Msg("Lease lookup failed, polling anyway")
		return true
	}
	if holder != l.owner {
		return false
	}
	if err := l.client.PExpire(ctx, key, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("duelId", duelId).Msg("Lease refresh failed")
	}
	return true
}

func (l *RedisLease) Release(ctx context.Context, duelId string) {
	if err := releaseScript.Run(ctx, l.client, []string{leaseKeyPrefix + duelId}, l.owner).Err(); err != nil && err != redis.Nil {
		log.Debug().Err(err).Str("duelId", duelId).Msg("Lease release failed")
	}
}
