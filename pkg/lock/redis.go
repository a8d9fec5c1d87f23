package lock

import (
	"context"
	"fmt"
	"time"

	"signal_bot/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// снимаем и продлеваем только свою блокировку
const (
	releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
	renewScript   = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("pexpire", KEYS[1], ARGV[2]) else return 0 end`
)

// Redis — SET NX PX с токеном владельца, продлевается каждые ttl/3, пока держим.
// Сама по себе не даёт at-most-once между хостами: журнал исполнений локальный,
// поэтому с redis-блокировкой обязателен Postgres ClaimDay.
type Redis struct {
	rdb        redis.Cmdable
	key        string
	ttl        time.Duration
	renewEvery time.Duration
	token      func() string
}

func NewRedis(rdb redis.Cmdable, key string, ttl time.Duration) *Redis {
	return &Redis{
		rdb:        rdb,
		key:        key,
		ttl:        ttl,
		renewEvery: ttl / 3,
		token:      uuid.NewString,
	}
}

func (r *Redis) Lock(ctx context.Context) (func(), error) {
	tok := r.token()

	for {
		ok, err := r.rdb.SetNX(ctx, r.key, tok, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", r.key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(retryDelay):
		}
	}

	stop, done := make(chan struct{}), make(chan struct{})
	go r.keepAlive(tok, stop, done)

	return func() {
		close(stop)
		<-done

		// ctx вызывающего может быть уже отменён
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := r.rdb.Eval(rctx, releaseScript, []string{r.key}, tok).Err(); err != nil {
			logger.Error("[LOCK] redis release %s: %v", r.key, err)
		}
	}, nil
}

func (r *Redis) keepAlive(tok string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if r.renewEvery <= 0 {
		return
	}

	t := time.NewTicker(r.renewEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ok, err := r.renew(tok)
			if err != nil || !ok {
				logger.Error("[LOCK] redis lock %s lost (err=%v)", r.key, err)
				return
			}
		}
	}
}

// renew продлевает TTL, если ключ всё ещё наш.
func (r *Redis) renew(tok string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.renewEvery)
	defer cancel()
	n, err := r.rdb.Eval(ctx, renewScript, []string{r.key}, tok, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis renew %s: %w", r.key, err)
	}
	return n == 1, nil
}
