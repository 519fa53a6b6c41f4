package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage is a single entry read from a redis stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// RedisAdapter is the subset of redis the service relies on: plain keys
// for locks/markers/cache entries, streams for the alert queue.
type RedisAdapter interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Get(key string) ([]byte, error)
	Del(key string) error
	Exist(key string) (int64, error)
	Client() goredis.UniversalClient

	XAdd(key string, values map[string]interface{}) (string, error)
	XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(key, group string, ids ...string) error
	XGroupCreateMkStream(key, group, start string) error
	XLen(key string) (int64, error)
	XTrimApprox(key string, maxLen int64) error
	XPending(key, group string) (*goredis.XPending, error)
	XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type redisAdapter struct {
	prefix   string
	Conn     goredis.UniversalClient
	ConnName string
}

var redisLock = &sync.RWMutex{}
var redisInstance map[string]RedisAdapter

// NewRedisAdapter opens (or returns) a named universal client. All keys
// are transparently namespaced with keysPrefix.
func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	redisLock.RLock()
	if a, ok := redisInstance[connName]; ok {
		redisLock.RUnlock()
		return a, nil
	}
	redisLock.RUnlock()

	redisLock.Lock()
	defer redisLock.Unlock()
	if redisInstance == nil {
		redisInstance = make(map[string]RedisAdapter)
	}
	if a, ok := redisInstance[connName]; ok {
		return a, nil
	}

	client := goredis.NewUniversalClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed for conn %q: %w", connName, err)
	}

	a := &redisAdapter{
		prefix:   keysPrefix,
		Conn:     client,
		ConnName: connName,
	}
	redisInstance[connName] = a
	return a, nil
}

// GetRedis returns a previously created named adapter ("default" if omitted).
func GetRedis(connName ...string) RedisAdapter {
	name := "default"
	if len(connName) > 0 {
		name = connName[0]
	}
	redisLock.RLock()
	defer redisLock.RUnlock()
	a, ok := redisInstance[name]
	if !ok {
		panic("redis adapter not initialized: " + name)
	}
	return a
}

func (r *redisAdapter) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *redisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	return r.Conn.Set(context.Background(), r.key(key), value, ttl).Err()
}

func (r *redisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	return r.Conn.SetNX(context.Background(), r.key(key), value, ttl).Result()
}

func (r *redisAdapter) Get(key string) ([]byte, error) {
	return r.Conn.Get(context.Background(), r.key(key)).Bytes()
}

func (r *redisAdapter) Del(key string) error {
	return r.Conn.Del(context.Background(), r.key(key)).Err()
}

func (r *redisAdapter) Exist(key string) (int64, error) {
	return r.Conn.Exists(context.Background(), r.key(key)).Result()
}

func (r *redisAdapter) Client() goredis.UniversalClient {
	return r.Conn
}

func (r *redisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return r.Conn.XAdd(context.Background(), &goredis.XAddArgs{
		Stream: r.key(key),
		Values: values,
	}).Result()
}

func (r *redisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	res, err := r.Conn.XReadGroup(context.Background(), &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.key(key), id},
		Count:    count,
		Block:    time.Millisecond * 100,
	}).Result()
	if err != nil {
		return nil, err
	}
	var msgs []StreamMessage
	for _, stream := range res {
		for _, m := range stream.Messages {
			msgs = append(msgs, StreamMessage{ID: m.ID, Values: m.Values})
		}
	}
	return msgs, nil
}

func (r *redisAdapter) XAck(key, group string, ids ...string) error {
	return r.Conn.XAck(context.Background(), r.key(key), group, ids...).Err()
}

func (r *redisAdapter) XGroupCreateMkStream(key, group, start string) error {
	return r.Conn.XGroupCreateMkStream(context.Background(), r.key(key), group, start).Err()
}

func (r *redisAdapter) XLen(key string) (int64, error) {
	return r.Conn.XLen(context.Background(), r.key(key)).Result()
}

func (r *redisAdapter) XTrimApprox(key string, maxLen int64) error {
	return r.Conn.XTrimMaxLenApprox(context.Background(), r.key(key), maxLen, 0).Err()
}

func (r *redisAdapter) XPending(key, group string) (*goredis.XPending, error) {
	return r.Conn.XPending(context.Background(), r.key(key), group).Result()
}

func (r *redisAdapter) XPendingExt(key, group, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return r.Conn.XPendingExt(context.Background(), &goredis.XPendingExtArgs{
		Stream: r.key(key),
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	}).Result()
}

func (r *redisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	res, err := r.Conn.XClaim(context.Background(), &goredis.XClaimArgs{
		Stream:   r.key(key),
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	var msgs []StreamMessage
	for _, m := range res {
		msgs = append(msgs, StreamMessage{ID: m.ID, Values: m.Values})
	}
	return msgs, nil
}
