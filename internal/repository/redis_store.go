package repository

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// adjustScript applies a delta to a JSON capacity counter in one EVAL so
// that no other client can interleave between the read and the write.
//
// KEYS[1] counter key, ARGV[1] delta, ARGV[2] capacity used on creation,
// ARGV[3] schema version.  Returns {applied, booked, capacity}.
var adjustScript = redis.NewScript(`
    local raw = redis.call('GET', KEYS[1])
    local delta = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local booked = 0
    if raw then
        local c = cjson.decode(raw)
        booked = tonumber(c.booked) or 0
        if tonumber(c.capacity) then capacity = tonumber(c.capacity) end
    end

    if delta > 0 and booked + delta > capacity then
        return { 0, booked, capacity }
    end

    booked = booked + delta
    if booked < 0 then booked = 0 end

    redis.call('SET', KEYS[1], cjson.encode({ v = tonumber(ARGV[3]), capacity = capacity, booked = booked }))
    return { 1, booked, capacity }
`)

// swapScript is CompareAndSwap in one EVAL.
//
// KEYS[1] key, ARGV[1] expected value, ARGV[2] new value (empty deletes),
// ARGV[3] ttl in milliseconds (0 keeps no expiry).  Returns 1 when swapped.
var swapScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) ~= ARGV[1] then
        return 0
    end
    if ARGV[2] == '' then
        redis.call('DEL', KEYS[1])
    elseif tonumber(ARGV[3]) > 0 then
        redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
    else
        redis.call('SET', KEYS[1], ARGV[2])
    end
    return 1
`)

// RedisStore implements Store on a single Redis instance.
type RedisStore struct {
    rdb     *redis.Client
    version int
}

// NewRedisStore returns a Store backed by rdb.  version is stamped into
// counters written by AdjustCounter.
func NewRedisStore(rdb *redis.Client, version int) *RedisStore {
    return &RedisStore{rdb: rdb, version: version}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
    b, err := s.rdb.Get(ctx, key).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("redis get %s: %w", key, err)
    }
    return b, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
        return fmt.Errorf("redis set %s: %w", key, err)
    }
    return nil
}

func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
    if err != nil {
        return fmt.Errorf("redis setnx %s: %w", key, err)
    }
    if !ok {
        return ErrConflict
    }
    return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
    if err := s.rdb.Del(ctx, key).Err(); err != nil {
        return fmt.Errorf("redis del %s: %w", key, err)
    }
    return nil
}

// ListByPrefix walks the keyspace with SCAN so large stores never block
// the server the way KEYS would.
func (s *RedisStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
    var keys []string
    iter := s.rdb.Scan(ctx, 0, globEscape(prefix)+"*", 200).Iterator()
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
    }
    if err := iter.Err(); err != nil {
        return nil, fmt.Errorf("redis scan %s*: %w", prefix, err)
    }
    return keys, nil
}

func (s *RedisStore) AdjustCounter(ctx context.Context, key string, delta, capacity int) (CounterResult, error) {
    vals, err := adjustScript.Run(ctx, s.rdb, []string{key}, delta, capacity, s.version).Slice()
    if err != nil {
        return CounterResult{}, fmt.Errorf("redis adjust %s: %w", key, err)
    }
    if len(vals) != 3 {
        return CounterResult{}, fmt.Errorf("redis adjust %s: unexpected reply %#v", key, vals)
    }
    return CounterResult{
        Applied:  asInt(vals[0]) == 1,
        Booked:   asInt(vals[1]),
        Capacity: asInt(vals[2]),
    }, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) error {
    n, err := swapScript.Run(ctx, s.rdb, []string{key}, old, next, ttl.Milliseconds()).Int()
    if err != nil {
        return fmt.Errorf("redis swap %s: %w", key, err)
    }
    if n != 1 {
        return ErrConflict
    }
    return nil
}

func asInt(v interface{}) int {
    switch t := v.(type) {
    case int64:
        return int(t)
    case int:
        return t
    case float64:
        return int(t)
    }
    return 0
}

// globEscape quotes the characters SCAN MATCH treats as pattern syntax.
func globEscape(s string) string {
    var b strings.Builder
    for _, r := range s {
        switch r {
        case '*', '?', '[', ']', '\\':
            b.WriteByte('\\')
        }
        b.WriteRune(r)
    }
    return b.String()
}
