package repository

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "sort"
    "strings"
    "sync"
    "time"
)

type memEntry struct {
    value     []byte
    expiresAt time.Time // zero = no expiry
}

func (e memEntry) live(now time.Time) bool {
    return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// MemoryStore is a process-local Store for development and tests.  One
// mutex guards the whole map, which makes AdjustCounter trivially atomic.
type MemoryStore struct {
    mu      sync.Mutex
    data    map[string]memEntry
    version int
    now     func() time.Time
}

// NewMemoryStore returns an empty store.  now may be nil (time.Now).
func NewMemoryStore(version int, now func() time.Time) *MemoryStore {
    if now == nil {
        now = time.Now
    }
    return &MemoryStore{data: make(map[string]memEntry), version: version, now: now}
}

func (s *MemoryStore) entry(ttl time.Duration, value []byte) memEntry {
    e := memEntry{value: append([]byte(nil), value...)}
    if ttl > 0 {
        e.expiresAt = s.now().Add(ttl)
    }
    return e
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.data[key]
    if !ok || !e.live(s.now()) {
        delete(s.data, key)
        return nil, ErrNotFound
    }
    return append([]byte(nil), e.value...), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    s.data[key] = s.entry(ttl, value)
    s.mu.Unlock()
    return nil
}

func (s *MemoryStore) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    if e, ok := s.data[key]; ok && e.live(s.now()) {
        return ErrConflict
    }
    s.data[key] = s.entry(ttl, value)
    return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    delete(s.data, key)
    s.mu.Unlock()
    return nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) error {
    if err := ctx.Err(); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    e, ok := s.data[key]
    if !ok || !e.live(s.now()) || !bytes.Equal(e.value, old) {
        return ErrConflict
    }
    if len(next) == 0 {
        delete(s.data, key)
        return nil
    }
    s.data[key] = s.entry(ttl, next)
    return nil
}

func (s *MemoryStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    now := s.now()
    var keys []string
    for k, e := range s.data {
        if strings.HasPrefix(k, prefix) && e.live(now) {
            keys = append(keys, k)
        }
    }
    sort.Strings(keys)
    return keys, nil
}

func (s *MemoryStore) AdjustCounter(ctx context.Context, key string, delta, capacity int) (CounterResult, error) {
    if err := ctx.Err(); err != nil {
        return CounterResult{}, err
    }
    s.mu.Lock()
    defer s.mu.Unlock()

    c := counterRow{Version: s.version, Capacity: capacity}
    if e, ok := s.data[key]; ok && e.live(s.now()) {
        if err := json.Unmarshal(e.value, &c); err != nil {
            return CounterResult{}, fmt.Errorf("memory adjust %s: decode: %w", key, err)
        }
    }
    if delta > 0 && c.Booked+delta > c.Capacity {
        return CounterResult{Applied: false, Booked: c.Booked, Capacity: c.Capacity}, nil
    }
    c.Booked += delta
    if c.Booked < 0 {
        c.Booked = 0
    }
    c.Version = s.version
    raw, err := json.Marshal(c)
    if err != nil {
        return CounterResult{}, err
    }
    s.data[key] = memEntry{value: raw}
    return CounterResult{Applied: true, Booked: c.Booked, Capacity: c.Capacity}, nil
}
