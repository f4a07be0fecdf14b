package repository

import (
    "context"
    "errors"
    "strconv"
    "time"

    "github.com/google/uuid"
)

// LockRepo provides short-lived advisory locks that serialize operator
// decisions on a single booking.  A crashed holder's lock expires after ttl.
// Each acquisition stores a random token, and only the holder of that token
// can release it.
type LockRepo struct {
    store    Store
    keys     Keys
    ttl      time.Duration
    timeout  time.Duration
    newToken func() string
}

func NewLockRepo(store Store, keys Keys, ttl, timeout time.Duration) *LockRepo {
    return &LockRepo{store: store, keys: keys, ttl: ttl, timeout: timeout, newToken: uuid.NewString}
}

func lockValue(token string) []byte { return []byte(strconv.Quote(token)) }

// Acquire takes the decision lock for bookingID and returns its token, or
// ErrLocked while someone else holds it.
func (r *LockRepo) Acquire(ctx context.Context, bookingID string) (string, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    token := r.newToken()
    err := r.store.PutIfAbsent(ctx, r.keys.Lock(bookingID), lockValue(token), r.ttl)
    if errors.Is(err, ErrConflict) {
        return "", ErrLocked
    }
    if err != nil {
        return "", err
    }
    return token, nil
}

// Release drops the lock if token still holds it.  ErrLockLost means the
// lock expired and may now belong to another holder, which is left alone.
func (r *LockRepo) Release(ctx context.Context, bookingID, token string) error {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    err := r.store.CompareAndSwap(ctx, r.keys.Lock(bookingID), lockValue(token), nil, 0)
    if errors.Is(err, ErrConflict) {
        return ErrLockLost
    }
    return err
}
