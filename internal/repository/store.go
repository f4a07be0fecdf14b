package repository

import (
    "context"
    "strconv"
    "time"
)

// Store is the key-value contract every backend implements.  Values are
// opaque JSON records; a zero ttl means the record never expires.
//
// AdjustCounter is the only read-modify-write primitive.  It atomically
// applies delta to the capacity counter stored under key, creating it as
// {capacity, booked: 0} when absent.  A positive delta is refused (Applied
// false, nothing written) when it would push booked above capacity; a
// negative delta floors booked at zero.
//
// CompareAndSwap replaces the value under key with next only while the
// stored bytes still equal old; an empty next deletes the key instead.  A
// missing key or a different value yields ErrConflict and writes nothing.
type Store interface {
    Get(ctx context.Context, key string) ([]byte, error)
    Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
    PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) error
    Delete(ctx context.Context, key string) error
    ListByPrefix(ctx context.Context, prefix string) ([]string, error)
    AdjustCounter(ctx context.Context, key string, delta, capacity int) (CounterResult, error)
    CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) error
}

// CounterResult reports the counter state after an AdjustCounter call.
// When Applied is false the values are the unchanged current state.
type CounterResult struct {
    Applied  bool
    Booked   int
    Capacity int
}

// Keys builds the namespaced store keys.
type Keys struct {
    Prefix string
}

func (k Keys) Session(chatID int64) string {
    return k.Prefix + ":session:" + strconv.FormatInt(chatID, 10)
}

func (k Keys) Booking(id string) string { return k.BookingPrefix() + id }

// BookingPrefix is the common prefix of all booking keys.
func (k Keys) BookingPrefix() string { return k.Prefix + ":booking:" }

func (k Keys) Counter(eventID string) string {
    return k.Prefix + ":event:" + eventID + ":counter"
}

func (k Keys) Lock(bookingID string) string {
    return k.Prefix + ":lock:booking:" + bookingID
}

// bounded derives a context limited to d; d <= 0 leaves ctx untouched.
func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
    if d <= 0 {
        return ctx, func() {}
    }
    return context.WithTimeout(ctx, d)
}
