package repository

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "time"

    "github.com/google/uuid"

    "github.com/cowblue-git/farm-telegram-bot/internal/model"
)

// createAttempts bounds id regeneration on a put-if-absent collision.
const createAttempts = 3

// BookingRepo persists bookings.  Bookings never expire and are never
// deleted.
type BookingRepo struct {
    store   Store
    keys    Keys
    timeout time.Duration
    newID   func() string
}

// NewBookingRepo returns a BookingRepo generating random UUIDv4 ids.
func NewBookingRepo(store Store, keys Keys, timeout time.Duration) *BookingRepo {
    return &BookingRepo{store: store, keys: keys, timeout: timeout, newID: uuid.NewString}
}

// Create assigns a fresh id to b and writes it with put-if-absent, so an
// existing booking can never be overwritten.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    var err error
    for i := 0; i < createAttempts; i++ {
        b.ID = r.newID()
        var raw []byte
        if raw, err = model.EncodeBooking(*b); err != nil {
            return err
        }
        err = r.store.PutIfAbsent(ctx, r.keys.Booking(b.ID), raw, 0)
        if !errors.Is(err, ErrConflict) {
            break
        }
    }
    if err != nil {
        return fmt.Errorf("create booking: %w", err)
    }
    b.Version = model.SchemaVersion
    return nil
}

// Get loads a booking by id.
func (r *BookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    raw, err := r.store.Get(ctx, r.keys.Booking(id))
    if err != nil {
        return model.Booking{}, err
    }
    return model.DecodeBooking(raw)
}

// Transition writes b only while the stored booking is still in status
// from.  It returns ErrConflict when the booking has moved on or another
// writer changed it between the read and the write, so at most one caller
// ever performs a given transition.
func (r *BookingRepo) Transition(ctx context.Context, b model.Booking, from model.BookingStatus) error {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    key := r.keys.Booking(b.ID)
    raw, err := r.store.Get(ctx, key)
    if err != nil {
        return err
    }
    cur, err := model.DecodeBooking(raw)
    if err != nil {
        return err
    }
    if cur.Status != from {
        return ErrConflict
    }
    next, err := model.EncodeBooking(b)
    if err != nil {
        return err
    }
    return r.store.CompareAndSwap(ctx, key, raw, next, 0)
}

// List returns every readable booking ordered by creation time.
// Unreadable records are skipped and reported through the second result.
func (r *BookingRepo) List(ctx context.Context) ([]model.Booking, int, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    keys, err := r.store.ListByPrefix(ctx, r.keys.BookingPrefix())
    if err != nil {
        return nil, 0, err
    }
    out := make([]model.Booking, 0, len(keys))
    skipped := 0
    for _, k := range keys {
        raw, err := r.store.Get(ctx, k)
        if errors.Is(err, ErrNotFound) {
            continue
        }
        if err != nil {
            return nil, skipped, err
        }
        b, err := model.DecodeBooking(raw)
        if err != nil {
            skipped++
            continue
        }
        out = append(out, b)
    }
    sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
    return out, skipped, nil
}

// ListByEvent returns the event bookings for eventID.
func (r *BookingRepo) ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
    all, _, err := r.List(ctx)
    if err != nil {
        return nil, err
    }
    var out []model.Booking
    for _, b := range all {
        if b.Type == model.BookingEvent && b.EventID == eventID {
            out = append(out, b)
        }
    }
    return out, nil
}
