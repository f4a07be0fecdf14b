package repository

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/cowblue-git/farm-telegram-bot/internal/model"
)

// CounterRepo reads and mutates per-event capacity counters.  All
// mutations go through Store.AdjustCounter.
type CounterRepo struct {
    store   Store
    keys    Keys
    timeout time.Duration
}

func NewCounterRepo(store Store, keys Keys, timeout time.Duration) *CounterRepo {
    return &CounterRepo{store: store, keys: keys, timeout: timeout}
}

// Load returns the counter for ev, creating {capacity, 0} when absent.
func (r *CounterRepo) Load(ctx context.Context, ev model.Event) (model.CapacityCounter, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    key := r.keys.Counter(ev.ID)
    c, err := r.get(ctx, key)
    if !errors.Is(err, ErrNotFound) {
        return c, err
    }
    fresh := model.CapacityCounter{Capacity: ev.Capacity}
    raw, err := model.EncodeCounter(fresh)
    if err != nil {
        return model.CapacityCounter{}, err
    }
    switch err := r.store.PutIfAbsent(ctx, key, raw, 0); {
    case err == nil:
        fresh.Version = model.SchemaVersion
        return fresh, nil
    case errors.Is(err, ErrConflict):
        return r.get(ctx, key) // created concurrently
    default:
        return model.CapacityCounter{}, err
    }
}

// Peek returns the counter for ev without creating it.  An absent counter
// reads as {capacity, 0}.
func (r *CounterRepo) Peek(ctx context.Context, ev model.Event) (model.CapacityCounter, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    c, err := r.get(ctx, r.keys.Counter(ev.ID))
    if errors.Is(err, ErrNotFound) {
        return model.CapacityCounter{Version: model.SchemaVersion, Capacity: ev.Capacity}, nil
    }
    return c, err
}

// Reserve atomically adds people seats.  When the ceiling would be crossed
// it returns the unchanged counter and ErrNotEnoughSeats.
func (r *CounterRepo) Reserve(ctx context.Context, ev model.Event, people int) (model.CapacityCounter, error) {
    if people <= 0 {
        return model.CapacityCounter{}, fmt.Errorf("reserve %s: non-positive people %d", ev.ID, people)
    }
    res, err := r.adjust(ctx, ev, people)
    if err != nil {
        return model.CapacityCounter{}, err
    }
    c := model.CapacityCounter{Version: model.SchemaVersion, Capacity: res.Capacity, Booked: res.Booked}
    if !res.Applied {
        return c, ErrNotEnoughSeats
    }
    return c, nil
}

// Release returns people seats, never going below zero.
func (r *CounterRepo) Release(ctx context.Context, ev model.Event, people int) (model.CapacityCounter, error) {
    if people <= 0 {
        return model.CapacityCounter{}, fmt.Errorf("release %s: non-positive people %d", ev.ID, people)
    }
    res, err := r.adjust(ctx, ev, -people)
    if err != nil {
        return model.CapacityCounter{}, err
    }
    return model.CapacityCounter{Version: model.SchemaVersion, Capacity: res.Capacity, Booked: res.Booked}, nil
}

func (r *CounterRepo) adjust(ctx context.Context, ev model.Event, delta int) (CounterResult, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    return r.store.AdjustCounter(ctx, r.keys.Counter(ev.ID), delta, ev.Capacity)
}

func (r *CounterRepo) get(ctx context.Context, key string) (model.CapacityCounter, error) {
    raw, err := r.store.Get(ctx, key)
    if err != nil {
        return model.CapacityCounter{}, err
    }
    return model.DecodeCounter(raw)
}
