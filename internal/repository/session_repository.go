package repository

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/cowblue-git/farm-telegram-bot/internal/model"
)

// SessionRepo stores one conversation session per requester chat.
type SessionRepo struct {
    store   Store
    keys    Keys
    ttl     time.Duration
    timeout time.Duration
    now     func() time.Time
}

// NewSessionRepo returns a SessionRepo.  ttl is the idle timeout; timeout
// bounds each store call.
func NewSessionRepo(store Store, keys Keys, ttl, timeout time.Duration, now func() time.Time) *SessionRepo {
    if now == nil {
        now = time.Now
    }
    return &SessionRepo{store: store, keys: keys, ttl: ttl, timeout: timeout, now: now}
}

// Get returns the live session for chatID.  A missing, expired or
// unreadable record yields ErrNotFound; an expired one is also deleted.
// Records written by a newer binary surface model.ErrUnsupportedSchema.
func (r *SessionRepo) Get(ctx context.Context, chatID int64) (model.Session, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    key := r.keys.Session(chatID)
    raw, err := r.store.Get(ctx, key)
    if err != nil {
        return model.Session{}, err
    }
    s, err := model.DecodeSession(raw)
    if errors.Is(err, model.ErrUnsupportedSchema) {
        return model.Session{}, err
    }
    if err != nil {
        return model.Session{}, fmt.Errorf("%w: %v", ErrNotFound, err)
    }
    if s.Expired(r.now()) {
        _ = r.store.Delete(ctx, key)
        return model.Session{}, ErrNotFound
    }
    return s, nil
}

// Save writes s with a refreshed expiry and returns the stored value.
func (r *SessionRepo) Save(ctx context.Context, chatID int64, s model.Session) (model.Session, error) {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()

    s.ExpiresAt = r.now().Add(r.ttl)
    raw, err := model.EncodeSession(s)
    if err != nil {
        return model.Session{}, err
    }
    if err := r.store.Put(ctx, r.keys.Session(chatID), raw, r.ttl); err != nil {
        return model.Session{}, err
    }
    s.Version = model.SchemaVersion
    return s, nil
}

// Clear deletes the session; clearing an absent session is not an error.
func (r *SessionRepo) Clear(ctx context.Context, chatID int64) error {
    ctx, cancel := bounded(ctx, r.timeout)
    defer cancel()
    if err := r.store.Delete(ctx, r.keys.Session(chatID)); err != nil && !errors.Is(err, ErrNotFound) {
        return err
    }
    return nil
}
