package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowblue-git/farm-telegram-bot/internal/model"
)

var testKeys = Keys{Prefix: "farm"}

func TestKeys(t *testing.T) {
	assert.Equal(t, "farm:session:42", testKeys.Session(42))
	assert.Equal(t, "farm:booking:abc", testKeys.Booking("abc"))
	assert.Equal(t, "farm:event:ny-2812:counter", testKeys.Counter("ny-2812"))
	assert.Equal(t, "farm:lock:booking:abc", testKeys.Lock("abc"))
}

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(model.SchemaVersion, clock.Now)
	repo := NewSessionRepo(store, testKeys, 30*time.Minute, time.Second, clock.Now)

	_, err := repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, err := repo.Save(ctx, 1, model.Session{Flow: model.FlowExcursion, Step: model.StepDate, Answers: model.Answers{Name: "Анна"}})
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(30*time.Minute), saved.ExpiresAt)

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StepDate, got.Step)
	assert.Equal(t, "Анна", got.Name)

	clock.Advance(30 * time.Minute)
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound, "a session is dead at its expiry instant")

	require.NoError(t, repo.Clear(ctx, 1))
	require.NoError(t, repo.Clear(ctx, 1))
}

func TestSessionRepoUnreadableRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(model.SchemaVersion, nil)
	repo := NewSessionRepo(store, testKeys, time.Minute, 0, nil)

	require.NoError(t, store.Put(ctx, testKeys.Session(5), []byte(`{"flow":"event","step":"payment"}`), 0))
	_, err := repo.Get(ctx, 5)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, testKeys.Session(6), []byte(`{"v":2,"flow":"event","step":"name"}`), 0))
	_, err = repo.Get(ctx, 6)
	assert.ErrorIs(t, err, model.ErrUnsupportedSchema)
}

func TestBookingRepo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(model.SchemaVersion, nil)
	repo := NewBookingRepo(store, testKeys, time.Second)

	base := time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC)
	second := &model.Booking{Type: model.BookingEvent, EventID: "ny-2812", Status: model.StatusNew, People: 2, CreatedAt: base.Add(time.Minute)}
	first := &model.Booking{Type: model.BookingEvent, EventID: "ny-2812", Status: model.StatusNew, People: 3, CreatedAt: base}
	excursion := &model.Booking{Type: model.BookingExcursion, Status: model.StatusNew, People: 10, CreatedAt: base}
	for _, b := range []*model.Booking{second, first, excursion} {
		require.NoError(t, repo.Create(ctx, b))
		assert.NotEmpty(t, b.ID)
	}

	got, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.People)

	got.Status = model.StatusConfirmed
	require.NoError(t, repo.Transition(ctx, got, model.StatusNew))
	got, _ = repo.Get(ctx, first.ID)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	require.NoError(t, store.Put(ctx, testKeys.Booking("broken"), []byte(`nope`), 0))
	all, skipped, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, 1, skipped)

	byEvent, err := repo.ListByEvent(ctx, "ny-2812")
	require.NoError(t, err)
	require.Len(t, byEvent, 2)
	assert.Equal(t, first.ID, byEvent[0].ID, "ordered by creation time")
	assert.Equal(t, second.ID, byEvent[1].ID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBookingRepoRetriesIDCollision(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(model.SchemaVersion, nil)
	repo := NewBookingRepo(store, testKeys, 0)
	require.NoError(t, store.Put(ctx, testKeys.Booking("taken"), []byte(`{}`), 0))

	ids := []string{"taken", "fresh"}
	repo.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	b := &model.Booking{Type: model.BookingExcursion, Status: model.StatusNew}
	require.NoError(t, repo.Create(ctx, b))
	assert.Equal(t, "fresh", b.ID)

	repo.newID = func() string { return "taken" }
	assert.ErrorIs(t, repo.Create(ctx, &model.Booking{Type: model.BookingExcursion, Status: model.StatusNew}), ErrConflict)
}

func TestCounterRepo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(model.SchemaVersion, nil)
	repo := NewCounterRepo(store, testKeys, time.Second)
	ev := model.Event{ID: "ny-2812", Capacity: 5}

	c, err := repo.Peek(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, 5, c.Capacity)
	_, err = store.Get(ctx, testKeys.Counter(ev.ID))
	assert.ErrorIs(t, err, ErrNotFound, "peek never writes")

	c, err = repo.Load(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, model.CapacityCounter{Version: 1, Capacity: 5, Booked: 0}, c)
	_, err = store.Get(ctx, testKeys.Counter(ev.ID))
	assert.NoError(t, err, "load creates the counter")

	c, err = repo.Reserve(ctx, ev, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Booked)

	c, err = repo.Reserve(ctx, ev, 2)
	assert.ErrorIs(t, err, ErrNotEnoughSeats)
	assert.Equal(t, 1, c.Free())

	c, err = repo.Release(ctx, ev, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Booked)

	_, err = repo.Reserve(ctx, ev, 0)
	assert.Error(t, err)

	// capacity is fixed at creation
	c, err = repo.Load(ctx, model.Event{ID: "ny-2812", Capacity: 99})
	require.NoError(t, err)
	assert.Equal(t, 5, c.Capacity)
}

func TestBookingTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(model.SchemaVersion, nil)
	repo := NewBookingRepo(store, testKeys, time.Second)

	b := &model.Booking{Type: model.BookingEvent, EventID: "masl-0103", Status: model.StatusNew, People: 3}
	require.NoError(t, repo.Create(ctx, b))

	confirmed, cancelled := *b, *b
	confirmed.Status = model.StatusConfirmed
	cancelled.Status = model.StatusCancelled

	tests := []struct {
		description string
		next        model.Booking
		from        model.BookingStatus
		wantErr     error
		wantStatus  model.BookingStatus
	}{
		{"first decision wins", confirmed, model.StatusNew, nil, model.StatusConfirmed},
		{"repeated decision loses", confirmed, model.StatusNew, ErrConflict, model.StatusConfirmed},
		{"late cancel loses", cancelled, model.StatusNew, ErrConflict, model.StatusConfirmed},
	}
	for _, test := range tests {
		err := repo.Transition(ctx, test.next, test.from)
		if test.wantErr != nil {
			assert.ErrorIsf(t, err, test.wantErr, test.description)
		} else {
			assert.NoErrorf(t, err, test.description)
		}
		got, err := repo.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equalf(t, test.wantStatus, got.Status, test.description)
	}

	missing := confirmed
	missing.ID = "missing"
	assert.ErrorIs(t, repo.Transition(ctx, missing, model.StatusNew), ErrNotFound)
}

func TestLockRepo(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(model.SchemaVersion, clock.Now)
	locks := NewLockRepo(store, testKeys, 15*time.Second, time.Second)

	tok, err := locks.Acquire(ctx, "b1")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	_, err = locks.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLocked)
	_, err = locks.Acquire(ctx, "b2")
	assert.NoError(t, err, "locks are per booking")

	assert.ErrorIs(t, locks.Release(ctx, "b1", "someone-else"), ErrLockLost)
	_, err = locks.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLocked, "a foreign token does not release the lock")

	require.NoError(t, locks.Release(ctx, "b1", tok))
	_, err = locks.Acquire(ctx, "b1")
	require.NoError(t, err)

	clock.Advance(16 * time.Second)
	_, err = locks.Acquire(ctx, "b1")
	assert.NoError(t, err, "an abandoned lock expires")
}

func TestStaleLockHolderKeepsOffNewLock(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(model.SchemaVersion, clock.Now)
	locks := NewLockRepo(store, testKeys, 15*time.Second, time.Second)

	stale, err := locks.Acquire(ctx, "b1")
	require.NoError(t, err)
	clock.Advance(16 * time.Second)
	fresh, err := locks.Acquire(ctx, "b1")
	require.NoError(t, err)

	assert.ErrorIs(t, locks.Release(ctx, "b1", stale), ErrLockLost)
	_, err = locks.Acquire(ctx, "b1")
	assert.ErrorIs(t, err, ErrLocked, "the new holder keeps its lock")
	assert.NoError(t, locks.Release(ctx, "b1", fresh))
}
