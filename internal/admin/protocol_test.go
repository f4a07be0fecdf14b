package admin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cowblue-git/farm-telegram-bot/internal/catalog"
	"github.com/cowblue-git/farm-telegram-bot/internal/model"
	"github.com/cowblue-git/farm-telegram-bot/internal/notify"
	"github.com/cowblue-git/farm-telegram-bot/internal/queue"
	"github.com/cowblue-git/farm-telegram-bot/internal/repository"
)

const operatorID = int64(900)

var (
	smallEvent = model.Event{ID: "ny-2812", Label: "🎄 28 декабря", Date: "28 декабря, 12:00", Title: "Новогодняя ёлка", Capacity: 2}
	bigEvent   = model.Event{ID: "masl-0103", Label: "🥞 1 марта", Date: "1 марта, 12:00", Title: "Масленица", Capacity: 50}
)

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.BookingDecidedEvent
	err    error
}

func (p *fakePublisher) PublishBookingDecided(_ context.Context, ev queue.BookingDecidedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	p        *Protocol
	clock    *testClock
	bookings *repository.BookingRepo
	counters *repository.CounterRepo
	locks    *repository.LockRepo
	pub      *fakePublisher
	nextUser int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 12, 2, 9, 0, 0, 0, time.UTC)}
	store := repository.NewMemoryStore(model.SchemaVersion, clock.Now)
	keys := repository.Keys{Prefix: "farm"}
	h := &harness{
		clock:    clock,
		bookings: repository.NewBookingRepo(store, keys, time.Second),
		counters: repository.NewCounterRepo(store, keys, time.Second),
		locks:    repository.NewLockRepo(store, keys, 15*time.Second, time.Second),
		pub:      &fakePublisher{},
		nextUser: 100,
	}
	h.p = &Protocol{
		Bookings:   h.bookings,
		Counters:   h.counters,
		Locks:      h.locks,
		Catalog:    catalog.New([]model.Event{smallEvent, bigEvent}),
		OperatorID: operatorID,
		Publisher:  h.pub,
		Log:        zap.NewNop(),
		Now:        func() time.Time { return time.Date(2026, 12, 2, 9, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) eventBooking(t *testing.T, ev model.Event, people int) model.Booking {
	t.Helper()
	h.nextUser++
	b := &model.Booking{
		Type:        model.BookingEvent,
		RequesterID: h.nextUser,
		EventID:     ev.ID,
		Status:      model.StatusNew,
		People:      people,
		Answers:     model.Answers{Name: "Гость", People: fmt.Sprint(people), Contact: "@guest_1", EventID: ev.ID, EventTitle: ev.Title, EventDate: ev.Date},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, h.bookings.Create(context.Background(), b))
	return *b
}

func (h *harness) tap(t *testing.T, data string) Result {
	t.Helper()
	res, err := h.p.HandleAction(context.Background(), Action{
		ID:     "cb-" + data,
		Actor:  model.Identity{ID: operatorID, Username: "farm_admin"},
		Data:   data,
		Origin: Origin{ChatID: operatorID, MessageID: 77, Text: "🆕 Новая заявка"},
	})
	require.NoError(t, err)
	h.p.PublishDecision(context.Background(), res)
	return res
}

func (h *harness) status(t *testing.T, id string) model.BookingStatus {
	t.Helper()
	b, err := h.bookings.Get(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

func (h *harness) booked(t *testing.T, ev model.Event) int {
	t.Helper()
	c, err := h.counters.Peek(context.Background(), ev)
	require.NoError(t, err)
	return c.Booked
}

func answerOf(res Result) notify.Message {
	return res.Messages[len(res.Messages)-1]
}

func TestConfirmUntilFull(t *testing.T) {
	h := newHarness(t)
	b1 := h.eventBooking(t, smallEvent, 1)
	b2 := h.eventBooking(t, smallEvent, 1)
	b3 := h.eventBooking(t, smallEvent, 1)

	for _, b := range []model.Booking{b1, b2} {
		res := h.tap(t, "confirm:"+b.ID)
		assert.Equal(t, OutcomeConfirmed, res.Outcome)
		require.Len(t, res.Messages, 3)

		edit := res.Messages[0]
		assert.Equal(t, notify.KindEdit, edit.Kind)
		assert.Equal(t, 77, edit.MessageID)
		assert.Contains(t, edit.Text, catalog.OperatorConfirmed)
		assert.Nil(t, edit.Keyboard, "decision buttons are removed")

		req := res.Messages[1]
		assert.Equal(t, b.RequesterID, req.ChatID)
		assert.Equal(t, fmt.Sprintf(catalog.RequesterConfirmedEvent, smallEvent.Title, smallEvent.Date, 1), req.Text)

		assert.Equal(t, notify.KindAnswer, res.Messages[2].Kind)
		assert.Equal(t, model.StatusConfirmed, h.status(t, b.ID))
	}
	assert.Equal(t, 2, h.booked(t, smallEvent))

	res := h.tap(t, "confirm:"+b3.ID)
	assert.Equal(t, OutcomeNoSeats, res.Outcome)
	require.Len(t, res.Messages, 1, "the requester hears nothing")
	assert.Equal(t, "Недостаточно мест: свободно 0.", res.Messages[0].Text)
	assert.True(t, res.Messages[0].Alert)
	assert.Equal(t, model.StatusNew, h.status(t, b3.ID))
	assert.Equal(t, 2, h.booked(t, smallEvent))
}

func TestNoSeatsReportsFreeCount(t *testing.T) {
	h := newHarness(t)
	small := h.eventBooking(t, smallEvent, 1)
	big := h.eventBooking(t, smallEvent, 2)

	h.tap(t, "confirm:"+small.ID)
	res := h.tap(t, "confirm:"+big.ID)
	assert.Equal(t, OutcomeNoSeats, res.Outcome)
	assert.Equal(t, fmt.Sprintf(catalog.NoticeNoSeats, 1), answerOf(res).Text)
}

func TestDecisionsAreIdempotent(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 1)

	h.tap(t, "confirm:"+b.ID)
	for _, data := range []string{"confirm:" + b.ID, "cancel:" + b.ID} {
		res := h.tap(t, data)
		assert.Equal(t, OutcomeAlreadyDecided, res.Outcome)
		require.Len(t, res.Messages, 1)
		assert.Equal(t, fmt.Sprintf(catalog.NoticeAlreadyDone, catalog.StatusWordConfirmed), res.Messages[0].Text)
	}
	assert.Equal(t, 1, h.booked(t, smallEvent))
	assert.Equal(t, model.StatusConfirmed, h.status(t, b.ID))
	assert.Len(t, h.pub.events, 1, "only the first decision is published")
}

func TestCancelLeavesCounter(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 2)

	res := h.tap(t, "cancel:"+b.ID)
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	require.Len(t, res.Messages, 3)
	assert.Contains(t, res.Messages[0].Text, catalog.OperatorCancelled)
	assert.Equal(t, fmt.Sprintf(catalog.RequesterCancelled, b.ShortID()), res.Messages[1].Text)
	assert.Equal(t, model.StatusCancelled, h.status(t, b.ID))
	assert.Equal(t, 0, h.booked(t, smallEvent))

	res = h.tap(t, "confirm:"+b.ID)
	assert.Equal(t, OutcomeAlreadyDecided, res.Outcome)
	assert.Equal(t, 0, h.booked(t, smallEvent))
}

func TestExcursionConfirmSkipsCounters(t *testing.T) {
	h := newHarness(t)
	b := &model.Booking{
		Type: model.BookingExcursion, RequesterID: 5, Status: model.StatusNew, People: 11,
		Answers: model.Answers{Name: "Олег", Date: "15 июня", Time: "11:00", People: "11+", Contact: "+79991234567"},
	}
	require.NoError(t, h.bookings.Create(context.Background(), b))

	res := h.tap(t, "confirm:"+b.ID)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, fmt.Sprintf(catalog.RequesterConfirmedExcursion, "15 июня", "11:00", "11+"), res.Messages[1].Text)

	require.Len(t, h.pub.events, 1)
	ev := h.pub.events[0]
	assert.Equal(t, "confirmed", ev.Status)
	assert.Zero(t, ev.Capacity)
	assert.Equal(t, "2026-12-02T09:00:00Z", ev.DecidedAt)
}

func TestPublishedEventCarriesCounter(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, bigEvent, 4)
	h.tap(t, "confirm:"+b.ID)

	require.Len(t, h.pub.events, 1)
	ev := h.pub.events[0]
	assert.Equal(t, b.ID, ev.BookingID)
	assert.Equal(t, operatorID, ev.OperatorID)
	assert.Equal(t, 4, ev.Booked)
	assert.Equal(t, 50, ev.Capacity)
}

func TestPublishFailureDoesNotUndoDecision(t *testing.T) {
	h := newHarness(t)
	h.pub.err = assert.AnError
	b := h.eventBooking(t, bigEvent, 1)

	res := h.tap(t, "confirm:"+b.ID)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, model.StatusConfirmed, h.status(t, b.ID))
}

func TestRejectedActions(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 1)
	zero := h.eventBooking(t, smallEvent, 0)
	orphan := &model.Booking{Type: model.BookingEvent, EventID: "gone", Status: model.StatusNew, People: 1}
	require.NoError(t, h.bookings.Create(context.Background(), orphan))

	tests := []struct {
		description string
		data        string
		want        Outcome
	}{
		{"unknown booking", "confirm:nope", OutcomeNotFound},
		{"missing id", "confirm:", OutcomeUnknown},
		{"no separator", "confirm", OutcomeUnknown},
		{"unknown verb", "delete:" + b.ID, OutcomeUnknown},
		{"no party size", "confirm:" + zero.ID, OutcomeInvalidPeople},
		{"event gone from catalog", "confirm:" + orphan.ID, OutcomeUnknownEvent},
	}
	for _, test := range tests {
		res := h.tap(t, test.data)
		assert.Equalf(t, test.want, res.Outcome, test.description)
		require.Lenf(t, res.Messages, 1, test.description)
		assert.Equalf(t, notify.KindAnswer, res.Messages[0].Kind, test.description)
	}
	assert.Equal(t, 0, h.booked(t, smallEvent))
	assert.Equal(t, model.StatusNew, h.status(t, zero.ID))
}

func TestNonOperatorIsForbidden(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 1)

	res, err := h.p.HandleAction(context.Background(), Action{
		ID: "cb", Actor: model.Identity{ID: b.RequesterID, Username: "guest"}, Data: "confirm:" + b.ID,
	})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.Equal(t, OutcomeForbidden, res.Outcome)
	assert.Nil(t, res.Decided)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, notify.Answer("cb", catalog.NoticeForbidden, true), res.Messages[0])
	assert.Equal(t, model.StatusNew, h.status(t, b.ID))
	assert.Equal(t, 0, h.booked(t, smallEvent))
	assert.Empty(t, h.pub.events)
}

func TestBusyWhileLocked(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 1)
	token, err := h.locks.Acquire(context.Background(), b.ID)
	require.NoError(t, err)

	res := h.tap(t, "confirm:"+b.ID)
	assert.Equal(t, OutcomeBusy, res.Outcome)
	assert.Equal(t, model.StatusNew, h.status(t, b.ID))

	require.NoError(t, h.locks.Release(context.Background(), b.ID, token))
	res = h.tap(t, "confirm:"+b.ID)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	_, err = h.locks.Acquire(context.Background(), b.ID)
	assert.NoError(t, err, "the lock is released after a decision")
}

func TestConcurrentConfirmationsRespectCapacity(t *testing.T) {
	h := newHarness(t)
	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, h.eventBooking(t, smallEvent, 1).ID)
	}
	// every booking is tapped twice
	ids = append(ids, ids...)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := h.p.HandleAction(context.Background(), Action{ID: "cb", Actor: model.Identity{ID: operatorID}, Data: "confirm:" + id})
			assert.NoError(t, err)
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, outcomes[OutcomeConfirmed])
	assert.Equal(t, 2, h.booked(t, smallEvent))
	all, err := h.bookings.ListByEvent(context.Background(), smallEvent.ID)
	require.NoError(t, err)
	confirmed := 0
	for _, b := range all {
		if b.Status == model.StatusConfirmed {
			confirmed++
		}
	}
	assert.Equal(t, 2, confirmed)
}

type failingUpdates struct{ BookingStore }

func (failingUpdates) Transition(context.Context, model.Booking, model.BookingStatus) error {
	return assert.AnError
}

func TestFailedWriteReleasesSeats(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 2)
	h.p.Bookings = failingUpdates{h.bookings}

	res, err := h.p.HandleAction(context.Background(), Action{ID: "cb", Actor: model.Identity{ID: operatorID}, Data: "confirm:" + b.ID})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, catalog.NoticeFailure, answerOf(res).Text)
	assert.Equal(t, 0, h.booked(t, smallEvent))
	assert.Equal(t, model.StatusNew, h.status(t, b.ID))
	assert.Empty(t, h.pub.events)
}

// stallingBookings runs stall once, right after the first booking read,
// to model a decision that stalls past its lock TTL.
type stallingBookings struct {
	BookingStore
	stall   func()
	stalled bool
}

func (s *stallingBookings) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.BookingStore.Get(ctx, id)
	if !s.stalled {
		s.stalled = true
		s.stall()
	}
	return b, err
}

func TestStalledDecisionConfirmsOnce(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, bigEvent, 3)

	var retap Result
	h.p.Bookings = &stallingBookings{BookingStore: h.bookings, stall: func() {
		// the first tap's lock expires and the operator taps again
		h.clock.Advance(16 * time.Second)
		retap = h.tap(t, "confirm:"+b.ID)
	}}

	first := h.tap(t, "confirm:"+b.ID)

	assert.Equal(t, OutcomeConfirmed, retap.Outcome)
	assert.Equal(t, OutcomeAlreadyDecided, first.Outcome)
	require.Len(t, first.Messages, 1, "the requester is notified once")
	assert.Equal(t, fmt.Sprintf(catalog.NoticeAlreadyDone, catalog.StatusWordConfirmed), first.Messages[0].Text)
	assert.Nil(t, first.Decided)

	assert.Equal(t, 3, h.booked(t, bigEvent), "the stalled tap gives its seats back")
	assert.Equal(t, model.StatusConfirmed, h.status(t, b.ID))
	assert.Len(t, h.pub.events, 1)
	_, err := h.locks.Acquire(context.Background(), b.ID)
	assert.NoError(t, err, "no lock is left behind")
}

func TestStalledCancelLosesToConfirm(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, smallEvent, 2)

	h.p.Bookings = &stallingBookings{BookingStore: h.bookings, stall: func() {
		h.clock.Advance(16 * time.Second)
		assert.Equal(t, OutcomeConfirmed, h.tap(t, "confirm:"+b.ID).Outcome)
	}}

	res := h.tap(t, "cancel:"+b.ID)
	assert.Equal(t, OutcomeAlreadyDecided, res.Outcome)
	assert.Equal(t, model.StatusConfirmed, h.status(t, b.ID))
	assert.Equal(t, 2, h.booked(t, smallEvent))
}

func TestPublishDecisionIsBounded(t *testing.T) {
	h := newHarness(t)
	h.p.PublishTimeout = 50 * time.Millisecond
	var deadline time.Time
	h.p.Publisher = publisherFunc(func(ctx context.Context, _ queue.BookingDecidedEvent) error {
		deadline, _ = ctx.Deadline()
		return nil
	})
	b := h.eventBooking(t, bigEvent, 1)

	res, err := h.p.HandleAction(context.Background(), Action{ID: "cb", Actor: model.Identity{ID: operatorID}, Data: "confirm:" + b.ID})
	require.NoError(t, err)
	require.NotNil(t, res.Decided)
	assert.True(t, deadline.IsZero(), "nothing is published before delivery")

	h.p.PublishDecision(context.Background(), res)
	assert.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
}

type publisherFunc func(context.Context, queue.BookingDecidedEvent) error

func (f publisherFunc) PublishBookingDecided(ctx context.Context, ev queue.BookingDecidedEvent) error {
	return f(ctx, ev)
}

func TestDecisionWithoutOriginSendsNewMessage(t *testing.T) {
	h := newHarness(t)
	b := h.eventBooking(t, bigEvent, 1)

	res, err := h.p.HandleAction(context.Background(), Action{ID: "cb", Actor: model.Identity{ID: operatorID}, Data: "cancel:" + b.ID})
	require.NoError(t, err)
	assert.Equal(t, notify.KindSend, res.Messages[0].Kind)
	assert.Equal(t, operatorID, res.Messages[0].ChatID)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "no_seats", OutcomeNoSeats.String())
	assert.Equal(t, "unknown_action", OutcomeUnknown.String())
	assert.Equal(t, "outcome(99)", Outcome(99).String())
}
