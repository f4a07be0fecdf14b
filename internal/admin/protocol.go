// Package admin implements the operator side of the bot: confirming or
// declining bookings, and read-only projections over bookings and
// capacity counters.
package admin

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"

    "github.com/cowblue-git/farm-telegram-bot/internal/catalog"
    "github.com/cowblue-git/farm-telegram-bot/internal/model"
    "github.com/cowblue-git/farm-telegram-bot/internal/notify"
    "github.com/cowblue-git/farm-telegram-bot/internal/queue"
    "github.com/cowblue-git/farm-telegram-bot/internal/repository"
)

// BookingStore is the booking persistence the protocol needs.
type BookingStore interface {
    Get(ctx context.Context, id string) (model.Booking, error)
    Transition(ctx context.Context, b model.Booking, from model.BookingStatus) error
    ListByEvent(ctx context.Context, eventID string) ([]model.Booking, error)
}

// CounterStore reads and atomically mutates capacity counters.
type CounterStore interface {
    Load(ctx context.Context, ev model.Event) (model.CapacityCounter, error)
    Peek(ctx context.Context, ev model.Event) (model.CapacityCounter, error)
    Reserve(ctx context.Context, ev model.Event, people int) (model.CapacityCounter, error)
    Release(ctx context.Context, ev model.Event, people int) (model.CapacityCounter, error)
}

// Locker serializes decisions on one booking.  The lock only keeps taps
// from piling up; the conditional status transition is what makes a
// decision happen once.
type Locker interface {
    Acquire(ctx context.Context, bookingID string) (token string, err error)
    Release(ctx context.Context, bookingID, token string) error
}

// Publisher receives decided bookings for the audit trail.
type Publisher interface {
    PublishBookingDecided(ctx context.Context, event queue.BookingDecidedEvent) error
}

// defaultPublishTimeout bounds one audit publish when PublishTimeout is unset.
const defaultPublishTimeout = 3 * time.Second

// Protocol handles operator actions.  Publisher may be nil.
type Protocol struct {
    Bookings       BookingStore
    Counters       CounterStore
    Locks          Locker
    Catalog        *catalog.Catalog
    OperatorID     int64
    Publisher      Publisher
    PublishTimeout time.Duration
    Log            *zap.Logger
    Now            func() time.Time
}

// Origin is the operator message an inline button was tapped on.
type Origin struct {
    ChatID    int64
    MessageID int
    Text      string
}

// Action is one tap on an inline button.
type Action struct {
    ID     string // acknowledgement handle
    Actor  model.Identity
    Data   string // confirm:<id>, cancel:<id> or roster:<eventId>
    Origin Origin
}

// Outcome classifies how an action ended.
type Outcome int

const (
    OutcomeConfirmed Outcome = iota
    OutcomeCancelled
    OutcomeAlreadyDecided
    OutcomeNotFound
    OutcomeNoSeats
    OutcomeInvalidPeople
    OutcomeUnknownEvent
    OutcomeForbidden
    OutcomeUnknown
    OutcomeBusy
    OutcomeRoster
    OutcomeFailed
)

var outcomeNames = [...]string{
    OutcomeConfirmed:      "confirmed",
    OutcomeCancelled:      "cancelled",
    OutcomeAlreadyDecided: "already_decided",
    OutcomeNotFound:       "not_found",
    OutcomeNoSeats:        "no_seats",
    OutcomeInvalidPeople:  "invalid_people",
    OutcomeUnknownEvent:   "unknown_event",
    OutcomeForbidden:      "forbidden",
    OutcomeUnknown:        "unknown_action",
    OutcomeBusy:           "busy",
    OutcomeRoster:         "roster",
    OutcomeFailed:         "failed",
}

func (o Outcome) String() string {
    if o >= 0 && int(o) < len(outcomeNames) {
        return outcomeNames[o]
    }
    return fmt.Sprintf("outcome(%d)", int(o))
}

// Result is the effect of one action or command.
type Result struct {
    Outcome  Outcome
    Booking  *model.Booking // state after the action, when one was loaded
    Messages []notify.Message
    Decided  *queue.BookingDecidedEvent // set when this action decided a booking
}

func (p *Protocol) now() time.Time {
    if p.Now != nil {
        return p.Now()
    }
    return time.Now()
}

// HandleAction applies an operator tap.  The returned error is for
// logging; Result.Messages always contains the acknowledgement.
func (p *Protocol) HandleAction(ctx context.Context, a Action) (Result, error) {
    if a.Actor.ID != p.OperatorID {
        err := fmt.Errorf("action %q from %d (@%s): %w", a.Data, a.Actor.ID, a.Actor.Username, repository.ErrForbidden)
        return answer(a, OutcomeForbidden, catalog.NoticeForbidden, true), err
    }

    verb, arg, _ := strings.Cut(a.Data, ":")
    if arg == "" {
        return answer(a, OutcomeUnknown, catalog.NoticeUnknownAction, false), nil
    }
    switch verb {
    case "confirm":
        return p.decide(ctx, a, arg, model.StatusConfirmed)
    case "cancel":
        return p.decide(ctx, a, arg, model.StatusCancelled)
    case "roster":
        return p.rosterAction(ctx, a, arg)
    }
    return answer(a, OutcomeUnknown, catalog.NoticeUnknownAction, false), nil
}

func answer(a Action, o Outcome, text string, alert bool) Result {
    return Result{Outcome: o, Messages: []notify.Message{notify.Answer(a.ID, text, alert)}}
}

// decide runs the confirm or cancel transition under the booking's
// decision lock.
func (p *Protocol) decide(ctx context.Context, a Action, id string, target model.BookingStatus) (Result, error) {
    token, err := p.Locks.Acquire(ctx, id)
    if err != nil {
        if errors.Is(err, repository.ErrLocked) {
            return answer(a, OutcomeBusy, catalog.NoticeBusy, false), nil
        }
        return p.failed(a, id, "acquire decision lock", err)
    }
    defer func() {
        // released even when ctx already expired
        err := p.Locks.Release(context.WithoutCancel(ctx), id, token)
        switch {
        case errors.Is(err, repository.ErrLockLost):
            p.Log.Warn("decision lock expired before release", zap.String("booking_id", id))
        case err != nil:
            p.Log.Warn("release decision lock", zap.String("booking_id", id), zap.Error(err))
        }
    }()

    b, err := p.Bookings.Get(ctx, id)
    if errors.Is(err, repository.ErrNotFound) {
        return answer(a, OutcomeNotFound, catalog.NoticeNotFound, true), nil
    }
    if err != nil {
        return p.failed(a, id, "load booking", err)
    }
    if b.Status.Terminal() {
        return alreadyDecided(a, b), nil
    }

    var (
        ev       model.Event
        counter  *model.CapacityCounter
        reserved bool
    )
    if target == model.StatusConfirmed && b.CapacityBound() {
        var ok bool
        if ev, ok = p.Catalog.Lookup(b.EventID); !ok {
            return answer(a, OutcomeUnknownEvent, catalog.NoticeUnknownEvent, true), nil
        }
        if b.People <= 0 {
            return answer(a, OutcomeInvalidPeople, catalog.NoticeInvalidPeople, true), nil
        }
        if _, err := p.Counters.Load(ctx, ev); err != nil {
            return p.failed(a, id, "load counter", err)
        }
        c, err := p.Counters.Reserve(ctx, ev, b.People)
        if errors.Is(err, repository.ErrNotEnoughSeats) {
            r := answer(a, OutcomeNoSeats, fmt.Sprintf(catalog.NoticeNoSeats, c.Free()), true)
            r.Booking = &b
            return r, nil
        }
        if err != nil {
            return p.failed(a, id, "reserve seats", err)
        }
        counter, reserved = &c, true
    }

    decidedAt := p.now().UTC()
    next := b
    next.Status = target
    next.DecidedAt = &decidedAt
    if err := p.Bookings.Transition(ctx, next, b.Status); err != nil {
        if reserved {
            p.releaseSeats(ctx, ev, b)
        }
        if errors.Is(err, repository.ErrConflict) {
            return p.lostRace(ctx, a, id)
        }
        return p.failed(a, id, "update booking", err)
    }
    b = next

    p.Log.Info("booking decided",
        zap.String("booking_id", b.ID),
        zap.String("status", string(b.Status)),
        zap.String("event_id", b.EventID),
        zap.Int("people", b.People),
    )

    decided := queue.NewBookingDecidedEvent(b, p.OperatorID, counter)
    r := Result{Booking: &b, Decided: &decided}
    if target == model.StatusConfirmed {
        r.Outcome = OutcomeConfirmed
        r.Messages = append(r.Messages,
            p.operatorUpdate(a, catalog.OperatorConfirmed, b),
            notify.Send(b.RequesterID, requesterConfirmation(b, ev), nil),
            notify.Answer(a.ID, catalog.NoticeConfirmed, false),
        )
    } else {
        r.Outcome = OutcomeCancelled
        r.Messages = append(r.Messages,
            p.operatorUpdate(a, catalog.OperatorCancelled, b),
            notify.Send(b.RequesterID, fmt.Sprintf(catalog.RequesterCancelled, b.ShortID()), nil),
            notify.Answer(a.ID, catalog.NoticeCancelled, false),
        )
    }
    return r, nil
}

func alreadyDecided(a Action, b model.Booking) Result {
    r := answer(a, OutcomeAlreadyDecided, fmt.Sprintf(catalog.NoticeAlreadyDone, catalog.StatusWord(b.Status)), false)
    r.Booking = &b
    return r
}

// lostRace answers a tap whose transition was beaten by another decision
// on the same booking.
func (p *Protocol) lostRace(ctx context.Context, a Action, id string) (Result, error) {
    p.Log.Warn("booking decided concurrently", zap.String("booking_id", id), zap.String("data", a.Data))
    b, err := p.Bookings.Get(context.WithoutCancel(ctx), id)
    if err != nil {
        return p.failed(a, id, "reload booking", err)
    }
    return alreadyDecided(a, b), nil
}

// releaseSeats gives back a reservation whose booking write did not land.
func (p *Protocol) releaseSeats(ctx context.Context, ev model.Event, b model.Booking) {
    if _, err := p.Counters.Release(context.WithoutCancel(ctx), ev, b.People); err != nil {
        p.Log.Error("release seats after failed booking write",
            zap.String("booking_id", b.ID), zap.Int("people", b.People), zap.Error(err))
    }
}

// operatorUpdate replaces the tapped message with the decision; the inline
// buttons disappear with the edit.  Without an origin it sends a new one.
func (p *Protocol) operatorUpdate(a Action, header string, b model.Booking) notify.Message {
    text := header + " №" + b.ShortID() + "\n" + catalog.BookingSummary(b)
    if a.Origin.MessageID == 0 {
        return notify.Send(p.OperatorID, text, nil)
    }
    return notify.Edit(a.Origin.ChatID, a.Origin.MessageID, text, nil)
}

func requesterConfirmation(b model.Booking, ev model.Event) string {
    if b.Type == model.BookingEvent {
        title, date := b.Answers.EventTitle, b.Answers.EventDate
        if ev.ID != "" {
            title, date = ev.Title, ev.Date
        }
        return fmt.Sprintf(catalog.RequesterConfirmedEvent, title, date, b.People)
    }
    return fmt.Sprintf(catalog.RequesterConfirmedExcursion, b.Answers.Date, b.Answers.Time, b.Answers.People)
}

// PublishDecision hands the booking decided by r to the audit queue.  The
// dispatcher calls it after r's messages were delivered so the broker never
// delays the operator or the requester.  Failures are only logged.
func (p *Protocol) PublishDecision(ctx context.Context, r Result) {
    if p.Publisher == nil || r.Decided == nil {
        return
    }
    timeout := p.PublishTimeout
    if timeout <= 0 {
        timeout = defaultPublishTimeout
    }
    ctx, cancel := context.WithTimeout(ctx, timeout)
    defer cancel()
    if err := p.Publisher.PublishBookingDecided(ctx, *r.Decided); err != nil {
        p.Log.Warn("publish booking decision", zap.String("booking_id", r.Decided.BookingID), zap.Error(err))
    }
}

func (p *Protocol) failed(a Action, id, op string, err error) (Result, error) {
    p.Log.Error(op, zap.String("booking_id", id), zap.Error(err))
    return answer(a, OutcomeFailed, catalog.NoticeFailure, true), fmt.Errorf("%s %s: %w", op, id, err)
}
