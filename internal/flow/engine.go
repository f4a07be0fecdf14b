// Package flow implements the requester-side conversation: the excursion
// and holiday-event reservation dialogs, their validation rules, and the
// hand-off of a finished request to the operator.
package flow

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
    "github.com/cowblue-git/farm-telegram-bot/internal/repository"
)

// SessionStore is the session persistence the engine needs.
type SessionStore interface {
    Get(ctx context.Context, chatID int64) (model.Session, error)
    Save(ctx context.Context, chatID int64, s model.Session) (model.Session, error)
    Clear(ctx context.Context, chatID int64) error
}

// BookingCreator persists a finished booking, assigning its id.
type BookingCreator interface {
    Create(ctx context.Context, b *model.Booking) error
}

// CounterLoader reads (and lazily creates) an event's capacity counter.
type CounterLoader interface {
    Load(ctx context.Context, ev model.Event) (model.CapacityCounter, error)
}

// Engine runs the reservation dialogs.  It holds no per-request state;
// everything lives in the session store.
type Engine struct {
    Sessions   SessionStore
    Bookings   BookingCreator
    Counters   CounterLoader
    Catalog    *catalog.Catalog
    OperatorID int64
    Log        *zap.Logger
    Now        func() time.Time
}

// Inbound is one text message from a requester.
type Inbound struct {
    ChatID int64
    Text   string
    From   model.Identity
}

// Result is what handling a message produced.  Messages are safe to
// deliver even when an error is returned alongside.
type Result struct {
    Messages []notify.Message
    Booking  *model.Booking // set when the message completed a flow
}

func (e *Engine) now() time.Time {
    if e.Now != nil {
        return e.Now()
    }
    return time.Now()
}

func (r *Result) send(chatID int64, text string, kb *notify.Keyboard) {
    r.Messages = append(r.Messages, notify.Send(chatID, text, kb))
}

// HandleMessage advances the requester's conversation by one message.
// The returned error is for logging only; the Result already contains the
// reply the requester should see.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (Result, error) {
    text := strings.TrimSpace(in.Text)
    cmd, payload := parseCommand(text)

    switch {
    case text == catalog.BtnReset || cmd == "/reset":
        return e.reset(ctx, in, catalog.TextReset)
    case text == catalog.BtnMainMenu || cmd == "/menu":
        return e.reset(ctx, in, catalog.TextMainMenu)
    case cmd == "/start" && (payload == "" || payload == "menu"):
        return e.reset(ctx, in, catalog.TextWelcome)
    case text == catalog.BtnExcursion || (cmd == "/start" && payload == "excursion"):
        return e.start(ctx, in, model.FlowExcursion)
    case text == catalog.BtnEvents:
        return e.start(ctx, in, model.FlowEvent)
    case cmd == "/start" && strings.HasPrefix(payload, "event_"):
        return e.startEvent(ctx, in, strings.TrimPrefix(payload, "event_"))
    case cmd == "/start":
        return e.reset(ctx, in, catalog.TextWelcome)
    }

    s, err := e.Sessions.Get(ctx, in.ChatID)
    if errors.Is(err, repository.ErrNotFound) {
        return e.idle(in, text), nil
    }
    if err != nil {
        return e.storeFailure(in, "load session", err)
    }
    return e.step(ctx, in, s, text)
}

// idle answers a requester without a live session.
func (e *Engine) idle(in Inbound, text string) Result {
    var r Result
    if info, ok := catalog.Info[text]; ok {
        r.send(in.ChatID, info, mainMenu())
        return r
    }
    r.send(in.ChatID, catalog.TextIdleFallback, mainMenu())
    return r
}

func (e *Engine) reset(ctx context.Context, in Inbound, text string) (Result, error) {
    var r Result
    r.send(in.ChatID, text, mainMenu())
    if err := e.Sessions.Clear(ctx, in.ChatID); err != nil {
        e.Log.Warn("clear session", zap.Int64("chat_id", in.ChatID), zap.Error(err))
        return r, fmt.Errorf("clear session: %w", err)
    }
    return r, nil
}

func newSession(f model.Flow, from model.Identity) model.Session {
    return model.Session{
        Flow:    f,
        Step:    firstStep(f),
        Answers: model.Answers{Username: from.Username},
    }
}

// start begins a fresh flow, discarding any session in progress.
func (e *Engine) start(ctx context.Context, in Inbound, f model.Flow) (Result, error) {
    if f == model.FlowEvent && len(e.Catalog.All()) == 0 {
        var r Result
        r.send(in.ChatID, catalog.NoticeNoEvents, mainMenu())
        return r, nil
    }
    s := newSession(f, in.From)
    if _, err := e.Sessions.Save(ctx, in.ChatID, s); err != nil {
        return e.storeFailure(in, "save session", err)
    }
    var r Result
    text, kb := e.prompt(f, s.Step)
    r.send(in.ChatID, text, kb)
    return r, nil
}

// startEvent handles a deep link straight into one event's booking.
func (e *Engine) startEvent(ctx context.Context, in Inbound, eventID string) (Result, error) {
    ev, ok := e.Catalog.Lookup(eventID)
    if !ok {
        return e.reset(ctx, in, catalog.NoticeEventNotFound)
    }
    return e.chooseEvent(ctx, in, newSession(model.FlowEvent, in.From), ev)
}

// chooseEvent binds ev to the session unless the event is already full,
// in which case the flow is aborted.
func (e *Engine) chooseEvent(ctx context.Context, in Inbound, s model.Session, ev model.Event) (Result, error) {
    c, err := e.Counters.Load(ctx, ev)
    if err != nil {
        return e.storeFailure(in, "load counter", err)
    }
    if c.IsFull() {
        return e.reset(ctx, in, fmt.Sprintf(catalog.NoticeEventFull, ev.Title))
    }
    s.EventID, s.EventTitle, s.EventDate = ev.ID, ev.Title, ev.Date
    s.Step = model.StepName
    return e.save(ctx, in, s)
}

// step applies one answer to a live session.
func (e *Engine) step(ctx context.Context, in Inbound, s model.Session, text string) (Result, error) {
    if text == "" {
        return e.reject(ctx, in, s, true)
    }

    switch s.Step {
    case model.StepChooseEvent:
        ev, ok := e.Catalog.ByLabel(text)
        if !ok {
            return e.reject(ctx, in, s, false)
        }
        return e.chooseEvent(ctx, in, s, ev)
    case model.StepName:
        s.Name = text
    case model.StepDate:
        s.Date = text
    case model.StepTime:
        s.Time = text
    case model.StepPeople:
        if s.Flow == model.FlowExcursion {
            v, ok := NormalizeExcursionPeople(text)
            if !ok {
                return e.reject(ctx, in, s, false)
            }
            s.People = v
        } else {
            s.People = text
        }
    case model.StepContact:
        if !ValidContact(text) {
            return e.reject(ctx, in, s, false)
        }
        s.Contact = text
    default:
        e.Log.Error("session in unknown step", zap.Int64("chat_id", in.ChatID), zap.String("step", string(s.Step)))
        return e.reset(ctx, in, catalog.TextMainMenu)
    }

    next, ok := nextStep(s.Flow, s.Step)
    if !ok {
        e.Log.Error("step not in flow", zap.String("flow", string(s.Flow)), zap.String("step", string(s.Step)))
        return e.reset(ctx, in, catalog.TextMainMenu)
    }
    if next == done {
        return e.complete(ctx, in, s)
    }
    s.Step = next
    return e.save(ctx, in, s)
}

// save persists s (refreshing its expiry) and prompts for its step.
func (e *Engine) save(ctx context.Context, in Inbound, s model.Session) (Result, error) {
    if _, err := e.Sessions.Save(ctx, in.ChatID, s); err != nil {
        return e.storeFailure(in, "save session", err)
    }
    var r Result
    text, kb := e.prompt(s.Flow, s.Step)
    r.send(in.ChatID, text, kb)
    return r, nil
}

// reject re-prompts the current step.  The session is still written so
// that its expiry is refreshed.
func (e *Engine) reject(ctx context.Context, in Inbound, s model.Session, empty bool) (Result, error) {
    if _, err := e.Sessions.Save(ctx, in.ChatID, s); err != nil {
        return e.storeFailure(in, "save session", err)
    }
    var r Result
    text, kb := e.reprompt(s.Flow, s.Step, empty)
    r.send(in.ChatID, text, kb)
    return r, nil
}

// complete emits the booking, clears the session and notifies both sides.
func (e *Engine) complete(ctx context.Context, in Inbound, s model.Session) (Result, error) {
    b := &model.Booking{
        Type:        model.BookingExcursion,
        RequesterID: in.ChatID,
        Status:      model.StatusNew,
        People:      PartySize(s.People),
        Answers:     s.Answers,
        CreatedAt:   e.now().UTC(),
    }
    if s.Flow == model.FlowEvent {
        b.Type = model.BookingEvent
        b.EventID = s.EventID
    }
    if err := e.Bookings.Create(ctx, b); err != nil {
        var r Result
        r.send(in.ChatID, catalog.TextBookingNotSaved, resetOnly())
        e.Log.Error("create booking", zap.Int64("chat_id", in.ChatID), zap.Error(err))
        return r, fmt.Errorf("create booking: %w", err)
    }

    r := Result{Booking: b}
    r.send(in.ChatID, fmt.Sprintf(catalog.TextBookingAccepted, b.ShortID()), mainMenu())
    r.send(e.OperatorID, fmt.Sprintf(catalog.OperatorNewBooking, b.ShortID())+"\n"+catalog.BookingSummary(*b), DecisionKeyboard(b.ID))

    e.Log.Info("booking created",
        zap.String("booking_id", b.ID),
        zap.String("type", string(b.Type)),
        zap.String("event_id", b.EventID),
        zap.Int("people", b.People),
    )
    if err := e.Sessions.Clear(ctx, in.ChatID); err != nil {
        e.Log.Warn("clear session after booking", zap.Int64("chat_id", in.ChatID), zap.Error(err))
        return r, fmt.Errorf("clear session: %w", err)
    }
    return r, nil
}

// DecisionKeyboard is the inline Confirm/Decline pair for a booking.
func DecisionKeyboard(bookingID string) *notify.Keyboard {
    return &notify.Keyboard{Inline: [][]notify.Button{{
        {Text: catalog.BtnConfirm, Data: "confirm:" + bookingID},
        {Text: catalog.BtnDecline, Data: "cancel:" + bookingID},
    }}}
}

func (e *Engine) storeFailure(in Inbound, op string, err error) (Result, error) {
    e.Log.Error(op, zap.Int64("chat_id", in.ChatID), zap.Error(err))
    var r Result
    r.send(in.ChatID, catalog.TextStoreFailure, nil)
    return r, fmt.Errorf("%s: %w", op, err)
}

// parseCommand splits "/start@farm_bot event_ny" into ("/start",
// "event_ny").  Non-command text yields empty strings.
func parseCommand(text string) (cmd, payload string) {
    if !strings.HasPrefix(text, "/") {
        return "", ""
    }
    fields := strings.Fields(text)
    cmd = strings.ToLower(fields[0])
    if i := strings.IndexByte(cmd, '@'); i >= 0 {
        cmd = cmd[:i]
    }
    return cmd, strings.Join(fields[1:], " ")
}
