package admin

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/cowblue-git/farm-telegram-bot/internal/catalog"
    "github.com/cowblue-git/farm-telegram-bot/internal/model"
    "github.com/cowblue-git/farm-telegram-bot/internal/notify"
    "github.com/cowblue-git/farm-telegram-bot/internal/repository"
)

// EventSummary is one line of the capacity overview.
type EventSummary struct {
    Event    model.Event `json:"event"`
    Booked   int         `json:"booked"`
    Capacity int         `json:"capacity"`
    Open     bool        `json:"open"`
}

// Summary reports booked/capacity for every catalog event.  Counters that
// were never created read as empty; nothing is written.
func (p *Protocol) Summary(ctx context.Context) ([]EventSummary, error) {
    events := p.Catalog.All()
    out := make([]EventSummary, 0, len(events))
    for _, ev := range events {
        c, err := p.Counters.Peek(ctx, ev)
        if err != nil {
            return nil, fmt.Errorf("summary %s: %w", ev.ID, err)
        }
        out = append(out, EventSummary{Event: ev, Booked: c.Booked, Capacity: c.Capacity, Open: !c.IsFull()})
    }
    return out, nil
}

// Roster lists the event bookings for eventID.  An unknown event yields
// repository.ErrNotFound.
func (p *Protocol) Roster(ctx context.Context, eventID string) (model.Event, []model.Booking, error) {
    ev, ok := p.Catalog.Lookup(eventID)
    if !ok {
        return model.Event{}, nil, repository.ErrNotFound
    }
    bookings, err := p.Bookings.ListByEvent(ctx, eventID)
    if err != nil {
        return ev, nil, fmt.Errorf("roster %s: %w", eventID, err)
    }
    return ev, bookings, nil
}

// SummaryText renders Summary for chat.
func SummaryText(rows []EventSummary) string {
    var sb strings.Builder
    sb.WriteString(catalog.SummaryHeader)
    for _, r := range rows {
        state := catalog.SummaryOpen
        if !r.Open {
            state = catalog.SummaryClosed
        }
        fmt.Fprintf(&sb, "\n%s: %d/%d (%s)", r.Event.Label, r.Booked, r.Capacity, state)
    }
    return sb.String()
}

// RosterText renders Roster for chat.
func RosterText(ev model.Event, bookings []model.Booking) string {
    var sb strings.Builder
    fmt.Fprintf(&sb, catalog.RosterHeader, ev.Title, ev.Date)
    if len(bookings) == 0 {
        sb.WriteString("\n" + catalog.RosterEmpty)
        return sb.String()
    }
    for _, b := range bookings {
        fmt.Fprintf(&sb, "\n№%s · %s · %s · %d чел.", b.ShortID(), catalog.StatusWord(b.Status), b.Answers.Name, b.People)
    }
    return sb.String()
}

// rosterPicker is the inline list of events for /roster without an id.
func (p *Protocol) rosterPicker() *notify.Keyboard {
    kb := &notify.Keyboard{}
    for _, ev := range p.Catalog.All() {
        kb.Inline = append(kb.Inline, []notify.Button{{Text: ev.Label, Data: "roster:" + ev.ID}})
    }
    return kb
}

// HandleCommand answers the operator's chat commands /events and
// /roster [eventId].  It reports false for anything else so the caller
// can route the text to the flow engine.
func (p *Protocol) HandleCommand(ctx context.Context, chatID int64, text string) (Result, bool, error) {
    if chatID != p.OperatorID {
        return Result{}, false, nil
    }
    fields := strings.Fields(text)
    if len(fields) == 0 {
        return Result{}, false, nil
    }
    cmd := strings.ToLower(fields[0])
    if i := strings.IndexByte(cmd, '@'); i >= 0 {
        cmd = cmd[:i]
    }

    switch cmd {
    case "/events":
        rows, err := p.Summary(ctx)
        if err != nil {
            return sendResult(chatID, catalog.NoticeFailure, nil), true, err
        }
        return sendResult(chatID, SummaryText(rows), nil), true, nil
    case "/roster":
        if len(fields) < 2 {
            return sendResult(chatID, catalog.RosterPick, p.rosterPicker()), true, nil
        }
        text, err := p.rosterText(ctx, fields[1])
        return sendResult(chatID, text, nil), true, err
    }
    return Result{}, false, nil
}

func (p *Protocol) rosterText(ctx context.Context, eventID string) (string, error) {
    ev, bookings, err := p.Roster(ctx, eventID)
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return catalog.NoticeEventNotFound, nil
    case err != nil:
        return catalog.NoticeFailure, err
    }
    return RosterText(ev, bookings), nil
}

func (p *Protocol) rosterAction(ctx context.Context, a Action, eventID string) (Result, error) {
    text, err := p.rosterText(ctx, eventID)
    r := sendResult(a.Origin.ChatID, text, nil)
    r.Messages = append(r.Messages, notify.Answer(a.ID, "", false))
    return r, err
}

func sendResult(chatID int64, text string, kb *notify.Keyboard) Result {
    return Result{Outcome: OutcomeRoster, Messages: []notify.Message{notify.Send(chatID, text, kb)}}
}
