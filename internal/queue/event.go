// Package queue carries booking decisions over RabbitMQ: a publisher used
// by the admin protocol and a consumer that appends an audit trail to a
// log file.
package queue

import (
    "fmt"
    "time"

    "github.com/cowblue-git/farm-telegram-bot/internal/model"
)

// BookingDecidedQueue is the durable queue decisions are published to.
const BookingDecidedQueue = "booking.decided"

// BookingDecidedEvent is published after an operator confirmed or
// cancelled a booking.  It carries enough for the audit log without
// reading the store.
type BookingDecidedEvent struct {
    BookingID   string `json:"booking_id"`
    Type        string `json:"type"`
    Status      string `json:"status"`
    EventID     string `json:"event_id,omitempty"`
    EventTitle  string `json:"event_title,omitempty"`
    RequesterID int64  `json:"requester_id"`
    OperatorID  int64  `json:"operator_id"`
    People      int    `json:"people"`
    Booked      int    `json:"booked,omitempty"`   // counter after the decision, event bookings only
    Capacity    int    `json:"capacity,omitempty"` // event bookings only
    DecidedAt   string `json:"decided_at"`
}

// NewBookingDecidedEvent builds the event for a decided booking.  c may be
// nil for excursions and cancellations.
func NewBookingDecidedEvent(b model.Booking, operatorID int64, c *model.CapacityCounter) BookingDecidedEvent {
    ev := BookingDecidedEvent{
        BookingID:   b.ID,
        Type:        string(b.Type),
        Status:      string(b.Status),
        EventID:     b.EventID,
        EventTitle:  b.Answers.EventTitle,
        RequesterID: b.RequesterID,
        OperatorID:  operatorID,
        People:      b.People,
    }
    if b.DecidedAt != nil {
        ev.DecidedAt = b.DecidedAt.UTC().Format(time.RFC3339)
    }
    if c != nil {
        ev.Booked, ev.Capacity = c.Booked, c.Capacity
    }
    return ev
}

// AuditLine renders the event as one line of the audit log.
func (e BookingDecidedEvent) AuditLine() string {
    line := fmt.Sprintf("[%s] Booking %s | booking_id=%s | type=%s | requester_id=%d | operator_id=%d | people=%d",
        e.DecidedAt, e.Status, e.BookingID, e.Type, e.RequesterID, e.OperatorID, e.People)
    if e.EventID != "" {
        line += fmt.Sprintf(" | event=%s | title=%q | seats=%d/%d", e.EventID, e.EventTitle, e.Booked, e.Capacity)
    }
    return line + "\n"
}
