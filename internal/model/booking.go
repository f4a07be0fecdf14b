package model

import "time"

// BookingType distinguishes free-form excursions from capacity-bound
// event bookings.
type BookingType string

const (
    BookingExcursion BookingType = "excursion"
    BookingEvent     BookingType = "event"
)

// Valid reports whether t is a known booking type.
func (t BookingType) Valid() bool {
    switch t {
    case BookingExcursion, BookingEvent:
        return true
    }
    return false
}

// BookingStatus is the operator decision state of a booking.  New is the
// only non-terminal state.
type BookingStatus string

const (
    StatusNew       BookingStatus = "new"
    StatusConfirmed BookingStatus = "confirmed"
    StatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
    switch s {
    case StatusNew, StatusConfirmed, StatusCancelled:
        return true
    }
    return false
}

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool { return s != StatusNew }

// Booking records a completed reservation request.  It is created once by
// the flow engine and afterwards only its Status/DecidedAt change.
//
// Fields:
//  ID          – random identifier, unique per creation.
//  Type        – excursion or event.
//  RequesterID – chat the request came from; receives the decision.
//  EventID     – catalog event for capacity-bound bookings, empty otherwise.
//  Status      – new, confirmed or cancelled.
//  People      – party size parsed from the requester's answer.
//  Answers     – the captured dialog answers.
//  CreatedAt   – when the flow completed.
//  DecidedAt   – when the operator confirmed or cancelled (nil while new).
type Booking struct {
    Version     int           `json:"v"`
    ID          string        `json:"id"`
    Type        BookingType   `json:"type"`
    RequesterID int64         `json:"requesterId"`
    EventID     string        `json:"eventId,omitempty"`
    Status      BookingStatus `json:"status"`
    People      int           `json:"people"`
    Answers     Answers       `json:"answers"`
    CreatedAt   time.Time     `json:"createdAt"`
    DecidedAt   *time.Time    `json:"decidedAt,omitempty"`
}

// CapacityBound reports whether confirming the booking consumes seats.
func (b Booking) CapacityBound() bool { return b.EventID != "" }

// ShortID is the prefix of the identifier shown in chat texts.
func (b Booking) ShortID() string {
    if len(b.ID) > 8 {
        return b.ID[:8]
    }
    return b.ID
}

// CapacityCounter tracks reserved seats for one event.  Invariant:
// 0 <= Booked <= Capacity after every successful mutation.
type CapacityCounter struct {
    Version  int `json:"v"`
    Capacity int `json:"capacity"`
    Booked   int `json:"booked"`
}

// Free returns the number of seats still available.
func (c CapacityCounter) Free() int {
    if c.Booked >= c.Capacity {
        return 0
    }
    return c.Capacity - c.Booked
}

// IsFull returns true when no seats remain.
func (c CapacityCounter) IsFull() bool { return c.Booked >= c.Capacity }
