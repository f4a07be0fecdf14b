package model

import "time"

// Flow names the reservation dialog a session belongs to.
type Flow string

const (
    FlowExcursion Flow = "excursion" // free-form excursion request
    FlowEvent     Flow = "event"     // capacity-bound holiday event
)

// Valid reports whether f is one of the known flows.
func (f Flow) Valid() bool {
    switch f {
    case FlowExcursion, FlowEvent:
        return true
    }
    return false
}

// Step is the input a session expects next.
type Step string

const (
    StepChooseEvent Step = "choose_event"
    StepName        Step = "name"
    StepDate        Step = "date"
    StepTime        Step = "time"
    StepPeople      Step = "people"
    StepContact     Step = "contact"
)

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
    switch s {
    case StepChooseEvent, StepName, StepDate, StepTime, StepPeople, StepContact:
        return true
    }
    return false
}

// Answers collects what the requester typed during a flow.  The same
// struct is embedded in Session (flattened into the stored JSON) and
// copied into Booking when the flow completes.
type Answers struct {
    Name       string `json:"name,omitempty"`
    Date       string `json:"date,omitempty"`
    Time       string `json:"time,omitempty"`
    People     string `json:"people,omitempty"`
    Contact    string `json:"contact,omitempty"`
    EventID    string `json:"eventId,omitempty"`
    EventTitle string `json:"eventTitle,omitempty"`
    EventDate  string `json:"eventDate,omitempty"`
    Username   string `json:"username,omitempty"` // chat handle of the requester, for the operator
}

// Session is the per-requester dialog state.  It is owned by the flow
// engine; nothing else reads or writes it.
//
// Fields:
//  Version   – record schema version.
//  Flow      – which reservation dialog is running.
//  Step      – the input expected next.
//  Answers   – accumulated answers (flattened into the record).
//  ExpiresAt – absolute idle deadline; a session read after it is absent.
type Session struct {
    Version   int       `json:"v"`
    Flow      Flow      `json:"flow"`
    Step      Step      `json:"step"`
    Answers
    ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its idle deadline.
func (s Session) Expired(now time.Time) bool {
    return !now.Before(s.ExpiresAt)
}
