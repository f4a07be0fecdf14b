package model

import (
    "encoding/json"
    "errors"
    "fmt"
)

// SchemaVersion is the version stamped into every record this binary
// writes.  Bump it when a stored field changes meaning and teach the
// decoders below how to read the previous shape.
const SchemaVersion = 1

// ErrUnsupportedSchema is returned when a stored record was written by a
// newer binary than the one reading it.
var ErrUnsupportedSchema = errors.New("unsupported record schema version")

// checkVersion normalizes a decoded version.  Records written before the
// version field existed decode with v == 0 and are read as version 1.
func checkVersion(v *int) error {
    if *v == 0 {
        *v = 1
    }
    if *v > SchemaVersion {
        return fmt.Errorf("%w: %d", ErrUnsupportedSchema, *v)
    }
    return nil
}

// EncodeSession serializes a session, stamping the current schema version.
func EncodeSession(s Session) ([]byte, error) {
    s.Version = SchemaVersion
    return json.Marshal(s)
}

// DecodeSession parses a stored session record.
func DecodeSession(b []byte) (Session, error) {
    var s Session
    if err := json.Unmarshal(b, &s); err != nil {
        return Session{}, fmt.Errorf("decode session: %w", err)
    }
    if err := checkVersion(&s.Version); err != nil {
        return Session{}, err
    }
    if !s.Flow.Valid() || !s.Step.Valid() {
        return Session{}, fmt.Errorf("decode session: invalid flow/step %q/%q", s.Flow, s.Step)
    }
    return s, nil
}

// EncodeBooking serializes a booking, stamping the current schema version.
func EncodeBooking(b Booking) ([]byte, error) {
    b.Version = SchemaVersion
    return json.Marshal(b)
}

// DecodeBooking parses a stored booking record.
func DecodeBooking(raw []byte) (Booking, error) {
    var b Booking
    if err := json.Unmarshal(raw, &b); err != nil {
        return Booking{}, fmt.Errorf("decode booking: %w", err)
    }
    if err := checkVersion(&b.Version); err != nil {
        return Booking{}, err
    }
    if !b.Type.Valid() || !b.Status.Valid() {
        return Booking{}, fmt.Errorf("decode booking: invalid type/status %q/%q", b.Type, b.Status)
    }
    return b, nil
}

// EncodeCounter serializes a capacity counter.
func EncodeCounter(c CapacityCounter) ([]byte, error) {
    c.Version = SchemaVersion
    return json.Marshal(c)
}

// DecodeCounter parses a stored capacity counter.
func DecodeCounter(raw []byte) (CapacityCounter, error) {
    var c CapacityCounter
    if err := json.Unmarshal(raw, &c); err != nil {
        return CapacityCounter{}, fmt.Errorf("decode counter: %w", err)
    }
    if err := checkVersion(&c.Version); err != nil {
        return CapacityCounter{}, err
    }
    return c, nil
}
