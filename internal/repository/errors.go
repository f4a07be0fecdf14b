// Package repository holds the key-value Store contract, its Redis, MySQL
// and in-memory backends, and typed repositories for sessions, bookings,
// capacity counters and decision locks.
//
// The sentinel values below let higher layers such as the flow engine and
// the admin protocol distinguish failure scenarios with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a put-if-absent finds the key already
// present, e.g. a booking id collision.
var ErrConflict = errors.New("conflict")

// ErrNotEnoughSeats is returned by a reservation that would push a
// counter above its capacity.  Callers translate it into a "N free" notice.
var ErrNotEnoughSeats = errors.New("not enough seats")

// ErrLocked is returned when a decision lock is already held.
var ErrLocked = errors.New("locked")

// ErrLockLost is returned when releasing a decision lock that expired and
// is no longer held by the caller's token.
var ErrLockLost = errors.New("lock lost")

// ErrForbidden is returned when someone other than the operator taps a
// decision button.  The dispatcher logs it as a warning, not a failure.
var ErrForbidden = errors.New("forbidden")
