package ff

import (
	"errors"
	"fmt"
)

// Fault categories. Every error returned by the persistence and licensing
// layers wraps exactly one of these, so callers can branch with errors.Is.
var (
	// ErrStorage reports an open, read, write or transaction failure on the
	// persisted store. Fatal during startup.
	ErrStorage = errors.New("storage fault")

	// ErrConflict reports a duplicate identity on insert.
	ErrConflict = errors.New("conflict")

	// ErrMigration reports a malformed legacy snapshot.
	ErrMigration = errors.New("legacy migration fault")

	// ErrDateParse reports a stored date that is not a calendar date.
	ErrDateParse = errors.New("date parse fault")

	// ErrInvalidLicense reports that the licensing service rejected a key.
	ErrInvalidLicense = errors.New("license is not valid")

	// ErrTransport reports a network or remote failure during activation.
	ErrTransport = errors.New("license service unavailable")
)

// TransportError carries the remote's answer when activation fails below
// the license-validity level. StatusCode is 0 when no response arrived.
type TransportError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: status %d: %s", ErrTransport, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", ErrTransport, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrTransport, e.Err)
	default:
		return ErrTransport.Error()
	}
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }
