package domain

import (
	"errors"
	"fmt"
)

// Kind classifies why an allocation or verification was refused.
type Kind string

const (
	KindInvalidFormat        Kind = "INVALID_FORMAT"
	KindInvalidLocation      Kind = "INVALID_LOCATION"
	KindOutsideGeofence      Kind = "OUTSIDE_GEOFENCE"
	KindIncompleteDeviceInfo Kind = "INCOMPLETE_DEVICE_INFO"
	KindDeviceAlreadyUsed    Kind = "DEVICE_ALREADY_USED"
	KindIdentityAlreadyUsed  Kind = "IDENTITY_ALREADY_USED"
	KindAllocationContention Kind = "ALLOCATION_CONTENTION"
	KindNotFound             Kind = "NOT_FOUND"
	KindExpired              Kind = "EXPIRED"
	KindStoreUnavailable     Kind = "STORE_UNAVAILABLE"
)

var (
	// ErrNotFound is returned when no ticket has the requested id.
	ErrNotFound = &DenialError{Kind: KindNotFound, Message: "ticket not found"}
	// ErrExpired is returned when the ticket was issued for a day other than today.
	ErrExpired = &DenialError{Kind: KindExpired, Message: "ticket is not valid today"}
	// ErrSiteNotFound is returned when the requested or configured site does not exist.
	ErrSiteNotFound = errors.New("site not found")
)

// DenialError is a structured refusal. Details carries diagnostic fields for
// OUTSIDE_GEOFENCE and DEVICE_ALREADY_USED.
type DenialError struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *DenialError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DenialError) Unwrap() error { return e.cause }

// Is matches any DenialError of the same kind, so errors.Is(err, ErrExpired) works on copies.
func (e *DenialError) Is(target error) bool {
	t, ok := target.(*DenialError)
	return ok && t.Kind == e.Kind
}

// Deny builds a DenialError.
func Deny(kind Kind, message string, details map[string]any) *DenialError {
	return &DenialError{Kind: kind, Message: message, Details: details}
}

// DenyCause builds a DenialError wrapping cause.
func DenyCause(kind Kind, message string, cause error) *DenialError {
	return &DenialError{Kind: kind, Message: message, cause: cause}
}

// KindOf returns the denial kind carried by err, or "" when err is not a denial.
func KindOf(err error) Kind {
	var d *DenialError
	if errors.As(err, &d) {
		return d.Kind
	}
	return ""
}
