package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected indicates that no authorized provider session exists.
	ErrNotConnected = errors.New("gate: no authorized session")
	// ErrAuth indicates a rejected login code or password.
	ErrAuth = errors.New("gate: authentication failed")
	// ErrCodeNotRequested indicates a sign-in attempt before any code was sent.
	ErrCodeNotRequested = errors.New("gate: login code was not requested")
	// ErrPasswordRequired indicates the account needs its second factor password.
	ErrPasswordRequired = errors.New("gate: second factor password required")
	// ErrConnection indicates that the provider transport is unavailable.
	ErrConnection = errors.New("gate: provider unavailable")
	// ErrNoMembers indicates an entity without a participant list.
	ErrNoMembers = errors.New("gate: entity has no member list")
	// ErrNoMedia indicates a download request for a message without
	// downloadable media.
	ErrNoMedia = errors.New("gate: message has no downloadable media")
)

// NotFoundError reports an identifier the provider could not resolve.
// It carries the original caller-supplied identifier and the underlying cause.
type NotFoundError struct {
	Identifier string
	Err        error
}

// Error formats the identifier together with the underlying cause.
func (e *NotFoundError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gate: entity %q not found", e.Identifier)
	}
	return fmt.Sprintf("gate: entity %q not found: %v", e.Identifier, e.Err)
}

// Unwrap exposes the underlying provider failure.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}
