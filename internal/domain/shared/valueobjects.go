package shared

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SessionID identifies one table session.
type SessionID string

// NewSessionID generates a random session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ParseSessionID validates a session ID received from a client.
func ParseSessionID(s string) (SessionID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", NewDomainError("shared", "ParseSessionID", ErrInvalidInput, "malformed session id")
	}
	return SessionID(id.String()), nil
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// IsEmpty returns true if the ID is empty.
func (s SessionID) IsEmpty() bool {
	return s == ""
}

// ViewName names an entry of the view catalog.
type ViewName string

var viewNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// IsValid checks the name is a lowercase slug.
func (v ViewName) IsValid() bool {
	return viewNameRegex.MatchString(string(v))
}

// String returns the string representation.
func (v ViewName) String() string {
	return string(v)
}

// NewViewName creates a ViewName with validation.
func NewViewName(name string) (ViewName, error) {
	v := ViewName(strings.ToLower(strings.TrimSpace(name)))
	if !v.IsValid() {
		return "", NewDomainError("shared", "NewViewName", ErrInvalidInput, "view name must be a lowercase slug")
	}
	return v, nil
}

// BulkAction names an operation run over a selection.
type BulkAction string

const (
	BulkActionExport        BulkAction = "export"
	BulkActionNotifyAdvisor BulkAction = "notify-advisor"
)

// IsValid reports whether the action is known.
func (a BulkAction) IsValid() bool {
	switch a {
	case BulkActionExport, BulkActionNotifyAdvisor:
		return true
	}
	return false
}

// String returns the string representation.
func (a BulkAction) String() string {
	return string(a)
}

// ParseBulkAction validates an action name.
func ParseBulkAction(s string) (BulkAction, error) {
	a := BulkAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", ErrUnknownAction
	}
	return a, nil
}
