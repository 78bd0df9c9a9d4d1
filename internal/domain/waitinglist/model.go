package waitinglist

import (
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrEmptyUserID  = errors.New("waiting list entry must have a user")
	ErrEmptyEventID = errors.New("waiting list entry must have an event")
)

// WaitingListUser represents a single user waiting for a place on a full event.
// INVARIANT: at most one entry per (UserID, EventID)
type WaitingListUser struct {
	ID         string
	UserID     string
	EventID    string
	DateJoined time.Time
}

// Validate checks if the WaitingListUser has valid data.
// PRE: WaitingListUser struct is populated
// POST: Returns nil if valid, error otherwise
func (w *WaitingListUser) Validate() error {
	if strings.TrimSpace(w.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(w.EventID) == "" {
		return ErrEmptyEventID
	}
	return nil
}
