package activitylog

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"
)

// DisplayLayout is how timestamps appear in the admin activity log.
const DisplayLayout = "02-Jan-2006 15:04:05 (MST)"

// CronPrefix marks housekeeping entries written by background workers.
const CronPrefix = "CRON:"

// ErrEmptyLog is returned when an entry has no text.
var ErrEmptyLog = errors.New("log text cannot be empty")

var london, _ = time.LoadLocation("Europe/London")

// Entry is one line of the append-only activity trail.
type Entry struct {
	ID        string
	Timestamp time.Time
	Log       string
}

// Validate checks if the Entry has valid data.
// PRE: Entry struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Log) == "" {
		return ErrEmptyLog
	}
	if e.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}

// DisplayTimestamp formats the timestamp in studio local time.
func (e Entry) DisplayTimestamp() string {
	loc := london
	if loc == nil {
		loc = time.UTC
	}
	return e.Timestamp.In(loc).Format(DisplayLayout)
}

// IsCron returns true for background housekeeping entries.
func (e Entry) IsCron() bool {
	return strings.HasPrefix(e.Log, CronPrefix)
}

// IsHousekeeping returns true for the repeating "CRON: ... nothing to ..." entries
// that the admin listing hides by default.
func (e Entry) IsHousekeeping() bool {
	return e.IsCron() && strings.Contains(e.Log, "nothing to")
}

// New returns an entry stamped with now.
func New(id, log string, now time.Time) Entry {
	return Entry{ID: id, Timestamp: now, Log: log}
}
