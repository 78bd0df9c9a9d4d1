package booking

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"studio/internal/domain/event"
)

// Status constants
const (
	StatusOpen      = "OPEN"
	StatusCancelled = "CANCELLED"
)

// ReferenceLength is the length of a generated booking reference.
const ReferenceLength = 22

// referenceAlphabet excludes look-alike characters (0/O, 1/l/I).
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Domain errors
var (
	ErrEmptyUserID       = errors.New("booking must have a user")
	ErrEmptyEventID      = errors.New("booking must have an event")
	ErrInvalidStatus     = errors.New("status must be OPEN or CANCELLED")
	ErrEventFull         = errors.New("event is full")
	ErrFeeNotIncurred    = errors.New("no cancellation fee has been incurred for this booking")
	ErrAlreadyOpen       = errors.New("booking is already open")
	ErrAlreadyCancelled  = errors.New("booking is already cancelled")
	ErrFeePaidNotCharged = errors.New("cancellation fee cannot be paid without being incurred")
)

// Booking links a user to an event.
// INVARIANT: at most one booking per (UserID, EventID)
type Booking struct {
	ID                      string
	Reference               string
	UserID                  string
	EventID                 string
	Paid                    bool
	DateBooked              time.Time
	DateRebooked            time.Time
	Status                  string // OPEN, CANCELLED
	Attended                bool
	NoShow                  bool
	CancellationFeeIncurred bool
	CancellationFeePaid     bool
	ReminderSent            bool
	InvoiceID               string
	CheckoutTime            time.Time
}

// New creates an OPEN booking with a fresh reference.
// POST: Status=OPEN, DateBooked=now, Reference is 22 characters
func New(id, userID, eventID string, now time.Time) Booking {
	return Booking{
		ID:         id,
		Reference:  NewReference(),
		UserID:     userID,
		EventID:    eventID,
		DateBooked: now,
		Status:     StatusOpen,
	}
}

// Validate checks if the Booking has valid data.
// PRE: Booking struct is populated
// POST: Returns nil if valid, error otherwise
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(b.EventID) == "" {
		return ErrEmptyEventID
	}
	if b.Status != StatusOpen && b.Status != StatusCancelled {
		return ErrInvalidStatus
	}
	if b.CancellationFeePaid && !b.CancellationFeeIncurred {
		return ErrFeePaidNotCharged
	}
	return nil
}

// IsActive returns true when the booking holds a place: OPEN and not a no-show.
func (b Booking) IsActive() bool {
	return b.Status == StatusOpen && !b.NoShow
}

// IsRebooking reports whether moving from prev to b reopens a place:
// CANCELLED -> OPEN, or no-show cleared.
func (b Booking) IsRebooking(prev Booking) bool {
	wasCancelled := prev.Status == StatusCancelled && b.Status == StatusOpen
	wasNoShow := prev.NoShow && !b.NoShow
	return wasCancelled || wasNoShow
}

// CheckCapacity enforces the full-event rule before a save.
// prev is nil for a new booking. spacesLeft is counted before this save.
// POST: Returns ErrEventFull for a new OPEN booking or a rebooking when no space is left
func (b Booking) CheckCapacity(prev *Booking, spacesLeft int) error {
	if spacesLeft > 0 {
		return nil
	}
	if prev == nil {
		if b.Status != StatusCancelled {
			return ErrEventFull
		}
		return nil
	}
	if b.IsRebooking(*prev) {
		return ErrEventFull
	}
	return nil
}

// Cancel sets the booking to CANCELLED.
// PRE: booking is OPEN
// POST: Status=CANCELLED
func (b *Booking) Cancel() error {
	if b.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	b.Status = StatusCancelled
	return nil
}

// Reopen reopens a cancelled or no-show booking and stamps DateRebooked.
// PRE: booking is CANCELLED or a no-show
// POST: Status=OPEN, NoShow=false, DateRebooked=now
func (b *Booking) Reopen(now time.Time) error {
	if b.IsActive() {
		return ErrAlreadyOpen
	}
	b.Status = StatusOpen
	b.NoShow = false
	b.DateRebooked = now
	return nil
}

// MarkNoShow records that the user did not attend (or cancelled too late).
// POST: Attended=false, NoShow=true
func (b *Booking) MarkNoShow() {
	b.Attended = false
	b.NoShow = true
}

// MarkAttended records attendance, reopening the booking if necessary.
// POST: Status=OPEN, Attended=true, NoShow=false; DateRebooked set if this reopened the booking
func (b *Booking) MarkAttended(now time.Time) {
	if !b.IsActive() {
		b.DateRebooked = now
	}
	b.Status = StatusOpen
	b.Attended = true
	b.NoShow = false
}

// IncurFee records a cancellation fee against the booking.
// POST: CancellationFeeIncurred=true
func (b *Booking) IncurFee() {
	b.CancellationFeeIncurred = true
}

// ToggleFeePaid flips the fee-paid flag.
// PRE: CancellationFeeIncurred is true
// POST: CancellationFeePaid is flipped
func (b *Booking) ToggleFeePaid() error {
	if !b.CancellationFeeIncurred {
		return ErrFeeNotIncurred
	}
	b.CancellationFeePaid = !b.CancellationFeePaid
	return nil
}

// ToggleFeeIncurred adds or removes the cancellation fee.
// POST: CancellationFeeIncurred is flipped; CancellationFeePaid=false
func (b *Booking) ToggleFeeIncurred() {
	b.CancellationFeeIncurred = !b.CancellationFeeIncurred
	b.CancellationFeePaid = false
}

// HasOutstandingFee returns true if a fee was incurred and not yet paid.
func (b Booking) HasOutstandingFee() bool {
	return b.CancellationFeeIncurred && !b.CancellationFeePaid
}

// FeeText describes the cancellation fee state for the register: "Paid", "£x.xx" or "-".
func (b Booking) FeeText(e event.Event) string {
	if !b.CancellationFeeIncurred {
		return "-"
	}
	if b.CancellationFeePaid {
		return "Paid"
	}
	return "£" + event.FormatPence(e.CancellationFee)
}

// LastBooked returns the later of DateBooked and DateRebooked.
func (b Booking) LastBooked() time.Time {
	if b.DateRebooked.After(b.DateBooked) {
		return b.DateRebooked
	}
	return b.DateBooked
}

// NewReference returns a random 22-character booking reference.
func NewReference() string {
	return RandomString(ReferenceLength)
}

// RandomString returns n characters drawn uniformly from the reference alphabet.
func RandomString(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		sb.WriteByte(referenceAlphabet[idx.Int64()])
	}
	return sb.String()
}
