package orchestrators

import (
	"context"
	"errors"
	"testing"
	"time"

	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/booking"
	"studio/internal/domain/invoice"
	"studio/internal/domain/waitinglist"
)

func otherStudent(id string) domainAccount.Account {
	return domainAccount.Account{ID: id, Email: id + "@example.com", Username: id, FirstName: id, Role: domainAccount.RoleStudent}
}

func (f *studioFixture) fillEvent(eventID string, userIDs ...string) {
	for _, id := range userIDs {
		f.addAccount(otherStudent(id))
		f.book("b-"+id, id, eventID, false)
	}
}

func (f *studioFixture) joinWaitingList(eventID string, userIDs ...string) {
	for _, id := range userIDs {
		f.waiting.entries = append(f.waiting.entries, waitinglist.WaitingListUser{
			ID: "w-" + id, UserID: id, EventID: eventID, DateJoined: fixedTime.Add(-time.Hour),
		})
	}
}

// --- ExecuteToggleBooking ---

func TestExecuteToggleBooking_OpensNewBooking(t *testing.T) {
	f := newStudioFixture()
	f.joinWaitingList("ev-1", student.ID)

	res, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: "ev-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Open || res.Booking.Status != booking.StatusOpen {
		t.Errorf("expected an open booking, got %+v", res.Booking)
	}
	if res.Booking.Paid {
		t.Error("expected paid class booking to be unpaid")
	}
	if res.SpacesLeft != 1 {
		t.Errorf("expected 1 space left, got %d", res.SpacesLeft)
	}
	if onList, _ := f.waiting.Exists(context.Background(), student.ID, "ev-1"); onList {
		t.Error("expected user to be removed from the waiting list")
	}
	if mails := f.mailer.byTemplate("booking_user"); len(mails) != 1 || mails[0].Data["Action"] != "opened" {
		t.Errorf("expected one booking_user mail with action opened, got %+v", mails)
	}
	if len(f.mailer.byTemplate("booking_studio")) != 1 {
		t.Error("expected the studio to be emailed")
	}
	if !f.log.contains("has been opened") {
		t.Error("expected activity log entry for the booking")
	}
}

func TestExecuteToggleBooking_FreeEventIsPaid(t *testing.T) {
	ev := testEvent()
	ev.Cost = 0
	f := newStudioFixture(ev)

	res, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: ev.ID}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Booking.Paid {
		t.Error("expected booking on a free event to be marked paid")
	}
}

func TestExecuteToggleBooking_OutstandingFees(t *testing.T) {
	f := newStudioFixture()
	old := f.book("b-old", student.ID, "ev-old", true)
	old.CancellationFeeIncurred = true
	f.bookings.byID[old.ID] = old

	_, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: "ev-1"}, f.bookingDeps())
	if !errors.Is(err, ErrOutstandingFees) {
		t.Fatalf("expected ErrOutstandingFees, got %v", err)
	}
}

func TestExecuteToggleBooking_EventFull(t *testing.T) {
	f := newStudioFixture()
	f.fillEvent("ev-1", "u-a", "u-b")

	_, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: "ev-1"}, f.bookingDeps())
	var uerr *UserError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UserError, got %v", err)
	}
	if uerr.Msg != "Sorry, this class is now full" {
		t.Errorf("unexpected message %q", uerr.Msg)
	}
	if !errors.Is(err, booking.ErrEventFull) {
		t.Error("expected error to wrap booking.ErrEventFull")
	}
}

func TestExecuteToggleBooking_CancelledEvent(t *testing.T) {
	ev := testEvent()
	ev.Cancelled = true
	f := newStudioFixture(ev)

	_, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: ev.ID}, f.bookingDeps())
	var uerr *UserError
	if !errors.As(err, &uerr) || uerr.Msg != "Sorry, this class has been cancelled" {
		t.Fatalf("expected cancelled event error, got %v", err)
	}
}

func TestExecuteToggleBooking_ReopensCancelledBooking(t *testing.T) {
	f := newStudioFixture()
	b := f.book("b-1", student.ID, "ev-1", false)
	b.Status = booking.StatusCancelled
	f.bookings.byID[b.ID] = b

	res, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: "ev-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Booking.ID != "b-1" {
		t.Errorf("expected existing booking to be reopened, got %s", res.Booking.ID)
	}
	if !res.Booking.DateRebooked.Equal(fixedTime) {
		t.Errorf("expected DateRebooked=%v, got %v", fixedTime, res.Booking.DateRebooked)
	}
	if !f.log.contains("has been reopened") {
		t.Error("expected reopened log entry")
	}
}

func TestExecuteToggleBooking_CancelsInsideWindowWithRefund(t *testing.T) {
	f := newStudioFixture()
	b := f.book("b-1", student.ID, "ev-1", true)
	b.InvoiceID = "inv-1"
	f.bookings.byID[b.ID] = b
	f.invoices.byID["inv-1"] = invoice.Invoice{ID: "inv-1", InvoiceID: "INV1", Username: student.Email, Paid: true, StripePaymentIntentID: "pi_paid"}
	f.gateway.intents["pi_paid"] = paidIntent("pi_paid", "b-1", 1000)

	res, err := ExecuteToggleBooking(context.Background(), ToggleBookingInput{UserID: student.ID, EventID: "ev-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Open {
		t.Error("expected booking to be closed")
	}
	got := f.bookings.byID["b-1"]
	if got.Status != booking.StatusCancelled || got.Paid {
		t.Errorf("expected CANCELLED and unpaid, got status=%s paid=%v", got.Status, got.Paid)
	}
	if f.gateway.refunds["pi_paid"] != 1000 {
		t.Errorf("expected refund of the charged 1000p, got %d", f.gateway.refunds["pi_paid"])
	}
	mails := f.mailer.byTemplate("booking_cancelled")
	if len(mails) != 1 || mails[0].Data["Refunded"] != true {
		t.Errorf("expected booking_cancelled mail with refund, got %+v", mails)
	}
}

// --- ExecuteCancelBooking ---

func TestExecuteCancelBooking_LatePaidBecomesNoShowWithFee(t *testing.T) {
	ev := testEvent()
	ev.Date = fixedTime.Add(12 * time.Hour)
	ev.CancellationFee = 500
	f := newStudioFixture(ev)
	f.book("b-1", student.ID, ev.ID, true)

	res, err := ExecuteCancelBooking(context.Background(), CancelBookingInput{UserID: student.ID, BookingID: "b-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.LateCancel || !res.FeeCharged {
		t.Errorf("expected late cancel with fee, got %+v", res)
	}
	got := f.bookings.byID["b-1"]
	if got.Status != booking.StatusOpen || !got.NoShow {
		t.Errorf("expected paid late cancel to be an OPEN no-show, got status=%s no_show=%v", got.Status, got.NoShow)
	}
	if !got.CancellationFeeIncurred || !got.Paid {
		t.Errorf("expected fee incurred and payment kept, got %+v", got)
	}
	if len(f.gateway.refunds) != 0 {
		t.Error("expected no refund for a late cancellation")
	}
	if !f.log.contains("Cancellation fee of £5.00 incurred") {
		t.Error("expected fee log entry")
	}
}

func TestExecuteCancelBooking_LateUnpaidIsCancelled(t *testing.T) {
	ev := testEvent()
	ev.Date = fixedTime.Add(2 * time.Hour)
	f := newStudioFixture(ev)
	f.book("b-1", student.ID, ev.ID, false)

	res, err := ExecuteCancelBooking(context.Background(), CancelBookingInput{UserID: student.ID, BookingID: "b-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Booking.Status != booking.StatusCancelled || res.Booking.NoShow {
		t.Errorf("expected CANCELLED, got %+v", res.Booking)
	}
	if res.FeeCharged {
		t.Error("expected no fee on an event without a cancellation fee")
	}
}

func TestExecuteCancelBooking_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *studioFixture)
		userID  string
		wantErr error
	}{
		{
			name:    "another user's booking",
			setup:   func(f *studioFixture) { f.book("b-1", "u-other", "ev-1", false) },
			userID:  student.ID,
			wantErr: ErrNotYourBooking,
		},
		{
			name: "already cancelled",
			setup: func(f *studioFixture) {
				b := f.book("b-1", student.ID, "ev-1", false)
				b.Status = booking.StatusCancelled
				f.bookings.byID[b.ID] = b
			},
			userID:  student.ID,
			wantErr: booking.ErrAlreadyCancelled,
		},
		{
			name: "event started",
			setup: func(f *studioFixture) {
				ev := f.events.byID["ev-1"]
				ev.Date = fixedTime.Add(-time.Hour)
				f.events.put(ev)
				f.book("b-1", student.ID, "ev-1", false)
			},
			userID:  student.ID,
			wantErr: ErrEventPast,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStudioFixture()
			tt.setup(f)
			_, err := ExecuteCancelBooking(context.Background(), CancelBookingInput{UserID: tt.userID, BookingID: "b-1"}, f.bookingDeps())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// --- waiting list ---

func TestExecuteCancelBooking_AutoBooksFromWaitingList(t *testing.T) {
	f := newStudioFixture()
	f.fillEvent("ev-1", "u-a", "u-b")
	f.addAccount(otherStudent("u-c"))
	f.joinWaitingList("ev-1", "u-c", student.ID)
	f.studio.AutoBookEmails = []string{"SAM@example.com"}

	if _, err := ExecuteCancelBooking(context.Background(), CancelBookingInput{UserID: "u-a", BookingID: "b-u-a"}, f.bookingDeps()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, found, _ := f.bookings.GetByUserAndEvent(context.Background(), student.ID, "ev-1")
	if !found || !b.IsActive() {
		t.Fatal("expected auto-book user to hold the freed place")
	}
	if onList, _ := f.waiting.Exists(context.Background(), student.ID, "ev-1"); onList {
		t.Error("expected auto-booked user to leave the waiting list")
	}
	if len(f.mailer.byTemplate("autobook")) != 1 {
		t.Error("expected autobook email")
	}
	if len(f.mailer.byTemplate("waiting_list")) != 0 {
		t.Error("expected no waiting list email once the space was taken")
	}
	if !f.log.contains("autobooked") {
		t.Error("expected autobook log entry")
	}
}

func TestExecuteNotifyWaitingList_EmailsEveryone(t *testing.T) {
	f := newStudioFixture()
	f.fillEvent("ev-1", "u-a")
	f.addAccount(otherStudent("u-c"))
	f.joinWaitingList("ev-1", "u-c", student.ID)

	res, err := ExecuteNotifyWaitingList(context.Background(), NotifyWaitingListInput{EventID: "ev-1"}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AutoBooked != "" {
		t.Errorf("expected nobody auto-booked, got %s", res.AutoBooked)
	}
	mails := f.mailer.byTemplate("waiting_list")
	if len(mails) != 1 || len(mails[0].Bcc) != 2 || len(mails[0].To) != 0 {
		t.Fatalf("expected one Bcc email to both users, got %+v", mails)
	}
	if !f.log.contains("Waiting list email sent to user(s) u-c@example.com, sam@example.com") {
		t.Errorf("unexpected log entries %+v", f.log.entries)
	}
}

func TestExecuteNotifyWaitingList_CancelledEventIsSilent(t *testing.T) {
	ev := testEvent()
	ev.Cancelled = true
	f := newStudioFixture(ev)
	f.joinWaitingList(ev.ID, student.ID)

	if _, err := ExecuteNotifyWaitingList(context.Background(), NotifyWaitingListInput{EventID: ev.ID}, f.bookingDeps()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.mailer.sent) != 0 {
		t.Errorf("expected no mail, got %d", len(f.mailer.sent))
	}
}

func TestExecuteToggleWaitingList_JoinAndLeave(t *testing.T) {
	f := newStudioFixture()
	deps := f.bookingDeps()
	in := ToggleWaitingListInput{UserID: student.ID, EventID: "ev-1"}

	joined, err := ExecuteToggleWaitingList(context.Background(), in, deps)
	if err != nil || !joined {
		t.Fatalf("expected join, got joined=%v err=%v", joined, err)
	}
	joined, err = ExecuteToggleWaitingList(context.Background(), in, deps)
	if err != nil || joined {
		t.Fatalf("expected leave, got joined=%v err=%v", joined, err)
	}
	if len(f.waiting.entries) != 0 {
		t.Errorf("expected empty waiting list, got %d", len(f.waiting.entries))
	}
	if !f.log.contains("has joined the waiting list") || !f.log.contains("has left the waiting list") {
		t.Error("expected join and leave log entries")
	}
}

// --- register ---

func TestExecuteRegisterAddBooking_CreatesAndRemovesFromWaitingList(t *testing.T) {
	f := newStudioFixture()
	f.joinWaitingList("ev-1", student.ID)

	b, err := ExecuteRegisterAddBooking(context.Background(), RegisterAddBookingInput{EventID: "ev-1", UserID: student.ID, AdminID: admin.ID}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.IsActive() {
		t.Error("expected active booking")
	}
	if len(f.waiting.entries) != 0 {
		t.Error("expected user removed from waiting list")
	}
	if !f.log.contains("created by admin user admin") || !f.log.contains("has been removed from the waiting list") {
		t.Errorf("unexpected log entries %+v", f.log.entries)
	}
}

func TestExecuteRegisterAddBooking_Refusals(t *testing.T) {
	t.Run("already open", func(t *testing.T) {
		f := newStudioFixture()
		f.book("b-1", student.ID, "ev-1", false)
		_, err := ExecuteRegisterAddBooking(context.Background(), RegisterAddBookingInput{EventID: "ev-1", UserID: student.ID, AdminID: admin.ID}, f.bookingDeps())
		if !errors.Is(err, ErrOpenBookingExists) {
			t.Errorf("expected ErrOpenBookingExists, got %v", err)
		}
	})
	t.Run("full", func(t *testing.T) {
		f := newStudioFixture()
		f.fillEvent("ev-1", "u-a", "u-b")
		_, err := ExecuteRegisterAddBooking(context.Background(), RegisterAddBookingInput{EventID: "ev-1", UserID: student.ID, AdminID: admin.ID}, f.bookingDeps())
		var uerr *UserError
		if !errors.As(err, &uerr) || uerr.Msg != "Class is now full, cannot reopen booking" {
			t.Errorf("expected full error, got %v", err)
		}
	})
}

func TestExecuteToggleAttended_Attended(t *testing.T) {
	f := newStudioFixture()
	f.book("b-1", student.ID, "ev-1", true)

	res, err := ExecuteToggleAttended(context.Background(), ToggleAttendedInput{BookingID: "b-1", Attendance: AttendanceAttended, AdminID: admin.ID}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Attended || res.UserID != student.ID {
		t.Errorf("unexpected result %+v", res)
	}
	if res.SpacesLeft != "1 / 2" || !res.CanAddMore {
		t.Errorf("expected 1 / 2 spaces and can add more, got %q %v", res.SpacesLeft, res.CanAddMore)
	}
	if res.FeeText != "-" || res.OutstandingFeesTotal != "£0.00" {
		t.Errorf("unexpected fee fields %+v", res)
	}
	if !f.log.contains("marked as attended") {
		t.Error("expected attendance log entry")
	}
}

func TestExecuteToggleAttended_NoShowOnFullEventNotifiesWaitingList(t *testing.T) {
	f := newStudioFixture()
	f.book("b-1", student.ID, "ev-1", true)
	f.fillEvent("ev-1", "u-a")
	f.addAccount(otherStudent("u-c"))
	f.joinWaitingList("ev-1", "u-c")

	res, err := ExecuteToggleAttended(context.Background(), ToggleAttendedInput{BookingID: "b-1", Attendance: AttendanceNoShow, AdminID: admin.ID}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Attended || !f.bookings.byID["b-1"].NoShow {
		t.Error("expected booking to be a no-show")
	}
	if len(f.mailer.byTemplate("waiting_list")) != 1 {
		t.Error("expected waiting list to be emailed about the freed space")
	}
}

func TestExecuteToggleAttended_FullEventAlert(t *testing.T) {
	f := newStudioFixture()
	b := f.book("b-1", student.ID, "ev-1", false)
	b.Status = booking.StatusCancelled
	f.bookings.byID[b.ID] = b
	f.fillEvent("ev-1", "u-a", "u-b")
	saves := f.bookings.saves

	res, err := ExecuteToggleAttended(context.Background(), ToggleAttendedInput{BookingID: "b-1", Attendance: AttendanceAttended, AdminID: admin.ID}, f.bookingDeps())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Alert != "Class is now full, cannot reopen booking." {
		t.Errorf("unexpected alert %q", res.Alert)
	}
	if f.bookings.saves != saves || len(f.log.entries) != 0 {
		t.Error("expected nothing saved or logged")
	}
}

func TestExecuteToggleAttended_InvalidAttendance(t *testing.T) {
	f := newStudioFixture()
	f.book("b-1", student.ID, "ev-1", true)
	_, err := ExecuteToggleAttended(context.Background(), ToggleAttendedInput{BookingID: "b-1", Attendance: "maybe", AdminID: admin.ID}, f.bookingDeps())
	if !errors.Is(err, ErrInvalidAttendance) {
		t.Errorf("expected ErrInvalidAttendance, got %v", err)
	}
}

// --- fees ---

func TestExecuteToggleFees(t *testing.T) {
	ev := testEvent()
	ev.CancellationFee = 750
	f := newStudioFixture(ev)
	b := f.book("b-1", student.ID, ev.ID, true)
	b.CancellationFeeIncurred = true
	f.bookings.byID[b.ID] = b
	deps := f.bookingDeps()
	in := ToggleFeeInput{BookingID: "b-1", AdminID: admin.ID}

	owing, total, err := OutstandingFeesForUser(context.Background(), f.bookings, f.events, student.ID)
	if err != nil || !owing || total != 750 {
		t.Fatalf("expected 750p outstanding, got owing=%v total=%d err=%v", owing, total, err)
	}

	paid, err := ExecuteToggleFeePaid(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !paid.CancellationFeePaid {
		t.Error("expected fee to be paid")
	}
	if !f.log.contains("Cancellation fee marked as paid for booking b-1") {
		t.Errorf("unexpected log entries %+v", f.log.entries)
	}

	status, err := ExecuteToggleFeeIncurred(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := f.bookings.byID["b-1"]
	if status != "removed" || got.CancellationFeeIncurred || got.CancellationFeePaid {
		t.Errorf("expected fee removed and paid cleared, got status=%s booking=%+v", status, got)
	}

	// toggling paid on a booking with no fee is a no-op
	unchanged, err := ExecuteToggleFeePaid(context.Background(), in, deps)
	if err != nil || unchanged.CancellationFeePaid {
		t.Errorf("expected no-op, got %+v err=%v", unchanged, err)
	}
}
