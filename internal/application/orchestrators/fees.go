package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	domainAccount "studio/internal/domain/account"
	"studio/internal/domain/booking"
)

// ToggleFeeInput identifies the booking whose cancellation fee is being changed.
type ToggleFeeInput struct {
	BookingID string
	AdminID   string
}

// ExecuteToggleFeePaid marks an incurred cancellation fee as paid, or back to unpaid.
// Bookings without an incurred fee are returned unchanged.
func ExecuteToggleFeePaid(ctx context.Context, input ToggleFeeInput, deps BookingDeps) (booking.Booking, error) {
	b, err := deps.Bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if !b.CancellationFeeIncurred {
		return b, nil
	}
	user, admin, err := feeAccounts(ctx, deps, b.UserID, input.AdminID)
	if err != nil {
		return booking.Booking{}, err
	}
	if err := b.ToggleFeePaid(); err != nil {
		return booking.Booking{}, err
	}
	if err := deps.Bookings.Save(ctx, b); err != nil {
		return booking.Booking{}, fmt.Errorf("save booking: %w", err)
	}

	status := "unpaid"
	if b.CancellationFeePaid {
		status = "paid"
	}
	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"Cancellation fee marked as %s for booking %s (%s) by admin user %s", status, b.ID, userLabel(user), userLabel(admin))
	slog.Info("booking_event", "event", "fee_marked_"+status, "booking_id", b.ID)
	return b, nil
}

// ExecuteToggleFeeIncurred adds or removes a booking's cancellation fee.
// Returns the new fee status: "added" or "removed".
// POST: removing a fee also clears its paid flag
func ExecuteToggleFeeIncurred(ctx context.Context, input ToggleFeeInput, deps BookingDeps) (string, error) {
	b, err := deps.Bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return "", fmt.Errorf("get booking: %w", err)
	}
	user, admin, err := feeAccounts(ctx, deps, b.UserID, input.AdminID)
	if err != nil {
		return "", err
	}
	b.ToggleFeeIncurred()
	if err := deps.Bookings.Save(ctx, b); err != nil {
		return "", fmt.Errorf("save booking: %w", err)
	}

	status, logText := "removed", "removed from"
	if b.CancellationFeeIncurred {
		status, logText = "added", "added to"
	}
	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), deps.Now(),
		"Cancellation fee %s booking %s for %s by admin user %s", logText, b.ID, userLabel(user), userLabel(admin))
	slog.Info("booking_event", "event", "fee_"+status, "booking_id", b.ID)
	return status, nil
}

func feeAccounts(ctx context.Context, deps BookingDeps, userID, adminID string) (domainAccount.Account, domainAccount.Account, error) {
	user, err := deps.Accounts.GetByID(ctx, userID)
	if err != nil {
		return domainAccount.Account{}, domainAccount.Account{}, fmt.Errorf("get account: %w", err)
	}
	admin, err := deps.Accounts.GetByID(ctx, adminID)
	if err != nil {
		return domainAccount.Account{}, domainAccount.Account{}, fmt.Errorf("get admin account: %w", err)
	}
	return user, admin, nil
}
