package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"studio/internal/domain/booking"
	"studio/internal/domain/voucher"
)

// PurchaseGiftVoucherInput carries the gift voucher purchase form.
type PurchaseGiftVoucherInput struct {
	TypeID         string
	PurchaserEmail string
	Name           string // recipient name shown on the voucher
	Message        string
}

// PurchaseGiftVoucherResult is the new unpaid gift and its voucher.
type PurchaseGiftVoucherResult struct {
	Gift    voucher.GiftVoucher
	Voucher voucher.Voucher
}

// ExecutePurchaseGiftVoucher creates an unactivated gift voucher awaiting payment.
// PRE: voucher type exists and is active
// POST: Voucher with a unique 10 character code (Activated=false); GiftVoucher Paid=false
func ExecutePurchaseGiftVoucher(ctx context.Context, input PurchaseGiftVoucherInput, deps PaymentDeps) (PurchaseGiftVoucherResult, error) {
	t, err := deps.Gifts.GetType(ctx, input.TypeID)
	if err != nil {
		return PurchaseGiftVoucherResult{}, fmt.Errorf("get gift voucher type: %w", err)
	}
	if !t.Active {
		return PurchaseGiftVoucherResult{}, &UserError{Msg: voucher.ErrInactiveType.Error(), Err: voucher.ErrInactiveType}
	}

	email := strings.TrimSpace(input.PurchaserEmail)
	now := deps.Now()
	gift := voucher.GiftVoucher{
		ID:             deps.GenerateID(),
		VoucherTypeID:  t.ID,
		PurchaserEmail: email,
		Name:           strings.TrimSpace(input.Name),
		Message:        strings.TrimSpace(input.Message),
		CreatedAt:      now,
	}
	if err := gift.Validate(); err != nil {
		return PurchaseGiftVoucherResult{}, &UserError{Msg: err.Error(), Err: err}
	}

	code, err := newGiftCode(ctx, deps.Vouchers)
	if err != nil {
		return PurchaseGiftVoucherResult{}, err
	}
	v := voucher.NewGift(deps.GenerateID(), code, t, email, gift.Name, gift.Message, now)
	if err := v.Validate(); err != nil {
		return PurchaseGiftVoucherResult{}, err
	}
	if err := deps.Vouchers.Save(ctx, v); err != nil {
		return PurchaseGiftVoucherResult{}, fmt.Errorf("save voucher: %w", err)
	}
	gift.VoucherID = v.ID
	if err := deps.Gifts.SaveGift(ctx, gift); err != nil {
		return PurchaseGiftVoucherResult{}, fmt.Errorf("save gift voucher: %w", err)
	}

	recordActivity(ctx, deps.ActivityLog, deps.GenerateID(), now,
		"Gift voucher %s (%s) created for purchaser %s", v.Code, t.Description(), email)
	slog.Info("payment_event", "event", "gift_voucher_created", "gift_id", gift.ID, "voucher_id", v.ID)
	return PurchaseGiftVoucherResult{Gift: gift, Voucher: v}, nil
}

// newGiftCode draws random codes until one is unused.
func newGiftCode(ctx context.Context, vouchers VoucherStore) (string, error) {
	for range 10 {
		code := booking.RandomString(voucher.GiftCodeLength)
		_, err := vouchers.GetByCode(ctx, code)
		if errors.Is(err, voucher.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check voucher code: %w", err)
		}
	}
	return "", errors.New("could not generate a unique gift voucher code")
}
