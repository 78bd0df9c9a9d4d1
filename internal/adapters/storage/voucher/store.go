package voucher

import (
	"context"

	domain "studio/internal/domain/voucher"
)

// Store persists vouchers and their redemptions.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Voucher, error)
	GetByCode(ctx context.Context, code string) (domain.Voucher, error)
	Save(ctx context.Context, value domain.Voucher) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, gifts bool) ([]domain.Voucher, error)
	CountUses(ctx context.Context, voucherID string) (int, error)
	CountUsesByUser(ctx context.Context, voucherID, userID string) (int, error)
	RecordUse(ctx context.Context, use domain.Use) error
}

// GiftStore persists gift voucher products and purchases.
type GiftStore interface {
	SaveType(ctx context.Context, value domain.GiftVoucherType) error
	GetType(ctx context.Context, id string) (domain.GiftVoucherType, error)
	ListTypes(ctx context.Context, activeOnly bool) ([]domain.GiftVoucherType, error)
	DeleteType(ctx context.Context, id string) error
	SaveGift(ctx context.Context, value domain.GiftVoucher) error
	GetGift(ctx context.Context, id string) (domain.GiftVoucher, error)
	GetGiftByVoucher(ctx context.Context, voucherID string) (domain.GiftVoucher, error)
	ListGiftsByInvoice(ctx context.Context, invoiceID string) ([]domain.GiftVoucher, error)
	ListUnpaidGifts(ctx context.Context, purchaserEmail string) ([]domain.GiftVoucher, error)
}
