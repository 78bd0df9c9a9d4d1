package voucher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/domain/voucher"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

func activeVoucher() voucher.Voucher {
	return voucher.Voucher{
		ID:         "v1",
		Code:       "SPRING",
		Kind:       voucher.KindItem,
		Discount:   10,
		StartDate:  now.Add(-24 * time.Hour),
		ExpiryDate: now.Add(24 * time.Hour),
		Activated:  true,
	}
}

func TestValidate(t *testing.T) {
	v := activeVoucher()
	require.NoError(t, v.Validate())

	v.Code = ""
	assert.ErrorIs(t, v.Validate(), voucher.ErrEmptyCode)

	v = activeVoucher()
	v.Discount = 0
	assert.ErrorIs(t, v.Validate(), voucher.ErrNoDiscount)

	v = activeVoucher()
	v.DiscountAmount = 500
	assert.ErrorIs(t, v.Validate(), voucher.ErrBothDiscounts)

	v = activeVoucher()
	v.Discount = 101
	assert.ErrorIs(t, v.Validate(), voucher.ErrInvalidPercent)

	v = activeVoucher()
	v.ExpiryDate = v.StartDate
	assert.ErrorIs(t, v.Validate(), voucher.ErrExpiryBeforeStart)
}

func TestValidateProperties_Order(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, activeVoucher().ValidateProperties(now, 0))
	})

	t.Run("expired wins over not activated", func(t *testing.T) {
		v := activeVoucher()
		v.ExpiryDate = now.Add(-time.Hour)
		v.Activated = false
		assert.EqualError(t, v.ValidateProperties(now, 0), "Voucher has expired")
	})

	t.Run("not activated wins over not started", func(t *testing.T) {
		v := activeVoucher()
		v.Activated = false
		v.StartDate = now.Add(time.Hour)
		assert.EqualError(t, v.ValidateProperties(now, 0), "Voucher has not been activated yet")
	})

	t.Run("not started", func(t *testing.T) {
		v := activeVoucher()
		v.StartDate = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		v.ExpiryDate = time.Time{}
		assert.EqualError(t, v.ValidateProperties(now, 0), "Voucher code is not valid until 01 Apr 26")
	})

	t.Run("total uses exhausted", func(t *testing.T) {
		v := activeVoucher()
		v.MaxVouchers = intPtr(3)
		assert.NoError(t, v.ValidateProperties(now, 2))
		assert.EqualError(t, v.ValidateProperties(now, 3), "Voucher code SPRING has limited number of total uses and has expired")
	})

	t.Run("errors are validation errors", func(t *testing.T) {
		v := activeVoucher()
		v.Activated = false
		var verr *voucher.ValidationError
		assert.ErrorAs(t, v.ValidateProperties(now, 0), &verr)
	})
}

func TestValidateForUser(t *testing.T) {
	v := activeVoucher()
	assert.NoError(t, v.ValidateForUser(100), "no per-user limit")

	v.MaxPerUser = intPtr(2)
	assert.NoError(t, v.ValidateForUser(1))
	assert.EqualError(t, v.ValidateForUser(2), "You have already used voucher code SPRING the maximum number of times (2)")
}

func TestApplyTo(t *testing.T) {
	tests := []struct {
		name   string
		pct    int
		amount int64
		cost   int64
		want   int64
	}{
		{"10 percent", 10, 0, 1000, 900},
		{"rounds half up", 10, 0, 995, 895},
		{"100 percent", 100, 0, 1000, 0},
		{"fixed amount", 0, 250, 1000, 750},
		{"fixed amount floors at zero", 0, 2000, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := voucher.Voucher{Discount: tt.pct, DiscountAmount: tt.amount}
			assert.Equal(t, tt.want, v.ApplyTo(tt.cost))
		})
	}
}

func TestCheckEventType(t *testing.T) {
	v := activeVoucher()
	assert.True(t, v.CheckEventType("workshop"))

	v.EventTypes = []string{"regular_session"}
	assert.True(t, v.CheckEventType("regular_session"))
	assert.False(t, v.CheckEventType("workshop"))
}

func TestNewGift(t *testing.T) {
	gt := voucher.GiftVoucherType{ID: "t1", DiscountAmount: 2000, Cost: 2000, EventTypes: []string{"workshop"}, Active: true}
	v := voucher.NewGift("v9", "ABCDEFGHJK", gt, "buyer@studio.test", "Kit", "Enjoy", now)

	assert.True(t, v.IsGift)
	assert.False(t, v.Activated)
	assert.Equal(t, voucher.KindItem, v.Kind)
	assert.Equal(t, int64(2000), v.DiscountAmount)
	assert.Equal(t, now.AddDate(1, 0, 0), v.ExpiryDate)
	require.NotNil(t, v.MaxVouchers)
	assert.Equal(t, 1, *v.MaxVouchers)
	require.NoError(t, v.Validate())

	assert.EqualError(t, v.ValidateProperties(now, 0), "Voucher has not been activated yet")
	v.Activate()
	assert.NoError(t, v.ValidateProperties(now, 0))
	assert.Equal(t, "£20.00 voucher (workshop)", gt.Description())
}
