package domain

import "time"

// VoucherType selects how a voucher's value is interpreted.
type VoucherType string

const (
	VoucherTypePercentage VoucherType = "PERCENTAGE"
	VoucherTypeFixed      VoucherType = "FIXED"
)

// Voucher is a code-based discount with usage limits.
type Voucher struct {
	ID          string
	Code        string
	Type        VoucherType
	Value       float64
	MaxValue    int64
	MaxUses     int
	CurrentUses int
	ExpiresAt   time.Time
	SingleUse   bool
}
