package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Coupon struct {
	ID              int64        `db:"id" json:"id"`
	Code            string       `db:"code" json:"code"`
	DiscountPercent int          `db:"discount_percent" json:"discount_percent"`
	Active          bool         `db:"active" json:"active"`
	ValidFrom       sql.NullTime `db:"valid_from" json:"-"`
	ValidTo         sql.NullTime `db:"valid_to" json:"-"`
}

// ApplicableAt reports whether the coupon may be attached to a new order at now.
// Window bounds are inclusive.
func (c Coupon) ApplicableAt(now time.Time) bool {
	if !c.Active {
		return false
	}
	if c.ValidFrom.Valid && now.Before(c.ValidFrom.Time) {
		return false
	}
	if c.ValidTo.Valid && now.After(c.ValidTo.Time) {
		return false
	}
	return true
}

var hundred = decimal.NewFromInt(100)

// Apply reduces amount by the coupon percentage, rounded to cents.
func (c Coupon) Apply(amount decimal.Decimal) decimal.Decimal {
	pct := decimal.NewFromInt(int64(100 - c.DiscountPercent))
	return amount.Mul(pct).Div(hundred).Round(2)
}
