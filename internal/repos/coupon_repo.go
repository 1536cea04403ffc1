package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type CouponRepo struct{ db *sqlx.DB }

func NewCouponRepo(db *sqlx.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponCols = `id, code, discount_percent, active, valid_from, valid_to`

// ByCode looks a coupon up case-insensitively; the window is checked by the caller.
func (r *CouponRepo) ByCode(ctx context.Context, code string) (domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+couponCols+` FROM coupons WHERE LOWER(code) = ?`),
		strings.ToLower(strings.TrimSpace(code)))
	return c, err
}

func (r *CouponRepo) Get(ctx context.Context, id int64) (domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`SELECT `+couponCols+` FROM coupons WHERE id = ?`), id)
	return c, err
}

func (r *CouponRepo) List(ctx context.Context) ([]domain.Coupon, error) {
	out := []domain.Coupon{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+couponCols+` FROM coupons ORDER BY code`)
	return out, err
}

func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	return r.db.GetContext(ctx, &c.ID, r.db.Rebind(`
	  INSERT INTO coupons(code, discount_percent, active, valid_from, valid_to)
	  VALUES(?, ?, ?, ?, ?)
	  RETURNING id
	`), c.Code, c.DiscountPercent, c.Active, c.ValidFrom, c.ValidTo)
}

func (r *CouponRepo) Update(ctx context.Context, c domain.Coupon) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE coupons SET code = ?, discount_percent = ?, active = ?, valid_from = ?, valid_to = ?
	  WHERE id = ?
	`), c.Code, c.DiscountPercent, c.Active, c.ValidFrom, c.ValidTo, c.ID)
	return mustAffect(res, err)
}

// SetActive toggles a coupon on or off.
func (r *CouponRepo) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE coupons SET active = ? WHERE id = ?`), active, id)
	return mustAffect(res, err)
}

func (r *CouponRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM coupons WHERE id = ?`), id)
	return mustAffect(res, err)
}
