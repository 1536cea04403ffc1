package services

import (
	"context"
	"strings"
	"time"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
)

type CouponService struct {
	Coupons *repos.CouponRepo
	Now     func() time.Time
}

func NewCouponService(coupons *repos.CouponRepo) *CouponService {
	return &CouponService{Coupons: coupons, Now: time.Now}
}

// Resolve maps a user-entered code to a coupon usable right now. Unknown,
// inactive and out-of-window codes resolve to nil without an error.
func (s *CouponService) Resolve(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	c, err := s.Coupons.ByCode(ctx, code)
	if repos.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !c.ApplicableAt(s.now()) {
		return nil, nil
	}
	return &c, nil
}

func (s *CouponService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
