package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"musicstore/internal/cart"
	"musicstore/internal/domain"
	"musicstore/internal/events"
	applog "musicstore/internal/log"
	"musicstore/internal/repos"
	"musicstore/internal/validate"
)

// decrementAttempts bounds how often a line is re-read after the guarded
// stock update lost a race.
const decrementAttempts = 3

// DefaultPublishTimeout bounds the post-commit event write so a slow broker
// cannot hold the checkout response.
const DefaultPublishTimeout = 2 * time.Second

// AddressForm is the raw shipping input from the checkout form.
type AddressForm struct {
	FullName    string
	Phone       string
	City        string
	AddressLine string
	PostalCode  string
}

// Validate returns the cleaned address or a *ValidationError.
func (f AddressForm) Validate() (domain.ShippingAddress, error) {
	var (
		a  domain.ShippingAddress
		ve ValidationError
		ok bool
	)
	if a.FullName, ok = validate.Text(f.FullName, 100); !ok {
		ve.add("full_name", "Please enter your full name.")
	}
	if a.Phone, ok = validate.Phone(f.Phone); !ok {
		ve.add("phone", "Please enter a valid phone number.")
	}
	if a.City, ok = validate.Text(f.City, 100); !ok {
		ve.add("city", "Please enter a city.")
	}
	if a.AddressLine, ok = validate.Text(f.AddressLine, 200); !ok {
		ve.add("address_line", "Please enter a street address.")
	}
	if a.PostalCode, ok = validate.PostalCode(f.PostalCode); !ok {
		ve.add("postal_code", "Please enter a valid postal code.")
	}
	if !ve.empty() {
		return domain.ShippingAddress{}, &ve
	}
	return a, nil
}

type CheckoutRequest struct {
	User       *domain.User
	Cart       cart.Cart
	Address    AddressForm
	CouponCode string
}

// PlacedLine is one cart line as it ended up on the order.
type PlacedLine struct {
	ProductID int64
	Requested int
	Quantity  int
	Price     decimal.Decimal
}

type CheckoutResult struct {
	OrderID int64
	Lines   []PlacedLine
	Clamped bool // some line got less than requested or was dropped
	Coupon  *domain.Coupon
}

func (r CheckoutResult) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range r.Lines {
		sum = sum.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

type CheckoutService struct {
	DB        *sqlx.DB
	Orders    *repos.OrderRepo
	Inv       *repos.InventoryRepo
	Addresses *repos.AddressRepo
	Coupons   *CouponService
	Events    events.Publisher
	Now       func() time.Time

	// PublishTimeout caps PublishOrderPlaced; zero means DefaultPublishTimeout.
	PublishTimeout time.Duration
}

func NewCheckoutService(db *sqlx.DB, orders *repos.OrderRepo, inv *repos.InventoryRepo,
	addrs *repos.AddressRepo, coupons *CouponService, pub events.Publisher) *CheckoutService {
	if pub == nil {
		pub = events.Noop{}
	}
	return &CheckoutService{
		DB: db, Orders: orders, Inv: inv, Addresses: addrs,
		Coupons: coupons, Events: pub, Now: time.Now,
		PublishTimeout: DefaultPublishTimeout,
	}
}

// Checkout turns the cart into a Placed order. Lines are clamped to the stock
// on hand; lines with no stock are dropped. Everything from the address
// insert to the status change commits or rolls back together.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	var res CheckoutResult
	if req.User == nil {
		return res, ErrForbidden
	}
	if req.Cart.Empty() {
		return res, ErrEmptyCart
	}

	coupon, err := s.Coupons.Resolve(ctx, req.CouponCode)
	if err != nil {
		applog.Error(nil, "checkout.coupon.lookup", err, map[string]any{"user_id": req.User.ID})
		coupon = nil
	}
	res.Coupon = coupon

	addr, err := req.Address.Validate()
	if err != nil {
		return res, err
	}
	addr.UserID = req.User.ID

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	if err := s.Addresses.Insert(ctx, tx, &addr); err != nil {
		return res, fmt.Errorf("insert address: %w", err)
	}
	orderID, err := s.Orders.EnsurePending(ctx, tx, req.User.ID, now)
	if err != nil {
		return res, fmt.Errorf("pending order: %w", err)
	}
	if err := s.Orders.ClearItems(ctx, tx, orderID); err != nil {
		return res, fmt.Errorf("clear items: %w", err)
	}

	for _, id := range req.Cart.IDs() {
		requested := req.Cart[id]
		line, ok, err := s.reserve(ctx, tx, orderID, id, requested)
		if err != nil {
			return res, err
		}
		if !ok {
			res.Clamped = true
			continue
		}
		if line.Quantity < requested {
			res.Clamped = true
		}
		res.Lines = append(res.Lines, line)
	}
	if len(res.Lines) == 0 {
		return CheckoutResult{Coupon: coupon, Clamped: true}, ErrNothingAvailable
	}

	if _, err := domain.StatusPending.Transition(domain.StatusPlaced); err != nil {
		return res, err
	}
	var couponID sql.NullInt64
	if coupon != nil {
		couponID = sql.NullInt64{Int64: coupon.ID, Valid: true}
	}
	if err := s.Orders.Place(ctx, tx, orderID, addr.ID, couponID, now); err != nil {
		return res, fmt.Errorf("place order %d: %w", orderID, err)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.OrderID = orderID

	s.publish(ctx, req.User.ID, res, now)
	return res, nil
}

// reserve decrements stock for one line and records it on the order. ok is
// false when the product is gone or has nothing left.
func (s *CheckoutService) reserve(ctx context.Context, tx *sqlx.Tx, orderID, productID int64, requested int) (PlacedLine, bool, error) {
	for attempt := 0; attempt < decrementAttempts; attempt++ {
		row, err := s.Inv.LockStock(ctx, tx, productID)
		if repos.IsNotFound(err) {
			return PlacedLine{}, false, nil
		}
		if err != nil {
			return PlacedLine{}, false, fmt.Errorf("lock product %d: %w", productID, err)
		}
		qty := min(requested, row.Qty)
		if qty <= 0 {
			return PlacedLine{}, false, nil
		}
		err = s.Inv.Decrement(ctx, tx, productID, qty)
		if errors.Is(err, repos.ErrStockChanged) {
			continue
		}
		if err != nil {
			return PlacedLine{}, false, err
		}
		if err := s.Orders.InsertItem(ctx, tx, orderID, productID, qty, row.Price); err != nil {
			return PlacedLine{}, false, fmt.Errorf("insert item: %w", err)
		}
		return PlacedLine{ProductID: productID, Requested: requested, Quantity: qty, Price: row.Price}, true, nil
	}
	return PlacedLine{}, false, nil
}

func (s *CheckoutService) publish(ctx context.Context, userID string, res CheckoutResult, at time.Time) {
	ev := events.OrderPlaced{
		EventID:  uuid.NewString(),
		OrderID:  res.OrderID,
		UserID:   userID,
		Subtotal: res.Subtotal(),
		PlacedAt: at,
	}
	for _, l := range res.Lines {
		ev.Lines = append(ev.Lines, events.PlacedLine{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}
	if res.Coupon != nil {
		ev.CouponCode = res.Coupon.Code
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	// the order is committed; a client hanging up must not cancel the event
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Events.PublishOrderPlaced(pctx, ev); err != nil {
		applog.Error(nil, "order.event.publish", err, map[string]any{"order_id": res.OrderID})
	}
}

func (s *CheckoutService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
