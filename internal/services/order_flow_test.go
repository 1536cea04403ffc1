package services_test

import (
	"context"
	"testing"

	"musicstore/internal/cart"
	"musicstore/internal/domain"
	"musicstore/internal/events"
	"musicstore/internal/repos"
	"musicstore/internal/services"
)

// shop wires every service against one in-memory database.
type shop struct {
	users     *repos.UserRepo
	prods     *repos.ProductRepo
	inv       *repos.InventoryRepo
	orders    *repos.OrderRepo
	addrs     *repos.AddressRepo
	coupons   *repos.CouponRepo
	cart      *services.CartService
	couponSvc *services.CouponService
	checkout  *services.CheckoutService
	account   *services.AccountService
	published *events.Recorder
}

func newShop(t *testing.T) *shop {
	t.Helper()
	db := memdb(t)
	s := &shop{
		users:     repos.NewUserRepo(db),
		prods:     repos.NewProductRepo(db),
		inv:       repos.NewInventoryRepo(db),
		orders:    repos.NewOrderRepo(db),
		addrs:     repos.NewAddressRepo(db),
		coupons:   repos.NewCouponRepo(db),
		published: &events.Recorder{},
	}
	s.cart = services.NewCartService(s.prods)
	s.couponSvc = services.NewCouponService(s.coupons)
	s.checkout = services.NewCheckoutService(db, s.orders, s.inv, s.addrs, s.couponSvc, s.published)
	s.account = services.NewAccountService(s.orders, s.addrs)
	return s
}

func (s *shop) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := s.users.ByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func (s *shop) stock(t *testing.T, productID int64) int {
	t.Helper()
	q, err := s.inv.Qty(context.Background(), productID)
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func validAddress() services.AddressForm {
	return services.AddressForm{
		FullName:    "Alice Liddell",
		Phone:       "+1 555 0100",
		City:        "Springfield",
		AddressLine: "742 Evergreen Terrace",
		PostalCode:  "49007",
	}
}

func TestOrderFlow_AddCartCheckout(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()

	c := cart.Cart{}
	for i := 0; i < 2; i++ {
		if err := s.cart.Add(ctx, c, 1); err != nil {
			t.Fatal(err)
		}
	}

	cv, err := s.cart.Read(ctx, c)
	if err != nil {
		t.Fatal(err)
	}
	if len(cv.Lines) != 1 || cv.Total.String() != "59.98" {
		t.Fatalf("bad cart view: %+v", cv)
	}

	res, err := s.checkout.Checkout(ctx, services.CheckoutRequest{
		User:    s.user(t, "u-alice"),
		Cart:    c,
		Address: validAddress(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.OrderID == 0 {
		t.Fatal("no order id")
	}
	if res.Clamped {
		t.Fatalf("nothing should be clamped: %+v", res)
	}

	// stock decremented from 12 to 10
	if qty := s.stock(t, 1); qty != 10 {
		t.Fatalf("want qty=10, got %d", qty)
	}

	v, err := s.account.Order(ctx, s.user(t, "u-alice"), res.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != domain.StatusPlaced || v.Total.String() != "59.98" {
		t.Fatalf("unexpected order view: %+v", v)
	}
	if v.Address == nil || v.Address.City != "Springfield" {
		t.Fatalf("address not attached: %+v", v.Address)
	}
	if n := len(s.published.Events()); n != 1 {
		t.Fatalf("want 1 published event, got %d", n)
	}
}
