package features

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/cucumber/godog"
	"github.com/jmoiron/sqlx"

	"musicstore/internal/cart"
	"musicstore/internal/domain"
	"musicstore/internal/events"
	"musicstore/internal/repos"
	"musicstore/internal/services"
)

type checkoutTestContext struct {
	db       *sqlx.DB
	users    *repos.UserRepo
	inv      *repos.InventoryRepo
	coupons  *repos.CouponRepo
	checkout *services.CheckoutService
	account  *services.AccountService

	cart   cart.Cart
	user   *domain.User
	result services.CheckoutResult
	err    error
}

func (c *checkoutTestContext) reset() error {
	if c.db != nil {
		_ = c.db.Close()
	}
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:")
	if err != nil {
		return err
	}
	c.db = db
	c.users = repos.NewUserRepo(db)
	c.inv = repos.NewInventoryRepo(db)
	c.coupons = repos.NewCouponRepo(db)
	orders := repos.NewOrderRepo(db)
	addrs := repos.NewAddressRepo(db)
	c.checkout = services.NewCheckoutService(db, orders, c.inv, addrs,
		services.NewCouponService(c.coupons), &events.Recorder{})
	c.account = services.NewAccountService(orders, addrs)
	c.cart = cart.Cart{}
	c.user = nil
	c.result = services.CheckoutResult{}
	c.err = nil
	return nil
}

func (c *checkoutTestContext) aProductPricedWithStock(id int64, price string, stock int) error {
	_, err := c.db.Exec(`
	  INSERT INTO products(id, product_name, price, stock_quantity, genre_id, artist_id)
	  VALUES(?, ?, ?, ?, 1, 1)`, id, fmt.Sprintf("Record %d", id), price, stock)
	return err
}

func (c *checkoutTestContext) aCouponWorthPercent(code string, pct int, state string) error {
	cp := domain.Coupon{Code: code, DiscountPercent: pct, Active: state == "active"}
	return c.coupons.Create(context.Background(), &cp)
}

func (c *checkoutTestContext) theCouponIs(code, state string) error {
	cp, err := c.coupons.ByCode(context.Background(), code)
	if err != nil {
		return err
	}
	return c.coupons.SetActive(context.Background(), cp.ID, state == "active")
}

func (c *checkoutTestContext) theCouponIsSwitchedOff(code string) error {
	return c.theCouponIs(code, "inactive")
}

func (c *checkoutTestContext) theCart(raw string) error {
	c.cart = cart.Parse(raw)
	if c.cart.Empty() {
		return fmt.Errorf("cart %q did not parse", raw)
	}
	return nil
}

func (c *checkoutTestContext) productHasItsStockSetTo(id int64, qty int) error {
	return c.inv.SetQty(context.Background(), id, qty)
}

func (c *checkoutTestContext) checksOut(userID string, addr services.AddressForm, coupon string) error {
	u, err := c.users.ByID(context.Background(), userID)
	if err != nil {
		return err
	}
	c.user = u
	c.result, c.err = c.checkout.Checkout(context.Background(), services.CheckoutRequest{
		User:       u,
		Cart:       c.cart,
		Address:    addr,
		CouponCode: coupon,
	})
	return nil
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

func (c *checkoutTestContext) checksOutWithAValidAddress(userID string) error {
	return c.checksOut(userID, validAddress(), "")
}

func (c *checkoutTestContext) checksOutWithAValidAddressAndCoupon(userID, code string) error {
	return c.checksOut(userID, validAddress(), code)
}

func (c *checkoutTestContext) checksOutWithAnInvalidAddress(userID string) error {
	addr := validAddress()
	addr.PostalCode = "!"
	addr.FullName = ""
	return c.checksOut(userID, addr, "")
}

func (c *checkoutTestContext) order() (services.OrderView, error) {
	if c.err != nil {
		return services.OrderView{}, fmt.Errorf("checkout failed: %w", c.err)
	}
	return c.account.Order(context.Background(), c.user, c.result.OrderID)
}

func (c *checkoutTestContext) theOrderIs(status string) error {
	v, err := c.order()
	if err != nil {
		return err
	}
	if string(v.Status) != status {
		return fmt.Errorf("order status %q, want %q", v.Status, status)
	}
	return nil
}

func (c *checkoutTestContext) theOrderHasALine(productID int64, qty int, price string) error {
	v, err := c.order()
	if err != nil {
		return err
	}
	if len(v.Lines) != 1 {
		return fmt.Errorf("want exactly one line, got %d", len(v.Lines))
	}
	l := v.Lines[0]
	if l.ProductID != productID || l.Quantity != qty || l.Price.StringFixed(2) != price {
		return fmt.Errorf("unexpected line %+v", l)
	}
	return nil
}

func (c *checkoutTestContext) productHasStock(id int64, want int) error {
	got, err := c.inv.Qty(context.Background(), id)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("product %d stock %d, want %d", id, got, want)
	}
	return nil
}

func (c *checkoutTestContext) theOrderTotalIs(want string) error {
	v, err := c.order()
	if err != nil {
		return err
	}
	if got := v.Total.StringFixed(2); got != want {
		return fmt.Errorf("total %s, want %s", got, want)
	}
	return nil
}

func (c *checkoutTestContext) rejectedWithFieldErrors() error {
	var ve *services.ValidationError
	if !errors.As(c.err, &ve) {
		return fmt.Errorf("want validation error, got %v", c.err)
	}
	if len(ve.Fields) == 0 {
		return errors.New("validation error without fields")
	}
	return nil
}

func (c *checkoutTestContext) reportsNothingAvailable() error {
	if !errors.Is(c.err, services.ErrNothingAvailable) {
		return fmt.Errorf("want ErrNothingAvailable, got %v", c.err)
	}
	return nil
}

func (c *checkoutTestContext) noOrderExists() error {
	var n int
	if err := c.db.Get(&n, `SELECT COUNT(*) FROM orders`); err != nil {
		return err
	}
	if n != 0 {
		return fmt.Errorf("%d orders exist", n)
	}
	return nil
}

func (c *checkoutTestContext) theCartStillHolds(raw string) error {
	if want := cart.Parse(raw); !reflect.DeepEqual(want, c.cart) {
		return fmt.Errorf("cart %v, want %v", c.cart, want)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.db != nil {
			_ = tc.db.Close()
			tc.db = nil
		}
		return ctx, nil
	})

	// Given
	ctx.Step(`^a product (\d+) priced "([^"]*)" with stock (\d+)$`, tc.aProductPricedWithStock)
	ctx.Step(`^a coupon "([^"]*)" worth (\d+) percent that is (active|inactive)$`, tc.aCouponWorthPercent)
	ctx.Step(`^the coupon "([^"]*)" is (active|inactive)$`, tc.theCouponIs)
	ctx.Step(`^the cart (\{.*\})$`, tc.theCart)
	ctx.Step(`^product (\d+) has its stock set to (\d+)$`, tc.productHasItsStockSetTo)

	// When
	ctx.Step(`^"([^"]*)" checks out with a valid address$`, tc.checksOutWithAValidAddress)
	ctx.Step(`^"([^"]*)" checks out with a valid address and coupon "([^"]*)"$`, tc.checksOutWithAValidAddressAndCoupon)
	ctx.Step(`^"([^"]*)" checks out with an invalid address$`, tc.checksOutWithAnInvalidAddress)
	ctx.Step(`^the coupon "([^"]*)" is switched off$`, tc.theCouponIsSwitchedOff)

	// Then
	ctx.Step(`^the order is "([^"]*)"$`, tc.theOrderIs)
	ctx.Step(`^the order has a line for product (\d+) with quantity (\d+) at "([^"]*)"$`, tc.theOrderHasALine)
	ctx.Step(`^product (\d+) has stock (\d+)$`, tc.productHasStock)
	ctx.Step(`^the order total is "([^"]*)"$`, tc.theOrderTotalIs)
	ctx.Step(`^the checkout is rejected with field errors$`, tc.rejectedWithFieldErrors)
	ctx.Step(`^the checkout reports nothing available$`, tc.reportsNothingAvailable)
	ctx.Step(`^no order exists$`, tc.noOrderExists)
	ctx.Step(`^the cart still holds (\{.*\})$`, tc.theCartStillHolds)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
