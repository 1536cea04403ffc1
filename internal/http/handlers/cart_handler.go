package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/cart"
	applog "musicstore/internal/log"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type CartHandler struct {
	Cart         *services.CartService
	Checkout     *services.CheckoutService
	Account      *services.AccountService
	SecureCookie bool
}

func readCart(c *fiber.Ctx) cart.Cart {
	return cart.FromCookie(c.Cookies(cart.CookieName))
}

// writeCart stores crt in the cart cookie; an empty cart expires it.
func (h *CartHandler) writeCart(c *fiber.Ctx, crt cart.Cart) {
	ck := &fiber.Cookie{
		Name:     cart.CookieName,
		Value:    crt.CookieValue(),
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.SecureCookie,
	}
	if crt.Empty() {
		ck.Value = ""
		ck.Expires = time.Now().Add(-1 * time.Hour)
	} else {
		ck.Expires = time.Now().Add(30 * 24 * time.Hour)
	}
	c.Cookie(ck)
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	return h.page(c, fiber.StatusOK, readCart(c), fiber.Map{})
}

// page renders the cart with live prices. data carries form echoes, field
// errors and notices.
func (h *CartHandler) page(c *fiber.Ctx, status int, crt cart.Cart, data fiber.Map) error {
	cv, err := h.Cart.Read(c.UserContext(), crt)
	if err != nil {
		applog.Error(c, "cart.load", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load your cart"})
	}
	if _, ok := data["Address"]; !ok {
		data["Address"] = h.prefill(c)
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	data["Cart"] = cv
	c.Status(status)
	return render(c, "cart", data)
}

// prefill uses the user's most recent address for the checkout form.
func (h *CartHandler) prefill(c *fiber.Ctx) services.AddressForm {
	u := currentUser(c)
	if u == nil || h.Account == nil {
		return services.AddressForm{}
	}
	a, ok, err := h.Account.LastAddress(c.UserContext(), u)
	if err != nil || !ok {
		return services.AddressForm{}
	}
	return services.AddressForm{
		FullName: a.FullName, Phone: a.Phone, City: a.City,
		AddressLine: a.AddressLine, PostalCode: a.PostalCode,
	}
}

// Add is POST /cart with productId.
func (h *CartHandler) Add(c *fiber.Ctx) error {
	id, ok := validate.ID(c.FormValue("productId"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return c.Status(fiber.StatusBadRequest).SendString("missing productId")
	}
	crt := readCart(c)
	err := h.Cart.Add(c.UserContext(), crt, id)
	if errors.Is(err, services.ErrOutOfStock) {
		applog.Info(c, "cart.add.refused", map[string]any{"product": id})
		return h.page(c, fiber.StatusConflict, crt, fiber.Map{"Notice": "Sorry, that item is out of stock."})
	}
	if errors.Is(err, cart.ErrCartFull) {
		applog.Info(c, "cart.add.full", map[string]any{"product": id, "lines": crt.Len()})
		return h.page(c, fiber.StatusConflict, crt, fiber.Map{"Notice": "Your cart is full. Check out or remove an item first."})
	}
	if err != nil {
		return err
	}
	h.writeCart(c, crt)
	return c.Redirect("/cart")
}

// Update is POST /cart/update. action is inc, dec, remove or checkout.
func (h *CartHandler) Update(c *fiber.Ctx) error {
	action := c.FormValue("action")
	crt := readCart(c)
	if action == "checkout" {
		return h.checkout(c, crt)
	}

	id, ok := validate.ID(c.FormValue("productId"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return c.Redirect("/cart")
	}
	if err := crt.Apply(id, cart.Action(action)); err != nil {
		if errors.Is(err, cart.ErrCartFull) {
			return c.Redirect("/cart")
		}
		applog.Security(c, "validation.fail", map[string]any{"field": "action", "value": action})
		return c.Redirect("/cart")
	}
	h.writeCart(c, crt)
	return c.Redirect("/cart")
}

func addressForm(c *fiber.Ctx) services.AddressForm {
	return services.AddressForm{
		FullName:    c.FormValue("full_name"),
		Phone:       c.FormValue("phone"),
		City:        c.FormValue("city"),
		AddressLine: c.FormValue("address_line"),
		PostalCode:  c.FormValue("postal_code"),
	}
}

func (h *CartHandler) checkout(c *fiber.Ctx, crt cart.Cart) error {
	u := currentUser(c)
	if u == nil {
		return c.Redirect("/login")
	}
	addr := addressForm(c)
	code, ok := validate.CouponCode(c.FormValue("coupon"))
	if !ok {
		// a malformed code can never match, so it is dropped like an unknown one
		applog.Security(c, "validation.fail", map[string]any{"field": "coupon"})
		code = ""
	}

	res, err := h.Checkout.Checkout(c.UserContext(), services.CheckoutRequest{
		User: u, Cart: crt, Address: addr, CouponCode: code,
	})
	var ve *services.ValidationError
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		return c.Redirect("/cart")
	case errors.Is(err, services.ErrForbidden):
		return c.Redirect("/login")
	case errors.As(err, &ve):
		applog.Security(c, "validation.fail", map[string]any{"field": "address", "errors": ve.Fields})
		return h.page(c, fiber.StatusBadRequest, crt, fiber.Map{
			"Address": addr, "Errors": ve.Fields, "Coupon": c.FormValue("coupon"),
		})
	case errors.Is(err, services.ErrNothingAvailable):
		applog.Info(c, "order.place.unavailable", map[string]any{"lines": crt.Len()})
		return h.page(c, fiber.StatusConflict, crt, fiber.Map{
			"Address": addr, "Coupon": c.FormValue("coupon"),
			"Notice": "None of the items in your cart are in stock right now.",
		})
	case err != nil:
		return err
	}

	fields := map[string]any{
		"order_id": res.OrderID,
		"lines":    len(res.Lines),
		"clamped":  res.Clamped,
		"subtotal": res.Subtotal().StringFixed(2),
	}
	if res.Coupon != nil {
		fields["coupon"] = res.Coupon.Code
	}
	applog.Audit(c, "order.place", fields)

	h.writeCart(c, cart.Cart{})
	to := "/order/" + strconv.FormatInt(res.OrderID, 10)
	if res.Clamped {
		to += "?adjusted=1"
	}
	return c.Redirect(to)
}
