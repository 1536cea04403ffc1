package handlers

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/domain"
	applog "musicstore/internal/log"
	"musicstore/internal/repos"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type AdminHandler struct {
	Orders  *repos.OrderRepo
	Account *services.AccountService
	Inv     *services.InventoryService
	Coupons *repos.CouponRepo
	Users   *repos.UserRepo
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	rows, err := h.Inv.List(ctx)
	if err != nil {
		return err
	}
	var low []repos.InventoryRow
	for _, r := range rows {
		if services.StockStatus(r.Qty) != services.StockIn {
			low = append(low, r)
		}
	}
	ords, err := h.Orders.List(ctx, "", 10, 0)
	if err != nil {
		return err
	}
	return render(c, "admin_dashboard", fiber.Map{"LowStock": low, "Orders": ords})
}

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	pg, err := h.Account.ListOrders(c.UserContext(), currentUser(c), pageParam(c))
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	return render(c, "admin_orders", fiber.Map{"Orders": pg.Orders, "Pager": pg})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	next, err := domain.ParseOrderStatus(c.FormValue("status"))
	if !ok || err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("missing id or status")
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if repos.IsNotFound(err) {
		return notFound(c, "Order not found")
	}
	if err != nil {
		return err
	}
	if err := h.Orders.UpdateStatus(c.UserContext(), id, o.Status, next); err != nil {
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id, "from": o.Status, "to": next})
		return c.Status(fiber.StatusBadRequest).SendString("could not update status")
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "from": o.Status, "status": next})
	return c.Redirect("/admin/orders")
}

// GET /admin/inventory
func (h *AdminHandler) Inventory(c *fiber.Ctx) error {
	rows, err := h.Inv.List(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.list.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load inventory"})
	}
	return render(c, "admin_inventory", fiber.Map{"Rows": rows})
}

// POST /admin/inventory
func (h *AdminHandler) UpdateInventory(c *fiber.Ctx) error {
	pid, okID := validate.ID(c.FormValue("product_id"))
	qty, okQty := validate.Stock(c.FormValue("qty"))
	if !okID || !okQty {
		applog.Security(c, "validation.fail", map[string]any{"field": "inventory"})
		return c.Status(fiber.StatusBadRequest).SendString("invalid input")
	}
	err := h.Inv.SetStock(c.UserContext(), pid, qty)
	if errors.Is(err, services.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).SendString("unknown product")
	}
	if err != nil {
		applog.Error(c, "admin.inventory.save.fail", err, map[string]any{"product": pid, "qty": qty})
		return c.Status(fiber.StatusBadRequest).SendString("could not save inventory")
	}
	applog.Audit(c, "admin.inventory.save", map[string]any{"product": pid, "qty": qty})
	return c.Redirect("/admin/inventory")
}

// GET /admin/coupons
func (h *AdminHandler) CouponsPage(c *fiber.Ctx) error {
	return h.couponsPage(c, fiber.StatusOK, "")
}

func (h *AdminHandler) couponsPage(c *fiber.Ctx, status int, errMsg string) error {
	list, err := h.Coupons.List(c.UserContext())
	if err != nil {
		return err
	}
	c.Status(status)
	return render(c, "admin_coupons", fiber.Map{"Coupons": list, "Err": errMsg})
}

// parseDay reads an optional yyyy-mm-dd form value. endOfDay moves the
// instant to the last second of that day so validity bounds stay inclusive.
func parseDay(s string, endOfDay bool) (sql.NullTime, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullTime{}, true
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return sql.NullTime{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}, true
}

// POST /admin/coupons
func (h *AdminHandler) CreateCoupon(c *fiber.Ctx) error {
	code, okCode := validate.CouponCode(c.FormValue("code"))
	pct, okPct := validate.Percent(c.FormValue("discount_percent"))
	from, okFrom := parseDay(c.FormValue("valid_from"), false)
	to, okTo := parseDay(c.FormValue("valid_to"), true)
	if code == "" || !okCode || !okPct || !okFrom || !okTo {
		applog.Security(c, "validation.fail", map[string]any{"field": "coupon"})
		return h.couponsPage(c, fiber.StatusBadRequest, "Check the code, percentage and dates.")
	}
	if from.Valid && to.Valid && to.Time.Before(from.Time) {
		return h.couponsPage(c, fiber.StatusBadRequest, "The end date is before the start date.")
	}
	cp := domain.Coupon{
		Code: strings.ToUpper(code), DiscountPercent: pct,
		Active: c.FormValue("active") != "", ValidFrom: from, ValidTo: to,
	}
	if err := h.Coupons.Create(c.UserContext(), &cp); err != nil {
		if !repos.IsUniqueViolation(err) {
			return err
		}
		applog.Security(c, "admin.coupons.duplicate", map[string]any{"code": cp.Code})
		return h.couponsPage(c, fiber.StatusConflict, "A coupon with this code already exists.")
	}
	applog.Audit(c, "admin.coupons.create", map[string]any{"coupon_id": cp.ID, "code": cp.Code, "percent": pct})
	return c.Redirect("/admin/coupons")
}

// POST /admin/coupons/:id/toggle
func (h *AdminHandler) ToggleCoupon(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).SendString("missing id")
	}
	cp, err := h.Coupons.Get(c.UserContext(), id)
	if repos.IsNotFound(err) {
		return notFound(c, "Coupon not found")
	}
	if err != nil {
		return err
	}
	if err := h.Coupons.SetActive(c.UserContext(), id, !cp.Active); err != nil {
		return err
	}
	applog.Audit(c, "admin.coupons.toggle", map[string]any{"coupon_id": id, "active": !cp.Active})
	return c.Redirect("/admin/coupons")
}

// UsersPage lists users (excluding admin).
func (h *AdminHandler) UsersPage(c *fiber.Ctx) error {
	all, err := h.Users.List(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.users.list.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load users"})
	}
	users := make([]domain.User, 0, len(all))
	for _, u := range all {
		if u.Role != domain.RoleAdmin {
			users = append(users, u)
		}
	}
	return render(c, "admin_users", fiber.Map{"Users": users})
}

// DeleteUser removes a customer together with their sessions, orders,
// addresses and reviews.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return c.Status(fiber.StatusBadRequest).SendString("missing id")
	}
	if me := currentUser(c); me != nil && me.ID == id {
		return c.Status(fiber.StatusBadRequest).SendString("cannot delete your own account")
	}
	if err := h.Users.DeleteUserCascade(c.UserContext(), id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return c.Status(fiber.StatusBadRequest).SendString("could not delete user")
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.Redirect("/admin/users")
}
