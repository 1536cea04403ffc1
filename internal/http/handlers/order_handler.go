package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	applog "musicstore/internal/log"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type OrderHandler struct {
	Account *services.AccountService
	Reviews *services.ReviewService
}

// View shows one order. Both routes are behind RequireUser; orders that
// belong to someone else render exactly like missing ones.
func (h *OrderHandler) View(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "Order not found")
	}
	v, err := h.Account.Order(c.UserContext(), currentUser(c), id)
	if errors.Is(err, services.ErrNotFound) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
		return notFound(c, "Order not found")
	}
	if err != nil {
		return err
	}
	return render(c, "order", fiber.Map{"Order": v, "Adjusted": c.Query("adjusted") == "1"})
}

// AccountPage lists the user's orders and saved addresses.
func (h *OrderHandler) AccountPage(c *fiber.Ctx) error {
	u := currentUser(c)
	pg, err := h.Account.ListOrders(c.UserContext(), u, pageParam(c))
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load orders"})
	}
	addrs, err := h.Account.SavedAddresses(c.UserContext(), u)
	if err != nil {
		return err
	}
	data := fiber.Map{"Orders": pg.Orders, "Pager": pg, "Addresses": addrs}
	if h.Reviews != nil {
		if mine, err := h.Reviews.ByUser(c.UserContext(), u); err == nil {
			data["Reviews"] = mine
		}
	}
	return render(c, "account", data)
}

// pageParam reads a 1-based ?page=, defaulting to the first page.
func pageParam(c *fiber.Ctx) int {
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		return n
	}
	return 1
}
