package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/log"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
	Inv     *services.InventoryService
	Reviews *services.ReviewService
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "product"})
		return notFound(c, "This item is no longer available")
	}
	return h.detail(c, id, fiber.StatusOK, nil)
}

func (h *ProductHandler) detail(c *fiber.Ctx, id int64, status int, data fiber.Map) error {
	ctx := c.UserContext()
	p, err := h.Catalog.GetProduct(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		return notFound(c, "This item is no longer available")
	}
	if err != nil {
		return err
	}
	reviews, err := h.Reviews.ForProduct(ctx, id)
	if err != nil {
		return err
	}
	if data == nil {
		data = fiber.Map{}
	}
	data["P"] = p
	data["Reviews"] = reviews
	data["Availability"] = services.StockStatus(p.StockQuantity)
	c.Status(status)
	return render(c, "product", data)
}

// PostReview is mounted behind RequireUser.
func (h *ProductHandler) PostReview(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return notFound(c, "This item is no longer available")
	}
	rating, text := c.FormValue("rating"), c.FormValue("text")
	rv, err := h.Reviews.Post(c.UserContext(), currentUser(c), id, rating, text)
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		log.Security(c, "validation.fail", map[string]any{"field": "review", "product": id})
		return h.detail(c, id, fiber.StatusBadRequest, fiber.Map{
			"Errors": ve.Fields, "Rating": rating, "Text": text,
		})
	case errors.Is(err, services.ErrNotFound):
		return notFound(c, "This item is no longer available")
	case errors.Is(err, services.ErrForbidden):
		return c.Redirect("/login")
	case err != nil:
		return err
	}
	log.Audit(c, "review.create", map[string]any{"product": id, "review_id": rv.ID})
	return c.Redirect("/product/" + strconv.FormatInt(id, 10) + "#reviews")
}
