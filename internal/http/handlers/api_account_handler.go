package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/domain"
	applog "musicstore/internal/log"
	"musicstore/internal/repos"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

// ---------- orders ----------

type orderOut struct {
	ID              int64              `json:"id"`
	User            string             `json:"user"`
	Status          domain.OrderStatus `json:"status"`
	DateOrder       time.Time          `json:"date_order"`
	ShippingAddress *int64             `json:"shipping_address"`
	Coupon          *int64             `json:"coupon"`
}

func toOrderOut(o repos.OrderSummary) orderOut {
	out := orderOut{ID: o.ID, User: o.UserID, Status: o.Status, DateOrder: o.DateOrder}
	if o.ShippingAddressID.Valid {
		id := o.ShippingAddressID.Int64
		out.ShippingAddress = &id
	}
	if o.CouponID.Valid {
		id := o.CouponID.Int64
		out.Coupon = &id
	}
	return out
}

// visibleOrder loads an order and hides it from callers who may not see it.
func (h *APIHandler) visibleOrder(c *fiber.Ctx, p Principal, id int64) (repos.OrderSummary, error) {
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return o, err
	}
	if !p.CanAccess(o.UserID) {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": id})
		return o, services.ErrNotFound
	}
	return o, nil
}

func (h *APIHandler) listOrders(c *fiber.Ctx) error {
	owner, ok := PrincipalOf(c).Owner()
	if !ok {
		return c.JSON([]orderOut{})
	}
	limit, offset := c.QueryInt("limit", 50), c.QueryInt("offset", 0)
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	sums, err := h.Orders.List(c.UserContext(), owner, limit, offset)
	if err != nil {
		return err
	}
	out := make([]orderOut, 0, len(sums))
	for _, o := range sums {
		out = append(out, toOrderOut(o))
	}
	return c.JSON(out)
}

func (h *APIHandler) getOrder(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	o, err := h.visibleOrder(c, PrincipalOf(c), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(toOrderOut(o))
}

type orderIn struct {
	User   string `json:"user" form:"user"`
	Status string `json:"status" form:"status"`
}

// createOrder opens a Pending order for the caller. Staff may name another
// user.
func (h *APIHandler) createOrder(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	var in orderIn
	if err := c.BodyParser(&in); err != nil && len(c.Body()) > 0 {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	owner := p.User.ID
	if in.User = strings.TrimSpace(in.User); in.User != "" && in.User != owner {
		if !p.Staff() {
			applog.Security(c, "access.denied.api", map[string]any{"resource": "orders", "user": in.User})
			return apiError(c, fiber.StatusForbidden, "cannot create orders for other users")
		}
		if _, err := h.Users.ByID(c.UserContext(), in.User); err != nil {
			if repos.IsNotFound(err) {
				return fieldErrors(c, map[string]string{"user": "unknown user"})
			}
			return err
		}
		owner = in.User
	}
	o := domain.Order{UserID: owner}
	if err := h.Orders.Create(c.UserContext(), &o); err != nil {
		if repos.IsUniqueViolation(err) {
			return apiError(c, fiber.StatusConflict, "user already has a pending order")
		}
		return err
	}
	applog.Audit(c, "api.orders.create", map[string]any{"order_id": o.ID, "user": owner})
	return c.Status(fiber.StatusCreated).JSON(orderOut{ID: o.ID, User: o.UserID, Status: o.Status, DateOrder: o.DateOrder})
}

// updateOrder changes the status; mounted staff-only.
func (h *APIHandler) updateOrder(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in orderIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	next, err := domain.ParseOrderStatus(in.Status)
	if err != nil {
		return fieldErrors(c, map[string]string{"status": "Pending or Placed"})
	}
	o, err := h.Orders.Get(c.UserContext(), id)
	if err != nil {
		return storeErr(c, err)
	}
	if next != o.Status {
		if err := h.Orders.UpdateStatus(c.UserContext(), id, o.Status, next); err != nil {
			if repos.IsNotFound(err) {
				return apiError(c, fiber.StatusConflict, "order changed concurrently")
			}
			return apiError(c, fiber.StatusConflict, "invalid status transition")
		}
		o.Status = next
	}
	applog.Audit(c, "api.orders.update", map[string]any{"order_id": id, "status": next})
	return c.JSON(toOrderOut(o))
}

func (h *APIHandler) deleteOrder(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if _, err := h.visibleOrder(c, p, id); err != nil {
		return storeErr(c, err)
	}
	if err := h.Orders.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.orders.delete", map[string]any{"order_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- order items ----------
// Lines can only be edited while their order is Pending; placed lines are
// price snapshots.

func (h *APIHandler) listItems(c *fiber.Ctx) error {
	owner, ok := PrincipalOf(c).Owner()
	if !ok {
		return c.JSON([]domain.OrderItem{})
	}
	out, err := h.Orders.Items(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// visibleItem loads a line together with its order.
func (h *APIHandler) visibleItem(c *fiber.Ctx, p Principal, id int64) (domain.OrderItem, repos.OrderSummary, error) {
	it, owner, err := h.Orders.Item(c.UserContext(), id)
	if err != nil {
		return it, repos.OrderSummary{}, err
	}
	if !p.CanAccess(owner) {
		applog.Security(c, "access.denied.order", map[string]any{"order_item": id})
		return it, repos.OrderSummary{}, services.ErrNotFound
	}
	o, err := h.Orders.Get(c.UserContext(), it.OrderID)
	return it, o, err
}

func (h *APIHandler) getItem(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	it, _, err := h.visibleItem(c, PrincipalOf(c), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(it)
}

type itemIn struct {
	OrderID   int64 `json:"order" form:"order"`
	ProductID int64 `json:"product" form:"product"`
	Quantity  int   `json:"quantity" form:"quantity"`
}

func (h *APIHandler) createItem(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	var in itemIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	if in.Quantity < 1 {
		return fieldErrors(c, map[string]string{"quantity": "must be at least 1"})
	}
	o, err := h.visibleOrder(c, p, in.OrderID)
	if err != nil {
		return storeErr(c, err)
	}
	if o.Status != domain.StatusPending {
		return apiError(c, fiber.StatusConflict, "order is no longer pending")
	}
	prod, err := h.Products.Get(c.UserContext(), in.ProductID)
	if repos.IsNotFound(err) {
		return fieldErrors(c, map[string]string{"product": "unknown product"})
	}
	if err != nil {
		return err
	}
	it := domain.OrderItem{OrderID: o.ID, ProductID: prod.ID, Quantity: in.Quantity, PriceAtOrder: prod.Price}
	if err := h.Orders.AddItem(c.UserContext(), &it); err != nil {
		return err
	}
	applog.Audit(c, "api.order_items.create", map[string]any{"order_id": o.ID, "order_item": it.ID})
	return c.Status(fiber.StatusCreated).JSON(it)
}

func (h *APIHandler) updateItem(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in itemIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	if in.Quantity < 1 {
		return fieldErrors(c, map[string]string{"quantity": "must be at least 1"})
	}
	it, o, err := h.visibleItem(c, p, id)
	if err != nil {
		return storeErr(c, err)
	}
	if o.Status != domain.StatusPending {
		return apiError(c, fiber.StatusConflict, "order is no longer pending")
	}
	if err := h.Orders.SetItemQty(c.UserContext(), id, in.Quantity); err != nil {
		return storeErr(c, err)
	}
	it.Quantity = in.Quantity
	applog.Audit(c, "api.order_items.update", map[string]any{"order_item": id, "quantity": in.Quantity})
	return c.JSON(it)
}

func (h *APIHandler) deleteItem(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	_, o, err := h.visibleItem(c, p, id)
	if err != nil {
		return storeErr(c, err)
	}
	if o.Status != domain.StatusPending {
		return apiError(c, fiber.StatusConflict, "order is no longer pending")
	}
	if err := h.Orders.DeleteItem(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.order_items.delete", map[string]any{"order_item": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- reviews ----------

type reviewIn struct {
	ProductID int64   `json:"product" form:"product"`
	Rating    float64 `json:"rating" form:"rating"`
	Text      string  `json:"text" form:"text"`
}

func (h *APIHandler) listReviews(c *fiber.Ctx) error {
	owner, ok := PrincipalOf(c).Owner()
	if !ok {
		return c.JSON([]domain.Review{})
	}
	out, err := h.Reviews.Repo.List(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *APIHandler) visibleReview(c *fiber.Ctx, p Principal, id int64) (domain.Review, error) {
	rv, err := h.Reviews.Repo.Get(c.UserContext(), id)
	if err != nil {
		return rv, err
	}
	if !p.CanAccess(rv.UserID) {
		return rv, services.ErrNotFound
	}
	return rv, nil
}

func (h *APIHandler) getReview(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	rv, err := h.visibleReview(c, PrincipalOf(c), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(rv)
}

func (h *APIHandler) createReview(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	var in reviewIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	rating := strconv.FormatFloat(in.Rating, 'f', -1, 64)
	rv, err := h.Reviews.Post(c.UserContext(), p.User, in.ProductID, rating, in.Text)
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return fieldErrors(c, ve.Fields)
	}
	if err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.reviews.create", map[string]any{"review_id": rv.ID, "product": rv.ProductID})
	return c.Status(fiber.StatusCreated).JSON(rv)
}

func (h *APIHandler) updateReview(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in reviewIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	rv, err := h.visibleReview(c, p, id)
	if err != nil {
		return storeErr(c, err)
	}
	errs := map[string]string{}
	if in.Rating < 1 || in.Rating > 5 {
		errs["rating"] = "between 1 and 5"
	}
	text, okText := validate.Text(in.Text, 200)
	if !okText {
		errs["text"] = "required, up to 200 characters"
	}
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	rv.Rating, rv.Text = in.Rating, text
	if err := h.Reviews.Repo.Update(c.UserContext(), rv); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.reviews.update", map[string]any{"review_id": id})
	return c.JSON(rv)
}

func (h *APIHandler) deleteReview(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if _, err := h.visibleReview(c, p, id); err != nil {
		return storeErr(c, err)
	}
	if err := h.Reviews.Repo.Remove(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.reviews.delete", map[string]any{"review_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- addresses ----------

type addressIn struct {
	FullName    string `json:"full_name" form:"full_name"`
	Phone       string `json:"phone" form:"phone"`
	City        string `json:"city" form:"city"`
	AddressLine string `json:"address_line" form:"address_line"`
	PostalCode  string `json:"postal_code" form:"postal_code"`
}

func (in addressIn) validate() (domain.ShippingAddress, *services.ValidationError) {
	a, err := services.AddressForm(in).Validate()
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return a, ve
	}
	return a, nil
}

func (h *APIHandler) listAddresses(c *fiber.Ctx) error {
	owner, ok := PrincipalOf(c).Owner()
	if !ok {
		return c.JSON([]domain.ShippingAddress{})
	}
	out, err := h.Addresses.List(c.UserContext(), owner)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *APIHandler) visibleAddress(c *fiber.Ctx, p Principal, id int64) (domain.ShippingAddress, error) {
	a, err := h.Addresses.Get(c.UserContext(), id)
	if err != nil {
		return a, err
	}
	if !p.CanAccess(a.UserID) {
		return a, services.ErrNotFound
	}
	return a, nil
}

func (h *APIHandler) getAddress(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	a, err := h.visibleAddress(c, PrincipalOf(c), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(a)
}

func (h *APIHandler) createAddress(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	var in addressIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	a, ve := in.validate()
	if ve != nil {
		return fieldErrors(c, ve.Fields)
	}
	a.UserID = p.User.ID
	if err := h.Addresses.Create(c.UserContext(), &a); err != nil {
		return err
	}
	applog.Audit(c, "api.addresses.create", map[string]any{"address_id": a.ID})
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *APIHandler) updateAddress(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in addressIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	cur, err := h.visibleAddress(c, p, id)
	if err != nil {
		return storeErr(c, err)
	}
	a, ve := in.validate()
	if ve != nil {
		return fieldErrors(c, ve.Fields)
	}
	a.ID, a.UserID, a.CreatedAt = id, cur.UserID, cur.CreatedAt
	if err := h.Addresses.Update(c.UserContext(), a); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.addresses.update", map[string]any{"address_id": id})
	return c.JSON(a)
}

func (h *APIHandler) deleteAddress(c *fiber.Ctx) error {
	p, ok := requireAuth(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if _, err := h.visibleAddress(c, p, id); err != nil {
		return storeErr(c, err)
	}
	if err := h.Addresses.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.addresses.delete", map[string]any{"address_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
