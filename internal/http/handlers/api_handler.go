package handlers

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/domain"
	applog "musicstore/internal/log"
	"musicstore/internal/repos"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

// APIHandler serves the JSON resources under /api/v1. Catalog resources are
// public to read and staff-only to write; account resources are filtered by
// the caller's Principal.
type APIHandler struct {
	Genres    *repos.GenreRepo
	Artists   *repos.ArtistRepo
	Products  *repos.ProductRepo
	Coupons   *repos.CouponRepo
	Orders    *repos.OrderRepo
	Reviews   *services.ReviewService
	Addresses *repos.AddressRepo
	Users     *repos.UserRepo
}

func (h *APIHandler) Mount(r fiber.Router) {
	staff := requireStaffAPI

	r.Get("/genres", h.listGenres)
	r.Get("/genres/:id", h.getGenre)
	r.Post("/genres", staff, h.createGenre)
	r.Put("/genres/:id", staff, h.updateGenre)
	r.Delete("/genres/:id", staff, h.deleteGenre)

	r.Get("/artists", h.listArtists)
	r.Get("/artists/:id", h.getArtist)
	r.Post("/artists", staff, h.createArtist)
	r.Put("/artists/:id", staff, h.updateArtist)
	r.Delete("/artists/:id", staff, h.deleteArtist)

	r.Get("/products", h.listProducts)
	r.Get("/products/:id", h.getProduct)
	r.Post("/products", staff, h.createProduct)
	r.Put("/products/:id", staff, h.updateProduct)
	r.Delete("/products/:id", staff, h.deleteProduct)

	r.Get("/coupons", h.listCoupons)
	r.Get("/coupons/:id", h.getCoupon)
	r.Post("/coupons", staff, h.createCoupon)
	r.Put("/coupons/:id", staff, h.updateCoupon)
	r.Delete("/coupons/:id", staff, h.deleteCoupon)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/:id", h.getOrder)
	r.Post("/orders", h.createOrder)
	r.Put("/orders/:id", staff, h.updateOrder)
	r.Delete("/orders/:id", h.deleteOrder)

	r.Get("/order-items", h.listItems)
	r.Get("/order-items/:id", h.getItem)
	r.Post("/order-items", h.createItem)
	r.Put("/order-items/:id", h.updateItem)
	r.Delete("/order-items/:id", h.deleteItem)

	r.Get("/reviews", h.listReviews)
	r.Get("/reviews/:id", h.getReview)
	r.Post("/reviews", h.createReview)
	r.Put("/reviews/:id", h.updateReview)
	r.Delete("/reviews/:id", h.deleteReview)

	r.Get("/addresses", h.listAddresses)
	r.Get("/addresses/:id", h.getAddress)
	r.Post("/addresses", h.createAddress)
	r.Put("/addresses/:id", h.updateAddress)
	r.Delete("/addresses/:id", h.deleteAddress)
}

// ---------- helpers ----------

func apiError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func requireStaffAPI(c *fiber.Ctx) error {
	p := PrincipalOf(c)
	if !p.Authenticated() {
		return apiError(c, fiber.StatusUnauthorized, "authentication required")
	}
	if !p.Staff() {
		applog.Security(c, "access.denied.api", map[string]any{"resource": c.Path()})
		return apiError(c, fiber.StatusForbidden, "staff only")
	}
	return c.Next()
}

// requireAuth returns the caller or writes a 401.
func requireAuth(c *fiber.Ctx) (Principal, bool) {
	p := PrincipalOf(c)
	if !p.Authenticated() {
		_ = apiError(c, fiber.StatusUnauthorized, "authentication required")
		return p, false
	}
	return p, true
}

func pathID(c *fiber.Ctx) (int64, bool) {
	return validate.ID(c.Params("id"))
}

// storeErr maps repository errors onto API responses; anything unexpected
// goes to the app error handler.
func storeErr(c *fiber.Ctx, err error) error {
	if repos.IsNotFound(err) || errors.Is(err, services.ErrNotFound) {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	return err
}

func fieldErrors(c *fiber.Ctx, fields map[string]string) error {
	applog.Security(c, "validation.fail", map[string]any{"resource": c.Path(), "errors": fields})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": fields})
}

// ---------- genres ----------

type genreIn struct {
	Name        string `json:"genre_name" form:"genre_name"`
	Description string `json:"description" form:"description"`
}

func (in genreIn) validate() (domain.Genre, map[string]string) {
	errs := map[string]string{}
	var g domain.Genre
	var ok bool
	if g.Name, ok = validate.Text(in.Name, 50); !ok {
		errs["genre_name"] = "required, up to 50 characters"
	}
	g.Description = strings.TrimSpace(in.Description)
	if len([]rune(g.Description)) > 1000 {
		errs["description"] = "up to 1000 characters"
	}
	return g, errs
}

func (h *APIHandler) listGenres(c *fiber.Ctx) error {
	out, err := h.Genres.List(c.UserContext(), c.Query("search"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *APIHandler) getGenre(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	g, err := h.Genres.Get(c.UserContext(), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(g)
}

func (h *APIHandler) createGenre(c *fiber.Ctx) error {
	var in genreIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	g, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	if err := h.Genres.Create(c.UserContext(), &g); err != nil {
		if repos.IsUniqueViolation(err) {
			return apiError(c, fiber.StatusConflict, "genre already exists")
		}
		return err
	}
	applog.Audit(c, "api.genres.create", map[string]any{"genre_id": g.ID})
	return c.Status(fiber.StatusCreated).JSON(g)
}

func (h *APIHandler) updateGenre(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in genreIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	g, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	g.ID = id
	if err := h.Genres.Update(c.UserContext(), g); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.genres.update", map[string]any{"genre_id": id})
	return c.JSON(g)
}

func (h *APIHandler) deleteGenre(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if err := h.Genres.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.genres.delete", map[string]any{"genre_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- artists ----------

type artistIn struct {
	Name    string `json:"artist_name" form:"artist_name"`
	Country string `json:"country" form:"country"`
}

func (in artistIn) validate() (domain.Artist, map[string]string) {
	errs := map[string]string{}
	var a domain.Artist
	var ok bool
	if a.Name, ok = validate.Text(in.Name, 100); !ok {
		errs["artist_name"] = "required, up to 100 characters"
	}
	a.Country = strings.TrimSpace(in.Country)
	if len([]rune(a.Country)) > 50 {
		errs["country"] = "up to 50 characters"
	}
	return a, errs
}

func (h *APIHandler) listArtists(c *fiber.Ctx) error {
	out, err := h.Artists.List(c.UserContext(), c.Query("search"))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *APIHandler) getArtist(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	a, err := h.Artists.Get(c.UserContext(), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(a)
}

func (h *APIHandler) createArtist(c *fiber.Ctx) error {
	var in artistIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	a, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	if err := h.Artists.Create(c.UserContext(), &a); err != nil {
		return err
	}
	applog.Audit(c, "api.artists.create", map[string]any{"artist_id": a.ID})
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *APIHandler) updateArtist(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in artistIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	a, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	a.ID = id
	if err := h.Artists.Update(c.UserContext(), a); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.artists.update", map[string]any{"artist_id": id})
	return c.JSON(a)
}

func (h *APIHandler) deleteArtist(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if err := h.Artists.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.artists.delete", map[string]any{"artist_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- products ----------

type productIn struct {
	Name          string `json:"product_name" form:"product_name"`
	Description   string `json:"description" form:"description"`
	Price         string `json:"price" form:"price"`
	StockQuantity int    `json:"stock_quantity" form:"stock_quantity"`
	Picture       string `json:"picture" form:"picture"`
	GenreID       int64  `json:"genre" form:"genre"`
	ArtistID      int64  `json:"artist" form:"artist"`
}

func (h *APIHandler) validateProduct(c *fiber.Ctx, in productIn) (domain.Product, map[string]string) {
	errs := map[string]string{}
	p := domain.Product{
		Description:   strings.TrimSpace(in.Description),
		StockQuantity: in.StockQuantity,
		Picture:       strings.TrimSpace(in.Picture),
		GenreID:       in.GenreID,
		ArtistID:      in.ArtistID,
	}
	var ok bool
	if p.Name, ok = validate.Text(in.Name, 200); !ok {
		errs["product_name"] = "required, up to 200 characters"
	}
	if p.Price, ok = validate.Price(in.Price); !ok {
		errs["price"] = "a non-negative amount with at most two decimals"
	}
	if p.StockQuantity < 0 {
		errs["stock_quantity"] = "must not be negative"
	}
	if strings.Contains(p.Picture, "..") {
		errs["picture"] = "invalid path"
	}
	if _, err := h.Genres.Get(c.UserContext(), p.GenreID); err != nil {
		errs["genre"] = "unknown genre"
	}
	if _, err := h.Artists.Get(c.UserContext(), p.ArtistID); err != nil {
		errs["artist"] = "unknown artist"
	}
	return p, errs
}

// listProducts accepts the catalog filters: search, genre, artist, sort,
// limit and offset.
func (h *APIHandler) listProducts(c *fiber.Ctx) error {
	f := repos.ProductFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Genre:  strings.TrimSpace(c.Query("genre")),
		Sort:   repos.NormalizeSort(c.Query("sort")),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if a := c.Query("artist"); a != "" {
		id, ok := validate.ID(a)
		if !ok {
			return fieldErrors(c, map[string]string{"artist": "invalid id"})
		}
		f.ArtistID = id
	}
	out, err := h.Products.List(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (h *APIHandler) getProduct(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	p, err := h.Products.Get(c.UserContext(), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(p)
}

func (h *APIHandler) createProduct(c *fiber.Ctx) error {
	var in productIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	p, errs := h.validateProduct(c, in)
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	if err := h.Products.Create(c.UserContext(), &p); err != nil {
		return err
	}
	applog.Audit(c, "api.products.create", map[string]any{"product": p.ID})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *APIHandler) updateProduct(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in productIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	p, errs := h.validateProduct(c, in)
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	p.ID = id
	if err := h.Products.Update(c.UserContext(), p); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.products.update", map[string]any{"product": id, "price": p.Price.StringFixed(2), "qty": p.StockQuantity})
	return c.JSON(p)
}

func (h *APIHandler) deleteProduct(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if err := h.Products.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.products.delete", map[string]any{"product": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// ---------- coupons ----------

type couponIn struct {
	Code            string `json:"code" form:"code"`
	DiscountPercent int    `json:"discount_percent" form:"discount_percent"`
	Active          bool   `json:"active" form:"active"`
	ValidFrom       string `json:"valid_from" form:"valid_from"`
	ValidTo         string `json:"valid_to" form:"valid_to"`
}

func (in couponIn) validate() (domain.Coupon, map[string]string) {
	errs := map[string]string{}
	cp := domain.Coupon{DiscountPercent: in.DiscountPercent, Active: in.Active}
	code, ok := validate.CouponCode(in.Code)
	if !ok || code == "" {
		errs["code"] = "letters, digits, '-' and '_' only"
	}
	cp.Code = strings.ToUpper(code)
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		errs["discount_percent"] = "between 0 and 100"
	}
	if cp.ValidFrom, ok = parseDay(in.ValidFrom, false); !ok {
		errs["valid_from"] = "use yyyy-mm-dd"
	}
	if cp.ValidTo, ok = parseDay(in.ValidTo, true); !ok {
		errs["valid_to"] = "use yyyy-mm-dd"
	}
	if cp.ValidFrom.Valid && cp.ValidTo.Valid && cp.ValidTo.Time.Before(cp.ValidFrom.Time) {
		errs["valid_to"] = "before valid_from"
	}
	return cp, errs
}

// couponOut carries the validity window as yyyy-mm-dd so a read can be sent
// back unchanged as a write.
type couponOut struct {
	ID              int64   `json:"id"`
	Code            string  `json:"code"`
	DiscountPercent int     `json:"discount_percent"`
	Active          bool    `json:"active"`
	ValidFrom       *string `json:"valid_from"`
	ValidTo         *string `json:"valid_to"`
}

func formatDay(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.UTC().Format("2006-01-02")
	return &s
}

func toCouponOut(cp domain.Coupon) couponOut {
	return couponOut{
		ID:              cp.ID,
		Code:            cp.Code,
		DiscountPercent: cp.DiscountPercent,
		Active:          cp.Active,
		ValidFrom:       formatDay(cp.ValidFrom),
		ValidTo:         formatDay(cp.ValidTo),
	}
}

func (h *APIHandler) listCoupons(c *fiber.Ctx) error {
	cps, err := h.Coupons.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]couponOut, 0, len(cps))
	for _, cp := range cps {
		out = append(out, toCouponOut(cp))
	}
	return c.JSON(out)
}

func (h *APIHandler) getCoupon(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	cp, err := h.Coupons.Get(c.UserContext(), id)
	if err != nil {
		return storeErr(c, err)
	}
	return c.JSON(toCouponOut(cp))
}

func (h *APIHandler) createCoupon(c *fiber.Ctx) error {
	var in couponIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	cp, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	if err := h.Coupons.Create(c.UserContext(), &cp); err != nil {
		if repos.IsUniqueViolation(err) {
			return apiError(c, fiber.StatusConflict, "coupon code already exists")
		}
		return err
	}
	applog.Audit(c, "api.coupons.create", map[string]any{"coupon_id": cp.ID, "code": cp.Code})
	return c.Status(fiber.StatusCreated).JSON(toCouponOut(cp))
}

func (h *APIHandler) updateCoupon(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	var in couponIn
	if err := c.BodyParser(&in); err != nil {
		return apiError(c, fiber.StatusBadRequest, "malformed body")
	}
	cp, errs := in.validate()
	if len(errs) > 0 {
		return fieldErrors(c, errs)
	}
	cp.ID = id
	if err := h.Coupons.Update(c.UserContext(), cp); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.coupons.update", map[string]any{"coupon_id": id, "active": cp.Active})
	return c.JSON(toCouponOut(cp))
}

func (h *APIHandler) deleteCoupon(c *fiber.Ctx) error {
	id, ok := pathID(c)
	if !ok {
		return apiError(c, fiber.StatusNotFound, "not found")
	}
	if err := h.Coupons.Delete(c.UserContext(), id); err != nil {
		return storeErr(c, err)
	}
	applog.Audit(c, "api.coupons.delete", map[string]any{"coupon_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
