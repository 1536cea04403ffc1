package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"musicstore/internal/log"
	"musicstore/internal/repos"
	"musicstore/internal/services"
	"musicstore/internal/validate"
)

type CatalogHandler struct {
	Catalog *services.CatalogService
}

func (h *CatalogHandler) Home(c *fiber.Ctx) error {
	genres, err := h.Catalog.ListGenres(c.UserContext())
	if err != nil {
		return err
	}
	newest, err := h.Catalog.List(c.UserContext(), repos.ProductFilter{Sort: "-created_at", Limit: 8}, 1)
	if err != nil {
		return err
	}
	return render(c, "home", fiber.Map{"Genres": genres, "Products": newest})
}

// catalogQuery is the filter form echoed back into the page.
type catalogQuery struct {
	Q, Genre, Artist, Min, Max, Sort string
	Page                             int
}

// Browse lists products with optional genre/artist/price/search filters.
func (h *CatalogHandler) Browse(c *fiber.Ctx) error {
	q := catalogQuery{
		Q:      strings.TrimSpace(c.Query("q")),
		Genre:  strings.TrimSpace(c.Query("genre")),
		Artist: strings.TrimSpace(c.Query("artist")),
		Min:    strings.TrimSpace(c.Query("min")),
		Max:    strings.TrimSpace(c.Query("max")),
		Sort:   repos.NormalizeSort(c.Query("sort")),
		Page:   1,
	}
	if n, err := strconv.Atoi(c.Query("page")); err == nil && n > 0 {
		q.Page = n
	}

	f := repos.ProductFilter{Sort: q.Sort}
	bad := func(field, msg string) error {
		log.Security(c, "validation.fail", map[string]any{"field": field})
		return h.page(c, fiber.StatusBadRequest, q, nil, msg)
	}
	if q.Q != "" {
		s, ok := validate.Q(q.Q)
		if !ok {
			q.Q = ""
			return bad("q", "Enter a valid keyword (letters/numbers only)")
		}
		f.Search = s
	}
	if q.Genre != "" {
		g, ok := validate.Q(q.Genre)
		if !ok {
			return bad("genre", "Invalid genre")
		}
		f.Genre = g
	}
	if q.Artist != "" {
		id, ok := validate.ID(q.Artist)
		if !ok {
			return bad("artist", "Invalid artist")
		}
		f.ArtistID = id
	}
	if q.Min != "" {
		d, ok := validate.Price(q.Min)
		if !ok {
			return bad("min", "Invalid minimum price")
		}
		f.MinPrice = &d
	}
	if q.Max != "" {
		d, ok := validate.Price(q.Max)
		if !ok {
			return bad("max", "Invalid maximum price")
		}
		f.MaxPrice = &d
	}

	products, err := h.Catalog.List(c.UserContext(), f, q.Page)
	if err != nil {
		log.Error(c, "catalog.list", err, nil)
		return c.Status(fiber.StatusInternalServerError).Render("notfound", fiber.Map{"Message": "Could not load results. Please retry."})
	}
	return h.page(c, fiber.StatusOK, q, products, "")
}

func (h *CatalogHandler) page(c *fiber.Ctx, status int, q catalogQuery, products any, errMsg string) error {
	genres, err := h.Catalog.ListGenres(c.UserContext())
	if err != nil {
		return err
	}
	artists, err := h.Catalog.ListArtists(c.UserContext())
	if err != nil {
		return err
	}
	if products == nil {
		products = []any{}
	}
	c.Status(status)
	return render(c, "catalog", fiber.Map{
		"Query": q, "Genres": genres, "Artists": artists,
		"Products": products, "Err": errMsg,
		"PrevPage": q.Page - 1, "NextPage": q.Page + 1,
	})
}
