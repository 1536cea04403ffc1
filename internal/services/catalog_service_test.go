package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
	"musicstore/internal/services"
)

func names(ps []domain.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func TestCatalogService_List(t *testing.T) {
	db := memdb(t)
	svc := services.NewCatalogService(repos.NewGenreRepo(db), repos.NewArtistRepo(db), repos.NewProductRepo(db))
	ctx := context.Background()
	price := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	t.Run("genre is case-insensitive", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{Genre: "ROCK", Sort: "product_name"}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"The Dark Side of the Moon", "Wish You Were Here"}, names(ps))
	})

	t.Run("search matches artist name", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{Search: "miles"}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"Kind of Blue"}, names(ps))
	})

	t.Run("search matches product name", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{Search: "goldberg"}, 1)
		require.NoError(t, err)
		assert.Len(t, ps, 1)
	})

	t.Run("price window and descending price", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{MinPrice: price("25"), MaxPrice: price("30"), Sort: "-price"}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"The Dark Side of the Moon", "Wish You Were Here"}, names(ps))
	})

	t.Run("artist filter", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{ArtistID: 3}, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"Discovery"}, names(ps))
	})

	t.Run("unknown sort falls back", func(t *testing.T) {
		ps, err := svc.List(ctx, repos.ProductFilter{Sort: "price; DROP TABLE products"}, 1)
		require.NoError(t, err)
		assert.Len(t, ps, 5)
	})

	t.Run("paging", func(t *testing.T) {
		svc.PageSize = 2
		defer func() { svc.PageSize = 12 }()
		p3, err := svc.List(ctx, repos.ProductFilter{Sort: "price"}, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"Discovery"}, names(p3))
	})
}

func TestCatalogService_GetProduct(t *testing.T) {
	db := memdb(t)
	svc := services.NewCatalogService(repos.NewGenreRepo(db), repos.NewArtistRepo(db), repos.NewProductRepo(db))
	ctx := context.Background()

	p, err := svc.GetProduct(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "jazz", p.GenreName)
	assert.Equal(t, "Miles Davis", p.ArtistName)

	_, err = svc.GetProduct(ctx, 404)
	assert.ErrorIs(t, err, services.ErrNotFound)

	gs, err := svc.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, gs, 4)
	as, err := svc.ListArtists(ctx)
	require.NoError(t, err)
	assert.Len(t, as, 4)
}
