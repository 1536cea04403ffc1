package services

import (
	"context"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
)

type CatalogService struct {
	Genres   *repos.GenreRepo
	Artists  *repos.ArtistRepo
	Prods    *repos.ProductRepo
	PageSize int
}

func NewCatalogService(genres *repos.GenreRepo, artists *repos.ArtistRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Genres: genres, Artists: artists, Prods: prods, PageSize: 12}
}

func (s *CatalogService) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.Genres.List(ctx, "")
}

func (s *CatalogService) ListArtists(ctx context.Context) ([]domain.Artist, error) {
	return s.Artists.List(ctx, "")
}

// List runs a catalog query. page is 1-based; the sort key falls back to the
// default when it is not one of the accepted keys.
func (s *CatalogService) List(ctx context.Context, f repos.ProductFilter, page int) ([]domain.Product, error) {
	if page < 1 {
		page = 1
	}
	if f.Limit <= 0 {
		f.Limit = s.PageSize
	}
	f.Offset = (page - 1) * f.Limit
	f.Sort = repos.NormalizeSort(f.Sort)
	return s.Prods.List(ctx, f)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	p, err := s.Prods.Get(ctx, id)
	if repos.IsNotFound(err) {
		return p, ErrNotFound
	}
	return p, err
}
