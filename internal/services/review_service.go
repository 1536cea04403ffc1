package services

import (
	"context"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
	"musicstore/internal/validate"
)

type ReviewService struct {
	Repo  *repos.ReviewRepo
	Prods *repos.ProductRepo
}

func NewReviewService(r *repos.ReviewRepo, prods *repos.ProductRepo) *ReviewService {
	return &ReviewService{Repo: r, Prods: prods}
}

// Post validates and stores a review by u on productID.
func (s *ReviewService) Post(ctx context.Context, u *domain.User, productID int64, rating, text string) (domain.Review, error) {
	if u == nil {
		return domain.Review{}, ErrForbidden
	}
	var ve ValidationError
	r, ok := validate.Rating(rating)
	if !ok {
		ve.add("rating", "Rating must be between 1 and 5.")
	}
	body, ok := validate.Text(text, 200)
	if !ok {
		ve.add("text", "Review text is required (max 200 characters).")
	}
	if !ve.empty() {
		return domain.Review{}, &ve
	}
	if _, err := s.Prods.Get(ctx, productID); err != nil {
		if repos.IsNotFound(err) {
			return domain.Review{}, ErrNotFound
		}
		return domain.Review{}, err
	}
	rv := domain.Review{Rating: r, Text: body, UserID: u.ID, ProductID: productID, UserName: u.Name}
	if err := s.Repo.Add(ctx, &rv); err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

func (s *ReviewService) ForProduct(ctx context.Context, productID int64) ([]domain.Review, error) {
	return s.Repo.ForProduct(ctx, productID)
}

// ByUser lists the reviews u wrote, newest first.
func (s *ReviewService) ByUser(ctx context.Context, u *domain.User) ([]domain.Review, error) {
	if u == nil {
		return nil, ErrForbidden
	}
	return s.Repo.List(ctx, u.ID)
}
