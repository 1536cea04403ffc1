package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type ReviewRepo struct{ db *sqlx.DB }

func NewReviewRepo(db *sqlx.DB) *ReviewRepo { return &ReviewRepo{db: db} }

const reviewSelect = `
	SELECT r.id, r.rating, r.text, r.user_id, r.product_id, u.name AS user_name, r.created_at
	FROM reviews r
	JOIN users u ON u.id = r.user_id`

func (r *ReviewRepo) Add(ctx context.Context, rv *domain.Review) error {
	rv.CreatedAt = time.Now().UTC()
	return r.db.GetContext(ctx, &rv.ID, r.db.Rebind(`
	  INSERT INTO reviews(rating, text, user_id, product_id, created_at)
	  VALUES(?, ?, ?, ?, ?)
	  RETURNING id
	`), rv.Rating, rv.Text, rv.UserID, rv.ProductID, rv.CreatedAt)
}

// ForProduct lists a product's reviews newest first.
func (r *ReviewRepo) ForProduct(ctx context.Context, productID int64) ([]domain.Review, error) {
	out := []domain.Review{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(reviewSelect+`
	  WHERE r.product_id = ?
	  ORDER BY r.created_at DESC, r.id DESC`), productID)
	return out, err
}

// List returns reviews newest first; an empty userID lists all of them.
func (r *ReviewRepo) List(ctx context.Context, userID string) ([]domain.Review, error) {
	out := []domain.Review{}
	q := reviewSelect
	args := []any{}
	if userID != "" {
		q += ` WHERE r.user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY r.id DESC`
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *ReviewRepo) Get(ctx context.Context, id int64) (domain.Review, error) {
	var rv domain.Review
	err := r.db.GetContext(ctx, &rv, r.db.Rebind(reviewSelect+` WHERE r.id = ?`), id)
	return rv, err
}

func (r *ReviewRepo) Update(ctx context.Context, rv domain.Review) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE reviews SET rating = ?, text = ? WHERE id = ?`),
		rv.Rating, rv.Text, rv.ID)
	return mustAffect(res, err)
}

func (r *ReviewRepo) Remove(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM reviews WHERE id = ?`), id)
	return mustAffect(res, err)
}
