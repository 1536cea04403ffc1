package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type GenreRepo struct{ db *sqlx.DB }

func NewGenreRepo(db *sqlx.DB) *GenreRepo { return &GenreRepo{db: db} }

// List returns genres ordered by name, optionally filtered by a name substring.
func (r *GenreRepo) List(ctx context.Context, search string) ([]domain.Genre, error) {
	out := []domain.Genre{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
	  SELECT id, genre_name, description
	  FROM genres
	  WHERE LOWER(genre_name) LIKE ?
	  ORDER BY genre_name
	`), likeArg(search))
	return out, err
}

func (r *GenreRepo) Get(ctx context.Context, id int64) (domain.Genre, error) {
	var g domain.Genre
	err := r.db.GetContext(ctx, &g, r.db.Rebind(`SELECT id, genre_name, description FROM genres WHERE id = ?`), id)
	return g, err
}

func (r *GenreRepo) Create(ctx context.Context, g *domain.Genre) error {
	return r.db.GetContext(ctx, &g.ID, r.db.Rebind(`
	  INSERT INTO genres(genre_name, description) VALUES(?, ?) RETURNING id
	`), g.Name, g.Description)
}

func (r *GenreRepo) Update(ctx context.Context, g domain.Genre) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE genres SET genre_name = ?, description = ? WHERE id = ?`),
		g.Name, g.Description, g.ID)
	return mustAffect(res, err)
}

func (r *GenreRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM genres WHERE id = ?`), id)
	return mustAffect(res, err)
}
