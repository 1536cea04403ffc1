package repos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type ArtistRepo struct{ db *sqlx.DB }

func NewArtistRepo(db *sqlx.DB) *ArtistRepo { return &ArtistRepo{db: db} }

func (r *ArtistRepo) List(ctx context.Context, search string) ([]domain.Artist, error) {
	out := []domain.Artist{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
	  SELECT id, artist_name, country
	  FROM artists
	  WHERE LOWER(artist_name) LIKE ?
	  ORDER BY artist_name
	`), likeArg(search))
	return out, err
}

func (r *ArtistRepo) Get(ctx context.Context, id int64) (domain.Artist, error) {
	var a domain.Artist
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`SELECT id, artist_name, country FROM artists WHERE id = ?`), id)
	return a, err
}

func (r *ArtistRepo) Create(ctx context.Context, a *domain.Artist) error {
	return r.db.GetContext(ctx, &a.ID, r.db.Rebind(`
	  INSERT INTO artists(artist_name, country) VALUES(?, ?) RETURNING id
	`), a.Name, a.Country)
}

func (r *ArtistRepo) Update(ctx context.Context, a domain.Artist) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE artists SET artist_name = ?, country = ? WHERE id = ?`),
		a.Name, a.Country, a.ID)
	return mustAffect(res, err)
}

func (r *ArtistRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM artists WHERE id = ?`), id)
	return mustAffect(res, err)
}

func likeArg(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
