package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type AddressRepo struct{ db *sqlx.DB }

func NewAddressRepo(db *sqlx.DB) *AddressRepo { return &AddressRepo{db: db} }

const addressCols = `id, user_id, full_name, phone, city, address_line, postal_code, created_at`

// Insert stores a new address inside the checkout transaction.
func (r *AddressRepo) Insert(ctx context.Context, tx *sqlx.Tx, a *domain.ShippingAddress) error {
	a.CreatedAt = time.Now().UTC()
	return tx.GetContext(ctx, &a.ID, tx.Rebind(`
	  INSERT INTO shipping_addresses(user_id, full_name, phone, city, address_line, postal_code, created_at)
	  VALUES(?, ?, ?, ?, ?, ?, ?)
	  RETURNING id
	`), a.UserID, a.FullName, a.Phone, a.City, a.AddressLine, a.PostalCode, a.CreatedAt)
}

func (r *AddressRepo) Create(ctx context.Context, a *domain.ShippingAddress) error {
	a.CreatedAt = time.Now().UTC()
	return r.db.GetContext(ctx, &a.ID, r.db.Rebind(`
	  INSERT INTO shipping_addresses(user_id, full_name, phone, city, address_line, postal_code, created_at)
	  VALUES(?, ?, ?, ?, ?, ?, ?)
	  RETURNING id
	`), a.UserID, a.FullName, a.Phone, a.City, a.AddressLine, a.PostalCode, a.CreatedAt)
}

func (r *AddressRepo) Get(ctx context.Context, id int64) (domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`SELECT `+addressCols+` FROM shipping_addresses WHERE id = ?`), id)
	return a, err
}

// Latest returns the most recently created address of a user.
func (r *AddressRepo) Latest(ctx context.Context, userID string) (domain.ShippingAddress, error) {
	var a domain.ShippingAddress
	err := r.db.GetContext(ctx, &a, r.db.Rebind(`
	  SELECT `+addressCols+` FROM shipping_addresses
	  WHERE user_id = ? ORDER BY id DESC LIMIT 1`), userID)
	return a, err
}

// List returns addresses newest first; an empty userID lists all of them.
func (r *AddressRepo) List(ctx context.Context, userID string) ([]domain.ShippingAddress, error) {
	out := []domain.ShippingAddress{}
	q := `SELECT ` + addressCols + ` FROM shipping_addresses`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY id DESC`
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *AddressRepo) Update(ctx context.Context, a domain.ShippingAddress) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE shipping_addresses
	  SET full_name = ?, phone = ?, city = ?, address_line = ?, postal_code = ?
	  WHERE id = ?
	`), a.FullName, a.Phone, a.City, a.AddressLine, a.PostalCode, a.ID)
	return mustAffect(res, err)
}

func (r *AddressRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM shipping_addresses WHERE id = ?`), id)
	return mustAffect(res, err)
}
