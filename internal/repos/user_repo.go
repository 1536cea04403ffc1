package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"musicstore/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT id,email,name,password_hash,role FROM users WHERE LOWER(email)=LOWER(?)`), email)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT id,email,name,password_hash,role FROM users WHERE id=?`), id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user; the unique email index rejects duplicates.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
	  INSERT INTO users(id,email,name,password_hash,role,created_at)
	  VALUES(?,?,?,?,?,?)
	`), u.ID, u.Email, u.Name, u.Hash, u.Role, time.Now().UTC())
	return err
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	err := r.DB.SelectContext(ctx, &out, `SELECT id,email,name,password_hash,role FROM users ORDER BY email`)
	return out, err
}

func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`INSERT INTO sessions(id,user_id,created_at,last_seen)
                          VALUES(?,?,?,?)
                          ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=excluded.last_seen`), sid, userID, now, now)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`
      SELECT u.id,u.email,u.name,u.password_hash,u.role
      FROM sessions s
      JOIN users u ON u.id=s.user_id
      WHERE s.id=?`), sid)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE sessions SET user_id=NULL,last_seen=? WHERE id=?`), time.Now().UTC(), sid)
	return err
}

// DeleteUserCascade removes a user together with their sessions, orders,
// addresses and reviews.
func (r *UserRepo) DeleteUserCascade(ctx context.Context, userID string) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit deletes so the result does not depend on the sqlite foreign_keys pragma.
	for _, q := range []string{
		`DELETE FROM sessions WHERE user_id=?`,
		`DELETE FROM order_items WHERE order_id IN (SELECT id FROM orders WHERE user_id=?)`,
		`DELETE FROM orders WHERE user_id=?`,
		`DELETE FROM shipping_addresses WHERE user_id=?`,
		`DELETE FROM reviews WHERE user_id=?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), userID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM users WHERE id=?`), userID)
	if err := mustAffect(res, err); err != nil {
		return err
	}
	return tx.Commit()
}
