package repos

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ErrStockChanged is returned by Decrement when the guarded update matched
// no row, i.e. stock fell below the requested amount since it was read.
var ErrStockChanged = errors.New("stock changed concurrently")

type InventoryRepo struct{ db *sqlx.DB }

func NewInventoryRepo(db *sqlx.DB) *InventoryRepo { return &InventoryRepo{db: db} }

// Row used by admin inventory pages
type InventoryRow struct {
	ProductID int64           `db:"product_id"`
	Name      string          `db:"product_name"`
	Artist    string          `db:"artist_name"`
	Price     decimal.Decimal `db:"price"`
	Qty       int             `db:"stock_quantity"`
}

// ListAll returns every product with its stock (for /admin/inventory)
func (r *InventoryRepo) ListAll(ctx context.Context) ([]InventoryRow, error) {
	rows := []InventoryRow{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT p.id AS product_id, p.product_name, a.artist_name, p.price, p.stock_quantity
		FROM products p
		JOIN artists a ON a.id = p.artist_id
		ORDER BY p.product_name, p.id
	`)
	return rows, err
}

// Qty returns current stock for a product.
// If no row exists, it returns sql.ErrNoRows from sqlx.Get.
func (r *InventoryRepo) Qty(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := r.db.GetContext(ctx, &qty, r.db.Rebind(`SELECT stock_quantity FROM products WHERE id = ?`), productID)
	if err != nil {
		return 0, err
	}
	return qty, nil
}

// SetQty overwrites the stock of a product (admin correction).
func (r *InventoryRepo) SetQty(ctx context.Context, productID int64, qty int) error {
	if qty < 0 {
		return fmt.Errorf("negative stock %d for product %d", qty, productID)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`),
		qty, time.Now().UTC(), productID)
	return mustAffect(res, err)
}

// StockRow is a locked read of the columns checkout needs.
type StockRow struct {
	ID    int64           `db:"id"`
	Price decimal.Decimal `db:"price"`
	Qty   int             `db:"stock_quantity"`
}

// LockStock reads price and stock inside tx, taking a row lock where the
// dialect supports one. Returns sql.ErrNoRows when the product is gone.
func (r *InventoryRepo) LockStock(ctx context.Context, tx *sqlx.Tx, productID int64) (StockRow, error) {
	var row StockRow
	err := tx.GetContext(ctx, &row, tx.Rebind(`SELECT id, price, stock_quantity FROM products WHERE id = ?`+forUpdate(tx)), productID)
	return row, err
}

// Decrement atomically subtracts "by" units if enough stock exists.
// Returns ErrStockChanged if there isn't sufficient stock.
func (r *InventoryRepo) Decrement(ctx context.Context, tx *sqlx.Tx, productID int64, by int) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND stock_quantity >= ?
	`), by, time.Now().UTC(), productID, by)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrStockChanged)
	}
	return nil
}
