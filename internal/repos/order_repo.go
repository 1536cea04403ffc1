package repos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"musicstore/internal/domain"
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) DB() *sqlx.DB { return r.db }

// ---------- List summary ----------
type OrderSummary struct {
	ID                int64              `db:"id"`
	UserID            string             `db:"user_id"`
	UserEmail         string             `db:"email"`
	Status            domain.OrderStatus `db:"status"`
	DateOrder         time.Time          `db:"date_order"`
	ShippingAddressID sql.NullInt64      `db:"shipping_address_id"`
	CouponID          sql.NullInt64      `db:"coupon_id"`
	CouponCode        sql.NullString     `db:"code"`
	CouponPercent     sql.NullInt64      `db:"discount_percent"`
	CouponActive      sql.NullBool       `db:"active"`
}

// Coupon rebuilds the attached coupon, if any.
func (o OrderSummary) Coupon() *domain.Coupon {
	if !o.CouponID.Valid {
		return nil
	}
	return &domain.Coupon{
		ID:              o.CouponID.Int64,
		Code:            o.CouponCode.String,
		DiscountPercent: int(o.CouponPercent.Int64),
		Active:          o.CouponActive.Bool,
	}
}

// ---------- Order lines joined to products ----------
type OrderLineRow struct {
	ID           int64           `db:"id"`
	OrderID      int64           `db:"order_id"`
	ProductID    int64           `db:"product_id"`
	ProductName  string          `db:"product_name"`
	Quantity     int             `db:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order"`
}

const summarySelect = `
	SELECT o.id, o.user_id, u.email, o.status, o.date_order, o.shipping_address_id, o.coupon_id,
	       c.code, c.discount_percent, c.active
	FROM orders o
	JOIN users u ON u.id = o.user_id
	LEFT JOIN coupons c ON c.id = o.coupon_id`

// ---------- Checkout (inside a transaction) ----------

// EnsurePending returns the user's Pending order id, creating the order when
// none exists. The partial unique index on (user_id) WHERE status='Pending'
// keeps this to a single row per user.
func (r *OrderRepo) EnsurePending(ctx context.Context, tx *sqlx.Tx, userID string, now time.Time) (int64, error) {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
	  INSERT INTO orders(user_id, status, date_order)
	  VALUES(?, ?, ?)
	  ON CONFLICT (user_id) WHERE status = 'Pending' DO NOTHING
	`), userID, domain.StatusPending, now); err != nil {
		return 0, err
	}
	var id int64
	err := tx.GetContext(ctx, &id, tx.Rebind(`
	  SELECT id FROM orders WHERE user_id = ? AND status = ?`+forUpdate(tx)), userID, domain.StatusPending)
	return id, err
}

// ClearItems deletes every line of an order.
func (r *OrderRepo) ClearItems(ctx context.Context, tx *sqlx.Tx, orderID int64) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM order_items WHERE order_id = ?`), orderID)
	return err
}

// InsertItem inserts a single line item with its price snapshot.
func (r *OrderRepo) InsertItem(ctx context.Context, tx *sqlx.Tx, orderID, productID int64, qty int, price decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
	  INSERT INTO order_items(order_id, product_id, quantity, price_at_order)
	  VALUES(?, ?, ?, ?)
	`), orderID, productID, qty, price)
	return err
}

// Place attaches address and coupon and moves a Pending order to Placed.
func (r *OrderRepo) Place(ctx context.Context, tx *sqlx.Tx, orderID, addressID int64, couponID sql.NullInt64, now time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
	  UPDATE orders
	  SET shipping_address_id = ?, coupon_id = ?, status = ?, date_order = ?
	  WHERE id = ? AND status = ?
	`), addressID, couponID, domain.StatusPlaced, now, orderID, domain.StatusPending)
	return mustAffect(res, err)
}

// ---------- Reads ----------

func (r *OrderRepo) Get(ctx context.Context, orderID int64) (OrderSummary, error) {
	var o OrderSummary
	err := r.db.GetContext(ctx, &o, r.db.Rebind(summarySelect+` WHERE o.id = ?`), orderID)
	return o, err
}

// List returns orders newest first; an empty userID lists every user's orders.
func (r *OrderRepo) List(ctx context.Context, userID string, limit, offset int) ([]OrderSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	out := []OrderSummary{}
	q := summarySelect
	args := []any{}
	if userID != "" {
		q += ` WHERE o.user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY o.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// Lines loads the lines of the given orders joined to product names.
func (r *OrderRepo) Lines(ctx context.Context, orderIDs ...int64) ([]OrderLineRow, error) {
	out := []OrderLineRow{}
	if len(orderIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(`
	  SELECT oi.id, oi.order_id, oi.product_id, p.product_name, oi.quantity, oi.price_at_order
	  FROM order_items oi
	  JOIN products p ON p.id = oi.product_id
	  WHERE oi.order_id IN (?)
	  ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// ---------- Plain row access (REST API, admin) ----------

func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	o.DateOrder = time.Now().UTC()
	return r.db.GetContext(ctx, &o.ID, r.db.Rebind(`
	  INSERT INTO orders(user_id, status, date_order, shipping_address_id, coupon_id)
	  VALUES(?, ?, ?, ?, ?)
	  RETURNING id
	`), o.UserID, o.Status, o.DateOrder, o.ShippingAddressID, o.CouponID)
}

// UpdateStatus applies a checked transition; the row must still be in from.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) error {
	if _, err := from.Transition(to); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE orders SET status = ? WHERE id = ? AND status = ?`), to, id, from)
	return mustAffect(res, err)
}

func (r *OrderRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM orders WHERE id = ?`), id)
	return mustAffect(res, err)
}

// Items lists raw order lines; an empty userID lists all of them.
func (r *OrderRepo) Items(ctx context.Context, userID string) ([]domain.OrderItem, error) {
	out := []domain.OrderItem{}
	q := `SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_order
	      FROM order_items oi JOIN orders o ON o.id = oi.order_id`
	args := []any{}
	if userID != "" {
		q += ` WHERE o.user_id = ?`
		args = append(args, userID)
	}
	q += ` ORDER BY oi.id`
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

// Item returns one order line together with the owning user id.
func (r *OrderRepo) Item(ctx context.Context, id int64) (domain.OrderItem, string, error) {
	var row struct {
		domain.OrderItem
		UserID string `db:"user_id"`
	}
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
	  SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_order, o.user_id
	  FROM order_items oi JOIN orders o ON o.id = oi.order_id
	  WHERE oi.id = ?`), id)
	return row.OrderItem, row.UserID, err
}

// AddItem appends a line outside of checkout; the caller supplies the price.
func (r *OrderRepo) AddItem(ctx context.Context, it *domain.OrderItem) error {
	return r.db.GetContext(ctx, &it.ID, r.db.Rebind(`
	  INSERT INTO order_items(order_id, product_id, quantity, price_at_order)
	  VALUES(?, ?, ?, ?)
	  RETURNING id
	`), it.OrderID, it.ProductID, it.Quantity, it.PriceAtOrder)
}

func (r *OrderRepo) SetItemQty(ctx context.Context, id int64, qty int) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE order_items SET quantity = ? WHERE id = ?`), qty, id)
	return mustAffect(res, err)
}

func (r *OrderRepo) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM order_items WHERE id = ?`), id)
	return mustAffect(res, err)
}
