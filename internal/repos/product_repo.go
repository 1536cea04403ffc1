package repos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"musicstore/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productSelect = `
  SELECT
    p.id, p.product_name, p.description, p.price, p.stock_quantity, p.picture,
    p.genre_id, p.artist_id, g.genre_name, a.artist_name, p.created_at, p.updated_at
  FROM products p
  JOIN genres g  ON g.id = p.genre_id
  JOIN artists a ON a.id = p.artist_id`

// ProductFilter composes the catalog query. Zero values mean "no filter".
type ProductFilter struct {
	Genre    string // genre name, case-insensitive
	ArtistID int64
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string // product or artist name substring
	Sort     string
	Limit    int
	Offset   int
}

// sortColumns whitelists the accepted sort keys; a leading '-' means descending.
var sortColumns = map[string]string{
	"price":        "p.price",
	"product_name": "LOWER(p.product_name)",
	"created_at":   "p.created_at",
}

// DefaultSort is used when the requested key is missing or unknown.
const DefaultSort = "created_at"

// NormalizeSort returns key when it is an accepted sort key, DefaultSort otherwise.
func NormalizeSort(key string) string {
	if _, ok := sortColumns[strings.TrimPrefix(key, "-")]; ok && key != "" {
		return key
	}
	return DefaultSort
}

func orderBy(key string) string {
	key = NormalizeSort(key)
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		dir = "DESC"
		key = key[1:]
	}
	return sortColumns[key] + " " + dir + ", p.id " + dir
}

func (r *ProductRepo) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Genre != "" {
		where = append(where, `LOWER(g.genre_name) = LOWER(?)`)
		args = append(args, f.Genre)
	}
	if f.ArtistID > 0 {
		where = append(where, `p.artist_id = ?`)
		args = append(args, f.ArtistID)
	}
	if f.MinPrice != nil {
		where = append(where, `p.price >= ?`)
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, `p.price <= ?`)
		args = append(args, *f.MaxPrice)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		where = append(where, `(LOWER(p.product_name) LIKE ? OR LOWER(a.artist_name) LIKE ?)`)
		args = append(args, like, like)
	}
	if f.Limit <= 0 {
		f.Limit = 24
	}
	q := productSelect + `
  WHERE ` + strings.Join(where, " AND ") + `
  ORDER BY ` + orderBy(f.Sort) + `
  LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	out := []domain.Product{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *ProductRepo) Get(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.GetContext(ctx, &p, r.db.Rebind(productSelect+` WHERE p.id = ?`), id)
	return p, err
}

// ByIDs loads the products that still exist among ids.
func (r *ProductRepo) ByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	out := []domain.Product{}
	if len(ids) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(productSelect+` WHERE p.id IN (?) ORDER BY p.id`, ids)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...)
	return out, err
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	p.CreatedAt = time.Now().UTC()
	return r.db.GetContext(ctx, &p.ID, r.db.Rebind(`
	  INSERT INTO products(product_name, description, price, stock_quantity, picture, genre_id, artist_id, created_at)
	  VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	  RETURNING id
	`), p.Name, p.Description, p.Price, p.StockQuantity, p.Picture, p.GenreID, p.ArtistID, p.CreatedAt)
}

func (r *ProductRepo) Update(ctx context.Context, p domain.Product) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
	  UPDATE products
	  SET product_name = ?, description = ?, price = ?, stock_quantity = ?, picture = ?,
	      genre_id = ?, artist_id = ?, updated_at = ?
	  WHERE id = ?
	`), p.Name, p.Description, p.Price, p.StockQuantity, p.Picture, p.GenreID, p.ArtistID, time.Now().UTC(), p.ID)
	return mustAffect(res, err)
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM products WHERE id = ?`), id)
	return mustAffect(res, err)
}
