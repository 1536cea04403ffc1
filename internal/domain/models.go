package domain

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Genre struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"genre_name" json:"genre_name"`
	Description string `db:"description" json:"description"`
}

type Artist struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"artist_name" json:"artist_name"`
	Country string `db:"country" json:"country"`
}

type Product struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"product_name" json:"product_name"`
	Description   string          `db:"description" json:"description"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Picture       string          `db:"picture" json:"picture"`
	GenreID       int64           `db:"genre_id" json:"genre"`
	ArtistID      int64           `db:"artist_id" json:"artist"`
	GenreName     string          `db:"genre_name" json:"-"`
	ArtistName    string          `db:"artist_name" json:"-"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     sql.NullTime    `db:"updated_at" json:"-"`
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty,omitempty"`
}

type Order struct {
	ID                int64         `db:"id" json:"id"`
	UserID            string        `db:"user_id" json:"user"`
	Status            OrderStatus   `db:"status" json:"status"`
	DateOrder         time.Time     `db:"date_order" json:"date_order"`
	ShippingAddressID sql.NullInt64 `db:"shipping_address_id" json:"-"`
	CouponID          sql.NullInt64 `db:"coupon_id" json:"-"`
}

type OrderItem struct {
	ID           int64           `db:"id" json:"id"`
	OrderID      int64           `db:"order_id" json:"order"`
	ProductID    int64           `db:"product_id" json:"product"`
	Quantity     int             `db:"quantity" json:"quantity"`
	PriceAtOrder decimal.Decimal `db:"price_at_order" json:"price_at_order"`
}

// Subtotal is the line amount at the snapshot price.
func (it OrderItem) Subtotal() decimal.Decimal {
	return it.PriceAtOrder.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type ShippingAddress struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user"`
	FullName    string    `db:"full_name" json:"full_name"`
	Phone       string    `db:"phone" json:"phone"`
	City        string    `db:"city" json:"city"`
	AddressLine string    `db:"address_line" json:"address_line"`
	PostalCode  string    `db:"postal_code" json:"postal_code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Review struct {
	ID        int64     `db:"id" json:"id"`
	Rating    float64   `db:"rating" json:"rating"`
	Text      string    `db:"text" json:"text"`
	UserID    string    `db:"user_id" json:"user"`
	ProductID int64     `db:"product_id" json:"product"`
	UserName  string    `db:"user_name" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
