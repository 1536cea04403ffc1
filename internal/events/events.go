// Package events publishes notifications about placed orders to downstream
// consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced is emitted once per successful checkout, after commit.
type OrderPlaced struct {
	EventID    string          `json:"event_id"`
	OrderID    int64           `json:"order_id"`
	UserID     string          `json:"user_id"`
	Lines      []PlacedLine    `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	CouponCode string          `json:"coupon_code,omitempty"`
	PlacedAt   time.Time       `json:"placed_at"`
}

type PlacedLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlaced) error
	Close() error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
func (Noop) Close() error                                          { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []OrderPlaced
	Err    error
}

func (r *Recorder) PublishOrderPlaced(_ context.Context, ev OrderPlaced) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []OrderPlaced {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderPlaced(nil), r.events...)
}
