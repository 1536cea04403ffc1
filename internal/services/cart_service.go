package services

import (
	"context"

	"github.com/shopspring/decimal"

	"musicstore/internal/cart"
	"musicstore/internal/repos"
)

type CartService struct {
	Prods *repos.ProductRepo
}

func NewCartService(prods *repos.ProductRepo) *CartService {
	return &CartService{Prods: prods}
}

// Add puts one more unit of productID into crt. Products that no longer exist
// or have no stock are refused with ErrOutOfStock and crt is left unchanged;
// a new line in a full cart gets cart.ErrCartFull.
func (s *CartService) Add(ctx context.Context, crt cart.Cart, productID int64) error {
	p, err := s.Prods.Get(ctx, productID)
	if repos.IsNotFound(err) {
		return ErrOutOfStock
	}
	if err != nil {
		return err
	}
	if p.StockQuantity <= 0 {
		return ErrOutOfStock
	}
	return crt.Add(productID)
}

type CartLine struct {
	ProductID int64
	Name      string
	Artist    string
	Picture   string
	Price     decimal.Decimal
	Qty       int
	Stock     int
	Subtotal  decimal.Decimal
}

type CartView struct {
	Lines []CartLine
	Total decimal.Decimal
}

func (v CartView) Empty() bool { return len(v.Lines) == 0 }

// Read prices crt against live products. Ids that no longer resolve are
// skipped.
func (s *CartService) Read(ctx context.Context, crt cart.Cart) (CartView, error) {
	view := CartView{Lines: []CartLine{}, Total: decimal.Zero}
	if crt.Empty() {
		return view, nil
	}
	prods, err := s.Prods.ByIDs(ctx, crt.IDs())
	if err != nil {
		return view, err
	}
	for _, p := range prods {
		qty := crt[p.ID]
		sub := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		view.Lines = append(view.Lines, CartLine{
			ProductID: p.ID,
			Name:      p.Name,
			Artist:    p.ArtistName,
			Picture:   p.Picture,
			Price:     p.Price,
			Qty:       qty,
			Stock:     p.StockQuantity,
			Subtotal:  sub,
		})
		view.Total = view.Total.Add(sub)
	}
	return view, nil
}
