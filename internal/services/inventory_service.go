package services

import (
	"context"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
)

const (
	StockIn  = "IN_STOCK"
	StockLow = "LOW_STOCK"
	StockOut = "OUT_OF_STOCK"
)

type InventoryService struct {
	Inv *repos.InventoryRepo
}

func NewInventoryService(inv *repos.InventoryRepo) *InventoryService {
	return &InventoryService{Inv: inv}
}

// CheckAvailability converts stock into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64) (domain.Availability, error) {
	qty, err := s.Inv.Qty(ctx, productID)
	if err != nil {
		// an unknown product has nothing to sell
		if repos.IsNotFound(err) {
			return domain.Availability{Status: StockOut, Qty: 0}, nil
		}
		return domain.Availability{}, err
	}
	return domain.Availability{Status: StockStatus(qty), Qty: qty}, nil
}

func StockStatus(qty int) string {
	switch {
	case qty >= 5:
		return StockIn
	case qty > 0:
		return StockLow
	}
	return StockOut
}

func (s *InventoryService) List(ctx context.Context) ([]repos.InventoryRow, error) {
	return s.Inv.ListAll(ctx)
}

func (s *InventoryService) SetStock(ctx context.Context, productID int64, qty int) error {
	err := s.Inv.SetQty(ctx, productID, qty)
	if repos.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
