package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"musicstore/internal/domain"
	"musicstore/internal/repos"
)

type OrderLine struct {
	ProductID int64
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Subtotal  decimal.Decimal
}

// OrderView is an order with its computed money fields.
type OrderView struct {
	ID        int64
	UserID    string
	UserEmail string
	Status    domain.OrderStatus
	DateOrder time.Time
	Lines     []OrderLine
	Subtotal  decimal.Decimal
	Discount  decimal.Decimal
	Total     decimal.Decimal
	Coupon    *domain.Coupon
	Address   *domain.ShippingAddress
}

// DiscountApplied reports whether the attached coupon reduced the total.
func (v OrderView) DiscountApplied() bool { return v.Discount.IsPositive() }

// DefaultOrdersPerPage is the history page size when PageSize is unset.
const DefaultOrdersPerPage = 25

type AccountService struct {
	Orders    *repos.OrderRepo
	Addresses *repos.AddressRepo
	PageSize  int
}

func NewAccountService(orders *repos.OrderRepo, addrs *repos.AddressRepo) *AccountService {
	return &AccountService{Orders: orders, Addresses: addrs, PageSize: DefaultOrdersPerPage}
}

// OrderPage is one page of order history, newest first.
type OrderPage struct {
	Orders []OrderView
	Page   int
	More   bool
}

func (p OrderPage) PrevPage() int { return p.Page - 1 }

func (p OrderPage) NextPage() int {
	if !p.More {
		return 0
	}
	return p.Page + 1
}

// ListOrders lists one page (1-based) of the orders u may see: every order
// for staff, otherwise u's own.
func (s *AccountService) ListOrders(ctx context.Context, u *domain.User, page int) (OrderPage, error) {
	if u == nil {
		return OrderPage{}, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	size := s.PageSize
	if size <= 0 {
		size = DefaultOrdersPerPage
	}
	owner := u.ID
	if u.IsStaff() {
		owner = ""
	}
	// one extra row tells whether a next page exists
	sums, err := s.Orders.List(ctx, owner, size+1, (page-1)*size)
	if err != nil {
		return OrderPage{}, err
	}
	pg := OrderPage{Page: page}
	if len(sums) > size {
		pg.More = true
		sums = sums[:size]
	}
	ids := make([]int64, 0, len(sums))
	for _, o := range sums {
		ids = append(ids, o.ID)
	}
	rows, err := s.Orders.Lines(ctx, ids...)
	if err != nil {
		return OrderPage{}, err
	}
	byOrder := map[int64][]repos.OrderLineRow{}
	for _, r := range rows {
		byOrder[r.OrderID] = append(byOrder[r.OrderID], r)
	}
	pg.Orders = make([]OrderView, 0, len(sums))
	for _, o := range sums {
		pg.Orders = append(pg.Orders, buildView(o, byOrder[o.ID]))
	}
	return pg, nil
}

// Order returns one order. Orders owned by someone else read as ErrNotFound
// unless u is staff.
func (s *AccountService) Order(ctx context.Context, u *domain.User, id int64) (OrderView, error) {
	if u == nil {
		return OrderView{}, ErrForbidden
	}
	o, err := s.Orders.Get(ctx, id)
	if repos.IsNotFound(err) {
		return OrderView{}, ErrNotFound
	}
	if err != nil {
		return OrderView{}, err
	}
	if o.UserID != u.ID && !u.IsStaff() {
		return OrderView{}, ErrNotFound
	}
	rows, err := s.Orders.Lines(ctx, o.ID)
	if err != nil {
		return OrderView{}, err
	}
	v := buildView(o, rows)
	if o.ShippingAddressID.Valid {
		a, err := s.Addresses.Get(ctx, o.ShippingAddressID.Int64)
		if err != nil && !repos.IsNotFound(err) {
			return OrderView{}, err
		}
		if err == nil {
			v.Address = &a
		}
	}
	return v, nil
}

// SavedAddresses lists u's saved shipping addresses, newest first.
func (s *AccountService) SavedAddresses(ctx context.Context, u *domain.User) ([]domain.ShippingAddress, error) {
	if u == nil {
		return nil, ErrForbidden
	}
	return s.Addresses.List(ctx, u.ID)
}

// LastAddress is u's most recent shipping address; ok is false when there is none.
func (s *AccountService) LastAddress(ctx context.Context, u *domain.User) (domain.ShippingAddress, bool, error) {
	if u == nil {
		return domain.ShippingAddress{}, false, ErrForbidden
	}
	a, err := s.Addresses.Latest(ctx, u.ID)
	if repos.IsNotFound(err) {
		return a, false, nil
	}
	return a, err == nil, err
}

func buildView(o repos.OrderSummary, rows []repos.OrderLineRow) OrderView {
	v := OrderView{
		ID:        o.ID,
		UserID:    o.UserID,
		UserEmail: o.UserEmail,
		Status:    o.Status,
		DateOrder: o.DateOrder,
		Lines:     make([]OrderLine, 0, len(rows)),
		Coupon:    o.Coupon(),
	}
	lines := make([]domain.OrderItem, 0, len(rows))
	for _, r := range rows {
		it := domain.OrderItem{ProductID: r.ProductID, Quantity: r.Quantity, PriceAtOrder: r.PriceAtOrder}
		lines = append(lines, it)
		v.Lines = append(v.Lines, OrderLine{
			ProductID: r.ProductID,
			Name:      r.ProductName,
			Quantity:  r.Quantity,
			Price:     r.PriceAtOrder,
			Subtotal:  it.Subtotal(),
		})
	}
	v.Subtotal, v.Total = Totals(lines, v.Coupon)
	v.Discount = v.Subtotal.Sub(v.Total)
	return v
}

// Totals sums the lines at their snapshot prices. The coupon reduces the
// total only while it is active.
func Totals(items []domain.OrderItem, c *domain.Coupon) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal())
	}
	total = subtotal.Round(2)
	if c != nil && c.Active {
		total = c.Apply(subtotal)
	}
	return subtotal, total
}
