package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// OrderStatus is the lifecycle state of an order. Only Pending and Placed
// exist; a Pending order is the per-user checkout accumulation target.
type OrderStatus string

const (
	StatusPending OrderStatus = "Pending"
	StatusPlaced  OrderStatus = "Placed"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusPlaced:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	return s == StatusPending && next == StatusPlaced
}

// Transition returns next, or ErrInvalidTransition.
func (s OrderStatus) Transition(next OrderStatus) (OrderStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

func (s OrderStatus) Value() (driver.Value, error) { return string(s), nil }

func (s *OrderStatus) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("order status: unsupported type %T", src)
	}
	st, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
