package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrBadCreds         = errors.New("invalid email or password")
	ErrEmailTaken       = errors.New("email already registered")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrNothingAvailable = errors.New("none of the cart items are in stock")
	ErrOutOfStock       = errors.New("product is out of stock")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
)

// ValidationError carries per-field messages for re-rendering a form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ",")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = msg
}

func (e *ValidationError) empty() bool { return len(e.Fields) == 0 }
