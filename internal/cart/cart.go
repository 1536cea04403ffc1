// Package cart holds the client-side shopping cart: a mapping from product id
// to requested quantity that travels with every request as a cookie and has
// no server-side row until checkout.
package cart

import (
	"encoding/json"
	"errors"
	"net/url"
	"sort"
)

// CookieName is the cookie the serialized cart lives in.
const CookieName = "cart"

type Action string

const (
	ActionInc    Action = "inc"
	ActionDec    Action = "dec"
	ActionRemove Action = "remove"
)

// Caps that keep the encoded cart well under the 4KB browser cookie limit.
const (
	MaxQty   = 50
	MaxLines = 30
)

var (
	ErrUnknownAction = errors.New("unknown cart action")
	ErrCartFull      = errors.New("cart is full")
)

// Cart maps product id to a positive quantity.
type Cart map[int64]int

// Parse decodes a serialized cart. Anything malformed yields an empty cart,
// and lines with non-positive quantities are dropped.
func Parse(raw string) Cart {
	c := Cart{}
	if raw == "" {
		return c
	}
	var decoded map[int64]int
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return c
	}
	ids := make([]int64, 0, len(decoded))
	for id, qty := range decoded {
		if id > 0 && qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > MaxLines {
		ids = ids[:MaxLines]
	}
	for _, id := range ids {
		c[id] = min(decoded[id], MaxQty)
	}
	return c
}

// Encode serializes the cart as {"<product id>": qty}.
func (c Cart) Encode() string {
	if len(c) == 0 {
		return "{}"
	}
	b, err := json.Marshal(map[int64]int(c))
	if err != nil {
		return "{}"
	}
	return string(b)
}

// CookieValue is Encode escaped so the quotes survive as a cookie value.
func (c Cart) CookieValue() string {
	return url.QueryEscape(c.Encode())
}

// FromCookie reverses CookieValue.
func FromCookie(raw string) Cart {
	s, err := url.QueryUnescape(raw)
	if err != nil {
		return Cart{}
	}
	return Parse(s)
}

// Add increments the line for id by one, stopping at MaxQty. A new line in a
// cart that already holds MaxLines lines is refused with ErrCartFull.
func (c Cart) Add(id int64) error {
	qty, ok := c[id]
	if !ok && len(c) >= MaxLines {
		return ErrCartFull
	}
	c[id] = min(qty+1, MaxQty)
	return nil
}

// Apply runs one quantity action against the line for id. Decrementing below
// one removes the line. An unknown action leaves the cart unchanged.
func (c Cart) Apply(id int64, a Action) error {
	switch a {
	case ActionInc:
		return c.Add(id)
	case ActionDec:
		if c[id] <= 1 {
			delete(c, id)
		} else {
			c[id]--
		}
	case ActionRemove:
		delete(c, id)
	default:
		return ErrUnknownAction
	}
	return nil
}

// IDs returns the product ids in ascending order.
func (c Cart) IDs() []int64 {
	ids := make([]int64, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c Cart) Len() int { return len(c) }

func (c Cart) Empty() bool { return len(c) == 0 }
