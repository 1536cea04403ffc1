package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicstore/internal/cart"
	"musicstore/internal/services"
)

func TestCartService_AddRefusesUnavailable(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	c := cart.Cart{}

	assert.ErrorIs(t, s.cart.Add(ctx, c, 4), services.ErrOutOfStock)   // stock 0
	assert.ErrorIs(t, s.cart.Add(ctx, c, 999), services.ErrOutOfStock) // missing
	assert.True(t, c.Empty())

	require.NoError(t, s.cart.Add(ctx, c, 2))
	require.NoError(t, s.cart.Add(ctx, c, 2))
	assert.Equal(t, 2, c[2])
}

func TestCartService_ReadSkipsUnknownProducts(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()

	v, err := s.cart.Read(ctx, cart.Cart{1: 2, 5: 1, 999: 4})
	require.NoError(t, err)
	require.Len(t, v.Lines, 2)

	assert.Equal(t, int64(1), v.Lines[0].ProductID)
	assert.Equal(t, "Pink Floyd", v.Lines[0].Artist)
	assert.Equal(t, 12, v.Lines[0].Stock)
	assert.Equal(t, "59.98", v.Lines[0].Subtotal.StringFixed(2))
	assert.Equal(t, "72.97", v.Total.StringFixed(2))
}

func TestCartService_ReadEmpty(t *testing.T) {
	s := newShop(t)
	v, err := s.cart.Read(context.Background(), cart.Parse("not json"))
	require.NoError(t, err)
	assert.True(t, v.Empty())
	assert.True(t, v.Total.IsZero())
}
