package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicstore/internal/cart"
	"musicstore/internal/services"
)

func TestAccountService_Visibility(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	alice, bob, admin := s.user(t, "u-alice"), s.user(t, "u-bob"), s.user(t, "u-admin")

	a, err := s.checkout.Checkout(ctx, services.CheckoutRequest{User: alice, Cart: cart.Cart{1: 1}, Address: validAddress()})
	require.NoError(t, err)
	b, err := s.checkout.Checkout(ctx, services.CheckoutRequest{User: bob, Cart: cart.Cart{3: 2}, Address: validAddress()})
	require.NoError(t, err)

	minePage, err := s.account.ListOrders(ctx, alice, 1)
	require.NoError(t, err)
	mine := minePage.Orders
	require.Len(t, mine, 1)
	assert.Equal(t, a.OrderID, mine[0].ID)
	assert.Equal(t, "29.99", mine[0].Total.StringFixed(2))

	allPage, err := s.account.ListOrders(ctx, admin, 1)
	require.NoError(t, err)
	all := allPage.Orders
	assert.Len(t, all, 2)
	assert.False(t, allPage.More)
	assert.Equal(t, b.OrderID, all[0].ID) // newest first
	assert.Equal(t, "48.00", all[0].Subtotal.StringFixed(2))

	// someone else's order reads as missing
	_, err = s.account.Order(ctx, alice, b.OrderID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = s.account.Order(ctx, admin, b.OrderID)
	assert.NoError(t, err)
	_, err = s.account.Order(ctx, alice, 9999)
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = s.account.ListOrders(ctx, nil, 1)
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestAccountService_SavedAddressesNewestFirst(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	alice := s.user(t, "u-alice")

	first := validAddress()
	second := validAddress()
	second.City = "Shelbyville"
	for _, addr := range []services.AddressForm{first, second} {
		_, err := s.checkout.Checkout(ctx, services.CheckoutRequest{User: alice, Cart: cart.Cart{5: 1}, Address: addr})
		require.NoError(t, err)
	}

	addrs, err := s.account.SavedAddresses(ctx, alice)
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.Equal(t, "Shelbyville", addrs[0].City)

	bobs, err := s.account.SavedAddresses(ctx, s.user(t, "u-bob"))
	require.NoError(t, err)
	assert.Empty(t, bobs)
}

func TestAccountService_LastAddress(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	alice := s.user(t, "u-alice")

	_, ok, err := s.account.LastAddress(ctx, alice)
	require.NoError(t, err)
	assert.False(t, ok)

	addr := validAddress()
	addr.City = "Ogdenville"
	_, err = s.checkout.Checkout(ctx, services.CheckoutRequest{User: alice, Cart: cart.Cart{5: 1}, Address: addr})
	require.NoError(t, err)

	last, ok, err := s.account.LastAddress(ctx, alice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ogdenville", last.City)

	_, _, err = s.account.LastAddress(ctx, nil)
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestAccountService_ListOrdersPages(t *testing.T) {
	s := newShop(t)
	ctx := context.Background()
	alice, admin := s.user(t, "u-alice"), s.user(t, "u-admin")
	s.account.PageSize = 2

	var placed []int64
	for i := 0; i < 3; i++ {
		res, err := s.checkout.Checkout(ctx, services.CheckoutRequest{User: alice, Cart: cart.Cart{5: 1}, Address: validAddress()})
		require.NoError(t, err)
		placed = append(placed, res.OrderID)
	}

	first, err := s.account.ListOrders(ctx, alice, 1)
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.True(t, first.More)
	assert.Equal(t, 2, first.NextPage())
	assert.Equal(t, placed[2], first.Orders[0].ID)
	assert.Equal(t, placed[1], first.Orders[1].ID)

	second, err := s.account.ListOrders(ctx, alice, 2)
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.False(t, second.More)
	assert.Zero(t, second.NextPage())
	assert.Equal(t, placed[0], second.Orders[0].ID)

	beyond, err := s.account.ListOrders(ctx, admin, 9)
	require.NoError(t, err)
	assert.Empty(t, beyond.Orders)

	// page numbers below one read as the first page
	zero, err := s.account.ListOrders(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, zero.Page)
	assert.Equal(t, first.Orders[0].ID, zero.Orders[0].ID)
}
