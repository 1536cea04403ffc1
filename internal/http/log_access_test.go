package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"musicstore/internal/cart"
)

func placeOrder(t *testing.T, ta *testApp, sid string) string {
	t.Helper()
	resp := ta.postForm(t, "/cart/update", sid, checkoutForm(""), cartCookie(cart.Cart{1: 1}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

func TestOrderOfAnotherUserLogsAndHides(t *testing.T) {
	ta := newTestApp(t)
	loc := placeOrder(t, ta, ta.session(t, "sid-alice", "u-alice"))

	resp := ta.get(t, loc, ta.session(t, "sid-bob", "u-bob"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Order not found")

	denied := ta.entries("access.denied.order")
	require.Len(t, denied, 1)
	assert.Equal(t, "u-bob", denied[0].ContextMap()["user_id"])
	assert.Equal(t, zapcore.WarnLevel, denied[0].Level)
	assert.Equal(t, "security", fieldsOf(denied[0])["kind"])

	staff := ta.get(t, loc, ta.session(t, "sid-admin", "u-admin"))
	assert.Equal(t, http.StatusOK, staff.StatusCode)
}

func TestMissingOrderLooksTheSame(t *testing.T) {
	ta := newTestApp(t)
	resp := ta.get(t, "/order/9999", ta.session(t, "sid-bob", "u-bob"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Order not found")
}

func TestAdminDenialIsLogged(t *testing.T) {
	ta := newTestApp(t)
	ta.get(t, "/admin/orders", ta.session(t, "sid-alice", "u-alice"))

	denied := ta.entries("access.denied.admin")
	require.Len(t, denied, 1)
	assert.Equal(t, "/admin/orders", denied[0].ContextMap()["path"])
}

func TestCSRFFailureIsLogged(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/cart", strings.NewReader(url.Values{"productId": {"1"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ta.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body(t, resp), "Security check failed")
	assert.Len(t, ta.entries("csrf.fail"), 1)

	api := ta.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/genres", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, api.StatusCode)
	assert.Contains(t, body(t, api), "csrf")
}

func TestEntriesCarryRequestID(t *testing.T) {
	ta := newTestApp(t)
	ta.get(t, "/admin", ta.session(t, "sid-alice", "u-alice"))

	denied := ta.entries("access.denied.admin")
	require.Len(t, denied, 1)
	assert.NotEmpty(t, denied[0].ContextMap()["req_id"])
}
