package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminGuardRequiresAdmin(t *testing.T) {
	ta := newTestApp(t)

	anon := ta.get(t, "/admin", "")
	assert.Equal(t, http.StatusFound, anon.StatusCode)
	assert.Equal(t, "/login", anon.Header.Get("Location"))

	user := ta.get(t, "/admin", ta.session(t, "sid-user", "u-alice"))
	assert.Equal(t, http.StatusForbidden, user.StatusCode)
	assert.Contains(t, body(t, user), "Access denied")

	admin := ta.get(t, "/admin", ta.session(t, "sid-admin", "u-admin"))
	assert.Equal(t, http.StatusOK, admin.StatusCode)
	assert.Contains(t, body(t, admin), "Low stock")
}

func TestAdminPagesRender(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-admin", "u-admin")

	for _, path := range []string{"/admin/orders", "/admin/inventory", "/admin/coupons", "/admin/users"} {
		resp := ta.get(t, path, sid)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	users := body(t, ta.get(t, "/admin/users", sid))
	assert.Contains(t, users, "bob@musicstore.test")
	assert.NotContains(t, users, "admin@musicstore.test")
}

func TestAdminCouponLifecycle(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-admin", "u-admin")

	resp := ta.postForm(t, "/admin/coupons", sid, url.Values{
		"code": {"spring25"}, "discount_percent": {"25"},
		"valid_from": {"2026-03-01"}, "valid_to": {"2026-05-31"}, "active": {"1"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	var active bool
	require.NoError(t, ta.db.Get(&active, `SELECT active FROM coupons WHERE code='SPRING25'`))
	assert.True(t, active)
	assert.Len(t, ta.entries("admin.coupons.create"), 1)

	dup := ta.postForm(t, "/admin/coupons", sid, url.Values{"code": {"SPRING25"}, "discount_percent": {"5"}})
	assert.Equal(t, http.StatusConflict, dup.StatusCode)

	backwards := ta.postForm(t, "/admin/coupons", sid, url.Values{
		"code": {"LATE"}, "discount_percent": {"5"}, "valid_from": {"2026-05-01"}, "valid_to": {"2026-04-01"},
	})
	assert.Equal(t, http.StatusBadRequest, backwards.StatusCode)

	var id int64
	require.NoError(t, ta.db.Get(&id, `SELECT id FROM coupons WHERE code='SPRING25'`))
	toggle := ta.postForm(t, "/admin/coupons/"+itoa(id)+"/toggle", sid, url.Values{})
	require.Equal(t, http.StatusFound, toggle.StatusCode)
	require.NoError(t, ta.db.Get(&active, `SELECT active FROM coupons WHERE id=?`, id))
	assert.False(t, active)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-admin", "u-admin")

	self := ta.postForm(t, "/admin/users/u-admin/delete", sid, url.Values{})
	assert.Equal(t, http.StatusBadRequest, self.StatusCode)

	bob := ta.postForm(t, "/admin/users/u-bob/delete", sid, url.Values{})
	assert.Equal(t, http.StatusFound, bob.StatusCode)
	var n int
	require.NoError(t, ta.db.Get(&n, `SELECT COUNT(*) FROM users WHERE id='u-bob'`))
	assert.Zero(t, n)
	assert.Len(t, ta.entries("admin.users.delete"), 1)
}
