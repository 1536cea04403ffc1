package handlers_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"musicstore/internal/http/handlers"
	"musicstore/internal/repos"
)

func TestPasswordsSeededAreHashed(t *testing.T) {
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var hashes []string
	require.NoError(t, db.Select(&hashes, `SELECT password_hash FROM users`))
	require.NotEmpty(t, hashes, "no users seeded")
	for _, h := range hashes {
		assert.NotContains(t, h, "Passw0rd!")
		assert.True(t, strings.HasPrefix(h, "$2"), "unexpected hash format: %s", h)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(h), []byte("Passw0rd!")))
	}
}

func TestLoginSuccessFailAndThrottle(t *testing.T) {
	ta := newTestApp(t, func(o *handlers.AppOptions) {
		o.LoginLimit = handlers.Limit{Max: 2}
	})

	bad := ta.postForm(t, "/login", "", url.Values{"email": {"alice@musicstore.test"}, "password": {"Wrongpass1!"}})
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
	assert.Contains(t, body(t, bad), "Invalid email or password")

	good := ta.postForm(t, "/login", "", url.Values{"email": {"alice@musicstore.test"}, "password": {"Passw0rd!"}})
	assert.Equal(t, http.StatusFound, good.StatusCode)
	sid := cookieValue(good, "sid")
	require.NotEmpty(t, sid, "session cookie missing")

	u, err := ta.users.SessionUser(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "u-alice", u.ID)

	third := ta.postForm(t, "/login", "", url.Values{"email": {"alice@musicstore.test"}, "password": {"Wrongpass1!"}})
	assert.Equal(t, http.StatusTooManyRequests, third.StatusCode)
	assert.Len(t, ta.entries("rate.login.hit"), 1)
}

func TestSignupCreatesAccountAndSession(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.postForm(t, "/signup", "", url.Values{
		"name": {"Carol"}, "email": {"carol@musicstore.test"},
		"password": {"Secr3t!pass"}, "confirm": {"Secr3t!pass"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	sid := cookieValue(resp, "sid")
	require.NotEmpty(t, sid)

	u, err := ta.users.SessionUser(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "carol@musicstore.test", u.Email)
	assert.Equal(t, "USER", u.Role)
	assert.NotEqual(t, "Secr3t!pass", u.Hash)

	account := ta.get(t, "/account", sid)
	assert.Equal(t, http.StatusOK, account.StatusCode)
}

func TestSignupRejectsDuplicateAndWeakInput(t *testing.T) {
	ta := newTestApp(t)

	dup := ta.postForm(t, "/signup", "", url.Values{
		"name": {"Alice again"}, "email": {"ALICE@musicstore.test"},
		"password": {"Secr3t!pass"}, "confirm": {"Secr3t!pass"},
	})
	assert.Equal(t, http.StatusBadRequest, dup.StatusCode)
	assert.Contains(t, body(t, dup), "already exists")

	weak := ta.postForm(t, "/signup", "", url.Values{
		"name": {"Dan"}, "email": {"dan@musicstore.test"},
		"password": {"short"}, "confirm": {"other"},
	})
	assert.Equal(t, http.StatusBadRequest, weak.StatusCode)
	page := body(t, weak)
	assert.Contains(t, page, "Passwords do not match")
	assert.Contains(t, page, "8-20 characters")
	assert.Len(t, ta.entries("auth.signup.fail"), 2)
}

func TestLogoutEndsSession(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-logout", "u-alice")

	resp := ta.postForm(t, "/logout", sid, url.Values{})
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	_, err := ta.users.SessionUser(context.Background(), sid)
	assert.Error(t, err)

	after := ta.get(t, "/account", sid)
	assert.Equal(t, http.StatusFound, after.StatusCode)
	assert.Equal(t, "/login", after.Header.Get("Location"))
}
