package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoginEventsAreLogged(t *testing.T) {
	ta := newTestApp(t)

	ta.postForm(t, "/login", "", url.Values{"email": {"not-an-email"}, "password": {"Passw0rd!"}})
	ta.postForm(t, "/login", "", url.Values{"email": {"bob@musicstore.test"}, "password": {"short"}})
	ta.postForm(t, "/login", "", url.Values{"email": {"bob@musicstore.test"}, "password": {"Wrongpass1!"}})
	ok := ta.postForm(t, "/login", "", url.Values{"email": {"bob@musicstore.test"}, "password": {"Passw0rd!"}})
	require.Equal(t, http.StatusFound, ok.StatusCode)

	fails := ta.entries("auth.login.fail")
	require.Len(t, fails, 3)
	assert.Equal(t, "bad_format", fieldsOf(fails[0])["reason"])
	assert.Equal(t, "bad_password_format", fieldsOf(fails[1])["reason"])
	assert.NotContains(t, fieldsOf(fails[2]), "reason")
	for _, e := range fails {
		assert.Equal(t, zapcore.WarnLevel, e.Level)
		assert.NotContains(t, fieldsOf(e), "password")
	}

	success := ta.entries("auth.login.success")
	require.Len(t, success, 1)
	assert.Equal(t, "bob@musicstore.test", fieldsOf(success[0])["email"])
	assert.Equal(t, "audit", fieldsOf(success[0])["kind"])
}

func TestLogoutIsAudited(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-bob", "u-bob")

	ta.postForm(t, "/logout", sid, url.Values{})
	out := ta.entries("auth.logout")
	require.Len(t, out, 1)
	assert.Equal(t, sid, fieldsOf(out[0])["sid"])
}
