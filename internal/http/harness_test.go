package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"musicstore/internal/config"
	"musicstore/internal/events"
	"musicstore/internal/http/handlers"
	applog "musicstore/internal/log"
	"musicstore/internal/repos"
)

// testApp is the full storefront over a seeded in-memory database with an
// observed logger.
type testApp struct {
	app    *fiber.App
	db     *sqlx.DB
	users  *repos.UserRepo
	logs   *observer.ObservedLogs
	events *events.Recorder
	csrf   string
}

func newTestApp(t *testing.T, tweak ...func(*handlers.AppOptions)) *testApp {
	t.Helper()
	db, err := repos.OpenDB(repos.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	core, logs := observer.New(zapcore.InfoLevel)
	prev := applog.L()
	applog.SetLogger(zap.New(core))
	t.Cleanup(func() { applog.SetLogger(prev) })

	rec := &events.Recorder{}
	opts := handlers.AppOptions{
		Config:       config.Config{MediaDir: "../../web/media"},
		TemplatesDir: "../../web/templates",
		StaticDir:    "../../web/static",
		Publisher:    rec,
		GlobalLimit:  handlers.Limit{Max: 1000},
		SearchLimit:  handlers.Limit{Max: 1000},
		AvailLimit:   handlers.Limit{Max: 1000},
		LoginLimit:   handlers.Limit{Max: 1000},
	}
	for _, f := range tweak {
		f(&opts)
	}
	return &testApp{
		app:    handlers.NewApp(db, opts),
		db:     db,
		users:  repos.NewUserRepo(db),
		logs:   logs,
		events: rec,
	}
}

// session binds sid to userID as if the user had logged in.
func (ta *testApp) session(t *testing.T, sid, userID string) string {
	t.Helper()
	require.NoError(t, ta.users.BindSession(context.Background(), sid, userID))
	return sid
}

func (ta *testApp) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (ta *testApp) get(t *testing.T, path, sid string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return ta.do(t, req)
}

// token fetches a csrf token once and reuses it; tokens are not single use.
func (ta *testApp) token(t *testing.T) string {
	t.Helper()
	if ta.csrf == "" {
		resp := ta.get(t, "/login", "")
		ta.csrf = cookieValue(resp, "csrf_")
		require.NotEmpty(t, ta.csrf, "csrf cookie missing")
	}
	return ta.csrf
}

func (ta *testApp) postForm(t *testing.T, path, sid string, form url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	tok := ta.token(t)
	form.Set("csrf", tok)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	return ta.do(t, req)
}

// sendJSON issues an API write with the csrf header.
func (ta *testApp) sendJSON(t *testing.T, method, path, sid, body string) *http.Response {
	t.Helper()
	tok := ta.token(t)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Csrf-Token", tok)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	return ta.do(t, req)
}

// entries returns the observed log entries for action.
func (ta *testApp) entries(action string) []observer.LoggedEntry {
	return ta.logs.FilterMessage(action).All()
}

func fieldsOf(e observer.LoggedEntry) map[string]any {
	f, _ := e.ContextMap()["fields"].(map[string]any)
	return f
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
