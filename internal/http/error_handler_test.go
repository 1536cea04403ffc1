package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandlerFriendlyMessage(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.db.Close())

	resp := ta.get(t, "/product/1", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Something went wrong")
	assert.NotContains(t, page, "sql")
	assert.NotContains(t, page, "closed")

	logged := ta.entries("server.error")
	require.NotEmpty(t, logged)
	assert.Contains(t, logged[0].ContextMap()["err"], "closed")
}

func TestErrorHandlerJSONForAPI(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, ta.db.Close())

	resp := ta.get(t, "/api/v1/genres", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Something went wrong. Please try again."}`, body(t, resp))
}

func TestHealthzReportsDatabase(t *testing.T) {
	ta := newTestApp(t)
	assert.Equal(t, http.StatusOK, ta.get(t, "/healthz", "").StatusCode)

	require.NoError(t, ta.db.Close())
	assert.Equal(t, http.StatusServiceUnavailable, ta.get(t, "/healthz", "").StatusCode)
}
