package handlers_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRejectsBadQuery(t *testing.T) {
	ta := newTestApp(t)

	for _, q := range []string{
		"/catalog?q=" + url.QueryEscape("<script>alert(1)</script>"),
		"/catalog?genre=" + url.QueryEscape("<b>"),
		"/catalog?artist=abc",
		"/catalog?min=-3",
		"/catalog?max=1.999",
	} {
		resp := ta.get(t, q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
	assert.Len(t, ta.entries("validation.fail"), 5)
}

func TestCatalogFilters(t *testing.T) {
	ta := newTestApp(t)

	resp := ta.get(t, "/catalog?q=blue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Kind of Blue")
	assert.NotContains(t, page, "Discovery")

	rock := body(t, ta.get(t, "/catalog?genre=Rock&sort=-price", ""))
	assert.Contains(t, rock, "Wish You Were Here")
	assert.NotContains(t, rock, "Kind of Blue")

	cheap := body(t, ta.get(t, "/catalog?max=20", ""))
	assert.Contains(t, cheap, "Goldberg Variations")
	assert.NotContains(t, cheap, "The Dark Side of the Moon")
}

func TestAvailabilityRejectsBadID(t *testing.T) {
	ta := newTestApp(t)

	for _, id := range []string{"", "abc", "0", "-1"} {
		resp := ta.get(t, "/api/v1/availability?productId="+id, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, id)
		assert.Contains(t, body(t, resp), "productId")
	}

	ok := ta.get(t, "/api/v1/availability?productId=2", "")
	require.Equal(t, http.StatusOK, ok.StatusCode)
	assert.Contains(t, body(t, ok), "LOW_STOCK")
}

func TestProductPageEscapesStoredText(t *testing.T) {
	ta := newTestApp(t)

	res, err := ta.db.Exec(`INSERT INTO products(product_name, description, price, stock_quantity, picture, genre_id, artist_id)
		VALUES ('<script>alert(1)</script>', '<img src=x onerror=alert(2)>', 9.99, 5, '', 1, 1)`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	resp := ta.get(t, "/product/"+itoa(id), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := body(t, resp)
	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.NotContains(t, page, "<img src=x")
	assert.Contains(t, page, "&lt;script&gt;")
}

func TestReviewValidation(t *testing.T) {
	ta := newTestApp(t)
	sid := ta.session(t, "sid-alice", "u-alice")

	bad := ta.postForm(t, "/product/1/reviews", sid, url.Values{"rating": {"9"}, "text": {""}})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	page := body(t, bad)
	assert.Contains(t, page, "Rating must be between 1 and 5.")

	good := ta.postForm(t, "/product/1/reviews", sid, url.Values{"rating": {"4.5"}, "text": {"Warm pressing"}})
	require.Equal(t, http.StatusFound, good.StatusCode)
	assert.Equal(t, "/product/1#reviews", good.Header.Get("Location"))
	assert.Contains(t, body(t, ta.get(t, "/product/1", "")), "Warm pressing")

	anon := ta.postForm(t, "/product/1/reviews", "", url.Values{"rating": {"5"}, "text": {"x"}})
	assert.Equal(t, http.StatusFound, anon.StatusCode)
	assert.Equal(t, "/login", anon.Header.Get("Location"))
}

func TestUnknownProductAndPage(t *testing.T) {
	ta := newTestApp(t)

	for _, p := range []string{"/product/9999", "/product/abc", "/product", "/nope"} {
		resp := ta.get(t, p, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
	api := ta.get(t, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, api.StatusCode)
	assert.Contains(t, body(t, api), `"error"`)
}
