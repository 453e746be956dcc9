package rules

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(store Store) *echo.Echo {
	e := echo.New()
	h := NewHandlers(store)
	h.RegisterRoutes(e.Group("/api/v1/rules"))
	h.RegisterSettingsRoutes(e.Group("/api/v1/settings"))
	return e
}

func doRequest(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_RuleLifecycle(t *testing.T) {
	e := newTestServer(newTestSQLStore(t))

	rec := doRequest(e, http.MethodPost, "/api/v1/rules", `{"movieTitle":"Alpha","tmdbId":"42","showName":"Beta","episodes":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, int64(42), created.TmdbID)
	assert.Equal(t, []int{1}, created.Episodes)
	assert.Equal(t, "00", created.Season)

	rec = doRequest(e, http.MethodPost, "/api/v1/rules", `{"movieTitle":"Alpha","tmdbId":42,"showName":"Beta"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/rules", `{"showName":"Beta"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = doRequest(e, http.MethodGet, "/api/v1/rules/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/v1/rules/" + jsonNumber(created.ID)
	rec = doRequest(e, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(e, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_Settings(t *testing.T) {
	e := newTestServer(newTestSQLStore(t))

	rec := doRequest(e, http.MethodGet, "/api/v1/settings/show_roots", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(e, http.MethodPut, "/api/v1/settings/show_roots", `{"value":["/shows","/anime"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(e, http.MethodGet, "/api/v1/settings/show_roots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"key":"show_roots","value":["/shows","/anime"]}`, rec.Body.String())

	rec = doRequest(e, http.MethodPut, "/api/v1/settings/movie_root", `{"value":"/movies"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(e, http.MethodGet, "/api/v1/settings/movie_root", "")
	assert.JSONEq(t, `{"key":"movie_root","value":"/movies"}`, rec.Body.String())

	rec = doRequest(e, http.MethodPut, "/api/v1/settings/movie_root", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_StoreUnavailable(t *testing.T) {
	e := newTestServer(nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/rules", ""},
		{http.MethodPost, "/api/v1/rules", `{"movieTitle":"Alpha","showName":"Beta"}`},
		{http.MethodDelete, "/api/v1/rules/1", ""},
		{http.MethodGet, "/api/v1/settings/movie_root", ""},
		{http.MethodPut, "/api/v1/settings/movie_root", `{"value":"x"}`},
	} {
		rec := doRequest(e, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHandlers_ReadOnlyStore(t *testing.T) {
	store, _ := newTestYAMLStore(t)
	e := newTestServer(store)

	rec := doRequest(e, http.MethodGet, "/api/v1/rules", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/rules", `{"movieTitle":"Alpha","showName":"Beta"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = doRequest(e, http.MethodGet, "/api/v1/settings/movie_root", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingStore struct{}

func (failingStore) ListRules(context.Context) (RuleSet, error) { return nil, ErrStoreUnavailable }
func (failingStore) GetSetting(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}

func TestHandlers_SettingError(t *testing.T) {
	e := newTestServer(failingStore{})
	rec := doRequest(e, http.MethodGet, "/api/v1/settings/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
