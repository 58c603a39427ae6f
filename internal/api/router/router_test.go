package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stockdash/internal/api/auth"
	"stockdash/internal/api/product"
	"stockdash/internal/api/router"
	"stockdash/internal/api/session"
	"stockdash/internal/pkg/docstore/memory"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/pkg/middleware"
	"stockdash/internal/pkg/token"
	"stockdash/internal/repository/productrepo"
	"stockdash/internal/service/authservice"
	"stockdash/internal/service/productservice"
	"stockdash/internal/workflow"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newServer(t *testing.T, withAuth bool) *testServer {
	t.Helper()
	log := logger.Nop()
	repo := productrepo.NewProductRepository(memory.New(), 0)
	tokens := token.NewService("secret", time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	opts := router.Options{
		Product: product.NewHandler(productservice.NewService(repo, log), log),
		Session: session.NewHandler(workflow.NewRegistry(repo, log, time.Minute), log),
		Login: auth.NewHandler(authservice.NewService(authservice.Credentials{
			Username:     "admin",
			PasswordHash: string(hash),
		}, tokens, log), log),
		Logger: log,
	}
	if withAuth {
		opts.Auth = middleware.NewAuthMiddleware(tokens)
	}
	return &testServer{t: t, handler: router.NewRouter(opts)}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestPing(t *testing.T) {
	s := newServer(t, false)
	rr := s.do(http.MethodGet, "/ping", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestProductsLifecycle(t *testing.T) {
	s := newServer(t, false)

	rr := s.do(http.MethodGet, "/v1/products", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Empty(t, body["items"])
	assert.Equal(t, "info", body["notice"].(map[string]interface{})["level"])

	widget := map[string]interface{}{
		"code": "P1", "name": "Widget", "price": 9.99, "stock": 10, "stock_min": 2, "stock_max": 20,
	}
	rr = s.do(http.MethodPost, "/v1/products", widget)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodPost, "/v1/products", widget)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode(t, rr)["category"])

	rr = s.do(http.MethodPatch, "/v1/products/P1", map[string]interface{}{"stock": "7"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/v1/products/P1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode(t, rr)
	assert.Equal(t, float64(7), got["stock"])
	assert.Equal(t, 9.99, got["price"])
	assert.Equal(t, "Widget", got["name"])

	rr = s.do(http.MethodGet, "/v1/products", nil)
	assert.Len(t, decode(t, rr)["items"], 1)

	rr = s.do(http.MethodDelete, "/v1/products/P1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = s.do(http.MethodDelete, "/v1/products/P1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = s.do(http.MethodGet, "/v1/products", nil)
	assert.Empty(t, decode(t, rr)["items"])
}

func TestProductValidation(t *testing.T) {
	s := newServer(t, false)

	rr := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "W", "stock": -1})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "W", "colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPatch, "/v1/products/P1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPatch, "/v1/products/P1", map[string]interface{}{"stock": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestFractionalCountsRejected(t *testing.T) {
	s := newServer(t, false)
	rr := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "Widget", "stock": 10})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodPatch, "/v1/products/P1", map[string]interface{}{"stock": 7.5})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/update-sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode(t, rr)["id"].(string)
	events := []map[string]interface{}{
		{"type": "select_product", "name": "Widget"},
		{"type": "select_fields", "fields": []string{"stock_min"}},
	}
	for _, ev := range events {
		rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", ev)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", map[string]interface{}{"type": "enter_value", "field": "stock_min", "value": 2.9})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", map[string]interface{}{"type": "enter_value", "field": "stock_min", "value": 9007199254740993})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"stock_min":9007199254740993`)

	rr = s.do(http.MethodGet, "/v1/products/P1", nil)
	assert.Equal(t, float64(10), decode(t, rr)["stock"])
}

func TestUpdateSessionFlow(t *testing.T) {
	s := newServer(t, false)
	rr := s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "Widget", "stock": 10})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = s.do(http.MethodPost, "/v1/update-sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	view := decode(t, rr)
	id := view["id"].(string)
	assert.Equal(t, "select_product", view["state"])
	assert.Equal(t, []interface{}{"Widget"}, view["options"])

	events := []map[string]interface{}{
		{"type": "select_product", "name": "Widget"},
		{"type": "proceed"},
		{"type": "select_fields", "fields": []string{"stock"}},
		{"type": "enter_value", "field": "stock", "value": "3"},
	}
	for _, ev := range events {
		rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", ev)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", map[string]interface{}{"type": "enter_value", "field": "stock", "value": -2})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(http.MethodPost, "/v1/update-sessions/"+id+"/events", map[string]interface{}{"type": "submit"})
	require.Equal(t, http.StatusOK, rr.Code)
	view = decode(t, rr)
	assert.Equal(t, "done", view["state"])

	rr = s.do(http.MethodGet, "/v1/products/P1", nil)
	assert.Equal(t, float64(3), decode(t, rr)["stock"])

	rr = s.do(http.MethodDelete, "/v1/update-sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = s.do(http.MethodGet, "/v1/update-sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuthRequiredForWrites(t *testing.T) {
	s := newServer(t, true)

	rr := s.do(http.MethodGet, "/v1/products", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "Widget"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/v1/update-sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "admin", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/v1/auth/login", map[string]string{"username": "admin", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rr.Code)
	s.token = decode(t, rr)["token"].(string)

	rr = s.do(http.MethodPost, "/v1/products", map[string]interface{}{"code": "P1", "name": "Widget"})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestMethodNotRouted(t *testing.T) {
	s := newServer(t, false)
	rr := s.do(http.MethodPut, "/v1/products/P1", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = s.do(http.MethodPatch, "/v1/update-sessions", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = s.do(http.MethodGet, "/v1/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
