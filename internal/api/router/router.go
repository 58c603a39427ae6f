package router

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"stockdash/internal/api/auth"
	"stockdash/internal/api/product"
	"stockdash/internal/api/session"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/pkg/middleware"
	"stockdash/internal/pkg/telemetry"
	"stockdash/internal/service/authservice"
)

// Options carries the handlers and the optional cross-cutting pieces. A nil
// Auth leaves every route open; a nil RateLimit disables rate limiting.
type Options struct {
	Product   *product.Handler
	Session   *session.Handler
	Login     *auth.Handler
	Auth      func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
	Logger    logger.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(o Options) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.WithRequestID)
	r.Use(telemetry.Middleware)
	r.Use(middleware.WithLogging(o.Logger))
	if o.RateLimit != nil {
		r.Use(o.RateLimit)
	}

	r.HandleFunc("/ping", PingHandler).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Flat route table: a known path under another method answers 405.
	if o.Login != nil {
		r.HandleFunc("/v1/auth/login", o.Login.LoginHandler).Methods(http.MethodPost)
	}

	protect := func(h http.HandlerFunc) http.Handler {
		if o.Auth == nil {
			return h
		}
		return o.Auth(middleware.PermissionMiddleware(authservice.RoleAdmin)(h))
	}

	r.HandleFunc("/v1/products", o.Product.ListProductsHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/products/{code}", o.Product.GetProductHandler).Methods(http.MethodGet)
	r.Handle("/v1/products", protect(o.Product.CreateProductHandler)).Methods(http.MethodPost)
	r.Handle("/v1/products/{code}", protect(o.Product.UpdateProductHandler)).Methods(http.MethodPatch)
	r.Handle("/v1/products/{code}", protect(o.Product.DeleteProductHandler)).Methods(http.MethodDelete)

	r.Handle("/v1/update-sessions", protect(o.Session.CreateSessionHandler)).Methods(http.MethodPost)
	r.Handle("/v1/update-sessions/{id}", protect(o.Session.GetSessionHandler)).Methods(http.MethodGet)
	r.Handle("/v1/update-sessions/{id}/events", protect(o.Session.PostEventHandler)).Methods(http.MethodPost)
	r.Handle("/v1/update-sessions/{id}", protect(o.Session.DeleteSessionHandler)).Methods(http.MethodDelete)

	return r
}

// PingHandler answers the health check.
// @Summary Health check
// @Tags health
// @Produce plain
// @Success 200 {string} string "pong"
// @Router /ping [get]
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
