package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns the base router. Routes that need a caller identity are
// mounted by the handlers behind Authenticator.
func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// NewAPI mounts the order and listing routes behind bearer authentication.
func NewAPI(secret []byte, oh *OrdersHandler, lh *ListingsHandler) *chi.Mux {
	r := NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(Authenticator(secret))
		oh.Register(r)
		lh.Register(r)
	})
	return r
}
