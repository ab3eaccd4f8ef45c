// Package api is the route dispatcher: it binds verb+path patterns to
// handlers and composes the middleware pipeline around them.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nextcart/platform/internal/domain/identity"
	"github.com/nextcart/platform/internal/health"
	"github.com/nextcart/platform/internal/httputil"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/metrics"
	"github.com/nextcart/platform/internal/middleware"
	"github.com/nextcart/platform/internal/queue"
	"github.com/nextcart/platform/internal/services/analytics"
	"github.com/nextcart/platform/internal/services/catalog"
	ordersvc "github.com/nextcart/platform/internal/services/order"
	paymentsvc "github.com/nextcart/platform/internal/services/payment"
	usersvc "github.com/nextcart/platform/internal/services/user"
	"github.com/nextcart/platform/internal/storage"
)

// Config carries the pipeline configuration.
type Config struct {
	AllowedOrigins  []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	MaxBodyBytes    int64
	SessionSecret   []byte
	SessionTTL      time.Duration
	WebhookSecret   []byte
}

// Dependencies are the collaborators the dispatcher calls into.
type Dependencies struct {
	Users     *usersvc.Service
	Catalog   *catalog.Service
	Orders    *ordersvc.Service
	Payments  *paymentsvc.Service
	Analytics *analytics.Service
	Jobs      *queue.Producer
	Health    *health.Collector
	Sessions  storage.SessionStore
	Counter   storage.Counter
	Log       *logging.Logger
}

type handler struct {
	cfg  Config
	deps Dependencies
	log  *logging.Logger
}

// NewRouter builds the dispatcher with the full middleware pipeline applied
// in order: security headers, origin policy, rate limiting, body decoding,
// session resolution, then request logging wrapping the remaining chain.
// The chain wraps the router itself rather than registering via mux.Use, so
// unmatched paths and wrong-method requests still pass through every stage.
// Authentication and role gates apply per route.
func NewRouter(cfg Config, deps Dependencies) http.Handler {
	log := deps.Log
	if log == nil {
		log = logging.NewDefault("api")
	}
	h := &handler{cfg: cfg, deps: deps, log: log}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(h.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)

	// User management
	r.HandleFunc("/api/users/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/api/users/login", h.login).Methods(http.MethodPost)
	r.Handle("/api/users/logout", h.protected(h.logout)).Methods(http.MethodPost)
	r.Handle("/api/users/profile", h.protected(h.getProfile)).Methods(http.MethodGet)
	r.Handle("/api/users/profile", h.protected(h.updateProfile)).Methods(http.MethodPut)

	// Products (search registers before the {id} pattern)
	r.HandleFunc("/api/products/search", h.searchProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products", h.listProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/products/{id}", h.getProduct).Methods(http.MethodGet)
	r.Handle("/api/products", h.roleGated(identity.RoleAdmin, "products", h.createProduct)).Methods(http.MethodPost)

	// Orders
	r.Handle("/api/orders", h.protected(h.createOrder)).Methods(http.MethodPost)
	r.Handle("/api/orders", h.protected(h.listOrders)).Methods(http.MethodGet)
	r.Handle("/api/orders/{id}", h.protected(h.getOrder)).Methods(http.MethodGet)
	r.Handle("/api/orders/{id}/cancel", h.protected(h.cancelOrder)).Methods(http.MethodPut)

	// Payments
	r.Handle("/api/payments/process", h.protected(h.processPayment)).Methods(http.MethodPost)
	r.HandleFunc("/api/payments/webhook", h.paymentWebhook).Methods(http.MethodPost)

	// Admin
	r.Handle("/api/admin/analytics", h.roleGated(identity.RoleAdmin, "analytics", h.adminAnalytics)).Methods(http.MethodGet)
	r.Handle("/api/admin/orders", h.roleGated(identity.RoleAdmin, "orders", h.adminListOrders)).Methods(http.MethodGet)
	r.Handle("/api/admin/orders/{id}/status", h.roleGated(identity.RoleAdmin, "orders", h.adminUpdateOrderStatus)).Methods(http.MethodPut)

	// Health and monitoring
	r.HandleFunc("/health", h.healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return chain(r,
		middleware.Recovery(log),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(deps.Counter, cfg.RateLimitWindow, cfg.RateLimitMax, log),
		middleware.BodyDecoder(cfg.MaxBodyBytes),
		middleware.SessionResolver(deps.Sessions, cfg.SessionSecret, cfg.SessionTTL, log),
		middleware.RequestLogger(log),
	)
}

// chain wraps h in the given middleware, with the first listed outermost.
func chain(h http.Handler, mw ...mux.MiddlewareFunc) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// protected applies the authentication gate to a handler.
func (h *handler) protected(fn http.HandlerFunc) http.Handler {
	return middleware.RequireAuth()(fn)
}

// roleGated applies authentication plus the role/permission gate.
func (h *handler) roleGated(required identity.Role, resource string, fn http.HandlerFunc) http.Handler {
	return middleware.RequireAuth()(middleware.RequireRole(required, resource)(fn))
}

func (h *handler) notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}
