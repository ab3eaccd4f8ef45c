// Package storage declares the narrow backend-adapter interfaces the core
// depends on. Concrete implementations live in the subpackages; the core
// never reaches past these contracts.
package storage

import (
	"context"
	"time"

	"github.com/nextcart/platform/internal/domain/identity"
	"github.com/nextcart/platform/internal/domain/order"
	"github.com/nextcart/platform/internal/domain/payment"
	"github.com/nextcart/platform/internal/domain/product"
	"github.com/nextcart/platform/internal/domain/user"
)

// Pinger is implemented by every backend adapter so the health collector can
// probe connectivity.
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}

// UserStore persists user accounts in the document store.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
}

// ProductStore persists catalogue entries in the document store.
type ProductStore interface {
	CreateProduct(ctx context.Context, p product.Product) (product.Product, error)
	GetProduct(ctx context.Context, id string) (product.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]product.Product, error)
	UpdateProduct(ctx context.Context, p product.Product) (product.Product, error)
}

// OrderStore persists orders in the relational store.
type OrderStore interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]order.Order, error)
	UpdateOrder(ctx context.Context, o order.Order) (order.Order, error)
}

// PaymentStore persists payments in the relational store.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
	GetPayment(ctx context.Context, id string) (payment.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (payment.Payment, error)
	UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error)
}

// SessionStore keeps sessions in the cache store under a TTL. A token maps to
// at most one session; writes must be atomic at the store level.
type SessionStore interface {
	PutSession(ctx context.Context, token string, sess identity.Session, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (identity.Session, error)
	RefreshSession(ctx context.Context, token string, ttl time.Duration) error
	DeleteSession(ctx context.Context, token string) error
}

// Counter provides the atomic windowed increment backing fixed-window rate
// limiting. The first increment of a key starts its window; the key expires
// when the window elapses.
type Counter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// SearchIndex serves product search and analytics aggregation.
type SearchIndex interface {
	IndexProduct(ctx context.Context, p product.Product) error
	SearchProducts(ctx context.Context, query string, limit int) ([]product.Product, error)
	RecordEvent(ctx context.Context, kind string, fields map[string]interface{}) error
	EventCounts(ctx context.Context) (map[string]int64, error)
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "record not found" }

// ErrDuplicate is returned by stores on unique-constraint violations.
var ErrDuplicate = errDuplicate{}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "duplicate record" }
