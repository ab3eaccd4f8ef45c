// Package order implements order creation and lifecycle transitions. It is
// the one service with peer-service dependencies: payment, catalog and user.
package order

import (
	"context"

	"github.com/nextcart/platform/internal/domain/order"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/services/catalog"
	paymentsvc "github.com/nextcart/platform/internal/services/payment"
	usersvc "github.com/nextcart/platform/internal/services/user"
	"github.com/nextcart/platform/internal/storage"
)

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Orders   storage.OrderStore
	Catalog  *catalog.Service
	Payments *paymentsvc.Service
	Users    *usersvc.Service
	Log      *logging.Logger
}

// Service orchestrates orders across inventory and payment.
type Service struct {
	orders   storage.OrderStore
	catalog  *catalog.Service
	payments *paymentsvc.Service
	users    *usersvc.Service
	log      *logging.Logger
}

// New wires the service. Every peer dependency is required.
func New(deps Dependencies) (*Service, error) {
	if deps.Orders == nil {
		return nil, apperrors.Internal("order service: order store is required", nil)
	}
	if deps.Catalog == nil {
		return nil, apperrors.Internal("order service: catalog service is required", nil)
	}
	if deps.Payments == nil {
		return nil, apperrors.Internal("order service: payment service is required", nil)
	}
	if deps.Users == nil {
		return nil, apperrors.Internal("order service: user service is required", nil)
	}
	if deps.Log == nil {
		deps.Log = logging.NewDefault("order-service")
	}
	return &Service{
		orders:   deps.Orders,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		users:    deps.Users,
		log:      deps.Log,
	}, nil
}

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateInput is the payload for Create.
type CreateInput struct {
	Items           []ItemInput `json:"items"`
	ShippingAddress string      `json:"shipping_address"`
}

// Create verifies the user, checks stock, captures payment and persists the
// order. Inventory shortage and declined payment both abort before anything
// is persisted as paid.
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (order.Order, error) {
	if len(input.Items) == 0 {
		return order.Order{}, apperrors.ValidationFields([]string{"items"})
	}

	lines := make([]catalog.Line, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return order.Order{}, apperrors.ValidationFields([]string{"items"})
		}
		lines = append(lines, catalog.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	if _, err := s.users.Get(ctx, userID); err != nil {
		return order.Order{}, err
	}

	priced, err := s.catalog.CheckAvailability(ctx, lines)
	if err != nil {
		return order.Order{}, err
	}

	items := make([]order.Item, 0, len(input.Items))
	var total int64
	for _, item := range input.Items {
		p := priced[item.ProductID]
		items = append(items, order.Item{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: p.PriceCents,
		})
		total += p.PriceCents * int64(item.Quantity)
	}

	created, err := s.orders.CreateOrder(ctx, order.Order{
		UserID:          userID,
		Items:           items,
		TotalCents:      total,
		Status:          order.StatusPending,
		ShippingAddress: input.ShippingAddress,
	})
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}

	if _, err := s.payments.Charge(ctx, created.ID, userID, total); err != nil {
		created.Status = order.StatusCancelled
		if _, updateErr := s.orders.UpdateOrder(ctx, created); updateErr != nil {
			s.log.WithContext(ctx).WithError(updateErr).WithField("order_id", created.ID).Error("cancel unpaid order")
		}
		return order.Order{}, err
	}

	if err := s.catalog.DecrementStock(ctx, lines); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("order_id", created.ID).Error("decrement stock after charge")
	}

	created.Status = order.StatusPaid
	paid, err := s.orders.UpdateOrder(ctx, created)
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"order_id":    paid.ID,
		"total_cents": paid.TotalCents,
	}).Info("order created")
	return paid, nil
}

// Get returns the order if it belongs to userID. Other users' orders read as
// missing.
func (s *Service) Get(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err == storage.ErrNotFound {
		return order.Order{}, apperrors.NotFound("order")
	}
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}
	if o.UserID != userID {
		return order.Order{}, apperrors.NotFound("order")
	}
	return o, nil
}

// ListForUser returns the user's orders.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	out, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Dependency("relationalStore", err)
	}
	return out, nil
}

// Cancel transitions the user's order to cancelled. Shipped and delivered
// orders can no longer be cancelled.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return order.Order{}, err
	}

	switch o.Status {
	case order.StatusCancelled:
		return o, nil
	case order.StatusPending, order.StatusPaid:
		o.Status = order.StatusCancelled
	default:
		return order.Order{}, apperrors.Conflict("order can no longer be cancelled")
	}

	updated, err := s.orders.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}
	return updated, nil
}

// ListAll returns a page of every order. Admin surface.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]order.Order, error) {
	out, err := s.orders.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Dependency("relationalStore", err)
	}
	return out, nil
}

// UpdateStatus sets an order's status to any valid value. Admin surface.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status order.Status) (order.Order, error) {
	if !order.ValidStatus(status) {
		return order.Order{}, apperrors.ValidationFields([]string{"status"})
	}

	o, err := s.orders.GetOrder(ctx, orderID)
	if err == storage.ErrNotFound {
		return order.Order{}, apperrors.NotFound("order")
	}
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}

	o.Status = status
	updated, err := s.orders.UpdateOrder(ctx, o)
	if err != nil {
		return order.Order{}, apperrors.Dependency("relationalStore", err)
	}
	return updated, nil
}
