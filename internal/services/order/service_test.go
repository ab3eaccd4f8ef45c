package order

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	domain "github.com/nextcart/platform/internal/domain/order"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/services/catalog"
	paymentsvc "github.com/nextcart/platform/internal/services/payment"
	usersvc "github.com/nextcart/platform/internal/services/user"
	"github.com/nextcart/platform/internal/storage/memory"
)

type decliningGateway struct{}

func (decliningGateway) Charge(context.Context, string, int64) (string, error) {
	return "", errors.New("card declined")
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	userID  string
	product string
}

func newFixture(t *testing.T, gateway paymentsvc.Gateway) fixture {
	t.Helper()
	store := memory.New()

	users, err := usersvc.New(usersvc.Dependencies{
		Users:      store,
		Sessions:   store,
		Secret:     []byte("test-secret"),
		SessionTTL: time.Hour,
		Log:        logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("user service: %v", err)
	}
	catalogSvc, err := catalog.New(catalog.Dependencies{Products: store, Search: store, Log: logging.NewNop()})
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	payments, err := paymentsvc.New(paymentsvc.Dependencies{Payments: store, Gateway: gateway, Log: logging.NewNop()})
	if err != nil {
		t.Fatalf("payment service: %v", err)
	}
	svc, err := New(Dependencies{Orders: store, Catalog: catalogSvc, Payments: payments, Users: users, Log: logging.NewNop()})
	if err != nil {
		t.Fatalf("order service: %v", err)
	}

	ctx := context.Background()
	u, err := users.Register(ctx, usersvc.RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p, err := catalogSvc.Create(ctx, catalog.CreateInput{Name: "Keyboard", PriceCents: 4500, Stock: 3})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	return fixture{svc: svc, store: store, userID: u.ID, product: p.ID}
}

func TestCreateOrderHappyPath(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items:           []ItemInput{{ProductID: f.product, Quantity: 2}},
		ShippingAddress: "1 Main St",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != domain.StatusPaid {
		t.Fatalf("expected paid order, got %s", created.Status)
	}
	if created.TotalCents != 9000 {
		t.Fatalf("expected total 9000, got %d", created.TotalCents)
	}

	p, err := f.store.GetProduct(ctx, f.product)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if p.Stock != 1 {
		t.Fatalf("stock must be decremented to 1, got %d", p.Stock)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items: []ItemInput{{ProductID: f.product, Quantity: 10}},
	})
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(se.Message, "insufficient inventory") {
		t.Fatalf("error must name the inventory problem, got %q", se.Message)
	}

	// Nothing was charged and stock is untouched.
	p, _ := f.store.GetProduct(ctx, f.product)
	if p.Stock != 3 {
		t.Fatalf("stock must be untouched, got %d", p.Stock)
	}
	orders, _ := f.store.ListOrders(ctx, 0, 0)
	if len(orders) != 0 {
		t.Fatalf("no order may be persisted, found %d", len(orders))
	}
}

func TestCreateOrderPaymentDeclined(t *testing.T) {
	f := newFixture(t, decliningGateway{})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items: []ItemInput{{ProductID: f.product, Quantity: 1}},
	})
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected declined payment error, got %v", err)
	}

	// The pending order flips to cancelled and stock stays whole.
	orders, _ := f.store.ListOrders(ctx, 0, 0)
	if len(orders) != 1 || orders[0].Status != domain.StatusCancelled {
		t.Fatalf("expected one cancelled order, got %+v", orders)
	}
	p, _ := f.store.GetProduct(ctx, f.product)
	if p.Stock != 3 {
		t.Fatalf("stock must be untouched after decline, got %d", p.Stock)
	}
}

func TestGetHidesOtherUsersOrders(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items: []ItemInput{{ProductID: f.product, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.Get(ctx, "someone-else", created.ID)
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusNotFound {
		t.Fatalf("foreign order must read as missing, got %v", err)
	}
}

func TestCancelTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items: []ItemInput{{ProductID: f.product, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := f.svc.Cancel(ctx, f.userID, created.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	// Cancelling twice is idempotent.
	if _, err := f.svc.Cancel(ctx, f.userID, created.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}

	// A shipped order can no longer be cancelled.
	shipped, err := f.svc.UpdateStatus(ctx, created.ID, domain.StatusShipped)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	_, err = f.svc.Cancel(ctx, f.userID, shipped.ID)
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdateStatusValidatesValue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.userID, CreateInput{
		Items: []ItemInput{{ProductID: f.product, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, created.ID, domain.Status("teleported"))
	se := apperrors.GetServiceError(err)
	if se == nil || se.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
}
