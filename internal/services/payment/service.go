// Package payment implements charge processing and webhook settlement.
package payment

import (
	"context"

	"github.com/google/uuid"

	domain "github.com/nextcart/platform/internal/domain/payment"
	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
	"github.com/nextcart/platform/internal/storage"
)

// Gateway is the external charge processor. The core only sees its
// result/error contract.
type Gateway interface {
	// Charge attempts to capture amountCents and returns the provider
	// reference on success.
	Charge(ctx context.Context, userID string, amountCents int64) (string, error)
}

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Payments storage.PaymentStore
	Gateway  Gateway
	Log      *logging.Logger
}

// Service records payments and reconciles provider webhooks.
type Service struct {
	payments storage.PaymentStore
	gateway  Gateway
	log      *logging.Logger
}

// New wires the service. A nil gateway is replaced with the accept-all stub
// used outside production.
func New(deps Dependencies) (*Service, error) {
	if deps.Payments == nil {
		return nil, apperrors.Internal("payment service: payment store is required", nil)
	}
	if deps.Gateway == nil {
		deps.Gateway = stubGateway{}
	}
	if deps.Log == nil {
		deps.Log = logging.NewDefault("payment-service")
	}
	return &Service{payments: deps.Payments, gateway: deps.Gateway, log: deps.Log}, nil
}

// Charge captures a payment for an order and records the outcome.
func (s *Service) Charge(ctx context.Context, orderID, userID string, amountCents int64) (domain.Payment, error) {
	if amountCents <= 0 {
		return domain.Payment{}, apperrors.Validation("payment amount must be positive")
	}

	reference, err := s.gateway.Charge(ctx, userID, amountCents)
	if err != nil {
		if _, recordErr := s.payments.CreatePayment(ctx, domain.Payment{
			OrderID:     orderID,
			UserID:      userID,
			AmountCents: amountCents,
			Status:      domain.StatusFailed,
		}); recordErr != nil {
			s.log.WithContext(ctx).WithError(recordErr).Error("record failed payment")
		}
		return domain.Payment{}, apperrors.Validation("payment declined").WithCause(err)
	}

	p, err := s.payments.CreatePayment(ctx, domain.Payment{
		OrderID:     orderID,
		UserID:      userID,
		AmountCents: amountCents,
		Status:      domain.StatusSucceeded,
		Reference:   reference,
	})
	if err != nil {
		return domain.Payment{}, apperrors.Dependency("relationalStore", err)
	}
	return p, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Payment, error) {
	p, err := s.payments.GetPayment(ctx, id)
	if err == storage.ErrNotFound {
		return domain.Payment{}, apperrors.NotFound("payment")
	}
	if err != nil {
		return domain.Payment{}, apperrors.Dependency("relationalStore", err)
	}
	return p, nil
}

// Settle applies a provider webhook outcome to the referenced payment.
func (s *Service) Settle(ctx context.Context, reference string, succeeded bool) (domain.Payment, error) {
	p, err := s.payments.GetPaymentByReference(ctx, reference)
	if err == storage.ErrNotFound {
		return domain.Payment{}, apperrors.NotFound("payment")
	}
	if err != nil {
		return domain.Payment{}, apperrors.Dependency("relationalStore", err)
	}

	if succeeded {
		p.Status = domain.StatusSucceeded
	} else {
		p.Status = domain.StatusFailed
	}

	updated, err := s.payments.UpdatePayment(ctx, p)
	if err != nil {
		return domain.Payment{}, apperrors.Dependency("relationalStore", err)
	}
	return updated, nil
}

// stubGateway approves every charge. Real provider integrations satisfy
// Gateway outside the core.
type stubGateway struct{}

func (stubGateway) Charge(_ context.Context, _ string, _ int64) (string, error) {
	return "ref_" + uuid.NewString(), nil
}
