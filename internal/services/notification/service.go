// Package notification delivers user-facing messages. Delivery is always
// driven from the job queue, never from the request path.
package notification

import (
	"context"
	"strings"

	apperrors "github.com/nextcart/platform/internal/errors"
	"github.com/nextcart/platform/internal/logging"
)

// Email is a queued email job payload.
type Email struct {
	Type      string            `json:"type"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}

// Sender performs the actual delivery. The core only sees this contract.
type Sender interface {
	Send(ctx context.Context, msg Email) error
}

// Dependencies are the typed constructor dependencies of the service.
type Dependencies struct {
	Sender Sender
	Log    *logging.Logger
}

// Service validates and dispatches notifications.
type Service struct {
	sender Sender
	log    *logging.Logger
}

// New wires the service. A nil sender falls back to log-only delivery.
func New(deps Dependencies) (*Service, error) {
	if deps.Log == nil {
		deps.Log = logging.NewDefault("notification-service")
	}
	if deps.Sender == nil {
		deps.Sender = logSender{log: deps.Log}
	}
	return &Service{sender: deps.Sender, log: deps.Log}, nil
}

// SendEmail delivers one email message.
func (s *Service) SendEmail(ctx context.Context, msg Email) error {
	if strings.TrimSpace(msg.Recipient) == "" {
		return apperrors.Validation("email recipient is required")
	}
	if msg.Type == "" {
		msg.Type = "generic"
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return apperrors.Dependency("emailProvider", err)
	}
	return nil
}

// logSender records the delivery instead of sending it.
type logSender struct {
	log *logging.Logger
}

func (s logSender) Send(ctx context.Context, msg Email) error {
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"type":      msg.Type,
		"recipient": msg.Recipient,
	}).Info("email dispatched")
	return nil
}
