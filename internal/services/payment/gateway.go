package payment

import (
	"context"
	"fmt"

	"github.com/nextcart/platform/internal/httputil"
)

// HTTPGateway charges through an external provider's REST API.
type HTTPGateway struct {
	client *httputil.Client
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway on the given client.
func NewHTTPGateway(client *httputil.Client) *HTTPGateway {
	return &HTTPGateway{client: client}
}

type chargeRequest struct {
	UserID      string `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type chargeResponse struct {
	Reference string `json:"reference"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason"`
}

// Charge submits the capture request. A declined charge is an error even when
// the provider answered 2xx.
func (g *HTTPGateway) Charge(ctx context.Context, userID string, amountCents int64) (string, error) {
	var resp chargeResponse
	err := g.client.PostJSON(ctx, "/v1/charges", chargeRequest{
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    "USD",
	}, &resp)
	if err != nil {
		return "", err
	}
	if !resp.Approved {
		if resp.Reason == "" {
			resp.Reason = "declined"
		}
		return "", fmt.Errorf("charge rejected: %s", resp.Reason)
	}
	return resp.Reference, nil
}
