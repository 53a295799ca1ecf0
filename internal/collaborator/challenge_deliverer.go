package collaborator

import (
	"context"
	"fmt"
	"time"

	"escrow-trade-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChallengeDelivererClient implements ports.ChallengeDeliverer: it hands the
// one-time release code to the notification service for out-of-band delivery
// (email or SMS, per the user's verified contact).
type ChallengeDelivererClient struct {
	client
}

// NewChallengeDelivererClient creates a new challenge deliverer client.
func NewChallengeDelivererClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) *ChallengeDelivererClient {
	return &ChallengeDelivererClient{client: newClient(http, baseURL, secret, sigSvc, log)}
}

type deliverCodeRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	TradeReference string    `json:"trade_reference"`
	Code           string    `json:"code"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type deliverCodeResponse struct {
	DeliveredTo string `json:"delivered_to"` // masked, e.g. "a***@example.com"
}

// Deliver sends the release code to the user's verified contact and returns
// a masked description of the destination.
func (c *ChallengeDelivererClient) Deliver(ctx context.Context, userID uuid.UUID, reference string, code string, expiresAt time.Time) (string, error) {
	var resp deliverCodeResponse
	err := c.postJSON(ctx, "/internal/v1/notifications/release-code", deliverCodeRequest{
		UserID:         userID,
		TradeReference: reference,
		Code:           code,
		ExpiresAt:      expiresAt,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("release code delivery: %w", err)
	}
	return resp.DeliveredTo, nil
}
