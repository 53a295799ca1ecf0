package collaborator

import (
	"context"
	"fmt"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotifierClient implements ports.Notifier against the notification service.
// Both parties are informed of every transition; delivery is best-effort.
type NotifierClient struct {
	client
}

// NewNotifierClient creates a new notifier client.
func NewNotifierClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) *NotifierClient {
	return &NotifierClient{client: newClient(http, baseURL, secret, sigSvc, log)}
}

type tradeChangedRequest struct {
	TradeReference string    `json:"trade_reference"`
	Status         string    `json:"status"`
	Cause          string    `json:"cause"`
	PayerID        uuid.UUID `json:"payer_id"`
	ReceiverID     uuid.UUID `json:"receiver_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TradeChanged notifies both parties of a trade transition.
func (c *NotifierClient) TradeChanged(ctx context.Context, trade *domain.Trade, cause domain.TransitionCause) error {
	err := c.postJSON(ctx, "/internal/v1/notifications/trade-changed", tradeChangedRequest{
		TradeReference: trade.Reference,
		Status:         string(trade.Status),
		Cause:          string(cause),
		PayerID:        trade.PayerID,
		ReceiverID:     trade.ReceiverID,
		OccurredAt:     time.Now().UTC(),
	}, nil)
	if err != nil {
		return fmt.Errorf("trade-changed notification: %w", err)
	}
	return nil
}
