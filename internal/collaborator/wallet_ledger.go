package collaborator

import (
	"context"
	"fmt"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletLedgerClient implements ports.WalletLedger against the custody
// service. The trade reference doubles as the ledger idempotency key, so a
// replayed credit is a no-op on the custody side.
type WalletLedgerClient struct {
	client
}

// NewWalletLedgerClient creates a new wallet ledger client.
func NewWalletLedgerClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) *WalletLedgerClient {
	return &WalletLedgerClient{client: newClient(http, baseURL, secret, sigSvc, log)}
}

type creditRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	TradeReference string          `json:"trade_reference"`
	UserID         uuid.UUID       `json:"user_id"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
}

// Credit moves the escrowed crypto to the fiat payer's wallet.
func (c *WalletLedgerClient) Credit(ctx context.Context, trade *domain.Trade) error {
	err := c.postJSON(ctx, "/internal/v1/credits", creditRequest{
		IdempotencyKey: trade.Reference,
		TradeReference: trade.Reference,
		UserID:         trade.PayerID,
		Currency:       trade.TargetCurrency,
		Amount:         trade.NetTargetAmount,
	}, nil)
	if err != nil {
		return fmt.Errorf("wallet credit: %w", err)
	}
	return nil
}
