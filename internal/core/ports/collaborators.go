package ports

import (
	"context"
	"time"

	"escrow-trade-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AdCatalog is the advertisement/matching collaborator. The core delegates
// price computation and payment-details snapshotting to it and only persists
// the returned quote.
type AdCatalog interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// QuoteRequest asks the ad catalog to price a trade against an advertisement.
type QuoteRequest struct {
	AdRef        string
	InitiatorID  uuid.UUID
	Side         domain.TradeSide
	AmountSource decimal.Decimal
}

// Quote is the ad catalog's locked-in pricing for a prospective trade.
// Amounts are fixed here and never re-derived from a live rate.
type Quote struct {
	CounterpartyID          uuid.UUID
	SourceCurrency          string
	TargetCurrency          string
	AmountTarget            decimal.Decimal
	PlatformFee             decimal.Decimal
	NetTargetAmount         decimal.Decimal
	MinAmountSource         decimal.Decimal
	MaxAmountSource         decimal.Decimal
	PaymentWindowMinutes    int
	DisputeThresholdMinutes int
	PaymentDetails          domain.PaymentDetails
}

// KYCGate is the identity-verification collaborator consulted before a user
// may create trades.
type KYCGate interface {
	IsVerified(ctx context.Context, userID uuid.UUID) (bool, error)
}

// WalletLedger is the custody collaborator credited when a trade completes.
type WalletLedger interface {
	Credit(ctx context.Context, trade *domain.Trade) error
}

// Notifier dispatches best-effort notifications on every transition. Failures
// are logged, never propagated: delivery is outside the transactional
// guarantee.
type Notifier interface {
	TradeChanged(ctx context.Context, trade *domain.Trade, cause domain.TransitionCause) error
}

// ChallengeDeliverer carries the one-time release code to the receiver over
// an out-of-band channel (email, SMS). Returns a masked description of the
// destination for the ChallengeHandle.
type ChallengeDeliverer interface {
	Deliver(ctx context.Context, userID uuid.UUID, reference string, code string, expiresAt time.Time) (string, error)
}
