package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide declares which leg of the advertisement the trade initiator took.
// It is fixed at creation and determines which actions each party may perform.
type TradeSide string

const (
	SideInitiatorPays     TradeSide = "INITIATOR_PAYS"
	SideInitiatorReceives TradeSide = "INITIATOR_RECEIVES"
)

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusPendingPayment      TradeStatus = "PENDING_PAYMENT"
	StatusPaid                TradeStatus = "PAID"
	StatusAwaitingReleaseAuth TradeStatus = "AWAITING_RELEASE_AUTH"
	StatusCompleted           TradeStatus = "COMPLETED"
	StatusCancelled           TradeStatus = "CANCELLED"
	StatusDisputed            TradeStatus = "DISPUTED"
)

// CancelActor identifies who terminated a trade.
type CancelActor string

const (
	CancelActorPayer    CancelActor = "PAYER"
	CancelActorReceiver CancelActor = "RECEIVER"
	CancelActorSystem   CancelActor = "SYSTEM"
)

// PaymentDetails is the snapshot of the fiat-receiving party's payment rail,
// copied from the advertisement at trade creation so later profile edits
// cannot change where the payer is told to send money.
type PaymentDetails struct {
	Method        string `json:"method"` // BANK_TRANSFER, E_WALLET, QR
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	WalletHandle  string `json:"wallet_handle,omitempty"`
	QRPayload     string `json:"qr_payload,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

// Trade is the aggregate root of one escrowed fiat/crypto exchange.
// Amounts and the payment-details snapshot are immutable after creation;
// state is mutated only through the trade service under optimistic locking.
type Trade struct {
	ID        uuid.UUID `json:"id"`
	Reference string    `json:"reference"` // externally-shared handle
	AdRef     string    `json:"ad_ref"`

	PayerID    uuid.UUID `json:"payer_id"`    // fiat-paying party
	ReceiverID uuid.UUID `json:"receiver_id"` // crypto-releasing party
	Side       TradeSide `json:"side"`

	SourceCurrency  string          `json:"source_currency"` // fiat
	TargetCurrency  string          `json:"target_currency"` // crypto
	AmountSource    decimal.Decimal `json:"amount_source"`
	AmountTarget    decimal.Decimal `json:"amount_target"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	NetTargetAmount decimal.Decimal `json:"net_target_amount"`

	PaymentDetails    PaymentDetails `json:"payment_details"`
	PaymentDetailsEnc string         `json:"-"` // AES-256 encrypted snapshot at rest

	Status TradeStatus `json:"status"`

	PaymentWindowMinutes    int `json:"payment_window_minutes"`
	DisputeThresholdMinutes int `json:"dispute_threshold_minutes"`

	CreatedAt          time.Time  `json:"created_at"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	ReleaseRequestedAt *time.Time `json:"release_requested_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	DisputedAt         *time.Time `json:"disputed_at,omitempty"`

	CancelledBy  *CancelActor `json:"cancelled_by,omitempty"`
	CancelReason *string      `json:"cancel_reason,omitempty"`

	Dispute *Dispute `json:"dispute,omitempty"`

	Version int64 `json:"-"` // optimistic concurrency token
}

// PaymentDeadline is the derived payment-window cutoff. It is never stored;
// the countdown freezes once the trade leaves PENDING_PAYMENT.
func (t *Trade) PaymentDeadline() time.Time {
	return t.CreatedAt.Add(time.Duration(t.PaymentWindowMinutes) * time.Minute)
}

// PaymentWindowExpired reports whether a fiat confirmation at now would be
// past the deadline. Only meaningful while status is PENDING_PAYMENT.
func (t *Trade) PaymentWindowExpired(now time.Time) bool {
	return t.Status == StatusPendingPayment && !now.Before(t.PaymentDeadline())
}

// DisputeEligibleAt is the earliest instant the payer may escalate a PAID
// trade the receiver has not released.
func (t *Trade) DisputeEligibleAt() time.Time {
	if t.PaidAt == nil {
		return time.Time{}
	}
	return t.PaidAt.Add(time.Duration(t.DisputeThresholdMinutes) * time.Minute)
}

// DisputeEligible reports whether the escalation threshold has elapsed.
func (t *Trade) DisputeEligible(now time.Time) bool {
	return t.Status == StatusPaid && t.PaidAt != nil && !now.Before(t.DisputeEligibleAt())
}

// IsTerminal returns true if the trade is in a final state.
func (t *Trade) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

// IsPayer reports whether userID is the fiat-paying party.
func (t *Trade) IsPayer(userID uuid.UUID) bool {
	return t.PayerID == userID
}

// IsReceiver reports whether userID is the crypto-releasing party.
func (t *Trade) IsReceiver(userID uuid.UUID) bool {
	return t.ReceiverID == userID
}

// IsParticipant reports whether userID is either party on the trade.
func (t *Trade) IsParticipant(userID uuid.UUID) bool {
	return t.IsPayer(userID) || t.IsReceiver(userID)
}
