package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransitionCause labels what drove a state transition. System- and
// moderation-driven transitions must always be traceable to their cause.
type TransitionCause string

const (
	CauseTradeCreated         TransitionCause = "TRADE_CREATED"
	CausePaymentConfirmed     TransitionCause = "PAYMENT_CONFIRMED"
	CausePayerCancelled       TransitionCause = "PAYER_CANCELLED"
	CauseWindowExpired        TransitionCause = "PAYMENT_WINDOW_EXPIRED"
	CauseReleaseInitiated     TransitionCause = "RELEASE_INITIATED"
	CauseReleaseConfirmed     TransitionCause = "RELEASE_CONFIRMED"
	CauseDisputeOpened        TransitionCause = "DISPUTE_OPENED"
	CauseModerationResolution TransitionCause = "MODERATION_RESOLUTION"
)

// TradeEvent is one append-only audit entry for an applied transition.
type TradeEvent struct {
	ID         uuid.UUID       `json:"id"`
	TradeID    uuid.UUID       `json:"trade_id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"` // nil for system transitions
	FromStatus TradeStatus     `json:"from_status"`
	ToStatus   TradeStatus     `json:"to_status"`
	Cause      TransitionCause `json:"cause"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
