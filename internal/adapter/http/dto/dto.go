package dto

// CreateTradeRequest is the request body for opening a trade against an ad.
type CreateTradeRequest struct {
	AdRef        string `json:"ad_ref" binding:"required,max=64,safe_id"`
	Side         string `json:"side" binding:"required,oneof=INITIATOR_PAYS INITIATOR_RECEIVES"`
	AmountSource string `json:"amount_source" binding:"required,max=32"`
}

// CancelTradeRequest is the optional request body for trade cancellation.
type CancelTradeRequest struct {
	Reason *string `json:"reason,omitempty" binding:"omitempty,max=500"`
}

// OpenDisputeRequest is the request body for dispute escalation.
type OpenDisputeRequest struct {
	ReasonCode  string  `json:"reason_code" binding:"required,max=32"`
	Details     string  `json:"details" binding:"required,min=10,max=2000"`
	EvidenceRef *string `json:"evidence_ref,omitempty" binding:"omitempty,max=128,safe_id"`
}

// ConfirmReleaseRequest is the request body carrying the one-time code.
type ConfirmReleaseRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// ResolveDisputeRequest is the moderation request body for dispute resolution.
type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required,oneof=COMPLETE CANCEL"`
	Note    string `json:"note" binding:"omitempty,max=2000"`
}

// PaymentDetailsResponse is the decrypted payment-rail snapshot.
type PaymentDetailsResponse struct {
	Method        string `json:"method"`
	AccountName   string `json:"account_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	WalletHandle  string `json:"wallet_handle,omitempty"`
	QRPayload     string `json:"qr_payload,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

// DisputeResponse describes an open or resolved dispute on a trade.
type DisputeResponse struct {
	ReasonCode  string  `json:"reason_code"`
	Details     string  `json:"details"`
	EvidenceRef *string `json:"evidence_ref,omitempty"`
	OpenedAt    string  `json:"opened_at"`
}

// TradeResponse is the full trade view returned to participants.
type TradeResponse struct {
	ID                      string                 `json:"id"`
	Reference               string                 `json:"reference"`
	AdRef                   string                 `json:"ad_ref"`
	PayerID                 string                 `json:"payer_id"`
	ReceiverID              string                 `json:"receiver_id"`
	Side                    string                 `json:"side"`
	SourceCurrency          string                 `json:"source_currency"`
	TargetCurrency          string                 `json:"target_currency"`
	AmountSource            string                 `json:"amount_source"`
	AmountTarget            string                 `json:"amount_target"`
	PlatformFee             string                 `json:"platform_fee"`
	NetTargetAmount         string                 `json:"net_target_amount"`
	PaymentDetails          PaymentDetailsResponse `json:"payment_details"`
	Status                  string                 `json:"status"`
	PaymentWindowMinutes    int                    `json:"payment_window_minutes"`
	DisputeThresholdMinutes int                    `json:"dispute_threshold_minutes"`
	PaymentDeadline         string                 `json:"payment_deadline"`
	DisputeEligibleAt       *string                `json:"dispute_eligible_at,omitempty"`
	CreatedAt               string                 `json:"created_at"`
	PaidAt                  *string                `json:"paid_at,omitempty"`
	ReleaseRequestedAt      *string                `json:"release_requested_at,omitempty"`
	CompletedAt             *string                `json:"completed_at,omitempty"`
	CancelledAt             *string                `json:"cancelled_at,omitempty"`
	DisputedAt              *string                `json:"disputed_at,omitempty"`
	CancelledBy             *string                `json:"cancelled_by,omitempty"`
	CancelReason            *string                `json:"cancel_reason,omitempty"`
	Dispute                 *DisputeResponse       `json:"dispute,omitempty"`
}

// TradeListResponse wraps a paginated trade list.
type TradeListResponse struct {
	Trades   []TradeResponse `json:"trades"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ChallengeResponse describes an issued release challenge. The code itself
// never appears here; it travels out of band.
type ChallengeResponse struct {
	Reference   string `json:"reference"`
	DeliveredTo string `json:"delivered_to"`
	ExpiresAt   string `json:"expires_at"`
	Attempts    int64  `json:"attempts"`
}

// TradeEventResponse is one entry of the transition audit trail.
type TradeEventResponse struct {
	ID         string  `json:"id"`
	ActorID    *string `json:"actor_id,omitempty"`
	FromStatus string  `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	Cause      string  `json:"cause"`
	Note       string  `json:"note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}
