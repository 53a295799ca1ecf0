package domain

import "time"

// DisputeReason categorises why a payer escalated a stalled trade.
type DisputeReason string

const (
	DisputeReasonNoRelease    DisputeReason = "NO_RELEASE"
	DisputeReasonWrongAmount  DisputeReason = "WRONG_AMOUNT"
	DisputeReasonUnresponsive DisputeReason = "UNRESPONSIVE"
	DisputeReasonPaymentIssue DisputeReason = "PAYMENT_ISSUE"
	DisputeReasonOther        DisputeReason = "OTHER"
)

// DisputeOutcome is the terminal state a moderator forces on a disputed trade.
type DisputeOutcome string

const (
	DisputeOutcomeComplete DisputeOutcome = "COMPLETE"
	DisputeOutcomeCancel   DisputeOutcome = "CANCEL"
)

// Dispute is the escalation record attached to a trade. Opening it moves the
// trade to DISPUTED; resolution is applied by the moderation collaborator.
type Dispute struct {
	ReasonCode  DisputeReason `json:"reason_code"`
	Details     string        `json:"details"`
	EvidenceRef *string       `json:"evidence_ref,omitempty"`
	OpenedAt    time.Time     `json:"opened_at"`
}

// ValidDisputeReason reports whether code is a known reason.
func ValidDisputeReason(code DisputeReason) bool {
	switch code {
	case DisputeReasonNoRelease, DisputeReasonWrongAmount,
		DisputeReasonUnresponsive, DisputeReasonPaymentIssue, DisputeReasonOther:
		return true
	}
	return false
}
