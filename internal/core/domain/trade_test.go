package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestTrade() *Trade {
	return &Trade{
		ID:                      uuid.New(),
		Reference:               "TRD-AB12CD34EF",
		PayerID:                 uuid.New(),
		ReceiverID:              uuid.New(),
		Status:                  StatusPendingPayment,
		PaymentWindowMinutes:    30,
		DisputeThresholdMinutes: 60,
		CreatedAt:               time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTrade_PaymentDeadline(t *testing.T) {
	trade := newTestTrade()
	expected := trade.CreatedAt.Add(30 * time.Minute)
	assert.Equal(t, expected, trade.PaymentDeadline())
}

func TestTrade_PaymentWindowExpired(t *testing.T) {
	trade := newTestTrade()

	assert.False(t, trade.PaymentWindowExpired(trade.CreatedAt.Add(29*time.Minute)))
	// Boundary: exactly at the deadline counts as expired.
	assert.True(t, trade.PaymentWindowExpired(trade.CreatedAt.Add(30*time.Minute)))
	assert.True(t, trade.PaymentWindowExpired(trade.CreatedAt.Add(31*time.Minute)))

	// The countdown freezes once the trade leaves PENDING_PAYMENT.
	trade.Status = StatusPaid
	assert.False(t, trade.PaymentWindowExpired(trade.CreatedAt.Add(24*time.Hour)))
}

func TestTrade_DisputeEligible(t *testing.T) {
	trade := newTestTrade()

	// Not yet paid: never eligible.
	assert.False(t, trade.DisputeEligible(trade.CreatedAt.Add(2*time.Hour)))

	paidAt := trade.CreatedAt.Add(10 * time.Minute)
	trade.Status = StatusPaid
	trade.PaidAt = &paidAt

	assert.False(t, trade.DisputeEligible(paidAt.Add(59*time.Minute)))
	assert.True(t, trade.DisputeEligible(paidAt.Add(60*time.Minute)))
	assert.Equal(t, paidAt.Add(60*time.Minute), trade.DisputeEligibleAt())
}

func TestTrade_IsTerminal(t *testing.T) {
	trade := newTestTrade()

	for status, terminal := range map[TradeStatus]bool{
		StatusPendingPayment:      false,
		StatusPaid:                false,
		StatusAwaitingReleaseAuth: false,
		StatusDisputed:            false,
		StatusCompleted:           true,
		StatusCancelled:           true,
	} {
		trade.Status = status
		assert.Equal(t, terminal, trade.IsTerminal(), "status %s", status)
	}
}

func TestTrade_Roles(t *testing.T) {
	trade := newTestTrade()
	stranger := uuid.New()

	assert.True(t, trade.IsPayer(trade.PayerID))
	assert.False(t, trade.IsPayer(trade.ReceiverID))
	assert.True(t, trade.IsReceiver(trade.ReceiverID))
	assert.False(t, trade.IsReceiver(trade.PayerID))
	assert.True(t, trade.IsParticipant(trade.PayerID))
	assert.True(t, trade.IsParticipant(trade.ReceiverID))
	assert.False(t, trade.IsParticipant(stranger))
}

func TestValidDisputeReason(t *testing.T) {
	assert.True(t, ValidDisputeReason(DisputeReasonNoRelease))
	assert.True(t, ValidDisputeReason(DisputeReasonOther))
	assert.False(t, ValidDisputeReason(DisputeReason("BOGUS")))
}

func TestReleaseChallenge_Expired(t *testing.T) {
	now := time.Now()
	c := &ReleaseChallenge{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, c.Expired(now))
	assert.True(t, c.Expired(now.Add(2*time.Minute)))
}
