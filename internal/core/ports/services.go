package ports

import (
	"context"
	"time"

	"escrow-trade-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeService is the trade state machine: it owns every legal transition of
// a trade and is the only mutator of trade records.
type TradeService interface {
	CreateTrade(ctx context.Context, req CreateTradeRequest) (*domain.Trade, error)
	ConfirmPayment(ctx context.Context, actorID uuid.UUID, reference string) (*domain.Trade, error)
	CancelTrade(ctx context.Context, actorID uuid.UUID, reference string, reason *string) (*domain.Trade, error)
	OpenDispute(ctx context.Context, req OpenDisputeRequest) (*domain.Trade, error)
	// ResolveDispute is the moderation override: it forces a disputed trade to
	// a terminal state, bypassing the actor-role guards.
	ResolveDispute(ctx context.Context, reference string, outcome domain.DisputeOutcome, note string) (*domain.Trade, error)
	GetTrade(ctx context.Context, actorID uuid.UUID, moderator bool, reference string) (*domain.Trade, error)
	ListTrades(ctx context.Context, params TradeListParams) ([]domain.Trade, int64, error)
	// ListTradeEvents returns the transition audit trail for moderation review.
	ListTradeEvents(ctx context.Context, reference string) ([]domain.TradeEvent, error)
	// ExpireOverdue cancels PENDING_PAYMENT trades past their deadline.
	// Returns the number of trades cancelled; used by the periodic sweeper.
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// CreateTradeRequest holds validated input for trade creation.
type CreateTradeRequest struct {
	InitiatorID  uuid.UUID
	AdRef        string
	Side         domain.TradeSide
	AmountSource decimal.Decimal
}

// OpenDisputeRequest holds validated input for dispute escalation.
type OpenDisputeRequest struct {
	ActorID     uuid.UUID
	Reference   string
	ReasonCode  domain.DisputeReason
	Details     string
	EvidenceRef *string
}

// ReleaseService is the release authorization protocol guarding the one
// irreversible, value-transferring transition.
type ReleaseService interface {
	InitiateRelease(ctx context.Context, actorID uuid.UUID, reference string) (*domain.ChallengeHandle, error)
	ConfirmRelease(ctx context.Context, actorID uuid.UUID, reference string, code string) (*domain.Trade, error)
}

// ChallengeStore persists live release challenges with their own expiry,
// independent of the payment window.
type ChallengeStore interface {
	Put(ctx context.Context, reference string, challenge *domain.ReleaseChallenge, ttl time.Duration) error
	// Get returns nil, nil when no live challenge exists.
	Get(ctx context.Context, reference string) (*domain.ReleaseChallenge, error)
	// FailAttempt atomically decrements the remaining attempts and returns
	// the new count.
	FailAttempt(ctx context.Context, reference string) (int64, error)
	Delete(ctx context.Context, reference string) error
}

// CodeHashService hashes one-time release codes for at-rest storage.
// Verification must not leak timing information about the stored code.
type CodeHashService interface {
	Hash(code string) (string, error)
	Verify(code string, hash string) (bool, error)
}

// EncryptionService handles AES-256-GCM encryption/decryption of the
// payment-details snapshot.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing of outbound collaborator
// payloads.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService handles JWT token operations for user sessions.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string // "user" or "moderator"
}

// RoleModerator is the JWT role granted to the moderation console.
const RoleModerator = "moderator"
