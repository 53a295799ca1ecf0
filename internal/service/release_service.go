package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReleaseServiceImpl implements ports.ReleaseService: the two-step
// authorization protocol guarding the irreversible release of escrowed value.
type ReleaseServiceImpl struct {
	transitioner

	challenges   ports.ChallengeStore
	codeHash     ports.CodeHashService
	deliverer    ports.ChallengeDeliverer
	ledger       ports.WalletLedger
	challengeTTL time.Duration
	maxAttempts  int64
}

// NewReleaseService creates a new ReleaseServiceImpl.
func NewReleaseService(
	tradeRepo ports.TradeRepository,
	eventRepo ports.TradeEventRepository,
	transactor ports.DBTransactor,
	challenges ports.ChallengeStore,
	codeHash ports.CodeHashService,
	deliverer ports.ChallengeDeliverer,
	ledger ports.WalletLedger,
	notifier ports.Notifier,
	challengeTTL time.Duration,
	maxAttempts int64,
	log zerolog.Logger,
) *ReleaseServiceImpl {
	return &ReleaseServiceImpl{
		transitioner: transitioner{
			trades:     tradeRepo,
			events:     eventRepo,
			transactor: transactor,
			notifier:   notifier,
			log:        log,
			now:        time.Now,
		},
		challenges:   challenges,
		codeHash:     codeHash,
		deliverer:    deliverer,
		ledger:       ledger,
		challengeTTL: challengeTTL,
		maxAttempts:  maxAttempts,
	}
}

// InitiateRelease starts the release handshake: the receiver asks for a
// one-time code, which is hashed, stored with its own expiry, and delivered
// out of band. Re-initiating replaces any live challenge with a fresh one.
func (s *ReleaseServiceImpl) InitiateRelease(ctx context.Context, actorID uuid.UUID, reference string) (*domain.ChallengeHandle, error) {
	if err := s.expireIfOverdue(ctx, reference); err != nil {
		return nil, err
	}

	trade, err := s.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		if !t.IsParticipant(actorID) {
			return nil, apperror.ErrTradeNotFound()
		}
		if !t.IsReceiver(actorID) {
			return nil, apperror.ErrRoleViolation()
		}

		switch t.Status {
		case domain.StatusPaid:
			now := s.now()
			t.Status = domain.StatusAwaitingReleaseAuth
			t.ReleaseRequestedAt = &now
			return &mutation{actor: &actorID, from: domain.StatusPaid, cause: domain.CauseReleaseInitiated}, nil
		case domain.StatusAwaitingReleaseAuth:
			// Re-initiation: no state change, the challenge below is rotated.
			return nil, nil
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	code, err := newReleaseCode()
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	hash, err := s.codeHash.Hash(code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash release code: %w", err))
	}

	expiresAt := s.now().Add(s.challengeTTL)
	challenge := &domain.ReleaseChallenge{
		CodeHash:  hash,
		ExpiresAt: expiresAt,
		Attempts:  s.maxAttempts,
	}
	if err := s.challenges.Put(ctx, reference, challenge, s.challengeTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store release challenge: %w", err))
	}

	maskedDest, err := s.deliverer.Deliver(ctx, actorID, reference, code, expiresAt)
	if err != nil {
		// Undeliverable code is unguessable; drop the challenge so the
		// receiver can retry cleanly.
		if delErr := s.challenges.Delete(ctx, reference); delErr != nil {
			s.log.Warn().Err(delErr).Str("reference", reference).Msg("orphaned release challenge")
		}
		return nil, apperror.InternalError(fmt.Errorf("deliver release code: %w", err))
	}

	s.log.Info().
		Str("reference", trade.Reference).
		Time("expires_at", expiresAt).
		Msg("release challenge issued")

	return &domain.ChallengeHandle{
		Reference:   trade.Reference,
		DeliveredTo: maskedDest,
		ExpiresAt:   expiresAt,
		Attempts:    s.maxAttempts,
	}, nil
}

// ConfirmRelease completes the handshake: a matching code moves the trade to
// COMPLETED and credits the payer's wallet. Wrong codes burn attempts; an
// exhausted or expired challenge forces re-initiation.
func (s *ReleaseServiceImpl) ConfirmRelease(ctx context.Context, actorID uuid.UUID, reference string, code string) (*domain.Trade, error) {
	trade, err := s.trades.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load trade: %w", err))
	}
	if trade == nil || !trade.IsParticipant(actorID) {
		return nil, apperror.ErrTradeNotFound()
	}
	if !trade.IsReceiver(actorID) {
		return nil, apperror.ErrRoleViolation()
	}
	if trade.Status == domain.StatusCompleted {
		return trade, nil
	}
	if trade.Status != domain.StatusAwaitingReleaseAuth {
		return nil, apperror.ErrInvalidState(string(trade.Status))
	}

	challenge, err := s.challenges.Get(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load release challenge: %w", err))
	}
	if challenge == nil || challenge.Expired(s.now()) {
		if challenge != nil {
			_ = s.challenges.Delete(ctx, reference)
		}
		return nil, apperror.ErrChallengeExpired()
	}
	if challenge.Attempts <= 0 {
		_ = s.challenges.Delete(ctx, reference)
		return nil, apperror.ErrChallengeExhausted()
	}

	match, err := s.codeHash.Verify(code, challenge.CodeHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify release code: %w", err))
	}
	if !match {
		remaining, err := s.challenges.FailAttempt(ctx, reference)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("record failed attempt: %w", err))
		}
		if remaining <= 0 {
			_ = s.challenges.Delete(ctx, reference)
			s.log.Warn().Str("reference", reference).Msg("release challenge exhausted")
			return nil, apperror.ErrChallengeExhausted()
		}
		return nil, apperror.ErrChallengeInvalid(remaining)
	}

	trade, err = s.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		switch t.Status {
		case domain.StatusCompleted:
			return nil, nil
		case domain.StatusAwaitingReleaseAuth:
			now := s.now()
			t.Status = domain.StatusCompleted
			t.CompletedAt = &now
			return &mutation{actor: &actorID, from: domain.StatusAwaitingReleaseAuth, cause: domain.CauseReleaseConfirmed}, nil
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	if err := s.challenges.Delete(ctx, reference); err != nil {
		s.log.Warn().Err(err).Str("reference", reference).Msg("failed to clear spent challenge")
	}
	if s.ledger != nil {
		if err := s.ledger.Credit(ctx, trade); err != nil {
			s.log.Error().Err(err).Str("reference", trade.Reference).Msg("wallet ledger credit failed")
		}
	}
	return trade, nil
}

// newReleaseCode generates a 6-digit one-time code with uniform distribution.
func newReleaseCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generating release code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
