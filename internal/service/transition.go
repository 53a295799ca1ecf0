package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxTransitionAttempts bounds retries when the optimistic version check
// loses the race against a concurrent writer.
const maxTransitionAttempts = 3

// transitioner applies state transitions to a trade under optimistic
// concurrency: read state + version, validate, mutate, write only if the
// version is unchanged, else reload and retry. The trade update and its
// audit event commit in one database transaction.
type transitioner struct {
	trades     ports.TradeRepository
	events     ports.TradeEventRepository
	transactor ports.DBTransactor
	notifier   ports.Notifier
	log        zerolog.Logger
	now        func() time.Time
}

// mutation describes a transition fn has applied to the in-memory trade.
// A nil mutation signals an idempotent replay: the trade is already in the
// target state and nothing must be written.
type mutation struct {
	actor *uuid.UUID
	from  domain.TradeStatus
	cause domain.TransitionCause
	note  string
}

// run loads the trade identified by reference and applies fn to it. On a
// version conflict the trade is reloaded and fn re-evaluated against the
// fresh state, with exponential backoff between attempts.
func (tr *transitioner) run(ctx context.Context, reference string, fn func(t *domain.Trade) (*mutation, error)) (*domain.Trade, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		trade, err := tr.trades.GetByReference(ctx, reference)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("load trade: %w", err))
		}
		if trade == nil {
			return nil, apperror.ErrTradeNotFound()
		}

		m, err := fn(trade)
		if err != nil {
			return nil, err
		}
		if m == nil {
			// Idempotent replay: no second timestamp write.
			return trade, nil
		}

		err = tr.commit(ctx, trade, m)
		if err == nil {
			tr.log.Info().
				Str("reference", trade.Reference).
				Str("from", string(m.from)).
				Str("to", string(trade.Status)).
				Str("cause", string(m.cause)).
				Msg("trade transition applied")
			tr.notifyAsync(trade, m.cause)
			return trade, nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrDatabaseError(err)
		}

		lastErr = err
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, apperror.ErrConcurrentUpdate(lastErr)
}

// commit writes the mutated trade and its audit event atomically.
func (tr *transitioner) commit(ctx context.Context, trade *domain.Trade, m *mutation) error {
	dbTx, err := tr.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := tr.trades.Update(ctx, dbTx, trade); err != nil {
		return err
	}

	event := &domain.TradeEvent{
		ID:         uuid.New(),
		TradeID:    trade.ID,
		ActorID:    m.actor,
		FromStatus: m.from,
		ToStatus:   trade.Status,
		Cause:      m.cause,
		Note:       m.note,
		CreatedAt:  tr.now(),
	}
	if err := tr.events.Create(ctx, dbTx, event); err != nil {
		return fmt.Errorf("record trade event: %w", err)
	}

	return dbTx.Commit(ctx)
}

// expireIfOverdue enforces the payment window server-side: if the trade is
// still PENDING_PAYMENT past its deadline it is cancelled on behalf of the
// system before the caller's own transition is evaluated. Losing the version
// race here is fine: someone else advanced the trade first.
func (tr *transitioner) expireIfOverdue(ctx context.Context, reference string) error {
	trade, err := tr.trades.GetByReference(ctx, reference)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("load trade: %w", err))
	}
	if trade == nil {
		return apperror.ErrTradeNotFound()
	}
	if !trade.PaymentWindowExpired(tr.now()) {
		return nil
	}

	_, err = tr.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		if !t.PaymentWindowExpired(tr.now()) {
			return nil, nil
		}
		now := tr.now()
		system := domain.CancelActorSystem
		reason := "payment window expired"
		t.Status = domain.StatusCancelled
		t.CancelledAt = &now
		t.CancelledBy = &system
		t.CancelReason = &reason
		return &mutation{from: domain.StatusPendingPayment, cause: domain.CauseWindowExpired, note: reason}, nil
	})
	return err
}

// notifyAsync fires the transition notification without blocking the caller.
// Delivery is best-effort and never part of the transactional guarantee.
func (tr *transitioner) notifyAsync(trade *domain.Trade, cause domain.TransitionCause) {
	if tr.notifier == nil {
		return
	}
	snapshot := *trade
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tr.notifier.TradeChanged(ctx, &snapshot, cause); err != nil {
			tr.log.Warn().Err(err).Str("reference", snapshot.Reference).Msg("transition notification failed")
		}
	}()
}
