package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TradeServiceImpl implements ports.TradeService. It is the single writer of
// trade state: every lifecycle transition flows through here.
type TradeServiceImpl struct {
	transitioner

	adCatalog ports.AdCatalog
	kyc       ports.KYCGate
	ledger    ports.WalletLedger
	encSvc    ports.EncryptionService
}

// NewTradeService creates a new TradeServiceImpl.
func NewTradeService(
	tradeRepo ports.TradeRepository,
	eventRepo ports.TradeEventRepository,
	transactor ports.DBTransactor,
	adCatalog ports.AdCatalog,
	kyc ports.KYCGate,
	ledger ports.WalletLedger,
	notifier ports.Notifier,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) *TradeServiceImpl {
	return &TradeServiceImpl{
		transitioner: transitioner{
			trades:     tradeRepo,
			events:     eventRepo,
			transactor: transactor,
			notifier:   notifier,
			log:        log,
			now:        time.Now,
		},
		adCatalog: adCatalog,
		kyc:       kyc,
		ledger:    ledger,
		encSvc:    encSvc,
	}
}

// CreateTrade opens a trade against an advertisement. Pricing and the
// payment-details snapshot come from the ad catalog; amounts are locked here
// and never re-derived.
func (s *TradeServiceImpl) CreateTrade(ctx context.Context, req ports.CreateTradeRequest) (*domain.Trade, error) {
	if !req.AmountSource.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}

	verified, err := s.kyc.IsVerified(ctx, req.InitiatorID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("kyc check: %w", err))
	}
	if !verified {
		return nil, apperror.ErrKYCRequired()
	}

	quote, err := s.adCatalog.Quote(ctx, ports.QuoteRequest{
		AdRef:        req.AdRef,
		InitiatorID:  req.InitiatorID,
		Side:         req.Side,
		AmountSource: req.AmountSource,
	})
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, apperror.ErrAdUnavailable()
	}

	// Advertisement limits are enforced before any trade row exists.
	if req.AmountSource.LessThan(quote.MinAmountSource) || req.AmountSource.GreaterThan(quote.MaxAmountSource) {
		return nil, apperror.ErrAmountOutOfRange(quote.MinAmountSource.String(), quote.MaxAmountSource.String())
	}

	payerID, receiverID := req.InitiatorID, quote.CounterpartyID
	if req.Side == domain.SideInitiatorReceives {
		payerID, receiverID = quote.CounterpartyID, req.InitiatorID
	}

	detailsJSON, err := json.Marshal(quote.PaymentDetails)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal payment details: %w", err))
	}
	detailsEnc, err := s.encSvc.Encrypt(string(detailsJSON))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt payment details: %w", err))
	}

	reference, err := newTradeReference()
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	now := s.now()
	trade := &domain.Trade{
		ID:                      uuid.New(),
		Reference:               reference,
		AdRef:                   req.AdRef,
		PayerID:                 payerID,
		ReceiverID:              receiverID,
		Side:                    req.Side,
		SourceCurrency:          quote.SourceCurrency,
		TargetCurrency:          quote.TargetCurrency,
		AmountSource:            req.AmountSource,
		AmountTarget:            quote.AmountTarget,
		PlatformFee:             quote.PlatformFee,
		NetTargetAmount:         quote.NetTargetAmount,
		PaymentDetails:          quote.PaymentDetails,
		PaymentDetailsEnc:       detailsEnc,
		Status:                  domain.StatusPendingPayment,
		PaymentWindowMinutes:    quote.PaymentWindowMinutes,
		DisputeThresholdMinutes: quote.DisputeThresholdMinutes,
		CreatedAt:               now,
		Version:                 1,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.trades.Create(ctx, dbTx, trade); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create trade: %w", err))
	}
	event := &domain.TradeEvent{
		ID:         uuid.New(),
		TradeID:    trade.ID,
		ActorID:    &req.InitiatorID,
		FromStatus: domain.StatusPendingPayment,
		ToStatus:   domain.StatusPendingPayment,
		Cause:      domain.CauseTradeCreated,
		CreatedAt:  now,
	}
	if err := s.events.Create(ctx, dbTx, event); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("record trade event: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("reference", trade.Reference).
		Str("ad_ref", trade.AdRef).
		Str("side", string(trade.Side)).
		Str("amount_source", trade.AmountSource.String()).
		Msg("trade created")
	s.notifyAsync(trade, domain.CauseTradeCreated)

	return trade, nil
}

// ConfirmPayment is the payer's declaration that fiat has been sent. It is
// only legal inside the payment window; past the deadline the trade is
// auto-cancelled and WindowExpired returned.
func (s *TradeServiceImpl) ConfirmPayment(ctx context.Context, actorID uuid.UUID, reference string) (*domain.Trade, error) {
	if err := s.expireIfOverdue(ctx, reference); err != nil {
		return nil, err
	}

	trade, err := s.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		if !t.IsParticipant(actorID) {
			return nil, apperror.ErrTradeNotFound()
		}
		if !t.IsPayer(actorID) {
			return nil, apperror.ErrRoleViolation()
		}

		switch t.Status {
		case domain.StatusPaid:
			return nil, nil // duplicate submission, one paid_at write
		case domain.StatusPendingPayment:
			if t.PaymentWindowExpired(s.now()) {
				return nil, apperror.ErrWindowExpired()
			}
			now := s.now()
			t.Status = domain.StatusPaid
			t.PaidAt = &now
			return &mutation{actor: &actorID, from: domain.StatusPendingPayment, cause: domain.CausePaymentConfirmed}, nil
		case domain.StatusCancelled:
			if t.CancelledBy != nil && *t.CancelledBy == domain.CancelActorSystem {
				return nil, apperror.ErrWindowExpired()
			}
			return nil, apperror.ErrInvalidState(string(t.Status))
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(trade)
}

// CancelTrade terminates a trade before payment. Once PAID, undoing requires
// the dispute path. Repeat calls return the already-cancelled record.
func (s *TradeServiceImpl) CancelTrade(ctx context.Context, actorID uuid.UUID, reference string, reason *string) (*domain.Trade, error) {
	if err := s.expireIfOverdue(ctx, reference); err != nil {
		return nil, err
	}

	trade, err := s.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		if !t.IsParticipant(actorID) {
			return nil, apperror.ErrTradeNotFound()
		}
		if !t.IsPayer(actorID) {
			return nil, apperror.ErrRoleViolation()
		}

		switch t.Status {
		case domain.StatusCancelled:
			return nil, nil
		case domain.StatusPendingPayment:
			now := s.now()
			payer := domain.CancelActorPayer
			t.Status = domain.StatusCancelled
			t.CancelledAt = &now
			t.CancelledBy = &payer
			t.CancelReason = reason
			note := ""
			if reason != nil {
				note = *reason
			}
			return &mutation{actor: &actorID, from: domain.StatusPendingPayment, cause: domain.CausePayerCancelled, note: note}, nil
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(trade)
}

// OpenDispute escalates a PAID trade the receiver has not released. Legal
// only for the payer and only after the dispute threshold has elapsed.
func (s *TradeServiceImpl) OpenDispute(ctx context.Context, req ports.OpenDisputeRequest) (*domain.Trade, error) {
	if !domain.ValidDisputeReason(req.ReasonCode) {
		return nil, apperror.Validation("unknown dispute reason code")
	}

	trade, err := s.run(ctx, req.Reference, func(t *domain.Trade) (*mutation, error) {
		if !t.IsParticipant(req.ActorID) {
			return nil, apperror.ErrTradeNotFound()
		}
		if !t.IsPayer(req.ActorID) {
			return nil, apperror.ErrRoleViolation()
		}

		switch t.Status {
		case domain.StatusDisputed:
			return nil, nil // one dispute per trade
		case domain.StatusPaid:
			if !t.DisputeEligible(s.now()) {
				return nil, apperror.ErrDisputeTooEarly()
			}
			now := s.now()
			t.Status = domain.StatusDisputed
			t.DisputedAt = &now
			t.Dispute = &domain.Dispute{
				ReasonCode:  req.ReasonCode,
				Details:     req.Details,
				EvidenceRef: req.EvidenceRef,
				OpenedAt:    now,
			}
			return &mutation{actor: &req.ActorID, from: domain.StatusPaid, cause: domain.CauseDisputeOpened, note: string(req.ReasonCode)}, nil
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}
	return s.hydrate(trade)
}

// ResolveDispute is the moderation override: it forces a DISPUTED trade to a
// terminal state outside the normal role guards. The cause is always
// recorded for audit.
func (s *TradeServiceImpl) ResolveDispute(ctx context.Context, reference string, outcome domain.DisputeOutcome, note string) (*domain.Trade, error) {
	if outcome != domain.DisputeOutcomeComplete && outcome != domain.DisputeOutcomeCancel {
		return nil, apperror.Validation("unknown dispute outcome")
	}

	trade, err := s.run(ctx, reference, func(t *domain.Trade) (*mutation, error) {
		switch t.Status {
		case domain.StatusCompleted, domain.StatusCancelled:
			return nil, nil // already resolved
		case domain.StatusDisputed:
			now := s.now()
			from := t.Status
			if outcome == domain.DisputeOutcomeComplete {
				t.Status = domain.StatusCompleted
				t.CompletedAt = &now
			} else {
				system := domain.CancelActorSystem
				t.Status = domain.StatusCancelled
				t.CancelledAt = &now
				t.CancelledBy = &system
				if note != "" {
					t.CancelReason = &note
				}
			}
			return &mutation{from: from, cause: domain.CauseModerationResolution, note: note}, nil
		default:
			return nil, apperror.ErrInvalidState(string(t.Status))
		}
	})
	if err != nil {
		return nil, err
	}

	if trade.Status == domain.StatusCompleted {
		s.creditLedger(ctx, trade)
	}
	return s.hydrate(trade)
}

// GetTrade returns the server-held record, the sole source of truth for
// clients. The payment window is enforced here too, so polling clients
// observe system cancellation without a mutating call.
func (s *TradeServiceImpl) GetTrade(ctx context.Context, actorID uuid.UUID, moderator bool, reference string) (*domain.Trade, error) {
	if err := s.expireIfOverdue(ctx, reference); err != nil {
		return nil, err
	}

	trade, err := s.trades.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load trade: %w", err))
	}
	if trade == nil {
		return nil, apperror.ErrTradeNotFound()
	}
	if !moderator && !trade.IsParticipant(actorID) {
		return nil, apperror.ErrTradeNotFound()
	}
	return s.hydrate(trade)
}

// ListTrades returns the caller's trades with optional status filter.
func (s *TradeServiceImpl) ListTrades(ctx context.Context, params ports.TradeListParams) ([]domain.Trade, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	trades, total, err := s.trades.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list trades: %w", err))
	}
	for i := range trades {
		if hydrated, err := s.hydrate(&trades[i]); err == nil {
			trades[i] = *hydrated
		}
	}
	return trades, total, nil
}

// ListTradeEvents returns a trade's transition history, oldest first.
func (s *TradeServiceImpl) ListTradeEvents(ctx context.Context, reference string) ([]domain.TradeEvent, error) {
	trade, err := s.trades.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("load trade: %w", err))
	}
	if trade == nil {
		return nil, apperror.ErrTradeNotFound()
	}

	events, err := s.events.ListByTrade(ctx, trade.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list trade events: %w", err))
	}
	return events, nil
}

// ExpireOverdue sweeps PENDING_PAYMENT trades past their deadline and
// cancels them on behalf of the system.
func (s *TradeServiceImpl) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.trades.ListExpiredPending(ctx, s.now(), limit)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("list expired trades: %w", err))
	}

	expired := 0
	for i := range overdue {
		if err := s.expireIfOverdue(ctx, overdue[i].Reference); err != nil {
			s.log.Warn().Err(err).Str("reference", overdue[i].Reference).Msg("sweeper: expiry failed")
			continue
		}
		expired++
	}
	return expired, nil
}

// creditLedger notifies the custody collaborator that escrowed value must be
// released to the payer. The transition has already committed; a failure
// here is logged for reconciliation, not rolled back.
func (s *TradeServiceImpl) creditLedger(ctx context.Context, trade *domain.Trade) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Credit(ctx, trade); err != nil {
		s.log.Error().Err(err).Str("reference", trade.Reference).Msg("wallet ledger credit failed")
	}
}

// hydrate decrypts the payment-details snapshot for presentation.
func (s *TradeServiceImpl) hydrate(trade *domain.Trade) (*domain.Trade, error) {
	if trade.PaymentDetailsEnc == "" {
		return trade, nil
	}
	plain, err := s.encSvc.Decrypt(trade.PaymentDetailsEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt payment details: %w", err))
	}
	if err := json.Unmarshal([]byte(plain), &trade.PaymentDetails); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal payment details: %w", err))
	}
	return trade, nil
}

// newTradeReference generates the externally-shared trade handle.
func newTradeReference() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating trade reference: %w", err)
	}
	return "TRD-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
