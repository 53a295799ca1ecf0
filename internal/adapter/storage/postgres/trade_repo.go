package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const tradeColumns = `id, reference, ad_ref, payer_id, receiver_id, side,
	source_currency, target_currency, amount_source, amount_target, platform_fee, net_target_amount,
	payment_details_enc, status, payment_window_minutes, dispute_threshold_minutes,
	created_at, paid_at, release_requested_at, completed_at, cancelled_at, disputed_at,
	cancelled_by, cancel_reason, dispute_reason, dispute_details, dispute_evidence_ref, dispute_opened_at,
	version`

// TradeRepo implements ports.TradeRepository.
type TradeRepo struct {
	pool Pool
}

// NewTradeRepo creates a new TradeRepo.
func NewTradeRepo(pool Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Create inserts a new trade within a database transaction.
func (r *TradeRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	query := `INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`

	args := append(tradeWriteArgs(t), t.Version)
	_, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByReference fetches a trade by its external reference.
// Returns nil, nil when no trade exists.
func (r *TradeRepo) GetByReference(ctx context.Context, reference string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE reference = $1`
	return scanTrade(r.pool.QueryRow(ctx, query, reference))
}

// Update persists all mutable trade fields guarded by the version column.
// Returns ports.ErrVersionConflict when the stored version has moved on; on
// success the in-memory version is bumped to match the row.
func (r *TradeRepo) Update(ctx context.Context, tx pgx.Tx, t *domain.Trade) error {
	query := `UPDATE trades SET
		status = $1, paid_at = $2, release_requested_at = $3, completed_at = $4,
		cancelled_at = $5, disputed_at = $6, cancelled_by = $7, cancel_reason = $8,
		dispute_reason = $9, dispute_details = $10, dispute_evidence_ref = $11, dispute_opened_at = $12,
		version = version + 1
		WHERE id = $13 AND version = $14`

	var disputeReason, disputeDetails, disputeEvidence *string
	var disputeOpenedAt *time.Time
	if t.Dispute != nil {
		reason := string(t.Dispute.ReasonCode)
		disputeReason = &reason
		disputeDetails = &t.Dispute.Details
		disputeEvidence = t.Dispute.EvidenceRef
		openedAt := t.Dispute.OpenedAt
		disputeOpenedAt = &openedAt
	}

	tag, err := tx.Exec(ctx, query,
		t.Status, t.PaidAt, t.ReleaseRequestedAt, t.CompletedAt,
		t.CancelledAt, t.DisputedAt, t.CancelledBy, t.CancelReason,
		disputeReason, disputeDetails, disputeEvidence, disputeOpenedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	t.Version++
	return nil
}

// List fetches a user's trades with optional status filter and pagination.
func (r *TradeRepo) List(ctx context.Context, params ports.TradeListParams) ([]domain.Trade, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(payer_id = $%d OR receiver_id = $%d)", argIdx, argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM trades %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count trades: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM trades %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		tradeColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	trades, err := collectTrades(rows)
	if err != nil {
		return nil, 0, err
	}
	return trades, total, nil
}

// ListExpiredPending returns PENDING_PAYMENT trades whose payment deadline is
// at or before now. The deadline is derived, so the filter reproduces it.
func (r *TradeRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE status = $1
		AND created_at + payment_window_minutes * INTERVAL '1 minute' <= $2
		ORDER BY created_at ASC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.StatusPendingPayment, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired trades: %w", err)
	}
	defer rows.Close()

	return collectTrades(rows)
}

// tradeWriteArgs orders the insert values to match tradeColumns (sans version).
func tradeWriteArgs(t *domain.Trade) []any {
	var disputeReason, disputeDetails, disputeEvidence *string
	var disputeOpenedAt *time.Time
	if t.Dispute != nil {
		reason := string(t.Dispute.ReasonCode)
		disputeReason = &reason
		disputeDetails = &t.Dispute.Details
		disputeEvidence = t.Dispute.EvidenceRef
		openedAt := t.Dispute.OpenedAt
		disputeOpenedAt = &openedAt
	}

	return []any{
		t.ID, t.Reference, t.AdRef, t.PayerID, t.ReceiverID, t.Side,
		t.SourceCurrency, t.TargetCurrency,
		t.AmountSource.String(), t.AmountTarget.String(), t.PlatformFee.String(), t.NetTargetAmount.String(),
		t.PaymentDetailsEnc, t.Status, t.PaymentWindowMinutes, t.DisputeThresholdMinutes,
		t.CreatedAt, t.PaidAt, t.ReleaseRequestedAt, t.CompletedAt, t.CancelledAt, t.DisputedAt,
		t.CancelledBy, t.CancelReason,
		disputeReason, disputeDetails, disputeEvidence, disputeOpenedAt,
	}
}

// scanTrade scans a single row into a Trade. Returns nil, nil on no rows.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	t := &domain.Trade{}
	var amountSource, amountTarget, platformFee, netTarget string
	var disputeReason, disputeDetails, disputeEvidence *string
	var disputeOpenedAt *time.Time

	err := row.Scan(
		&t.ID, &t.Reference, &t.AdRef, &t.PayerID, &t.ReceiverID, &t.Side,
		&t.SourceCurrency, &t.TargetCurrency,
		&amountSource, &amountTarget, &platformFee, &netTarget,
		&t.PaymentDetailsEnc, &t.Status, &t.PaymentWindowMinutes, &t.DisputeThresholdMinutes,
		&t.CreatedAt, &t.PaidAt, &t.ReleaseRequestedAt, &t.CompletedAt, &t.CancelledAt, &t.DisputedAt,
		&t.CancelledBy, &t.CancelReason,
		&disputeReason, &disputeDetails, &disputeEvidence, &disputeOpenedAt,
		&t.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan trade: %w", err)
	}

	if t.AmountSource, err = decimal.NewFromString(amountSource); err != nil {
		return nil, fmt.Errorf("parse amount_source: %w", err)
	}
	if t.AmountTarget, err = decimal.NewFromString(amountTarget); err != nil {
		return nil, fmt.Errorf("parse amount_target: %w", err)
	}
	if t.PlatformFee, err = decimal.NewFromString(platformFee); err != nil {
		return nil, fmt.Errorf("parse platform_fee: %w", err)
	}
	if t.NetTargetAmount, err = decimal.NewFromString(netTarget); err != nil {
		return nil, fmt.Errorf("parse net_target_amount: %w", err)
	}

	if disputeReason != nil {
		t.Dispute = &domain.Dispute{
			ReasonCode:  domain.DisputeReason(*disputeReason),
			EvidenceRef: disputeEvidence,
		}
		if disputeDetails != nil {
			t.Dispute.Details = *disputeDetails
		}
		if disputeOpenedAt != nil {
			t.Dispute.OpenedAt = *disputeOpenedAt
		}
	}

	return t, nil
}

// collectTrades drains rows into a slice.
func collectTrades(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
