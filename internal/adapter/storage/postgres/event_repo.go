package postgres

import (
	"context"
	"fmt"

	"escrow-trade-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TradeEventRepo implements ports.TradeEventRepository. Events are append-only
// and always written in the same transaction as the trade update they record.
type TradeEventRepo struct {
	pool Pool
}

// NewTradeEventRepo creates a new TradeEventRepo.
func NewTradeEventRepo(pool Pool) *TradeEventRepo {
	return &TradeEventRepo{pool: pool}
}

// Create appends a transition event within a database transaction.
func (r *TradeEventRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.TradeEvent) error {
	query := `INSERT INTO trade_events (id, trade_id, actor_id, from_status, to_status, cause, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.TradeID, e.ActorID, e.FromStatus, e.ToStatus, e.Cause, e.Note, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade event: %w", err)
	}
	return nil
}

// ListByTrade returns the transition history of a trade, oldest first.
func (r *TradeEventRepo) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]domain.TradeEvent, error) {
	query := `SELECT id, trade_id, actor_id, from_status, to_status, cause, note, created_at
		FROM trade_events WHERE trade_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("list trade events: %w", err)
	}
	defer rows.Close()

	var events []domain.TradeEvent
	for rows.Next() {
		e := domain.TradeEvent{}
		err := rows.Scan(&e.ID, &e.TradeID, &e.ActorID, &e.FromStatus, &e.ToStatus, &e.Cause, &e.Note, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan trade event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade event rows: %w", err)
	}
	return events, nil
}
