package ports

import (
	"context"
	"errors"
	"time"

	"escrow-trade-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned by TradeRepository.Update when the trade row
// was modified since it was read (optimistic concurrency check failed).
var ErrVersionConflict = errors.New("trade version conflict")

// TradeRepository defines persistence operations for trades.
// Methods accepting pgx.Tx run inside transaction blocks so a transition and
// its audit event commit atomically.
type TradeRepository interface {
	Create(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	GetByReference(ctx context.Context, reference string) (*domain.Trade, error)
	// Update persists all mutable fields guarded by the version column.
	// Returns ErrVersionConflict if the stored version differs from
	// trade.Version; on success trade.Version is bumped.
	Update(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error
	List(ctx context.Context, params TradeListParams) ([]domain.Trade, int64, error)
	// ListExpiredPending returns PENDING_PAYMENT trades whose payment window
	// deadline is at or before now, for the expiry sweeper.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Trade, error)
}

// TradeListParams holds filter + pagination for listing a user's trades.
type TradeListParams struct {
	UserID   uuid.UUID
	Status   *domain.TradeStatus
	Page     int
	PageSize int
}

// TradeEventRepository defines persistence for the transition audit trail.
type TradeEventRepository interface {
	Create(ctx context.Context, tx pgx.Tx, event *domain.TradeEvent) error
	ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]domain.TradeEvent, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
