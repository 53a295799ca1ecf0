package postgres

import (
	"context"
	"testing"
	"time"

	"escrow-trade-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent(tradeID uuid.UUID) *domain.TradeEvent {
	actorID := uuid.New()
	return &domain.TradeEvent{
		ID:         uuid.New(),
		TradeID:    tradeID,
		ActorID:    &actorID,
		FromStatus: domain.StatusPendingPayment,
		ToStatus:   domain.StatusPaid,
		Cause:      domain.CausePaymentConfirmed,
		Note:       "",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTradeEventRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeEventRepo(mock)
	event := newTestEvent(uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trade_events").
		WithArgs(
			event.ID, event.TradeID, event.ActorID, event.FromStatus,
			event.ToStatus, event.Cause, event.Note, event.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, event)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeEventRepo_ListByTrade(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeEventRepo(mock)
	tradeID := uuid.New()
	e1 := newTestEvent(tradeID)
	e1.FromStatus = domain.StatusPendingPayment
	e1.ToStatus = domain.StatusPendingPayment
	e1.Cause = domain.CauseTradeCreated
	e2 := newTestEvent(tradeID)
	e2.CreatedAt = e1.CreatedAt.Add(time.Minute)

	cols := []string{"id", "trade_id", "actor_id", "from_status", "to_status", "cause", "note", "created_at"}
	mock.ExpectQuery("SELECT .+ FROM trade_events WHERE trade_id").
		WithArgs(tradeID).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(e1.ID, e1.TradeID, e1.ActorID, e1.FromStatus, e1.ToStatus, e1.Cause, e1.Note, e1.CreatedAt).
			AddRow(e2.ID, e2.TradeID, e2.ActorID, e2.FromStatus, e2.ToStatus, e2.Cause, e2.Note, e2.CreatedAt))

	events, err := repo.ListByTrade(context.Background(), tradeID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.CauseTradeCreated, events[0].Cause)
	assert.Equal(t, domain.CausePaymentConfirmed, events[1].Cause)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeEventRepo_ListByTrade_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeEventRepo(mock)

	cols := []string{"id", "trade_id", "actor_id", "from_status", "to_status", "cause", "note", "created_at"}
	mock.ExpectQuery("SELECT .+ FROM trade_events WHERE trade_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(cols))

	events, err := repo.ListByTrade(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
