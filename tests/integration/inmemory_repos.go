package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// noopTx satisfies pgx.Tx for the in-memory repositories, which apply writes
// immediately. Only Begin/Commit/Rollback are ever exercised.
type noopTx struct{}

func (noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(ctx context.Context) error          { return nil }
func (noopTx) Rollback(ctx context.Context) error        { return nil }
func (noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row        { return nil }
func (noopTx) Conn() *pgx.Conn                                                      { return nil }

type inMemoryTransactor struct{}

func (inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// inMemoryTradeRepo is a map-backed ports.TradeRepository with the same
// optimistic-locking contract as the Postgres implementation.
type inMemoryTradeRepo struct {
	mu     sync.RWMutex
	trades map[string]*domain.Trade // keyed by reference
}

func newInMemoryTradeRepo() *inMemoryTradeRepo {
	return &inMemoryTradeRepo{trades: make(map[string]*domain.Trade)}
}

func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	c.PaidAt = cloneTimePtr(t.PaidAt)
	c.ReleaseRequestedAt = cloneTimePtr(t.ReleaseRequestedAt)
	c.CompletedAt = cloneTimePtr(t.CompletedAt)
	c.CancelledAt = cloneTimePtr(t.CancelledAt)
	c.DisputedAt = cloneTimePtr(t.DisputedAt)
	if t.CancelledBy != nil {
		v := *t.CancelledBy
		c.CancelledBy = &v
	}
	if t.CancelReason != nil {
		v := *t.CancelReason
		c.CancelReason = &v
	}
	if t.Dispute != nil {
		d := *t.Dispute
		if t.Dispute.EvidenceRef != nil {
			e := *t.Dispute.EvidenceRef
			d.EvidenceRef = &e
		}
		c.Dispute = &d
	}
	return &c
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *inMemoryTradeRepo) Create(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades[trade.Reference] = cloneTrade(trade)
	return nil
}

func (r *inMemoryTradeRepo) GetByReference(ctx context.Context, reference string) (*domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.trades[reference]
	if !ok {
		return nil, nil
	}
	return cloneTrade(t), nil
}

func (r *inMemoryTradeRepo) Update(ctx context.Context, tx pgx.Tx, trade *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.trades[trade.Reference]
	if !ok || stored.Version != trade.Version {
		return ports.ErrVersionConflict
	}
	trade.Version++
	r.trades[trade.Reference] = cloneTrade(trade)
	return nil
}

func (r *inMemoryTradeRepo) List(ctx context.Context, params ports.TradeListParams) ([]domain.Trade, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Trade, 0)
	for _, t := range r.trades {
		if !t.IsParticipant(params.UserID) {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		matched = append(matched, *cloneTrade(t))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.Trade{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *inMemoryTradeRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Trade, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	expired := make([]domain.Trade, 0)
	for _, t := range r.trades {
		if t.Status != domain.StatusPendingPayment || now.Before(t.PaymentDeadline()) {
			continue
		}
		expired = append(expired, *cloneTrade(t))
		if len(expired) == limit {
			break
		}
	}
	return expired, nil
}

// inMemoryEventRepo is a map-backed ports.TradeEventRepository.
type inMemoryEventRepo struct {
	mu     sync.RWMutex
	events map[uuid.UUID][]domain.TradeEvent
}

func newInMemoryEventRepo() *inMemoryEventRepo {
	return &inMemoryEventRepo{events: make(map[uuid.UUID][]domain.TradeEvent)}
}

func (r *inMemoryEventRepo) Create(ctx context.Context, tx pgx.Tx, event *domain.TradeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.TradeID] = append(r.events[event.TradeID], *event)
	return nil
}

func (r *inMemoryEventRepo) ListByTrade(ctx context.Context, tradeID uuid.UUID) ([]domain.TradeEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.TradeEvent, len(r.events[tradeID]))
	copy(out, r.events[tradeID])
	return out, nil
}

// fakeAdCatalog prices every quote from fixed fields so tests control the
// counterparty and the payment/dispute timers.
type fakeAdCatalog struct {
	counterpartyID          uuid.UUID
	paymentWindowMinutes    int
	disputeThresholdMinutes int
}

func (f *fakeAdCatalog) Quote(ctx context.Context, req ports.QuoteRequest) (*ports.Quote, error) {
	return &ports.Quote{
		CounterpartyID:          f.counterpartyID,
		SourceCurrency:          "VND",
		TargetCurrency:          "USDT",
		AmountTarget:            decimal.RequireFromString("40.5"),
		PlatformFee:             decimal.RequireFromString("0.5"),
		NetTargetAmount:         decimal.RequireFromString("40"),
		MinAmountSource:         decimal.RequireFromString("100000"),
		MaxAmountSource:         decimal.RequireFromString("5000000"),
		PaymentWindowMinutes:    f.paymentWindowMinutes,
		DisputeThresholdMinutes: f.disputeThresholdMinutes,
		PaymentDetails: domain.PaymentDetails{
			Method:        "BANK_TRANSFER",
			AccountName:   "Tran Van A",
			AccountNumber: "0123456789",
			BankName:      "VCB",
		},
	}, nil
}

type fakeKYCGate struct {
	verified bool
}

func (f *fakeKYCGate) IsVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	return f.verified, nil
}

// fakeWalletLedger records every credit so tests can assert exactly-once
// release of escrowed value.
type fakeWalletLedger struct {
	mu      sync.Mutex
	credits []string // trade references, in credit order
}

func (f *fakeWalletLedger) Credit(ctx context.Context, trade *domain.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits = append(f.credits, trade.Reference)
	return nil
}

func (f *fakeWalletLedger) creditsFor(reference string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ref := range f.credits {
		if ref == reference {
			n++
		}
	}
	return n
}

// fakeChallengeDeliverer captures the plaintext release code per trade, the
// way the receiver would read it out of band.
type fakeChallengeDeliverer struct {
	mu    sync.Mutex
	codes map[string]string // reference -> last delivered code
}

func newFakeChallengeDeliverer() *fakeChallengeDeliverer {
	return &fakeChallengeDeliverer{codes: make(map[string]string)}
}

func (f *fakeChallengeDeliverer) Deliver(ctx context.Context, userID uuid.UUID, reference string, code string, expiresAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[reference] = code
	return "r***@example.com", nil
}

func (f *fakeChallengeDeliverer) codeFor(reference string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[reference]
}
