package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"escrow-trade-service/internal/adapter/http/handler"
	redisStore "escrow-trade-service/internal/adapter/storage/redis"
	"escrow-trade-service/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// testApp wires the full HTTP stack against in-memory repositories, a
// miniredis-backed challenge store, and fake collaborators. Crypto (AES,
// Argon2id, JWT) is real.
type testApp struct {
	srv       *httptest.Server
	tokenSvc  *service.JWTTokenService
	tradeRepo *inMemoryTradeRepo
	eventRepo *inMemoryEventRepo
	adCatalog *fakeAdCatalog
	ledger    *fakeWalletLedger
	deliverer *fakeChallengeDeliverer
}

func newTestApp(t *testing.T, paymentWindowMinutes, disputeThresholdMinutes int) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	tokenSvc := service.NewJWTTokenService("integration-test-secret", time.Hour, "escrow-trade-service")

	tradeRepo := newInMemoryTradeRepo()
	eventRepo := newInMemoryEventRepo()
	adCatalog := &fakeAdCatalog{
		counterpartyID:          uuid.New(),
		paymentWindowMinutes:    paymentWindowMinutes,
		disputeThresholdMinutes: disputeThresholdMinutes,
	}
	ledger := &fakeWalletLedger{}
	deliverer := newFakeChallengeDeliverer()

	log := zerolog.Nop()
	tradeSvc := service.NewTradeService(
		tradeRepo, eventRepo, inMemoryTransactor{},
		adCatalog, &fakeKYCGate{verified: true}, ledger, nil, encSvc, log,
	)
	releaseSvc := service.NewReleaseService(
		tradeRepo, eventRepo, inMemoryTransactor{},
		redisStore.NewChallengeStore(redisClient), service.NewArgon2CodeHashService(),
		deliverer, ledger, nil, 10*time.Minute, 5, log,
	)

	router := handler.SetupRouter(handler.RouterDeps{
		TradeSvc:   tradeSvc,
		ReleaseSvc: releaseSvc,
		TokenSvc:   tokenSvc,
		Logger:     log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{
		srv:       srv,
		tokenSvc:  tokenSvc,
		tradeRepo: tradeRepo,
		eventRepo: eventRepo,
		adCatalog: adCatalog,
		ledger:    ledger,
		deliverer: deliverer,
	}
}

func (a *testApp) token(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, _, err := a.tokenSvc.Generate(userID, role)
	require.NoError(t, err)
	return token
}

// do sends an authenticated JSON request and decodes the response envelope.
func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, a.srv.URL+path, reqBody)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp.StatusCode, envelope
}

func data(t *testing.T, envelope map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", envelope)
	return d
}

// createTrade opens a trade as payer (INITIATOR_PAYS) and returns its reference.
func (a *testApp) createTrade(t *testing.T, payerToken string) string {
	t.Helper()
	code, envelope := a.do(t, http.MethodPost, "/api/v1/trades", payerToken, map[string]interface{}{
		"ad_ref":        "ad-1001",
		"side":          "INITIATOR_PAYS",
		"amount_source": "1000000",
	})
	require.Equal(t, http.StatusCreated, code, "create trade: %v", envelope)
	return data(t, envelope)["reference"].(string)
}

// wrongCode returns a 6-digit code guaranteed to differ from code.
func wrongCode(code string) string {
	if code == "111111" {
		return "222222"
	}
	return "111111"
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t, 30, 60)

	resp, err := app.srv.Client().Get(app.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t, 30, 60)

	code, envelope := app.do(t, http.MethodGet, "/api/v1/trades", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTH_001", envelope["error_code"])

	code, _ = app.do(t, http.MethodGet, "/api/v1/trades", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTradeLifecycle_HappyPath(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerID := uuid.New()
	payerToken := app.token(t, payerID, "user")
	receiverToken := app.token(t, app.adCatalog.counterpartyID, "user")

	// Create: initiator pays, counterparty receives.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/trades", payerToken, map[string]interface{}{
		"ad_ref":        "ad-1001",
		"side":          "INITIATOR_PAYS",
		"amount_source": "1000000",
	})
	require.Equal(t, http.StatusCreated, code, "create: %v", envelope)
	trade := data(t, envelope)
	ref := trade["reference"].(string)
	assert.Equal(t, "PENDING_PAYMENT", trade["status"])
	assert.Equal(t, payerID.String(), trade["payer_id"])
	assert.Equal(t, app.adCatalog.counterpartyID.String(), trade["receiver_id"])
	// Payment details survive the encrypt-at-rest round trip.
	details := trade["payment_details"].(map[string]interface{})
	assert.Equal(t, "BANK_TRANSFER", details["method"])
	assert.Equal(t, "0123456789", details["account_number"])

	// Payer confirms fiat sent.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	require.Equal(t, http.StatusOK, code, "confirm payment: %v", envelope)
	trade = data(t, envelope)
	assert.Equal(t, "PAID", trade["status"])
	assert.NotEmpty(t, trade["paid_at"])
	assert.NotEmpty(t, trade["dispute_eligible_at"])

	// Receiver initiates release; the code travels out of band only.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release", receiverToken, nil)
	require.Equal(t, http.StatusOK, code, "initiate release: %v", envelope)
	challenge := data(t, envelope)
	assert.Equal(t, "r***@example.com", challenge["delivered_to"])
	assert.Equal(t, float64(5), challenge["attempts"])
	releaseCode := app.deliverer.codeFor(ref)
	require.Len(t, releaseCode, 6)
	assert.NotContains(t, challenge, "code")

	// A wrong code burns an attempt without moving the trade.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken,
		map[string]string{"code": wrongCode(releaseCode)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "REL_003", envelope["error_code"])
	assert.Contains(t, envelope["message"], "4 attempts remaining")

	// The delivered code completes the trade and credits the ledger.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken,
		map[string]string{"code": releaseCode})
	require.Equal(t, http.StatusOK, code, "confirm release: %v", envelope)
	trade = data(t, envelope)
	assert.Equal(t, "COMPLETED", trade["status"])
	assert.NotEmpty(t, trade["completed_at"])
	assert.Equal(t, 1, app.ledger.creditsFor(ref))

	// Replayed confirmation is idempotent and does not credit twice.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken,
		map[string]string{"code": releaseCode})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "COMPLETED", data(t, envelope)["status"])
	assert.Equal(t, 1, app.ledger.creditsFor(ref))

	// Audit trail records every transition in order.
	modToken := app.token(t, uuid.New(), "moderator")
	code, envelope = app.do(t, http.MethodGet, "/api/v1/moderation/trades/"+ref+"/events", modToken, nil)
	require.Equal(t, http.StatusOK, code)
	events := envelope["data"].([]interface{})
	causes := make([]string, 0, len(events))
	for _, e := range events {
		causes = append(causes, e.(map[string]interface{})["cause"].(string))
	}
	assert.Equal(t, []string{"TRADE_CREATED", "PAYMENT_CONFIRMED", "RELEASE_INITIATED", "RELEASE_CONFIRMED"}, causes)
}

func TestPaymentWindowExpiry(t *testing.T) {
	// Zero-minute window: the trade is overdue the moment it exists.
	app := newTestApp(t, 0, 60)
	payerToken := app.token(t, uuid.New(), "user")
	ref := app.createTrade(t, payerToken)

	// A read is enough to observe the system cancellation.
	code, envelope := app.do(t, http.MethodGet, "/api/v1/trades/"+ref, payerToken, nil)
	require.Equal(t, http.StatusOK, code)
	trade := data(t, envelope)
	assert.Equal(t, "CANCELLED", trade["status"])
	assert.Equal(t, "SYSTEM", trade["cancelled_by"])
	assert.Equal(t, "payment window expired", trade["cancel_reason"])

	// Late confirmation reports the expiry, not a generic state error.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "TRD_003", envelope["error_code"])
}

func TestPayerCancel(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerToken := app.token(t, uuid.New(), "user")
	receiverToken := app.token(t, app.adCatalog.counterpartyID, "user")
	ref := app.createTrade(t, payerToken)

	// Only the payer may abandon a pending trade.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/cancel", receiverToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "TRD_001", envelope["error_code"])

	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/cancel", payerToken,
		map[string]string{"reason": "found a better rate"})
	require.Equal(t, http.StatusOK, code)
	trade := data(t, envelope)
	assert.Equal(t, "CANCELLED", trade["status"])
	assert.Equal(t, "PAYER", trade["cancelled_by"])
	assert.Equal(t, "found a better rate", trade["cancel_reason"])

	// Replay returns the cancelled record unchanged.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/cancel", payerToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CANCELLED", data(t, envelope)["status"])

	// A payer cancellation is not a window expiry.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "TRD_002", envelope["error_code"])
}

func TestDisputeFlow(t *testing.T) {
	// Zero-minute threshold: a paid trade is immediately disputable.
	app := newTestApp(t, 30, 0)
	payerID := uuid.New()
	payerToken := app.token(t, payerID, "user")
	ref := app.createTrade(t, payerToken)

	code, _ := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, envelope := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/dispute", payerToken,
		map[string]string{"reason_code": "NO_RELEASE", "details": "Seller never released the crypto"})
	require.Equal(t, http.StatusOK, code, "open dispute: %v", envelope)
	trade := data(t, envelope)
	assert.Equal(t, "DISPUTED", trade["status"])
	dispute := trade["dispute"].(map[string]interface{})
	assert.Equal(t, "NO_RELEASE", dispute["reason_code"])

	// One dispute per trade; reopening is a no-op.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/dispute", payerToken,
		map[string]string{"reason_code": "UNRESPONSIVE", "details": "Still nothing after waiting"})
	require.Equal(t, http.StatusOK, code)
	dispute = data(t, envelope)["dispute"].(map[string]interface{})
	assert.Equal(t, "NO_RELEASE", dispute["reason_code"])

	// The moderation console is gated on role, not just authentication.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/moderation/trades/"+ref, payerToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "AUTH_002", envelope["error_code"])

	modToken := app.token(t, uuid.New(), "moderator")
	code, envelope = app.do(t, http.MethodGet, "/api/v1/moderation/trades/"+ref, modToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DISPUTED", data(t, envelope)["status"])

	// Resolution in the payer's favour completes and credits.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/moderation/trades/"+ref+"/resolve", modToken,
		map[string]string{"outcome": "COMPLETE", "note": "payment proof verified"})
	require.Equal(t, http.StatusOK, code, "resolve: %v", envelope)
	assert.Equal(t, "COMPLETED", data(t, envelope)["status"])
	assert.Equal(t, 1, app.ledger.creditsFor(ref))

	code, envelope = app.do(t, http.MethodGet, "/api/v1/moderation/trades/"+ref+"/events", modToken, nil)
	require.Equal(t, http.StatusOK, code)
	events := envelope["data"].([]interface{})
	last := events[len(events)-1].(map[string]interface{})
	assert.Equal(t, "MODERATION_RESOLUTION", last["cause"])
	assert.Nil(t, last["actor_id"])
}

func TestDispute_BeforeThreshold(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerToken := app.token(t, uuid.New(), "user")
	ref := app.createTrade(t, payerToken)

	code, _ := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, envelope := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/dispute", payerToken,
		map[string]string{"reason_code": "NO_RELEASE", "details": "Seller never released the crypto"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "DSP_001", envelope["error_code"])
}

func TestNonParticipantHidden(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerToken := app.token(t, uuid.New(), "user")
	strangerToken := app.token(t, uuid.New(), "user")
	ref := app.createTrade(t, payerToken)

	// Existence of the trade is not revealed to outsiders.
	code, envelope := app.do(t, http.MethodGet, "/api/v1/trades/"+ref, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "TRD_004", envelope["error_code"])

	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "TRD_004", envelope["error_code"])
}

func TestRelease_RoleAndExhaustion(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerToken := app.token(t, uuid.New(), "user")
	receiverToken := app.token(t, app.adCatalog.counterpartyID, "user")
	ref := app.createTrade(t, payerToken)

	code, _ := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/payment", payerToken, nil)
	require.Equal(t, http.StatusOK, code)

	// Only the receiver holds the release authority.
	code, envelope := app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release", payerToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "TRD_001", envelope["error_code"])

	code, _ = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release", receiverToken, nil)
	require.Equal(t, http.StatusOK, code)
	releaseCode := app.deliverer.codeFor(ref)

	// Burn all five attempts with wrong codes.
	bad := map[string]string{"code": wrongCode(releaseCode)}
	for i := 0; i < 4; i++ {
		code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken, bad)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "REL_003", envelope["error_code"])
	}
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken, bad)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "REL_002", envelope["error_code"])

	// Even the right code is dead once the challenge is exhausted.
	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken,
		map[string]string{"code": releaseCode})
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "REL_001", envelope["error_code"])

	// Re-initiation rotates a fresh challenge and the handshake completes.
	code, _ = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release", receiverToken, nil)
	require.Equal(t, http.StatusOK, code)
	freshCode := app.deliverer.codeFor(ref)

	code, envelope = app.do(t, http.MethodPost, "/api/v1/trades/"+ref+"/release/confirm", receiverToken,
		map[string]string{"code": freshCode})
	require.Equal(t, http.StatusOK, code, "confirm after rotation: %v", envelope)
	assert.Equal(t, "COMPLETED", data(t, envelope)["status"])
}

func TestListTrades(t *testing.T) {
	app := newTestApp(t, 30, 60)
	payerID := uuid.New()
	payerToken := app.token(t, payerID, "user")
	otherToken := app.token(t, uuid.New(), "user")

	app.createTrade(t, payerToken)
	ref2 := app.createTrade(t, payerToken)
	code, _ := app.do(t, http.MethodPost, "/api/v1/trades/"+ref2+"/payment", payerToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, envelope := app.do(t, http.MethodGet, "/api/v1/trades", payerToken, nil)
	require.Equal(t, http.StatusOK, code)
	list := data(t, envelope)
	assert.Equal(t, float64(2), list["total"])

	code, envelope = app.do(t, http.MethodGet, "/api/v1/trades?status=PAID", payerToken, nil)
	require.Equal(t, http.StatusOK, code)
	list = data(t, envelope)
	require.Equal(t, float64(1), list["total"])
	trades := list["trades"].([]interface{})
	assert.Equal(t, ref2, trades[0].(map[string]interface{})["reference"])

	// A user uninvolved in any trade sees an empty book.
	code, envelope = app.do(t, http.MethodGet, "/api/v1/trades", otherToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, envelope)["total"])
}
