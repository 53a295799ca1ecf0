package handler

import (
	"time"

	"escrow-trade-service/internal/adapter/http/dto"
	"escrow-trade-service/internal/adapter/http/middleware"
	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"
	"escrow-trade-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeHandler handles the participant-facing trade endpoints.
type TradeHandler struct {
	tradeSvc   ports.TradeService
	releaseSvc ports.ReleaseService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeSvc ports.TradeService, releaseSvc ports.ReleaseService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc, releaseSvc: releaseSvc}
}

// actorID extracts the authenticated user from the request context.
func actorID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxUserID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// CreateTrade handles POST /api/v1/trades.
func (h *TradeHandler) CreateTrade(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.AmountSource)
	if err != nil {
		response.Error(c, apperror.Validation("amount_source must be a decimal number"))
		return
	}

	trade, err := h.tradeSvc.CreateTrade(c.Request.Context(), ports.CreateTradeRequest{
		InitiatorID:  userID,
		AdRef:        req.AdRef,
		Side:         domain.TradeSide(req.Side),
		AmountSource: amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTradeResponse(trade))
}

// GetTrade handles GET /api/v1/trades/:reference.
func (h *TradeHandler) GetTrade(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.GetTrade(c.Request.Context(), userID, false, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// ListTrades handles GET /api/v1/trades.
func (h *TradeHandler) ListTrades(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	params := ports.TradeListParams{UserID: userID}
	if s := c.Query("status"); s != "" {
		status := domain.TradeStatus(s)
		params.Status = &status
	}
	params.Page = queryInt(c, "page", 1)
	params.PageSize = queryInt(c, "page_size", 20)

	trades, total, err := h.tradeSvc.ListTrades(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TradeListResponse{
		Trades:   make([]dto.TradeResponse, 0, len(trades)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range trades {
		resp.Trades = append(resp.Trades, toTradeResponse(&trades[i]))
	}
	response.OK(c, resp)
}

// ConfirmPayment handles POST /api/v1/trades/:reference/payment.
func (h *TradeHandler) ConfirmPayment(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.ConfirmPayment(c.Request.Context(), userID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// CancelTrade handles POST /api/v1/trades/:reference/cancel.
func (h *TradeHandler) CancelTrade(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.CancelTradeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		dto.SanitizeStruct(&req)
	}

	trade, err := h.tradeSvc.CancelTrade(c.Request.Context(), userID, c.Param("reference"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// InitiateRelease handles POST /api/v1/trades/:reference/release.
func (h *TradeHandler) InitiateRelease(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	handle, err := h.releaseSvc.InitiateRelease(c.Request.Context(), userID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ChallengeResponse{
		Reference:   handle.Reference,
		DeliveredTo: handle.DeliveredTo,
		ExpiresAt:   handle.ExpiresAt.Format(time.RFC3339),
		Attempts:    handle.Attempts,
	})
}

// ConfirmRelease handles POST /api/v1/trades/:reference/release/confirm.
func (h *TradeHandler) ConfirmRelease(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.ConfirmReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	trade, err := h.releaseSvc.ConfirmRelease(c.Request.Context(), userID, c.Param("reference"), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// OpenDispute handles POST /api/v1/trades/:reference/dispute.
func (h *TradeHandler) OpenDispute(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	trade, err := h.tradeSvc.OpenDispute(c.Request.Context(), ports.OpenDisputeRequest{
		ActorID:     userID,
		Reference:   c.Param("reference"),
		ReasonCode:  domain.DisputeReason(req.ReasonCode),
		Details:     req.Details,
		EvidenceRef: req.EvidenceRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	var n int
	for _, r := range raw {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
		if n > 1<<20 {
			return fallback
		}
	}
	if n == 0 {
		return fallback
	}
	return n
}

// toTradeResponse converts domain.Trade to DTO.
func toTradeResponse(t *domain.Trade) dto.TradeResponse {
	resp := dto.TradeResponse{
		ID:              t.ID.String(),
		Reference:       t.Reference,
		AdRef:           t.AdRef,
		PayerID:         t.PayerID.String(),
		ReceiverID:      t.ReceiverID.String(),
		Side:            string(t.Side),
		SourceCurrency:  t.SourceCurrency,
		TargetCurrency:  t.TargetCurrency,
		AmountSource:    t.AmountSource.String(),
		AmountTarget:    t.AmountTarget.String(),
		PlatformFee:     t.PlatformFee.String(),
		NetTargetAmount: t.NetTargetAmount.String(),
		PaymentDetails: dto.PaymentDetailsResponse{
			Method:        t.PaymentDetails.Method,
			AccountName:   t.PaymentDetails.AccountName,
			AccountNumber: t.PaymentDetails.AccountNumber,
			BankName:      t.PaymentDetails.BankName,
			WalletHandle:  t.PaymentDetails.WalletHandle,
			QRPayload:     t.PaymentDetails.QRPayload,
			Instructions:  t.PaymentDetails.Instructions,
		},
		Status:                  string(t.Status),
		PaymentWindowMinutes:    t.PaymentWindowMinutes,
		DisputeThresholdMinutes: t.DisputeThresholdMinutes,
		PaymentDeadline:         t.PaymentDeadline().Format(time.RFC3339),
		CreatedAt:               t.CreatedAt.Format(time.RFC3339),
		PaidAt:                  formatTimePtr(t.PaidAt),
		ReleaseRequestedAt:      formatTimePtr(t.ReleaseRequestedAt),
		CompletedAt:             formatTimePtr(t.CompletedAt),
		CancelledAt:             formatTimePtr(t.CancelledAt),
		DisputedAt:              formatTimePtr(t.DisputedAt),
		CancelReason:            t.CancelReason,
	}

	if t.PaidAt != nil {
		s := t.DisputeEligibleAt().Format(time.RFC3339)
		resp.DisputeEligibleAt = &s
	}
	if t.CancelledBy != nil {
		s := string(*t.CancelledBy)
		resp.CancelledBy = &s
	}
	if t.Dispute != nil {
		resp.Dispute = &dto.DisputeResponse{
			ReasonCode:  string(t.Dispute.ReasonCode),
			Details:     t.Dispute.Details,
			EvidenceRef: t.Dispute.EvidenceRef,
			OpenedAt:    t.Dispute.OpenedAt.Format(time.RFC3339),
		}
	}
	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
