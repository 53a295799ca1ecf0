package handler

import (
	"time"

	"escrow-trade-service/internal/adapter/http/dto"
	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"
	"escrow-trade-service/pkg/response"

	"github.com/gin-gonic/gin"
)

// ModerationHandler handles the moderation console endpoints. Routes using it
// sit behind the moderator role gate.
type ModerationHandler struct {
	tradeSvc ports.TradeService
}

// NewModerationHandler creates a new ModerationHandler.
func NewModerationHandler(tradeSvc ports.TradeService) *ModerationHandler {
	return &ModerationHandler{tradeSvc: tradeSvc}
}

// GetTrade handles GET /api/v1/moderation/trades/:reference.
func (h *ModerationHandler) GetTrade(c *gin.Context) {
	userID, ok := actorID(c)
	if !ok {
		return
	}

	trade, err := h.tradeSvc.GetTrade(c.Request.Context(), userID, true, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// ResolveDispute handles POST /api/v1/moderation/trades/:reference/resolve.
func (h *ModerationHandler) ResolveDispute(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	trade, err := h.tradeSvc.ResolveDispute(c.Request.Context(), c.Param("reference"), domain.DisputeOutcome(req.Outcome), req.Note)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTradeResponse(trade))
}

// ListTradeEvents handles GET /api/v1/moderation/trades/:reference/events.
func (h *ModerationHandler) ListTradeEvents(c *gin.Context) {
	events, err := h.tradeSvc.ListTradeEvents(c.Request.Context(), c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := make([]dto.TradeEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, toTradeEventResponse(&events[i]))
	}
	response.OK(c, resp)
}

// toTradeEventResponse converts domain.TradeEvent to DTO.
func toTradeEventResponse(e *domain.TradeEvent) dto.TradeEventResponse {
	resp := dto.TradeEventResponse{
		ID:         e.ID.String(),
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		Cause:      string(e.Cause),
		Note:       e.Note,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
	if e.ActorID != nil {
		s := e.ActorID.String()
		resp.ActorID = &s
	}
	return resp
}
