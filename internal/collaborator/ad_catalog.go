package collaborator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"escrow-trade-service/internal/core/domain"
	"escrow-trade-service/internal/core/ports"
	"escrow-trade-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AdCatalogClient implements ports.AdCatalog against the advertisement
// service's internal quote endpoint.
type AdCatalogClient struct {
	client
}

// NewAdCatalogClient creates a new ad catalog client.
func NewAdCatalogClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) *AdCatalogClient {
	return &AdCatalogClient{client: newClient(http, baseURL, secret, sigSvc, log)}
}

type quoteRequest struct {
	AdRef        string          `json:"ad_ref"`
	InitiatorID  uuid.UUID       `json:"initiator_id"`
	Side         string          `json:"side"`
	AmountSource decimal.Decimal `json:"amount_source"`
}

type quoteResponse struct {
	CounterpartyID          uuid.UUID             `json:"counterparty_id"`
	SourceCurrency          string                `json:"source_currency"`
	TargetCurrency          string                `json:"target_currency"`
	AmountTarget            decimal.Decimal       `json:"amount_target"`
	PlatformFee             decimal.Decimal       `json:"platform_fee"`
	NetTargetAmount         decimal.Decimal       `json:"net_target_amount"`
	MinAmountSource         decimal.Decimal       `json:"min_amount_source"`
	MaxAmountSource         decimal.Decimal       `json:"max_amount_source"`
	PaymentWindowMinutes    int                   `json:"payment_window_minutes"`
	DisputeThresholdMinutes int                   `json:"dispute_threshold_minutes"`
	PaymentDetails          domain.PaymentDetails `json:"payment_details"`
}

// Quote asks the ad catalog to price a trade against an advertisement.
// A missing, paused or exhausted ad maps to AdUnavailable.
func (c *AdCatalogClient) Quote(ctx context.Context, req ports.QuoteRequest) (*ports.Quote, error) {
	var resp quoteResponse
	err := c.postJSON(ctx, "/internal/v1/quotes", quoteRequest{
		AdRef:        req.AdRef,
		InitiatorID:  req.InitiatorID,
		Side:         string(req.Side),
		AmountSource: req.AmountSource,
	}, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			switch se.Status {
			case http.StatusNotFound, http.StatusGone, http.StatusConflict:
				return nil, apperror.ErrAdUnavailable()
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("ad catalog quote: %w", err))
	}

	return &ports.Quote{
		CounterpartyID:          resp.CounterpartyID,
		SourceCurrency:          resp.SourceCurrency,
		TargetCurrency:          resp.TargetCurrency,
		AmountTarget:            resp.AmountTarget,
		PlatformFee:             resp.PlatformFee,
		NetTargetAmount:         resp.NetTargetAmount,
		MinAmountSource:         resp.MinAmountSource,
		MaxAmountSource:         resp.MaxAmountSource,
		PaymentWindowMinutes:    resp.PaymentWindowMinutes,
		DisputeThresholdMinutes: resp.DisputeThresholdMinutes,
		PaymentDetails:          resp.PaymentDetails,
	}, nil
}
