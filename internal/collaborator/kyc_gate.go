package collaborator

import (
	"context"
	"fmt"

	"escrow-trade-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// KYCGateClient implements ports.KYCGate against the identity service.
type KYCGateClient struct {
	client
}

// NewKYCGateClient creates a new KYC gate client.
func NewKYCGateClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) *KYCGateClient {
	return &KYCGateClient{client: newClient(http, baseURL, secret, sigSvc, log)}
}

type kycCheckRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type kycCheckResponse struct {
	Verified bool `json:"verified"`
}

// IsVerified reports whether the user has passed identity verification.
func (c *KYCGateClient) IsVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	var resp kycCheckResponse
	err := c.postJSON(ctx, "/internal/v1/kyc/check", kycCheckRequest{UserID: userID}, &resp)
	if err != nil {
		return false, fmt.Errorf("kyc check: %w", err)
	}
	return resp.Verified, nil
}
