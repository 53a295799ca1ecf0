// Package collaborator holds HTTP clients for the platform services the trade
// core delegates to: ad catalog, KYC, wallet custody, notifications and
// out-of-band code delivery. Every outbound payload is HMAC-signed.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"escrow-trade-service/internal/core/ports"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// maxRequestAttempts bounds retries against a flapping collaborator.
const maxRequestAttempts = 3

// statusError carries a non-2xx collaborator response to the caller.
type statusError struct {
	Status int
	Body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("collaborator returned status %d", e.Status)
}

// client is the shared signed-JSON transport under each collaborator adapter.
type client struct {
	http    HTTPClient
	baseURL string
	secret  string
	sigSvc  ports.SignatureService
	log     zerolog.Logger
}

func newClient(http HTTPClient, baseURL, secret string, sigSvc ports.SignatureService, log zerolog.Logger) client {
	return client{
		http:    http,
		baseURL: baseURL,
		secret:  secret,
		sigSvc:  sigSvc,
		log:     log,
	}
}

// postJSON sends a signed POST and decodes a 2xx response body into out.
// 5xx responses and transport errors are retried with exponential backoff;
// 4xx responses are returned immediately as *statusError.
func (c *client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRequestAttempts; attempt++ {
		if attempt > 0 {
			sleep := bo.NextBackOff()
			if sleep == backoff.Stop {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}

		respBody, err := c.doOnce(ctx, path, payload)
		if err == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		var se *statusError
		if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
			return se
		}
		lastErr = err
		c.log.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("collaborator request failed")
	}
	return fmt.Errorf("collaborator %s: %w", path, lastErr)
}

func (c *client) doOnce(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	now := time.Now().Unix()
	canonical := fmt.Sprintf("%s|%s|%d|%s", http.MethodPost, path, now, payload)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", strconv.FormatInt(now, 10))
	req.Header.Set("X-Signature", c.sigSvc.Sign(c.secret, canonical))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Status: resp.StatusCode, Body: respBody}
	}
	return respBody, nil
}
