package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/types"
)

// TrustBoundary is the single server-side call that turns an opaque
// receipt into a verified entitlement window. Verification secrets exist
// only behind this boundary; this side never holds them.
type TrustBoundary interface {
	Validate(ctx context.Context, req types.ValidateRequest) (*types.ValidationResult, error)
}

type httpBoundary struct {
	endpoint string
	client   *http.Client
	log      *zap.SugaredLogger
}

// NewHTTPBoundary builds the boundary client against the configured
// verification endpoint.
func NewHTTPBoundary(cfg *config.Config, log *zap.SugaredLogger) TrustBoundary {
	timeout := cfg.Validator.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpBoundary{
		endpoint: cfg.Validator.Endpoint,
		client:   &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (b *httpBoundary) Validate(ctx context.Context, req types.ValidateRequest) (*types.ValidationResult, error) {
	if b.endpoint == "" {
		return nil, fmt.Errorf("validation endpoint is not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build validation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read validation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("validation endpoint returned status %d", resp.StatusCode)
	}

	var result types.ValidationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode validation response: %w", err)
	}
	return &result, nil
}
