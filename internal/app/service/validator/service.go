package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/logctx"
	"github.com/tarotware/paywall/pkg/types"
)

// ErrValidationFailed wraps any failure to obtain a verdict from the
// trust boundary. It is a typed rejection the orchestrator translates
// into a purchase failure; it never crashes the caller.
var ErrValidationFailed = errors.New("receipt validation failed")

// Service is the receipt validator: it asks the trust boundary for a
// verdict and reduces verdicts to entitlement record updates.
type Service struct {
	cfg      *config.Config
	boundary TrustBoundary
	ents     *entitlement.Service
	log      *zap.SugaredLogger
}

func NewService(cfg *config.Config, boundary TrustBoundary, ents *entitlement.Service, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, boundary: boundary, ents: ents, log: log}
}

// ValidateReceipt verifies one receipt payload. Empty payloads and
// JSON-shaped payloads that do not parse fail closed instead of being
// passed through to the boundary.
func (s *Service) ValidateReceipt(ctx context.Context, receiptPayload, transactionID string) (*types.ValidationResult, error) {
	trimmed := strings.TrimSpace(receiptPayload)
	if trimmed == "" {
		return &types.ValidationResult{
			IsValid:     false,
			Environment: types.EnvironmentUnknown,
			Error:       "empty receipt payload",
		}, nil
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if !json.Valid([]byte(trimmed)) {
			return &types.ValidationResult{
				IsValid:     false,
				Environment: types.EnvironmentUnknown,
				Error:       "malformed receipt payload",
			}, nil
		}
	}

	result, err := s.boundary.Validate(ctx, types.ValidateRequest{
		ReceiptPayload: receiptPayload,
		TransactionID:  transactionID,
		Provider:       types.ProviderForPlatform(s.cfg.Platform),
	})
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("receipt validation failed", "transaction_id", transactionID, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return result, nil
}

// TransactionRef carries the purchase identity a sync writes alongside
// the verified window.
type TransactionRef struct {
	TransactionID         string
	OriginalTransactionID string
	PurchasedAt           *time.Time
}

// SyncSubscriptionStatus maps a validation result onto the entitlement
// record and persists it. A valid-but-inactive receipt always writes
// non-premium: an expired receipt grants nothing. The write replaces the
// whole record; applying the same result twice yields the same record.
func (s *Service) SyncSubscriptionStatus(ctx context.Context, result *types.ValidationResult, productID string, ref TransactionRef) error {
	if result == nil {
		return fmt.Errorf("nil validation result")
	}

	now := time.Now()
	rec, err := s.ents.GetEntitlement(ctx)
	if err != nil {
		return err
	}

	active := result.IsValid && result.IsActive
	rec.IsPremium = active
	rec.LastValidated = &now
	rec.Environment = result.Environment
	rec.ExpiryDate = result.ExpirationDate
	rec.GracePeriodUntil = nil
	if active {
		rec.SubscriptionType = s.cfg.SubscriptionTypeForProduct(productID)
	} else {
		rec.SubscriptionType = types.SubscriptionTypeNone
	}
	if ref.TransactionID != "" {
		rec.StoreTransactionID = ref.TransactionID
	}
	if ref.OriginalTransactionID != "" {
		rec.OriginalTransactionID = ref.OriginalTransactionID
	}
	if ref.PurchasedAt != nil {
		rec.PurchaseDate = ref.PurchasedAt
	}

	return s.ents.SetEntitlement(ctx, rec)
}

// PeriodicValidation re-validates the stored receipt to catch
// externally-cancelled or refunded subscriptions the client would not
// otherwise learn about.
func (s *Service) PeriodicValidation(ctx context.Context) error {
	receipt, err := s.ents.GetLatestReceipt(ctx)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil
	}

	result, err := s.ValidateReceipt(ctx, receipt.Payload, receipt.TransactionID)
	if err != nil {
		// Network trouble is not evidence of revocation; keep state.
		return err
	}
	if !result.IsValid || !result.IsActive {
		logctx.FromCtx(ctx, s.log).Infow("periodic validation found inactive subscription",
			"transaction_id", receipt.TransactionID, "is_valid", result.IsValid)
	}
	return s.SyncSubscriptionStatus(ctx, result, s.storedProductID(ctx), TransactionRef{TransactionID: receipt.TransactionID})
}

func (s *Service) storedProductID(ctx context.Context) string {
	rec, err := s.ents.GetEntitlement(ctx)
	if err != nil || rec == nil {
		return ""
	}
	for _, item := range s.cfg.PaymentItems {
		if item.Type == rec.SubscriptionType {
			return item.ProviderItemID
		}
	}
	return ""
}
