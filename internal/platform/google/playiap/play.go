// Package playiap verifies Google Play subscription purchases for the
// trusted validation boundary using the developer service account.
package playiap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awa/go-iap/playstore"

	"github.com/tarotware/paywall/pkg/types"
)

type Options struct {
	PackageName        string
	ServiceAccountJSON string
}

// ReceiptPayload is the purchase data the Android client hands over as its
// opaque receipt: the product id plus the purchase token Play issued.
type ReceiptPayload struct {
	PackageName   string `json:"packageName"`
	ProductID     string `json:"productId"`
	PurchaseToken string `json:"purchaseToken"`
}

func ParseReceiptPayload(receiptData string) (*ReceiptPayload, error) {
	var p ReceiptPayload
	if err := json.Unmarshal([]byte(receiptData), &p); err != nil {
		return nil, fmt.Errorf("failed to parse play receipt payload: %w", err)
	}
	if p.ProductID == "" || p.PurchaseToken == "" {
		return nil, errors.New("play receipt payload missing product id or purchase token")
	}
	return &p, nil
}

// Verify checks a subscription purchase token against the Play Developer
// API and reduces it to an entitlement window.
func Verify(ctx context.Context, receiptData string, opts *Options, now time.Time) (*types.ValidationResult, error) {
	if opts == nil {
		return nil, errors.New("opts is nil")
	}

	payload, err := ParseReceiptPayload(receiptData)
	if err != nil {
		return nil, err
	}
	pkg := payload.PackageName
	if pkg == "" {
		pkg = opts.PackageName
	}

	client, err := playstore.New([]byte(opts.ServiceAccountJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to init play client: %w", err)
	}

	sub, err := client.VerifySubscription(ctx, pkg, payload.ProductID, payload.PurchaseToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify subscription: %w", err)
	}

	res := &types.ValidationResult{
		IsValid:     true,
		Environment: types.EnvironmentProduction,
	}
	// PurchaseType is only present for sandbox/test purchases.
	if sub.PurchaseType != nil {
		res.Environment = types.EnvironmentSandbox
	}
	if sub.ExpiryTimeMillis > 0 {
		exp := time.UnixMilli(sub.ExpiryTimeMillis)
		res.ExpirationDate = &exp
		res.IsActive = exp.After(now)
	}
	return res, nil
}
