// Package appleiap verifies App Store receipts for the trusted
// validation boundary. The shared secret is used here and nowhere else.
package appleiap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/awa/go-iap/appstore"

	"github.com/tarotware/paywall/pkg/types"
)

type Options struct {
	BundleID     string
	SharedSecret string
	Sandbox      bool
}

// ReceiptInfo is the slice of the verifyReceipt response this service
// consumes.
type ReceiptInfo struct {
	ProductID             string `json:"product_id"`
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	PurchaseDateMs        string `json:"purchase_date_ms"`
	ExpiresDateMs         string `json:"expires_date_ms"`
	CancellationDateMs    string `json:"cancellation_date_ms"`
}

type Receipt struct {
	Status            int            `json:"status"`
	Environment       string         `json:"environment"`
	LatestReceiptInfo []*ReceiptInfo `json:"latest_receipt_info"`
}

// Verify sends the opaque receipt payload to Apple and returns the parsed
// response. Status handling (sandbox receipt sent to production and vice
// versa) follows the verifyReceipt contract.
func Verify(ctx context.Context, receiptData string, opts *Options) (*Receipt, error) {
	if opts == nil {
		return nil, errors.New("opts is nil")
	}

	client := appstore.New()
	if opts.Sandbox {
		client.ProductionURL = client.SandboxURL
	}

	var result Receipt

	err := client.Verify(ctx, appstore.IAPRequest{
		ReceiptData:            receiptData,
		Password:               opts.SharedSecret,
		ExcludeOldTransactions: true,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to verify receipt: %w", err)
	}

	return &result, nil
}

// ToValidationResult reduces a verifyReceipt response to the entitlement
// window for one transaction. A receipt that verifies but whose latest
// expiry is in the past yields IsValid=true, IsActive=false.
func (r *Receipt) ToValidationResult(transactionID string, now time.Time) *types.ValidationResult {
	res := &types.ValidationResult{Environment: r.environment()}

	if r.Status != 0 {
		res.Error = fmt.Sprintf("receipt rejected with status %d", r.Status)
		return res
	}
	res.IsValid = true

	var latest *time.Time
	for _, info := range r.LatestReceiptInfo {
		if transactionID != "" && info.TransactionID != transactionID && info.OriginalTransactionID != transactionID {
			continue
		}
		if info.CancellationDateMs != "" {
			continue
		}
		if exp, ok := parseMs(info.ExpiresDateMs); ok {
			if latest == nil || exp.After(*latest) {
				latest = &exp
			}
		}
	}
	// Fall back to any line item when the transaction id is not present
	// in the latest receipt info (renewals replace transaction ids).
	if latest == nil {
		for _, info := range r.LatestReceiptInfo {
			if info.CancellationDateMs != "" {
				continue
			}
			if exp, ok := parseMs(info.ExpiresDateMs); ok {
				if latest == nil || exp.After(*latest) {
					latest = &exp
				}
			}
		}
	}

	if latest != nil {
		res.ExpirationDate = latest
		res.IsActive = latest.After(now)
	}
	return res
}

func (r *Receipt) environment() types.Environment {
	switch r.Environment {
	case "Sandbox":
		return types.EnvironmentSandbox
	case "Production":
		return types.EnvironmentProduction
	default:
		return types.EnvironmentUnknown
	}
}

func parseMs(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
