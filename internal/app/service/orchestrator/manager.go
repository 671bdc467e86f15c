package orchestrator

import (
	"errors"
	"fmt"

	"github.com/tarotware/paywall/internal/platform/store"
)

// Purchase failure taxonomy. Every store-reported or pipeline failure is
// reduced to one of these so callers can pick the right user-facing
// message (and suppress the dialog entirely for cancellations).
var (
	// ErrStoreUnavailable means the store connection never came up; the
	// app runs in a no-purchasing mode.
	ErrStoreUnavailable = errors.New("store connection unavailable")
	// ErrPurchaseInProgress rejects a second concurrent attempt for the
	// same product without contacting the store.
	ErrPurchaseInProgress = errors.New("purchase already in progress for this product")
	// ErrPurchaseTimeout means the store event never arrived for an
	// attempt within the purchase timeout.
	ErrPurchaseTimeout = errors.New("purchase timed out waiting for the store")
	// ErrDisposed rejects attempts that were pending when the
	// orchestrator was torn down.
	ErrDisposed = errors.New("purchase orchestrator disposed")
	// ErrReceiptInvalid means validation returned an invalid or inactive
	// receipt for a fresh purchase; entitlement is left unchanged.
	ErrReceiptInvalid = errors.New("receipt is invalid or inactive")

	ErrUserCancelled   = errors.New("purchase cancelled")
	ErrNetwork         = errors.New("network error while purchasing")
	ErrItemUnavailable = errors.New("item unavailable in the store")
	ErrAlreadyOwned    = errors.New("already subscribed, use restore purchases")
	ErrPurchaseFailed  = errors.New("purchase failed")
)

// mapStoreError translates a store error report onto the taxonomy,
// keeping the store message for the logs.
func mapStoreError(e store.PurchaseError) error {
	var base error
	switch e.Code {
	case store.CodeUserCancelled:
		base = ErrUserCancelled
	case store.CodeNetwork:
		base = ErrNetwork
	case store.CodeItemUnavailable:
		base = ErrItemUnavailable
	case store.CodeAlreadyOwned:
		base = ErrAlreadyOwned
	default:
		base = ErrPurchaseFailed
	}
	if e.Message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, e.Message)
}
