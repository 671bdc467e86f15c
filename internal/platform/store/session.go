// Package store defines the platform billing session consumed by the
// purchase orchestrator. The real implementation is the device-side
// bridge; this package only fixes the contract and the wire shapes.
package store

import (
	"context"
	"time"

	"github.com/tarotware/paywall/pkg/types"
)

// ErrorCode classifies store-reported purchase errors.
type ErrorCode string

const (
	CodeUserCancelled   ErrorCode = "user_cancelled"
	CodeNetwork         ErrorCode = "network"
	CodeItemUnavailable ErrorCode = "item_unavailable"
	CodeAlreadyOwned    ErrorCode = "already_owned"
	CodeUnknown         ErrorCode = "unknown"
)

// Purchase is one completed (or restored) platform transaction as
// delivered by the store event stream.
type Purchase struct {
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	// TransactionReceipt is the opaque receipt payload handed to the
	// trusted validation boundary. Its contents are never interpreted on
	// this side of the boundary.
	TransactionReceipt string
	PurchasedAt        time.Time
	Acknowledged       bool
}

// PurchaseError is a store-reported failure for a purchase request.
type PurchaseError struct {
	ProductID string
	Code      ErrorCode
	Message   string
}

// ProductQuery selects the products to fetch.
type ProductQuery struct {
	SKUs []string
	// Type is "subs" for subscriptions; the only type this app sells.
	Type string
}

// Session is one long-lived connection to the platform store transaction
// queue. It is a process-wide shared resource: opened once, torn down
// explicitly, with purchase completion delivered through listeners rather
// than request/response returns.
type Session interface {
	// InitConnection establishes the connection. Implementations may be
	// called more than once; the orchestrator guards idempotency.
	InitConnection(ctx context.Context) error
	// EndConnection tears the connection down and releases listeners.
	EndConnection(ctx context.Context) error

	GetProducts(ctx context.Context, q ProductQuery) ([]*types.ProductDescriptor, error)

	// RequestPurchase starts a purchase. Completion arrives through the
	// purchase-updated listener, not through this call.
	RequestPurchase(ctx context.Context, req PurchaseRequest) error

	// OnPurchaseUpdated registers a completion listener and returns its
	// detach func.
	OnPurchaseUpdated(fn func(Purchase)) (unsubscribe func())
	// OnPurchaseError registers an error listener and returns its detach
	// func.
	OnPurchaseError(fn func(PurchaseError)) (unsubscribe func())

	// FinishTransaction acknowledges a delivered purchase with the
	// platform. Until finished, the platform does not consider the
	// transaction complete and will redeliver it.
	FinishTransaction(ctx context.Context, p Purchase) error

	// GetAvailablePurchases lists the previously completed purchases the
	// user still holds.
	GetAvailablePurchases(ctx context.Context) ([]Purchase, error)
}
