package store

import (
	"context"
	"fmt"

	"github.com/tarotware/paywall/pkg/types"
)

// UnavailableSession is bound when no device bridge is configured for
// this build. Every store operation fails, so the orchestrator settles
// into its no-purchasing mode instead of completing purchases with
// fabricated receipts.
type UnavailableSession struct {
	reason string
}

func NewUnavailableSession(reason string) *UnavailableSession {
	return &UnavailableSession{reason: reason}
}

func (s *UnavailableSession) err() error {
	return fmt.Errorf("store session unavailable: %s", s.reason)
}

func (s *UnavailableSession) InitConnection(ctx context.Context) error { return s.err() }

func (s *UnavailableSession) EndConnection(ctx context.Context) error { return nil }

func (s *UnavailableSession) GetProducts(ctx context.Context, q ProductQuery) ([]*types.ProductDescriptor, error) {
	return nil, s.err()
}

func (s *UnavailableSession) RequestPurchase(ctx context.Context, req PurchaseRequest) error {
	return s.err()
}

func (s *UnavailableSession) OnPurchaseUpdated(fn func(Purchase)) func() { return func() {} }

func (s *UnavailableSession) OnPurchaseError(fn func(PurchaseError)) func() { return func() {} }

func (s *UnavailableSession) FinishTransaction(ctx context.Context, p Purchase) error {
	return s.err()
}

func (s *UnavailableSession) GetAvailablePurchases(ctx context.Context) ([]Purchase, error) {
	return nil, s.err()
}
