package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarotware/paywall/pkg/types"
)

func TestNewPurchaseRequest_IOS(t *testing.T) {
	req, err := NewPurchaseRequest(types.PlatformIOS, &types.ProductDescriptor{ProductID: "tarot_timer_monthly"})
	require.NoError(t, err)
	require.Equal(t, "tarot_timer_monthly", req.ProductID())
	require.IsType(t, IOSRequest{}, req)
}

func TestNewPurchaseRequest_AndroidUsesOfferToken(t *testing.T) {
	product := &types.ProductDescriptor{
		ProductID: "tarot_timer_yearly",
		Offers: []types.SubscriptionOffer{
			{OfferToken: "", BasePlanID: "base"},
			{OfferToken: "tok-1", BasePlanID: "yearly"},
		},
	}
	req, err := NewPurchaseRequest(types.PlatformAndroid, product)
	require.NoError(t, err)
	android, ok := req.(AndroidRequest)
	require.True(t, ok)
	require.Equal(t, []string{"tarot_timer_yearly"}, android.SKUs)
	require.Equal(t, "tok-1", android.OfferToken)
}

func TestNewPurchaseRequest_AndroidWithoutOfferTokenFails(t *testing.T) {
	product := &types.ProductDescriptor{ProductID: "tarot_timer_yearly"}
	_, err := NewPurchaseRequest(types.PlatformAndroid, product)
	require.ErrorIs(t, err, ErrNoOfferToken)
}

func TestNewPurchaseRequest_NilProductFails(t *testing.T) {
	_, err := NewPurchaseRequest(types.PlatformIOS, nil)
	require.Error(t, err)
}

func TestMemorySession_PurchaseLifecycle(t *testing.T) {
	products := []*types.ProductDescriptor{{ProductID: "tarot_timer_monthly", Type: types.SubscriptionTypeMonthly}}
	s := NewMemorySession(products)
	ctx := context.Background()

	require.NoError(t, s.InitConnection(ctx))

	got, err := s.GetProducts(ctx, ProductQuery{SKUs: []string{"tarot_timer_monthly"}, Type: "subs"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	done := make(chan Purchase, 1)
	unsub := s.OnPurchaseUpdated(func(p Purchase) { done <- p })
	defer unsub()

	req, err := NewPurchaseRequest(types.PlatformIOS, products[0])
	require.NoError(t, err)
	require.NoError(t, s.RequestPurchase(ctx, req))

	p := <-done
	require.Equal(t, "tarot_timer_monthly", p.ProductID)
	require.NotEmpty(t, p.TransactionID)
	require.NotEmpty(t, p.TransactionReceipt)

	require.NoError(t, s.FinishTransaction(ctx, p))
	owned, err := s.GetAvailablePurchases(ctx)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.True(t, owned[0].Acknowledged)
}

func TestMemorySession_FailNextEmitsError(t *testing.T) {
	products := []*types.ProductDescriptor{{ProductID: "tarot_timer_monthly"}}
	s := NewMemorySession(products)
	ctx := context.Background()
	require.NoError(t, s.InitConnection(ctx))

	errs := make(chan PurchaseError, 1)
	unsub := s.OnPurchaseError(func(e PurchaseError) { errs <- e })
	defer unsub()

	s.FailNext = &PurchaseError{Code: CodeUserCancelled, Message: "cancelled in dialog"}
	req, err := NewPurchaseRequest(types.PlatformIOS, products[0])
	require.NoError(t, err)
	require.NoError(t, s.RequestPurchase(ctx, req))

	e := <-errs
	require.Equal(t, CodeUserCancelled, e.Code)
	require.Equal(t, "tarot_timer_monthly", e.ProductID)
}
