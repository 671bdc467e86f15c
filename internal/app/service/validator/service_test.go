package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/types"
)

type fakeBoundary struct {
	result *types.ValidationResult
	err    error
	calls  int
	last   types.ValidateRequest
}

func (f *fakeBoundary) Validate(_ context.Context, req types.ValidateRequest) (*types.ValidationResult, error) {
	f.calls++
	f.last = req
	return f.result, f.err
}

func newTestValidator(boundary TrustBoundary) (*Service, *entitlement.Service) {
	cfg := &config.Config{
		Platform: types.PlatformIOS,
		PaymentItems: []*types.PaymentItem{
			{ID: "monthly", ProviderItemID: "tarot_timer_monthly", Type: types.SubscriptionTypeMonthly},
			{ID: "yearly", ProviderItemID: "tarot_timer_yearly", Type: types.SubscriptionTypeYearly},
		},
	}
	ents := entitlement.NewService(cfg, entitlement.NewMemoryKV(), zap.NewNop().Sugar(), entitlement.NewNotifier())
	return NewService(cfg, boundary, ents, zap.NewNop().Sugar()), ents
}

func TestValidateReceipt_EmptyPayloadFailsClosed(t *testing.T) {
	boundary := &fakeBoundary{}
	s, _ := newTestValidator(boundary)

	res, err := s.ValidateReceipt(context.Background(), "   ", "tx-1")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Equal(t, 0, boundary.calls)
}

func TestValidateReceipt_MalformedJSONFailsClosed(t *testing.T) {
	boundary := &fakeBoundary{}
	s, _ := newTestValidator(boundary)

	res, err := s.ValidateReceipt(context.Background(), `{"productId": `, "tx-1")
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.Equal(t, 0, boundary.calls)
}

func TestValidateReceipt_BoundaryErrorWrapped(t *testing.T) {
	boundary := &fakeBoundary{err: errors.New("endpoint down")}
	s, _ := newTestValidator(boundary)

	_, err := s.ValidateReceipt(context.Background(), "opaque-receipt", "tx-1")
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestValidateReceipt_ProviderFollowsPlatform(t *testing.T) {
	boundary := &fakeBoundary{result: &types.ValidationResult{IsValid: true}}
	s, _ := newTestValidator(boundary)

	_, err := s.ValidateReceipt(context.Background(), "opaque-receipt", "tx-1")
	require.NoError(t, err)
	require.Equal(t, types.PaymentProviderApple, boundary.last.Provider)
	require.Equal(t, "tx-1", boundary.last.TransactionID)
}

func TestSyncSubscriptionStatus_ActiveWritesPremium(t *testing.T) {
	s, ents := newTestValidator(&fakeBoundary{})
	ctx := context.Background()

	exp := time.Now().Add(30 * 24 * time.Hour)
	purchased := time.Now().Add(-time.Hour)
	result := &types.ValidationResult{
		IsValid:        true,
		IsActive:       true,
		ExpirationDate: &exp,
		Environment:    types.EnvironmentSandbox,
	}
	ref := TransactionRef{TransactionID: "tx-2", OriginalTransactionID: "tx-1", PurchasedAt: &purchased}
	require.NoError(t, s.SyncSubscriptionStatus(ctx, result, "tarot_timer_monthly", ref))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
	require.Equal(t, types.SubscriptionTypeMonthly, rec.SubscriptionType)
	require.Equal(t, "tx-2", rec.StoreTransactionID)
	require.Equal(t, "tx-1", rec.OriginalTransactionID)
	require.Equal(t, types.EnvironmentSandbox, rec.Environment)
	require.NotNil(t, rec.LastValidated)
}

func TestSyncSubscriptionStatus_ValidButInactiveWritesNonPremium(t *testing.T) {
	s, ents := newTestValidator(&fakeBoundary{})
	ctx := context.Background()

	require.NoError(t, ents.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeYearly,
	}))

	past := time.Now().Add(-time.Hour)
	result := &types.ValidationResult{IsValid: true, IsActive: false, ExpirationDate: &past}
	require.NoError(t, s.SyncSubscriptionStatus(ctx, result, "tarot_timer_yearly", TransactionRef{}))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.False(t, rec.IsPremium)
	require.Equal(t, types.SubscriptionTypeNone, rec.SubscriptionType)
}

func TestSyncSubscriptionStatus_Idempotent(t *testing.T) {
	s, ents := newTestValidator(&fakeBoundary{})
	ctx := context.Background()

	exp := time.Now().Add(24 * time.Hour)
	result := &types.ValidationResult{IsValid: true, IsActive: true, ExpirationDate: &exp}
	ref := TransactionRef{TransactionID: "tx-3"}

	require.NoError(t, s.SyncSubscriptionStatus(ctx, result, "tarot_timer_monthly", ref))
	first, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SyncSubscriptionStatus(ctx, result, "tarot_timer_monthly", ref))
	second, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)

	require.Equal(t, first.IsPremium, second.IsPremium)
	require.Equal(t, first.SubscriptionType, second.SubscriptionType)
	require.Equal(t, first.StoreTransactionID, second.StoreTransactionID)
	require.True(t, first.ExpiryDate.Equal(*second.ExpiryDate))
}

func TestSyncSubscriptionStatus_ClearsGracePeriod(t *testing.T) {
	s, ents := newTestValidator(&fakeBoundary{})
	ctx := context.Background()

	grace := time.Now().Add(48 * time.Hour)
	require.NoError(t, ents.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeMonthly,
		GracePeriodUntil: &grace,
	}))

	exp := time.Now().Add(30 * 24 * time.Hour)
	result := &types.ValidationResult{IsValid: true, IsActive: true, ExpirationDate: &exp}
	require.NoError(t, s.SyncSubscriptionStatus(ctx, result, "tarot_timer_monthly", TransactionRef{TransactionID: "tx-4"}))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.Nil(t, rec.GracePeriodUntil)
}

func TestPeriodicValidation_NoStoredReceiptIsNoop(t *testing.T) {
	boundary := &fakeBoundary{}
	s, _ := newTestValidator(boundary)
	require.NoError(t, s.PeriodicValidation(context.Background()))
	require.Equal(t, 0, boundary.calls)
}

func TestPeriodicValidation_InactiveReceiptRevokes(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	boundary := &fakeBoundary{result: &types.ValidationResult{IsValid: true, IsActive: false, ExpirationDate: &past}}
	s, ents := newTestValidator(boundary)
	ctx := context.Background()

	require.NoError(t, ents.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeMonthly,
	}))
	require.NoError(t, ents.SaveLatestReceipt(ctx, "opaque-receipt", "tx-5"))

	require.NoError(t, s.PeriodicValidation(ctx))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.False(t, rec.IsPremium)
}

func TestPeriodicValidation_NetworkErrorKeepsState(t *testing.T) {
	boundary := &fakeBoundary{err: errors.New("timeout")}
	s, ents := newTestValidator(boundary)
	ctx := context.Background()

	require.NoError(t, ents.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeMonthly,
	}))
	require.NoError(t, ents.SaveLatestReceipt(ctx, "opaque-receipt", "tx-6"))

	require.Error(t, s.PeriodicValidation(ctx))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
}
