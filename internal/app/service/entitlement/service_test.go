package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/types"
)

func newTestService(env config.Env) *Service {
	cfg := &config.Config{
		Env:         env,
		UsageLimits: config.UsageLimits{Sessions: 2, JournalEntries: 3},
	}
	return NewService(cfg, NewMemoryKV(), zap.NewNop().Sugar(), NewNotifier())
}

func TestGetEntitlement_DefaultOnFirstRun(t *testing.T) {
	s := newTestService(config.EnvDev)
	rec, err := s.GetEntitlement(context.Background())
	require.NoError(t, err)
	require.False(t, rec.IsPremium)
	require.Equal(t, types.SubscriptionTypeNone, rec.SubscriptionType)
	require.Equal(t, types.EnvironmentUnknown, rec.Environment)
}

func TestSetEntitlement_RoundTripAndBroadcast(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()

	ch, cancel := s.Notifier().Subscribe()
	defer cancel()

	exp := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	rec := &types.EntitlementRecord{
		IsPremium:          true,
		SubscriptionType:   types.SubscriptionTypeMonthly,
		ExpiryDate:         &exp,
		StoreTransactionID: "tx-1",
		Environment:        types.EnvironmentSandbox,
	}
	require.NoError(t, s.SetEntitlement(ctx, rec))

	got, err := s.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, got.IsPremium)
	require.Equal(t, "tx-1", got.StoreTransactionID)
	require.True(t, exp.Equal(*got.ExpiryDate))

	change := <-ch
	require.True(t, change.IsPremium)
	require.Equal(t, "tx-1", change.Record.StoreTransactionID)
}

func TestDeactivate_KeepsTransactionIDs(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()

	require.NoError(t, s.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:             true,
		SubscriptionType:      types.SubscriptionTypeYearly,
		StoreTransactionID:    "tx-2",
		OriginalTransactionID: "tx-1",
	}))
	require.NoError(t, s.Deactivate(ctx, "expired"))

	got, err := s.GetEntitlement(ctx)
	require.NoError(t, err)
	require.False(t, got.IsPremium)
	require.Equal(t, types.SubscriptionTypeNone, got.SubscriptionType)
	require.Equal(t, "tx-2", got.StoreTransactionID)
	require.Equal(t, "tx-1", got.OriginalTransactionID)
}

func TestSimulateEntitlement_RejectedInProd(t *testing.T) {
	s := newTestService(config.EnvProd)
	err := s.SimulateEntitlement(context.Background(), &types.EntitlementRecord{IsPremium: true})
	require.ErrorIs(t, err, ErrSimulationDisabled)
}

func TestSimulateEntitlement_MarksSimulationEnvironment(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()
	require.NoError(t, s.SimulateEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypePromo,
	}))

	got, err := s.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, got.IsPremium)
	require.Equal(t, types.EnvironmentSimulation, got.Environment)
	require.NotNil(t, got.LastValidated)
}

func TestUsageLimits_FreeTierCaps(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := s.CheckUsageLimit(ctx, types.UsageKindSession)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, s.RecordUsage(ctx, types.UsageKindSession))
	}

	ok, err := s.CheckUsageLimit(ctx, types.UsageKindSession)
	require.NoError(t, err)
	require.False(t, ok)

	// Journal entries count separately.
	ok, err = s.CheckUsageLimit(ctx, types.UsageKindJournalEntry)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUsageLimits_PremiumBypassesCaps(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordUsage(ctx, types.UsageKindSession))
	}
	require.NoError(t, s.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeMonthly,
	}))

	ok, err := s.CheckUsageLimit(ctx, types.UsageKindSession)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUsageLimits_UnknownKindRejected(t *testing.T) {
	s := newTestService(config.EnvDev)
	_, err := s.CheckUsageLimit(context.Background(), types.UsageKind("spread"))
	require.Error(t, err)
	require.Error(t, s.RecordUsage(context.Background(), types.UsageKind("spread")))
}

func TestLatestReceipt_RoundTrip(t *testing.T) {
	s := newTestService(config.EnvDev)
	ctx := context.Background()

	got, err := s.GetLatestReceipt(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.SaveLatestReceipt(ctx, "receipt-blob", "tx-9"))
	got, err = s.GetLatestReceipt(ctx)
	require.NoError(t, err)
	require.Equal(t, "receipt-blob", got.Payload)
	require.Equal(t, "tx-9", got.TransactionID)
}
