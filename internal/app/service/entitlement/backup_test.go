package entitlement

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tarotware/paywall/internal/models"
	"github.com/tarotware/paywall/pkg/types"
)

func TestExportAllData_EmptyStoreStillExportsEntitlement(t *testing.T) {
	s := newTestService("dev")
	doc, err := s.ExportAllData(context.Background())
	require.NoError(t, err)
	require.Equal(t, BackupVersion, doc.Version)
	require.Contains(t, doc.Records, models.KeyEntitlementRecord)

	var rec types.EntitlementRecord
	require.NoError(t, json.Unmarshal(doc.Records[models.KeyEntitlementRecord], &rec))
	require.False(t, rec.IsPremium)
}

func TestBackup_ExportImportRoundTrip(t *testing.T) {
	src := newTestService("dev")
	ctx := context.Background()

	exp := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, src.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:          true,
		SubscriptionType:   types.SubscriptionTypeYearly,
		ExpiryDate:         &exp,
		StoreTransactionID: "tx-1",
	}))
	require.NoError(t, src.SaveLatestReceipt(ctx, "blob", "tx-1"))
	require.NoError(t, src.RecordUsage(ctx, types.UsageKindJournalEntry))

	doc, err := src.ExportAllData(ctx)
	require.NoError(t, err)

	dst := newTestService("dev")
	require.NoError(t, dst.ImportAllData(ctx, doc))

	rec, err := dst.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
	require.Equal(t, "tx-1", rec.StoreTransactionID)

	receipt, err := dst.GetLatestReceipt(ctx)
	require.NoError(t, err)
	require.Equal(t, "blob", receipt.Payload)

	exported, err := dst.ExportAllData(ctx)
	require.NoError(t, err)
	require.Equal(t, doc.Records, exported.Records)
}

func TestImportAllData_RejectsWrongVersion(t *testing.T) {
	s := newTestService("dev")
	doc := &BackupDocument{
		Version: "2",
		Records: map[string]json.RawMessage{models.KeyEntitlementRecord: []byte(`{}`)},
	}
	err := s.ImportAllData(context.Background(), doc)
	require.ErrorIs(t, err, ErrBackupVersion)
}

func TestImportAllData_RejectsMissingEntitlement(t *testing.T) {
	s := newTestService("dev")
	doc := &BackupDocument{
		Version: BackupVersion,
		Records: map[string]json.RawMessage{models.KeyUsageCounters: []byte(`{}`)},
	}
	err := s.ImportAllData(context.Background(), doc)
	require.ErrorIs(t, err, ErrBackupShape)
}

func TestImportAllData_DoesNotPartiallyApplyInvalidDocument(t *testing.T) {
	s := newTestService("dev")
	ctx := context.Background()
	require.NoError(t, s.SetEntitlement(ctx, &types.EntitlementRecord{
		IsPremium:        true,
		SubscriptionType: types.SubscriptionTypeMonthly,
	}))

	bad := &BackupDocument{
		Version: BackupVersion,
		Records: map[string]json.RawMessage{models.KeyEntitlementRecord: []byte(`not json`)},
	}
	require.Error(t, s.ImportAllData(ctx, bad))

	rec, err := s.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
}
