package appleiap

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tarotware/paywall/pkg/types"
)

func ms(t time.Time) string {
	return fmt.Sprintf("%d", t.UnixMilli())
}

func TestToValidationResult_RejectedStatus(t *testing.T) {
	r := &Receipt{Status: 21007, Environment: "Production"}
	res := r.ToValidationResult("tx-1", time.Now())
	require.False(t, res.IsValid)
	require.False(t, res.IsActive)
	require.Contains(t, res.Error, "21007")
}

func TestToValidationResult_ActiveSubscription(t *testing.T) {
	now := time.Now()
	exp := now.Add(10 * 24 * time.Hour)
	r := &Receipt{
		Status:      0,
		Environment: "Sandbox",
		LatestReceiptInfo: []*ReceiptInfo{
			{TransactionID: "tx-1", ExpiresDateMs: ms(exp)},
		},
	}
	res := r.ToValidationResult("tx-1", now)
	require.True(t, res.IsValid)
	require.True(t, res.IsActive)
	require.Equal(t, types.EnvironmentSandbox, res.Environment)
	require.WithinDuration(t, exp, *res.ExpirationDate, time.Second)
}

func TestToValidationResult_ExpiredIsValidButInactive(t *testing.T) {
	now := time.Now()
	exp := now.Add(-time.Hour)
	r := &Receipt{
		Status:      0,
		Environment: "Production",
		LatestReceiptInfo: []*ReceiptInfo{
			{TransactionID: "tx-1", ExpiresDateMs: ms(exp)},
		},
	}
	res := r.ToValidationResult("tx-1", now)
	require.True(t, res.IsValid)
	require.False(t, res.IsActive)
	require.Equal(t, types.EnvironmentProduction, res.Environment)
}

func TestToValidationResult_CancelledLineItemsIgnored(t *testing.T) {
	now := time.Now()
	r := &Receipt{
		Status: 0,
		LatestReceiptInfo: []*ReceiptInfo{
			{TransactionID: "tx-1", ExpiresDateMs: ms(now.Add(24 * time.Hour)), CancellationDateMs: ms(now.Add(-time.Hour))},
		},
	}
	res := r.ToValidationResult("tx-1", now)
	require.True(t, res.IsValid)
	require.False(t, res.IsActive)
	require.Nil(t, res.ExpirationDate)
}

func TestToValidationResult_RenewalReplacedTransactionID(t *testing.T) {
	now := time.Now()
	exp := now.Add(20 * 24 * time.Hour)
	r := &Receipt{
		Status: 0,
		LatestReceiptInfo: []*ReceiptInfo{
			{TransactionID: "tx-renewal", OriginalTransactionID: "tx-0", ExpiresDateMs: ms(exp)},
		},
	}
	// The caller only knows the pre-renewal transaction id.
	res := r.ToValidationResult("tx-old", now)
	require.True(t, res.IsValid)
	require.True(t, res.IsActive)
	require.WithinDuration(t, exp, *res.ExpirationDate, time.Second)
}

func TestToValidationResult_PicksLatestExpiry(t *testing.T) {
	now := time.Now()
	early := now.Add(24 * time.Hour)
	late := now.Add(48 * time.Hour)
	r := &Receipt{
		Status: 0,
		LatestReceiptInfo: []*ReceiptInfo{
			{TransactionID: "tx-1", ExpiresDateMs: ms(early)},
			{TransactionID: "tx-1", ExpiresDateMs: ms(late)},
		},
	}
	res := r.ToValidationResult("tx-1", now)
	require.WithinDuration(t, late, *res.ExpirationDate, time.Second)
}
