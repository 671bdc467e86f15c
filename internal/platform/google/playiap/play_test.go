package playiap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseReceiptPayload(t *testing.T) {
	p, err := ParseReceiptPayload(`{"packageName":"com.example.tarot","productId":"tarot_timer_monthly","purchaseToken":"tok-1"}`)
	require.NoError(t, err)
	require.Equal(t, "com.example.tarot", p.PackageName)
	require.Equal(t, "tarot_timer_monthly", p.ProductID)
	require.Equal(t, "tok-1", p.PurchaseToken)
}

func TestParseReceiptPayload_MissingToken(t *testing.T) {
	_, err := ParseReceiptPayload(`{"productId":"tarot_timer_monthly"}`)
	require.Error(t, err)
}

func TestParseReceiptPayload_NotJSON(t *testing.T) {
	_, err := ParseReceiptPayload(`base64receiptblob`)
	require.Error(t, err)
}
