package types

import "time"

// ValidationResult is the outcome of receipt verification at the trusted
// boundary. It is ephemeral and only used to derive an entitlement update.
type ValidationResult struct {
	IsValid        bool        `json:"is_valid"`
	IsActive       bool        `json:"is_active"`
	ExpirationDate *time.Time  `json:"expiration_date,omitempty"`
	Environment    Environment `json:"environment"`
	Error          string      `json:"error,omitempty"`
}

// ValidateRequest is the single call shape the trusted boundary accepts.
type ValidateRequest struct {
	ReceiptPayload string `json:"receipt_payload"`
	TransactionID  string `json:"transaction_id"`
	// Provider selects the store the receipt came from; defaults to the
	// configured platform's provider when empty.
	Provider PaymentProvider `json:"provider,omitempty"`
}
