package types

import "time"

type SubscriptionType string

const (
	SubscriptionTypeMonthly SubscriptionType = "monthly"
	SubscriptionTypeYearly  SubscriptionType = "yearly"
	SubscriptionTypePromo   SubscriptionType = "promo"
	SubscriptionTypeNone    SubscriptionType = "none"
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
	EnvironmentUnknown    Environment = "unknown"
	EnvironmentSimulation Environment = "simulation"
)

// EntitlementRecord is the durable premium state of the user. It is the
// single source of truth for "is the user entitled right now" and is only
// written by the purchase orchestrator, the scheduler and the dev
// simulation hook.
type EntitlementRecord struct {
	IsPremium             bool             `json:"is_premium"`
	SubscriptionType      SubscriptionType `json:"subscription_type"`
	PurchaseDate          *time.Time       `json:"purchase_date,omitempty"`
	ExpiryDate            *time.Time       `json:"expiry_date,omitempty"`
	StoreTransactionID    string           `json:"store_transaction_id,omitempty"`
	OriginalTransactionID string           `json:"original_transaction_id,omitempty"`
	LastValidated         *time.Time       `json:"last_validated,omitempty"`
	Environment           Environment      `json:"environment"`
	// GracePeriodUntil is set when a renewal failure granted a grace
	// extension; a record with IsPremium=true and ExpiryDate in the past
	// is only consistent while GracePeriodUntil is in the future.
	GracePeriodUntil *time.Time `json:"grace_period_until,omitempty"`
}

// DefaultEntitlement is the record written on first run.
func DefaultEntitlement() *EntitlementRecord {
	return &EntitlementRecord{
		IsPremium:        false,
		SubscriptionType: SubscriptionTypeNone,
		Environment:      EnvironmentUnknown,
	}
}

// Capabilities are the feature flags derived from the entitlement record.
type Capabilities struct {
	UnlimitedStorage bool `json:"unlimited_storage"`
	AdFree           bool `json:"ad_free"`
	PremiumSpreads   bool `json:"premium_spreads"`
}

func (r *EntitlementRecord) Capabilities() Capabilities {
	if r == nil || !r.IsPremium {
		return Capabilities{}
	}
	return Capabilities{UnlimitedStorage: true, AdFree: true, PremiumSpreads: true}
}

// InGracePeriod reports whether the record is currently covered by a
// grace extension.
func (r *EntitlementRecord) InGracePeriod(now time.Time) bool {
	return r != nil && r.GracePeriodUntil != nil && r.GracePeriodUntil.After(now)
}

// ActiveAt reports whether the record grants premium access at the given
// time, grace period included.
func (r *EntitlementRecord) ActiveAt(now time.Time) bool {
	if r == nil || !r.IsPremium {
		return false
	}
	if r.ExpiryDate != nil && r.ExpiryDate.After(now) {
		return true
	}
	return r.InGracePeriod(now)
}

// UsageKind names a free-tier limited resource.
type UsageKind string

const (
	UsageKindSession      UsageKind = "session"
	UsageKindJournalEntry UsageKind = "journal_entry"
)

func (k UsageKind) Valid() bool {
	return k == UsageKindSession || k == UsageKindJournalEntry
}

// EntitlementChange is broadcast to subscribers on every successful sync,
// restore, deactivation or simulated status change.
type EntitlementChange struct {
	IsPremium bool               `json:"is_premium"`
	Record    *EntitlementRecord `json:"record"`
	ChangedAt time.Time          `json:"changed_at"`
}
