package models

import (
	"time"

	"gorm.io/datatypes"
)

// Well-known KV keys. The entitlement record, the latest receipt and the
// usage counters each live under one fixed key.
const (
	KeyEntitlementRecord = "entitlement.record"
	KeyLatestReceipt     = "iap.latest_receipt"
	KeyUsageCounters     = "usage.counters"
)

// KVRecord is one durable JSON document under a fixed key. Writes are
// last-writer-wins; there is no merge logic, so callers read-modify-write
// whole records.
type KVRecord struct {
	Key       string         `gorm:"column:key;type:varchar(128);primary_key" json:"key"`
	Value     datatypes.JSON `gorm:"column:value;type:jsonb;not null;default:'{}'" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (KVRecord) TableName() string {
	return "kv_record"
}
