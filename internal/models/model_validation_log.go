package models

import (
	"time"

	"gorm.io/datatypes"
)

type ValidationLogStatus string

const (
	ValidationLogStatusReceived     ValidationLogStatus = "received"
	ValidationLogStatusHandled      ValidationLogStatus = "handled"
	ValidationLogStatusHandleFailed ValidationLogStatus = "handle_failed"
)

// ValidationLog records every call that crosses the trusted verification
// boundary, with the request payload and the verdict.
type ValidationLog struct {
	ID            string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProviderID    string              `gorm:"column:provider_id;type:varchar(64);not null;index" json:"provider_id"`
	TransactionID string              `gorm:"column:transaction_id;type:varchar(64);index" json:"transaction_id"`
	TraceID       string              `gorm:"column:trace_id;type:varchar(64)" json:"trace_id"`
	ReceivedAt    time.Time           `gorm:"column:received_at;not null" json:"received_at"`
	Data          datatypes.JSON      `gorm:"column:data;type:jsonb;default:'{}'" json:"data"`
	Result        *datatypes.JSON     `gorm:"column:result;type:jsonb;default:null" json:"result"`
	Status        ValidationLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (ValidationLog) TableName() string {
	return "validation_log"
}
