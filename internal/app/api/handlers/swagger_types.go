package handlers

import (
	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/pkg/response"
	"github.com/tarotware/paywall/pkg/types"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespEntitlement wraps the entitlement record in the standard envelope.
type RespEntitlement struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    types.EntitlementRecord  `json:"data"`
}

// RespProducts wraps the product list in the standard envelope.
type RespProducts struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    []*types.ProductDescriptor `json:"data"`
}

// RespRestore wraps the restore outcome in the standard envelope.
type RespRestore struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    restoreResponse          `json:"data"`
}

// RespAllowance wraps an allowance check in the standard envelope.
type RespAllowance struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    allowanceResponse        `json:"data"`
}

// RespBackup wraps an exported backup document in the standard envelope.
type RespBackup struct {
	Code    response.APIResponseCode   `json:"code"`
	Message string                     `json:"message"`
	Data    entitlement.BackupDocument `json:"data"`
}
