package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tarotware/paywall/internal/models"
	"github.com/tarotware/paywall/pkg/logctx"
	"github.com/tarotware/paywall/pkg/types"
)

// BackupVersion is the only document version importable by this build.
const BackupVersion = "1"

var (
	ErrBackupVersion = errors.New("unsupported backup version")
	ErrBackupShape   = errors.New("backup document missing required records")
)

// BackupDocument is the full local dataset as one portable JSON document.
type BackupDocument struct {
	Version    string                     `json:"version"`
	ExportedAt time.Time                  `json:"exported_at"`
	Records    map[string]json.RawMessage `json:"records"`
}

// ExportAllData snapshots every stored record.
func (s *Service) ExportAllData(ctx context.Context) (*BackupDocument, error) {
	records, err := s.kv.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export records: %w", err)
	}
	// An untouched store still exports a well-formed entitlement record.
	if _, ok := records[models.KeyEntitlementRecord]; !ok {
		raw, err := json.Marshal(types.DefaultEntitlement())
		if err != nil {
			return nil, fmt.Errorf("failed to encode default entitlement: %w", err)
		}
		records[models.KeyEntitlementRecord] = raw
	}
	return &BackupDocument{
		Version:    BackupVersion,
		ExportedAt: time.Now(),
		Records:    records,
	}, nil
}

// ImportAllData validates the document and destructively replaces the
// local dataset. Nothing is overwritten until validation passes.
func (s *Service) ImportAllData(ctx context.Context, doc *BackupDocument) error {
	if doc == nil {
		return fmt.Errorf("nil backup document")
	}
	if doc.Version != BackupVersion {
		return fmt.Errorf("%w: %q", ErrBackupVersion, doc.Version)
	}
	if len(doc.Records) == 0 {
		return ErrBackupShape
	}
	raw, ok := doc.Records[models.KeyEntitlementRecord]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackupShape, models.KeyEntitlementRecord)
	}
	var rec types.EntitlementRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("backup entitlement record is not decodable: %w", err)
	}

	if err := s.kv.Replace(ctx, doc.Records); err != nil {
		return fmt.Errorf("failed to import records: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("imported backup", "records", len(doc.Records), "exported_at", doc.ExportedAt)
	s.notifier.Publish(&rec)
	return nil
}
