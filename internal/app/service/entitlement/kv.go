package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tarotware/paywall/internal/models"
)

// ErrKeyNotFound is returned by KV.Get for keys that were never written.
var ErrKeyNotFound = errors.New("key not found")

// KV is the durable document store under the entitlement service. Writes
// are last-writer-wins whole-document replacements.
type KV interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	All(ctx context.Context) (map[string]json.RawMessage, error)
	// Replace destructively swaps the entire dataset; used by import.
	Replace(ctx context.Context, records map[string]json.RawMessage) error
}

type gormKV struct {
	db *gorm.DB
}

func NewGormKV(db *gorm.DB) KV {
	return &gormKV{db: db}
}

func (s *gormKV) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var rec models.KVRecord
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}
	return json.RawMessage(rec.Value), nil
}

func (s *gormKV) Set(ctx context.Context, key string, value json.RawMessage) error {
	rec := models.KVRecord{Key: key, Value: datatypes.JSON(value)}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	return nil
}

func (s *gormKV) All(ctx context.Context) (map[string]json.RawMessage, error) {
	var rows []models.KVRecord
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	out := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		out[row.Key] = json.RawMessage(row.Value)
	}
	return out, nil
}

func (s *gormKV) Replace(ctx context.Context, records map[string]json.RawMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.KVRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}
		for key, value := range records {
			rec := models.KVRecord{Key: key, Value: datatypes.JSON(value)}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("failed to import record %s: %w", key, err)
			}
		}
		return nil
	})
}

// MemoryKV is the in-memory KV used by tests and by tooling that runs
// without postgres.
type MemoryKV struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{records: map[string]json.RawMessage{}}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make(json.RawMessage, len(value))
	copy(v, value)
	m.records[key] = v
	return nil
}

func (m *MemoryKV) All(ctx context.Context) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.records))
	for k, v := range m.records {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (m *MemoryKV) Replace(ctx context.Context, records map[string]json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]json.RawMessage{}
	for k, v := range records {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		m.records[k] = cp
	}
	return nil
}
