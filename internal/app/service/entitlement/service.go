package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/models"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/logctx"
	"github.com/tarotware/paywall/pkg/types"
)

// ErrSimulationDisabled rejects the dev simulation hook outside dev
// builds.
var ErrSimulationDisabled = errors.New("entitlement simulation is disabled outside dev builds")

// Service owns the durable entitlement state: the record itself, the
// latest receipt, the free-tier usage counters and the backup
// export/import surface. Subscription fields are only written through
// here, and every successful write is broadcast to subscribers.
type Service struct {
	cfg      *config.Config
	kv       KV
	log      *zap.SugaredLogger
	notifier *Notifier
}

func NewService(cfg *config.Config, kv KV, log *zap.SugaredLogger, notifier *Notifier) *Service {
	return &Service{cfg: cfg, kv: kv, log: log, notifier: notifier}
}

func (s *Service) Notifier() *Notifier {
	return s.notifier
}

// GetEntitlement returns the stored record, or the first-run default when
// none was ever written.
func (s *Service) GetEntitlement(ctx context.Context) (*types.EntitlementRecord, error) {
	raw, err := s.kv.Get(ctx, models.KeyEntitlementRecord)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return types.DefaultEntitlement(), nil
		}
		return nil, fmt.Errorf("failed to load entitlement record: %w", err)
	}
	var rec types.EntitlementRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entitlement record: %w", err)
	}
	return &rec, nil
}

// SetEntitlement overwrites the record and broadcasts the change. Callers
// read-modify-write whole records; there is no field merging.
func (s *Service) SetEntitlement(ctx context.Context, rec *types.EntitlementRecord) error {
	if rec == nil {
		return fmt.Errorf("nil entitlement record")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode entitlement record: %w", err)
	}
	if err := s.kv.Set(ctx, models.KeyEntitlementRecord, raw); err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("entitlement updated",
		"is_premium", rec.IsPremium,
		"subscription_type", rec.SubscriptionType,
		"transaction_id", rec.StoreTransactionID,
	)
	s.notifier.Publish(rec)
	return nil
}

// Deactivate marks the record non-premium, keeping transaction ids for
// audit, and broadcasts the change.
func (s *Service) Deactivate(ctx context.Context, reason string) error {
	rec, err := s.GetEntitlement(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	rec.IsPremium = false
	rec.SubscriptionType = types.SubscriptionTypeNone
	rec.GracePeriodUntil = nil
	rec.LastValidated = &now
	logctx.FromCtx(ctx, s.log).Infow("entitlement deactivated", "reason", reason)
	return s.SetEntitlement(ctx, rec)
}

// SimulateEntitlement force-sets entitlement state without any store
// interaction. Dev builds only.
func (s *Service) SimulateEntitlement(ctx context.Context, rec *types.EntitlementRecord) error {
	if !s.cfg.IsDev() {
		return ErrSimulationDisabled
	}
	if rec == nil {
		return fmt.Errorf("nil entitlement record")
	}
	now := time.Now()
	rec.Environment = types.EnvironmentSimulation
	rec.LastValidated = &now
	return s.SetEntitlement(ctx, rec)
}

// StoredReceipt is the last receipt payload accepted by validation; the
// scheduler re-validates it periodically.
type StoredReceipt struct {
	Payload       string    `json:"payload"`
	TransactionID string    `json:"transaction_id"`
	SavedAt       time.Time `json:"saved_at"`
}

func (s *Service) SaveLatestReceipt(ctx context.Context, payload, transactionID string) error {
	raw, err := json.Marshal(&StoredReceipt{Payload: payload, TransactionID: transactionID, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	return s.kv.Set(ctx, models.KeyLatestReceipt, raw)
}

func (s *Service) GetLatestReceipt(ctx context.Context) (*StoredReceipt, error) {
	raw, err := s.kv.Get(ctx, models.KeyLatestReceipt)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	var r StoredReceipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode receipt: %w", err)
	}
	return &r, nil
}

type usageCounters struct {
	Sessions       int `json:"sessions"`
	JournalEntries int `json:"journal_entries"`
}

func (s *Service) getUsage(ctx context.Context) (*usageCounters, error) {
	raw, err := s.kv.Get(ctx, models.KeyUsageCounters)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return &usageCounters{}, nil
		}
		return nil, fmt.Errorf("failed to load usage counters: %w", err)
	}
	var u usageCounters
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode usage counters: %w", err)
	}
	return &u, nil
}

// CheckUsageLimit reports whether a new resource of the kind may be
// created. Premium with unlimited storage is never restricted.
func (s *Service) CheckUsageLimit(ctx context.Context, kind types.UsageKind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("unknown usage kind: %s", kind)
	}
	rec, err := s.GetEntitlement(ctx)
	if err != nil {
		return false, err
	}
	if rec.IsPremium && rec.Capabilities().UnlimitedStorage {
		return true, nil
	}
	usage, err := s.getUsage(ctx)
	if err != nil {
		return false, err
	}
	switch kind {
	case types.UsageKindSession:
		return usage.Sessions < s.cfg.UsageLimits.Sessions, nil
	default:
		return usage.JournalEntries < s.cfg.UsageLimits.JournalEntries, nil
	}
}

// RecordUsage bumps the counter for a created resource.
func (s *Service) RecordUsage(ctx context.Context, kind types.UsageKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown usage kind: %s", kind)
	}
	usage, err := s.getUsage(ctx)
	if err != nil {
		return err
	}
	switch kind {
	case types.UsageKindSession:
		usage.Sessions++
	default:
		usage.JournalEntries++
	}
	raw, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("failed to encode usage counters: %w", err)
	}
	return s.kv.Set(ctx, models.KeyUsageCounters, raw)
}
