// Package scheduler is the renewal safety net: a periodic pass that
// re-validates the stored receipt, restores missed renewals near and
// past expiry, and applies the one-shot grace window before revoking.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/orchestrator"
	"github.com/tarotware/paywall/internal/app/service/validator"
	"github.com/tarotware/paywall/pkg/config"
)

type Scheduler struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	orch *orchestrator.Orchestrator
	val  *validator.Service
	ents *entitlement.Service

	stop chan struct{}
	done chan struct{}
}

func New(cfg *config.Config, log *zap.SugaredLogger, orch *orchestrator.Orchestrator, val *validator.Service, ents *entitlement.Service) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		log:  log,
		orch: orch,
		val:  val,
		ents: ents,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the periodic loop. One pass runs immediately so a
// process that was down past a renewal catches up without waiting a full
// interval.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)
		s.runOnce()
		ticker := time.NewTicker(s.cfg.Scheduler.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := s.CheckNow(ctx); err != nil {
		s.log.Warnw("scheduled entitlement check failed", "err", err)
	}
}

// CheckNow runs one full entitlement check. The foreground trigger calls
// this directly; the ticker calls it on its interval. The pass is
// idempotent, so overlapping triggers only cost duplicate validations.
func (s *Scheduler) CheckNow(ctx context.Context) error {
	// Re-validate first so the expiry decision below sees the freshest
	// window the stores will report. Validation failures (network) are
	// logged and absorbed; stale state is better than wrongly revoking.
	if err := s.val.PeriodicValidation(ctx); err != nil {
		s.log.Warnw("periodic validation failed, using stored state", "err", err)
	}

	rec, err := s.ents.GetEntitlement(ctx)
	if err != nil {
		return err
	}
	if !rec.IsPremium || rec.ExpiryDate == nil {
		return nil
	}

	now := time.Now()
	untilExpiry := rec.ExpiryDate.Sub(now)

	switch {
	case untilExpiry <= 0:
		return s.handleExpired(ctx, now)
	case untilExpiry <= time.Duration(s.cfg.Scheduler.RenewalWindowDays)*24*time.Hour:
		s.log.Infow("subscription inside renewal window", "expiry", rec.ExpiryDate, "until_expiry", untilExpiry)
		return s.checkRenewal(ctx, rec.StoreTransactionID)
	default:
		return nil
	}
}

// handleExpired runs when the stored expiry has passed and validation did
// not move it. Order: try restoring a renewal the event stream missed,
// then grant the one-shot grace window, then revoke.
func (s *Scheduler) handleExpired(ctx context.Context, now time.Time) error {
	restored, err := s.orch.RestorePurchases(ctx)
	if err != nil {
		s.log.Warnw("restore during expiry handling failed", "err", err)
	}
	if restored {
		rec, err := s.ents.GetEntitlement(ctx)
		if err != nil {
			return err
		}
		if rec.ActiveAt(now) {
			s.log.Infow("expired subscription recovered via restore", "expiry", rec.ExpiryDate)
			return nil
		}
	}

	rec, err := s.ents.GetEntitlement(ctx)
	if err != nil {
		return err
	}

	if rec.GracePeriodUntil == nil {
		// Renewal failures get one grace window per expiry; a successful
		// sync clears the marker along with moving the expiry.
		until := rec.ExpiryDate.AddDate(0, 0, s.cfg.Scheduler.GraceDays)
		if now.After(until) {
			// The expiry is so far past that the window it would grant is
			// already over. Revoke in this pass instead of writing a
			// marker that keeps a dead subscription premium until the
			// next one.
			s.log.Infow("expiry beyond any grace window, revoking entitlement", "expiry", rec.ExpiryDate)
			return s.ents.Deactivate(ctx, "subscription expired and grace period elapsed")
		}
		rec.GracePeriodUntil = &until
		s.log.Infow("granting renewal grace period", "until", until)
		return s.ents.SetEntitlement(ctx, rec)
	}

	if now.After(*rec.GracePeriodUntil) {
		s.log.Infow("grace period exhausted, revoking entitlement", "grace_until", rec.GracePeriodUntil)
		return s.ents.Deactivate(ctx, "subscription expired and grace period elapsed")
	}
	return nil
}

// checkRenewal asks the store for completed purchases inside the
// pre-expiry window. A known-product transaction with an id the record
// has not seen yet is a renewal the event stream missed; it runs the
// same finish/validate/sync pipeline as a live purchase, which replaces
// the stored transaction id and moves the expiry.
func (s *Scheduler) checkRenewal(ctx context.Context, previousTransactionID string) error {
	purchases, err := s.orch.Session().GetAvailablePurchases(ctx)
	if err != nil {
		return fmt.Errorf("failed to check store for a renewal: %w", err)
	}
	for _, p := range purchases {
		if s.cfg.GetPaymentItemByProductID(p.ProductID) == nil {
			continue
		}
		if p.TransactionID == "" || p.TransactionID == previousTransactionID {
			continue
		}
		s.log.Infow("renewal transaction found", "transaction_id", p.TransactionID, "previous", previousTransactionID)
		if err := s.orch.ProcessPurchase(ctx, p); err != nil {
			return fmt.Errorf("failed to sync renewal %s: %w", p.TransactionID, err)
		}
	}
	return nil
}
