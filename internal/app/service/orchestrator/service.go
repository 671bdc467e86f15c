package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/validator"
	"github.com/tarotware/paywall/internal/platform/store"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/metrics"
	"github.com/tarotware/paywall/pkg/retry"
	"github.com/tarotware/paywall/pkg/types"
)

type outcome struct {
	err error
}

// attempt is the pending-result handle for one in-flight purchase. The
// store event listeners resolve attempts by product id; this map is the
// correlation table over the one-way event stream.
type attempt struct {
	productID string
	startedAt time.Time
	done      chan outcome
}

// Orchestrator drives a purchase end to end: request, asynchronous store
// event, finish, propagation delay, validation, entitlement sync. It
// keeps at most one outstanding attempt per product id.
type Orchestrator struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	session   store.Session
	validator *validator.Service
	ents      *entitlement.Service

	mu          sync.Mutex
	attempts    map[string]*attempt
	initialized bool
	disposed    bool
	unsubs      []func()
}

func New(cfg *config.Config, log *zap.SugaredLogger, session store.Session, val *validator.Service, ents *entitlement.Service) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		session:   session,
		validator: val,
		ents:      ents,
		attempts:  map[string]*attempt{},
	}
}

// Initialize connects to the platform store transaction queue. It is
// idempotent: once connected, repeated calls are no-ops. Connection
// failures are retried with a fixed delay and then absorbed — callers
// treat a returned error as "purchasing unavailable", not as fatal.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return ErrDisposed
	}
	if o.initialized {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	policy := retry.Policy{Attempts: o.cfg.IAP.InitRetry.Attempts, Delay: o.cfg.IAP.InitRetry.Delay}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return o.session.InitConnection(ctx)
	})
	if err != nil {
		o.log.Warnw("store connection failed, purchasing disabled", "err", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		// Dispose ran while the connection was coming up and could not
		// see it; close it here so it does not leak.
		if endErr := o.session.EndConnection(ctx); endErr != nil {
			o.log.Warnw("failed to end store connection opened during dispose", "err", endErr)
		}
		return ErrDisposed
	}
	if o.initialized {
		return nil
	}
	unsubUpdated := o.session.OnPurchaseUpdated(func(p store.Purchase) {
		go o.handlePurchaseUpdated(p)
	})
	unsubErr := o.session.OnPurchaseError(func(e store.PurchaseError) {
		go o.handlePurchaseError(e)
	})
	o.unsubs = append(o.unsubs, unsubUpdated, unsubErr)
	o.initialized = true
	o.log.Infow("store connection established")
	return nil
}

// LoadProducts fetches the current product descriptors for the given
// subscription ids. An empty store result is treated as transient and
// retried; on exhaustion the empty slice is returned so the caller
// degrades instead of failing.
func (o *Orchestrator) LoadProducts(ctx context.Context, ids []string) ([]*types.ProductDescriptor, error) {
	if !o.ready() {
		return nil, ErrStoreUnavailable
	}

	policy := retry.Policy{Attempts: o.cfg.IAP.ProductRetry.Attempts, Delay: o.cfg.IAP.ProductRetry.Delay}
	products, err := retry.DoValue(ctx, policy, []*types.ProductDescriptor{}, func(ctx context.Context) ([]*types.ProductDescriptor, bool, error) {
		got, err := o.session.GetProducts(ctx, store.ProductQuery{SKUs: ids, Type: "subs"})
		if err != nil {
			o.log.Warnw("failed to load products", "err", err)
			return nil, false, err
		}
		if len(got) == 0 {
			o.log.Warnw("store returned no products, retrying", "skus", ids)
			return nil, false, nil
		}
		return got, true, nil
	})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		o.log.Warnw("no products after retries, degrading", "skus", ids)
	}
	return products, nil
}

// Purchase runs one purchase attempt for the product and blocks until
// the store event completes the pipeline, the attempt times out, or the
// store reports an error. A second call for the same product while one
// is pending is rejected immediately without contacting the store.
func (o *Orchestrator) Purchase(ctx context.Context, productID string) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return ErrDisposed
	}
	if !o.initialized {
		o.mu.Unlock()
		return ErrStoreUnavailable
	}
	if _, exists := o.attempts[productID]; exists {
		o.mu.Unlock()
		return ErrPurchaseInProgress
	}
	att := &attempt{productID: productID, startedAt: time.Now(), done: make(chan outcome, 1)}
	o.attempts[productID] = att
	o.mu.Unlock()

	err := o.requestPurchase(ctx, productID)
	if err != nil {
		o.clearAttempt(productID)
		metrics.ObservePurchaseFlow("purchase", "request_failed", att.startedAt)
		return err
	}

	timeout := o.cfg.IAP.PurchaseTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-att.done:
		if out.err != nil {
			metrics.ObservePurchaseFlow("purchase", "failed", att.startedAt)
			return out.err
		}
		metrics.ObservePurchaseFlow("purchase", "ok", att.startedAt)
		return nil
	case <-timer.C:
		o.clearAttempt(productID)
		metrics.ObservePurchaseFlow("purchase", "timeout", att.startedAt)
		return fmt.Errorf("%w after %s: %s", ErrPurchaseTimeout, timeout, productID)
	case <-ctx.Done():
		o.clearAttempt(productID)
		return ctx.Err()
	}
}

// requestPurchase re-fetches the product (descriptors are never trusted
// from persistence) and issues the platform-shaped request.
func (o *Orchestrator) requestPurchase(ctx context.Context, productID string) error {
	products, err := o.session.GetProducts(ctx, store.ProductQuery{SKUs: []string{productID}, Type: "subs"})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	product, found := lo.Find(products, func(p *types.ProductDescriptor) bool {
		return p != nil && p.ProductID == productID
	})
	if !found {
		return fmt.Errorf("%w: %s", ErrItemUnavailable, productID)
	}

	req, err := store.NewPurchaseRequest(o.cfg.Platform, product)
	if err != nil {
		return err
	}
	if err := o.session.RequestPurchase(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}
	return nil
}

// handlePurchaseUpdated runs the completion pipeline for a store-reported
// transaction and resolves the pending attempt, if any. Transactions with
// no pending attempt (renewals the platform delivers on its own) run the
// same pipeline; there is just nothing to resolve.
func (o *Orchestrator) handlePurchaseUpdated(p store.Purchase) {
	ctx := context.Background()
	err := o.processPurchase(ctx, p)
	if err != nil {
		o.log.Errorw("purchase pipeline failed", "product_id", p.ProductID, "transaction_id", p.TransactionID, "err", err)
	}
	o.resolve(p.ProductID, err)
}

func (o *Orchestrator) handlePurchaseError(e store.PurchaseError) {
	err := mapStoreError(e)
	if errors.Is(err, ErrUserCancelled) {
		// Cancellation is a user decision, not an application error.
		o.log.Infow("purchase cancelled by user", "product_id", e.ProductID)
	} else {
		o.log.Warnw("store reported purchase error", "product_id", e.ProductID, "code", e.Code, "message", e.Message)
	}
	o.resolve(e.ProductID, err)
}

// processPurchase is the strictly ordered completion chain:
// finish → propagation delay → validate → sync. Finishing must precede
// validation (platform requirement) and validation must wait out the
// propagation delay (sandbox receipts lag the event). On any failure the
// entitlement record is left untouched.
func (o *Orchestrator) processPurchase(ctx context.Context, p store.Purchase) error {
	if err := o.session.FinishTransaction(ctx, p); err != nil {
		return fmt.Errorf("failed to finish transaction %s: %w", p.TransactionID, err)
	}

	if err := o.propagationWait(ctx); err != nil {
		return err
	}

	result, err := o.validator.ValidateReceipt(ctx, p.TransactionReceipt, p.TransactionID)
	if err != nil {
		return err
	}
	if !result.IsValid || !result.IsActive {
		return fmt.Errorf("%w: transaction %s", ErrReceiptInvalid, p.TransactionID)
	}

	ref := validator.TransactionRef{
		TransactionID:         p.TransactionID,
		OriginalTransactionID: p.OriginalTransactionID,
	}
	if !p.PurchasedAt.IsZero() {
		ref.PurchasedAt = lo.ToPtr(p.PurchasedAt)
	}
	if err := o.validator.SyncSubscriptionStatus(ctx, result, p.ProductID, ref); err != nil {
		return err
	}

	if err := o.ents.SaveLatestReceipt(ctx, p.TransactionReceipt, p.TransactionID); err != nil {
		// The entitlement is already granted; a failed receipt save only
		// degrades periodic re-validation.
		o.log.Warnw("failed to save latest receipt", "transaction_id", p.TransactionID, "err", err)
	}
	return nil
}

// RestorePurchases replays every known previously-completed purchase
// through the completion pipeline. An empty result set is retried, then
// treated as "nothing to restore". Returns true when at least one
// purchase was restored.
func (o *Orchestrator) RestorePurchases(ctx context.Context) (bool, error) {
	if !o.ready() {
		return false, ErrStoreUnavailable
	}
	started := time.Now()

	policy := retry.Policy{Attempts: o.cfg.IAP.RestoreRetry.Attempts, Delay: o.cfg.IAP.RestoreRetry.Delay}
	purchases, err := retry.DoValue(ctx, policy, []store.Purchase{}, func(ctx context.Context) ([]store.Purchase, bool, error) {
		got, err := o.session.GetAvailablePurchases(ctx)
		if err != nil {
			o.log.Warnw("failed to get available purchases", "err", err)
			return nil, false, err
		}
		if len(got) == 0 {
			return nil, false, nil
		}
		return got, true, nil
	})
	if err != nil {
		metrics.ObservePurchaseFlow("restore", "failed", started)
		return false, err
	}

	restored := 0
	for _, p := range purchases {
		if o.cfg.GetPaymentItemByProductID(p.ProductID) == nil {
			continue
		}
		if err := o.processPurchase(ctx, p); err != nil {
			o.log.Warnw("failed to restore purchase", "product_id", p.ProductID, "transaction_id", p.TransactionID, "err", err)
			continue
		}
		restored++
	}

	if restored > 0 {
		metrics.ObservePurchaseFlow("restore", "ok", started)
	} else {
		metrics.ObservePurchaseFlow("restore", "empty", started)
	}
	o.log.Infow("restore purchases finished", "found", len(purchases), "restored", restored)
	return restored > 0, nil
}

// Session exposes the underlying store session to the scheduler, which
// shares the one connection rather than opening its own.
func (o *Orchestrator) Session() store.Session {
	return o.session
}

// ProcessPurchase lets the scheduler replay a renewal transaction through
// the same pipeline as a live purchase.
func (o *Orchestrator) ProcessPurchase(ctx context.Context, p store.Purchase) error {
	return o.processPurchase(ctx, p)
}

// Dispose rejects all pending attempts, detaches the store listeners and
// closes the connection. Safe to call with operations in flight; later
// calls are no-ops.
func (o *Orchestrator) Dispose(ctx context.Context) error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return nil
	}
	o.disposed = true
	pending := make([]*attempt, 0, len(o.attempts))
	for _, att := range o.attempts {
		pending = append(pending, att)
	}
	o.attempts = map[string]*attempt{}
	unsubs := o.unsubs
	o.unsubs = nil
	wasInitialized := o.initialized
	o.initialized = false
	o.mu.Unlock()

	for _, att := range pending {
		att.done <- outcome{err: ErrDisposed}
	}
	for _, unsub := range unsubs {
		unsub()
	}
	if wasInitialized {
		if err := o.session.EndConnection(ctx); err != nil {
			return fmt.Errorf("failed to end store connection: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) ready() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.initialized && !o.disposed
}

func (o *Orchestrator) clearAttempt(productID string) {
	o.mu.Lock()
	delete(o.attempts, productID)
	o.mu.Unlock()
}

// resolve completes the pending attempt for a product, if one is still
// registered. Buffered channels make this safe against an attempt that
// timed out concurrently.
func (o *Orchestrator) resolve(productID string, err error) {
	o.mu.Lock()
	att := o.attempts[productID]
	delete(o.attempts, productID)
	o.mu.Unlock()
	if att != nil {
		att.done <- outcome{err: err}
	}
}

func (o *Orchestrator) propagationWait(ctx context.Context) error {
	delay := o.cfg.IAP.PropagationDelay
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
