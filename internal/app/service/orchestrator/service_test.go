package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/app/service/entitlement"
	"github.com/tarotware/paywall/internal/app/service/validator"
	"github.com/tarotware/paywall/internal/platform/store"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/types"
)

type fakeBoundary struct {
	mu     sync.Mutex
	result *types.ValidationResult
	err    error
	calls  int
}

func (f *fakeBoundary) Validate(_ context.Context, _ types.ValidateRequest) (*types.ValidationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

// scriptSession drives the edge cases MemorySession cannot: silent
// requests, failing init, scripted restore results.
type scriptSession struct {
	initErr       func(call int) error
	initCalls     int
	endCalls      int
	products      []*types.ProductDescriptor
	restoreFn     func(call int) ([]store.Purchase, error)
	restoreCalls  int
	finished      []store.Purchase
	mu            sync.Mutex
	updatedFns    []func(store.Purchase)
	silentRequest bool
}

func (s *scriptSession) InitConnection(ctx context.Context) error {
	s.initCalls++
	if s.initErr != nil {
		return s.initErr(s.initCalls)
	}
	return nil
}

func (s *scriptSession) EndConnection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCalls++
	return nil
}

func (s *scriptSession) GetProducts(ctx context.Context, q store.ProductQuery) ([]*types.ProductDescriptor, error) {
	out := []*types.ProductDescriptor{}
	for _, p := range s.products {
		for _, sku := range q.SKUs {
			if p.ProductID == sku {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *scriptSession) RequestPurchase(ctx context.Context, req store.PurchaseRequest) error {
	if s.silentRequest {
		return nil
	}
	p := store.Purchase{
		ProductID:          req.ProductID(),
		TransactionID:      "tx-script",
		TransactionReceipt: "opaque-receipt",
		PurchasedAt:        time.Now(),
	}
	s.mu.Lock()
	fns := append([]func(store.Purchase){}, s.updatedFns...)
	s.mu.Unlock()
	go func() {
		for _, fn := range fns {
			fn(p)
		}
	}()
	return nil
}

func (s *scriptSession) OnPurchaseUpdated(fn func(store.Purchase)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedFns = append(s.updatedFns, fn)
	return func() {}
}

func (s *scriptSession) OnPurchaseError(fn func(store.PurchaseError)) func() { return func() {} }

func (s *scriptSession) FinishTransaction(ctx context.Context, p store.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, p)
	return nil
}

func (s *scriptSession) GetAvailablePurchases(ctx context.Context) ([]store.Purchase, error) {
	s.restoreCalls++
	if s.restoreFn != nil {
		return s.restoreFn(s.restoreCalls)
	}
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Platform: types.PlatformIOS,
		PaymentItems: []*types.PaymentItem{
			{ID: "monthly", ProviderItemID: "tarot_timer_monthly", Type: types.SubscriptionTypeMonthly},
			{ID: "yearly", ProviderItemID: "tarot_timer_yearly", Type: types.SubscriptionTypeYearly},
		},
		IAP: config.IAPConfig{
			PurchaseTimeout:  2 * time.Second,
			PropagationDelay: 0,
			InitRetry:        config.RetryConfig{Attempts: 3},
			ProductRetry:     config.RetryConfig{Attempts: 3},
			RestoreRetry:     config.RetryConfig{Attempts: 3},
		},
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, session store.Session, boundary validator.TrustBoundary) (*Orchestrator, *entitlement.Service) {
	t.Helper()
	log := zap.NewNop().Sugar()
	ents := entitlement.NewService(cfg, entitlement.NewMemoryKV(), log, entitlement.NewNotifier())
	val := validator.NewService(cfg, boundary, ents, log)
	return New(cfg, log, session, val, ents), ents
}

func activeResult() *types.ValidationResult {
	exp := time.Now().Add(30 * 24 * time.Hour)
	return &types.ValidationResult{
		IsValid:        true,
		IsActive:       true,
		ExpirationDate: &exp,
		Environment:    types.EnvironmentSandbox,
	}
}

func monthlyProduct() *types.ProductDescriptor {
	return &types.ProductDescriptor{ProductID: "tarot_timer_monthly", Type: types.SubscriptionTypeMonthly}
}

func TestPurchase_FullPipelineGrantsEntitlement(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	o, ents := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	require.NoError(t, o.Purchase(ctx, "tarot_timer_monthly"))

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
	require.Equal(t, types.SubscriptionTypeMonthly, rec.SubscriptionType)
	require.NotEmpty(t, rec.StoreTransactionID)

	receipt, err := ents.GetLatestReceipt(ctx)
	require.NoError(t, err)
	require.Equal(t, rec.StoreTransactionID, receipt.TransactionID)

	owned, err := session.GetAvailablePurchases(ctx)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.True(t, owned[0].Acknowledged)
}

func TestPurchase_InvalidReceiptLeavesEntitlementUntouched(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	boundary := &fakeBoundary{result: &types.ValidationResult{IsValid: false}}
	o, ents := newTestOrchestrator(t, cfg, session, boundary)
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	err := o.Purchase(ctx, "tarot_timer_monthly")
	require.ErrorIs(t, err, ErrReceiptInvalid)

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.False(t, rec.IsPremium)
}

func TestPurchase_SecondConcurrentAttemptRejected(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	session.EventDelay = 200 * time.Millisecond
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))

	firstDone := make(chan error, 1)
	go func() { firstDone <- o.Purchase(ctx, "tarot_timer_monthly") }()

	// The attempt is registered before the store request is issued, so a
	// short wait is enough for the slot to be taken.
	time.Sleep(50 * time.Millisecond)
	require.ErrorIs(t, o.Purchase(ctx, "tarot_timer_monthly"), ErrPurchaseInProgress)

	require.NoError(t, <-firstDone)

	// The slot is free again after completion.
	require.NoError(t, o.Purchase(ctx, "tarot_timer_monthly"))
}

func TestPurchase_TimesOutWhenStoreStaysSilent(t *testing.T) {
	cfg := testConfig()
	cfg.IAP.PurchaseTimeout = 50 * time.Millisecond
	session := &scriptSession{products: []*types.ProductDescriptor{monthlyProduct()}, silentRequest: true}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	err := o.Purchase(ctx, "tarot_timer_monthly")
	require.ErrorIs(t, err, ErrPurchaseTimeout)

	// Timeout must clear the slot so the user can retry.
	err = o.Purchase(ctx, "tarot_timer_monthly")
	require.ErrorIs(t, err, ErrPurchaseTimeout)
}

func TestPurchase_UserCancellationMapped(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	session.FailNext = &store.PurchaseError{Code: store.CodeUserCancelled, Message: "dismissed"}
	o, ents := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	err := o.Purchase(ctx, "tarot_timer_monthly")
	require.ErrorIs(t, err, ErrUserCancelled)

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.False(t, rec.IsPremium)
}

func TestPurchase_UnknownProductRejected(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	err := o.Purchase(ctx, "tarot_timer_lifetime")
	require.ErrorIs(t, err, ErrItemUnavailable)
}

func TestPurchase_BeforeInitializeRejected(t *testing.T) {
	cfg := testConfig()
	session := store.NewMemorySession([]*types.ProductDescriptor{monthlyProduct()})
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})

	err := o.Purchase(context.Background(), "tarot_timer_monthly")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestInitialize_RetriesThenSucceeds(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{
		products: []*types.ProductDescriptor{monthlyProduct()},
		initErr: func(call int) error {
			if call < 3 {
				return errors.New("billing unavailable")
			}
			return nil
		},
	}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})

	require.NoError(t, o.Initialize(context.Background()))
	require.Equal(t, 3, session.initCalls)

	// Idempotent once connected.
	require.NoError(t, o.Initialize(context.Background()))
	require.Equal(t, 3, session.initCalls)
}

func TestInitialize_ExhaustionReportsUnavailable(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{
		initErr: func(int) error { return errors.New("billing unavailable") },
	}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})

	err := o.Initialize(context.Background())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, 3, session.initCalls)
}

func TestLoadProducts_EmptyResultRetriedThenDegrades(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	products, err := o.LoadProducts(ctx, []string{"tarot_timer_monthly"})
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestRestorePurchases_EmptyAfterRetriesReturnsFalse(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{
		restoreFn: func(int) ([]store.Purchase, error) { return nil, nil },
	}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	restored, err := o.RestorePurchases(ctx)
	require.NoError(t, err)
	require.False(t, restored)
	require.Equal(t, 3, session.restoreCalls)
}

func TestRestorePurchases_ReplaysKnownPurchases(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{
		products: []*types.ProductDescriptor{monthlyProduct()},
		restoreFn: func(int) ([]store.Purchase, error) {
			return []store.Purchase{
				{ProductID: "tarot_timer_monthly", TransactionID: "tx-old", TransactionReceipt: "opaque-receipt"},
				{ProductID: "some_other_app_product", TransactionID: "tx-foreign", TransactionReceipt: "x"},
			}, nil
		},
	}
	boundary := &fakeBoundary{result: activeResult()}
	o, ents := newTestOrchestrator(t, cfg, session, boundary)
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))
	restored, err := o.RestorePurchases(ctx)
	require.NoError(t, err)
	require.True(t, restored)
	require.Equal(t, 1, session.restoreCalls)
	// Only the known product crossed the boundary.
	require.Equal(t, 1, boundary.calls)

	rec, err := ents.GetEntitlement(ctx)
	require.NoError(t, err)
	require.True(t, rec.IsPremium)
	require.Equal(t, "tx-old", rec.StoreTransactionID)
}

func TestDispose_DuringInitializeClosesFreshConnection(t *testing.T) {
	cfg := testConfig()
	started := make(chan struct{})
	release := make(chan struct{})
	session := &scriptSession{initErr: func(int) error {
		close(started)
		<-release
		return nil
	}}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	initDone := make(chan error, 1)
	go func() { initDone <- o.Initialize(ctx) }()

	// Dispose lands after the connection attempt started but before
	// Initialize observes it; the connection must still be closed.
	<-started
	require.NoError(t, o.Dispose(ctx))
	close(release)

	require.ErrorIs(t, <-initDone, ErrDisposed)
	require.Equal(t, 1, session.endCalls)
}

func TestDispose_RejectsPendingAndFurtherAttempts(t *testing.T) {
	cfg := testConfig()
	session := &scriptSession{products: []*types.ProductDescriptor{monthlyProduct()}, silentRequest: true}
	o, _ := newTestOrchestrator(t, cfg, session, &fakeBoundary{result: activeResult()})
	ctx := context.Background()

	require.NoError(t, o.Initialize(ctx))

	pending := make(chan error, 1)
	go func() { pending <- o.Purchase(ctx, "tarot_timer_monthly") }()
	time.Sleep(50 * time.Millisecond)
	require.ErrorIs(t, o.Purchase(ctx, "tarot_timer_monthly"), ErrPurchaseInProgress)

	require.NoError(t, o.Dispose(ctx))
	require.ErrorIs(t, <-pending, ErrDisposed)
	require.ErrorIs(t, o.Purchase(ctx, "tarot_timer_monthly"), ErrDisposed)
	require.NoError(t, o.Dispose(ctx))
}
