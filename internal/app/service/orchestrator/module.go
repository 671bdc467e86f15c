package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/internal/platform/store"
	"github.com/tarotware/paywall/pkg/config"
	"github.com/tarotware/paywall/pkg/types"
)

// NewSession builds the store session for this process. Dev builds get
// the in-memory session seeded with the configured catalog; production
// refuses to connect until a real device bridge replaces this provider,
// so purchasing stays disabled rather than auto-completing with
// fabricated receipts.
func NewSession(cfg *config.Config) store.Session {
	if !cfg.IsDev() {
		return store.NewUnavailableSession("no device bridge bound in this build")
	}
	products := make([]*types.ProductDescriptor, 0, len(cfg.PaymentItems))
	for _, item := range cfg.PaymentItems {
		products = append(products, &types.ProductDescriptor{
			ProductID:      item.ProviderItemID,
			Title:          item.ID,
			Type:           item.Type,
			LocalizedPrice: "$0.00",
			Offers:         []types.SubscriptionOffer{{OfferToken: "dev-offer", BasePlanID: item.ID}},
		})
	}
	return store.NewMemorySession(products)
}

var Module = fx.Options(
	fx.Provide(NewSession),
	fx.Provide(New),
	fx.Invoke(registerHooks),
)

// registerHooks connects the store on startup and tears the orchestrator
// down on shutdown. A failed connection does not abort startup; the app
// keeps serving with purchasing disabled and the next foreground refresh
// retries.
func registerHooks(lc fx.Lifecycle, o *Orchestrator, cfg *config.Config, log *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := o.Initialize(context.Background()); err != nil {
					log.Warnw("store initialization failed at startup", "err", err)
					return
				}
				if _, err := o.LoadProducts(context.Background(), cfg.ProductIDs()); err != nil {
					log.Warnw("product preload failed", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := o.Dispose(ctx); err != nil {
				return fmt.Errorf("failed to dispose purchase orchestrator: %w", err)
			}
			return nil
		},
	})
}
