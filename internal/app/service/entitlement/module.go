package entitlement

import "go.uber.org/fx"

// Module exposes the entitlement store via Fx.
var Module = fx.Options(
	fx.Provide(NewGormKV),
	fx.Provide(NewNotifier),
	fx.Provide(NewService),
)
