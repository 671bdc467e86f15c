package validator

import "go.uber.org/fx"

// Module exposes the receipt validator via Fx.
var Module = fx.Options(
	fx.Provide(NewHTTPBoundary),
	fx.Provide(NewService),
)
