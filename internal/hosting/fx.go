package hosting

import "go.uber.org/fx"

var Module = fx.Module("hosting.service",
	fx.Provide(New),
)
