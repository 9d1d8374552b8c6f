//go:build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(
		provideAppBuilder,
		wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
		provideAppFromBuilder,
	)
	return nil, nil
}
