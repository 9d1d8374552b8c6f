package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/marketdata"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/store"
	runshttp "github.com/vihaananand2001/commodity-trading-dashboard/internal/transport/http/runs"
)

type AppBuilder struct {
	cfg *config.Config

	candleStoreFn func(string) (*bars.Store, error)
	resultStoreFn func(string) (*store.ResultStore, error)
	sourceFn      func(config.MarketConfig) marketdata.Source
	httpFn        func(config.AppConfig, store.RunReader) (*runshttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithSource 替换行情来源，主要用于测试。
func WithSource(src marketdata.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(config.MarketConfig) marketdata.Source { return src }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:           cfg,
		candleStoreFn: bars.NewStore,
		resultStoreFn: openResultStore,
		sourceFn:      buildMarketSource,
		httpFn:        buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	candles, err := b.candleStoreFn(cfg.Data.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("open candle store: %w", err)
	}
	results, err := b.resultStoreFn(cfg.Output.ResultsDB)
	if err != nil {
		_ = candles.Close()
		return nil, fmt.Errorf("open result store: %w", err)
	}
	server, err := b.httpFn(cfg.App, results)
	if err != nil {
		_ = results.Close()
		_ = candles.Close()
		return nil, err
	}
	app := &App{
		cfg:     cfg,
		candles: candles,
		results: results,
		source:  b.sourceFn(cfg.Data.Market),
		server:  server,
		Summary: newStartupSummary(cfg),
	}
	logger.Debugf("app built (data=%s, results=%s)", cfg.Data.Source, cfg.Output.ResultsDB)
	return app, nil
}

func openResultStore(path string) (*store.ResultStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return store.NewResultStore(path)
}

func buildMarketSource(cfg config.MarketConfig) marketdata.Source {
	return marketdata.NewBinanceSource(marketdata.Config{
		RESTBaseURL: cfg.RESTBaseURL,
		BatchLimit:  cfg.BatchLimit,
	})
}

func buildHTTPServer(cfg config.AppConfig, runs store.RunReader) (*runshttp.Server, error) {
	return runshttp.NewServer(runshttp.Config{Addr: cfg.HTTPAddr, Runs: runs})
}
