package app

import (
	"context"
	"fmt"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/marketdata"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/store"
	runshttp "github.com/vihaananand2001/commodity-trading-dashboard/internal/transport/http/runs"
)

// App 负责应用级编排：加载 K 线→特征→优化→持久化与报表，以及 fetch / serve。
type App struct {
	cfg     *config.Config
	candles *bars.Store
	results *store.ResultStore
	source  marketdata.Source
	server  *runshttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Config 返回生效配置。
func (a *App) Config() *config.Config {
	if a == nil {
		return nil
	}
	return a.cfg
}

// Serve 启动只读 HTTP API，阻塞直到 ctx 取消。
func (a *App) Serve(ctx context.Context) error {
	if a == nil || a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	return a.server.Start(ctx)
}

// Close 释放 K 线库与结果库。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.candles != nil {
		_ = a.candles.Close()
	}
}
