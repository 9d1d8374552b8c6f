package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/marketdata"
)

// Fetch 把 data.symbol@data.timeframe 在 [data.start, data.end] 的 K 线同步到本地库。
func (a *App) Fetch(ctx context.Context) (marketdata.SyncReport, error) {
	if a == nil || a.cfg == nil || a.source == nil {
		return marketdata.SyncReport{}, fmt.Errorf("app not initialized")
	}
	data := a.cfg.Data
	tf, err := bars.ParseTimeframe(data.Timeframe)
	if err != nil {
		return marketdata.SyncReport{}, err
	}
	start, end, err := data.TimeRange()
	if err != nil {
		return marketdata.SyncReport{}, err
	}
	syncer := marketdata.NewSyncer(a.candles, a.source, marketdata.Config{BatchLimit: data.Market.BatchLimit})
	rep, err := syncer.Sync(ctx, data.Symbol, tf, start, end)
	if err != nil {
		return rep, err
	}
	for _, w := range rep.Warnings {
		logger.Warnf("fetch %s: %s", data.Symbol, w)
	}
	if m, err := a.candles.Manifest(ctx, data.Symbol, tf.Key); err == nil {
		logger.Infof("✓ %s@%s rows=%d [%s, %s]", m.Symbol, m.Timeframe, m.Rows,
			time.UnixMilli(m.MinTime).UTC().Format(time.RFC3339), time.UnixMilli(m.MaxTime).UTC().Format(time.RFC3339))
	}
	return rep, nil
}

func (a *App) now() time.Time { return time.Now().UTC() }
