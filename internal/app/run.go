package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/features"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/report"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/store"
)

// RunOutcome 汇总一次优化运行的产物。
type RunOutcome struct {
	RunID     string
	Status    store.RunStatus
	Bars      int
	Report    *optimizer.Report
	Warnings  []string
	CSVFiles  []string
	ChartPath string
}

// RunOptimization 加载 K 线、按需计算特征、评估整个参数空间并写出结果。
// ctx 取消时仍会保存已完成部分（状态 cancelled），并返回 ctx.Err()。
func (a *App) RunOptimization(ctx context.Context) (*RunOutcome, error) {
	if a == nil || a.cfg == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	cfg := a.cfg
	if a.Summary != nil {
		a.Summary.Print()
	}

	tbl, err := a.loadTable(ctx)
	if err != nil {
		return nil, err
	}
	out := &RunOutcome{Status: store.RunStatusCompleted}
	if cfg.Data.Enrich {
		tbl, out.Warnings, err = features.Enrich(ctx, tbl)
		if err != nil {
			return nil, fmt.Errorf("enrich: %w", err)
		}
	}
	out.Bars = tbl.Len()

	space, err := cfg.Space()
	if err != nil {
		return nil, err
	}
	combiner := signal.NewCombiner(cfg.Strategy.Columns, cfg.Direction())
	sim := backtest.NewSimulator(cfg.SimulatorConfig())
	eval := optimizer.NewEvaluator(combiner, sim, cfg.EvaluatorOptions())

	rep, runErr := eval.Run(ctx, tbl, space)
	if rep == nil {
		return nil, runErr
	}
	if runErr != nil {
		if !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
			return nil, runErr
		}
		out.Status = store.RunStatusCancelled
	}
	out.Report = rep

	snapshot, err := cfg.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("config snapshot: %w", err)
	}
	// 保存使用独立 ctx，取消后已完成的部分仍然落库。
	out.RunID, err = a.results.SaveRun(context.WithoutCancel(ctx), store.RunInput{
		Status:     out.Status,
		Pattern:    cfg.Strategy.Pattern,
		Direction:  cfg.Direction().String(),
		Symbol:     cfg.Data.Symbol,
		Timeframe:  cfg.Data.Timeframe,
		Bars:       out.Bars,
		ConfigYAML: string(snapshot),
	}, rep)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ run %s saved (%s): evaluated=%d passed=%d", out.RunID, out.Status, rep.Evaluated(), rep.PassedCount())

	if dir := strings.TrimSpace(cfg.Output.CSVDir); dir != "" {
		out.CSVFiles, err = report.ExportCSV(dir, rep)
		if err != nil {
			return nil, err
		}
		logger.Infof("✓ csv: %s", strings.Join(out.CSVFiles, ", "))
	}
	if err := a.writeChart(tbl, eval, rep, out); err != nil {
		return nil, err
	}
	logReasons(rep)
	return out, runErr
}

func (a *App) writeChart(tbl *bars.Table, rp report.Replayer, rep *optimizer.Report, out *RunOutcome) error {
	path := strings.TrimSpace(a.cfg.Output.ChartPath)
	top := rep.TopN(a.cfg.Output.TopN)
	if path == "" || len(top) == 0 {
		return nil
	}
	curves, err := report.Curves(tbl, rp, top)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s %s top %d", a.cfg.Strategy.Pattern, a.cfg.Direction(), len(curves))
	if err := report.WriteEquityChart(path, title, tbl, curves); err != nil {
		return err
	}
	out.ChartPath = path
	logger.Infof("✓ chart: %s", path)
	return nil
}

func (a *App) loadTable(ctx context.Context) (*bars.Table, error) {
	data := a.cfg.Data
	switch data.Source {
	case config.SourceJSON:
		f, err := os.Open(data.Path)
		if err != nil {
			return nil, fmt.Errorf("open bars: %w", err)
		}
		defer f.Close()
		tbl, err := bars.LoadJSON(f)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", data.Path, err)
		}
		logger.Infof("✓ loaded %d bars from %s", tbl.Len(), data.Path)
		return tbl, nil
	case config.SourceStore:
		start, end, err := data.TimeRange()
		if err != nil {
			return nil, err
		}
		if start.IsZero() && end.IsZero() {
			return a.candles.LoadTable(ctx, data.Symbol, data.Timeframe)
		}
		from, to := start.UnixMilli(), end.UnixMilli()
		if start.IsZero() {
			from = 1
		}
		if end.IsZero() {
			to = a.now().UnixMilli()
		}
		list, err := a.candles.RangeCandles(ctx, data.Symbol, data.Timeframe, from, to)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("%s@%s 在 [%s, %s] 没有 K 线数据", data.Symbol, data.Timeframe, data.Start, data.End)
		}
		logger.Infof("✓ loaded %d candles for %s@%s", len(list), data.Symbol, data.Timeframe)
		return bars.NewTable(bars.CandlesToBars(list)), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", data.Source)
	}
}

func logReasons(rep *optimizer.Report) {
	counts := rep.ReasonCounts()
	parts := make([]string, 0, len(counts))
	for _, reason := range optimizer.Reasons() {
		if n := counts[reason]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, n))
		}
	}
	if len(parts) > 0 {
		logger.Infof("rejections: %s", strings.Join(parts, " "))
	}
}
