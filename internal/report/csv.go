// Package report 导出优化结果：CSV 表格与权益曲线图。
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
)

const (
	PassedFile      = "passed.csv"
	DiagnosticsFile = "diagnostics.csv"
	places          = 4
)

// PassedHeader 是 passed.csv 的固定列。
func PassedHeader() []string {
	h := []string{"rank", "index"}
	h = append(h, optimizer.CombinationHeader()...)
	h = append(h,
		"signals", "trades", "wins", "losses", "win_rate", "profit_factor", "pf_state",
		"max_drawdown_pct", "avg_bars_held", "total_pnl", "avg_pnl", "avg_mae", "avg_mfe",
	)
	for _, r := range backtest.ExitReasons() {
		h = append(h, "exit_"+strings.ToLower(string(r)))
	}
	return h
}

// DiagnosticsHeader 是 diagnostics.csv 的固定列。
func DiagnosticsHeader() []string {
	h := []string{"index"}
	h = append(h, optimizer.CombinationHeader()...)
	return append(h, "reason", "message", "signals", "trades", "profit_factor", "max_drawdown_pct", "win_rate")
}

// WritePassed 按给定顺序写出通过的组合，rank 从 1 开始。
func WritePassed(w io.Writer, results []optimizer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PassedHeader()); err != nil {
		return err
	}
	for i, r := range results {
		s := r.Summary
		row := []string{strconv.Itoa(i + 1), strconv.Itoa(r.Index)}
		row = append(row, r.Combination.Record()...)
		row = append(row,
			strconv.Itoa(r.Signals), strconv.Itoa(s.Trades), strconv.Itoa(s.Wins), strconv.Itoa(s.Losses),
			formatDecimal(s.WinRate), formatPF(s), s.PFState.String(),
			formatDecimal(s.MaxDrawdownPct), formatDecimal(s.AvgBarsHeld),
			formatDecimal(s.TotalPnL), formatDecimal(s.AvgPnL), formatDecimal(s.AvgMAE), formatDecimal(s.AvgMFE),
		)
		for _, reason := range backtest.ExitReasons() {
			row = append(row, strconv.Itoa(s.ExitReasons[reason]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDiagnostics 写出被拒绝组合；无统计的行指标列留空。
func WriteDiagnostics(w io.Writer, diags []optimizer.Diagnostic) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DiagnosticsHeader()); err != nil {
		return err
	}
	for _, d := range diags {
		row := []string{strconv.Itoa(d.Index)}
		row = append(row, d.Combination.Record()...)
		row = append(row, string(d.Reason), d.Message, strconv.Itoa(d.Signals))
		if d.Summary != nil {
			s := *d.Summary
			row = append(row, strconv.Itoa(s.Trades), formatPF(s), formatDecimal(s.MaxDrawdownPct), formatDecimal(s.WinRate))
		} else {
			row = append(row, "", "", "", "")
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV 在 dir 下写出 passed.csv 与 diagnostics.csv，返回文件路径。
func ExportCSV(dir string, report *optimizer.Report) ([]string, error) {
	if report == nil || report.Aggregator == nil {
		return nil, fmt.Errorf("export csv: nil report")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	passedPath := filepath.Join(dir, PassedFile)
	if err := writeFile(passedPath, func(w io.Writer) error { return WritePassed(w, report.Passed()) }); err != nil {
		return nil, err
	}
	diagPath := filepath.Join(dir, DiagnosticsFile)
	if err := writeFile(diagPath, func(w io.Writer) error { return WriteDiagnostics(w, report.Diagnostics()) }); err != nil {
		return nil, err
	}
	return []string{passedPath, diagPath}, nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// formatDecimal 固定保留 4 位小数；非有限值输出为空。
func formatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatPF(s backtest.Summary) string {
	switch s.PFState {
	case backtest.PFInfinite:
		return "inf"
	case backtest.PFUndefined:
		return "undefined"
	default:
		return formatDecimal(s.ProfitFactor)
	}
}
