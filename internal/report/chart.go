package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	chartWidthPx       = 1600
	chartHeightPx      = 640
	timeLayout         = "2006-01-02 15:04"
)

// Curve 是单个组合的逐 bar 权益曲线。
type Curve struct {
	Label   string
	Summary backtest.Summary
	Equity  []float64
}

// Replayer 重新模拟组合，optimizer.Evaluator 满足该接口。
type Replayer interface {
	Replay(tbl *bars.Table, c optimizer.Combination) (backtest.Result, error)
}

// Curves 对 results 逐个重放。模拟是确定性的，重放结果与评估时一致。
func Curves(tbl *bars.Table, rp Replayer, results []optimizer.Result) ([]Curve, error) {
	out := make([]Curve, 0, len(results))
	for i, r := range results {
		res, err := rp.Replay(tbl, r.Combination)
		if err != nil {
			return nil, fmt.Errorf("replay #%d (index %d): %w", i+1, r.Index, err)
		}
		out = append(out, Curve{
			Label:   fmt.Sprintf("#%d %s", i+1, r.Combination.Key()),
			Summary: res.Summary,
			Equity:  res.Equity,
		})
	}
	return out, nil
}

// RenderEquityChart 把多条权益曲线渲染为单页 HTML。
func RenderEquityChart(w io.Writer, title string, tbl *bars.Table, curves []Curve) error {
	if len(curves) == 0 {
		return fmt.Errorf("no equity curves to render")
	}
	xAxis := make([]string, tbl.Len())
	for i := range xAxis {
		xAxis[i] = tbl.Time(i).UTC().Format(timeLayout)
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
			PageTitle:       title,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      fmt.Sprintf("top %d by ranking, %d bars", len(curves), tbl.Len()),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "40", TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetXAxis(xAxis)
	for _, c := range curves {
		line.AddSeries(c.Label, toLineData(c.Equity, tbl.Len()))
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2}),
	)
	return line.Render(w)
}

// WriteEquityChart 渲染到文件。
func WriteEquityChart(path, title string, tbl *bars.Table, curves []Curve) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return writeFile(path, func(w io.Writer) error { return RenderEquityChart(w, title, tbl, curves) })
}

func toLineData(series []float64, length int) []opts.LineData {
	out := make([]opts.LineData, length)
	for i := range out {
		if i >= len(series) || math.IsNaN(series[i]) || math.IsInf(series[i], 0) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: math.Round(series[i]*1e4) / 1e4}
	}
	return out
}
