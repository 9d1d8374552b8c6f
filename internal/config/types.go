package config

import (
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// Config 是优化器的主配置载体。
type Config struct {
	App          AppConfig            `toml:"app"`
	Data         DataConfig           `toml:"data"`
	Strategy     StrategyConfig       `toml:"strategy"`
	Objectives   optimizer.Objectives `toml:"objectives"`
	Optimization OptimizationConfig   `toml:"optimization"`
	Output       OutputConfig         `toml:"output"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
}

// 数据来源。
const (
	SourceJSON  = "json"
	SourceStore = "store"
)

// DataConfig 描述 K 线来源：JSON 文件或本地 K 线库。
type DataConfig struct {
	Source    string       `toml:"source"`
	Path      string       `toml:"path"`
	StoreDir  string       `toml:"store_dir"`
	Symbol    string       `toml:"symbol"`
	Timeframe string       `toml:"timeframe"`
	Start     string       `toml:"start"`
	End       string       `toml:"end"`
	Enrich    bool         `toml:"enrich"`
	Market    MarketConfig `toml:"market"`
}

// MarketConfig 控制 fetch 子命令从 Binance 合约拉取 K 线。
type MarketConfig struct {
	RESTBaseURL string `toml:"rest_base_url"`
	BatchLimit  int    `toml:"batch_limit"`
}

type StrategyConfig struct {
	Pattern   string             `toml:"pattern"`
	Direction string             `toml:"direction"`
	Notional  float64            `toml:"notional"`
	Columns   signal.Columns     `toml:"columns"`
	Breakeven backtest.Breakeven `toml:"breakeven"`
}

type OptimizationConfig struct {
	Workers         int          `toml:"workers"`
	MaxCombinations int          `toml:"max_combinations"`
	ProgressEvery   int          `toml:"progress_every"`
	OverboughtCap   float64      `toml:"overbought_cap"`
	Ranges          RangesConfig `toml:"ranges"`
}

// RangesConfig 是参数网格。过滤类区间中的 null/"none" 表示不启用该过滤。
type RangesConfig struct {
	StopLossATR    []float64 `toml:"stop_loss_atr"`
	TakeProfitATR  []float64 `toml:"take_profit_atr"`
	MaxHoldBars    []int     `toml:"max_hold_bars"`
	Trend          []string  `toml:"trend"`
	MinRSI         []any     `toml:"min_rsi"`
	MinADX         []any     `toml:"min_adx"`
	ATRPctMin      []any     `toml:"atr_pct_min"`
	ATRPctMax      []any     `toml:"atr_pct_max"`
	EMAProximity   []any     `toml:"ema_proximity"`
	MinVolumeRatio []any     `toml:"min_volume_ratio"`
}

type OutputConfig struct {
	ResultsDB string `toml:"results_db"`
	CSVDir    string `toml:"csv_dir"`
	ChartPath string `toml:"chart_path"`
	TopN      int    `toml:"top_n"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
