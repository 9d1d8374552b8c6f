package config

import (
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
)

// 默认值常量
const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppLogFormat    = "text"
	defaultAppHTTPAddr     = ":9992"
	defaultStoreDir        = "data/candles"
	defaultTimeframe       = "1h"
	defaultMarketREST      = "https://fapi.binance.com"
	defaultMarketBatch     = 1000
	defaultDirection       = "long"
	defaultMinTrades       = 10
	defaultMinProfitFactor = 1.25
	defaultMaxDrawdownPct  = 15.0
	defaultMinWinRate      = 60.0
	defaultProgressEvery   = 500
	defaultResultsDB       = "data/results.db"
	defaultCSVDir          = "data/reports"
	defaultChartPath       = "data/reports/equity.html"
	defaultTopN            = 5
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	applyObjectiveDefaults(&c.Objectives, keys)
	c.Optimization.applyDefaults(keys, c.Strategy.Direction)
	c.Output.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	if strings.TrimSpace(d.Source) == "" {
		if strings.TrimSpace(d.Path) != "" {
			d.Source = SourceJSON
		} else {
			d.Source = SourceStore
		}
	}
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
	d.Symbol = strings.ToUpper(strings.TrimSpace(d.Symbol))
	applyFieldDefaults(keys,
		stringFieldDefault("data.store_dir", &d.StoreDir, defaultStoreDir),
		stringFieldDefault("data.timeframe", &d.Timeframe, defaultTimeframe),
		boolFieldDefault("data.enrich", &d.Enrich, true),
		stringFieldDefault("data.market.rest_base_url", &d.Market.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "data.market.batch_limit",
			need:  func() bool { return d.Market.BatchLimit <= 0 },
			apply: func() { d.Market.BatchLimit = defaultMarketBatch },
		},
	)
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Pattern = strings.ToLower(strings.TrimSpace(s.Pattern))
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.direction", &s.Direction, defaultDirection),
	)
	s.Direction = strings.ToLower(strings.TrimSpace(s.Direction))
	s.Columns = s.Columns.WithDefaults()
}

// 显式写 0 表示关闭对应目标。
func applyObjectiveDefaults(o *optimizer.Objectives, keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "objectives.min_trades",
			need:  func() bool { return o.MinTrades == 0 },
			apply: func() { o.MinTrades = defaultMinTrades },
		},
		fieldDefault{
			key:   "objectives.min_profit_factor",
			need:  func() bool { return o.MinProfitFactor == 0 },
			apply: func() { o.MinProfitFactor = defaultMinProfitFactor },
		},
		fieldDefault{
			key:   "objectives.max_drawdown_pct",
			need:  func() bool { return o.MaxDrawdownPct == 0 },
			apply: func() { o.MaxDrawdownPct = defaultMaxDrawdownPct },
		},
		fieldDefault{
			key:   "objectives.min_win_rate",
			need:  func() bool { return o.MinWinRate == 0 },
			apply: func() { o.MinWinRate = defaultMinWinRate },
		},
	)
}

func (o *OptimizationConfig) applyDefaults(keys keySet, direction string) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "optimization.progress_every",
			need:  func() bool { return o.ProgressEvery <= 0 },
			apply: func() { o.ProgressEvery = defaultProgressEvery },
		},
		fieldDefault{
			key:   "optimization.overbought_cap",
			need:  func() bool { return o.OverboughtCap == 0 },
			apply: func() { o.OverboughtCap = optimizer.DefaultOverboughtCap },
		},
	)
	o.Ranges.applyDefaults(keys, direction)
}

// 未在配置中出现的区间使用默认网格；显式写空数组则保持为空。
func (r *RangesConfig) applyDefaults(keys keySet, direction string) {
	trend := "ema_20 > ema_50"
	if direction == "short" || direction == "sell" {
		trend = "ema_20 < ema_50"
	}
	applyFieldDefaults(keys,
		floatsFieldDefault("optimization.ranges.stop_loss_atr", &r.StopLossATR, 1.5, 2.0, 2.5),
		floatsFieldDefault("optimization.ranges.take_profit_atr", &r.TakeProfitATR, 2.0, 2.5, 3.0),
		fieldDefault{
			key:   "optimization.ranges.max_hold_bars",
			apply: func() { r.MaxHoldBars = []int{0, 10, 15} },
		},
		fieldDefault{
			key:   "optimization.ranges.trend",
			apply: func() { r.Trend = []string{"none", trend} },
		},
		levelsFieldDefault("optimization.ranges.min_rsi", &r.MinRSI, 50, 55, 60),
		levelsFieldDefault("optimization.ranges.min_adx", &r.MinADX, 20, 25),
		levelsFieldDefault("optimization.ranges.atr_pct_min", &r.ATRPctMin, 0.5, 0.8),
		levelsFieldDefault("optimization.ranges.atr_pct_max", &r.ATRPctMax, 1.5, 2.0),
		levelsFieldDefault("optimization.ranges.ema_proximity", &r.EMAProximity, 1.5, 2.0),
		levelsFieldDefault("optimization.ranges.min_volume_ratio", &r.MinVolumeRatio, 1.0, 1.2),
	)
}

func (o *OutputConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("output.results_db", &o.ResultsDB, defaultResultsDB),
		stringFieldDefault("output.csv_dir", &o.CSVDir, defaultCSVDir),
		stringFieldDefault("output.chart_path", &o.ChartPath, defaultChartPath),
		fieldDefault{
			key:   "output.top_n",
			need:  func() bool { return o.TopN <= 0 },
			apply: func() { o.TopN = defaultTopN },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatsFieldDefault(key string, target *[]float64, def ...float64) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = append([]float64(nil), def...) },
	}
}

// levelsFieldDefault 的默认网格总是以 none 开头。
func levelsFieldDefault(key string, target *[]any, def ...float64) fieldDefault {
	return fieldDefault{
		key: key,
		apply: func() {
			out := make([]any, 0, len(def)+1)
			out = append(out, nil)
			for _, v := range def {
				out = append(out, v)
			}
			*target = out
		},
	}
}
