package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// RunSnapshot 是随运行记录持久化的有效配置。
type RunSnapshot struct {
	Pattern       string               `yaml:"pattern"`
	Direction     string               `yaml:"direction"`
	Symbol        string               `yaml:"symbol,omitempty"`
	Timeframe     string               `yaml:"timeframe,omitempty"`
	DataPath      string               `yaml:"data_path,omitempty"`
	Notional      float64              `yaml:"notional"`
	Columns       signal.Columns       `yaml:"columns"`
	Breakeven     backtest.Breakeven   `yaml:"breakeven"`
	Objectives    optimizer.Objectives `yaml:"objectives"`
	OverboughtCap float64              `yaml:"overbought_cap"`
	Ranges        map[string][]string  `yaml:"ranges"`
}

// Snapshot 生成 RunSnapshot 并序列化为 YAML。
func (c *Config) Snapshot() ([]byte, error) {
	r, err := c.Ranges()
	if err != nil {
		return nil, err
	}
	snap := RunSnapshot{
		Pattern:       c.Strategy.Pattern,
		Direction:     c.Direction().String(),
		Notional:      c.Strategy.Notional,
		Columns:       c.Strategy.Columns,
		Breakeven:     c.Strategy.Breakeven,
		Objectives:    c.Objectives,
		OverboughtCap: c.Optimization.OverboughtCap,
		Ranges:        make(map[string][]string, 10),
	}
	if c.Data.Source == SourceJSON {
		snap.DataPath = c.Data.Path
	} else {
		snap.Symbol, snap.Timeframe = c.Data.Symbol, c.Data.Timeframe
	}
	snap.Ranges["stop_loss_atr"] = formatFloats(r.StopLossATR)
	snap.Ranges["take_profit_atr"] = formatFloats(r.TakeProfitATR)
	holds := make([]string, len(r.MaxHoldBars))
	for i, h := range r.MaxHoldBars {
		holds[i] = fmt.Sprint(h)
	}
	snap.Ranges["max_hold_bars"] = holds
	snap.Ranges["trend"] = append([]string{}, r.Trend...)
	snap.Ranges["min_rsi"] = formatLevels(r.MinRSI)
	snap.Ranges["min_adx"] = formatLevels(r.MinADX)
	snap.Ranges["atr_pct_min"] = formatLevels(r.ATRPctMin)
	snap.Ranges["atr_pct_max"] = formatLevels(r.ATRPctMax)
	snap.Ranges["ema_proximity"] = formatLevels(r.EMAProximity)
	snap.Ranges["min_volume_ratio"] = formatLevels(r.MinVolumeRatio)
	out, err := yaml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return out, nil
}

// ParseSnapshot 读取持久化的快照。
func ParseSnapshot(raw []byte) (RunSnapshot, error) {
	var snap RunSnapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return RunSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}

func formatFloats(in []float64) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = signal.At(v).String()
	}
	return out
}

func formatLevels(in []signal.Level) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = v.String()
	}
	return out
}
