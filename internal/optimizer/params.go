// Package optimizer 枚举参数空间、并行评估组合并汇总排序结果。
package optimizer

import (
	"strconv"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// Combination 是一组固定 schema 的参数取值。值类型，可比较，可作 map key。
type Combination struct {
	StopLossATR    float64      `json:"stop_loss_atr"`
	TakeProfitATR  float64      `json:"take_profit_atr"`
	MaxHoldBars    int          `json:"max_hold_bars"`
	Trend          string       `json:"trend"`
	MinRSI         signal.Level `json:"min_rsi"`
	MinADX         signal.Level `json:"min_adx"`
	ATRPctMin      signal.Level `json:"atr_pct_min"`
	ATRPctMax      signal.Level `json:"atr_pct_max"`
	EMAProximity   signal.Level `json:"ema_proximity"`
	MinVolumeRatio signal.Level `json:"min_volume_ratio"`
}

// Filters 转换为 SignalCombiner 的入参。
func (c Combination) Filters(pattern string) signal.Filters {
	return signal.Filters{
		Pattern:        pattern,
		Trend:          c.Trend,
		MinRSI:         c.MinRSI,
		MinADX:         c.MinADX,
		ATRPctMin:      c.ATRPctMin,
		ATRPctMax:      c.ATRPctMax,
		EMAProximity:   c.EMAProximity,
		MinVolumeRatio: c.MinVolumeRatio,
	}
}

// Params 转换为模拟器的出场参数。
func (c Combination) Params(be backtest.Breakeven) backtest.Params {
	return backtest.Params{
		StopLossATR:   c.StopLossATR,
		TakeProfitATR: c.TakeProfitATR,
		MaxHoldBars:   c.MaxHoldBars,
		Breakeven:     be,
	}
}

// CombinationHeader 是导出表中参数列的固定顺序。
func CombinationHeader() []string {
	return []string{
		"stop_loss_atr", "take_profit_atr", "max_hold_bars", "trend",
		"min_rsi", "min_adx", "atr_pct_min", "atr_pct_max", "ema_proximity", "min_volume_ratio",
	}
}

// Record 按 CombinationHeader 的顺序输出字段，未启用的过滤条件记为 none。
func (c Combination) Record() []string {
	trend := strings.TrimSpace(c.Trend)
	if trend == "" {
		trend = "none"
	}
	hold := "none"
	if c.MaxHoldBars > 0 {
		hold = strconv.Itoa(c.MaxHoldBars)
	}
	return []string{
		formatFloat(c.StopLossATR),
		formatFloat(c.TakeProfitATR),
		hold,
		trend,
		c.MinRSI.String(),
		c.MinADX.String(),
		c.ATRPctMin.String(),
		c.ATRPctMax.String(),
		c.EMAProximity.String(),
		c.MinVolumeRatio.String(),
	}
}

// Key 是结果表与诊断表之间的规范连接键。
func (c Combination) Key() string {
	header := CombinationHeader()
	values := c.Record()
	parts := make([]string, len(header))
	for i := range header {
		parts[i] = header[i] + "=" + values[i]
	}
	return strings.Join(parts, "|")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
