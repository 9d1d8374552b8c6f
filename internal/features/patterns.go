package features

import (
	"context"
	"math"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// 形态列名。
const (
	PatternInsideBar         = "pattern_inside_bar"
	PatternOutsideBar        = "pattern_outside_bar"
	PatternBullishEngulfing  = "pattern_bullish_engulfing"
	PatternBearishEngulfing  = "pattern_bearish_engulfing"
	PatternHammer            = "pattern_hammer"
	PatternShootingStar      = "pattern_shooting_star"
	PatternBreakout20        = "pattern_breakout_20"
	PatternBreakdown20       = "pattern_breakdown_20"
	PatternRangeExpansion    = "pattern_range_expansion"
	defaultLookback          = 20
	rangeExpansionMultiplier = 1.5
)

// Patterns 返回全部形态列名。
func Patterns() []string {
	return []string{
		PatternInsideBar, PatternOutsideBar,
		PatternBullishEngulfing, PatternBearishEngulfing,
		PatternHammer, PatternShootingStar,
		PatternBreakout20, PatternBreakdown20,
		PatternRangeExpansion,
	}
}

// PatternStep 计算 0/1 形态标记；历史不足的 bar 记为 0。
type PatternStep struct{}

func (PatternStep) Meta() StepMeta {
	return StepMeta{Name: "patterns", Stage: 0}
}

func (PatternStep) Handle(ctx context.Context, f *Frame) error {
	in, err := f.MustSeries(bars.ColOpen, bars.ColHigh, bars.ColLow, bars.ColClose)
	if err != nil {
		return err
	}
	o, h, l, c := in[0], in[1], in[2], in[3]
	n := f.Len()
	out := make(map[string][]float64, 9)
	for _, name := range Patterns() {
		out[name] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		body := math.Abs(c[i] - o[i])
		rng := h[i] - l[i]
		upper := h[i] - math.Max(o[i], c[i])
		lower := math.Min(o[i], c[i]) - l[i]
		if rng > 0 && body/rng <= 0.3 {
			out[PatternHammer][i] = flag(lower/(body+1e-10) >= 2 && upper < body)
			out[PatternShootingStar][i] = flag(upper/(body+1e-10) >= 2 && lower < body)
		}
		if i == 0 {
			continue
		}
		out[PatternInsideBar][i] = flag(h[i] < h[i-1] && l[i] > l[i-1])
		out[PatternOutsideBar][i] = flag(h[i] > h[i-1] && l[i] < l[i-1])
		prevBear, prevBull := c[i-1] < o[i-1], c[i-1] > o[i-1]
		curBull, curBear := c[i] > o[i], c[i] < o[i]
		out[PatternBullishEngulfing][i] = flag(prevBear && curBull && o[i] <= c[i-1] && c[i] >= o[i-1])
		out[PatternBearishEngulfing][i] = flag(prevBull && curBear && o[i] >= c[i-1] && c[i] <= o[i-1])
		if i < defaultLookback {
			continue
		}
		hi, lo, sum := math.Inf(-1), math.Inf(1), 0.0
		for j := i - defaultLookback; j < i; j++ {
			hi = math.Max(hi, h[j])
			lo = math.Min(lo, l[j])
			sum += h[j] - l[j]
		}
		out[PatternBreakout20][i] = flag(c[i] > hi)
		out[PatternBreakdown20][i] = flag(c[i] < lo)
		out[PatternRangeExpansion][i] = flag(rng > sum/defaultLookback*rangeExpansionMultiplier)
	}
	for _, name := range Patterns() {
		if err := f.Set(name, out[name]); err != nil {
			return err
		}
	}
	return nil
}
