package features

import (
	"context"
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// talib 在预热区输出 0，这里统一改写为 NaN，避免被当作有效值。
func warmup(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// ATRStep 计算 atr_N 与 atr_pct_N（atr/close*100）。
type ATRStep struct {
	Period int
}

func (s ATRStep) period() int {
	if s.Period <= 0 {
		return 14
	}
	return s.Period
}

func (s ATRStep) Meta() StepMeta {
	return StepMeta{Name: fmt.Sprintf("atr_%d", s.period()), Stage: 0, Critical: true}
}

func (s ATRStep) Handle(_ context.Context, f *Frame) error {
	p := s.period()
	in, err := f.MustSeries(bars.ColHigh, bars.ColLow, bars.ColClose)
	if err != nil {
		return err
	}
	n := f.Len()
	atr := nanSeries(n)
	if n > p {
		atr = warmup(talib.Atr(in[0], in[1], in[2], p), p)
	}
	pct := nanSeries(n)
	for i, c := range in[2] {
		if c != 0 && !math.IsNaN(atr[i]) {
			pct[i] = atr[i] / c * 100
		}
	}
	if err := f.Set(fmt.Sprintf("atr_%d", p), atr); err != nil {
		return err
	}
	return f.Set(fmt.Sprintf("atr_pct_%d", p), pct)
}

// RSIStep 计算 rsi_N。
type RSIStep struct {
	Period int
}

func (s RSIStep) period() int {
	if s.Period <= 0 {
		return 14
	}
	return s.Period
}

func (s RSIStep) Meta() StepMeta {
	return StepMeta{Name: fmt.Sprintf("rsi_%d", s.period()), Stage: 0}
}

func (s RSIStep) Handle(_ context.Context, f *Frame) error {
	p := s.period()
	in, err := f.MustSeries(bars.ColClose)
	if err != nil {
		return err
	}
	out := nanSeries(f.Len())
	if f.Len() > p {
		out = warmup(talib.Rsi(in[0], p), p)
	}
	return f.Set(fmt.Sprintf("rsi_%d", p), out)
}

// ADXStep 计算 adx_N、plus_di_N、minus_di_N。
type ADXStep struct {
	Period int
}

func (s ADXStep) period() int {
	if s.Period <= 0 {
		return 14
	}
	return s.Period
}

func (s ADXStep) Meta() StepMeta {
	return StepMeta{Name: fmt.Sprintf("adx_%d", s.period()), Stage: 0}
}

func (s ADXStep) Handle(_ context.Context, f *Frame) error {
	p := s.period()
	in, err := f.MustSeries(bars.ColHigh, bars.ColLow, bars.ColClose)
	if err != nil {
		return err
	}
	n := f.Len()
	adx, plus, minus := nanSeries(n), nanSeries(n), nanSeries(n)
	if n > 2*p {
		adx = warmup(talib.Adx(in[0], in[1], in[2], p), 2*p-1)
		plus = warmup(talib.PlusDI(in[0], in[1], in[2], p), p)
		minus = warmup(talib.MinusDI(in[0], in[1], in[2], p), p)
	}
	for name, col := range map[string][]float64{
		fmt.Sprintf("adx_%d", p):      adx,
		fmt.Sprintf("plus_di_%d", p):  plus,
		fmt.Sprintf("minus_di_%d", p): minus,
	} {
		if err := f.Set(name, col); err != nil {
			return err
		}
	}
	return nil
}

// EMAStep 计算一组 ema_N。
type EMAStep struct {
	Periods []int
}

func (s EMAStep) Meta() StepMeta {
	return StepMeta{Name: "ema", Stage: 0, Critical: true}
}

func (s EMAStep) Handle(_ context.Context, f *Frame) error {
	in, err := f.MustSeries(bars.ColClose)
	if err != nil {
		return err
	}
	for _, p := range s.Periods {
		if p <= 0 {
			return fmt.Errorf("invalid ema period %d", p)
		}
		out := nanSeries(f.Len())
		if f.Len() >= p {
			out = warmup(talib.Ema(in[0], p), p-1)
		}
		if err := f.Set(fmt.Sprintf("ema_%d", p), out); err != nil {
			return err
		}
	}
	return nil
}

// VolumeStep 计算 volume_sma_N 与 volume_ratio。
type VolumeStep struct {
	Period int
}

func (s VolumeStep) period() int {
	if s.Period <= 0 {
		return 20
	}
	return s.Period
}

func (s VolumeStep) Meta() StepMeta {
	return StepMeta{Name: "volume", Stage: 0}
}

func (s VolumeStep) Handle(_ context.Context, f *Frame) error {
	p := s.period()
	in, err := f.MustSeries(bars.ColVolume)
	if err != nil {
		return err
	}
	n := f.Len()
	sma := nanSeries(n)
	if n >= p {
		sma = warmup(talib.Sma(in[0], p), p-1)
	}
	ratio := nanSeries(n)
	for i, v := range in[0] {
		if sma[i] > 0 {
			ratio[i] = v / sma[i]
		}
	}
	if err := f.Set(fmt.Sprintf("volume_sma_%d", p), sma); err != nil {
		return err
	}
	return f.Set("volume_ratio", ratio)
}

// DerivedStep 依赖 stage 0 的 ema/atr，计算 dist_ema20 与短期趋势标记。
type DerivedStep struct{}

func (DerivedStep) Meta() StepMeta {
	return StepMeta{Name: "derived", Stage: 1}
}

func (DerivedStep) Handle(_ context.Context, f *Frame) error {
	in, err := f.MustSeries(bars.ColClose, "ema_20", "ema_50", "atr_14")
	if err != nil {
		return err
	}
	closes, ema20, ema50, atr := in[0], in[1], in[2], in[3]
	n := f.Len()
	dist, bull, bear := nanSeries(n), nanSeries(n), nanSeries(n)
	for i := 0; i < n; i++ {
		if atr[i] > 0 && !math.IsNaN(ema20[i]) {
			dist[i] = math.Abs(closes[i]-ema20[i]) / atr[i]
		}
		if math.IsNaN(ema20[i]) || math.IsNaN(ema50[i]) {
			continue
		}
		bull[i], bear[i] = flag(ema20[i] > ema50[i]), flag(ema20[i] < ema50[i])
	}
	if err := f.Set("dist_ema20", dist); err != nil {
		return err
	}
	if err := f.Set("trend_ema_bull_short", bull); err != nil {
		return err
	}
	return f.Set("trend_ema_bear_short", bear)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
