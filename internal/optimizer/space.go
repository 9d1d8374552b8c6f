package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// ErrSpaceTooLarge 表示组合数超过上限，在任何评估开始前拒绝。
var ErrSpaceTooLarge = errors.New("parameter space too large")

// DefaultOverboughtCap 是 RSI 下限的剪枝阈值。
const DefaultOverboughtCap = 70.0

// Ranges 声明每个参数的候选值。过滤类参数为空时视为仅 "none"，
// MaxHoldBars 为空视为 0（不限），Trend 为空视为无趋势条件；
// StopLossATR/TakeProfitATR 必须显式给出，否则空间为空。
type Ranges struct {
	StopLossATR    []float64
	TakeProfitATR  []float64
	MaxHoldBars    []int
	Trend          []string
	MinRSI         []signal.Level
	MinADX         []signal.Level
	ATRPctMin      []signal.Level
	ATRPctMax      []signal.Level
	EMAProximity   []signal.Level
	MinVolumeRatio []signal.Level
}

const dimensions = 10

func (r Ranges) clone() Ranges {
	return Ranges{
		StopLossATR:    append([]float64(nil), r.StopLossATR...),
		TakeProfitATR:  append([]float64(nil), r.TakeProfitATR...),
		MaxHoldBars:    append([]int(nil), r.MaxHoldBars...),
		Trend:          append([]string(nil), r.Trend...),
		MinRSI:         append([]signal.Level(nil), r.MinRSI...),
		MinADX:         append([]signal.Level(nil), r.MinADX...),
		ATRPctMin:      append([]signal.Level(nil), r.ATRPctMin...),
		ATRPctMax:      append([]signal.Level(nil), r.ATRPctMax...),
		EMAProximity:   append([]signal.Level(nil), r.EMAProximity...),
		MinVolumeRatio: append([]signal.Level(nil), r.MinVolumeRatio...),
	}
}

// Space 是惰性的笛卡尔积：第 i 个组合按混合进制解码，最后一维变化最快。
type Space struct {
	r             Ranges
	radix         [dimensions]int
	count         int
	overboughtCap float64
}

type SpaceOption func(*Space)

// WithOverboughtCap 设置 RSI 下限剪枝阈值，<=0 关闭该剪枝。
func WithOverboughtCap(v float64) SpaceOption {
	return func(s *Space) { s.overboughtCap = v }
}

func NewSpace(r Ranges, opts ...SpaceOption) (*Space, error) {
	r = r.clone()
	for _, v := range r.StopLossATR {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("stop_loss_atr 取值需 > 0: %v", v)
		}
	}
	for _, v := range r.TakeProfitATR {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("take_profit_atr 取值需 > 0: %v", v)
		}
	}
	for _, v := range r.MaxHoldBars {
		if v < 0 {
			return nil, fmt.Errorf("max_hold_bars 不能为负: %d", v)
		}
	}
	if len(r.MaxHoldBars) == 0 {
		r.MaxHoldBars = []int{0}
	}
	if len(r.Trend) == 0 {
		r.Trend = []string{""}
	}
	for i, t := range r.Trend {
		if strings.EqualFold(strings.TrimSpace(t), "none") {
			r.Trend[i] = ""
		}
		if _, err := signal.CompileTrend(r.Trend[i]); err != nil {
			return nil, err
		}
	}
	for _, lv := range []*[]signal.Level{&r.MinRSI, &r.MinADX, &r.ATRPctMin, &r.ATRPctMax, &r.EMAProximity, &r.MinVolumeRatio} {
		if len(*lv) == 0 {
			*lv = []signal.Level{signal.None()}
		}
	}
	s := &Space{r: r, overboughtCap: DefaultOverboughtCap}
	for _, opt := range opts {
		opt(s)
	}
	s.radix = [dimensions]int{
		len(r.StopLossATR), len(r.TakeProfitATR), len(r.MaxHoldBars), len(r.Trend),
		len(r.MinRSI), len(r.MinADX), len(r.ATRPctMin), len(r.ATRPctMax),
		len(r.EMAProximity), len(r.MinVolumeRatio),
	}
	count := 1
	for _, n := range s.radix {
		if n == 0 {
			count = 0
			break
		}
		if count > math.MaxInt/n {
			return nil, fmt.Errorf("%w: combination count overflows", ErrSpaceTooLarge)
		}
		count *= n
	}
	s.count = count
	return s, nil
}

// Count 返回剪枝前的组合总数，无需枚举。
func (s *Space) Count() int { return s.count }

// At 解码第 i 个组合，i 需位于 [0, Count)。
func (s *Space) At(i int) Combination {
	if i < 0 || i >= s.count {
		panic(fmt.Sprintf("optimizer: combination index %d out of range [0,%d)", i, s.count))
	}
	var digit [dimensions]int
	for d := dimensions - 1; d >= 0; d-- {
		digit[d] = i % s.radix[d]
		i /= s.radix[d]
	}
	return Combination{
		StopLossATR:    s.r.StopLossATR[digit[0]],
		TakeProfitATR:  s.r.TakeProfitATR[digit[1]],
		MaxHoldBars:    s.r.MaxHoldBars[digit[2]],
		Trend:          s.r.Trend[digit[3]],
		MinRSI:         s.r.MinRSI[digit[4]],
		MinADX:         s.r.MinADX[digit[5]],
		ATRPctMin:      s.r.ATRPctMin[digit[6]],
		ATRPctMax:      s.r.ATRPctMax[digit[7]],
		EMAProximity:   s.r.EMAProximity[digit[8]],
		MinVolumeRatio: s.r.MinVolumeRatio[digit[9]],
	}
}

// Valid 报告组合是否通过剪枝约束。
func (s *Space) Valid(c Combination) bool {
	if c.ATRPctMin.Active && c.ATRPctMax.Active && c.ATRPctMin.Value >= c.ATRPctMax.Value {
		return false
	}
	if s.overboughtCap > 0 && c.MinRSI.Active && c.MinRSI.Value >= s.overboughtCap {
		return false
	}
	return true
}

// Iterate 按索引顺序回调有效组合，跳过被剪枝的组合。
// ctx 取消或 fn 返回错误时停止。
func (s *Space) Iterate(ctx context.Context, fn func(idx int, c Combination) error) error {
	for i := 0; i < s.count; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := s.At(i)
		if !s.Valid(c) {
			continue
		}
		if err := fn(i, c); err != nil {
			return err
		}
	}
	return nil
}

// ValidCount 枚举一遍统计剪枝后的组合数。
func (s *Space) ValidCount() int {
	n := 0
	_ = s.Iterate(context.Background(), func(int, Combination) error {
		n++
		return nil
	})
	return n
}

// Trends 返回空间中出现的全部趋势表达式。
func (s *Space) Trends() []string {
	return append([]string(nil), s.r.Trend...)
}

// Probe 返回一组覆盖空间中所有启用过滤列的 Filters，每个趋势表达式一组，用于评估前的列校验。
func (s *Space) Probe(pattern string) []signal.Filters {
	anyActive := func(levels []signal.Level) signal.Level {
		for _, l := range levels {
			if l.Active {
				return l
			}
		}
		return signal.None()
	}
	base := signal.Filters{
		Pattern:        pattern,
		MinRSI:         anyActive(s.r.MinRSI),
		MinADX:         anyActive(s.r.MinADX),
		ATRPctMin:      anyActive(s.r.ATRPctMin),
		ATRPctMax:      anyActive(s.r.ATRPctMax),
		EMAProximity:   anyActive(s.r.EMAProximity),
		MinVolumeRatio: anyActive(s.r.MinVolumeRatio),
	}
	out := make([]signal.Filters, 0, len(s.r.Trend))
	for _, t := range s.r.Trend {
		f := base
		f.Trend = t
		out = append(out, f)
	}
	return out
}
