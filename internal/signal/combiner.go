package signal

import (
	"fmt"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// Columns 把过滤角色映射到表中的列名。
type Columns struct {
	RSI         string `toml:"rsi" json:"rsi" yaml:"rsi"`
	ADX         string `toml:"adx" json:"adx" yaml:"adx"`
	ATRPct      string `toml:"atr_pct" json:"atr_pct" yaml:"atr_pct"`
	EMADistance string `toml:"ema_distance" json:"ema_distance" yaml:"ema_distance"`
	VolumeRatio string `toml:"volume_ratio" json:"volume_ratio" yaml:"volume_ratio"`
	ATR         string `toml:"atr" json:"atr" yaml:"atr"`
}

// DefaultColumns 返回 features 包产出的默认列名。
func DefaultColumns() Columns {
	return Columns{
		RSI:         "rsi_14",
		ADX:         "adx_14",
		ATRPct:      "atr_pct_14",
		EMADistance: "dist_ema20",
		VolumeRatio: "volume_ratio",
		ATR:         "atr_14",
	}
}

// WithDefaults 用默认列名补齐空字段。
func (c Columns) WithDefaults() Columns {
	def := DefaultColumns()
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
	return Columns{
		RSI:         pick(c.RSI, def.RSI),
		ADX:         pick(c.ADX, def.ADX),
		ATRPct:      pick(c.ATRPct, def.ATRPct),
		EMADistance: pick(c.EMADistance, def.EMADistance),
		VolumeRatio: pick(c.VolumeRatio, def.VolumeRatio),
		ATR:         pick(c.ATR, def.ATR),
	}
}

// Filters 是一次组合的入场条件。
type Filters struct {
	Pattern        string
	Trend          string
	MinRSI         Level
	MinADX         Level
	ATRPctMin      Level
	ATRPctMax      Level
	EMAProximity   Level
	MinVolumeRatio Level
}

// EntrySignal 与 K 线一一对应的入场掩码。
type EntrySignal struct {
	Mask      []bool
	Direction Direction
}

// Count 返回为真的 K 线数量。
func (s EntrySignal) Count() int {
	n := 0
	for _, v := range s.Mask {
		if v {
			n++
		}
	}
	return n
}

// Combiner 合成入场掩码，无状态，可并发使用。
type Combiner struct {
	cols Columns
	dir  Direction
}

func NewCombiner(cols Columns, dir Direction) *Combiner {
	if dir != Short {
		dir = Long
	}
	return &Combiner{cols: cols.WithDefaults(), dir: dir}
}

func (c *Combiner) Direction() Direction { return c.dir }

func (c *Combiner) Columns() Columns { return c.cols }

type threshold struct {
	column string
	level  Level
	above  bool
}

func (c *Combiner) thresholds(f Filters) []threshold {
	return []threshold{
		{column: c.cols.RSI, level: f.MinRSI, above: true},
		{column: c.cols.ADX, level: f.MinADX, above: true},
		{column: c.cols.ATRPct, level: f.ATRPctMin, above: true},
		{column: c.cols.ATRPct, level: f.ATRPctMax, above: false},
		{column: c.cols.EMADistance, level: f.EMAProximity, above: false},
		{column: c.cols.VolumeRatio, level: f.MinVolumeRatio, above: true},
	}
}

// Fields 返回 f 引用的全部列：形态列、趋势表达式列、启用的阈值列。
func (c *Combiner) Fields(f Filters) ([]string, error) {
	pattern := strings.ToLower(strings.TrimSpace(f.Pattern))
	if pattern == "" {
		return nil, fmt.Errorf("pattern column 不能为空")
	}
	trend, err := CompileTrend(f.Trend)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{pattern: {}}
	out := []string{pattern}
	add := func(col string) {
		if _, ok := seen[col]; ok {
			return
		}
		seen[col] = struct{}{}
		out = append(out, col)
	}
	for _, col := range trend.Columns() {
		add(col)
	}
	for _, th := range c.thresholds(f) {
		if th.level.Active {
			add(th.column)
		}
	}
	return out, nil
}

// Required 返回模拟所需的全部列（OHLC、volume、ATR 与 Fields）。
func (c *Combiner) Required(f Filters) ([]string, error) {
	fields, err := c.Fields(f)
	if err != nil {
		return nil, err
	}
	out := append(bars.OHLC(), bars.ColVolume, c.cols.ATR)
	return append(out, fields...), nil
}

// Validate 在任何模拟前检查列是否齐全，返回第一个缺失列。
func (c *Combiner) Validate(t *bars.Table, f Filters) error {
	cols, err := c.Required(f)
	if err != nil {
		return err
	}
	return t.Require(cols...)
}

// Build 计算入场掩码：所有启用条件的逻辑与。
// 任一引用值、OHLC 或 ATR 非有限的 K 线不会入场。
func (c *Combiner) Build(t *bars.Table, f Filters) (EntrySignal, error) {
	if err := c.Validate(t, f); err != nil {
		return EntrySignal{}, err
	}
	trend, err := CompileTrend(f.Trend)
	if err != nil {
		return EntrySignal{}, err
	}
	pattern, _ := t.Column(strings.ToLower(strings.TrimSpace(f.Pattern)))
	var active []threshold
	for _, th := range c.thresholds(f) {
		if th.level.Active {
			active = append(active, th)
		}
	}
	guard := append(bars.OHLC(), c.cols.ATR)

	mask := make([]bool, t.Len())
	for i := range mask {
		if !finite(pattern[i]) || pattern[i] == 0 {
			continue
		}
		if !t.Finite(i, guard...) {
			continue
		}
		if !trend.Eval(t, i) {
			continue
		}
		ok := true
		for _, th := range active {
			v := t.Value(th.column, i)
			if !finite(v) {
				ok = false
				break
			}
			if th.above && v < th.level.Value || !th.above && v > th.level.Value {
				ok = false
				break
			}
		}
		mask[i] = ok
	}
	return EntrySignal{Mask: mask, Direction: c.dir}, nil
}
