// Package backtest 在 K 线表上回放入场掩码，逐笔模拟止损/止盈/持仓超时。
package backtest

import (
	"fmt"
	"math"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// Breakeven 控制保本止损：浮盈达到触发距离后止损移到开仓价。
type Breakeven struct {
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	// ATRMultiple 为 0 时按止盈距离的一半触发（TP1）。
	ATRMultiple float64 `toml:"atr_multiple" json:"atr_multiple" yaml:"atr_multiple"`
}

// Params 是单次模拟的出场参数。
type Params struct {
	StopLossATR   float64
	TakeProfitATR float64
	MaxHoldBars   int // 0 表示不限
	Breakeven     Breakeven
}

func (p Params) Validate() error {
	if !(p.StopLossATR > 0) || math.IsInf(p.StopLossATR, 0) {
		return fmt.Errorf("stop loss atr multiple 需 > 0: %v", p.StopLossATR)
	}
	if !(p.TakeProfitATR > 0) || math.IsInf(p.TakeProfitATR, 0) {
		return fmt.Errorf("take profit atr multiple 需 > 0: %v", p.TakeProfitATR)
	}
	if p.MaxHoldBars < 0 {
		return fmt.Errorf("max hold bars 不能为负: %d", p.MaxHoldBars)
	}
	if p.Breakeven.ATRMultiple < 0 {
		return fmt.Errorf("breakeven atr multiple 不能为负: %v", p.Breakeven.ATRMultiple)
	}
	return nil
}

// Config 是模拟器的固定配置，同一次优化中所有组合共享。
type Config struct {
	ATRColumn string
	// Notional 是回撤计算的权益基准；<=0 时使用第一笔交易的开仓价。
	Notional float64
}

// Result 是一次模拟的输出。
type Result struct {
	Trades  []Trade
	Summary Summary
	Equity  []float64
}

// Simulator 无状态，每次 Run 使用独立的运行状态，可并发调用。
type Simulator struct {
	atrColumn string
	notional  float64
}

func NewSimulator(cfg Config) *Simulator {
	col := cfg.ATRColumn
	if col == "" {
		col = signal.DefaultColumns().ATR
	}
	return &Simulator{atrColumn: col, notional: cfg.Notional}
}

func (s *Simulator) ATRColumn() string { return s.atrColumn }

type state int

const (
	stateIdle state = iota
	stateOpen
	stateDone
)

func (st state) String() string {
	switch st {
	case stateIdle:
		return "IDLE"
	case stateOpen:
		return "OPEN"
	default:
		return "DONE"
	}
}

type simRun struct {
	tbl                         *bars.Table
	open, high, low, close, atr []float64
	dir                         signal.Direction
	params                      Params

	state    state
	pos      *Trade
	trigger  float64
	trades   []Trade
	realized float64
	lastMark float64
	markIdx  int // 持仓后最后一根有限收盘价的索引，-1 表示尚无
	curve    []float64
}

// Run 回放 sig 并返回交易日志与统计。相同输入总是得到相同输出。
func (s *Simulator) Run(tbl *bars.Table, sig signal.EntrySignal, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if tbl == nil {
		return Result{}, fmt.Errorf("bar table 不能为空")
	}
	if len(sig.Mask) != tbl.Len() {
		return Result{}, fmt.Errorf("signal length %d != bars %d", len(sig.Mask), tbl.Len())
	}
	if err := tbl.Require(append(bars.OHLC(), s.atrColumn)...); err != nil {
		return Result{}, err
	}
	r := &simRun{tbl: tbl, dir: sig.Direction, params: p, state: stateIdle}
	if r.dir != signal.Short {
		r.dir = signal.Long
	}
	r.open, _ = tbl.Column(bars.ColOpen)
	r.high, _ = tbl.Column(bars.ColHigh)
	r.low, _ = tbl.Column(bars.ColLow)
	r.close, _ = tbl.Column(bars.ColClose)
	r.atr, _ = tbl.Column(s.atrColumn)
	r.replay(sig.Mask)

	baseline := s.notional
	if baseline <= 0 && len(r.trades) > 0 {
		baseline = r.trades[0].EntryPrice
	}
	equity := make([]float64, len(r.curve))
	for i, v := range r.curve {
		equity[i] = baseline + v
	}
	summary := Summarize(r.trades)
	summary.MaxDrawdownPct = MaxDrawdownPct(equity, baseline)
	return Result{Trades: r.trades, Summary: summary, Equity: equity}, nil
}

func (r *simRun) replay(mask []bool) {
	n := len(mask)
	r.curve = make([]float64, n)
	pending := -1
	for i := 0; i < n; i++ {
		if r.state == stateIdle && pending >= 0 {
			r.enter(pending, i)
			pending = -1
		}
		if r.state == stateOpen {
			r.step(i)
		}
		// 出场当根的信号仍可在下一根开仓，持仓期间的信号直接忽略。
		if r.state == stateIdle && mask[i] && i+1 < n {
			pending = i
		}
		r.mark(i)
	}
	if r.state == stateOpen {
		r.closeAtEnd()
	}
	r.state = stateDone
}

func (r *simRun) enter(signalIdx, i int) {
	entry := r.open[i]
	atr := r.atr[signalIdx]
	if !finite(entry) || !finite(atr) || atr <= 0 {
		return
	}
	p := r.params
	stop := offsetLevel(entry, p.StopLossATR, atr, r.dir, false)
	target := offsetLevel(entry, p.TakeProfitATR, atr, r.dir, true)
	r.pos = &Trade{
		SignalIndex: signalIdx,
		EntryIndex:  i,
		EntryTime:   r.tbl.Time(i),
		EntryPrice:  entry,
		Direction:   r.dir,
		ATR:         atr,
		InitialStop: stop,
		Stop:        stop,
		Target:      target,
	}
	r.trigger = 0
	r.markIdx = -1
	if p.Breakeven.Enabled {
		if p.Breakeven.ATRMultiple > 0 {
			r.trigger = p.Breakeven.ATRMultiple * atr
		} else {
			r.trigger = excursion(r.dir, entry, target) / 2
		}
	}
	r.state = stateOpen
}

// step 按优先级检查出场：STOP > TARGET > TIME，未出场时再尝试保本。
// high/low 非有限时跳过止损止盈与 MAE/MFE；close 非有限时跳过 TIME。
func (r *simRun) step(i int) {
	t := r.pos
	h, l, c := r.high[i], r.low[i], r.close[i]
	rangeOK := finite(h) && finite(l)
	if rangeOK {
		adverseExtreme, favorableExtreme := l, h
		if r.dir == signal.Short {
			adverseExtreme, favorableExtreme = h, l
		}
		adverse := excursion(r.dir, t.EntryPrice, adverseExtreme)
		favorable := excursion(r.dir, t.EntryPrice, favorableExtreme)

		switch {
		case stopHit(r.dir, h, l, t.Stop):
			t.MAE = math.Min(t.MAE, excursion(r.dir, t.EntryPrice, t.Stop))
			t.MFE = math.Max(t.MFE, math.Min(favorable, excursion(r.dir, t.EntryPrice, t.Target)))
			r.exit(i, t.Stop, ExitStop)
			return
		case targetHit(r.dir, h, l, t.Target):
			t.MAE = math.Min(t.MAE, adverse)
			t.MFE = math.Max(t.MFE, excursion(r.dir, t.EntryPrice, t.Target))
			r.exit(i, t.Target, ExitTarget)
			return
		}
		t.MAE = math.Min(t.MAE, adverse)
		t.MFE = math.Max(t.MFE, favorable)
	}
	if finite(c) && r.params.MaxHoldBars > 0 && i-t.EntryIndex >= r.params.MaxHoldBars {
		r.exit(i, c, ExitTime)
		return
	}
	if rangeOK && r.trigger > 0 && !t.BreakevenArmed && t.MFE >= r.trigger {
		t.BreakevenArmed = true
		if tightens(r.dir, t.EntryPrice, t.Stop) {
			t.Stop = t.EntryPrice
		}
	}
}

// closeAtEnd 以最后一根有限收盘价平仓；持仓后从未出现有限收盘价时按开仓价平仓。
func (r *simRun) closeAtEnd() {
	if r.markIdx < 0 {
		r.exit(r.pos.EntryIndex, r.pos.EntryPrice, ExitEndOfData)
		return
	}
	r.exit(r.markIdx, r.close[r.markIdx], ExitEndOfData)
}

func (r *simRun) exit(i int, price float64, reason ExitReason) {
	t := r.pos
	t.ExitIndex = i
	t.ExitTime = r.tbl.Time(i)
	t.ExitPrice = price
	t.ExitReason = reason
	t.BarsHeld = i - t.EntryIndex
	t.PnL = excursion(t.Direction, t.EntryPrice, price)
	if t.EntryPrice != 0 {
		t.PnLPct = t.PnL / t.EntryPrice * 100
	}
	r.realized += t.PnL
	r.trades = append(r.trades, *t)
	r.pos = nil
	r.state = stateIdle
}

// mark 记录第 i 根收盘时的累计盈亏（已实现 + 浮动）。
func (r *simRun) mark(i int) {
	unrealized := 0.0
	if r.state == stateOpen {
		if c := r.close[i]; finite(c) {
			r.lastMark = excursion(r.dir, r.pos.EntryPrice, c)
			r.markIdx = i
		}
		unrealized = r.lastMark
	} else {
		r.lastMark = 0
	}
	r.curve[i] = r.realized + unrealized
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
