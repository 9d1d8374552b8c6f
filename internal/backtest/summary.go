package backtest

import (
	"fmt"
	"math"
	"strconv"
)

// PFState 区分盈亏比的三种情况。
type PFState int

const (
	PFFinite PFState = iota
	// PFInfinite 有盈利且无亏损，ProfitFactor 为 +Inf。
	PFInfinite
	// PFUndefined 既无盈利也无亏损，ProfitFactor 为 NaN。
	PFUndefined
)

func (s PFState) String() string {
	switch s {
	case PFInfinite:
		return "infinite"
	case PFUndefined:
		return "undefined"
	default:
		return "finite"
	}
}

func (s PFState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PFState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "finite", "":
		*s = PFFinite
	case "infinite":
		*s = PFInfinite
	case "undefined":
		*s = PFUndefined
	default:
		return fmt.Errorf("unknown pf state %q", text)
	}
	return nil
}

// Summary 汇总交易日志。WinRate 为百分比 (0-100)。
type Summary struct {
	Trades         int                `json:"trades"`
	Wins           int                `json:"wins"`
	Losses         int                `json:"losses"`
	WinRate        float64            `json:"win_rate"`
	GrossProfit    float64            `json:"gross_profit"`
	GrossLoss      float64            `json:"gross_loss"`
	ProfitFactor   float64            `json:"-"`
	PFState        PFState            `json:"pf_state"`
	MaxDrawdownPct float64            `json:"max_drawdown_pct"`
	AvgBarsHeld    float64            `json:"avg_bars_held"`
	ExitReasons    map[ExitReason]int `json:"exit_reasons"`
	TotalPnL       float64            `json:"total_pnl"`
	AvgPnL         float64            `json:"avg_pnl"`
	AvgMAE         float64            `json:"avg_mae"`
	AvgMFE         float64            `json:"avg_mfe"`
}

// ProfitFactorString 用于导出：inf / undefined / 数值。
func (s Summary) ProfitFactorString() string {
	switch s.PFState {
	case PFInfinite:
		return "inf"
	case PFUndefined:
		return "undefined"
	default:
		return strconv.FormatFloat(s.ProfitFactor, 'f', 4, 64)
	}
}

// ProfitFactor 按 gross profit / gross loss 计算，处理除零。
func ProfitFactor(grossProfit, grossLoss float64) (float64, PFState) {
	switch {
	case grossLoss > 0:
		return grossProfit / grossLoss, PFFinite
	case grossProfit > 0:
		return math.Inf(1), PFInfinite
	default:
		return math.NaN(), PFUndefined
	}
}

// Summarize 计算除回撤以外的统计项。
func Summarize(trades []Trade) Summary {
	s := Summary{ExitReasons: make(map[ExitReason]int, 4)}
	for _, reason := range ExitReasons() {
		s.ExitReasons[reason] = 0
	}
	s.Trades = len(trades)
	var held, mae, mfe float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			s.Wins++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.Losses++
			s.GrossLoss += -t.PnL
		}
		s.TotalPnL += t.PnL
		s.ExitReasons[t.ExitReason]++
		held += float64(t.BarsHeld)
		mae += t.MAE
		mfe += t.MFE
	}
	s.ProfitFactor, s.PFState = ProfitFactor(s.GrossProfit, s.GrossLoss)
	if s.Trades > 0 {
		n := float64(s.Trades)
		s.WinRate = float64(s.Wins) / n * 100
		s.AvgBarsHeld = held / n
		s.AvgPnL = s.TotalPnL / n
		s.AvgMAE = mae / n
		s.AvgMFE = mfe / n
	}
	return s
}

// MaxDrawdownPct 返回权益曲线的最大回撤百分比，峰值从 baseline 起算。
func MaxDrawdownPct(equity []float64, baseline float64) float64 {
	peak := baseline
	worst := 0.0
	for _, eq := range equity {
		if eq > peak {
			peak = eq
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - eq) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}
