package optimizer

import (
	"fmt"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
)

// Reason 是组合被拒绝的原因码。
type Reason string

const (
	ReasonNoSignals      Reason = "NO_SIGNALS"
	ReasonBelowMinTrades Reason = "BELOW_MIN_TRADES"
	ReasonBelowMinPF     Reason = "BELOW_MIN_PF"
	ReasonAboveMaxDD     Reason = "ABOVE_MAX_DD"
	ReasonBelowMinWR     Reason = "BELOW_MIN_WR"
	ReasonInternalError  Reason = "INTERNAL_ERROR"
)

// Reasons 按判定顺序列出全部原因码。
func Reasons() []Reason {
	return []Reason{
		ReasonNoSignals, ReasonBelowMinTrades, ReasonBelowMinPF,
		ReasonAboveMaxDD, ReasonBelowMinWR, ReasonInternalError,
	}
}

// Result 是通过全部筛选的组合。
type Result struct {
	Index       int              `json:"index"`
	Combination Combination      `json:"combination"`
	Signals     int              `json:"signals"`
	Summary     backtest.Summary `json:"summary"`
}

// Diagnostic 记录被拒绝组合及触发拒绝的指标快照。
// Summary 在 NO_SIGNALS 与多数 INTERNAL_ERROR 情况下为 nil。
type Diagnostic struct {
	Index       int               `json:"index"`
	Combination Combination       `json:"combination"`
	Reason      Reason            `json:"reason"`
	Message     string            `json:"message,omitempty"`
	Signals     int               `json:"signals"`
	Summary     *backtest.Summary `json:"summary,omitempty"`
}

// Outcome 是单个组合的评估结果，二者恰有一个非空。
type Outcome struct {
	Result     *Result
	Diagnostic *Diagnostic
}

func (o Outcome) Index() int {
	if o.Result != nil {
		return o.Result.Index
	}
	if o.Diagnostic != nil {
		return o.Diagnostic.Index
	}
	return -1
}

// Objectives 是通过条件，<=0 的阈值视为未启用。WinRate 以百分比表示。
type Objectives struct {
	MinTrades       int     `toml:"min_trades" json:"min_trades" yaml:"min_trades"`
	MinProfitFactor float64 `toml:"min_profit_factor" json:"min_profit_factor" yaml:"min_profit_factor"`
	MaxDrawdownPct  float64 `toml:"max_drawdown_pct" json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MinWinRate      float64 `toml:"min_win_rate" json:"min_win_rate" yaml:"min_win_rate"`
}

// Check 按固定顺序检查统计，返回第一个不满足的条件。
// 没有成交的组合总是记为 BELOW_MIN_TRADES，即使 MinTrades 被关闭。
func (o Objectives) Check(s backtest.Summary) (Reason, string, bool) {
	if s.Trades == 0 {
		return ReasonBelowMinTrades, "no trades", false
	}
	if o.MinTrades > 0 && s.Trades < o.MinTrades {
		return ReasonBelowMinTrades, fmt.Sprintf("trades %d < %d", s.Trades, o.MinTrades), false
	}
	if o.MinProfitFactor > 0 {
		switch s.PFState {
		case backtest.PFUndefined:
			return ReasonBelowMinPF, fmt.Sprintf("profit factor undefined < %.2f", o.MinProfitFactor), false
		case backtest.PFFinite:
			if s.ProfitFactor < o.MinProfitFactor {
				return ReasonBelowMinPF, fmt.Sprintf("profit factor %.4f < %.2f", s.ProfitFactor, o.MinProfitFactor), false
			}
		}
	}
	if o.MaxDrawdownPct > 0 && s.MaxDrawdownPct > o.MaxDrawdownPct {
		return ReasonAboveMaxDD, fmt.Sprintf("max drawdown %.2f%% > %.2f%%", s.MaxDrawdownPct, o.MaxDrawdownPct), false
	}
	if o.MinWinRate > 0 && s.WinRate < o.MinWinRate {
		return ReasonBelowMinWR, fmt.Sprintf("win rate %.2f%% < %.2f%%", s.WinRate, o.MinWinRate), false
	}
	return "", "", true
}
