package backtest

import (
	"time"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// ExitReason 平仓原因。
type ExitReason string

const (
	ExitStop      ExitReason = "STOP"
	ExitTarget    ExitReason = "TARGET"
	ExitTime      ExitReason = "TIME"
	ExitEndOfData ExitReason = "END_OF_DATA"
)

// ExitReasons 按固定顺序列出全部原因。
func ExitReasons() []ExitReason {
	return []ExitReason{ExitStop, ExitTarget, ExitTime, ExitEndOfData}
}

// Trade 是一次完整的开平仓记录。
type Trade struct {
	SignalIndex    int              `json:"signal_index"`
	EntryIndex     int              `json:"entry_index"`
	EntryTime      time.Time        `json:"entry_time"`
	EntryPrice     float64          `json:"entry_price"`
	Direction      signal.Direction `json:"direction"`
	ATR            float64          `json:"atr"`
	InitialStop    float64          `json:"initial_stop"`
	Stop           float64          `json:"stop"`
	Target         float64          `json:"target"`
	ExitIndex      int              `json:"exit_index"`
	ExitTime       time.Time        `json:"exit_time"`
	ExitPrice      float64          `json:"exit_price"`
	ExitReason     ExitReason       `json:"exit_reason"`
	BarsHeld       int              `json:"bars_held"`
	MAE            float64          `json:"mae"`
	MFE            float64          `json:"mfe"`
	PnL            float64          `json:"pnl"`
	PnLPct         float64          `json:"pnl_pct"`
	BreakevenArmed bool             `json:"breakeven_armed"`
}

// Win 盈利（PnL > 0）。
func (t Trade) Win() bool { return t.PnL > 0 }
