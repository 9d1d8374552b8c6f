package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfitFactor(t *testing.T) {
	pf, st := ProfitFactor(30, 10)
	assert.Equal(t, 3.0, pf)
	assert.Equal(t, PFFinite, st)

	pf, st = ProfitFactor(5, 0)
	assert.True(t, math.IsInf(pf, 1))
	assert.Equal(t, PFInfinite, st)

	pf, st = ProfitFactor(0, 0)
	assert.True(t, math.IsNaN(pf))
	assert.Equal(t, PFUndefined, st)
}

func TestSummarize(t *testing.T) {
	trades := []Trade{
		{PnL: 3, BarsHeld: 2, ExitReason: ExitTarget, MAE: -1, MFE: 3},
		{PnL: 2, BarsHeld: 4, ExitReason: ExitTime, MAE: -0.5, MFE: 2.5},
	}
	s := Summarize(trades)
	assert.Equal(t, 2, s.Trades)
	assert.Equal(t, 100.0, s.WinRate)
	assert.Equal(t, PFInfinite, s.PFState)
	assert.Equal(t, "inf", s.ProfitFactorString())
	assert.Equal(t, 3.0, s.AvgBarsHeld)
	assert.Equal(t, 2.5, s.AvgPnL)
	assert.Equal(t, 1, s.ExitReasons[ExitTarget])
	assert.Equal(t, 0, s.ExitReasons[ExitStop])

	trades = append(trades, Trade{PnL: -2.5, ExitReason: ExitStop})
	s = Summarize(trades)
	assert.Equal(t, 2.0, s.ProfitFactor)
	assert.Equal(t, "2.0000", s.ProfitFactorString())
	assert.InDelta(t, 66.6667, s.WinRate, 1e-3)
}

func TestMaxDrawdownPct(t *testing.T) {
	assert.InDelta(t, 10.0, MaxDrawdownPct([]float64{100, 110, 99, 105}, 100), 1e-9)
	assert.InDelta(t, 5.0, MaxDrawdownPct([]float64{95, 97}, 100), 1e-9)
	assert.Equal(t, 0.0, MaxDrawdownPct(nil, 100))
	assert.Equal(t, 0.0, MaxDrawdownPct([]float64{-5, -10}, 0))
}
