package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

type ohlc struct{ o, h, l, c float64 }

func buildTable(t *testing.T, rows []ohlc, atr float64) *bars.Table {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	list := make([]bars.Bar, len(rows))
	for i, r := range rows {
		list[i] = bars.Bar{
			Time: start.Add(time.Duration(i) * time.Hour),
			Open: r.o, High: r.h, Low: r.l, Close: r.c, Volume: 1,
			Fields: map[string]float64{"atr_14": atr},
		}
	}
	return bars.NewTable(list)
}

func maskAt(n int, idx ...int) []bool {
	m := make([]bool, n)
	for _, i := range idx {
		m[i] = true
	}
	return m
}

func flatRows(n int) []ohlc {
	rows := make([]ohlc, n)
	for i := range rows {
		rows[i] = ohlc{100, 101, 99, 100}
	}
	return rows
}

var baseParams = Params{StopLossATR: 1.2, TakeProfitATR: 1.5}

func TestSimulator_TargetScenario(t *testing.T) {
	rows := flatRows(10)
	rows[4] = ohlc{100.5, 101.5, 99.5, 101}
	rows[5] = ohlc{101, 102.5, 100.5, 102}
	rows[6] = ohlc{102, 103.6, 101.5, 103}
	tbl := buildTable(t, rows, 2.0)

	res, err := NewSimulator(Config{}).Run(tbl, signal.EntrySignal{Mask: maskAt(10, 3), Direction: signal.Long}, baseParams)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, 3, tr.SignalIndex)
	assert.Equal(t, 4, tr.EntryIndex)
	assert.Equal(t, rows[4].o, tr.EntryPrice)
	assert.InDelta(t, tr.EntryPrice-2.4, tr.Stop, 1e-9)
	assert.InDelta(t, tr.EntryPrice+3.0, tr.Target, 1e-9)
	assert.Equal(t, ExitTarget, tr.ExitReason)
	assert.Equal(t, 6, tr.ExitIndex)
	assert.InDelta(t, 103.5, tr.ExitPrice, 1e-9)
	assert.Equal(t, 2, tr.BarsHeld)
	assert.InDelta(t, 3.0, tr.PnL, 1e-9)
	assert.InDelta(t, -1.0, tr.MAE, 1e-9)
	assert.InDelta(t, 3.0, tr.MFE, 1e-9)

	assert.Equal(t, 1, res.Summary.Wins)
	assert.Equal(t, PFInfinite, res.Summary.PFState)
	assert.True(t, math.IsInf(res.Summary.ProfitFactor, 1))
	assert.Equal(t, 100.0, res.Summary.WinRate)
	require.Len(t, res.Equity, 10)
	assert.InDelta(t, 103.5, res.Equity[9], 1e-9)
}

func TestSimulator_StopWinsTie(t *testing.T) {
	rows := flatRows(10)
	rows[4] = ohlc{100.5, 101.5, 99.5, 101}
	rows[5] = ohlc{101, 104, 98, 100}
	tbl := buildTable(t, rows, 2.0)

	res, err := NewSimulator(Config{}).Run(tbl, signal.EntrySignal{Mask: maskAt(10, 3), Direction: signal.Long}, baseParams)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.Equal(t, ExitStop, tr.ExitReason)
	assert.InDelta(t, 98.1, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -2.4, tr.PnL, 1e-9)
	assert.InDelta(t, -2.4, tr.MAE, 1e-9)
	assert.InDelta(t, 3.0, tr.MFE, 1e-9)
	assert.Equal(t, PFUndefined, Summarize(nil).PFState)
	assert.Equal(t, PFFinite, res.Summary.PFState)
	assert.Equal(t, 0.0, res.Summary.ProfitFactor)
}

func TestSimulator_Short(t *testing.T) {
	rows := flatRows(10)
	rows[4] = ohlc{100.5, 101, 99, 99.5}
	rows[5] = ohlc{99.5, 100, 97.5, 98}
	tbl := buildTable(t, rows, 2.0)

	res, err := NewSimulator(Config{}).Run(tbl, signal.EntrySignal{Mask: maskAt(10, 3), Direction: signal.Short}, baseParams)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.InDelta(t, 102.9, tr.Stop, 1e-9)
	assert.InDelta(t, 97.5, tr.Target, 1e-9)
	assert.Equal(t, ExitTarget, tr.ExitReason)
	assert.InDelta(t, 3.0, tr.PnL, 1e-9)
	assert.InDelta(t, -0.5, tr.MAE, 1e-9)
}

func TestSimulator_TimeAndEndOfData(t *testing.T) {
	tbl := buildTable(t, flatRows(10), 2.0)
	sim := NewSimulator(Config{Notional: 1000})

	t.Run("time exit at close", func(t *testing.T) {
		p := baseParams
		p.MaxHoldBars = 2
		res, err := sim.Run(tbl, signal.EntrySignal{Mask: maskAt(10, 3), Direction: signal.Long}, p)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		assert.Equal(t, ExitTime, res.Trades[0].ExitReason)
		assert.Equal(t, 6, res.Trades[0].ExitIndex)
		assert.Equal(t, 100.0, res.Trades[0].ExitPrice)
		assert.Equal(t, 1, res.Summary.ExitReasons[ExitTime])
	})

	t.Run("open at final bar", func(t *testing.T) {
		res, err := sim.Run(tbl, signal.EntrySignal{Mask: maskAt(10, 7), Direction: signal.Long}, baseParams)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		tr := res.Trades[0]
		assert.Equal(t, ExitEndOfData, tr.ExitReason)
		assert.Equal(t, 9, tr.ExitIndex)
		assert.Equal(t, 100.0, tr.ExitPrice)
		assert.Equal(t, 1000.0, res.Equity[0])
	})

	t.Run("signal on last bar dropped", func(t *testing.T) {
		res, err := sim.Run(tbl, signal.EntrySignal{Mask: maskAt(10, 9), Direction: signal.Long}, baseParams)
		require.NoError(t, err)
		assert.Empty(t, res.Trades)
		assert.Equal(t, PFUndefined, res.Summary.PFState)
		assert.Equal(t, 0.0, res.Summary.WinRate)
	})
}

func TestSimulator_Breakeven(t *testing.T) {
	rows := flatRows(10)
	rows[4] = ohlc{100.5, 101.5, 99.5, 101}
	rows[5] = ohlc{101, 102, 100.4, 100.8}
	tbl := buildTable(t, rows, 2.0)
	p := baseParams
	p.Breakeven = Breakeven{Enabled: true, ATRMultiple: 0.5}

	res, err := NewSimulator(Config{}).Run(tbl, signal.EntrySignal{Mask: maskAt(10, 3), Direction: signal.Long}, p)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	tr := res.Trades[0]
	assert.True(t, tr.BreakevenArmed)
	assert.Equal(t, ExitStop, tr.ExitReason)
	assert.Equal(t, 5, tr.ExitIndex)
	assert.Equal(t, tr.EntryPrice, tr.ExitPrice)
	assert.InDelta(t, 98.1, tr.InitialStop, 1e-9)
	assert.Equal(t, 0.0, tr.PnL)
	assert.Equal(t, 0, res.Summary.Wins)
	assert.Equal(t, 0, res.Summary.Losses)
}

func TestSimulator_Invariants(t *testing.T) {
	rows := make([]ohlc, 60)
	for i := range rows {
		base := 100 + 5*math.Sin(float64(i)/3)
		rows[i] = ohlc{base, base + 1.5, base - 1.5, base + 0.3}
	}
	tbl := buildTable(t, rows, 1.0)
	mask := make([]bool, len(rows))
	for i := range mask {
		mask[i] = i%2 == 0
	}
	sim := NewSimulator(Config{})
	p := Params{StopLossATR: 1, TakeProfitATR: 2, MaxHoldBars: 5}

	res, err := sim.Run(tbl, signal.EntrySignal{Mask: mask, Direction: signal.Long}, p)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	t.Run("no overlap and next open entry", func(t *testing.T) {
		prevExit := -1
		for _, tr := range res.Trades {
			assert.Greater(t, tr.EntryIndex, prevExit)
			assert.Equal(t, tr.SignalIndex+1, tr.EntryIndex)
			assert.Equal(t, rows[tr.EntryIndex].o, tr.EntryPrice)
			assert.LessOrEqual(t, tr.MAE, 0.0)
			assert.GreaterOrEqual(t, tr.MFE, 0.0)
			prevExit = tr.ExitIndex
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		again, err := sim.Run(tbl, signal.EntrySignal{Mask: mask, Direction: signal.Long}, p)
		require.NoError(t, err)
		assert.Equal(t, res.Trades, again.Trades)
		assert.Equal(t, res.Summary.Trades, again.Summary.Trades)
		assert.Equal(t, res.Summary.MaxDrawdownPct, again.Summary.MaxDrawdownPct)
		assert.Equal(t, res.Equity, again.Equity)
	})
}

func TestSimulator_SkipsNonFiniteATR(t *testing.T) {
	rows := flatRows(6)
	tbl := buildTable(t, rows, math.NaN())
	res, err := NewSimulator(Config{}).Run(tbl, signal.EntrySignal{Mask: maskAt(6, 1), Direction: signal.Long}, baseParams)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestSimulator_NonFiniteBars(t *testing.T) {
	nan := math.NaN()
	sim := NewSimulator(Config{})
	long := func(n int, idx ...int) signal.EntrySignal {
		return signal.EntrySignal{Mask: maskAt(n, idx...), Direction: signal.Long}
	}

	t.Run("gap in range mid-trade is skipped", func(t *testing.T) {
		rows := flatRows(8)
		rows[3] = ohlc{100, nan, 98, 100}
		res, err := sim.Run(buildTable(t, rows, 2.0), long(8, 1), baseParams)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		tr := res.Trades[0]
		assert.Equal(t, ExitEndOfData, tr.ExitReason)
		assert.Equal(t, 7, tr.ExitIndex)
		assert.InDelta(t, -1.0, tr.MAE, 1e-9)
		assert.InDelta(t, 1.0, tr.MFE, 1e-9)
	})

	t.Run("gap in range keeps time exit", func(t *testing.T) {
		rows := flatRows(8)
		rows[4] = ohlc{100, nan, nan, 100.5}
		p := baseParams
		p.MaxHoldBars = 2
		res, err := sim.Run(buildTable(t, rows, 2.0), long(8, 1), p)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		tr := res.Trades[0]
		assert.Equal(t, ExitTime, tr.ExitReason)
		assert.Equal(t, 4, tr.ExitIndex)
		assert.Equal(t, 2, tr.BarsHeld)
		assert.Equal(t, 100.5, tr.ExitPrice)
	})

	t.Run("missing final close exits at last finite close", func(t *testing.T) {
		rows := flatRows(6)
		rows[4] = ohlc{100, 101, 99, 101}
		rows[5].c = nan
		res, err := sim.Run(buildTable(t, rows, 2.0), long(6, 1), baseParams)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		tr := res.Trades[0]
		assert.Equal(t, ExitEndOfData, tr.ExitReason)
		assert.Equal(t, 4, tr.ExitIndex)
		assert.Equal(t, 2, tr.BarsHeld)
		assert.Equal(t, 101.0, tr.ExitPrice)
		assert.InDelta(t, 1.0, tr.PnL, 1e-9)

		assert.InDelta(t, 1.0, res.Summary.TotalPnL, 1e-9)
		assert.Equal(t, PFInfinite, res.Summary.PFState)
		assert.Equal(t, 1, res.Summary.Wins)
		for i, v := range res.Equity {
			assert.False(t, math.IsNaN(v), "equity[%d]", i)
		}
	})

	t.Run("no finite close after entry exits flat", func(t *testing.T) {
		rows := flatRows(4)
		rows[2].c = nan
		rows[3].c = nan
		res, err := sim.Run(buildTable(t, rows, 2.0), long(4, 1), baseParams)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		tr := res.Trades[0]
		assert.Equal(t, ExitEndOfData, tr.ExitReason)
		assert.Equal(t, 2, tr.ExitIndex)
		assert.Equal(t, tr.EntryPrice, tr.ExitPrice)
		assert.Zero(t, tr.PnL)
		assert.False(t, math.IsNaN(res.Summary.TotalPnL))
	})

	t.Run("missing entry open drops the signal", func(t *testing.T) {
		rows := flatRows(8)
		rows[2].o = nan
		res, err := sim.Run(buildTable(t, rows, 2.0), long(8, 1, 3), baseParams)
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		assert.Equal(t, 3, res.Trades[0].SignalIndex)
		assert.Equal(t, 4, res.Trades[0].EntryIndex)
	})
}

func TestSimulator_Errors(t *testing.T) {
	tbl := buildTable(t, flatRows(5), 2.0)
	sim := NewSimulator(Config{})

	_, err := sim.Run(tbl, signal.EntrySignal{Mask: maskAt(4)}, baseParams)
	assert.Error(t, err)

	_, err = sim.Run(tbl, signal.EntrySignal{Mask: maskAt(5)}, Params{StopLossATR: 0, TakeProfitATR: 1})
	assert.Error(t, err)

	_, err = NewSimulator(Config{ATRColumn: "atr_21"}).Run(tbl, signal.EntrySignal{Mask: maskAt(5)}, baseParams)
	assert.ErrorIs(t, err, bars.ErrMissingColumn)
}
