package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(tbl *bars.Table, sig signal.EntrySignal, p backtest.Params) (backtest.Result, error) {
	args := m.Called(tbl, sig, p)
	return args.Get(0).(backtest.Result), args.Error(1)
}

func waveTable(t *testing.T, n int, patternEvery int) *bars.Table {
	t.Helper()
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	list := make([]bars.Bar, n)
	for i := range list {
		base := 1900 + 30*math.Sin(float64(i)/6) + float64(i)*0.2
		pattern := 0.0
		if patternEvery > 0 && i%patternEvery == 0 {
			pattern = 1
		}
		list[i] = bars.Bar{
			Time: start.AddDate(0, 0, i),
			Open: base, High: base + 8, Low: base - 8, Close: base + 2, Volume: 1000,
			Fields: map[string]float64{
				"pattern_hammer": pattern,
				"atr_14":         10,
				"rsi_14":         50 + 20*math.Sin(float64(i)/4),
				"adx_14":         15 + float64(i%20),
				"atr_pct_14":     0.5 + float64(i%10)/5,
				"dist_ema20":     float64(i%7) / 3,
				"volume_ratio":   0.6 + float64(i%5)/5,
				"ema_20":         base,
				"ema_50":         base - 5*math.Cos(float64(i)/9),
			},
		}
	}
	return bars.NewTable(list)
}

func smallSpace(t *testing.T) *Space {
	t.Helper()
	s, err := NewSpace(Ranges{
		StopLossATR:    []float64{1, 1.5},
		TakeProfitATR:  []float64{1.5, 2.5},
		MaxHoldBars:    []int{0, 8},
		Trend:          []string{"none", "ema_20 > ema_50"},
		MinRSI:         []signal.Level{signal.None(), signal.At(45)},
		MinADX:         []signal.Level{signal.None(), signal.At(20)},
		MinVolumeRatio: []signal.Level{signal.None(), signal.At(1.0)},
	})
	require.NoError(t, err)
	return s
}

func TestEvaluator_NoSignalsSkipsRunner(t *testing.T) {
	tbl := waveTable(t, 40, 0)
	runner := new(MockRunner)
	ev := NewEvaluator(signal.NewCombiner(signal.Columns{}, signal.Long), runner, Options{Pattern: "pattern_hammer", Workers: 2})

	s, err := NewSpace(Ranges{StopLossATR: []float64{1}, TakeProfitATR: []float64{2}, MinADX: []signal.Level{signal.None(), signal.At(20)}})
	require.NoError(t, err)
	report, err := ev.Run(context.Background(), tbl, s)
	require.NoError(t, err)

	assert.Empty(t, report.Passed())
	diags := report.Diagnostics()
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, ReasonNoSignals, d.Reason)
		assert.Nil(t, d.Summary)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluator_RejectionCarriesMetrics(t *testing.T) {
	tbl := waveTable(t, 40, 5)
	runner := new(MockRunner)
	summary := backtest.Summary{Trades: 8, Wins: 5, WinRate: 62.5, ProfitFactor: 1.1, PFState: backtest.PFFinite, MaxDrawdownPct: 4}
	runner.On("Run", tbl, mock.AnythingOfType("signal.EntrySignal"), mock.MatchedBy(func(p backtest.Params) bool {
		return p.StopLossATR == 1.2 && p.TakeProfitATR == 1.5
	})).Return(backtest.Result{Summary: summary}, nil).Once()

	ev := NewEvaluator(signal.NewCombiner(signal.Columns{}, signal.Long), runner, Options{
		Pattern:    "pattern_hammer",
		Workers:    1,
		Objectives: Objectives{MinTrades: 5, MinProfitFactor: 1.5},
	})
	out := ev.Evaluate(tbl, 4, Combination{StopLossATR: 1.2, TakeProfitATR: 1.5})
	require.NotNil(t, out.Diagnostic)
	assert.Nil(t, out.Result)
	assert.Equal(t, ReasonBelowMinPF, out.Diagnostic.Reason)
	assert.Equal(t, 4, out.Diagnostic.Index)
	assert.Equal(t, 8, out.Diagnostic.Signals)
	require.NotNil(t, out.Diagnostic.Summary)
	assert.Equal(t, 1.1, out.Diagnostic.Summary.ProfitFactor)
	runner.AssertExpectations(t)
}

func TestEvaluator_IsolatesFailures(t *testing.T) {
	tbl := waveTable(t, 40, 5)
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, mock.Anything, mock.MatchedBy(func(p backtest.Params) bool { return p.StopLossATR == 1 })).
		Panic("boom")
	runner.On("Run", mock.Anything, mock.Anything, mock.MatchedBy(func(p backtest.Params) bool { return p.StopLossATR == 2 })).
		Return(backtest.Result{}, errors.New("bad params"))
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
		Return(backtest.Result{Summary: backtest.Summary{Trades: 3, PFState: backtest.PFInfinite, WinRate: 100}}, nil)

	s, err := NewSpace(Ranges{StopLossATR: []float64{1, 2, 3}, TakeProfitATR: []float64{2}})
	require.NoError(t, err)
	ev := NewEvaluator(signal.NewCombiner(signal.Columns{}, signal.Long), runner, Options{Pattern: "pattern_hammer", Workers: 3})
	report, err := ev.Run(context.Background(), tbl, s)
	require.NoError(t, err)

	diags := report.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, ReasonInternalError, diags[0].Reason)
	assert.Contains(t, diags[0].Message, "boom")
	assert.Equal(t, ReasonInternalError, diags[1].Reason)
	assert.Equal(t, "bad params", diags[1].Message)
	passed := report.Passed()
	require.Len(t, passed, 1)
	assert.Equal(t, 2, passed[0].Index)
}

func TestEvaluator_FailsFastOnMissingColumn(t *testing.T) {
	tbl := waveTable(t, 30, 5)
	runner := new(MockRunner)
	ev := NewEvaluator(signal.NewCombiner(signal.Columns{}, signal.Long), runner, Options{Pattern: "pattern_hammer"})

	s, err := NewSpace(Ranges{
		StopLossATR:   []float64{1},
		TakeProfitATR: []float64{2},
		Trend:         []string{"none", "ema_20 > ema_200"},
	})
	require.NoError(t, err)
	_, err = ev.Run(context.Background(), tbl, s)
	var missing *bars.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "ema_200", missing.Column)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluator_Limits(t *testing.T) {
	tbl := waveTable(t, 30, 5)
	sim := backtest.NewSimulator(backtest.Config{})
	combiner := signal.NewCombiner(signal.Columns{}, signal.Long)

	t.Run("max combinations", func(t *testing.T) {
		ev := NewEvaluator(combiner, sim, Options{Pattern: "pattern_hammer", MaxCombinations: 10})
		_, err := ev.Run(context.Background(), tbl, smallSpace(t))
		assert.ErrorIs(t, err, ErrSpaceTooLarge)
	})

	t.Run("empty space", func(t *testing.T) {
		s, err := NewSpace(Ranges{})
		require.NoError(t, err)
		report, err := NewEvaluator(combiner, sim, Options{Pattern: "missing"}).Run(context.Background(), tbl, s)
		require.NoError(t, err)
		assert.Empty(t, report.Passed())
		assert.Empty(t, report.Diagnostics())
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := NewEvaluator(combiner, sim, Options{Pattern: "pattern_hammer"}).Run(ctx, tbl, smallSpace(t))
		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, report)
		assert.Less(t, report.Evaluated(), smallSpace(t).ValidCount())
	})
}

func TestEvaluator_DeterministicAcrossWorkers(t *testing.T) {
	tbl := waveTable(t, 120, 4)
	sim := backtest.NewSimulator(backtest.Config{})
	combiner := signal.NewCombiner(signal.Columns{}, signal.Long)
	opts := Options{Pattern: "pattern_hammer", Objectives: Objectives{MinTrades: 3}}

	run := func(workers int) *Report {
		o := opts
		o.Workers = workers
		report, err := NewEvaluator(combiner, sim, o).Run(context.Background(), tbl, smallSpace(t))
		require.NoError(t, err)
		return report
	}
	serial, parallel := run(1), run(8)

	assert.Equal(t, smallSpace(t).ValidCount(), serial.Evaluated())
	assert.NotEmpty(t, serial.Passed())
	assert.Equal(t, serial.Passed(), parallel.Passed())
	assert.Equal(t, serial.Diagnostics(), parallel.Diagnostics())
	assert.Equal(t, serial.ReasonCounts(), parallel.ReasonCounts())

	passed := serial.Passed()
	for i := 1; i < len(passed); i++ {
		assert.False(t, Less(passed[i], passed[i-1]))
	}
}

func TestEvaluator_SignalsWithoutTradesRejected(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	list := make([]bars.Bar, 6)
	for i := range list {
		list[i] = bars.Bar{
			Time: start.AddDate(0, 0, i),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1,
			Fields: map[string]float64{"pattern_hammer": 0, "atr_14": 2},
		}
	}
	list[2].Fields["pattern_hammer"] = 1
	list[3].Open = math.NaN()
	tbl := bars.NewTable(list)

	ev := NewEvaluator(signal.NewCombiner(signal.Columns{}, signal.Long), backtest.NewSimulator(backtest.Config{}), Options{Pattern: "pattern_hammer", Workers: 1})
	out := ev.Evaluate(tbl, 0, Combination{StopLossATR: 1, TakeProfitATR: 2})
	require.NotNil(t, out.Diagnostic)
	assert.Nil(t, out.Result)
	assert.Equal(t, ReasonBelowMinTrades, out.Diagnostic.Reason)
	assert.Equal(t, 1, out.Diagnostic.Signals)
	require.NotNil(t, out.Diagnostic.Summary)
	assert.Zero(t, out.Diagnostic.Summary.Trades)
}
