package features

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

func waveBars(n int) []bars.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]bars.Bar, n)
	for i := range out {
		mid := 100 + 5*math.Sin(float64(i)/7) + float64(i)*0.05
		out[i] = bars.Bar{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   mid - 0.3,
			High:   mid + 1,
			Low:    mid - 1,
			Close:  mid + 0.3,
			Volume: 1000 + float64(i%10)*10,
		}
	}
	return out
}

func TestEnrich_Columns(t *testing.T) {
	tbl := bars.NewTable(waveBars(120))
	out, warnings, err := Enrich(context.Background(), tbl)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 120, out.Len())

	want := append([]string{
		"atr_14", "atr_pct_14", "rsi_14", "adx_14", "plus_di_14", "minus_di_14",
		"ema_20", "ema_50", "ema_200", "volume_sma_20", "volume_ratio", "dist_ema20",
		"trend_ema_bull_short", "trend_ema_bear_short",
	}, Patterns()...)
	require.NoError(t, out.Require(want...))
	assert.False(t, tbl.HasColumn("atr_14"), "source table untouched")

	t.Run("warm-up is NaN", func(t *testing.T) {
		for i := 0; i < 14; i++ {
			assert.True(t, math.IsNaN(out.Value("atr_14", i)), "atr_14[%d]", i)
			assert.True(t, math.IsNaN(out.Value("rsi_14", i)), "rsi_14[%d]", i)
		}
		for i := 0; i < 19; i++ {
			assert.True(t, math.IsNaN(out.Value("ema_20", i)), "ema_20[%d]", i)
			assert.True(t, math.IsNaN(out.Value("volume_ratio", i)), "volume_ratio[%d]", i)
		}
		for i := 0; i < 120; i++ {
			assert.True(t, math.IsNaN(out.Value("ema_200", i)))
		}
		assert.True(t, math.IsNaN(out.Value("trend_ema_bull_short", 10)))
	})

	t.Run("values after warm-up", func(t *testing.T) {
		i := 80
		require.True(t, out.Finite(i, "atr_14", "rsi_14", "adx_14", "ema_20", "ema_50", "dist_ema20"))
		assert.InDelta(t, out.Value("atr_14", i)/out.Value(bars.ColClose, i)*100, out.Value("atr_pct_14", i), 1e-9)
		dist := math.Abs(out.Value(bars.ColClose, i)-out.Value("ema_20", i)) / out.Value("atr_14", i)
		assert.InDelta(t, dist, out.Value("dist_ema20", i), 1e-9)
		bull, bear := out.Value("trend_ema_bull_short", i), out.Value("trend_ema_bear_short", i)
		assert.Equal(t, out.Value("ema_20", i) > out.Value("ema_50", i), bull == 1)
		assert.LessOrEqual(t, bull+bear, 1.0)
		rsi := out.Value("rsi_14", i)
		assert.True(t, rsi >= 0 && rsi <= 100)
	})

	t.Run("short history", func(t *testing.T) {
		short, _, err := Enrich(context.Background(), bars.NewTable(waveBars(10)))
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			assert.False(t, short.Finite(i, "atr_14"))
			assert.False(t, short.Finite(i, "adx_14"))
		}
	})
}

func TestPatternStep(t *testing.T) {
	at := func(o, h, l, c float64) bars.Bar { return bars.Bar{Open: o, High: h, Low: l, Close: c, Volume: 1} }
	list := []bars.Bar{
		at(10, 12, 8, 9),         // 0 bearish
		at(8.5, 11.5, 8.2, 11),   // 1 inside + bullish engulfing
		at(11, 13, 7, 12),        // 2 outside
		at(12, 12.12, 6.5, 12.1), // 3 hammer
		at(12, 14, 11.88, 11.9),  // 4 shooting star
	}
	tbl := bars.NewTable(list)
	out, warnings, err := Run(context.Background(), tbl, PatternStep{})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	cases := []struct {
		name string
		col  string
		want []float64
	}{
		{"inside bar", PatternInsideBar, []float64{0, 1, 0, 0, 0}},
		{"outside bar", PatternOutsideBar, []float64{0, 0, 1, 0, 0}},
		{"bullish engulfing", PatternBullishEngulfing, []float64{0, 1, 0, 0, 0}},
		{"hammer", PatternHammer, []float64{0, 0, 0, 1, 0}},
		{"shooting star", PatternShootingStar, []float64{0, 0, 0, 0, 1}},
		{"breakout needs history", PatternBreakout20, []float64{0, 0, 0, 0, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			col, ok := out.Column(tc.col)
			require.True(t, ok)
			assert.Equal(t, tc.want, col)
		})
	}

	t.Run("breakout and range expansion", func(t *testing.T) {
		flat := make([]bars.Bar, 21)
		for i := range flat {
			flat[i] = at(100, 101, 99, 100)
		}
		flat[20] = at(100, 106, 99, 105)
		out, _, err := Run(context.Background(), bars.NewTable(flat), PatternStep{})
		require.NoError(t, err)
		assert.Equal(t, 1.0, out.Value(PatternBreakout20, 20))
		assert.Equal(t, 1.0, out.Value(PatternRangeExpansion, 20))
		assert.Equal(t, 0.0, out.Value(PatternBreakdown20, 20))
		assert.Equal(t, 0.0, out.Value(PatternRangeExpansion, 19))
	})
}

type failingStep struct {
	name     string
	stage    int
	critical bool
}

func (s failingStep) Meta() StepMeta {
	return StepMeta{Name: s.name, Stage: s.stage, Critical: s.critical}
}

func (s failingStep) Handle(context.Context, *Frame) error {
	return errors.New("boom")
}

func TestPipeline_Failures(t *testing.T) {
	tbl := bars.NewTable(waveBars(30))

	t.Run("non-critical becomes warning", func(t *testing.T) {
		out, warnings, err := Run(context.Background(), tbl, PatternStep{}, failingStep{name: "extra"})
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "extra: boom")
		assert.True(t, out.HasColumn(PatternInsideBar))
	})

	t.Run("critical aborts", func(t *testing.T) {
		_, _, err := Run(context.Background(), tbl, failingStep{name: "core", critical: true})
		require.Error(t, err)
		var sErr *StepError
		require.ErrorAs(t, err, &sErr)
		assert.Equal(t, "core", sErr.Step)
	})

	t.Run("missing dependency", func(t *testing.T) {
		_, warnings, err := Run(context.Background(), tbl, DerivedStep{})
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "ema_20")
	})

	t.Run("empty table", func(t *testing.T) {
		_, _, err := Enrich(context.Background(), bars.NewTable(nil))
		assert.Error(t, err)
	})
}
