package signal

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

func fixtureTable(t *testing.T) *bars.Table {
	t.Helper()
	nan := math.NaN()
	pattern := []float64{0, 1, 1, 1, 1, 1}
	rsi := []float64{40, 55, 45, 60, nan, 65}
	adx := []float64{20, 25, 30, 10, 30, 30}
	atrPct := []float64{1, 1.2, 0.5, 1.5, 1, 2.5}
	dist := []float64{0.5, 0.8, 0.9, 1.5, 0.2, 0.2}
	vol := []float64{1, 1.1, 1.3, 0.7, 1.2, 1.5}
	emaFast := []float64{10, 11, 12, 13, 14, 9}
	emaSlow := []float64{9, 10, 11, 12, 13, 10}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	list := make([]bars.Bar, len(pattern))
	for i := range list {
		list[i] = bars.Bar{
			Time: start.AddDate(0, 0, i),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
			Fields: map[string]float64{
				"pattern_hammer": pattern[i],
				"rsi_14":         rsi[i],
				"adx_14":         adx[i],
				"atr_pct_14":     atrPct[i],
				"dist_ema20":     dist[i],
				"volume_ratio":   vol[i],
				"atr_14":         2,
				"ema_20":         emaFast[i],
				"ema_50":         emaSlow[i],
			},
		}
	}
	return bars.NewTable(list)
}

func TestCombiner_Build(t *testing.T) {
	tbl := fixtureTable(t)
	c := NewCombiner(Columns{}, Long)

	t.Run("pattern only", func(t *testing.T) {
		sig, err := c.Build(tbl, Filters{Pattern: "pattern_hammer"})
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, true, true, true, true}, sig.Mask)
		assert.Equal(t, Long, sig.Direction)
		assert.Equal(t, 5, sig.Count())
	})

	t.Run("rsi excludes nan bar", func(t *testing.T) {
		sig, err := c.Build(tbl, Filters{Pattern: "pattern_hammer", MinRSI: At(50)})
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, false, true, false, true}, sig.Mask)
	})

	t.Run("all filters", func(t *testing.T) {
		f := Filters{
			Pattern:        "pattern_hammer",
			Trend:          "ema_20 > ema_50",
			MinRSI:         At(50),
			MinADX:         At(20),
			ATRPctMin:      At(0.8),
			ATRPctMax:      At(1.8),
			EMAProximity:   At(1.0),
			MinVolumeRatio: At(1.0),
		}
		sig, err := c.Build(tbl, f)
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, false, false, false, false}, sig.Mask)
	})

	t.Run("inclusive thresholds", func(t *testing.T) {
		sig, err := c.Build(tbl, Filters{Pattern: "pattern_hammer", MinADX: At(25), EMAProximity: At(0.8)})
		require.NoError(t, err)
		assert.Equal(t, []bool{false, true, false, false, true, true}, sig.Mask)
	})

	t.Run("deterministic", func(t *testing.T) {
		f := Filters{Pattern: "pattern_hammer", Trend: "ema_20 >= ema_50", MinVolumeRatio: At(1)}
		a, err := c.Build(tbl, f)
		require.NoError(t, err)
		b, err := c.Build(tbl, f)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestCombiner_Validate(t *testing.T) {
	tbl := fixtureTable(t)
	c := NewCombiner(Columns{}, Short)

	t.Run("missing pattern", func(t *testing.T) {
		err := c.Validate(tbl, Filters{Pattern: "pattern_doji"})
		var missing *bars.MissingColumnError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "pattern_doji", missing.Column)
	})

	t.Run("missing trend column", func(t *testing.T) {
		_, err := c.Build(tbl, Filters{Pattern: "pattern_hammer", Trend: "ema_20 > ema_200"})
		assert.ErrorIs(t, err, bars.ErrMissingColumn)
	})

	t.Run("inactive filter column not required", func(t *testing.T) {
		c2 := NewCombiner(Columns{VolumeRatio: "vol_ratio_custom"}, Short)
		assert.NoError(t, c2.Validate(tbl, Filters{Pattern: "pattern_hammer"}))
		assert.Error(t, c2.Validate(tbl, Filters{Pattern: "pattern_hammer", MinVolumeRatio: At(1)}))
	})

	t.Run("empty pattern", func(t *testing.T) {
		assert.Error(t, c.Validate(tbl, Filters{}))
	})
}

func TestCompileTrend(t *testing.T) {
	tbl := fixtureTable(t)

	cases := []struct {
		name string
		expr string
		want []bool
	}{
		{"none", "none", []bool{true, true, true, true, true, true}},
		{"comparison", "ema_20 > ema_50", []bool{true, true, true, true, true, false}},
		{"literal", "rsi_14 >= 55 && adx_14 > 20", []bool{false, true, false, false, false, true}},
		{"bare column", "pattern_hammer", []bool{false, true, true, true, true, true}},
		{"upper and", "ema_20 > ema_50 AND volume_ratio != 1", []bool{false, true, true, true, true, false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := CompileTrend(tc.expr)
			require.NoError(t, err)
			got := make([]bool, tbl.Len())
			for i := range got {
				got[i] = tr.Eval(tbl, i)
			}
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("columns", func(t *testing.T) {
		tr, err := CompileTrend("ema_20 > ema_50 and close > ema_20")
		require.NoError(t, err)
		assert.Equal(t, []string{"ema_20", "ema_50", "close"}, tr.Columns())
	})

	for _, bad := range []string{"ema_20 >", "1 > 2", "ema-20 > 1", "ema_20 > 1 and"} {
		t.Run("bad "+bad, func(t *testing.T) {
			_, err := CompileTrend(bad)
			assert.ErrorIs(t, err, ErrBadExpression)
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("none")
	require.NoError(t, err)
	assert.False(t, l.Active)
	assert.Equal(t, "none", l.String())

	l, err = ParseLevel("1.5")
	require.NoError(t, err)
	assert.Equal(t, At(1.5), l)
	assert.Equal(t, "1.5", l.String())

	_, err = ParseLevel("abc")
	assert.Error(t, err)
}
