package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }

// offsetLevel 返回 entry 朝有利（favorable）或不利方向偏移 mult·atr 后的价位。
func offsetLevel(entry, mult, atr float64, dir signal.Direction, favorable bool) float64 {
	dist := decFromFloat(mult).Mul(decFromFloat(atr))
	sign := dir.Sign()
	if !favorable {
		sign = -sign
	}
	if sign > 0 {
		return decToFloat(decFromFloat(entry).Add(dist))
	}
	return decToFloat(decFromFloat(entry).Sub(dist))
}

// stopHit 报告 K 线不利极值是否触及止损（含等于）。
func stopHit(dir signal.Direction, high, low, stop float64) bool {
	if dir == signal.Short {
		return decimalGTE(high, stop)
	}
	return decimalLTE(low, stop)
}

// targetHit 报告 K 线有利极值是否触及止盈（含等于）。
func targetHit(dir signal.Direction, high, low, target float64) bool {
	if dir == signal.Short {
		return decimalLTE(low, target)
	}
	return decimalGTE(high, target)
}

// tightens 报告 candidate 是否比 current 更紧；止损只能单向收紧。
func tightens(dir signal.Direction, candidate, current float64) bool {
	if dir == signal.Short {
		return decimalCompare(candidate, current) < 0
	}
	return decimalCompare(candidate, current) > 0
}

// excursion 返回 price 相对 entry 的带方向偏移。
func excursion(dir signal.Direction, entry, price float64) float64 {
	return (price - entry) * dir.Sign()
}
