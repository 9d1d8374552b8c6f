// Package signal 把形态列与趋势/阈值过滤条件合成为入场掩码。
package signal

import (
	"fmt"
	"strconv"
	"strings"
)

// Level 是可选阈值；Active=false 表示该过滤条件为 "none"（恒为真）。
// 值类型可比较，便于参数组合作为 map key。
type Level struct {
	Value  float64
	Active bool
}

// None 返回未启用的阈值。
func None() Level { return Level{} }

// At 返回启用的阈值。
func At(v float64) Level { return Level{Value: v, Active: true} }

func (l Level) String() string {
	if !l.Active {
		return "none"
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

// ParseLevel 解析 "none" 或数值。
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" || s == "null" {
		return None(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Level{}, fmt.Errorf("invalid level %q: %w", s, err)
	}
	return At(v), nil
}

// MarshalJSON 未启用时输出 null。
func (l Level) MarshalJSON() ([]byte, error) {
	if !l.Active {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(l.Value, 'g', -1, 64)), nil
}

func (l *Level) UnmarshalJSON(data []byte) error {
	lvl, err := ParseLevel(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*l = lvl
	return nil
}

// Direction 是交易方向。
type Direction int

const (
	Long  Direction = 1
	Short Direction = -1
)

// Sign 返回 PnL 计算使用的方向符号。
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// ParseDirection 接受 long/buy 与 short/sell。
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "long", "buy":
		return Long, nil
	case "short", "sell":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}
