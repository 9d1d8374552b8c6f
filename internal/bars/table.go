// Package bars 提供优化器消费的只读 K 线表。
//
// Table 在构建后不再变化，可以被任意数量的 worker 并发读取。
package bars

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// 基础列名，OHLCV 与其它指标一样可以按名称寻址。
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// ErrMissingColumn 表示引用了表中不存在的列。
var ErrMissingColumn = errors.New("missing bar column")

// MissingColumnError 携带缺失的列名。
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %q", ErrMissingColumn.Error(), e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Bar 是单根 K 线及其预计算字段。
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Fields map[string]float64
}

// Table 是列式存储的不可变 K 线表。
type Table struct {
	times   []time.Time
	columns map[string][]float64
	names   []string
}

// NewTable 按 bars 顺序构建列式表。
// 某根 K 线缺少其它 K 线拥有的字段时，该位置记为 NaN。
func NewTable(list []Bar) *Table {
	n := len(list)
	t := &Table{
		times:   make([]time.Time, n),
		columns: make(map[string][]float64),
	}
	base := map[string]func(Bar) float64{
		ColOpen:   func(b Bar) float64 { return b.Open },
		ColHigh:   func(b Bar) float64 { return b.High },
		ColLow:    func(b Bar) float64 { return b.Low },
		ColClose:  func(b Bar) float64 { return b.Close },
		ColVolume: func(b Bar) float64 { return b.Volume },
	}
	for name, get := range base {
		col := make([]float64, n)
		for i, b := range list {
			col[i] = get(b)
		}
		t.columns[name] = col
	}
	for i, b := range list {
		t.times[i] = b.Time
		for name, v := range b.Fields {
			key := normalizeName(name)
			if key == "" {
				continue
			}
			if _, isBase := base[key]; isBase {
				continue
			}
			col, ok := t.columns[key]
			if !ok {
				col = make([]float64, n)
				for j := range col {
					col[j] = math.NaN()
				}
				t.columns[key] = col
			}
			col[i] = v
		}
	}
	t.names = make([]string, 0, len(t.columns))
	for name := range t.columns {
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

// WithColumns 返回追加了新列的新表，原表不受影响。
// 新列长度必须与表一致；同名列会被替换。
func (t *Table) WithColumns(extra map[string][]float64) (*Table, error) {
	out := &Table{
		times:   t.times,
		columns: make(map[string][]float64, len(t.columns)+len(extra)),
	}
	for name, col := range t.columns {
		out.columns[name] = col
	}
	for name, col := range extra {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if len(col) != t.Len() {
			return nil, fmt.Errorf("column %s has %d rows, table has %d", key, len(col), t.Len())
		}
		cp := make([]float64, len(col))
		copy(cp, col)
		out.columns[key] = cp
	}
	out.names = make([]string, 0, len(out.columns))
	for name := range out.columns {
		out.names = append(out.names, name)
	}
	sort.Strings(out.names)
	return out, nil
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.times)
}

// Time 返回第 i 根 K 线的时间。
func (t *Table) Time(i int) time.Time { return t.times[i] }

// Column 返回列数据。返回的切片与表共享，调用方不得修改。
func (t *Table) Column(name string) ([]float64, bool) {
	if t == nil {
		return nil, false
	}
	col, ok := t.columns[normalizeName(name)]
	return col, ok
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Columns 返回排序后的列名。
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Require 校验列存在，返回第一个缺失列的错误。
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return &MissingColumnError{Column: normalizeName(name)}
		}
	}
	return nil
}

// Value 读取单个值；列不存在时返回 NaN。
func (t *Table) Value(name string, i int) float64 {
	col, ok := t.Column(name)
	if !ok || i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Finite 报告第 i 根 K 线上给定列是否都是有限值。
func (t *Table) Finite(i int, names ...string) bool {
	for _, name := range names {
		v := t.Value(name, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Bar 重建第 i 根 K 线（含全部字段的副本）。
func (t *Table) Bar(i int) Bar {
	b := Bar{
		Time:   t.times[i],
		Open:   t.columns[ColOpen][i],
		High:   t.columns[ColHigh][i],
		Low:    t.columns[ColLow][i],
		Close:  t.columns[ColClose][i],
		Volume: t.columns[ColVolume][i],
		Fields: make(map[string]float64, len(t.columns)),
	}
	for name, col := range t.columns {
		switch name {
		case ColOpen, ColHigh, ColLow, ColClose, ColVolume:
			continue
		}
		b.Fields[name] = col[i]
	}
	return b
}

// OHLC 是模拟器每根 K 线都要读取的四列。
func OHLC() []string {
	return []string{ColOpen, ColHigh, ColLow, ColClose}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
