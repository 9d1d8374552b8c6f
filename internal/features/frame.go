package features

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// Frame 是一次 pipeline 执行的上下文：只读的原始表加上新计算的列。
type Frame struct {
	base *bars.Table

	mu       sync.RWMutex
	cols     map[string][]float64
	warnings []string
}

func NewFrame(base *bars.Table) *Frame {
	return &Frame{base: base, cols: make(map[string][]float64)}
}

func (f *Frame) Len() int { return f.base.Len() }

// Series 读取列，优先返回新计算的列。
func (f *Frame) Series(name string) ([]float64, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	f.mu.RLock()
	col, ok := f.cols[key]
	f.mu.RUnlock()
	if ok {
		return col, true
	}
	return f.base.Column(key)
}

// MustSeries 读取依赖列，缺失时返回错误。
func (f *Frame) MustSeries(names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		col, ok := f.Series(name)
		if !ok {
			return nil, &bars.MissingColumnError{Column: name}
		}
		out[i] = col
	}
	return out, nil
}

// Set 写入计算结果，长度需与表一致。
func (f *Frame) Set(name string, col []float64) error {
	if len(col) != f.Len() {
		return fmt.Errorf("column %s has %d rows, want %d", name, len(col), f.Len())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cols[strings.ToLower(strings.TrimSpace(name))] = col
	return nil
}

func (f *Frame) AddWarning(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warnings = append(f.warnings, msg)
}

func (f *Frame) Warnings() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.warnings...)
}

// Computed 返回新计算的列名（排序后）。
func (f *Frame) Computed() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.cols))
	for k := range f.cols {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Table 生成包含全部新列的新表。
func (f *Frame) Table() (*bars.Table, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.base.WithColumns(f.cols)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
