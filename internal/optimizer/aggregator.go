package optimizer

import (
	"sort"
	"sync"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
)

// Aggregator 收集评估结果，输出排序后的通过表与诊断表。
type Aggregator struct {
	mu          sync.Mutex
	passed      []Result
	diagnostics []Diagnostic
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add 记录一个组合的评估结果。
func (a *Aggregator) Add(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case o.Result != nil:
		a.passed = append(a.passed, *o.Result)
	case o.Diagnostic != nil:
		a.diagnostics = append(a.diagnostics, *o.Diagnostic)
	}
}

// Evaluated 返回已记录的组合数。
func (a *Aggregator) Evaluated() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.passed) + len(a.diagnostics)
}

func (a *Aggregator) PassedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.passed)
}

// Passed 返回按排名排序的通过结果副本。
func (a *Aggregator) Passed() []Result {
	a.mu.Lock()
	out := append([]Result(nil), a.passed...)
	a.mu.Unlock()
	SortResults(out)
	return out
}

// TopN 返回排名前 n 的结果；n<=0 返回全部。
func (a *Aggregator) TopN(n int) []Result {
	out := a.Passed()
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Diagnostics 按组合索引返回诊断表。
func (a *Aggregator) Diagnostics() []Diagnostic {
	a.mu.Lock()
	out := append([]Diagnostic(nil), a.diagnostics...)
	a.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ReasonCounts 统计每种拒绝原因出现的次数。
func (a *Aggregator) ReasonCounts() map[Reason]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := make(map[Reason]int)
	for _, d := range a.diagnostics {
		counts[d.Reason]++
	}
	return counts
}

// SortResults 原地排序：交易数降序、盈亏比降序（inf > 有限 > undefined）、
// 胜率降序、回撤升序，最后按组合索引升序保证全序。
func SortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return Less(rs[i], rs[j]) })
}

// Less 报告 a 是否排在 b 之前。
func Less(a, b Result) bool {
	sa, sb := a.Summary, b.Summary
	if sa.Trades != sb.Trades {
		return sa.Trades > sb.Trades
	}
	if c := comparePF(sa, sb); c != 0 {
		return c > 0
	}
	if sa.WinRate != sb.WinRate {
		return sa.WinRate > sb.WinRate
	}
	if sa.MaxDrawdownPct != sb.MaxDrawdownPct {
		return sa.MaxDrawdownPct < sb.MaxDrawdownPct
	}
	return a.Index < b.Index
}

func pfRank(s backtest.Summary) int {
	switch s.PFState {
	case backtest.PFInfinite:
		return 2
	case backtest.PFFinite:
		return 1
	default:
		return 0
	}
}

func comparePF(a, b backtest.Summary) int {
	ra, rb := pfRank(a), pfRank(b)
	switch {
	case ra != rb:
		return ra - rb
	case ra != 1:
		return 0
	case a.ProfitFactor > b.ProfitFactor:
		return 1
	case a.ProfitFactor < b.ProfitFactor:
		return -1
	default:
		return 0
	}
}
