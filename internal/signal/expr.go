package signal

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// ErrBadExpression 表示趋势表达式无法解析。
var ErrBadExpression = errors.New("bad trend expression")

type operand struct {
	column  string
	literal float64
}

func (o operand) value(t *bars.Table, i int) float64 {
	if o.column == "" {
		return o.literal
	}
	return t.Value(o.column, i)
}

type clause struct {
	lhs, rhs operand
	op       string
}

// Trend 是编译后的趋势条件，为空时恒为真。
type Trend struct {
	source  string
	clauses []clause
}

var comparisonOps = []string{">=", "<=", "==", "!=", ">", "<"}

// CompileTrend 解析趋势表达式。
//
//	trend_ema_bull_short
//	ema_20 > ema_50 and close >= ema_200
//
// 空串与 "none" 编译为恒真条件。
func CompileTrend(expr string) (Trend, error) {
	src := strings.TrimSpace(expr)
	if src == "" || strings.EqualFold(src, "none") {
		return Trend{}, nil
	}
	normalized := strings.ReplaceAll(strings.ToLower(src), "&&", " and ")
	parts := strings.Split(normalized, " and ")
	out := Trend{source: src}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Trend{}, fmt.Errorf("%w: empty clause in %q", ErrBadExpression, src)
		}
		c, err := parseClause(part)
		if err != nil {
			return Trend{}, fmt.Errorf("%w: %q: %v", ErrBadExpression, src, err)
		}
		out.clauses = append(out.clauses, c)
	}
	return out, nil
}

func parseClause(part string) (clause, error) {
	for _, op := range comparisonOps {
		idx := strings.Index(part, op)
		if idx < 0 {
			continue
		}
		lhs, err := parseOperand(part[:idx])
		if err != nil {
			return clause{}, err
		}
		rhs, err := parseOperand(part[idx+len(op):])
		if err != nil {
			return clause{}, err
		}
		if lhs.column == "" && rhs.column == "" {
			return clause{}, fmt.Errorf("clause %q references no column", part)
		}
		return clause{lhs: lhs, rhs: rhs, op: op}, nil
	}
	// 单独的列名表示非零为真。
	o, err := parseOperand(part)
	if err != nil {
		return clause{}, err
	}
	if o.column == "" {
		return clause{}, fmt.Errorf("clause %q references no column", part)
	}
	return clause{lhs: o, rhs: operand{literal: 0}, op: "!="}, nil
}

func parseOperand(s string) (operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return operand{}, fmt.Errorf("missing operand")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return operand{literal: v}, nil
	}
	for _, r := range s {
		if !(r == '_' || r == '.' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return operand{}, fmt.Errorf("invalid operand %q", s)
		}
	}
	return operand{column: strings.ToLower(s)}, nil
}

// Columns 返回表达式引用的列（按出现顺序去重）。
func (t Trend) Columns() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range t.clauses {
		for _, o := range []operand{c.lhs, c.rhs} {
			if o.column == "" {
				continue
			}
			if _, ok := seen[o.column]; ok {
				continue
			}
			seen[o.column] = struct{}{}
			out = append(out, o.column)
		}
	}
	return out
}

// Empty 报告条件是否恒真。
func (t Trend) Empty() bool { return len(t.clauses) == 0 }

func (t Trend) String() string {
	if t.Empty() {
		return "none"
	}
	return t.source
}

// Eval 计算第 i 根 K 线上的条件。引用值非有限时为 false。
func (t Trend) Eval(tbl *bars.Table, i int) bool {
	for _, c := range t.clauses {
		l, r := c.lhs.value(tbl, i), c.rhs.value(tbl, i)
		if !finite(l) || !finite(r) {
			return false
		}
		var ok bool
		switch c.op {
		case ">":
			ok = l > r
		case ">=":
			ok = l >= r
		case "<":
			ok = l < r
		case "<=":
			ok = l <= r
		case "==":
			ok = l == r
		case "!=":
			ok = l != r
		}
		if !ok {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
