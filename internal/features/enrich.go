package features

import (
	"context"
	"fmt"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

// DefaultSteps 返回默认的特征步骤集合。
func DefaultSteps() []Step {
	return []Step{
		ATRStep{Period: 14},
		RSIStep{Period: 14},
		ADXStep{Period: 14},
		EMAStep{Periods: []int{20, 50, 200}},
		VolumeStep{Period: 20},
		PatternStep{},
		DerivedStep{},
	}
}

// Enrich 在 tbl 上运行默认 pipeline，返回新表与非关键步骤的 warning。
func Enrich(ctx context.Context, tbl *bars.Table) (*bars.Table, []string, error) {
	return Run(ctx, tbl, DefaultSteps()...)
}

// Run 使用给定步骤构建 pipeline 并执行。
func Run(ctx context.Context, tbl *bars.Table, steps ...Step) (*bars.Table, []string, error) {
	if tbl == nil || tbl.Len() == 0 {
		return nil, nil, fmt.Errorf("enrich: empty table")
	}
	if err := tbl.Require(bars.OHLC()...); err != nil {
		return nil, nil, fmt.Errorf("enrich: %w", err)
	}
	frame := NewFrame(tbl)
	if err := New("features", steps...).Run(ctx, frame); err != nil {
		return nil, frame.Warnings(), fmt.Errorf("enrich: %w", err)
	}
	out, err := frame.Table()
	if err != nil {
		return nil, frame.Warnings(), fmt.Errorf("enrich: %w", err)
	}
	log.Infof("enriched %d bars with %d columns", tbl.Len(), len(frame.Computed()))
	return out, frame.Warnings(), nil
}
