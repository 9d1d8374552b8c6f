// Package store 持久化优化运行、通过的组合与诊断记录。
package store

import (
	"context"
	"errors"
)

// ErrNotFound 表示运行记录不存在。
var ErrNotFound = errors.New("store: not found")

// RunReader 是 HTTP 层需要的只读接口。
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (Run, error)
	ListResults(ctx context.Context, runID string, page Page) ([]Result, error)
	ListDiagnostics(ctx context.Context, runID string, reason string, page Page) ([]Diagnostic, error)
}

// Page 描述分页参数，Limit<=0 时使用默认值。
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
