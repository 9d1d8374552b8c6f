package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
)

const insertBatch = 500

// RunInput 是保存运行时需要的元信息。
type RunInput struct {
	Status     RunStatus
	Pattern    string
	Direction  string
	Symbol     string
	Timeframe  string
	Bars       int
	ConfigYAML string
}

// ResultStore 基于 Gorm + SQLite 保存优化结果。
type ResultStore struct {
	db *gorm.DB
}

var _ RunReader = (*ResultStore)(nil)

// NewResultStore 打开（必要时创建）结果库并迁移表结构。
func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&runModel{}, &resultModel{}, &diagnosticModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &ResultStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *ResultStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRun 在一个事务内写入运行、通过组合（按排名）与诊断，返回运行 ID。
func (s *ResultStore) SaveRun(ctx context.Context, in RunInput, report *optimizer.Report) (string, error) {
	if report == nil || report.Aggregator == nil {
		return "", fmt.Errorf("save run: nil report")
	}
	if in.Status == "" {
		in.Status = RunStatusCompleted
	}
	id := uuid.NewString()
	counts := make(map[string]int)
	for reason, n := range report.ReasonCounts() {
		counts[string(reason)] = n
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return "", err
	}
	run := runModel{
		ID:           id,
		Status:       string(in.Status),
		Pattern:      in.Pattern,
		Direction:    in.Direction,
		Symbol:       in.Symbol,
		Timeframe:    in.Timeframe,
		Bars:         in.Bars,
		Total:        report.Total,
		Valid:        report.Valid,
		Evaluated:    report.Evaluated(),
		Passed:       report.PassedCount(),
		ElapsedMS:    report.Elapsed.Milliseconds(),
		ReasonCounts: datatypes.JSON(countsJSON),
		ConfigYAML:   in.ConfigYAML,
		CreatedAt:    time.Now().UTC(),
	}
	passed := report.Passed()
	results := make([]resultModel, 0, len(passed))
	for i, r := range passed {
		m, err := newResultModel(id, i+1, r)
		if err != nil {
			return "", err
		}
		results = append(results, m)
	}
	diags := report.Diagnostics()
	diagModels := make([]diagnosticModel, 0, len(diags))
	for _, d := range diags {
		m, err := newDiagnosticModel(id, d)
		if err != nil {
			return "", err
		}
		diagModels = append(diagModels, m)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(results) > 0 {
			if err := tx.CreateInBatches(results, insertBatch).Error; err != nil {
				return err
			}
		}
		if len(diagModels) > 0 {
			if err := tx.CreateInBatches(diagModels, insertBatch).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	return id, nil
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	limit = Page{Limit: limit}.normalize().Limit
	var models []runModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Run, 0, len(models))
	for _, m := range models {
		run := toRun(m)
		run.ConfigYAML = ""
		out = append(out, run)
	}
	return out, nil
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	var m runModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Run{}, ErrNotFound
		}
		return Run{}, err
	}
	return toRun(m), nil
}

func (s *ResultStore) ListResults(ctx context.Context, runID string, page Page) ([]Result, error) {
	if err := s.ensureRun(ctx, runID); err != nil {
		return nil, err
	}
	page = page.normalize()
	var models []resultModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("rank ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(models))
	for _, m := range models {
		out = append(out, Result{
			Rank:           m.Rank,
			ComboIndex:     m.ComboIndex,
			ComboKey:       m.ComboKey,
			Params:         m.Params,
			Signals:        m.Signals,
			Trades:         m.Trades,
			Wins:           m.Wins,
			Losses:         m.Losses,
			WinRate:        m.WinRate,
			ProfitFactor:   m.ProfitFactor,
			PFState:        m.PFState,
			MaxDrawdownPct: m.MaxDrawdownPct,
			AvgBarsHeld:    m.AvgBarsHeld,
			TotalPnL:       m.TotalPnL,
			ExitReasons:    m.ExitReasons,
		})
	}
	return out, nil
}

// ListDiagnostics 按组合序号返回诊断；reason 为空时不过滤。
func (s *ResultStore) ListDiagnostics(ctx context.Context, runID string, reason string, page Page) ([]Diagnostic, error) {
	if err := s.ensureRun(ctx, runID); err != nil {
		return nil, err
	}
	page = page.normalize()
	q := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if reason = strings.ToUpper(strings.TrimSpace(reason)); reason != "" {
		q = q.Where("reason = ?", reason)
	}
	var models []diagnosticModel
	if err := q.Order("combo_index ASC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Diagnostic, 0, len(models))
	for _, m := range models {
		out = append(out, Diagnostic{
			ComboIndex:     m.ComboIndex,
			ComboKey:       m.ComboKey,
			Params:         m.Params,
			Reason:         m.Reason,
			Message:        m.Message,
			Signals:        m.Signals,
			Trades:         m.Trades,
			ProfitFactor:   m.ProfitFactor,
			PFState:        m.PFState,
			MaxDrawdownPct: m.MaxDrawdownPct,
			WinRate:        m.WinRate,
		})
	}
	return out, nil
}

func (s *ResultStore) ensureRun(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&runModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func newResultModel(runID string, rank int, r optimizer.Result) (resultModel, error) {
	params, err := json.Marshal(r.Combination)
	if err != nil {
		return resultModel{}, err
	}
	reasons, err := json.Marshal(r.Summary.ExitReasons)
	if err != nil {
		return resultModel{}, err
	}
	s := r.Summary
	return resultModel{
		RunID:          runID,
		Rank:           rank,
		ComboIndex:     r.Index,
		ComboKey:       r.Combination.Key(),
		Params:         datatypes.JSON(params),
		Signals:        r.Signals,
		Trades:         s.Trades,
		Wins:           s.Wins,
		Losses:         s.Losses,
		WinRate:        s.WinRate,
		ProfitFactor:   finitePtr(s.ProfitFactor),
		PFState:        s.PFState.String(),
		MaxDrawdownPct: s.MaxDrawdownPct,
		AvgBarsHeld:    s.AvgBarsHeld,
		TotalPnL:       s.TotalPnL,
		ExitReasons:    datatypes.JSON(reasons),
	}, nil
}

func newDiagnosticModel(runID string, d optimizer.Diagnostic) (diagnosticModel, error) {
	params, err := json.Marshal(d.Combination)
	if err != nil {
		return diagnosticModel{}, err
	}
	m := diagnosticModel{
		RunID:      runID,
		Reason:     string(d.Reason),
		ComboIndex: d.Index,
		ComboKey:   d.Combination.Key(),
		Params:     datatypes.JSON(params),
		Message:    d.Message,
		Signals:    d.Signals,
	}
	if d.Summary != nil {
		fillDiagnosticMetrics(&m, *d.Summary)
	}
	return m, nil
}

func fillDiagnosticMetrics(m *diagnosticModel, s backtest.Summary) {
	trades := s.Trades
	m.Trades = &trades
	m.ProfitFactor = finitePtr(s.ProfitFactor)
	m.PFState = s.PFState.String()
	m.MaxDrawdownPct = finitePtr(s.MaxDrawdownPct)
	m.WinRate = finitePtr(s.WinRate)
}

func toRun(m runModel) Run {
	counts := make(map[string]int)
	if len(m.ReasonCounts) > 0 {
		_ = json.Unmarshal(m.ReasonCounts, &counts)
	}
	return Run{
		ID:           m.ID,
		Status:       RunStatus(m.Status),
		Pattern:      m.Pattern,
		Direction:    m.Direction,
		Symbol:       m.Symbol,
		Timeframe:    m.Timeframe,
		Bars:         m.Bars,
		Total:        m.Total,
		Valid:        m.Valid,
		Evaluated:    m.Evaluated,
		Passed:       m.Passed,
		ElapsedMS:    m.ElapsedMS,
		ReasonCounts: counts,
		ConfigYAML:   m.ConfigYAML,
		CreatedAt:    m.CreatedAt,
	}
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
