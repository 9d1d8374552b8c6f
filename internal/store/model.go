package store

import (
	"time"

	"gorm.io/datatypes"
)

// RunStatus 是运行记录状态。
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

type runModel struct {
	ID           string         `gorm:"column:id;primaryKey;size:36"`
	Status       string         `gorm:"column:status"`
	Pattern      string         `gorm:"column:pattern;index"`
	Direction    string         `gorm:"column:direction"`
	Symbol       string         `gorm:"column:symbol"`
	Timeframe    string         `gorm:"column:timeframe"`
	Bars         int            `gorm:"column:bars"`
	Total        int            `gorm:"column:total"`
	Valid        int            `gorm:"column:valid"`
	Evaluated    int            `gorm:"column:evaluated"`
	Passed       int            `gorm:"column:passed"`
	ElapsedMS    int64          `gorm:"column:elapsed_ms"`
	ReasonCounts datatypes.JSON `gorm:"column:reason_counts"`
	ConfigYAML   string         `gorm:"column:config_yaml"`
	CreatedAt    time.Time      `gorm:"column:created_at;index"`
}

func (runModel) TableName() string { return "optimizer_runs" }

type resultModel struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID          string         `gorm:"column:run_id;index:idx_result_run_rank"`
	Rank           int            `gorm:"column:rank;index:idx_result_run_rank"`
	ComboIndex     int            `gorm:"column:combo_index"`
	ComboKey       string         `gorm:"column:combo_key"`
	Params         datatypes.JSON `gorm:"column:params"`
	Signals        int            `gorm:"column:signals"`
	Trades         int            `gorm:"column:trades"`
	Wins           int            `gorm:"column:wins"`
	Losses         int            `gorm:"column:losses"`
	WinRate        float64        `gorm:"column:win_rate"`
	ProfitFactor   *float64       `gorm:"column:profit_factor"`
	PFState        string         `gorm:"column:pf_state"`
	MaxDrawdownPct float64        `gorm:"column:max_drawdown_pct"`
	AvgBarsHeld    float64        `gorm:"column:avg_bars_held"`
	TotalPnL       float64        `gorm:"column:total_pnl"`
	ExitReasons    datatypes.JSON `gorm:"column:exit_reasons"`
}

func (resultModel) TableName() string { return "optimizer_results" }

type diagnosticModel struct {
	ID             int64          `gorm:"column:id;primaryKey;autoIncrement"`
	RunID          string         `gorm:"column:run_id;index:idx_diag_run_reason"`
	Reason         string         `gorm:"column:reason;index:idx_diag_run_reason"`
	ComboIndex     int            `gorm:"column:combo_index"`
	ComboKey       string         `gorm:"column:combo_key"`
	Params         datatypes.JSON `gorm:"column:params"`
	Message        string         `gorm:"column:message"`
	Signals        int            `gorm:"column:signals"`
	Trades         *int           `gorm:"column:trades"`
	ProfitFactor   *float64       `gorm:"column:profit_factor"`
	PFState        string         `gorm:"column:pf_state"`
	MaxDrawdownPct *float64       `gorm:"column:max_drawdown_pct"`
	WinRate        *float64       `gorm:"column:win_rate"`
}

func (diagnosticModel) TableName() string { return "optimizer_diagnostics" }

// Run 是运行记录的对外视图。
type Run struct {
	ID           string         `json:"id"`
	Status       RunStatus      `json:"status"`
	Pattern      string         `json:"pattern"`
	Direction    string         `json:"direction"`
	Symbol       string         `json:"symbol,omitempty"`
	Timeframe    string         `json:"timeframe,omitempty"`
	Bars         int            `json:"bars"`
	Total        int            `json:"total"`
	Valid        int            `json:"valid"`
	Evaluated    int            `json:"evaluated"`
	Passed       int            `json:"passed"`
	ElapsedMS    int64          `json:"elapsed_ms"`
	ReasonCounts map[string]int `json:"reason_counts"`
	ConfigYAML   string         `json:"config_yaml,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Result 是通过筛选的组合及其统计。ProfitFactor 为 nil 表示非有限值，见 PFState。
type Result struct {
	Rank           int            `json:"rank"`
	ComboIndex     int            `json:"combo_index"`
	ComboKey       string         `json:"combo_key"`
	Params         datatypes.JSON `json:"params"`
	Signals        int            `json:"signals"`
	Trades         int            `json:"trades"`
	Wins           int            `json:"wins"`
	Losses         int            `json:"losses"`
	WinRate        float64        `json:"win_rate"`
	ProfitFactor   *float64       `json:"profit_factor"`
	PFState        string         `json:"pf_state"`
	MaxDrawdownPct float64        `json:"max_drawdown_pct"`
	AvgBarsHeld    float64        `json:"avg_bars_held"`
	TotalPnL       float64        `json:"total_pnl"`
	ExitReasons    datatypes.JSON `json:"exit_reasons"`
}

// Diagnostic 是被拒绝组合。无统计时指标字段为 nil。
type Diagnostic struct {
	ComboIndex     int            `json:"combo_index"`
	ComboKey       string         `json:"combo_key"`
	Params         datatypes.JSON `json:"params"`
	Reason         string         `json:"reason"`
	Message        string         `json:"message,omitempty"`
	Signals        int            `json:"signals"`
	Trades         *int           `json:"trades"`
	ProfitFactor   *float64       `json:"profit_factor"`
	PFState        string         `json:"pf_state,omitempty"`
	MaxDrawdownPct *float64       `json:"max_drawdown_pct"`
	WinRate        *float64       `json:"win_rate"`
}
