package app

import (
	"fmt"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/config"
)

type StartupSummary struct {
	Data       DataSummary
	Strategy   StrategySummary
	Space      SpaceSummary
	Objectives []string
	Output     []string
}

type DataSummary struct {
	Source    string
	Location  string
	Symbol    string
	Timeframe string
	Enrich    bool
}

type StrategySummary struct {
	Pattern   string
	Direction string
	Breakeven string
}

type SpaceSummary struct {
	Total   int
	Valid   int
	Workers int
	Error   string
}

func newStartupSummary(cfg *config.Config) *StartupSummary {
	s := &StartupSummary{
		Data: DataSummary{
			Source:    cfg.Data.Source,
			Location:  cfg.Data.Path,
			Symbol:    cfg.Data.Symbol,
			Timeframe: cfg.Data.Timeframe,
			Enrich:    cfg.Data.Enrich,
		},
		Strategy: StrategySummary{
			Pattern:   cfg.Strategy.Pattern,
			Direction: cfg.Direction().String(),
			Breakeven: "off",
		},
		Space: SpaceSummary{Workers: cfg.Optimization.Workers},
	}
	if cfg.Data.Source == config.SourceStore {
		s.Data.Location = cfg.Data.StoreDir
	}
	if be := cfg.Strategy.Breakeven; be.Enabled {
		s.Strategy.Breakeven = "TP1"
		if be.ATRMultiple > 0 {
			s.Strategy.Breakeven = fmt.Sprintf("%.2f ATR", be.ATRMultiple)
		}
	}
	if space, err := cfg.Space(); err != nil {
		s.Space.Error = err.Error()
	} else {
		s.Space.Total = space.Count()
		s.Space.Valid = space.ValidCount()
	}
	obj := cfg.Objectives
	s.Objectives = []string{
		formatThreshold("min trades", float64(obj.MinTrades)),
		formatThreshold("min profit factor", obj.MinProfitFactor),
		formatThreshold("max drawdown %", obj.MaxDrawdownPct),
		formatThreshold("min win rate %", obj.MinWinRate),
	}
	s.Output = []string{
		"results db: " + orDash(cfg.Output.ResultsDB),
		"csv dir: " + orDash(cfg.Output.CSVDir),
		fmt.Sprintf("chart: %s (top %d)", orDash(cfg.Output.ChartPath), cfg.Output.TopN),
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[数据 (DATA)]")
	fmt.Printf("  来源: %s (%s)\n", s.Data.Source, orDash(s.Data.Location))
	fmt.Printf("  标的: %s @ %s\n", orDash(s.Data.Symbol), orDash(s.Data.Timeframe))
	fmt.Printf("  特征计算: %v\n", s.Data.Enrich)
	fmt.Println()

	fmt.Println("[策略 (STRATEGY)]")
	fmt.Printf("  形态: %s\n", s.Strategy.Pattern)
	fmt.Printf("  方向: %s\n", s.Strategy.Direction)
	fmt.Printf("  保本: %s\n", s.Strategy.Breakeven)
	fmt.Println()

	fmt.Println("[参数空间 (SEARCH SPACE)]")
	if s.Space.Error != "" {
		fmt.Printf("  错误: %s\n", s.Space.Error)
	} else {
		fmt.Printf("  组合: %d (有效 %d)\n", s.Space.Total, s.Space.Valid)
	}
	if s.Space.Workers > 0 {
		fmt.Printf("  并发: %d\n", s.Space.Workers)
	} else {
		fmt.Println("  并发: auto")
	}
	fmt.Println()

	fmt.Println("[目标 (OBJECTIVES)]")
	for _, line := range s.Objectives {
		fmt.Printf("  - %s\n", line)
	}
	fmt.Println()

	fmt.Println("[输出 (OUTPUT)]")
	for _, line := range s.Output {
		fmt.Printf("  - %s\n", line)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatThreshold(name string, v float64) string {
	if v <= 0 {
		return name + ": off"
	}
	return fmt.Sprintf("%s: %g", name, v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
