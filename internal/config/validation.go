package config

import (
	"fmt"
	"strings"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Optimization.validate(); err != nil {
		return err
	}
	if c.Output.TopN < 0 {
		return fmt.Errorf("output.top_n must be >= 0")
	}
	if _, err := c.Space(); err != nil {
		return fmt.Errorf("optimization.ranges: %w", err)
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogFormat)) {
	case "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json, got %q", a.LogFormat)
	}
	return nil
}

func (d *DataConfig) validate() error {
	switch d.Source {
	case SourceJSON:
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("data.path is required when data.source=json")
		}
	case SourceStore:
		if d.Symbol == "" {
			return fmt.Errorf("data.symbol is required when data.source=store")
		}
	default:
		return fmt.Errorf("data.source must be json or store, got %q", d.Source)
	}
	if _, err := bars.ParseTimeframe(d.Timeframe); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if _, _, err := d.TimeRange(); err != nil {
		return err
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.Pattern == "" {
		return fmt.Errorf("strategy.pattern cannot be empty")
	}
	if _, err := signal.ParseDirection(s.Direction); err != nil {
		return fmt.Errorf("strategy.direction: %w", err)
	}
	if s.Notional < 0 {
		return fmt.Errorf("strategy.notional must be >= 0")
	}
	if s.Breakeven.ATRMultiple < 0 {
		return fmt.Errorf("strategy.breakeven.atr_multiple must be >= 0")
	}
	return nil
}

func (o *OptimizationConfig) validate() error {
	if o.Workers < 0 {
		return fmt.Errorf("optimization.workers must be >= 0")
	}
	if o.MaxCombinations < 0 {
		return fmt.Errorf("optimization.max_combinations must be >= 0")
	}
	if o.OverboughtCap < 0 {
		return fmt.Errorf("optimization.overbought_cap must be >= 0")
	}
	return nil
}
