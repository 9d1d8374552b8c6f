// Package config 加载优化器配置：include 合并、默认值、schema 与取值校验。
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/optimizer"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

// EnvPath 是配置路径的环境变量名。
const EnvPath = "OPTIMIZER_CONFIG"

// ResolvePath 优先使用命令行参数，其次是环境变量。
func ResolvePath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return "configs/optimizer.yaml"
}

func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	settings := v.AllSettings()
	if err := validateSchema(settings); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(settings, setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Direction 返回解析后的交易方向。
func (c *Config) Direction() signal.Direction {
	dir, err := signal.ParseDirection(c.Strategy.Direction)
	if err != nil {
		return signal.Long
	}
	return dir
}

// Ranges 把配置网格转换为 optimizer.Ranges。
func (c *Config) Ranges() (optimizer.Ranges, error) {
	r := c.Optimization.Ranges
	out := optimizer.Ranges{
		StopLossATR:   append([]float64(nil), r.StopLossATR...),
		TakeProfitATR: append([]float64(nil), r.TakeProfitATR...),
		MaxHoldBars:   append([]int(nil), r.MaxHoldBars...),
		Trend:         append([]string(nil), r.Trend...),
	}
	var err error
	for _, dim := range []struct {
		name string
		in   []any
		out  *[]signal.Level
	}{
		{"min_rsi", r.MinRSI, &out.MinRSI},
		{"min_adx", r.MinADX, &out.MinADX},
		{"atr_pct_min", r.ATRPctMin, &out.ATRPctMin},
		{"atr_pct_max", r.ATRPctMax, &out.ATRPctMax},
		{"ema_proximity", r.EMAProximity, &out.EMAProximity},
		{"min_volume_ratio", r.MinVolumeRatio, &out.MinVolumeRatio},
	} {
		if *dim.out, err = parseLevels(dim.in); err != nil {
			return optimizer.Ranges{}, fmt.Errorf("%s: %w", dim.name, err)
		}
	}
	return out, nil
}

// Space 构建参数空间。
func (c *Config) Space() (*optimizer.Space, error) {
	r, err := c.Ranges()
	if err != nil {
		return nil, err
	}
	return optimizer.NewSpace(r, optimizer.WithOverboughtCap(c.Optimization.OverboughtCap))
}

// EvaluatorOptions 返回评估器选项。
func (c *Config) EvaluatorOptions() optimizer.Options {
	return optimizer.Options{
		Pattern:         c.Strategy.Pattern,
		Workers:         c.Optimization.Workers,
		MaxCombinations: c.Optimization.MaxCombinations,
		ProgressEvery:   c.Optimization.ProgressEvery,
		Breakeven:       c.Strategy.Breakeven,
		Objectives:      c.Objectives,
	}
}

// SimulatorConfig 返回模拟器配置。
func (c *Config) SimulatorConfig() backtest.Config {
	return backtest.Config{
		ATRColumn: c.Strategy.Columns.ATR,
		Notional:  c.Strategy.Notional,
	}
}

// TimeRange 解析 data.start / data.end，未设置时返回零值。
func (d DataConfig) TimeRange() (time.Time, time.Time, error) {
	start, err := parseTime(d.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.start: %w", err)
	}
	end, err := parseTime(d.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end before data.start")
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time %q", s)
}

func parseLevels(in []any) ([]signal.Level, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]signal.Level, 0, len(in))
	for _, raw := range in {
		lvl, err := parseLevel(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, nil
}

func parseLevel(raw any) (signal.Level, error) {
	switch v := raw.(type) {
	case nil:
		return signal.None(), nil
	case float64:
		return finiteLevel(v)
	case float32:
		return finiteLevel(float64(v))
	case int:
		return signal.At(float64(v)), nil
	case int64:
		return signal.At(float64(v)), nil
	case string:
		return signal.ParseLevel(v)
	default:
		return signal.Level{}, fmt.Errorf("unsupported level %v (%T)", v, v)
	}
}

func finiteLevel(v float64) (signal.Level, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return signal.Level{}, fmt.Errorf("level must be finite, got %v", v)
	}
	return signal.At(v), nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	stack := make(map[string]bool)
	files, err := collectConfigFiles(abs, seen, stack)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return []string{abs}, nil
	}
	return files, nil
}

func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	dir := filepath.Dir(path)
	var ordered []string
	for _, inc := range includes {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(dir, inc)
		}
		sub, err := collectConfigFiles(incPath, seen, stack)
		if err != nil {
			return nil, err
		}
		if len(sub) > 0 {
			ordered = append(ordered, sub...)
		}
	}
	delete(stack, path)
	seen[path] = true
	ordered = append(ordered, path)
	return ordered, nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	switch val := raw.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("include only supports strings")
			}
			str = strings.TrimSpace(str)
			if str != "" {
				out = append(out, str)
			}
		}
		return out, nil
	case []string:
		out := make([]string, 0, len(val))
		for _, item := range val {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case map[interface{}]interface{}:
		for k, v := range val {
			keyStr, ok := k.(string)
			if !ok {
				continue
			}
			next := strings.ToLower(strings.TrimSpace(keyStr))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			flattenConfigKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
