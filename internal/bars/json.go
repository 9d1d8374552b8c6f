package bars

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// LoadJSON 读取行对象数组形式的 K 线：
//
//	[{"time": "2024-01-02T00:00:00Z", "open": 1, "high": 2, "low": 0.5, "close": 1.5, "volume": 10, "rsi_14": 55}]
//
// time 可以是 RFC3339 字符串或 Unix 毫秒；其余数值/布尔字段进入 Fields，null 记为 NaN。
func LoadJSON(r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("bars json 不是合法 JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, fmt.Errorf("bars json 需为数组")
	}
	var (
		list    []Bar
		walkErr error
	)
	root.ForEach(func(_, row gjson.Result) bool {
		b, err := parseRow(len(list), row)
		if err != nil {
			walkErr = err
			return false
		}
		list = append(list, b)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return NewTable(list), nil
}

func parseRow(idx int, row gjson.Result) (Bar, error) {
	if !row.IsObject() {
		return Bar{}, fmt.Errorf("row %d: 需为对象", idx)
	}
	ts, err := parseTime(row.Get("time"))
	if err != nil {
		return Bar{}, fmt.Errorf("row %d: %w", idx, err)
	}
	b := Bar{Time: ts, Fields: make(map[string]float64)}
	var rowErr error
	row.ForEach(func(key, value gjson.Result) bool {
		name := normalizeName(key.String())
		if name == "time" || name == "" {
			return true
		}
		v, ok := numeric(value)
		if !ok {
			if value.Type == gjson.String && !isBaseColumn(name) {
				return true
			}
			rowErr = fmt.Errorf("row %d: 字段 %s 不是数值", idx, name)
			return false
		}
		switch name {
		case ColOpen:
			b.Open = v
		case ColHigh:
			b.High = v
		case ColLow:
			b.Low = v
		case ColClose:
			b.Close = v
		case ColVolume:
			b.Volume = v
		default:
			b.Fields[name] = v
		}
		return true
	})
	if rowErr != nil {
		return Bar{}, rowErr
	}
	for _, col := range []string{ColOpen, ColHigh, ColLow, ColClose} {
		if !row.Get(col).Exists() {
			return Bar{}, fmt.Errorf("row %d: %w", idx, &MissingColumnError{Column: col})
		}
	}
	return b, nil
}

func numeric(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), true
	case gjson.Null:
		return math.NaN(), true
	case gjson.True:
		return 1, true
	case gjson.False:
		return 0, true
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		if s == "nan" || s == "" {
			return math.NaN(), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func parseTime(v gjson.Result) (time.Time, error) {
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC(), nil
	case gjson.String:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, v.Str); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("无法解析时间 %q", v.Str)
	default:
		return time.Time{}, fmt.Errorf("缺少 time 字段")
	}
}

func isBaseColumn(name string) bool {
	switch name {
	case ColOpen, ColHigh, ColLow, ColClose, ColVolume:
		return true
	}
	return false
}
