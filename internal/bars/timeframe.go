package bars

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe 描述 K 线周期及其在数据源侧的 interval 名称。
type Timeframe struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
}

var timeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute, SourceInterval: "1m"},
	"5m":  {Key: "5m", Duration: 5 * time.Minute, SourceInterval: "5m"},
	"15m": {Key: "15m", Duration: 15 * time.Minute, SourceInterval: "15m"},
	"30m": {Key: "30m", Duration: 30 * time.Minute, SourceInterval: "30m"},
	"1h":  {Key: "1h", Duration: time.Hour, SourceInterval: "1h"},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, SourceInterval: "4h"},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, SourceInterval: "1d"},
	"1w":  {Key: "1w", Duration: 7 * 24 * time.Hour, SourceInterval: "1w"},
}

// ParseTimeframe 返回标准化周期定义，"daily"/"weekly" 等别名也被接受。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	switch key {
	case "daily", "d":
		key = "1d"
	case "weekly", "7d":
		key = "1w"
	case "hourly", "60m":
		key = "1h"
	}
	tf, ok := timeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("不支持的周期: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes 返回排序后的周期 key。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(timeframes))
	for k := range timeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func alignDown(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}

// AlignRange 把毫秒时间对齐到周期网格，保证 start<=end。
func (tf Timeframe) AlignRange(start, end int64) (int64, int64) {
	step := tf.Duration.Milliseconds()
	if end < start {
		start, end = end, start
	}
	return alignDown(start, step), alignDown(end, step)
}

// ExpectedCandles 计算 [start, end] 区间应有的 K 线数量。
func (tf Timeframe) ExpectedCandles(start, end int64) int64 {
	step := tf.Duration.Milliseconds()
	if end < start || step == 0 {
		return 0
	}
	return (end-start)/step + 1
}
