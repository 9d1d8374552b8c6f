package bars

import "time"

// Candle 是存储层使用的原始 K 线，时间为 Unix 毫秒。
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Trades    int64   `json:"trades"`
}

// Bar 转换为不带指标字段的 Bar。
func (c Candle) Bar() Bar {
	return Bar{
		Time:   time.UnixMilli(c.OpenTime).UTC(),
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}
}

// CandlesToBars 按原顺序转换。
func CandlesToBars(list []Candle) []Bar {
	out := make([]Bar, len(list))
	for i, c := range list {
		out[i] = c.Bar()
	}
	return out
}
