// Package marketdata 从交易所拉取历史 K 线并写入本地 K 线库。
package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
)

const (
	defaultRESTBaseURL = "https://fapi.binance.com"
	maxHistoryLimit    = 1500
)

// Config 控制 Binance 合约 REST 客户端。
type Config struct {
	RESTBaseURL string
	BatchLimit  int
	HTTPTimeout time.Duration
	// RatePerSecond 限制请求频率，<=0 时为 5。
	RatePerSecond float64
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.RESTBaseURL) == "" {
		c.RESTBaseURL = defaultRESTBaseURL
	}
	if c.BatchLimit <= 0 || c.BatchLimit > maxHistoryLimit {
		c.BatchLimit = 1000
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	return c
}

// FetchRequest 描述一次分页请求，时间为毫秒。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64
	End      int64
	Limit    int
}

// Source 是历史 K 线数据源。
type Source interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) ([]bars.Candle, error)
}

// BinanceSource 基于 go-binance SDK 的 USDT 合约 /fapi/v1/klines。
type BinanceSource struct {
	client *futures.Client
}

var _ Source = (*BinanceSource)(nil)

func NewBinanceSource(cfg Config) *BinanceSource {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimRight(strings.TrimSpace(final.RESTBaseURL), "/")
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &BinanceSource{client: client}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]bars.Candle, error) {
	symbol := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(req.Symbol), "/", ""))
	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol/interval 不能为空")
	}
	limit := req.Limit
	if limit <= 0 || limit > maxHistoryLimit {
		limit = 1000
	}
	svc := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bars.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, bars.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

// dropUnclosed 去掉尚未收盘的最后一根 K 线。
func dropUnclosed(candles []bars.Candle, step time.Duration, now time.Time) []bars.Candle {
	if len(candles) == 0 || step <= 0 {
		return candles
	}
	last := candles[len(candles)-1]
	if last.OpenTime <= 0 {
		return candles
	}
	if now.UnixMilli() < last.OpenTime+step.Milliseconds() {
		return candles[:len(candles)-1]
	}
	return candles
}
