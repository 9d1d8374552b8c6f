package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
)

var log = logger.Named("marketdata")

// CandleWriter 是 K 线库的写接口，bars.Store 满足该接口。
type CandleWriter interface {
	InsertCandles(ctx context.Context, symbol, timeframe string, candles []bars.Candle) (int, error)
}

// SyncReport 汇总一次同步。
type SyncReport struct {
	Symbol    string
	Timeframe string
	Start     int64
	End       int64
	Requests  int
	Written   int
	Warnings  []string
}

// Syncer 分页拉取 [start, end] 区间并写入 K 线库。
type Syncer struct {
	store   CandleWriter
	source  Source
	limiter *rate.Limiter
	batch   int
	now     func() time.Time
}

func NewSyncer(store CandleWriter, source Source, cfg Config) *Syncer {
	final := cfg.withDefaults()
	return &Syncer{
		store:   store,
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(final.RatePerSecond), 1),
		batch:   final.BatchLimit,
		now:     time.Now,
	}
}

// Sync 拉取区间内全部已收盘 K 线。end 为零值时取当前时间。
func (s *Syncer) Sync(ctx context.Context, symbol string, tf bars.Timeframe, start, end time.Time) (SyncReport, error) {
	if end.IsZero() {
		end = s.now().UTC()
	}
	if start.IsZero() {
		return SyncReport{}, fmt.Errorf("sync %s: start is required", symbol)
	}
	from, to := tf.AlignRange(start.UnixMilli(), end.UnixMilli())
	report := SyncReport{Symbol: symbol, Timeframe: tf.Key, Start: from, End: to}
	step := tf.Duration.Milliseconds()
	log.Infof("sync %s %s [%d,%d] expected=%d", symbol, tf.Key, from, to, tf.ExpectedCandles(from, to))

	cursor := from
	for cursor <= to {
		if err := s.limiter.Wait(ctx); err != nil {
			return report, err
		}
		remaining := int((to-cursor)/step) + 1
		if remaining > s.batch {
			remaining = s.batch
		}
		data, err := s.source.Fetch(ctx, FetchRequest{
			Symbol:   symbol,
			Interval: tf.SourceInterval,
			Start:    cursor,
			End:      to,
			Limit:    remaining,
		})
		report.Requests++
		if err != nil {
			return report, fmt.Errorf("%s 拉取失败: %w", s.source.Name(), err)
		}
		data = dropUnclosed(data, tf.Duration, s.now())
		if len(data) == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("区间 [%d,%d] 拉取为空", cursor, to))
			break
		}
		written, err := s.store.InsertCandles(ctx, symbol, tf.Key, data)
		if err != nil {
			return report, fmt.Errorf("写入失败: %w", err)
		}
		report.Written += written
		last := data[len(data)-1].OpenTime
		if last < cursor {
			report.Warnings = append(report.Warnings, fmt.Sprintf("数据源返回的时间未推进: %d", last))
			break
		}
		cursor = last + step
	}
	log.Infof("sync %s %s done requests=%d written=%d warnings=%d", symbol, tf.Key, report.Requests, report.Written, len(report.Warnings))
	return report, nil
}
