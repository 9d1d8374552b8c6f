package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/backtest"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/bars"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
	"github.com/vihaananand2001/commodity-trading-dashboard/internal/signal"
)

var log = logger.Named("optimizer")

// Runner 执行一次交易模拟，*backtest.Simulator 满足该接口。
type Runner interface {
	Run(tbl *bars.Table, sig signal.EntrySignal, p backtest.Params) (backtest.Result, error)
}

// Options 控制一次优化。
type Options struct {
	Pattern         string
	Workers         int
	MaxCombinations int
	ProgressEvery   int
	Breakeven       backtest.Breakeven
	Objectives      Objectives
}

// Report 是一次优化的输出。
type Report struct {
	*Aggregator
	Total   int
	Valid   int
	Elapsed time.Duration
}

// Evaluator 把参数组合分发给固定大小的 worker 池。
type Evaluator struct {
	combiner *signal.Combiner
	runner   Runner
	opts     Options
}

func NewEvaluator(combiner *signal.Combiner, runner Runner, opts Options) *Evaluator {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Evaluator{combiner: combiner, runner: runner, opts: opts}
}

type job struct {
	idx   int
	combo Combination
}

// Validate 在分发前检查空间引用的全部列。
func (e *Evaluator) Validate(tbl *bars.Table, space *Space) error {
	if tbl == nil {
		return fmt.Errorf("bar table 不能为空")
	}
	for _, f := range space.Probe(e.opts.Pattern) {
		if err := e.combiner.Validate(tbl, f); err != nil {
			return fmt.Errorf("validate columns: %w", err)
		}
	}
	return nil
}

// Run 评估空间内全部有效组合。单个组合的失败记为 INTERNAL_ERROR，不影响其它组合。
// ctx 取消后停止分发，返回已完成部分与 ctx.Err()。
func (e *Evaluator) Run(ctx context.Context, tbl *bars.Table, space *Space) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &Report{Aggregator: NewAggregator(), Total: space.Count()}
	if space.Count() == 0 {
		return report, nil
	}
	if limit := e.opts.MaxCombinations; limit > 0 && space.Count() > limit {
		return nil, fmt.Errorf("%w: %d combinations > limit %d", ErrSpaceTooLarge, space.Count(), limit)
	}
	if err := e.Validate(tbl, space); err != nil {
		return nil, err
	}
	report.Valid = space.ValidCount()
	started := time.Now()
	log.Infof("evaluating %d combinations (%d pruned) with %d workers", report.Valid, report.Total-report.Valid, e.opts.Workers)

	jobs := make(chan job)
	outcomes := make(chan Outcome, e.opts.Workers)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(jobs)
		return space.Iterate(groupCtx, func(idx int, c Combination) error {
			select {
			case jobs <- job{idx: idx, combo: c}:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
	})
	for w := 0; w < e.opts.Workers; w++ {
		group.Go(func() error {
			for j := range jobs {
				outcomes <- e.evaluate(tbl, j)
			}
			return nil
		})
	}
	var runErr error
	go func() {
		runErr = group.Wait()
		close(outcomes)
	}()

	done := 0
	for o := range outcomes {
		report.Add(o)
		done++
		if e.opts.ProgressEvery > 0 && done%e.opts.ProgressEvery == 0 {
			log.Infof("progress %d/%d passed=%d", done, report.Valid, report.PassedCount())
		}
	}
	report.Elapsed = time.Since(started)

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Warnf("cancelled after %d/%d combinations: %v", done, report.Valid, ctxErr)
			return report, ctxErr
		}
		return report, runErr
	}
	log.Infof("done %d combinations in %s, passed=%d", done, report.Elapsed.Round(time.Millisecond), report.PassedCount())
	return report, nil
}

// Evaluate 同步评估单个组合，供测试与重放使用。
func (e *Evaluator) Evaluate(tbl *bars.Table, idx int, c Combination) Outcome {
	return e.evaluate(tbl, job{idx: idx, combo: c})
}

// Replay 重新模拟单个组合，返回完整交易日志与权益曲线。
func (e *Evaluator) Replay(tbl *bars.Table, c Combination) (backtest.Result, error) {
	sig, err := e.combiner.Build(tbl, c.Filters(e.opts.Pattern))
	if err != nil {
		return backtest.Result{}, err
	}
	return e.runner.Run(tbl, sig, c.Params(e.opts.Breakeven))
}

func (e *Evaluator) evaluate(tbl *bars.Table, j job) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = internalError(j, 0, fmt.Errorf("panic: %v", r))
		}
	}()
	sig, err := e.combiner.Build(tbl, j.combo.Filters(e.opts.Pattern))
	if err != nil {
		return internalError(j, 0, err)
	}
	signals := sig.Count()
	if signals == 0 {
		return Outcome{Diagnostic: &Diagnostic{
			Index:       j.idx,
			Combination: j.combo,
			Reason:      ReasonNoSignals,
			Message:     "entry mask has no signals",
		}}
	}
	res, err := e.runner.Run(tbl, sig, j.combo.Params(e.opts.Breakeven))
	if err != nil {
		return internalError(j, signals, err)
	}
	summary := res.Summary
	if reason, msg, ok := e.opts.Objectives.Check(summary); !ok {
		return Outcome{Diagnostic: &Diagnostic{
			Index:       j.idx,
			Combination: j.combo,
			Reason:      reason,
			Message:     msg,
			Signals:     signals,
			Summary:     &summary,
		}}
	}
	return Outcome{Result: &Result{
		Index:       j.idx,
		Combination: j.combo,
		Signals:     signals,
		Summary:     summary,
	}}
}

func internalError(j job, signals int, err error) Outcome {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Outcome{Diagnostic: &Diagnostic{
		Index:       j.idx,
		Combination: j.combo,
		Reason:      ReasonInternalError,
		Message:     err.Error(),
		Signals:     signals,
	}}
}
