// Package features 在优化前为 K 线表补充指标列与形态列。
package features

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vihaananand2001/commodity-trading-dashboard/internal/logger"
)

var log = logger.Named("features")

// Step 描述一个特征计算步骤。
type Step interface {
	Meta() StepMeta
	Handle(ctx context.Context, f *Frame) error
}

// StepMeta 提供调度所需元信息。同一 stage 内的步骤并行执行。
type StepMeta struct {
	Name     string
	Stage    int
	Critical bool
	Timeout  time.Duration
}

// StepError 封装步骤失败信息。
type StepError struct {
	Step     string
	Stage    int
	Critical bool
	Err      error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Step
	}
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Pipeline 按 stage 顺序调度步骤。
type Pipeline struct {
	name   string
	stages [][]Step
}

// New 创建 Pipeline，并按 stage 归类步骤。
func New(name string, steps ...Step) *Pipeline {
	stageMap := make(map[int][]Step)
	for _, st := range steps {
		if st == nil {
			continue
		}
		meta := st.Meta()
		stageMap[meta.Stage] = append(stageMap[meta.Stage], st)
	}
	keys := make([]int, 0, len(stageMap))
	for k := range stageMap {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	stages := make([][]Step, 0, len(keys))
	for _, k := range keys {
		stages = append(stages, stageMap[k])
	}
	return &Pipeline{name: name, stages: stages}
}

// Run 执行 pipeline。关键步骤失败会中止，非关键步骤失败记为 warning。
func (p *Pipeline) Run(ctx context.Context, f *Frame) error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for _, stage := range p.stages {
		if err := p.runStage(ctx, f, stage); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, f *Frame, stage []Step) error {
	group, stageCtx := errgroup.WithContext(ctx)
	warnCh := make(chan *StepError, len(stage))
	for _, st := range stage {
		st := st
		group.Go(func() error {
			meta := st.Meta()
			runCtx := stageCtx
			if meta.Timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(stageCtx, meta.Timeout)
				defer cancel()
			}
			err := st.Handle(runCtx, f)
			if err == nil {
				return nil
			}
			sErr := &StepError{Step: meta.Name, Stage: meta.Stage, Critical: meta.Critical, Err: err}
			if meta.Critical {
				return sErr
			}
			warnCh <- sErr
			return nil
		})
	}
	err := group.Wait()
	close(warnCh)
	for warn := range warnCh {
		f.AddWarning(warn.Error())
		log.Warnf("%s %s", p.name, warn.Error())
	}
	if err != nil {
		f.AddWarning(err.Error())
	}
	return err
}
