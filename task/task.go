package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/clock"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/report"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/status"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
	"golang.org/x/sync/errgroup"
)

const (
	SelfName = "signal-rl" // 本程序在模拟任务集群中的名字

	// 关闭状态服务的超时
	shutdownTimeout = 5 * time.Second
)

// Policy 控制策略
type Policy interface {
	SelectAction(o env.Observation) agent.Action
	Update(t agent.Transition) (float64, error)
}

var _ Policy = (*agent.Agent)(nil)

// Publisher 随训练启停的状态服务
type Publisher interface {
	Serve() error
	Shutdown(ctx context.Context) error
}

var _ Publisher = (*status.Server)(nil)

// State 控制循环状态
type State int32

const (
	Init State = iota
	Running
	Closing
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Running:
		return "RUNNING"
	case Closing:
		return "CLOSING"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Context 一次训练任务的上下文
// 功能：持有训练循环用到的全部组件与状态，替代全局变量
// 说明：控制循环在调用Run的goroutine中单线程执行，状态服务只通过cell读取快照
type Context struct {
	runID string
	state atomic.Int32

	// 时钟
	clock *clock.Clock
	// 模拟器会话，整个进程只打开一次
	adapter sim.Adapter
	// 观测与回报
	model *env.Model
	// 策略
	policy Policy
	// 最小绿灯约束
	timing *SignalTiming

	// 运行状态快照
	cell *status.Cell
	// 状态服务，可为nil
	publisher Publisher
	// 辅助程序，对外提供时钟等RPC服务，可为nil
	sidecar *syncer.Sidecar

	control          config.Control
	cumulativeReward float64
	history          *report.History
}

// NewContext 创建训练任务上下文
// 参数：
//   - runID: 本次训练的ID
//   - c: 配置
//   - adapter: 已打开的模拟器会话
//   - policy: 策略
//   - cell: 快照单元
//   - sidecar: 辅助程序（nil表示不提供RPC服务）
//   - publisher: 状态服务（nil表示不提供）
//
// 返回：上下文与错误
// 说明：时钟会注册到sidecar上，由Run负责启动与关闭sidecar和状态服务
func NewContext(
	runID string,
	c config.Config,
	adapter sim.Adapter,
	policy Policy,
	cell *status.Cell,
	sidecar *syncer.Sidecar,
	publisher Publisher,
) (*Context, error) {
	model, err := env.NewModel(adapter, c.Control.DetectorIDs, c.Control.SignalID)
	if err != nil {
		return nil, err
	}
	dt := 1.
	if c.Simulator.Kind == config.KindLocal {
		dt = c.Simulator.Local.Interval
	}
	ctx := &Context{
		runID:     runID,
		clock:     clock.New(c.Control.TotalSteps, dt),
		adapter:   adapter,
		model:     model,
		policy:    policy,
		timing:    NewSignalTiming(c.Control.MinGreenSteps),
		cell:      cell,
		publisher: publisher,
		sidecar:   sidecar,
		control:   c.Control,
		history:   report.NewHistory(runID),
	}
	if sidecar != nil {
		ctx.clock.Register(sidecar)
	}
	return ctx, nil
}

func (ctx *Context) State() State {
	return State(ctx.state.Load())
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Timing() *SignalTiming {
	return ctx.timing
}

func (ctx *Context) CumulativeReward() float64 {
	return ctx.cumulativeReward
}

func (ctx *Context) History() *report.History {
	return ctx.history
}

// Run 运行训练
// 功能：启动状态服务与sidecar，执行恰好TotalSteps步，随后关闭模拟器、状态服务与sidecar
// 返回：训练历史与错误（模拟器错误或ErrDiverged会提前结束循环）
// 算法说明：
// 1. 状态INIT -> RUNNING，在errgroup中启动状态服务与sidecar
// 2. 依次执行第0..TotalSteps-1步，任何错误立即退出循环
// 3. 状态 -> CLOSING，关闭模拟器会话
// 4. 关闭状态服务与sidecar并等待其退出
// 5. 状态 -> DONE
// 说明：状态服务失败只记录日志，不会中断训练
func (ctx *Context) Run() (*report.History, error) {
	if !ctx.state.CompareAndSwap(int32(Init), int32(Running)) {
		return nil, fmt.Errorf("task: run %s is %v", ctx.runID, ctx.State())
	}
	log.Infof("run %s started: %d steps, min green %d", ctx.runID, ctx.control.TotalSteps, ctx.timing.MinGreen)

	var g errgroup.Group
	if ctx.publisher != nil {
		g.Go(func() error {
			if err := ctx.publisher.Serve(); err != nil {
				log.Errorf("status server: %v", err)
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
	}
	if ctx.sidecar != nil {
		g.Go(func() error {
			if err := ctx.sidecar.Serve(); err != nil {
				log.Errorf("sidecar: %v", err)
				return fmt.Errorf("sidecar: %w", err)
			}
			return nil
		})
	}

	var loopErr error
	for !ctx.clock.Done() {
		step := ctx.clock.Tick()
		if _, loopErr = ctx.Tick(step); loopErr != nil {
			loopErr = fmt.Errorf("step %d: %w", step, loopErr)
			log.Errorf("run %s aborted: %v", ctx.runID, loopErr)
			break
		}
	}

	ctx.state.Store(int32(Closing))
	closeErr := ctx.adapter.Close()
	if closeErr != nil {
		closeErr = fmt.Errorf("close simulator: %w", closeErr)
	}
	ctx.shutdown()
	supervisedErr := g.Wait()
	ctx.state.Store(int32(Done))

	if last, ok := ctx.history.Last(); ok {
		log.Infof("run %s complete: %d steps, cumulative reward %.1f, last total queue %d",
			ctx.runID, ctx.history.Len(), last.CumulativeReward, last.TotalQueue)
	}
	return ctx.history, errors.Join(loopErr, closeErr, supervisedErr)
}

// shutdown 关闭状态服务与sidecar
func (ctx *Context) shutdown() {
	if ctx.publisher != nil {
		c, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ctx.publisher.Shutdown(c); err != nil {
			log.Warnf("shutdown status server: %v", err)
		}
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
	}
}
