package task

import (
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/report"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/status"
)

// Tick 执行一步
// 功能：完成一次观测、决策、执行、学习与发布
// 参数：step-当前步数
// 返回：本步的训练记录与错误
// 算法说明：
// 1. 观测state
// 2. 策略选择动作
// 3. 在最小绿灯约束下执行动作
// 4. 模拟器推进一步
// 5. 观测next
// 6. 由next计算回报并累加
// 7. 用(state, action, r, next)更新策略
// 8. 发布(next, 累计回报)快照
// 9. 记录(step, 累计回报, 排队总数)
func (ctx *Context) Tick(step int) (report.Record, error) {
	state, err := ctx.model.Observe()
	if err != nil {
		return report.Record{}, err
	}
	action := ctx.policy.SelectAction(state)
	switched, err := ctx.timing.Apply(ctx.adapter, ctx.model.SignalID(), step, action)
	if err != nil {
		return report.Record{}, err
	}
	if err := ctx.adapter.Advance(); err != nil {
		return report.Record{}, err
	}
	ctx.clock.Step()
	next, err := ctx.model.Observe()
	if err != nil {
		return report.Record{}, err
	}
	r := env.Reward(next)
	ctx.cumulativeReward += r
	loss, err := ctx.policy.Update(agent.Transition{
		State:  state,
		Action: action,
		Reward: r,
		Next:   next,
	})
	if err != nil {
		return report.Record{}, err
	}
	ctx.cell.Publish(status.Snapshot{
		Observation:      next,
		CumulativeReward: ctx.cumulativeReward,
		Step:             step,
	})
	record := report.Record{
		Step:             step,
		CumulativeReward: ctx.cumulativeReward,
		TotalQueue:       next.TotalQueue(),
	}
	if err := ctx.history.Append(record); err != nil {
		return report.Record{}, err
	}

	log.Debugf("step %d: state=%v action=%v switched=%v reward=%.0f cumulative=%.0f loss=%.4f",
		step, state, action, switched, r, ctx.cumulativeReward, loss)
	if interval := ctx.control.HeartbeatInterval; interval > 0 && (step+1)%interval == 0 {
		log.Infof(
			"STEP: %d(%s) queue=%d phase=%d cumulative reward=%.1f",
			step+1, ctx.clock, record.TotalQueue, next.Phase(), ctx.cumulativeReward,
		)
	}
	return record, nil
}
