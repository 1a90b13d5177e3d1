package task

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
)

// SignalTiming 最小绿灯约束
// 功能：记录上一次被接受的切换相位的步数，保证任意两次切换间隔不少于MinGreen步
type SignalTiming struct {
	MinGreen   int // 两次切换之间的最小步数
	LastSwitch int // 上一次切换的步数
}

// NewSignalTiming 创建约束状态，LastSwitch初始为-minGreen，使第0步即可切换
func NewSignalTiming(minGreen int) *SignalTiming {
	return &SignalTiming{MinGreen: minGreen, LastSwitch: -minGreen}
}

// Ready 第step步是否允许切换
func (s *SignalTiming) Ready(step int) bool {
	return step-s.LastSwitch >= s.MinGreen
}

// Apply 执行动作
// 功能：ADVANCE且满足最小绿灯时切换到下一相位（循环），否则不改变信号灯
// 参数：adapter-模拟器，signalID-信号灯，step-当前步数，action-动作
// 返回：是否发生了切换；不满足约束的ADVANCE直接丢弃，不是错误
func (s *SignalTiming) Apply(adapter sim.Adapter, signalID string, step int, action agent.Action) (bool, error) {
	if action != agent.Advance || !s.Ready(step) {
		return false, nil
	}
	phase, err := adapter.Phase(signalID)
	if err != nil {
		return false, err
	}
	count, err := adapter.PhaseCount(signalID)
	if err != nil {
		return false, err
	}
	if count <= 0 {
		return false, fmt.Errorf("signal %s has no phases", signalID)
	}
	if err := adapter.SetPhase(signalID, (phase+1)%count); err != nil {
		return false, err
	}
	s.LastSwitch = step
	return true, nil
}
