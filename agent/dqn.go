// 在线DQN智能体：ε-greedy选择动作，每个转移只做一步梯度下降，无经验回放与目标网络
package agent

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/randengine"
	"gonum.org/v1/gonum/floats"
)

var log = logrus.WithField("module", "agent")

// Transition 一次转移，由Update消费一次后丢弃
type Transition struct {
	State  env.Observation
	Action Action
	Reward float64
	Next   env.Observation
}

// Agent 智能体
type Agent struct {
	network   *Network
	gamma     float64
	epsilon   float64
	generator *randengine.Engine
}

// New 创建智能体
// 参数：c-智能体配置，网络结构为 ObservationSize -> c.Hidden... -> len(Actions)
// 说明：参数初始化与探索共用c.Seed派生的随机数引擎
func New(c config.Agent) *Agent {
	sizes := append([]int{env.ObservationSize}, c.Hidden...)
	sizes = append(sizes, len(Actions))
	generator := randengine.New(c.Seed)
	a := &Agent{
		network:   NewNetwork(sizes, c.Alpha, generator),
		gamma:     c.Gamma,
		epsilon:   c.Epsilon,
		generator: generator,
	}
	log.Debugf("network %v, alpha=%v gamma=%v epsilon=%v", sizes, c.Alpha, c.Gamma, c.Epsilon)
	return a
}

func (a *Agent) Epsilon() float64 {
	return a.epsilon
}

// QValues 各动作的Q值估计
func (a *Agent) QValues(o env.Observation) []float64 {
	return a.network.Predict(o.Vector())
}

// SelectAction ε-greedy选择动作
// 算法说明：以ε概率均匀随机选择，否则选Q值最大的动作，相等时取下标最小者
func (a *Agent) SelectAction(o env.Observation) Action {
	if a.generator.PTrue(a.epsilon) {
		return Actions[a.generator.Choice(len(Actions))]
	}
	return Actions[floats.MaxIdx(a.QValues(o))]
}

// Update 用一个转移更新网络
// 算法说明：目标值 r + γ·max Q(next)，目标向量为 Q(state) 仅替换所选动作的分量，
// 因此未选动作的误差为0
// 返回：更新前的损失；Q值出现NaN/Inf时返回ErrDiverged
func (a *Agent) Update(t Transition) (float64, error) {
	if !t.Action.Valid() {
		return 0, fmt.Errorf("agent: invalid action %v", t.Action)
	}
	next := a.network.Predict(t.Next.Vector())
	if !finite(next) {
		return 0, ErrDiverged
	}
	q := a.network.Predict(t.State.Vector())
	if !finite(q) {
		return 0, ErrDiverged
	}
	q[t.Action] = t.Reward + a.gamma*floats.Max(next)
	return a.network.Fit(t.State.Vector(), q)
}
