// 运行状态发布：控制循环每步整体替换快照，HTTP处理函数无锁读取
package status

import (
	"sync/atomic"

	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
)

// Snapshot 某一步结束时的运行状态
type Snapshot struct {
	Observation      env.Observation
	CumulativeReward float64
	Step             int
}

// Cell 快照单元
// 功能：单写多读，发布为一次指针替换，读者不会看到部分更新的快照
type Cell struct {
	p atomic.Pointer[Snapshot]
}

func NewCell() *Cell {
	return &Cell{}
}

// Publish 发布新快照
func (c *Cell) Publish(s Snapshot) {
	c.p.Store(&s)
}

// Load 读取最近一次发布的快照，尚未发布时返回零值
func (c *Cell) Load() Snapshot {
	if s := c.p.Load(); s != nil {
		return *s
	}
	return Snapshot{}
}

// Status /status 的响应体
type Status struct {
	QueueEB          [3]int  `json:"q_EB"`
	QueueSB          [3]int  `json:"q_SB"`
	CurrentPhase     int     `json:"current_phase"`
	TotalQueue       int     `json:"total_queue"`
	CumulativeReward float64 `json:"cumulative_reward"`
}

// FromSnapshot 由快照生成响应体，TotalQueue为六个排队数之和
func FromSnapshot(s Snapshot) Status {
	return Status{
		QueueEB:          s.Observation.EB(),
		QueueSB:          s.Observation.SB(),
		CurrentPhase:     s.Observation.Phase(),
		TotalQueue:       s.Observation.TotalQueue(),
		CumulativeReward: s.CumulativeReward,
	}
}
