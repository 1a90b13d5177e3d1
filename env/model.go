// 状态与奖励模型：从仿真器读取固定形状的观测并计算奖励
package env

import (
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
)

// Model 状态模型
// 功能：按固定顺序读取6个检测器与1个信号灯
type Model struct {
	adapter     sim.Adapter
	detectorIDs [6]string
	signalID    string
}

// NewModel 创建状态模型
// 参数：adapter-仿真适配器，detectorIDs-6个检测器ID（前3个EB，后3个SB），signalID-信号灯ID
func NewModel(adapter sim.Adapter, detectorIDs []string, signalID string) (*Model, error) {
	if len(detectorIDs) != 6 {
		return nil, fmt.Errorf("env: need 6 detectors, got %d", len(detectorIDs))
	}
	return &Model{
		adapter:     adapter,
		detectorIDs: [6]string(detectorIDs),
		signalID:    signalID,
	}, nil
}

// SignalID 被观测的信号灯
func (m *Model) SignalID() string {
	return m.signalID
}

// Observe 采集当前观测
func (m *Model) Observe() (Observation, error) {
	var o Observation
	for i, id := range m.detectorIDs {
		q, err := m.adapter.QueueLength(id)
		if err != nil {
			return Observation{}, fmt.Errorf("read detector %s: %w", id, err)
		}
		o[i] = q
	}
	phase, err := m.adapter.Phase(m.signalID)
	if err != nil {
		return Observation{}, fmt.Errorf("read phase of %s: %w", m.signalID, err)
	}
	o[6] = phase
	return o, nil
}

// Reward 奖励为排队总数的相反数，不含相位，不做归一化与截断
func Reward(o Observation) float64 {
	return -float64(o.TotalQueue())
}
