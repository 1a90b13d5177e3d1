package local

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/randengine"
)

// lane 一条带检测器的进口车道
// 功能：用伯努利到达与绿灯伯努利驶离描述排队长度的变化
type lane struct {
	id            string             // 检测器ID
	arrivalRate   float64            // 每步到达一辆车的概率
	dischargeRate float64            // 绿灯时每步驶离一辆车的概率
	queue         int                // 排队车辆数
	light         mapv2.LightState   // 当前灯色（由信号灯在prepare阶段写入）
	generator     *randengine.Engine // 车道独立的随机数引擎，可并行更新
}

// SetLight 写入灯色
func (l *lane) SetLight(state mapv2.LightState) {
	l.light = state
}

// update 更新排队长度
// 算法说明：
// 1. 绿灯且队列非空时按dischargeRate驶离一辆车
// 2. 按arrivalRate到达一辆车
func (l *lane) update() {
	if l.light == mapv2.LightState_LIGHT_STATE_GREEN && l.queue > 0 && l.generator.PTrue(l.dischargeRate) {
		l.queue--
	}
	if l.generator.PTrue(l.arrivalRate) {
		l.queue++
	}
}
