package env

import "github.com/samber/lo"

// ObservationSize 观测向量长度：6个排队数与1个相位
const ObservationSize = 7

// Observation 一步的观测
// 功能：下标0~2为EB三条车道的排队数，3~5为SB三条车道的排队数，6为信号灯相位
// 说明：值类型，采集后不再修改
type Observation [ObservationSize]int

// Queues 6个排队数
func (o Observation) Queues() [6]int {
	return [6]int(o[:6])
}

// EB 东行三条车道的排队数
func (o Observation) EB() [3]int {
	return [3]int(o[0:3])
}

// SB 南行三条车道的排队数
func (o Observation) SB() [3]int {
	return [3]int(o[3:6])
}

// Phase 信号灯相位
func (o Observation) Phase() int {
	return o[6]
}

// TotalQueue 排队总数（不含相位）
func (o Observation) TotalQueue() int {
	return lo.Sum(o[:6])
}

// Vector 转换为函数近似器的输入
func (o Observation) Vector() []float64 {
	return lo.Map(o[:], func(v int, _ int) float64 { return float64(v) })
}
