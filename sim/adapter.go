// 仿真适配器接口，隔离控制循环与具体的交通仿真器（SUMO TraCI或进程内模拟器）
package sim

import "errors"

// ErrClosed 仿真会话已经关闭
var ErrClosed = errors.New("sim: session closed")

// Adapter 仿真适配器
// 功能：推进仿真、读取检测器排队数与信号灯相位、切换相位
// 说明：任何错误都视为本次运行不可恢复，适配器内部不做重试
type Adapter interface {
	// 推进一个仿真步
	Advance() error
	// 检测器上一步内的车辆数（非负）
	QueueLength(detectorID string) (int, error)
	// 信号灯当前相位下标
	Phase(signalID string) (int, error)
	// 立即切换到指定相位，已处于该相位时无操作
	SetPhase(signalID string, phase int) error
	// 信号灯程序中的相位个数
	PhaseCount(signalID string) (int, error)
	// 关闭仿真会话
	Close() error
}
