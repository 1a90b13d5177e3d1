package clock

import (
	"fmt"
	"sync/atomic"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
)

// Clock 训练循环时钟
// 功能：记录控制循环已经推进的步数与对应的仿真时间
// 说明：步数使用原子变量保存，控制循环写、RPC读，无需加锁
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT    float64 // 每步时间间隔（秒）
	TOTAL int     // 总步数，模拟区间[0, TOTAL)

	tick atomic.Int64 // 已完成的步数
}

// New 创建时钟
// 参数：total-总步数，dt-每步时间间隔
func New(total int, dt float64) *Clock {
	return &Clock{DT: dt, TOTAL: total}
}

// Step 推进一步
func (c *Clock) Step() {
	c.tick.Add(1)
}

// Tick 已完成的步数
func (c *Clock) Tick() int {
	return int(c.tick.Load())
}

// T 当前仿真时间（秒）
func (c *Clock) T() float64 {
	return float64(c.tick.Load()) * c.DT
}

// Done 是否已经走完全部步数
func (c *Clock) Done() bool {
	return c.Tick() >= c.TOTAL
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.T()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}

// String 格式化为HH:MM:SS
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}
