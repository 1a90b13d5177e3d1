package local

import (
	"git.fiblab.net/general/common/v2/mathutil"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// tlRuntime 信号灯运行时数据
type tlRuntime struct {
	tl         *mapv2.TrafficLight
	step       int32   // 当前相位
	remainingT float64 // 当前相位剩余时间
}

// trafficLight 本地固定程序信号灯
// 功能：按程序顺序切换相位，时长为0的相位一直保持直到被setPhase切走
type trafficLight struct {
	lanes   []*lane
	runtime tlRuntime
}

func newTrafficLight(tl *mapv2.TrafficLight, lanes []*lane) *trafficLight {
	l := &trafficLight{lanes: lanes, runtime: tlRuntime{tl: tl}}
	l.runtime.remainingT = l.duration(0)
	return l
}

// duration 相位时长，0表示无限保持
func (l *trafficLight) duration(step int32) float64 {
	if d := l.runtime.tl.Phases[step].Duration; d > 0 {
		return d
	}
	return mathutil.INF
}

// prepare 将当前相位的灯色写入车道
func (l *trafficLight) prepare() {
	p := l.runtime.tl.Phases[l.runtime.step]
	for i, lane := range l.lanes {
		lane.SetLight(p.States[i])
	}
}

// update 倒计时并在时间耗尽时切换到下一个相位
func (l *trafficLight) update(dt float64) {
	l.runtime.remainingT -= dt
	if l.runtime.remainingT > 0 {
		return
	}
	l.runtime.step = (l.runtime.step + 1) % int32(len(l.runtime.tl.Phases))
	l.runtime.remainingT = l.duration(l.runtime.step)
}

// setPhase 立即切换相位并重置计时，已处于该相位时无操作
func (l *trafficLight) setPhase(step int32) {
	if step == l.runtime.step {
		return
	}
	l.runtime.step = step
	l.runtime.remainingT = l.duration(step)
}
