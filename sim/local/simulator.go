// 进程内单路口排队模拟器，实现sim.Adapter，用于离线训练与测试
package local

import (
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/parallel"
	"git.fiblab.net/sim/protos/v2/go/city/map/v2/mapv2connect"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/randengine"
)

var log = logrus.WithField("module", "local")

// 未配置车道参数时使用的默认值
var defaultLane = config.LaneConfig{ArrivalRate: 0.15, DischargeRate: 0.5}

// Simulator 本地模拟器
// 功能：维护受控路口的车道排队与信号灯，按步推进
// 说明：所有读写都持有同一把锁，因此RPC与控制循环可以并发访问
type Simulator struct {
	mapv2connect.UnimplementedTrafficLightServiceHandler

	mtx        sync.Mutex
	junctionID int32
	signalID   string
	dt         float64
	t          float64
	lanes      []*lane
	laneIndex  map[string]*lane
	light      *trafficLight
	closed     bool
}

var _ sim.Adapter = (*Simulator)(nil)

// New 创建本地模拟器
// 参数：c-本地模拟器配置，detectorIDs-检测器ID（车道顺序即相位灯色顺序），signalID-信号灯ID
// 返回：模拟器与错误
func New(c config.Local, detectorIDs []string, signalID string) (*Simulator, error) {
	if len(c.Lanes) != 0 && len(c.Lanes) != len(detectorIDs) {
		return nil, fmt.Errorf("local: %d lane configs for %d detectors", len(c.Lanes), len(detectorIDs))
	}
	if c.Interval <= 0 {
		return nil, fmt.Errorf("local: invalid interval %v", c.Interval)
	}
	tl, err := input.LoadProgram(c, len(detectorIDs))
	if err != nil {
		return nil, fmt.Errorf("local: %w", err)
	}
	lanes := lo.Map(detectorIDs, func(id string, i int) *lane {
		lc := defaultLane
		if len(c.Lanes) > 0 {
			lc = c.Lanes[i]
		}
		return &lane{
			id:            id,
			arrivalRate:   lc.ArrivalRate,
			dischargeRate: lc.DischargeRate,
			generator:     randengine.New(c.Seed + uint64(i)),
		}
	})
	s := &Simulator{
		junctionID: c.JunctionID,
		signalID:   signalID,
		dt:         c.Interval,
		lanes:      lanes,
		laneIndex:  lo.KeyBy(lanes, func(l *lane) string { return l.id }),
		light:      newTrafficLight(tl, lanes),
	}
	log.Infof("junction %d (%s): %d lanes, %d phases", s.junctionID, signalID, len(lanes), len(tl.Phases))
	for i, p := range tl.Phases {
		log.Debugf("phase %d: %s, %vs", i, input.FormatStates(p.States), p.Duration)
	}
	return s, nil
}

func (s *Simulator) checkSignal(signalID string) error {
	if signalID != s.signalID {
		return fmt.Errorf("local: unknown traffic light %q", signalID)
	}
	return nil
}

// Advance 推进一步
// 算法说明：
// 1. 信号灯把当前相位灯色写入车道
// 2. 并行更新所有车道的排队
// 3. 信号灯倒计时，必要时切换到下一相位
func (s *Simulator) Advance() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return sim.ErrClosed
	}
	s.light.prepare()
	parallel.GoFor(s.lanes, func(l *lane) { l.update() })
	s.light.update(s.dt)
	s.t += s.dt
	return nil
}

// QueueLength 检测器上的排队车辆数
func (s *Simulator) QueueLength(detectorID string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, sim.ErrClosed
	}
	l, ok := s.laneIndex[detectorID]
	if !ok {
		return 0, fmt.Errorf("local: unknown detector %q", detectorID)
	}
	return l.queue, nil
}

// Phase 当前相位
func (s *Simulator) Phase(signalID string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, sim.ErrClosed
	}
	if err := s.checkSignal(signalID); err != nil {
		return 0, err
	}
	return int(s.light.runtime.step), nil
}

// SetPhase 切换相位
func (s *Simulator) SetPhase(signalID string, phase int) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return sim.ErrClosed
	}
	if err := s.checkSignal(signalID); err != nil {
		return err
	}
	if phase < 0 || phase >= len(s.light.runtime.tl.Phases) {
		return fmt.Errorf("local: phase %d out of range [0, %d)", phase, len(s.light.runtime.tl.Phases))
	}
	s.light.setPhase(int32(phase))
	return nil
}

// PhaseCount 程序中的相位数
func (s *Simulator) PhaseCount(signalID string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return 0, sim.ErrClosed
	}
	if err := s.checkSignal(signalID); err != nil {
		return 0, err
	}
	return len(s.light.runtime.tl.Phases), nil
}

// Close 关闭模拟器，之后所有调用返回sim.ErrClosed
func (s *Simulator) Close() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.closed {
		log.Infof("close at t=%.1f", s.t)
	}
	s.closed = true
	return nil
}

// T 当前仿真时间（秒）
func (s *Simulator) T() float64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.t
}
