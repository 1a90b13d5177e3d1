package task_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/sim/local"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/status"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/task"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
)

// recordingAdapter 记录每次切换相位发生在第几步
type recordingAdapter struct {
	sim.Adapter
	advances int
	switches []int
	closed   bool
}

func (a *recordingAdapter) Advance() error {
	if err := a.Adapter.Advance(); err != nil {
		return err
	}
	a.advances++
	return nil
}

func (a *recordingAdapter) SetPhase(signalID string, phase int) error {
	a.switches = append(a.switches, a.advances)
	return a.Adapter.SetPhase(signalID, phase)
}

func (a *recordingAdapter) Close() error {
	a.closed = true
	return a.Adapter.Close()
}

// scriptedPolicy 固定动作的策略，记录收到的转移
type scriptedPolicy struct {
	action      agent.Action
	transitions []agent.Transition
	err         error
}

func (p *scriptedPolicy) SelectAction(env.Observation) agent.Action {
	return p.action
}

func (p *scriptedPolicy) Update(t agent.Transition) (float64, error) {
	p.transitions = append(p.transitions, t)
	return 0, p.err
}

type fakePublisher struct {
	stop     chan struct{}
	once     sync.Once
	served   atomic.Bool
	shutdown atomic.Bool
	serveErr error
}

func newFakePublisher(serveErr error) *fakePublisher {
	return &fakePublisher{stop: make(chan struct{}), serveErr: serveErr}
}

func (p *fakePublisher) Serve() error {
	p.served.Store(true)
	if p.serveErr != nil {
		return p.serveErr
	}
	<-p.stop
	return nil
}

func (p *fakePublisher) Shutdown(context.Context) error {
	p.shutdown.Store(true)
	p.once.Do(func() { close(p.stop) })
	return nil
}

func testConfig(totalSteps, minGreen int) config.Config {
	c := config.Default()
	c.Control.TotalSteps = totalSteps
	c.Control.MinGreenSteps = minGreen
	c.Control.HeartbeatInterval = 50
	c.Agent.Seed = 5
	return c
}

func newAdapter(t *testing.T, c config.Config) *recordingAdapter {
	t.Helper()
	s, err := local.New(c.Simulator.Local, c.Control.DetectorIDs, c.Control.SignalID)
	require.NoError(t, err)
	return &recordingAdapter{Adapter: s}
}

func TestRunDwellInvariant(t *testing.T) {
	c := testConfig(500, 30)
	a := newAdapter(t, c)
	ctx, err := task.NewContext("dwell", c, a, &scriptedPolicy{action: agent.Advance}, status.NewCell(), nil, nil)
	require.NoError(t, err)
	_, err = ctx.Run()
	require.NoError(t, err)

	require.NotEmpty(t, a.switches)
	assert.Equal(t, 0, a.switches[0])
	for i := 1; i < len(a.switches); i++ {
		assert.GreaterOrEqual(t, a.switches[i]-a.switches[i-1], 30)
	}
	// 每30步恰好接受一次ADVANCE：0, 30, ..., 480
	assert.Len(t, a.switches, 17)
	assert.Equal(t, 480, ctx.Timing().LastSwitch)
}

func TestRunHoldNeverSwitches(t *testing.T) {
	c := testConfig(200, 10)
	a := newAdapter(t, c)
	ctx, err := task.NewContext("hold", c, a, &scriptedPolicy{action: agent.Hold}, status.NewCell(), nil, nil)
	require.NoError(t, err)
	_, err = ctx.Run()
	require.NoError(t, err)
	assert.Empty(t, a.switches)
}

func TestRunHistory(t *testing.T) {
	c := testConfig(200, 10)
	a := newAdapter(t, c)
	cell := status.NewCell()
	ctx, err := task.NewContext("history", c, a, agent.New(c.Agent), cell, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, task.Init, ctx.State())

	h, err := ctx.Run()
	require.NoError(t, err)
	assert.Equal(t, task.Done, ctx.State())
	assert.Equal(t, "history", h.RunID)

	require.Equal(t, 200, h.Len())
	sum := 0.
	for i, r := range h.Records {
		assert.Equal(t, i, r.Step)
		sum -= float64(r.TotalQueue)
		assert.InDelta(t, sum, r.CumulativeReward, 1e-9)
		assert.LessOrEqual(t, r.CumulativeReward, 0.)
	}
	assert.InDelta(t, sum, ctx.CumulativeReward(), 1e-9)
	assert.Equal(t, 200, ctx.Clock().Tick())

	snap := cell.Load()
	last, _ := h.Last()
	assert.Equal(t, 199, snap.Step)
	assert.Equal(t, last.CumulativeReward, snap.CumulativeReward)
	assert.Equal(t, last.TotalQueue, snap.Observation.TotalQueue())

	assert.True(t, a.closed)
	assert.ErrorIs(t, a.Advance(), sim.ErrClosed)
}

func TestTickRewardFromNextState(t *testing.T) {
	c := testConfig(100, 10)
	a := newAdapter(t, c)
	p := &scriptedPolicy{action: agent.Advance}
	ctx, err := task.NewContext("reward", c, a, p, status.NewCell(), nil, nil)
	require.NoError(t, err)

	for step := range 100 {
		r, err := ctx.Tick(step)
		require.NoError(t, err)
		tr := p.transitions[step]
		assert.Equal(t, env.Reward(tr.Next), tr.Reward)
		assert.Equal(t, tr.Next.TotalQueue(), r.TotalQueue)
		if step > 0 {
			// 本步的state即上一步的next
			assert.Equal(t, p.transitions[step-1].Next, tr.State)
		}
	}
}

func TestRunDiverged(t *testing.T) {
	c := testConfig(100, 10)
	a := newAdapter(t, c)
	pub := newFakePublisher(nil)
	ctx, err := task.NewContext("diverged", c, a, &scriptedPolicy{err: agent.ErrDiverged}, status.NewCell(), nil, pub)
	require.NoError(t, err)

	h, err := ctx.Run()
	assert.ErrorIs(t, err, agent.ErrDiverged)
	assert.Zero(t, h.Len())
	assert.Equal(t, task.Done, ctx.State())
	assert.True(t, a.closed)
	assert.True(t, pub.shutdown.Load())
}

func TestRunSimulatorError(t *testing.T) {
	c := testConfig(100, 10)
	a := newAdapter(t, c)
	require.NoError(t, a.Adapter.Close())
	ctx, err := task.NewContext("closed", c, a, &scriptedPolicy{}, status.NewCell(), nil, nil)
	require.NoError(t, err)
	_, err = ctx.Run()
	assert.ErrorIs(t, err, sim.ErrClosed)
}

func TestRunSupervisesPublisher(t *testing.T) {
	c := testConfig(50, 10)
	pub := newFakePublisher(nil)
	ctx, err := task.NewContext("pub", c, newAdapter(t, c), &scriptedPolicy{}, status.NewCell(), nil, pub)
	require.NoError(t, err)
	h, err := ctx.Run()
	require.NoError(t, err)
	assert.Equal(t, 50, h.Len())
	assert.True(t, pub.served.Load())
	assert.True(t, pub.shutdown.Load())

	_, err = ctx.Run()
	assert.Error(t, err)
}

func TestRunPublisherFailureDoesNotStopTraining(t *testing.T) {
	c := testConfig(50, 10)
	listenErr := errors.New("address already in use")
	pub := newFakePublisher(listenErr)
	ctx, err := task.NewContext("pub-fail", c, newAdapter(t, c), &scriptedPolicy{}, status.NewCell(), nil, pub)
	require.NoError(t, err)
	h, err := ctx.Run()
	assert.ErrorIs(t, err, listenErr)
	assert.Equal(t, 50, h.Len())
}

func TestNewContextDetectors(t *testing.T) {
	c := testConfig(10, 10)
	a := newAdapter(t, c)
	c.Control.DetectorIDs = c.Control.DetectorIDs[:5]
	_, err := task.NewContext("bad", c, a, &scriptedPolicy{}, status.NewCell(), nil, nil)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "INIT", task.Init.String())
	assert.Equal(t, "RUNNING", task.Running.String())
	assert.Equal(t, "CLOSING", task.Closing.String())
	assert.Equal(t, "DONE", task.Done.String())
}
