package task_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/agent"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/task"
)

// cycleAdapter 只有相位的模拟器
type cycleAdapter struct {
	phase, count, sets int
}

func (a *cycleAdapter) Advance() error                    { return nil }
func (a *cycleAdapter) QueueLength(string) (int, error)   { return 0, nil }
func (a *cycleAdapter) Phase(string) (int, error)         { return a.phase, nil }
func (a *cycleAdapter) PhaseCount(string) (int, error)    { return a.count, nil }
func (a *cycleAdapter) Close() error                      { return nil }
func (a *cycleAdapter) SetPhase(_ string, phase int) error {
	a.phase = phase
	a.sets++
	return nil
}

func TestSignalTimingScenario(t *testing.T) {
	a := &cycleAdapter{count: 4}
	s := &task.SignalTiming{MinGreen: 100, LastSwitch: 0}

	switched, err := s.Apply(a, "Node2", 50, agent.Advance)
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Equal(t, 0, a.phase)
	assert.Equal(t, 0, s.LastSwitch)

	switched, err = s.Apply(a, "Node2", 100, agent.Advance)
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, 1, a.phase)
	assert.Equal(t, 100, s.LastSwitch)
}

func TestSignalTimingFirstAdvance(t *testing.T) {
	a := &cycleAdapter{count: 4}
	s := task.NewSignalTiming(100)
	assert.Equal(t, -100, s.LastSwitch)
	switched, err := s.Apply(a, "Node2", 0, agent.Advance)
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, 0, s.LastSwitch)
}

func TestSignalTimingHold(t *testing.T) {
	a := &cycleAdapter{count: 4}
	s := task.NewSignalTiming(10)
	switched, err := s.Apply(a, "Node2", 500, agent.Hold)
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Zero(t, a.sets)
}

func TestSignalTimingWraps(t *testing.T) {
	a := &cycleAdapter{phase: 3, count: 4}
	s := task.NewSignalTiming(1)
	switched, err := s.Apply(a, "Node2", 7, agent.Advance)
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, 0, a.phase)
}

func TestSignalTimingNoPhases(t *testing.T) {
	a := &cycleAdapter{}
	_, err := task.NewSignalTiming(1).Apply(a, "Node2", 0, agent.Advance)
	assert.Error(t, err)
}
