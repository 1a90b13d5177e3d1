package env_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
)

type stubAdapter struct {
	queues map[string]int
	phase  int
	err    error
}

func (s *stubAdapter) Advance() error { return nil }
func (s *stubAdapter) QueueLength(id string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.queues[id], nil
}
func (s *stubAdapter) Phase(string) (int, error)      { return s.phase, nil }
func (s *stubAdapter) SetPhase(string, int) error     { return nil }
func (s *stubAdapter) PhaseCount(string) (int, error) { return 4, nil }
func (s *stubAdapter) Close() error                   { return nil }

var detectors = []string{"e0", "e1", "e2", "s0", "s1", "s2"}

func TestObserve(t *testing.T) {
	a := &stubAdapter{
		queues: map[string]int{"e0": 2, "e1": 1, "e2": 0, "s0": 3, "s1": 0, "s2": 1},
		phase:  2,
	}
	m, err := env.NewModel(a, detectors, "tl")
	require.NoError(t, err)
	o, err := m.Observe()
	require.NoError(t, err)
	assert.Equal(t, env.Observation{2, 1, 0, 3, 0, 1, 2}, o)
	assert.Equal(t, [3]int{2, 1, 0}, o.EB())
	assert.Equal(t, [3]int{3, 0, 1}, o.SB())
	assert.Equal(t, [6]int{2, 1, 0, 3, 0, 1}, o.Queues())
	assert.Equal(t, 2, o.Phase())
	assert.Equal(t, 7, o.TotalQueue())
	assert.Equal(t, []float64{2, 1, 0, 3, 0, 1, 2}, o.Vector())
}

func TestObserveError(t *testing.T) {
	boom := errors.New("boom")
	m, err := env.NewModel(&stubAdapter{err: boom}, detectors, "tl")
	require.NoError(t, err)
	_, err = m.Observe()
	assert.ErrorIs(t, err, boom)

	_, err = env.NewModel(&stubAdapter{}, detectors[:4], "tl")
	assert.Error(t, err)
}

func TestReward(t *testing.T) {
	assert.Equal(t, -7., env.Reward(env.Observation{2, 1, 0, 3, 0, 1, 0}))
	// 相位不参与奖励
	assert.Equal(t, -7., env.Reward(env.Observation{2, 1, 0, 3, 0, 1, 3}))
	assert.Equal(t, 0., env.Reward(env.Observation{}))
	for _, o := range []env.Observation{{1, 0, 0, 0, 0, 0, 1}, {100, 200, 0, 5, 5, 5, 0}} {
		assert.LessOrEqual(t, env.Reward(o), 0.)
	}
}
