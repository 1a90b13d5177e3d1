package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/env"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
	"gonum.org/v1/gonum/floats"
)

func testConfig(epsilon float64) config.Agent {
	c := config.Default().Agent
	c.Epsilon = epsilon
	c.Seed = 11
	return c
}

var sample = env.Observation{2, 1, 0, 3, 0, 1, 0}

func TestSelectActionGreedy(t *testing.T) {
	a := New(testConfig(0))
	want := Actions[floats.MaxIdx(a.QValues(sample))]
	for range 100 {
		assert.Equal(t, want, a.SelectAction(sample))
	}
}

func TestSelectActionGreedyTie(t *testing.T) {
	a := New(testConfig(0))
	// 输出层全部置零后两个Q值相等，取下标较小的HOLD
	out := a.network.layers[len(a.network.layers)-1]
	out.w.Zero()
	out.b.Zero()
	assert.Equal(t, []float64{0, 0}, a.QValues(sample))
	assert.Equal(t, Hold, a.SelectAction(sample))
}

func TestSelectActionRandom(t *testing.T) {
	a := New(testConfig(1))
	counts := map[Action]int{}
	const n = 10000
	for range n {
		counts[a.SelectAction(sample)]++
	}
	assert.InDelta(t, n/2, counts[Hold], n*0.05)
	assert.InDelta(t, n/2, counts[Advance], n*0.05)
}

func TestUpdateLeavesUntakenOutput(t *testing.T) {
	a := New(testConfig(0))
	out := a.network.layers[len(a.network.layers)-1]
	_, in := out.w.Dims()
	holdRow := make([]float64, in)
	copy(holdRow, out.w.RawRowView(int(Hold)))
	holdBias := out.b.AtVec(int(Hold))

	_, err := a.Update(Transition{State: sample, Action: Advance, Reward: -7, Next: sample})
	require.NoError(t, err)

	assert.Equal(t, holdRow, out.w.RawRowView(int(Hold)))
	assert.Equal(t, holdBias, out.b.AtVec(int(Hold)))
	assert.NotEqual(t, 0., out.b.AtVec(int(Advance)))
}

func TestUpdateMovesTowardTarget(t *testing.T) {
	c := testConfig(0)
	c.Gamma = 0
	c.Alpha = 0.01
	a := New(c)
	next := env.Observation{0, 0, 0, 0, 0, 0, 1}
	tr := Transition{State: sample, Action: Advance, Reward: -5, Next: next}

	before := math.Abs(a.QValues(sample)[Advance] + 5)
	for range 1000 {
		_, err := a.Update(tr)
		require.NoError(t, err)
	}
	after := math.Abs(a.QValues(sample)[Advance] + 5)
	assert.Less(t, after, before)
	assert.Less(t, after, 0.1)
}

func TestUpdateInvalid(t *testing.T) {
	a := New(testConfig(0))
	_, err := a.Update(Transition{State: sample, Action: Action(5), Next: sample})
	assert.Error(t, err)

	a.network.layers[0].w.Set(0, 0, math.NaN())
	_, err = a.Update(Transition{State: sample, Action: Hold, Next: sample})
	assert.ErrorIs(t, err, ErrDiverged)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "HOLD", Hold.String())
	assert.Equal(t, "ADVANCE", Advance.String())
	assert.Equal(t, "Action(3)", Action(3).String())
}
