package scenario_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/crankstep/internal/config"
	"github.com/torosent/crankstep/internal/pacing"
	"github.com/torosent/crankstep/internal/scenario"
)

func example(t *testing.T) *scenario.Scenario {
	t.Helper()
	s, err := scenario.New(
		scenario.Entry{Type: "Type1", Weight: 3, Pacing: pacing.Between(2*time.Second, 5*time.Second)},
		scenario.Entry{Type: "Type2", Weight: 1, Pacing: pacing.Between(3*time.Second, 8*time.Second)},
	)
	require.NoError(t, err)
	return s
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []scenario.Entry
		want    error
		msg     string
	}{
		{name: "empty", want: scenario.ErrEmpty},
		{name: "all zero", entries: []scenario.Entry{{Type: "A"}, {Type: "B"}}, want: scenario.ErrNoWeight},
		{name: "missing type", entries: []scenario.Entry{{Type: " ", Weight: 1}}, msg: "user type is required"},
		{name: "duplicate", entries: []scenario.Entry{{Type: "A", Weight: 1}, {Type: "A", Weight: 2}}, msg: "more than once"},
		{name: "negative", entries: []scenario.Entry{{Type: "A", Weight: -1}}, msg: "weight must be >= 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := scenario.New(tt.entries...)
			assert.Nil(t, s)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "err = %v", err)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestEntriesAndLookup(t *testing.T) {
	s := example(t)

	assert.Equal(t, []string{"Type1", "Type2"}, s.Types())
	assert.Equal(t, 4, s.TotalWeight())

	e, ok := s.Lookup("Type2")
	require.True(t, ok)
	assert.Equal(t, 1, e.Weight)
	assert.Equal(t, "between(3s, 8s)", pacing.Describe(e.Pacing))

	_, ok = s.Lookup("Type3")
	assert.False(t, ok)

	entries := s.Entries()
	entries[0].Weight = 100
	again, _ := s.Lookup("Type1")
	assert.Equal(t, 3, again.Weight, "Entries must return a copy")
}

func TestMix(t *testing.T) {
	mix := example(t).Mix()
	assert.InDelta(t, 0.75, mix["Type1"], 1e-9)
	assert.InDelta(t, 0.25, mix["Type2"], 1e-9)
}

func TestPickFollowsWeights(t *testing.T) {
	s, err := scenario.New(
		scenario.Entry{Type: "Heavy", Weight: 3},
		scenario.Entry{Type: "Never", Weight: 0},
		scenario.Entry{Type: "Light", Weight: 1},
	)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(7))
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[s.Pick(rnd).Type]++
	}

	assert.Zero(t, counts["Never"])
	assert.InDelta(t, 0.75, float64(counts["Heavy"])/n, 0.02)
	assert.InDelta(t, 0.25, float64(counts["Light"])/n, 0.02)

	assert.NotEmpty(t, s.Pick(nil).Type)
}

func TestOverrideLeavesOriginal(t *testing.T) {
	s := example(t)
	none := s.Override(pacing.Constant(0))

	e, _ := none.Lookup("Type1")
	assert.Equal(t, time.Duration(0), e.Pacing.Sample())
	assert.Equal(t, 3, e.Weight)

	orig, _ := s.Lookup("Type1")
	assert.Equal(t, "between(2s, 5s)", pacing.Describe(orig.Pacing))
}

func TestFromConfig(t *testing.T) {
	s, err := scenario.FromConfig([]config.UserConfig{
		{Type: "Type1", Weight: 3, Pacing: config.PacingConfig{Kind: config.PacingBetween, Min: 2 * time.Second, Max: 5 * time.Second}},
		{Type: "Type2", Weight: 1, Pacing: config.PacingConfig{Kind: config.PacingExponential, Mean: time.Second}},
		{Type: "Type3", Weight: 1, Pacing: config.PacingConfig{Kind: config.PacingThroughput, Rate: 5}},
		{Type: "Type4", Weight: 1},
	})
	require.NoError(t, err)

	e1, _ := s.Lookup("Type1")
	assert.Equal(t, "between(2s, 5s)", pacing.Describe(e1.Pacing))
	e2, _ := s.Lookup("Type2")
	assert.True(t, strings.HasPrefix(pacing.Describe(e2.Pacing), "exponential"))
	e3, _ := s.Lookup("Type3")
	assert.True(t, strings.HasPrefix(pacing.Describe(e3.Pacing), "throughput"))
	e4, _ := s.Lookup("Type4")
	assert.Nil(t, e4.Pacing, "unset pacing defers to the user type")
}

func TestSamplerErrors(t *testing.T) {
	_, err := scenario.Sampler(config.PacingConfig{Kind: "gaussian"})
	assert.Error(t, err)
	_, err = scenario.Sampler(config.PacingConfig{Kind: config.PacingBetween, Min: 2 * time.Second, Max: time.Second})
	assert.Error(t, err)
	_, err = scenario.Sampler(config.PacingConfig{Kind: config.PacingExponential})
	assert.Error(t, err)

	_, err = scenario.FromConfig([]config.UserConfig{{Type: "A", Weight: 1, Pacing: config.PacingConfig{Kind: "bad"}}})
	assert.ErrorContains(t, err, `user type "A"`)
}

func TestString(t *testing.T) {
	out := example(t).String()
	assert.Contains(t, out, "Type1")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "between(3s, 8s)")
}
