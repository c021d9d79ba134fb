package distributor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/contract"
)

// stubInvoker returns a fixed output after an optional delay, modeling a
// well-behaved or slow plugin.
type stubInvoker struct {
	out   contract.InvokeOutput
	err   error
	delay time.Duration
}

func (s *stubInvoker) Invoke(ctx context.Context, _ contract.InvokeInput) (contract.InvokeOutput, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return contract.InvokeOutput{}, ctx.Err()
		}
	}
	return s.out, s.err
}

func newManagerStub(gens map[string]contract.Generator, weights map[string]float64) *plugin.Manager {
	return plugin.NewWithGenerators(gens, weights, 1)
}

// TestDistributor_TimeoutAbandonsSlowPlugin is scenario S5 from spec.md §8:
// consolidation proceeds using only the plugin that returned in time.
func TestDistributor_TimeoutAbandonsSlowPlugin(t *testing.T) {
	fast := &stubInvoker{out: contract.InvokeOutput{
		Weight:  1,
		Actions: []*action.Action{{Kind: action.KindMigrate, Target: "vm-1", Score: 3}},
	}}
	slow := &stubInvoker{delay: 500 * time.Millisecond}

	m := newManagerStub(map[string]contract.Generator{
		"p1": func() (contract.Invoker, error) { return fast, nil },
		"p2": func() (contract.Invoker, error) { return slow, nil },
	}, map[string]float64{"p1": 1, "p2": 1})

	d := New(m, 50*time.Millisecond, nil)
	carry, log, _ := d.Run(context.Background(), "high_cpu", "s1",
		[][]string{{"p1", "p2"}}, []action.Kind{action.KindMigrate}, nil, nil)

	require.NotEmpty(t, log)
	_, p2Present := log[0].Results["p2"]
	assert.False(t, p2Present)
	require.NotEmpty(t, carry)
	assert.Equal(t, action.KindMigrate, carry[0].Kind)
}

func TestDistributor_EmptyRoundCarriesPrevious(t *testing.T) {
	m := newManagerStub(nil, nil)
	d := New(m, time.Second, nil)

	carry, log, _ := d.Run(context.Background(), "high_cpu", "s1",
		[][]string{{"missing-plugin"}}, []action.Kind{action.KindMigrate}, nil, nil)

	require.Len(t, log, 1)
	require.Len(t, carry, 1)
	assert.Equal(t, action.KindMigrate, carry[0].Kind)
}
