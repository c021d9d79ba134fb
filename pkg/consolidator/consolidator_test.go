package consolidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

func mustAction(t *testing.T, kind action.Kind, target string, score int) *action.Action {
	t.Helper()
	return &action.Action{Kind: kind, Target: target, Score: score}
}

// TestConsolidate_Veto is scenario S3 from spec.md §8: a vetoed action is
// blacklisted and excluded from the final ordered list.
func TestConsolidate_Veto(t *testing.T) {
	migrate := mustAction(t, action.KindMigrate, "vm-1", 3)
	vetoMigrate := mustAction(t, action.KindMigrate, "vm-1", -1)
	vertical := mustAction(t, action.KindVerticalScale, "vm-1", 2)

	rounds := map[string]PluginRound{
		"p1": {Plugin: "p1", Weight: 1, Actions: []*action.Action{migrate}},
		"p2": {Plugin: "p2", Weight: 1, Actions: []*action.Action{vetoMigrate, vertical}},
	}

	result := Consolidate([]action.Kind{action.KindMigrate, action.KindVerticalScale}, rounds, nil)

	require.Len(t, result.Blacklist, 1)
	assert.Equal(t, action.KindMigrate, result.Blacklist[0].Kind)

	require.Len(t, result.Ordered, 1)
	assert.Equal(t, action.KindVerticalScale, result.Ordered[0].Kind)
}

// TestConsolidate_STVTieBreak is scenario S4: three plugins of equal weight
// each propose a distinct single action at score 5. All three candidates
// must appear in the output exactly once.
func TestConsolidate_STVTieBreak(t *testing.T) {
	a1 := mustAction(t, action.KindMigrate, "vm-1", 5)
	a2 := mustAction(t, action.KindVerticalScale, "vm-2", 5)
	a3 := mustAction(t, action.KindHorizontalScale, "vm-3", 5)

	rounds := map[string]PluginRound{
		"p1": {Plugin: "p1", Weight: 1, Actions: []*action.Action{a1}},
		"p2": {Plugin: "p2", Weight: 1, Actions: []*action.Action{a2}},
		"p3": {Plugin: "p3", Weight: 1, Actions: []*action.Action{a3}},
	}

	result := Consolidate(
		[]action.Kind{action.KindMigrate, action.KindVerticalScale, action.KindHorizontalScale},
		rounds, nil)

	require.Len(t, result.Ordered, 3)
	seen := make(map[action.Kind]bool)
	for _, a := range result.Ordered {
		seen[a.Kind] = true
	}
	assert.Len(t, seen, 3)
}

// TestConsolidate_VotesIsSeat0Tally is invariant 5: votes in the final list
// equals the seat-0 tally, not any post-transfer value.
func TestConsolidate_VotesIsSeat0Tally(t *testing.T) {
	winner := mustAction(t, action.KindMigrate, "vm-1", 10)
	loser := mustAction(t, action.KindVerticalScale, "vm-2", 1)

	rounds := map[string]PluginRound{
		"p1": {Plugin: "p1", Weight: 1, Actions: []*action.Action{winner, loser}},
	}

	result := Consolidate([]action.Kind{action.KindMigrate, action.KindVerticalScale}, rounds, nil)
	require.NotEmpty(t, result.Ordered)
	assert.Equal(t, 10000, result.Ordered[0].Votes)
}

// TestConsolidate_WhitelistDropsDisallowedKinds checks the non-LowPower
// whitelist filter (step 1) while confirming LowPower always survives it.
func TestConsolidate_WhitelistDropsDisallowedKinds(t *testing.T) {
	disallowed := mustAction(t, action.KindHorizontalScale, "vm-1", 5)
	lowPower := mustAction(t, action.KindLowPower, "vm-1", 5)

	rounds := map[string]PluginRound{
		"p1": {Plugin: "p1", Weight: 1, Actions: []*action.Action{disallowed, lowPower}},
	}

	result := Consolidate([]action.Kind{action.KindMigrate}, rounds, nil)

	require.Len(t, result.Ordered, 1)
	assert.Equal(t, action.KindLowPower, result.Ordered[0].Kind)
}

// TestConsolidate_PriorBlacklistCarriesForward confirms blacklisted
// candidates from an earlier round never reappear.
func TestConsolidate_PriorBlacklistCarriesForward(t *testing.T) {
	blacklisted := mustAction(t, action.KindMigrate, "vm-1", 5)
	prior := []*action.Action{blacklisted}

	rounds := map[string]PluginRound{
		"p1": {Plugin: "p1", Weight: 1, Actions: []*action.Action{blacklisted}},
	}

	result := Consolidate([]action.Kind{action.KindMigrate}, rounds, prior)
	assert.Empty(t, result.Ordered)
	assert.Len(t, result.Blacklist, 1)
}
