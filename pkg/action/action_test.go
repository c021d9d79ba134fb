package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind_FromString(t *testing.T) {
	k, err := ParseKind("migrate")
	require.NoError(t, err)
	assert.Equal(t, KindMigrate, k)

	k, err = ParseKind("LOWPOWER")
	require.NoError(t, err)
	assert.Equal(t, KindLowPower, k)
}

func TestParseKind_FromOrdinal(t *testing.T) {
	k, err := ParseKind(int(KindStop))
	require.NoError(t, err)
	assert.Equal(t, KindStop, k)
}

func TestParseKind_InvalidOrdinal(t *testing.T) {
	_, err := ParseKind(999)
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestParseKind_InvalidString(t *testing.T) {
	_, err := ParseKind("teleport")
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "HorizontalScale", KindHorizontalScale.String())
}

func TestAction_EqualExcludesScore(t *testing.T) {
	a1 := &Action{Kind: KindMigrate, Target: "vm-1", Score: 3}
	a2 := &Action{Kind: KindMigrate, Target: "vm-1", Score: 7}
	assert.True(t, a1.Equal(a2))
	assert.Equal(t, a1.Hash(), a2.Hash())
}

func TestAction_EqualDiffersOnVotesOrCandidate(t *testing.T) {
	a1 := &Action{Kind: KindMigrate, Target: "vm-1", Votes: 10}
	a2 := &Action{Kind: KindMigrate, Target: "vm-1", Votes: 20}
	assert.False(t, a1.Equal(a2))

	a3 := &Action{Kind: KindMigrate, Target: "vm-1", Candidate: "p1"}
	a4 := &Action{Kind: KindMigrate, Target: "vm-1", Candidate: "p2"}
	assert.False(t, a3.Equal(a4))
}

// TestAction_DictRoundTrip is invariant 4 from spec.md §8: the action model
// round-trips through its dict form and back preserving equality/hash.
func TestAction_DictRoundTrip(t *testing.T) {
	original := &Action{
		Kind:        KindVerticalScale,
		Target:      "vm-42",
		Destination: "",
		ScaleValue:  "m1.large",
		Score:       5,
		Votes:       3000,
		Candidate:   "cpu-plugin",
	}

	restored, err := FromDict(original.ToDict())
	require.NoError(t, err)

	assert.True(t, original.Equal(restored))
	assert.Equal(t, original.Hash(), restored.Hash())
	assert.Equal(t, original.Score, restored.Score)
}

func TestAction_IsVeto(t *testing.T) {
	a := &Action{Kind: KindMigrate, Score: VetoScore}
	assert.True(t, a.IsVeto())

	a2 := &Action{Kind: KindMigrate, Score: 1}
	assert.False(t, a2.IsVeto())
}

func TestNew(t *testing.T) {
	a, err := New("Start", "vm-9")
	require.NoError(t, err)
	assert.Equal(t, KindStart, a.Kind)
	assert.Equal(t, "vm-9", a.Target)

	_, err = New("bogus", "vm-9")
	require.ErrorIs(t, err, ErrInvalidAction)
}
