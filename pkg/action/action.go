// Package action defines the Action model: a typed record describing a
// single remedial operation a plugin can propose and the Enactor can carry
// out against a stack.
package action

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
)

// Kind enumerates the remedial operations the engine knows how to enact.
type Kind int

// Kind ordinals. The ordering is part of the wire contract: plugins and
// config files may refer to a kind by its small non-negative integer.
const (
	KindMigrate Kind = iota
	KindVerticalScale
	KindHorizontalScale
	KindDeveloper
	KindCombined
	KindNoAction
	KindStart
	KindStop
	KindLowPower
)

var kindNames = [...]string{
	KindMigrate:         "Migrate",
	KindVerticalScale:   "VerticalScale",
	KindHorizontalScale: "HorizontalScale",
	KindDeveloper:       "Developer",
	KindCombined:        "Combined",
	KindNoAction:        "NoAction",
	KindStart:           "Start",
	KindStop:            "Stop",
	KindLowPower:        "LowPower",
}

// ErrInvalidAction is returned when a Kind cannot be constructed from the
// given ordinal or name.
var ErrInvalidAction = errors.New("invalid action")

// ParseKind accepts either a small non-negative integer ordinal or a
// case-insensitive kind name and returns the matching Kind.
func ParseKind(v interface{}) (Kind, error) {
	switch t := v.(type) {
	case Kind:
		if int(t) < 0 || int(t) >= len(kindNames) {
			return 0, fmt.Errorf("%w: ordinal %d out of range", ErrInvalidAction, t)
		}
		return t, nil
	case int:
		if t < 0 || t >= len(kindNames) {
			return 0, fmt.Errorf("%w: ordinal %d out of range", ErrInvalidAction, t)
		}
		return Kind(t), nil
	case string:
		for i, name := range kindNames {
			if strings.EqualFold(name, t) {
				return Kind(i), nil
			}
		}
		return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, t)
	default:
		return 0, fmt.Errorf("%w: unsupported kind value %v", ErrInvalidAction, v)
	}
}

// String returns the canonical capitalised name of the kind, for logs.
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// VetoScore is the sentinel score value a plugin assigns to veto an action
// for the remainder of an event's processing.
const VetoScore = -1

// Action is a typed remedial-action record contributed by a plugin and
// tracked through distribution, consolidation, and enactment.
type Action struct {
	Kind        Kind
	Target      string // VM the action applies to
	Destination string // host id, Migrate only
	ScaleValue  string // flavor id, VerticalScale only
	Score       int    // plugin-assigned preference; -1 is a veto
	Votes       int    // populated by the consolidator
	Candidate   string // plugin that contributed the winning action
	TargetApp   string // external stack id, LowPower redirection only
}

// New constructs an Action of the given kind. kind may be an int ordinal or
// a case-insensitive string, per the plugin/config contract.
func New(kind interface{}, target string) (*Action, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	return &Action{Kind: k, Target: target}, nil
}

// identityKey is the identity of an action: kind, target, destination,
// scaleValue, votes, candidate, targetApp. Score is excluded — a re-scored
// action is still identified with its prior votes tally, per spec.
type identityKey struct {
	kind        Kind
	target      string
	destination string
	scaleValue  string
	votes       int
	candidate   string
	targetApp   string
}

func (a *Action) identity() identityKey {
	return identityKey{
		kind:        a.Kind,
		target:      a.Target,
		destination: a.Destination,
		scaleValue:  a.ScaleValue,
		votes:       a.Votes,
		candidate:   a.Candidate,
		targetApp:   a.TargetApp,
	}
}

// Equal reports whether two actions are identical for consolidation
// purposes: same kind/target/destination/scaleValue/votes/candidate/
// targetApp. Score is deliberately excluded.
func (a *Action) Equal(other *Action) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.identity() == other.identity()
}

// Hash returns a stable hash consistent with Equal: two actions hash-equal
// iff they are Equal.
func (a *Action) Hash() uint64 {
	h := fnv.New64a()
	id := a.identity()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d|%s|%s",
		id.kind, id.target, id.destination, id.scaleValue, id.votes, id.candidate, id.targetApp)
	return h.Sum64()
}

// Dict is the serialised (wire/log) form of an Action.
type Dict struct {
	Kind        string `json:"kind"`
	Target      string `json:"target"`
	Destination string `json:"destination"`
	ScaleValue  string `json:"scale_value"`
	Score       int    `json:"score"`
	Votes       int    `json:"votes"`
	Candidate   string `json:"candidate"`
}

// ToDict serialises the action into its dict form.
func (a *Action) ToDict() Dict {
	return Dict{
		Kind:        a.Kind.String(),
		Target:      a.Target,
		Destination: a.Destination,
		ScaleValue:  a.ScaleValue,
		Score:       a.Score,
		Votes:       a.Votes,
		Candidate:   a.Candidate,
	}
}

// FromDict reconstructs an Action from its dict form. Round-tripping through
// ToDict/FromDict preserves Equal/Hash identity (TargetApp is not part of
// Dict and defaults to empty on the reconstructed value, matching the
// original wire format which never carried it).
func FromDict(d Dict) (*Action, error) {
	k, err := ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	return &Action{
		Kind:        k,
		Target:      d.Target,
		Destination: d.Destination,
		ScaleValue:  d.ScaleValue,
		Score:       d.Score,
		Votes:       d.Votes,
		Candidate:   d.Candidate,
	}, nil
}

// IsVeto reports whether this action carries the veto sentinel score.
func (a *Action) IsVeto() bool {
	return a.Score == VetoScore
}

// Clone returns a shallow copy of the action.
func (a *Action) Clone() *Action {
	cp := *a
	return &cp
}
