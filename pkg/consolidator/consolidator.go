// Package consolidator implements the STV Consolidator (spec.md §4.F): it
// merges one round's per-plugin action rankings into a single ordered
// action list using a Droop-quota single transferable vote tally.
package consolidator

import (
	"sort"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// PluginRound is one plugin's contribution for a round: its ordered action
// preferences and its configured weight.
type PluginRound struct {
	Plugin  string
	Weight  float64
	Actions []*action.Action // ordered by decreasing preference
}

// Result is the outcome of consolidating one round.
type Result struct {
	Ordered   []*action.Action
	Blacklist []*action.Action
}

// Consolidate runs the whitelist filter, veto collection, vote computation,
// and STV tally described in spec.md §4.F, returning the final ordered
// action list and the updated action blacklist.
//
// allowed is the event's allowed action kind list; LowPower is always
// permitted regardless of allowed. priorBlacklist carries vetoed actions
// forward from earlier rounds of the same event.
func Consolidate(allowed []action.Kind, rounds map[string]PluginRound, priorBlacklist []*action.Action) Result {
	whitelist := make(map[action.Kind]struct{}, len(allowed)+1)
	for _, k := range allowed {
		whitelist[k] = struct{}{}
	}
	whitelist[action.KindLowPower] = struct{}{}

	blacklist := append([]*action.Action(nil), priorBlacklist...)
	blacklisted := make(map[uint64]struct{}, len(blacklist))
	for _, a := range blacklist {
		blacklisted[a.Hash()] = struct{}{}
	}

	// Ordered plugin names for deterministic iteration (stable tie-breaks
	// downstream depend on a fixed traversal order).
	names := make([]string, 0, len(rounds))
	for name := range rounds {
		names = append(names, name)
	}
	sort.Strings(names)

	// Step 1 (whitelist) + dedup, per plugin.
	filtered := make(map[string][]*action.Action, len(rounds))
	for _, name := range names {
		pr := rounds[name]
		seen := make(map[uint64]struct{})
		var kept []*action.Action
		for _, a := range pr.Actions {
			if _, ok := whitelist[a.Kind]; !ok {
				continue
			}
			if _, ok := blacklisted[a.Hash()]; ok {
				continue
			}
			if _, ok := seen[a.Hash()]; ok {
				continue
			}
			seen[a.Hash()] = struct{}{}
			kept = append(kept, a)
		}
		filtered[name] = kept
	}

	// Step 2: veto collection. Any remaining action with score -1 is
	// blacklisted and stripped from every plugin's list.
	newlyVetoed := make(map[uint64]*action.Action)
	for _, list := range filtered {
		for _, a := range list {
			if a.IsVeto() {
				if _, ok := newlyVetoed[a.Hash()]; !ok {
					newlyVetoed[a.Hash()] = a
				}
			}
		}
	}
	for h, a := range newlyVetoed {
		blacklisted[h] = struct{}{}
		blacklist = append(blacklist, a)
	}
	if len(newlyVetoed) > 0 {
		for name, list := range filtered {
			var kept []*action.Action
			for _, a := range list {
				if _, vetoed := newlyVetoed[a.Hash()]; vetoed {
					continue
				}
				kept = append(kept, a)
			}
			filtered[name] = kept
		}
	}

	// Step 3: normalization (totalWeight).
	var totalWeight float64
	for _, name := range names {
		if len(filtered[name]) == 0 {
			continue
		}
		totalWeight += rounds[name].Weight
	}

	if totalWeight == 0 {
		return Result{Ordered: nil, Blacklist: blacklist}
	}

	t := newTally()
	for _, name := range names {
		list := filtered[name]
		if len(list) == 0 {
			continue
		}
		w := rounds[name].Weight
		t.addVoter(name, list, w, totalWeight)
	}

	ordered := t.run()
	return Result{Ordered: ordered, Blacklist: blacklist}
}
