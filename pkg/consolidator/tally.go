package consolidator

import (
	"math"
	"sort"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// candidateStatus tracks a candidate's position in the STV tally.
type candidateStatus int

const (
	statusHopeful candidateStatus = iota
	statusElected
	statusExcluded
)

type candidate struct {
	hash       uint64
	action     *action.Action
	votes      int // current running tally
	seat0Votes int // the tally value recorded at seat 0, never mutated afterwards
	status     candidateStatus
	order      int // insertion order, used as the stable tie-break
}

// ballot is one voter's (plugin's) ranked preference list with per-position
// vote values, plus a pointer to the preference currently contributing.
type ballot struct {
	plugin  string
	prefs   []uint64
	values  []int
	pointer int // index into prefs/values; len(prefs) once exhausted
}

func (b *ballot) exhausted() bool { return b.pointer >= len(b.prefs) }

// currentHash returns the candidate hash the ballot is currently
// contributing to.
func (b *ballot) currentHash() (uint64, bool) {
	if b.exhausted() {
		return 0, false
	}
	return b.prefs[b.pointer], true
}

func (b *ballot) currentValue() int {
	if b.exhausted() {
		return 0
	}
	return b.values[b.pointer]
}

type tally struct {
	candidates map[uint64]*candidate
	order      []uint64 // insertion order of candidates, for stable tie-break
	voters     []*ballot
	nextOrder  int
}

func newTally() *tally {
	return &tally{candidates: make(map[uint64]*candidate)}
}

// addVoter registers one plugin's ranked preferences for the tally. Vote
// values are computed per spec.md §4.F step 4: floor(score*1000*w/totalWeight)
// at the action's preference position.
func (t *tally) addVoter(plugin string, actions []*action.Action, weight, totalWeight float64) {
	b := &ballot{plugin: plugin}
	for _, a := range actions {
		h := a.Hash()
		if _, ok := t.candidates[h]; !ok {
			t.candidates[h] = &candidate{hash: h, action: a.Clone(), status: statusHopeful, order: t.nextOrder}
			t.order = append(t.order, h)
			t.nextOrder++
		}
		value := int(math.Floor(float64(a.Score) * 1000 * weight / totalWeight))
		b.prefs = append(b.prefs, h)
		b.values = append(b.values, value)
	}
	if len(b.prefs) == 0 {
		return
	}
	t.voters = append(t.voters, b)
}

// run executes the seat-by-seat STV tally described in spec.md §4.F steps
// 5-7 and returns the final ordered action list.
func (t *tally) run() []*action.Action {
	if len(t.candidates) == 0 {
		return nil
	}

	// Seed seat 0: every voter's first preference receives its vote value.
	for _, b := range t.voters {
		b.pointer = 0
		if h, ok := b.currentHash(); ok {
			t.candidates[h].votes += b.currentValue()
		}
	}
	for _, h := range t.order {
		c := t.candidates[h]
		c.seat0Votes = c.votes
	}

	totalVotes := 0
	for _, h := range t.order {
		totalVotes += t.candidates[h].votes
	}
	seats := len(t.candidates)
	quota := totalVotes/(seats+1) + 1

	var electionOrder, exclusionOrder []uint64
	seat := 0
	for seat < seats {
		remaining := t.hopefuls()
		if len(remaining) == 0 {
			break
		}
		t.sortDescending(remaining)

		top := t.candidates[remaining[0]]
		if len(remaining) == 1 || top.votes >= quota {
			top.status = statusElected
			electionOrder = append(electionOrder, top.hash)
			surplus := top.votes - quota
			if surplus > 0 && len(remaining) > 1 {
				t.transfer(top, surplus, remaining[1:], true)
			}
			seat++
			continue
		}

		lowest := t.candidates[remaining[len(remaining)-1]]
		lowest.status = statusExcluded
		exclusionOrder = append(exclusionOrder, lowest.hash)
		rest := remaining[:len(remaining)-1]
		t.transfer(lowest, lowest.votes, rest, false)
	}

	return t.finalOrder(electionOrder, exclusionOrder)
}

func (t *tally) hopefuls() []uint64 {
	var out []uint64
	for _, h := range t.order {
		if t.candidates[h].status == statusHopeful {
			out = append(out, h)
		}
	}
	return out
}

// sortDescending sorts candidate hashes by current votes descending,
// breaking ties by insertion order (spec.md §5 mandates a stable tie-break).
func (t *tally) sortDescending(hashes []uint64) {
	sort.SliceStable(hashes, func(i, j int) bool {
		ci, cj := t.candidates[hashes[i]], t.candidates[hashes[j]]
		if ci.votes != cj.votes {
			return ci.votes > cj.votes
		}
		return ci.order < cj.order
	})
}

// transfer moves `amount` votes away from `from` to the remaining hopeful
// candidates, following each contributing voter's next valid preference. If
// isSurplus, each voter's transferred share is proportional
// (floor(contribution*amount/from.votes)); otherwise the voter's full
// current contribution moves. When no contributing voter has any valid next
// preference, amount is split evenly across the remaining candidates.
func (t *tally) transfer(from *candidate, amount int, remaining []uint64, isSurplus bool) {
	remainingSet := make(map[uint64]struct{}, len(remaining))
	for _, h := range remaining {
		remainingSet[h] = struct{}{}
	}

	var contributors []*ballot
	for _, b := range t.voters {
		h, ok := b.currentHash()
		if ok && h == from.hash {
			contributors = append(contributors, b)
		}
	}

	transferredAny := false
	for _, b := range contributors {
		contribution := b.currentValue()
		b.pointer++
		for !b.exhausted() {
			h, _ := b.currentHash()
			if _, isRemaining := remainingSet[h]; isRemaining {
				share := contribution
				if isSurplus && from.votes > 0 {
					share = contribution * amount / from.votes
				}
				t.candidates[h].votes += share
				transferredAny = true
				break
			}
			b.pointer++
		}
	}

	if !transferredAny && len(remaining) > 0 {
		share := amount / len(remaining)
		for _, h := range remaining {
			t.candidates[h].votes += share
		}
	}

	if isSurplus {
		from.votes -= amount
	} else {
		from.votes = 0
	}
}

// finalOrder assembles the output per spec.md §4.F step 7: winners in
// election order, then any remaining hopefuls by descending last tally,
// then excluded candidates in reverse exclusion order.
func (t *tally) finalOrder(electionOrder, exclusionOrder []uint64) []*action.Action {
	out := make([]*action.Action, 0, len(t.candidates))

	emit := func(h uint64) {
		c := t.candidates[h]
		a := c.action.Clone()
		a.Votes = c.seat0Votes
		out = append(out, a)
	}

	for _, h := range electionOrder {
		emit(h)
	}

	hopefuls := t.hopefuls()
	t.sortDescending(hopefuls)
	for _, h := range hopefuls {
		emit(h)
	}

	for i := len(exclusionOrder) - 1; i >= 0; i-- {
		emit(exclusionOrder[i])
	}

	return out
}
