// Package distributor implements the per-event Distributor (spec.md §4.E):
// it runs the configured plugin rounds against one event, consolidating
// between rounds, and hands the final action list to the STV Consolidator's
// caller via Run's return value.
package distributor

import (
	"context"
	"log/slog"
	"time"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/consolidator"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/contract"
)

// DefaultPluginTimeout is the per-plugin wait bound applied when a
// Distributor is constructed with timeout <= 0 (spec.md §4.E).
const DefaultPluginTimeout = 30 * time.Second

// RoundLogEntry records one round's consolidation outcome, for journaling
// and for the final per-round log handed to the completion callback.
type RoundLogEntry struct {
	Round   int
	Results map[string]contract.InvokeOutput // keyed by plugin name; only plugins that produced results
	Carry   []*action.Action
}

// Journal receives per-round progress for journaling (spec.md §4.H). Its
// methods must never block or panic; a nil Journal is valid and is a no-op.
type Journal interface {
	RecordPluginResult(ctx context.Context, stackID, eventName, plugin string, in, out []*action.Action, weight float64)
}

// Distributor drives one event's plugin rounds against a Manager.
type Distributor struct {
	manager *plugin.Manager
	timeout time.Duration
	journal Journal
	logger  *slog.Logger
}

// New constructs a Distributor. A non-positive timeout falls back to
// DefaultPluginTimeout.
func New(manager *plugin.Manager, timeout time.Duration, journal Journal) *Distributor {
	if timeout <= 0 {
		timeout = DefaultPluginTimeout
	}
	return &Distributor{manager: manager, timeout: timeout, journal: journal, logger: slog.With("component", "distributor")}
}

// roundResult is one plugin's completion, delivered over a channel so slow
// or hung plugins can be abandoned without blocking the round.
type roundResult struct {
	name   string
	output contract.InvokeOutput
	err    error
}

// Run executes rounds (a list of plugin-name lists, already filtered of
// blacklisted plugins and emptied rounds by the caller) against one event,
// returning the final carried action list and the full per-round log
// (spec.md §4.E steps 2-4).
//
// Any panic recovered mid-loop, and any unexpected error, still produces a
// result: an empty final action list with whatever log entries were
// completed so far, matching "Any exception inside the loop MUST still
// invoke the callback with an empty result list."
func (d *Distributor) Run(ctx context.Context, eventName, stackID string, rounds [][]string, allowed []action.Kind, agreementMap map[string]string, priorBlacklist []*action.Action) (carry []*action.Action, log []RoundLogEntry, blacklist []*action.Action) {
	blacklist = priorBlacklist
	carry = actionsFromKinds(allowed)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Distributor round loop panicked; returning empty result", "panic", r)
			carry = nil
		}
	}()

	for i, roundPlugins := range rounds {
		isLast := i == len(rounds)-1
		results := d.runRound(ctx, eventName, stackID, roundPlugins, carry, agreementMap)

		entry := RoundLogEntry{Round: i, Results: results}
		for name, out := range results {
			if d.journal != nil {
				d.journal.RecordPluginResult(ctx, stackID, eventName, name, carry, out.Actions, out.Weight)
			}
		}

		if len(results) == 0 {
			entry.Carry = carry
			log = append(log, entry)
			continue
		}

		pluginRounds := make(map[string]consolidator.PluginRound, len(results))
		for name, out := range results {
			pluginRounds[name] = consolidator.PluginRound{Plugin: name, Weight: out.Weight, Actions: out.Actions}
		}

		result := consolidator.Consolidate(allowed, pluginRounds, blacklist)
		blacklist = result.Blacklist
		carry = result.Ordered
		if !isLast {
			for _, a := range carry {
				a.Score = 0
			}
		}
		entry.Carry = carry
		log = append(log, entry)
	}

	return carry, log, blacklist
}

// runRound instantiates every plugin in roundPlugins, runs setup()/run()
// concurrently, and waits up to d.timeout per plugin; plugins that exceed
// the timeout are abandoned, not killed (spec.md §4.E step 3c).
func (d *Distributor) runRound(ctx context.Context, eventName, stackID string, names []string, carry []*action.Action, agreementMap map[string]string) map[string]contract.InvokeOutput {
	handles := d.manager.Get(names)
	results := make(map[string]contract.InvokeOutput, len(handles))

	ch := make(chan roundResult, len(handles))
	for _, h := range handles {
		go d.invokeOne(ctx, h, eventName, stackID, carry, agreementMap, ch)
	}

	timeout := time.NewTimer(d.timeout)
	defer timeout.Stop()

	for range handles {
		select {
		case r := <-ch:
			if r.err != nil {
				d.logger.Warn("Plugin invocation failed; slot stays empty", "plugin", r.name, "error", r.err)
				continue
			}
			results[r.name] = r.output
		case <-timeout.C:
			d.logger.Warn("Plugin round timed out; abandoning remaining plugins", "timeout", d.timeout)
			return results
		case <-ctx.Done():
			return results
		}
	}
	return results
}

func (d *Distributor) invokeOne(ctx context.Context, h plugin.Handle, eventName, stackID string, carry []*action.Action, agreementMap map[string]string, ch chan<- roundResult) {
	invoker, err := h.Generator()
	if err != nil {
		ch <- roundResult{name: h.Name, err: err}
		return
	}

	out, err := invoker.Invoke(ctx, contract.InvokeInput{
		EventName:    eventName,
		StackID:      stackID,
		InputActions: carry,
		AgreementMap: agreementMap,
	})
	if err != nil {
		ch <- roundResult{name: h.Name, err: err}
		return
	}
	if out.Weight == 0 {
		out.Weight = d.manager.Weight(h.Name)
	}
	ch <- roundResult{name: h.Name, output: out}
}

func actionsFromKinds(kinds []action.Kind) []*action.Action {
	out := make([]*action.Action, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, &action.Action{Kind: k})
	}
	return out
}
