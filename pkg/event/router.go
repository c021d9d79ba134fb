package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// envelope is used only to distinguish a heat message from an event message
// before committing to either wireMessage or a heat decode (spec.md §4.C
// step 1: classify by the presence of a top-level "heat" key).
type envelope struct {
	Heat json.RawMessage `json:"heat"`
}

// passthroughKinds are the only kinds the passthrough shortcut is allowed to
// fire for (spec.md §4.C step 5 / §8 invariant 6).
var passthroughKinds = map[action.Kind]struct{}{
	action.KindDeveloper: {},
	action.KindStart:     {},
	action.KindStop:      {},
}

// Registry is the subset of the Active-Resource Registry the router
// consults (spec.md §4.B/§4.C).
type Registry interface {
	GetInitialActions(eventName, stackID string) []action.Kind
}

// HeatHandler processes a classified heat message (spec.md §4.B). It is
// satisfied by *registry.Registry via an adapter in the wiring layer.
type HeatHandler interface {
	HandleHeat(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher runs the plugin round(s) and consolidation for one event and
// returns the final ordered action list, consuming the allowed-action seed
// from the Registry (spec.md §4.D/§4.E/§4.F).
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *Event, allowed []action.Kind) ([]*action.Action, error)
}

// Enactor carries out the winning action against the event's stack
// (spec.md §4.G).
type Enactor interface {
	Enact(ctx context.Context, ev *Event, chosen *action.Action) error
}

// Journal records lifecycle milestones for the event's processing
// (spec.md §4.H). Implementations must never block or fail the pipeline.
type Journal interface {
	RecordEvent(ctx context.Context, ev *Event)
	RecordDecision(ctx context.Context, ev *Event, actions []*action.Action)
	RecordOutcome(ctx context.Context, ev *Event, chosen *action.Action, err error)
}

// Router implements the Event Router (spec.md §4.C): it classifies inbound
// broker payloads, enforces the per-stack StackLockSet, and drives the
// Registry -> Distributor -> Consolidator -> Enactor pipeline for plain
// events while shortcutting passthrough-only resources straight to the
// Enactor.
type Router struct {
	registry   Registry
	heat       HeatHandler
	dispatcher Dispatcher
	enactor    Enactor
	journal    Journal
	logger     *slog.Logger

	locksMu sync.Mutex
	locks   map[string]struct{} // the StackLockSet
}

// New constructs a Router wired to its collaborators.
func New(registry Registry, heat HeatHandler, dispatcher Dispatcher, enactor Enactor, journal Journal) *Router {
	return &Router{
		registry:   registry,
		heat:       heat,
		dispatcher: dispatcher,
		enactor:    enactor,
		journal:    journal,
		logger:     slog.With("component", "event_router"),
		locks:      make(map[string]struct{}),
	}
}

// OnMessage classifies and processes one inbound broker payload
// (spec.md §4.C). It returns an error for malformed payloads and for
// failed heat-message handling (including a failed heat reply); event
// processing failures are logged and journaled, never
// propagated as a delivery-level error, so a single bad event cannot stall
// the consumer loop.
func (r *Router) OnMessage(ctx context.Context, raw []byte) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if env.Heat != nil {
		return r.heat.HandleHeat(ctx, raw)
	}

	ev, err := Parse(raw)
	if err != nil {
		return err
	}

	r.processEvent(ctx, ev)
	return nil
}

// tryLock inserts stackID into the StackLockSet, reporting false if it was
// already present (spec.md §4.C step 1-2, §5 "Per-stack mutual exclusion").
func (r *Router) tryLock(stackID string) bool {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	if _, locked := r.locks[stackID]; locked {
		return false
	}
	r.locks[stackID] = struct{}{}
	return true
}

func (r *Router) unlock(stackID string) {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	delete(r.locks, stackID)
}

func (r *Router) processEvent(ctx context.Context, ev *Event) {
	if !r.tryLock(ev.StackID) {
		r.logger.Info("Stack already locked; dropping event", "stack_id", ev.StackID, "event", ev.Name)
		return
	}
	defer r.unlock(ev.StackID)

	r.journal.RecordEvent(ctx, ev)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Event processing panicked; stack unlocked", "stack_id", ev.StackID, "panic", rec)
		}
	}()

	allowed := r.registry.GetInitialActions(ev.Name, ev.StackID)
	if len(allowed) == 0 {
		r.logger.Debug("No resource entry for event; dropping", "stack_id", ev.StackID, "event", ev.Name)
		return
	}

	if everyKindIsPassthrough(allowed) {
		r.runPassthrough(ctx, ev, allowed[0])
		return
	}

	r.runDistributed(ctx, ev, allowed)
}

// everyKindIsPassthrough implements spec.md §8 invariant 6: passthrough
// applies only when every action kind in the allowed list is a passthrough
// kind.
func everyKindIsPassthrough(allowed []action.Kind) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, k := range allowed {
		if _, ok := passthroughKinds[k]; !ok {
			return false
		}
	}
	return true
}

func (r *Router) runPassthrough(ctx context.Context, ev *Event, kind action.Kind) {
	target := ev.FirstMachineID()
	if target == "" {
		r.logger.Error("Passthrough event has no machines; proceeding with empty target",
			"stack_id", ev.StackID, "event", ev.Name)
	}
	chosen := &action.Action{Kind: kind, Target: target}

	// Enact journals adaptation_started/completed/failed itself; no separate
	// outcome record is written here (spec.md §8 S1's exact journal
	// sequence: event_received -> adaptation_started -> adaptation_completed).
	if err := r.enactor.Enact(ctx, ev, chosen); err != nil {
		r.logger.Error("Passthrough enactment failed", "stack_id", ev.StackID, "kind", kind, "error", err)
	}
}

func (r *Router) runDistributed(ctx context.Context, ev *Event, allowed []action.Kind) {
	actions, err := r.dispatcher.Dispatch(ctx, ev, allowed)
	if err != nil {
		r.logger.Error("Dispatch failed", "stack_id", ev.StackID, "event", ev.Name, "error", err)
		r.journal.RecordOutcome(ctx, ev, nil, err)
		return
	}
	r.journal.RecordDecision(ctx, ev, actions)

	// ConsolidationEmpty / vetoed-echo fail-safe (spec.md §7, §8 scenario S6):
	// an empty result or a chosen action that still carries a veto score is
	// replaced with a Developer action rather than enacted as-is.
	var chosen *action.Action
	if len(actions) == 0 || actions[0].IsVeto() {
		chosen = &action.Action{Kind: action.KindDeveloper, Target: ev.FirstMachineID()}
	} else {
		chosen = actions[0]
	}

	// Enact journals adaptation_started/completed/failed itself; no separate
	// outcome record is written here.
	if err := r.enactor.Enact(ctx, ev, chosen); err != nil {
		r.logger.Error("Enactment failed", "stack_id", ev.StackID, "action", chosen.Kind, "error", err)
	}
}
