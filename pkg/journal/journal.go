// Package journal implements component H: an append-only document log
// recording every stage of an event's processing, satisfying the Journal
// interfaces of pkg/event, pkg/distributor, and pkg/enactor on top of
// pkg/store's Postgres-backed document table. Write failures are logged and
// swallowed — the pipeline never blocks on journal writes (spec.md §4.H).
package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/event"
	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
	"github.com/IntelLabsEurope/adaptationengine/pkg/store"
)

// Entry types (spec.md §4.H).
const (
	TypeEventReceived             = "event_received"
	TypeAdaptationResponseCreated = "adaptation_response_created"
	TypeAdaptationResponseDeleted = "adaptation_response_deleted"
	TypePluginResult              = "plugin_result"
	TypeConsolidation             = "consolidation"
	TypeAdaptationStarted         = "adaptation_started"
	TypeAdaptationCompleted       = "adaptation_completed"
	TypeAdaptationFailed          = "adaptation_failed"
	TypeStackCreated              = "stack_created"
)

// Inserter is the narrow store surface the Journal writes through.
type Inserter interface {
	InsertJournalEntry(ctx context.Context, entry store.JournalEntry) error
}

// VMLocator supplies the best-effort log_location snapshot.
type VMLocator interface {
	ActiveVMs(stackID string) []registry.VMLocation
}

// Journal writes journal entries to a Store, never failing the caller.
type Journal struct {
	store  Inserter
	vms    VMLocator
	logger *slog.Logger
}

// New constructs a Journal. vms may be nil, in which case log_location is
// omitted from every entry.
func New(s Inserter, vms VMLocator) *Journal {
	return &Journal{store: s, vms: vms, logger: slog.With("component", "journal")}
}

func (j *Journal) write(ctx context.Context, stackID, entryType string, details interface{}) {
	raw, err := json.Marshal(details)
	if err != nil {
		j.logger.Error("Marshaling journal details", "error", err, "type", entryType)
		return
	}

	var location json.RawMessage
	if j.vms != nil {
		if vms := j.vms.ActiveVMs(stackID); len(vms) > 0 {
			if loc, err := json.Marshal(vms); err == nil {
				location = loc
			}
		}
	}

	entry := store.JournalEntry{
		StackID:   stackID,
		Type:      entryType,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Details:   raw,
		Location:  location,
	}
	if err := j.store.InsertJournalEntry(ctx, entry); err != nil {
		j.logger.Error("Writing journal entry", "error", err, "type", entryType, "stack_id", stackID)
	}
}

// eventDetails is the log_details shape for event_received/decision/outcome
// entries.
type eventDetails struct {
	EventName string        `json:"event_name"`
	Value     string        `json:"value,omitempty"`
	Actions   []action.Dict `json:"actions,omitempty"`
	Chosen    *action.Dict  `json:"chosen,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// RecordEvent implements event.Journal.
func (j *Journal) RecordEvent(ctx context.Context, ev *event.Event) {
	j.write(ctx, ev.StackID, TypeEventReceived, eventDetails{EventName: ev.Name, Value: ev.Value})
}

// RecordDecision implements event.Journal.
func (j *Journal) RecordDecision(ctx context.Context, ev *event.Event, actions []*action.Action) {
	j.write(ctx, ev.StackID, TypeConsolidation, eventDetails{EventName: ev.Name, Actions: dictsOf(actions)})
}

// RecordOutcome implements event.Journal. The router calls this only when
// dispatch fails before the Enactor is ever invoked — a successful
// enactment's adaptation_started/completed/failed entries come from the
// Enactor itself (spec.md §8 S1's exact journal sequence).
func (j *Journal) RecordOutcome(ctx context.Context, ev *event.Event, chosen *action.Action, err error) {
	d := eventDetails{EventName: ev.Name}
	if chosen != nil {
		dict := chosen.ToDict()
		d.Chosen = &dict
	}
	if err != nil {
		d.Error = err.Error()
	}
	j.write(ctx, ev.StackID, TypeAdaptationFailed, d)
}

// pluginResultDetails is the log_details shape for plugin_result entries.
type pluginResultDetails struct {
	Plugin string        `json:"plugin"`
	Input  []action.Dict `json:"input"`
	Output []action.Dict `json:"output"`
	Weight float64       `json:"weight"`
}

// RecordPluginResult implements distributor.Journal.
func (j *Journal) RecordPluginResult(ctx context.Context, stackID, eventName, plugin string, in, out []*action.Action, weight float64) {
	j.write(ctx, stackID, TypePluginResult, pluginResultDetails{
		Plugin: plugin,
		Input:  dictsOf(in),
		Output: dictsOf(out),
		Weight: weight,
	})
}

// adaptationDetails is the log_details shape for adaptation_* entries.
type adaptationDetails struct {
	EventName string      `json:"event_name"`
	Action    action.Dict `json:"action"`
	Error     string      `json:"error,omitempty"`
}

// RecordAdaptationStarted implements enactor.Journal.
func (j *Journal) RecordAdaptationStarted(ctx context.Context, stackID, eventName string, chosen *action.Action) {
	j.write(ctx, stackID, TypeAdaptationStarted, adaptationDetails{EventName: eventName, Action: chosen.ToDict()})
}

// RecordAdaptationCompleted implements enactor.Journal.
func (j *Journal) RecordAdaptationCompleted(ctx context.Context, stackID, eventName string, chosen *action.Action) {
	j.write(ctx, stackID, TypeAdaptationCompleted, adaptationDetails{EventName: eventName, Action: chosen.ToDict()})
}

// RecordAdaptationFailed implements enactor.Journal.
func (j *Journal) RecordAdaptationFailed(ctx context.Context, stackID, eventName string, chosen *action.Action, cause error) {
	d := adaptationDetails{EventName: eventName, Action: chosen.ToDict()}
	if cause != nil {
		d.Error = cause.Error()
	}
	j.write(ctx, stackID, TypeAdaptationFailed, d)
}

// RecordResourceCreated records adaptation_response_created for a heat
// Create message (spec.md §4.H).
func (j *Journal) RecordResourceCreated(ctx context.Context, stackID, resourceID string) {
	j.write(ctx, stackID, TypeAdaptationResponseCreated, map[string]string{"resource_id": resourceID})
}

// RecordResourceDeleted records adaptation_response_deleted for a heat
// Delete message (spec.md §4.H).
func (j *Journal) RecordResourceDeleted(ctx context.Context, stackID, resourceID string) {
	j.write(ctx, stackID, TypeAdaptationResponseDeleted, map[string]string{"resource_id": resourceID})
}

// RecordStackCreated records stack_created, emitted once per newly observed
// stack during recoverState (spec.md §4.H).
func (j *Journal) RecordStackCreated(ctx context.Context, stackID string) {
	j.write(ctx, stackID, TypeStackCreated, map[string]string{"stack_id": stackID})
}

func dictsOf(actions []*action.Action) []action.Dict {
	out := make([]action.Dict, 0, len(actions))
	for _, a := range actions {
		if a == nil {
			continue
		}
		out = append(out, a.ToDict())
	}
	return out
}
