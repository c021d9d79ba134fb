// Package registry implements the Active-Resource Registry (spec.md §4.B):
// the per-stack catalog of configured events, allowed actions, embargoes,
// plugin blacklists, and scale-out templates, hydrated at startup from the
// external orchestration API and thereafter mutated by heat messages.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// resourceType is the Heat resource type the registry hydrates resource
// entries from.
const resourceType = "AdaptationEngine::Heat::AdaptationResponse"

// HorizontalScaleOutTemplate configures how the Enactor instantiates a new
// VM for a HorizontalScale action (spec.md §4.G).
type HorizontalScaleOutTemplate struct {
	NamePrefix   string
	FlavorID     string
	ImageID      string
	NetworkID    string
	ResourceName string // the template resource key to clone
}

// Entry is one ResourceEntry: the allowed actions and policy for a single
// (stackID, eventName) pair. At most one Entry exists per pair.
type Entry struct {
	ResourceID         string
	StackID            string
	EventName          string
	AgreementID        string
	OrderedActionList  []action.Kind
	Embargo            int // seconds
	PluginBlacklist    map[string]struct{}
	HorizontalScaleOut *HorizontalScaleOutTemplate
}

// AllowsOnlyPassthroughKinds reports whether every action kind in the
// entry's allowed list is a passthrough kind, per spec.md §4.C step 5 /
// §8 invariant 6 (every kind must be Developer, Start, or Stop).
func (e *Entry) AllowsOnlyPassthroughKinds() bool {
	if len(e.OrderedActionList) == 0 {
		return false
	}
	for _, k := range e.OrderedActionList {
		if k != action.KindDeveloper && k != action.KindStart && k != action.KindStop {
			return false
		}
	}
	return true
}

// IsPluginBlacklisted reports whether the given plugin name is blacklisted
// for this resource.
func (e *Entry) IsPluginBlacklisted(pluginName string) bool {
	if e == nil || e.PluginBlacklist == nil {
		return false
	}
	_, ok := e.PluginBlacklist[pluginName]
	return ok
}

// AgreementRef identifies which (stackID, eventName) an SLA agreement id is
// bound to.
type AgreementRef struct {
	StackID   string
	EventName string
}

// VMLocation is a point-in-time VM-to-hypervisor mapping entry, used by the
// Journal's best-effort log_location snapshot (recovered from
// original_source/heatresourcehandler.py — the registry indexes active VMs
// from the Nova instance list, not from Heat resources).
type VMLocation struct {
	VMID       string
	Hypervisor string
}

// OrchestrationAPI is the subset of the external infrastructure API the
// registry needs to hydrate state at startup (spec.md §6: tenant list,
// stack list, resource list, stack template, plus Nova server list for
// ActiveVMs).
type OrchestrationAPI interface {
	ListTenants(ctx context.Context) ([]string, error)
	ListStacks(ctx context.Context, tenantID string) ([]string, error)
	ListResources(ctx context.Context, tenantID, stackID string) ([]ResourceDescriptor, error)
	StackTemplate(ctx context.Context, tenantID, stackID string) (map[string]interface{}, error)
	ListServers(ctx context.Context, tenantID, stackID string) ([]VMLocation, error)
}

// ResourceDescriptor is a minimal Heat resource listing entry.
type ResourceDescriptor struct {
	ResourceID   string
	ResourceType string
	PhysicalID   string
}

// SLAClient is the optional external SLA API (spec.md §6).
type SLAClient interface {
	StartEnforcement(ctx context.Context, agreementID string) error
}

// Replier publishes exactly one reply per inbound heat message, keyed by
// the message's resource id (spec.md §4.B).
type Replier interface {
	ReplyToHeat(ctx context.Context, resourceID string, reply interface{}) error
}

// Persister mirrors resource entry mutations into durable storage
// (pkg/store). RecoverState rebuilds the registry from the infrastructure
// API alone and does not read these stored entries back. Persistence is
// best-effort: failures are
// logged and never block the registry (spec.md §4.B).
type Persister interface {
	UpsertResourceEntry(ctx context.Context, entry *Entry) error
	DeleteResourceEntry(ctx context.Context, resourceID string) error
}

// Journal records the resource/stack lifecycle milestones component B
// (the registry) owns: adaptation_response_created/deleted on heat_create/
// heat_delete, and stack_created the first time RecoverState observes a
// stack (spec.md §4.H, tapped at every transition through the registry).
type Journal interface {
	RecordResourceCreated(ctx context.Context, stackID, resourceID string)
	RecordResourceDeleted(ctx context.Context, stackID, resourceID string)
	RecordStackCreated(ctx context.Context, stackID string)
}

// Registry is the Active-Resource Registry.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*Entry // keyed by resourceID
	byStack   map[stackEventKey]*Entry
	agreement map[string]AgreementRef
	activeVMs map[string][]VMLocation // stackID -> VMs

	orchestration OrchestrationAPI
	sla           SLAClient
	replier       Replier
	persister     Persister
	journal       Journal
	logger        *slog.Logger
}

type stackEventKey struct {
	stackID   string
	eventName string
}

// New creates an empty Registry. Call RecoverState to hydrate it.
func New(orchestration OrchestrationAPI, sla SLAClient, replier Replier) *Registry {
	return &Registry{
		entries:       make(map[string]*Entry),
		byStack:       make(map[stackEventKey]*Entry),
		agreement:     make(map[string]AgreementRef),
		activeVMs:     make(map[string][]VMLocation),
		orchestration: orchestration,
		sla:           sla,
		replier:       replier,
		logger:        slog.With("component", "registry"),
	}
}

// RecoverState enumerates tenants, stacks, and resources to rebuild the
// registry at startup. Tenant-level access failures are logged and skipped
// — state recovery must never fail the whole pipeline (spec.md §4.B).
func (r *Registry) RecoverState(ctx context.Context) error {
	tenants, err := r.orchestration.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("listing tenants: %w", err)
	}

	for _, tenantID := range tenants {
		if err := r.recoverTenant(ctx, tenantID); err != nil {
			r.logger.Error("Failed to recover tenant state; skipping", "tenant_id", tenantID, "error", err)
			continue
		}
	}
	return nil
}

func (r *Registry) recoverTenant(ctx context.Context, tenantID string) error {
	stacks, err := r.orchestration.ListStacks(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("listing stacks: %w", err)
	}

	for _, stackID := range stacks {
		resources, err := r.orchestration.ListResources(ctx, tenantID, stackID)
		if err != nil {
			r.logger.Error("Failed to list resources; skipping stack", "stack_id", stackID, "error", err)
			continue
		}

		if r.journal != nil {
			r.journal.RecordStackCreated(ctx, stackID)
		}

		vms, err := r.orchestration.ListServers(ctx, tenantID, stackID)
		if err != nil {
			r.logger.Error("Failed to list servers for stack", "stack_id", stackID, "error", err)
		} else {
			r.mu.Lock()
			r.activeVMs[stackID] = vms
			r.mu.Unlock()
		}

		for _, res := range resources {
			if res.ResourceType != resourceType {
				continue
			}
			tmpl, err := r.orchestration.StackTemplate(ctx, tenantID, stackID)
			if err != nil {
				r.logger.Error("Failed to fetch template for adaptation resource",
					"stack_id", stackID, "resource_id", res.ResourceID, "error", err)
				continue
			}
			entry, err := entryFromTemplate(res.ResourceID, stackID, tmpl)
			if err != nil {
				r.logger.Error("Failed to materialize resource entry",
					"stack_id", stackID, "resource_id", res.ResourceID, "error", err)
				continue
			}
			r.put(entry)
		}
	}
	return nil
}

// SetPersister attaches durable storage. Must be called before any heat
// message is processed; it is not safe to swap concurrently with put/remove.
func (r *Registry) SetPersister(p Persister) {
	r.persister = p
}

// SetJournal attaches the journal. Must be called before RecoverState or any
// heat message is processed; it is not safe to swap concurrently with
// put/remove/RecoverState.
func (r *Registry) SetJournal(j Journal) {
	r.journal = j
}

// put installs an entry into all indexes. Caller must not hold r.mu.
func (r *Registry) put(entry *Entry) {
	r.mu.Lock()
	r.entries[entry.ResourceID] = entry
	r.byStack[stackEventKey{entry.StackID, entry.EventName}] = entry
	if entry.AgreementID != "" {
		r.agreement[entry.AgreementID] = AgreementRef{StackID: entry.StackID, EventName: entry.EventName}
	}
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.UpsertResourceEntry(context.Background(), entry); err != nil {
			r.logger.Error("Persisting resource entry", "resource_id", entry.ResourceID, "error", err)
		}
	}
}

// lookupByResourceID returns a copy of the entry for resourceID, or nil.
func (r *Registry) lookupByResourceID(resourceID string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[resourceID]
	if !ok {
		return nil
	}
	cp := *entry
	return &cp
}

// remove deletes an entry from all indexes. Caller must not hold r.mu.
func (r *Registry) remove(resourceID string) {
	r.mu.Lock()
	entry, ok := r.entries[resourceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, resourceID)
	delete(r.byStack, stackEventKey{entry.StackID, entry.EventName})
	if entry.AgreementID != "" {
		delete(r.agreement, entry.AgreementID)
	}
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.DeleteResourceEntry(context.Background(), resourceID); err != nil {
			r.logger.Error("Deleting persisted resource entry", "resource_id", resourceID, "error", err)
		}
	}
}

// GetInitialActions returns the allowed action list for (stackID, eventName),
// or nil when no entry matches.
func (r *Registry) GetInitialActions(eventName, stackID string) []action.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byStack[stackEventKey{stackID, eventName}]
	if !ok {
		return nil
	}
	out := make([]action.Kind, len(entry.OrderedActionList))
	copy(out, entry.OrderedActionList)
	return out
}

// GetResource returns the full entry for (stackID, eventName), or nil.
func (r *Registry) GetResource(eventName, stackID string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byStack[stackEventKey{stackID, eventName}]
	if !ok {
		return nil
	}
	cp := *entry
	return &cp
}

// GetAgreementMap returns a point-in-time snapshot of agreementID -> stack/event.
func (r *Registry) GetAgreementMap() map[string]AgreementRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]AgreementRef, len(r.agreement))
	for k, v := range r.agreement {
		out[k] = v
	}
	return out
}

// ActiveVMs returns the last-known VM-to-hypervisor mapping for a stack, for
// the Journal's best-effort log_location snapshot.
func (r *Registry) ActiveVMs(stackID string) []VMLocation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vms := r.activeVMs[stackID]
	out := make([]VMLocation, len(vms))
	copy(out, vms)
	return out
}
