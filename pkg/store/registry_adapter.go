package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

// RegistryPersister adapts Store to registry.Persister, converting between
// registry.Entry and the resource_entries table's JSONB columns.
type RegistryPersister struct {
	store *Store
}

// NewRegistryPersister wraps s for use as a registry.Persister.
func NewRegistryPersister(s *Store) *RegistryPersister {
	return &RegistryPersister{store: s}
}

// UpsertResourceEntry implements registry.Persister.
func (p *RegistryPersister) UpsertResourceEntry(ctx context.Context, entry *registry.Entry) error {
	actions, err := json.Marshal(entry.OrderedActionList)
	if err != nil {
		return fmt.Errorf("store: encoding ordered action list: %w", err)
	}
	blacklist, err := json.Marshal(blacklistNames(entry.PluginBlacklist))
	if err != nil {
		return fmt.Errorf("store: encoding plugin blacklist: %w", err)
	}
	var scaleOut json.RawMessage
	if entry.HorizontalScaleOut != nil {
		scaleOut, err = json.Marshal(entry.HorizontalScaleOut)
		if err != nil {
			return fmt.Errorf("store: encoding horizontal scale-out template: %w", err)
		}
	}

	return p.store.UpsertResourceEntry(ctx, ResourceRow{
		ResourceID:         entry.ResourceID,
		StackID:            entry.StackID,
		EventName:          entry.EventName,
		AgreementID:        entry.AgreementID,
		OrderedActionList:  actions,
		Embargo:            entry.Embargo,
		PluginBlacklist:    blacklist,
		HorizontalScaleOut: scaleOut,
	})
}

// DeleteResourceEntry implements registry.Persister.
func (p *RegistryPersister) DeleteResourceEntry(ctx context.Context, resourceID string) error {
	return p.store.DeleteResourceEntry(ctx, resourceID)
}

func blacklistNames(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for name := range m {
		out = append(out, name)
	}
	return out
}
