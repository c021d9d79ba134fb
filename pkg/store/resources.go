package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// ResourceRow is the persisted form of a registry.Entry.
type ResourceRow struct {
	ResourceID         string
	StackID            string
	EventName          string
	AgreementID        string
	OrderedActionList  json.RawMessage
	Embargo            int
	PluginBlacklist    json.RawMessage
	HorizontalScaleOut json.RawMessage
}

// UpsertResourceEntry persists (or replaces) one resource entry.
func (s *Store) UpsertResourceEntry(ctx context.Context, row ResourceRow) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resource_entries
		   (resource_id, stack_id, event_name, agreement_id, ordered_action_list, embargo, plugin_blacklist, horizontal_scale_out)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (resource_id) DO UPDATE SET
		   stack_id = EXCLUDED.stack_id,
		   event_name = EXCLUDED.event_name,
		   agreement_id = EXCLUDED.agreement_id,
		   ordered_action_list = EXCLUDED.ordered_action_list,
		   embargo = EXCLUDED.embargo,
		   plugin_blacklist = EXCLUDED.plugin_blacklist,
		   horizontal_scale_out = EXCLUDED.horizontal_scale_out`,
		row.ResourceID, row.StackID, row.EventName, row.AgreementID,
		row.OrderedActionList, row.Embargo, row.PluginBlacklist, row.HorizontalScaleOut,
	)
	if err != nil {
		return fmt.Errorf("store: upserting resource entry %s: %w", row.ResourceID, err)
	}
	return nil
}

// DeleteResourceEntry removes a resource entry by id.
func (s *Store) DeleteResourceEntry(ctx context.Context, resourceID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM resource_entries WHERE resource_id = $1`, resourceID)
	if err != nil {
		return fmt.Errorf("store: deleting resource entry %s: %w", resourceID, err)
	}
	return nil
}

// ListResourceEntries returns every persisted resource entry. The registry's
// RecoverState does not call it.
func (s *Store) ListResourceEntries(ctx context.Context) ([]ResourceRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT resource_id, stack_id, event_name, agreement_id, ordered_action_list, embargo, plugin_blacklist, horizontal_scale_out
		 FROM resource_entries`)
	if err != nil {
		return nil, fmt.Errorf("store: listing resource entries: %w", err)
	}
	defer rows.Close()

	var out []ResourceRow
	for rows.Next() {
		var r ResourceRow
		var agreementID *string
		if err := rows.Scan(&r.ResourceID, &r.StackID, &r.EventName, &agreementID,
			&r.OrderedActionList, &r.Embargo, &r.PluginBlacklist, &r.HorizontalScaleOut); err != nil {
			return nil, fmt.Errorf("store: scanning resource entry: %w", err)
		}
		if agreementID != nil {
			r.AgreementID = *agreementID
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating resource entries: %w", err)
	}
	return out, nil
}

// RecordBlacklistedAction persists one vetoed action for (stackID,
// eventName), keyed by its identity hash so repeated vetoes are idempotent.
func (s *Store) RecordBlacklistedAction(ctx context.Context, stackID, eventName, actionHash string, actionJSON json.RawMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO action_blacklist (stack_id, event_name, action_hash, action_json)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (stack_id, event_name, action_hash) DO NOTHING`,
		stackID, eventName, actionHash, actionJSON,
	)
	if err != nil {
		return fmt.Errorf("store: recording blacklisted action: %w", err)
	}
	return nil
}

// ListBlacklistedActions returns every persisted veto for (stackID,
// eventName) as raw action JSON documents.
func (s *Store) ListBlacklistedActions(ctx context.Context, stackID, eventName string) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT action_json FROM action_blacklist WHERE stack_id = $1 AND event_name = $2`,
		stackID, eventName)
	if err != nil {
		return nil, fmt.Errorf("store: listing blacklisted actions: %w", err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var raw json.RawMessage
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scanning blacklisted action: %w", err)
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating blacklisted actions: %w", err)
	}
	return out, nil
}
