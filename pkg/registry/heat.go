package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// HeatMessage mirrors the `{"heat": {"type": T, "data": D}}` envelope
// (spec.md §6) used for Heat resource lifecycle notifications.
type HeatMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Heat message types (spec.md §4.B).
const (
	HeatCreate              = "heat_create"
	HeatCheckCreateComplete = "heat_check_create_complete"
	HeatDelete              = "heat_delete"
	HeatQuery               = "heat_query"
)

// heatProperties is the subset of a Heat resource's `properties` block the
// registry cares about.
type heatProperties struct {
	ResourceID        string                      `json:"resource_id"`
	StackID           string                      `json:"stack_id"`
	EventName         string                      `json:"event_name"`
	AgreementID       string                      `json:"agreement_id"`
	OrderedActionList []string                    `json:"ordered_action_list"`
	Embargo           int                         `json:"embargo"`
	PluginBlacklist   []string                    `json:"plugin_blacklist"`
	HorizontalScale   *horizontalScaleOutTemplate `json:"horizontal_scale_out,omitempty"`
}

type horizontalScaleOutTemplate struct {
	NamePrefix   string `json:"name_prefix"`
	FlavorID     string `json:"flavor_id"`
	ImageID      string `json:"image_id"`
	NetworkID    string `json:"network_id"`
	ResourceName string `json:"resource_name"`
}

// Message dispatches an inbound heat message to the appropriate registry
// mutation and replies through r.replier, keyed by the resource id carried
// in the message payload (spec.md §4.B).
func (r *Registry) Message(ctx context.Context, msg HeatMessage) error {
	switch msg.Type {
	case HeatCreate:
		return r.handleCreate(ctx, msg)
	case HeatCheckCreateComplete:
		return r.handleCheckCreateComplete(ctx, msg)
	case HeatDelete:
		return r.handleDelete(ctx, msg)
	case HeatQuery:
		return r.handleQuery(ctx, msg)
	default:
		return fmt.Errorf("registry: unrecognised heat message type %q", msg.Type)
	}
}

func (r *Registry) handleCreate(ctx context.Context, msg HeatMessage) error {
	var props heatProperties
	if err := json.Unmarshal(msg.Data, &props); err != nil {
		return fmt.Errorf("registry: decoding heat_create payload: %w", err)
	}

	entry, err := entryFromProperties(props)
	if err != nil {
		return err
	}
	r.put(entry)

	if r.journal != nil {
		r.journal.RecordResourceCreated(ctx, entry.StackID, entry.ResourceID)
	}

	if entry.AgreementID != "" && r.sla != nil {
		if err := r.sla.StartEnforcement(ctx, entry.AgreementID); err != nil {
			r.logger.Error("SLA enforcement start failed; continuing",
				"agreement_id", entry.AgreementID, "error", err)
		}
	}

	if r.replier != nil {
		return r.replier.ReplyToHeat(ctx, props.ResourceID, createReply{Response: props.ResourceID})
	}
	return nil
}

// handleCheckCreateComplete replies {"response": true} without looking the
// resource up: the registry materializes entries synchronously on
// heat_create, so creation is always complete by the time this arrives.
func (r *Registry) handleCheckCreateComplete(ctx context.Context, msg HeatMessage) error {
	var props struct {
		ResourceID string `json:"resource_id"`
	}
	if err := json.Unmarshal(msg.Data, &props); err != nil {
		return fmt.Errorf("registry: decoding heat_check_create_complete payload: %w", err)
	}
	if r.replier != nil {
		return r.replier.ReplyToHeat(ctx, props.ResourceID, boolReply{Response: true})
	}
	return nil
}

func (r *Registry) handleDelete(ctx context.Context, msg HeatMessage) error {
	var props struct {
		ResourceID string `json:"resource_id"`
	}
	if err := json.Unmarshal(msg.Data, &props); err != nil {
		return fmt.Errorf("registry: decoding heat_delete payload: %w", err)
	}

	stackID := ""
	if entry := r.lookupByResourceID(props.ResourceID); entry != nil {
		stackID = entry.StackID
	}
	r.remove(props.ResourceID)
	if r.journal != nil {
		r.journal.RecordResourceDeleted(ctx, stackID, props.ResourceID)
	}
	if r.replier != nil {
		return r.replier.ReplyToHeat(ctx, props.ResourceID, boolReply{Response: true})
	}
	return nil
}

func (r *Registry) handleQuery(ctx context.Context, msg HeatMessage) error {
	var props struct {
		ResourceID string `json:"resource_id"`
	}
	if err := json.Unmarshal(msg.Data, &props); err != nil {
		return fmt.Errorf("registry: decoding heat_query payload: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var resources []queryResource
	for _, entry := range r.entries {
		if props.ResourceID != "" && entry.ResourceID != props.ResourceID {
			continue
		}
		actions := make([]string, len(entry.OrderedActionList))
		for i, k := range entry.OrderedActionList {
			actions[i] = k.String()
		}
		blacklist := make([]string, 0, len(entry.PluginBlacklist))
		for name := range entry.PluginBlacklist {
			blacklist = append(blacklist, name)
		}
		resources = append(resources, queryResource{
			ResourceID:      entry.ResourceID,
			StackID:         entry.StackID,
			AgreementID:     entry.AgreementID,
			EventName:       entry.EventName,
			Embargo:         entry.Embargo,
			Blacklist:       blacklist,
			Actions:         actions,
			HorizontalScale: entry.HorizontalScaleOut,
		})
	}

	if r.replier != nil {
		return r.replier.ReplyToHeat(ctx, props.ResourceID, queryReply{Resources: resources})
	}
	return nil
}

// createReply mirrors the reply-to-create wire shape (spec.md §6):
// {"response": <resource_id>}.
type createReply struct {
	Response string `json:"response"`
}

// boolReply mirrors the reply-to-check_create_complete/delete wire shape:
// {"response": true}.
type boolReply struct {
	Response bool `json:"response"`
}

type queryResource struct {
	ResourceID      string                      `json:"resource_id"`
	StackID         string                      `json:"stack_id"`
	AgreementID     string                      `json:"agreement_id"`
	EventName       string                      `json:"event_name"`
	Embargo         int                         `json:"embargo"`
	Blacklist       []string                    `json:"blacklist"`
	Actions         []string                    `json:"actions"`
	HorizontalScale *HorizontalScaleOutTemplate `json:"horizontal_scale_out,omitempty"`
}

type queryReply struct {
	Resources []queryResource `json:"resources"`
}

func entryFromProperties(props heatProperties) (*Entry, error) {
	if props.StackID == "" || props.EventName == "" {
		return nil, fmt.Errorf("registry: resource %q missing stack_id or event_name", props.ResourceID)
	}

	kinds := make([]action.Kind, 0, len(props.OrderedActionList))
	for _, name := range props.OrderedActionList {
		k, err := action.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("registry: resource %q: %w", props.ResourceID, err)
		}
		kinds = append(kinds, k)
	}

	blacklist := make(map[string]struct{}, len(props.PluginBlacklist))
	for _, name := range props.PluginBlacklist {
		blacklist[name] = struct{}{}
	}

	var scaleOut *HorizontalScaleOutTemplate
	if props.HorizontalScale != nil {
		scaleOut = &HorizontalScaleOutTemplate{
			NamePrefix:   props.HorizontalScale.NamePrefix,
			FlavorID:     props.HorizontalScale.FlavorID,
			ImageID:      props.HorizontalScale.ImageID,
			NetworkID:    props.HorizontalScale.NetworkID,
			ResourceName: props.HorizontalScale.ResourceName,
		}
	}

	return &Entry{
		ResourceID:        props.ResourceID,
		StackID:           props.StackID,
		EventName:         props.EventName,
		AgreementID:       props.AgreementID,
		OrderedActionList: kinds,
		Embargo:           props.Embargo,
		PluginBlacklist:   blacklist,
		HorizontalScaleOut: scaleOut,
	}, nil
}

// entryFromTemplate materialises a ResourceEntry from a Heat stack template
// fetched during RecoverState. Templates store the same property bag a
// heat_create message carries, nested under the resource's properties key.
func entryFromTemplate(resourceID, stackID string, tmpl map[string]interface{}) (*Entry, error) {
	raw, ok := tmpl["properties"]
	if !ok {
		return nil, fmt.Errorf("registry: template for resource %q missing properties block", resourceID)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("registry: re-encoding template properties: %w", err)
	}

	var props heatProperties
	if err := json.Unmarshal(encoded, &props); err != nil {
		return nil, fmt.Errorf("registry: decoding template properties: %w", err)
	}
	props.ResourceID = resourceID
	if props.StackID == "" {
		props.StackID = stackID
	}
	return entryFromProperties(props)
}
