// Package event defines the immutable Event type parsed from an inbound
// broker message, and the Router that classifies and dispatches inbound
// messages (spec.md §4.C).
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxPayloadBytes is the maximum accepted size of an inbound event payload.
const MaxPayloadBytes = 8 * 1024 * 1024 // 8 MiB

// ErrInvalidMessage is returned when an inbound payload is malformed, too
// large, or missing a required field.
var ErrInvalidMessage = errors.New("invalid message")

// Machine describes one VM referenced by an event.
type Machine struct {
	ID string `json:"id"`
}

// Event is an immutable record parsed from a broker message, identifying
// the stack and condition that triggered adaptation consideration.
type Event struct {
	UserID     string
	TenantID   string
	StackID    string
	Source     string
	InstanceID string
	Context    string
	Machines   []Machine

	DataCenter string
	Severity   string

	Name  string
	Value string
	Data  json.RawMessage
}

// wireID mirrors the `id` object of the event wire format (spec.md §6).
type wireID struct {
	UserID     string    `json:"user_id"`
	Tenant     string    `json:"tenant"`
	StackID    string    `json:"stack_id"`
	Source     string    `json:"source"`
	Instance   string    `json:"instance"`
	Context    string    `json:"context"`
	Machines   []Machine `json:"machines"`
	Severity   string    `json:"severity,omitempty"`
	DataCenter string    `json:"data_center,omitempty"`
}

type wireEvent struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// wireMessage mirrors the complete inbound event envelope.
type wireMessage struct {
	ID    json.RawMessage `json:"id"`
	Event *wireEvent      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Parse validates and parses a raw broker payload into an Event. It enforces
// the 8 MiB size cap and the mandatory id fields listed in spec.md §6.
// "machines" is required as a *key* of the id object, matching the
// original's `required_id_fields.issubset(set(cwevent['id']))` check — an
// empty machines list is tolerated and surfaces downstream as an empty
// passthrough target (spec.md §4.C step 5).
func Parse(raw []byte) (*Event, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d byte limit", ErrInvalidMessage, len(raw), MaxPayloadBytes)
	}

	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if msg.ID == nil {
		return nil, fmt.Errorf("%w: missing id object", ErrInvalidMessage)
	}

	var id wireID
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var idKeys map[string]json.RawMessage
	if err := json.Unmarshal(msg.ID, &idKeys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	missing := requiredIDFields(&id)
	if _, ok := idKeys["machines"]; !ok {
		missing = append(missing, "machines")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required id fields: %v", ErrInvalidMessage, missing)
	}

	ev := &Event{
		UserID:     id.UserID,
		TenantID:   id.Tenant,
		StackID:    id.StackID,
		Source:     id.Source,
		InstanceID: id.Instance,
		Context:    id.Context,
		Machines:   id.Machines,
		DataCenter: id.DataCenter,
		Severity:   id.Severity,
		Data:       msg.Data,
	}
	if msg.Event != nil {
		ev.Name = msg.Event.Name
		ev.Value = msg.Event.Value
	}
	return ev, nil
}

func requiredIDFields(id *wireID) []string {
	var missing []string
	if id.UserID == "" {
		missing = append(missing, "user_id")
	}
	if id.Tenant == "" {
		missing = append(missing, "tenant")
	}
	if id.StackID == "" {
		missing = append(missing, "stack_id")
	}
	if id.Source == "" {
		missing = append(missing, "source")
	}
	if id.Instance == "" {
		missing = append(missing, "instance")
	}
	if id.Context == "" {
		missing = append(missing, "context")
	}
	return missing
}

// FirstMachineID returns the id of the first machine, or "" when the list is
// empty. The caller is responsible for logging the tolerate-empty case per
// the passthrough shortcut (spec.md §4.C step 5).
func (e *Event) FirstMachineID() string {
	if len(e.Machines) == 0 {
		return ""
	}
	return e.Machines[0].ID
}
