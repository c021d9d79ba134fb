package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplier struct {
	replies map[string]interface{}
}

func (f *fakeReplier) ReplyToHeat(ctx context.Context, resourceID string, reply interface{}) error {
	if f.replies == nil {
		f.replies = make(map[string]interface{})
	}
	f.replies[resourceID] = reply
	return nil
}

type fakeSLA struct {
	started []string
}

func (f *fakeSLA) StartEnforcement(ctx context.Context, agreementID string) error {
	f.started = append(f.started, agreementID)
	return nil
}

func TestRegistry_HeatCreateThenGetInitialActions(t *testing.T) {
	replier := &fakeReplier{}
	sla := &fakeSLA{}
	r := New(nil, sla, replier)

	msg := HeatMessage{
		Type: HeatCreate,
		Data: []byte(`{
			"resource_id": "res-1", "stack_id": "s1", "event_name": "high_cpu",
			"agreement_id": "ag-1", "ordered_action_list": ["Migrate", "VerticalScale"],
			"embargo": 30, "plugin_blacklist": ["flaky-plugin"]
		}`),
	}
	require.NoError(t, r.Message(context.Background(), msg))

	require.Len(t, sla.started, 1)
	assert.Equal(t, "ag-1", sla.started[0])

	reply, ok := replier.replies["res-1"].(createReply)
	require.True(t, ok)
	assert.Equal(t, "res-1", reply.Response)

	entry := r.GetResource("high_cpu", "s1")
	require.NotNil(t, entry)
	assert.Equal(t, 30, entry.Embargo)
	assert.True(t, entry.IsPluginBlacklisted("flaky-plugin"))
	assert.False(t, entry.IsPluginBlacklisted("other-plugin"))
}

func TestRegistry_HeatDeleteRemovesEntry(t *testing.T) {
	replier := &fakeReplier{}
	r := New(nil, nil, replier)

	create := HeatMessage{Type: HeatCreate, Data: []byte(`{
		"resource_id": "res-1", "stack_id": "s1", "event_name": "e",
		"ordered_action_list": ["Stop"]
	}`)}
	require.NoError(t, r.Message(context.Background(), create))
	require.NotEmpty(t, r.GetInitialActions("e", "s1"))

	del := HeatMessage{Type: HeatDelete, Data: []byte(`{"resource_id": "res-1"}`)}
	require.NoError(t, r.Message(context.Background(), del))
	assert.Empty(t, r.GetInitialActions("e", "s1"))
}

func TestEntry_AllowsOnlyPassthroughKinds(t *testing.T) {
	replier := &fakeReplier{}
	r := New(nil, nil, replier)

	create := HeatMessage{Type: HeatCreate, Data: []byte(`{
		"resource_id": "res-1", "stack_id": "s1", "event_name": "e",
		"ordered_action_list": ["Stop", "Developer"]
	}`)}
	require.NoError(t, r.Message(context.Background(), create))

	entry := r.GetResource("e", "s1")
	require.NotNil(t, entry)
	assert.True(t, entry.AllowsOnlyPassthroughKinds())
}
