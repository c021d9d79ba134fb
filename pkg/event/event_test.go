package event

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPayload() string {
	return `{
		"id": {
			"user_id": "u1", "tenant": "t1", "stack_id": "s1",
			"source": "monitoring", "instance": "i1", "context": "cpu",
			"machines": [{"id": "vm-1"}]
		},
		"event": {"name": "high_cpu", "value": "95"},
		"data": {"threshold": 90}
	}`
}

func TestParse_Success(t *testing.T) {
	ev, err := Parse([]byte(validPayload()))
	require.NoError(t, err)
	assert.Equal(t, "s1", ev.StackID)
	assert.Equal(t, "high_cpu", ev.Name)
	assert.Equal(t, "vm-1", ev.FirstMachineID())
}

func TestParse_RejectsOversizedPayload(t *testing.T) {
	huge := `{"id":{"user_id":"` + strings.Repeat("a", MaxPayloadBytes+1) + `"}}`
	_, err := Parse([]byte(huge))
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestParse_RejectsMissingRequiredFields(t *testing.T) {
	_, err := Parse([]byte(`{"id": {"user_id": "u1"}}`))
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestParse_RejectsMissingIDObject(t *testing.T) {
	_, err := Parse([]byte(`{"event": {"name": "x", "value": "y"}}`))
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestParse_RejectsMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestFirstMachineID_EmptyList(t *testing.T) {
	ev := &Event{}
	assert.Equal(t, "", ev.FirstMachineID())
}

func TestParse_ToleratesEmptyMachinesList(t *testing.T) {
	ev, err := Parse([]byte(`{
		"id": {
			"user_id": "u1", "tenant": "t1", "stack_id": "s1",
			"source": "monitoring", "instance": "i1", "context": "cpu",
			"machines": []
		},
		"event": {"name": "developer_alert", "value": ""}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "", ev.FirstMachineID())
}

func TestParse_RejectsMissingMachinesKey(t *testing.T) {
	_, err := Parse([]byte(`{
		"id": {
			"user_id": "u1", "tenant": "t1", "stack_id": "s1",
			"source": "monitoring", "instance": "i1", "context": "cpu"
		},
		"event": {"name": "developer_alert", "value": ""}
	}`))
	require.ErrorIs(t, err, ErrInvalidMessage)
}
