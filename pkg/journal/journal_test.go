package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/event"
	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
	"github.com/IntelLabsEurope/adaptationengine/pkg/store"
)

type fakeInserter struct {
	entries []store.JournalEntry
	err     error
}

func (f *fakeInserter) InsertJournalEntry(ctx context.Context, entry store.JournalEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeVMLocator struct {
	vms []registry.VMLocation
}

func (f *fakeVMLocator) ActiveVMs(stackID string) []registry.VMLocation { return f.vms }

func TestJournal_RecordEvent_IncludesLocationSnapshot(t *testing.T) {
	ins := &fakeInserter{}
	vms := &fakeVMLocator{vms: []registry.VMLocation{{VMID: "vm-1", Hypervisor: "host-a"}}}
	j := New(ins, vms)

	ev := &event.Event{StackID: "stack-1", Name: "cpu_high"}
	j.RecordEvent(context.Background(), ev)

	require.Len(t, ins.entries, 1)
	assert.Equal(t, TypeEventReceived, ins.entries[0].Type)
	assert.Equal(t, "stack-1", ins.entries[0].StackID)
	assert.NotEmpty(t, ins.entries[0].Location)
}

func TestJournal_WriteFailureIsSwallowed(t *testing.T) {
	ins := &fakeInserter{err: errors.New("connection refused")}
	j := New(ins, nil)

	ev := &event.Event{StackID: "stack-1", Name: "cpu_high"}
	assert.NotPanics(t, func() {
		j.RecordEvent(context.Background(), ev)
	})
}

func TestJournal_RecordAdaptationFailed_CapturesError(t *testing.T) {
	ins := &fakeInserter{}
	j := New(ins, nil)

	chosen, err := action.New(action.KindMigrate, "vm-1")
	require.NoError(t, err)
	j.RecordAdaptationFailed(context.Background(), "stack-1", "cpu_high", chosen, errors.New("migrate timed out"))

	require.Len(t, ins.entries, 1)
	assert.Equal(t, TypeAdaptationFailed, ins.entries[0].Type)
	assert.Contains(t, string(ins.entries[0].Details), "migrate timed out")
}
