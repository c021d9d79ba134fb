package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

type stubRegistry struct {
	allowed map[string][]action.Kind
}

func (s *stubRegistry) GetInitialActions(eventName, stackID string) []action.Kind {
	return s.allowed[stackID+"|"+eventName]
}

type stubHeat struct{ called int }

func (s *stubHeat) HandleHeat(ctx context.Context, raw json.RawMessage) error {
	s.called++
	return nil
}

type stubEnactor struct {
	mu      sync.Mutex
	enacted []*action.Action
	delay   time.Duration
}

func (s *stubEnactor) Enact(ctx context.Context, ev *Event, chosen *action.Action) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enacted = append(s.enacted, chosen)
	return nil
}

type stubJournal struct {
	mu       sync.Mutex
	received int
	outcomes []*action.Action
}

func (s *stubJournal) RecordEvent(ctx context.Context, ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
}
func (s *stubJournal) RecordDecision(ctx context.Context, ev *Event, actions []*action.Action) {}
func (s *stubJournal) RecordOutcome(ctx context.Context, ev *Event, chosen *action.Action, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, chosen)
}

type stubDispatcher struct {
	result []*action.Action
}

func (s *stubDispatcher) Dispatch(ctx context.Context, ev *Event, allowed []action.Kind) ([]*action.Action, error) {
	return s.result, nil
}

func sampleEventPayload(stackID, eventName string) []byte {
	return []byte(`{
		"id": {
			"user_id": "u1", "tenant": "t1", "stack_id": "` + stackID + `",
			"source": "monitoring", "instance": "i1", "context": "cpu",
			"machines": [{"id": "vm-1"}]
		},
		"event": {"name": "` + eventName + `", "value": "95"},
		"data": {}
	}`)
}

// TestRouter_Passthrough is scenario S1 from spec.md §8.
func TestRouter_Passthrough(t *testing.T) {
	reg := &stubRegistry{allowed: map[string][]action.Kind{"S1|E": {action.KindStop}}}
	enactor := &stubEnactor{}
	journal := &stubJournal{}
	r := New(reg, &stubHeat{}, &stubDispatcher{}, enactor, journal)

	err := r.OnMessage(context.Background(), sampleEventPayload("S1", "E"))
	require.NoError(t, err)

	require.Len(t, enactor.enacted, 1)
	assert.Equal(t, action.KindStop, enactor.enacted[0].Kind)
	assert.Equal(t, "vm-1", enactor.enacted[0].Target)
	assert.Equal(t, 1, journal.received)

	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	assert.Empty(t, r.locks)
}

// TestRouter_LockDropsConcurrentEvent is scenario S2 from spec.md §8.
func TestRouter_LockDropsConcurrentEvent(t *testing.T) {
	reg := &stubRegistry{allowed: map[string][]action.Kind{"S2|E": {action.KindStop}}}
	enactor := &stubEnactor{delay: 100 * time.Millisecond}
	journal := &stubJournal{}
	r := New(reg, &stubHeat{}, &stubDispatcher{}, enactor, journal)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = r.OnMessage(context.Background(), sampleEventPayload("S2", "E"))
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		defer wg.Done()
		_ = r.OnMessage(context.Background(), sampleEventPayload("S2", "E"))
	}()
	wg.Wait()

	assert.Equal(t, 1, journal.received)
	assert.Len(t, enactor.enacted, 1)
}

// TestRouter_ConsolidationEmptySubstitutesDeveloper is scenario S6.
func TestRouter_ConsolidationEmptySubstitutesDeveloper(t *testing.T) {
	reg := &stubRegistry{allowed: map[string][]action.Kind{"S6|E": {action.KindMigrate}}}
	enactor := &stubEnactor{}
	journal := &stubJournal{}
	vetoed := &action.Action{Kind: action.KindMigrate, Target: "vm-1", Score: -1}
	r := New(reg, &stubHeat{}, &stubDispatcher{result: []*action.Action{vetoed}}, enactor, journal)

	err := r.OnMessage(context.Background(), sampleEventPayload("S6", "E"))
	require.NoError(t, err)

	require.Len(t, enactor.enacted, 1)
	assert.Equal(t, action.KindDeveloper, enactor.enacted[0].Kind)
}

func TestRouter_HeatMessageRoutedToHandler(t *testing.T) {
	heat := &stubHeat{}
	r := New(&stubRegistry{}, heat, &stubDispatcher{}, &stubEnactor{}, &stubJournal{})

	err := r.OnMessage(context.Background(), []byte(`{"heat": {"type": "heat_create", "data": {}}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, heat.called)
}
