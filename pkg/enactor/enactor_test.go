package enactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/event"
	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

type fakeInfra struct {
	migrateCalls int
	host         string
	powerState   int
	resizeErr    error
	templates    map[string]map[string]interface{}
}

func (f *fakeInfra) LiveMigrate(ctx context.Context, tenantID, target, destination string) error {
	f.migrateCalls++
	f.host = destination
	return nil
}
func (f *fakeInfra) Resize(ctx context.Context, tenantID, target, flavorID string) error {
	return f.resizeErr
}
func (f *fakeInfra) FlavorIDByName(ctx context.Context, tenantID, name string) (string, error) {
	return "flavor-" + name, nil
}
func (f *fakeInfra) StackTemplate(ctx context.Context, tenantID, stackID string) (map[string]interface{}, error) {
	return f.templates[stackID], nil
}
func (f *fakeInfra) UpdateStackTemplate(ctx context.Context, tenantID, stackID string, template map[string]interface{}) error {
	f.templates[stackID] = template
	return nil
}
func (f *fakeInfra) ServerHost(ctx context.Context, tenantID, target string) (string, error) {
	return f.host, nil
}
func (f *fakeInfra) ServerPowerState(ctx context.Context, tenantID, target string) (int, error) {
	return f.powerState, nil
}
func (f *fakeInfra) Start(ctx context.Context, tenantID, target string) error {
	f.powerState = 1
	return nil
}
func (f *fakeInfra) Stop(ctx context.Context, tenantID, target string) error {
	f.powerState = 4
	return nil
}

type fakeRegistry struct {
	entry *registry.Entry
}

func (f *fakeRegistry) GetResource(eventName, stackID string) *registry.Entry { return f.entry }

type fakePublisher struct {
	openstackEvents []interface{}
	appFeedback     []interface{}
	developer       []interface{}
}

func (p *fakePublisher) PublishOpenStackEvent(ctx context.Context, payload interface{}) error {
	p.openstackEvents = append(p.openstackEvents, payload)
	return nil
}
func (p *fakePublisher) PublishAppFeedback(ctx context.Context, payload interface{}) error {
	p.appFeedback = append(p.appFeedback, payload)
	return nil
}
func (p *fakePublisher) PublishDeveloper(ctx context.Context, key string, payload interface{}) error {
	p.developer = append(p.developer, payload)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

type fakePublisherFactory struct {
	pub *fakePublisher
}

func (f *fakePublisherFactory) OpenPublisher(ctx context.Context) (Publisher, error) {
	return f.pub, nil
}

type fakeJournal struct {
	started, completed, failed int
}

func (j *fakeJournal) RecordAdaptationStarted(ctx context.Context, stackID, eventName string, chosen *action.Action) {
	j.started++
}
func (j *fakeJournal) RecordAdaptationCompleted(ctx context.Context, stackID, eventName string, chosen *action.Action) {
	j.completed++
}
func (j *fakeJournal) RecordAdaptationFailed(ctx context.Context, stackID, eventName string, chosen *action.Action, cause error) {
	j.failed++
}

func TestEnactor_Migrate_PollsUntilHostMatches(t *testing.T) {
	infra := &fakeInfra{templates: map[string]map[string]interface{}{}}
	pub := &fakePublisher{}
	j := &fakeJournal{}
	e := New(infra, &fakeRegistry{}, &fakePublisherFactory{pub: pub}, j, Config{
		MigratePollAttempts: 3, MigratePollInterval: time.Millisecond,
	})

	ev := &event.Event{StackID: "stack-1", TenantID: "tenant-1", Name: "cpu_high"}
	chosen, err := action.New(action.KindMigrate, "vm-1")
	require.NoError(t, err)
	chosen.Destination = "host-b"

	err = e.Enact(context.Background(), ev, chosen)
	require.NoError(t, err)
	assert.Equal(t, 1, infra.migrateCalls)
	assert.Equal(t, 1, j.completed)
	assert.Equal(t, 0, j.failed)
}

func TestEnactor_Developer_PublishesAndSucceeds(t *testing.T) {
	infra := &fakeInfra{templates: map[string]map[string]interface{}{}}
	pub := &fakePublisher{}
	j := &fakeJournal{}
	e := New(infra, &fakeRegistry{}, &fakePublisherFactory{pub: pub}, j, Config{DeveloperRoutingKey: "dev.key"})

	ev := &event.Event{StackID: "stack-1", TenantID: "tenant-1", Name: "mem_high"}
	chosen, err := action.New(action.KindDeveloper, "")
	require.NoError(t, err)

	err = e.Enact(context.Background(), ev, chosen)
	require.NoError(t, err)
	assert.Len(t, pub.developer, 1)
	assert.Equal(t, 1, j.completed)
}

func TestEnactor_UnknownKindFails(t *testing.T) {
	infra := &fakeInfra{templates: map[string]map[string]interface{}{}}
	pub := &fakePublisher{}
	j := &fakeJournal{}
	e := New(infra, &fakeRegistry{}, &fakePublisherFactory{pub: pub}, j, Config{})

	ev := &event.Event{StackID: "stack-1", TenantID: "tenant-1", Name: "x"}
	chosen := &action.Action{Kind: action.Kind(99), Target: "vm-1"}

	err := e.Enact(context.Background(), ev, chosen)
	require.Error(t, err)
	assert.Equal(t, 1, j.failed)
}

func TestEnactor_NoEmbargoSkipsCoolDown(t *testing.T) {
	infra := &fakeInfra{templates: map[string]map[string]interface{}{}}
	pub := &fakePublisher{}
	j := &fakeJournal{}
	entry := &registry.Entry{Embargo: 0}
	e := New(infra, &fakeRegistry{entry: entry}, &fakePublisherFactory{pub: pub}, j, Config{})

	ev := &event.Event{StackID: "stack-1", TenantID: "tenant-1", Name: "x"}
	chosen, err := action.New(action.KindNoAction, "")
	require.NoError(t, err)

	start := time.Now()
	err = e.Enact(context.Background(), ev, chosen)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestEnactor_ResizeErrorFails(t *testing.T) {
	infra := &fakeInfra{templates: map[string]map[string]interface{}{}, resizeErr: errors.New("boom")}
	pub := &fakePublisher{}
	j := &fakeJournal{}
	e := New(infra, &fakeRegistry{}, &fakePublisherFactory{pub: pub}, j, Config{})

	ev := &event.Event{StackID: "stack-1", TenantID: "tenant-1", Name: "x"}
	chosen, err := action.New(action.KindVerticalScale, "vm-1")
	require.NoError(t, err)
	chosen.ScaleValue = "m1.large"

	err = e.Enact(context.Background(), ev, chosen)
	require.Error(t, err)
	assert.Equal(t, 1, j.failed)
}
