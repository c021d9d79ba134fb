// Package enactor implements component G: it dispatches the consolidated
// action chosen for an event, drives the bounded polling state machines that
// confirm completion, and publishes lifecycle notifications around the
// enactment (spec.md §4.G).
package enactor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/event"
	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
)

// Infra is the subset of the external infrastructure API the Enactor needs
// to carry out a chosen action, satisfied by pkg/openstack.Client.
type Infra interface {
	LiveMigrate(ctx context.Context, tenantID, target, destination string) error
	Resize(ctx context.Context, tenantID, target, flavorID string) error
	FlavorIDByName(ctx context.Context, tenantID, name string) (string, error)
	StackTemplate(ctx context.Context, tenantID, stackID string) (map[string]interface{}, error)
	UpdateStackTemplate(ctx context.Context, tenantID, stackID string, template map[string]interface{}) error
	ServerHost(ctx context.Context, tenantID, target string) (string, error)
	ServerPowerState(ctx context.Context, tenantID, target string) (int, error)
	Start(ctx context.Context, tenantID, target string) error
	Stop(ctx context.Context, tenantID, target string) error
}

// Registry is the subset of the Active-Resource Registry the Enactor
// consults for embargo and horizontal-scale-out policy.
type Registry interface {
	GetResource(eventName, stackID string) *registry.Entry
}

// PublisherFactory opens an ephemeral publisher pair around one enactment
// (spec.md §4.G step 1/6).
type PublisherFactory interface {
	OpenPublisher(ctx context.Context) (Publisher, error)
}

// Publisher is the narrow publish surface the Enactor drives.
type Publisher interface {
	PublishOpenStackEvent(ctx context.Context, payload interface{}) error
	PublishAppFeedback(ctx context.Context, payload interface{}) error
	PublishDeveloper(ctx context.Context, key string, payload interface{}) error
	Close() error
}

// Journal is the subset of the append-only store the Enactor writes to.
type Journal interface {
	RecordAdaptationStarted(ctx context.Context, stackID, eventName string, chosen *action.Action)
	RecordAdaptationCompleted(ctx context.Context, stackID, eventName string, chosen *action.Action)
	RecordAdaptationFailed(ctx context.Context, stackID, eventName string, chosen *action.Action, cause error)
}

// Config tunes the poll loops and the Developer/LowPower publish key.
type Config struct {
	DeveloperRoutingKey string
	MigratePollAttempts int
	MigratePollInterval time.Duration
	PowerPollAttempts   int
	PowerPollMinWait    time.Duration
	PowerPollMaxWait    time.Duration
	StackUpdatePoll     StackUpdatePollConfig
}

// StackUpdatePollConfig bounds pollStackUpdateComplete.
type StackUpdatePollConfig struct {
	Attempts int
	Interval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MigratePollAttempts == 0 {
		c.MigratePollAttempts = 20
	}
	if c.MigratePollInterval == 0 {
		c.MigratePollInterval = 10 * time.Second
	}
	if c.PowerPollAttempts == 0 {
		c.PowerPollAttempts = 20
	}
	if c.PowerPollMinWait == 0 {
		c.PowerPollMinWait = 5 * time.Second
	}
	if c.PowerPollMaxWait == 0 {
		c.PowerPollMaxWait = 10 * time.Second
	}
	if c.StackUpdatePoll.Attempts == 0 {
		c.StackUpdatePoll.Attempts = 20
	}
	if c.StackUpdatePoll.Interval == 0 {
		c.StackUpdatePoll.Interval = 10 * time.Second
	}
	return c
}

// Enactor implements event.Enactor.
type Enactor struct {
	infra      Infra
	registry   Registry
	publishers PublisherFactory
	journal    Journal
	cfg        Config
	logger     *slog.Logger
}

// New constructs an Enactor.
func New(infra Infra, reg Registry, publishers PublisherFactory, journal Journal, cfg Config) *Enactor {
	return &Enactor{
		infra:      infra,
		registry:   reg,
		publishers: publishers,
		journal:    journal,
		cfg:        cfg.withDefaults(),
		logger:     slog.With("component", "enactor"),
	}
}

// lifecycleNotification is the synthetic openstack_event/app_feedback
// payload shape (spec.md §4.G: "event_type cw.{stackId}.adaptation-...").
type lifecycleNotification struct {
	EventType string      `json:"event_type"`
	StackID   string      `json:"stack_id"`
	Action    action.Dict `json:"action"`
}

// developerRequest is the JSON adaptation request published for Developer
// and LowPower actions (spec.md §4.G steps 3 Developer/LowPower).
type developerRequest struct {
	StackID string      `json:"stack_id"`
	Name    string      `json:"name"`
	Action  action.Dict `json:"action"`
}

// Enact carries out chosen for ev, satisfying event.Enactor.
func (e *Enactor) Enact(ctx context.Context, ev *event.Event, chosen *action.Action) error {
	pub, err := e.publishers.OpenPublisher(ctx)
	if err != nil {
		return fmt.Errorf("enactor: opening publishers: %w", err)
	}
	defer pub.Close()

	entry := e.registry.GetResource(ev.Name, ev.StackID)

	e.journal.RecordAdaptationStarted(ctx, ev.StackID, ev.Name, chosen)
	e.publishLifecycle(ctx, pub, ev.StackID, "start", chosen)

	runErr := e.dispatch(ctx, ev, entry, chosen)

	if runErr == nil && entry != nil && entry.Embargo > 0 {
		e.logger.Info("Embargo cool-down", "stack_id", ev.StackID, "seconds", entry.Embargo)
		select {
		case <-time.After(time.Duration(entry.Embargo) * time.Second):
		case <-ctx.Done():
		}
	}

	if runErr != nil {
		if err := pub.PublishAppFeedback(ctx, lifecycleNotification{
			EventType: fmt.Sprintf("cw.%s.adaptation-failed", ev.StackID),
			StackID:   ev.StackID,
			Action:    chosen.ToDict(),
		}); err != nil {
			e.logger.Error("Publishing failure feedback", "error", err)
		}
		e.publishLifecycle(ctx, pub, ev.StackID, "complete", chosen)
		e.journal.RecordAdaptationFailed(ctx, ev.StackID, ev.Name, chosen, runErr)
		return runErr
	}

	if err := pub.PublishAppFeedback(ctx, lifecycleNotification{
		EventType: fmt.Sprintf("cw.%s.adaptation-complete", ev.StackID),
		StackID:   ev.StackID,
		Action:    chosen.ToDict(),
	}); err != nil {
		e.logger.Error("Publishing completion feedback", "error", err)
	}
	e.publishLifecycle(ctx, pub, ev.StackID, "complete", chosen)
	e.journal.RecordAdaptationCompleted(ctx, ev.StackID, ev.Name, chosen)
	return nil
}

func (e *Enactor) publishLifecycle(ctx context.Context, pub Publisher, stackID, phase string, chosen *action.Action) {
	if err := pub.PublishOpenStackEvent(ctx, lifecycleNotification{
		EventType: fmt.Sprintf("cw.%s.adaptation-%s", stackID, phase),
		StackID:   stackID,
		Action:    chosen.ToDict(),
	}); err != nil {
		e.logger.Error("Publishing openstack_event notification", "error", err, "phase", phase)
	}
}

func (e *Enactor) dispatch(ctx context.Context, ev *event.Event, entry *registry.Entry, chosen *action.Action) error {
	switch chosen.Kind {
	case action.KindMigrate:
		return e.enactMigrate(ctx, ev, chosen)
	case action.KindVerticalScale:
		return e.enactVerticalScale(ctx, ev, chosen)
	case action.KindHorizontalScale:
		return e.enactHorizontalScale(ctx, ev, entry)
	case action.KindDeveloper:
		return e.enactDeveloper(ctx, ev, chosen)
	case action.KindLowPower:
		return e.enactLowPower(ctx, ev, chosen)
	case action.KindNoAction:
		return nil
	case action.KindStart:
		return e.enactPower(ctx, ev, chosen, powerStart)
	case action.KindStop:
		return e.enactPower(ctx, ev, chosen, powerStop)
	default:
		return fmt.Errorf("enactor: unknown action kind %s", chosen.Kind)
	}
}

func (e *Enactor) enactMigrate(ctx context.Context, ev *event.Event, chosen *action.Action) error {
	if err := e.infra.LiveMigrate(ctx, ev.TenantID, chosen.Target, chosen.Destination); err != nil {
		return fmt.Errorf("enactor: live-migrate: %w", err)
	}
	return e.pollMigrateComplete(ctx, ev.TenantID, chosen.Target, chosen.Destination)
}

func (e *Enactor) pollMigrateComplete(ctx context.Context, tenantID, target, destination string) error {
	for attempt := 0; attempt < e.cfg.MigratePollAttempts; attempt++ {
		host, err := e.infra.ServerHost(ctx, tenantID, target)
		if err != nil {
			e.logger.Warn("Polling migrate completion", "error", err, "attempt", attempt)
		} else if host == destination {
			return nil
		}
		if !sleepOrDone(ctx, e.cfg.MigratePollInterval) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("enactor: migrate to %s did not complete within %d attempts", destination, e.cfg.MigratePollAttempts)
}

func (e *Enactor) enactVerticalScale(ctx context.Context, ev *event.Event, chosen *action.Action) error {
	flavorID, err := e.infra.FlavorIDByName(ctx, ev.TenantID, chosen.ScaleValue)
	if err != nil {
		return fmt.Errorf("enactor: resolving flavor %q: %w", chosen.ScaleValue, err)
	}
	if err := e.infra.Resize(ctx, ev.TenantID, chosen.Target, flavorID); err != nil {
		return fmt.Errorf("enactor: resize: %w", err)
	}
	return e.pollStackUpdateComplete(ctx, ev.TenantID, ev.StackID)
}

func (e *Enactor) enactHorizontalScale(ctx context.Context, ev *event.Event, entry *registry.Entry) error {
	if entry == nil || entry.HorizontalScaleOut == nil {
		return fmt.Errorf("enactor: no horizontal scale-out template configured for stack %s", ev.StackID)
	}
	tmpl := entry.HorizontalScaleOut

	template, err := e.infra.StackTemplate(ctx, ev.TenantID, ev.StackID)
	if err != nil {
		return fmt.Errorf("enactor: fetching stack template: %w", err)
	}
	source, ok := template["resources"].(map[string]interface{})[tmpl.ResourceName]
	if !ok {
		return fmt.Errorf("enactor: scale-out source resource %q not found in template", tmpl.ResourceName)
	}
	clone, err := cloneResource(source)
	if err != nil {
		return fmt.Errorf("enactor: cloning scale-out resource: %w", err)
	}
	newName := fmt.Sprintf("%s-%s", tmpl.NamePrefix, uuid.NewString())
	template["resources"].(map[string]interface{})[newName] = clone

	if err := e.infra.UpdateStackTemplate(ctx, ev.TenantID, ev.StackID, template); err != nil {
		return fmt.Errorf("enactor: updating stack template: %w", err)
	}
	return e.pollStackUpdateComplete(ctx, ev.TenantID, ev.StackID)
}

// cloneResource round-trips source through JSON to produce a detached deep
// copy safe to mutate and re-key into the template's resources map.
func cloneResource(source interface{}) (interface{}, error) {
	raw, err := json.Marshal(source)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Enactor) pollStackUpdateComplete(ctx context.Context, tenantID, stackID string) error {
	poll := e.cfg.StackUpdatePoll
	for attempt := 0; attempt < poll.Attempts; attempt++ {
		if !sleepOrDone(ctx, poll.Interval) {
			return ctx.Err()
		}
		if _, err := e.infra.StackTemplate(ctx, tenantID, stackID); err == nil {
			return nil
		}
	}
	return fmt.Errorf("enactor: stack %s update did not complete within %d attempts", stackID, poll.Attempts)
}

func (e *Enactor) enactDeveloper(ctx context.Context, ev *event.Event, chosen *action.Action) error {
	return e.publishDeveloperRequest(ctx, ev.StackID, ev.Name, chosen)
}

// enactLowPower rewrites the event name to "lowpower" and the stack id to
// the action's TargetApp redirection before publishing (spec.md §4.G
// LowPower dispatch).
func (e *Enactor) enactLowPower(ctx context.Context, ev *event.Event, chosen *action.Action) error {
	return e.publishDeveloperRequest(ctx, chosen.TargetApp, "lowpower", chosen)
}

func (e *Enactor) publishDeveloperRequest(ctx context.Context, stackID, name string, chosen *action.Action) error {
	pub, err := e.publishers.OpenPublisher(ctx)
	if err != nil {
		return fmt.Errorf("enactor: opening developer publisher: %w", err)
	}
	defer pub.Close()
	req := developerRequest{StackID: stackID, Name: name, Action: chosen.ToDict()}
	if err := pub.PublishDeveloper(ctx, e.cfg.DeveloperRoutingKey, req); err != nil {
		return fmt.Errorf("enactor: publishing developer request: %w", err)
	}
	return nil
}

type powerOp int

const (
	powerStart powerOp = iota
	powerStop
)

// Nova power_state codes (spec.md §4.G: Start desired set {1}, Stop {0,4}).
var powerDesiredStates = map[powerOp]map[int]struct{}{
	powerStart: {1: {}},
	powerStop:  {0: {}, 4: {}},
}

func (e *Enactor) enactPower(ctx context.Context, ev *event.Event, chosen *action.Action, op powerOp) error {
	var err error
	if op == powerStart {
		err = e.infra.Start(ctx, ev.TenantID, chosen.Target)
	} else {
		err = e.infra.Stop(ctx, ev.TenantID, chosen.Target)
	}
	if err != nil {
		return fmt.Errorf("enactor: power operation: %w", err)
	}
	return e.pollPowerState(ctx, ev.TenantID, chosen.Target, op)
}

func (e *Enactor) pollPowerState(ctx context.Context, tenantID, target string, op powerOp) error {
	desired := powerDesiredStates[op]
	for attempt := 0; attempt < e.cfg.PowerPollAttempts; attempt++ {
		state, err := e.infra.ServerPowerState(ctx, tenantID, target)
		if err != nil {
			e.logger.Warn("Polling power state", "error", err, "attempt", attempt)
		} else if _, ok := desired[state]; ok {
			return nil
		}
		if !sleepOrDone(ctx, jitteredWait(e.cfg.PowerPollMinWait, e.cfg.PowerPollMaxWait)) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("enactor: power state of %s did not reach desired set within %d attempts", target, e.cfg.PowerPollAttempts)
}

// jitteredWait returns an interval uniformly distributed in [min, max), used
// to avoid synchronised polling of the infrastructure API across concurrent
// enactments.
func jitteredWait(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(rand.Int63n(int64(span)))
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
