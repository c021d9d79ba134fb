// Package engine wires components A-I into one running process: it adapts
// each package's narrow collaborator interfaces onto the concrete types
// from pkg/registry, pkg/distributor, pkg/enactor, pkg/broker, pkg/store,
// pkg/openstack, and pkg/plugin, and exposes Build/Run/Close for
// cmd/adaptationengine (spec.md §4, §12).
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/broker"
	"github.com/IntelLabsEurope/adaptationengine/pkg/config"
	"github.com/IntelLabsEurope/adaptationengine/pkg/distributor"
	"github.com/IntelLabsEurope/adaptationengine/pkg/enactor"
	"github.com/IntelLabsEurope/adaptationengine/pkg/event"
	"github.com/IntelLabsEurope/adaptationengine/pkg/introspection"
	"github.com/IntelLabsEurope/adaptationengine/pkg/journal"
	"github.com/IntelLabsEurope/adaptationengine/pkg/openstack"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/runtime"
	"github.com/IntelLabsEurope/adaptationengine/pkg/registry"
	"github.com/IntelLabsEurope/adaptationengine/pkg/sla"
	"github.com/IntelLabsEurope/adaptationengine/pkg/store"
)

// Engine owns every long-lived collaborator and drives the process
// lifecycle described in spec.md §12.
type Engine struct {
	cfg     *config.Config
	store   *store.Store
	conn    *broker.Conn
	infra   *openstack.Client
	reg     *registry.Registry
	router  *event.Router
	mgr     *plugin.Manager
	httpSrv *http.Server
	logger  *slog.Logger
}

// Build constructs every component and wires them together, but does not
// yet hydrate the registry or start consuming (call Run for that).
func Build(ctx context.Context, cfg *config.Config) (*Engine, error) {
	logger := slog.With("component", "engine")

	st, err := store.Open(ctx, store.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: opening store: %w", err)
	}

	conn, err := broker.Dial(broker.Config{
		URL:                    cfg.MQBroker.URL,
		InboundExchange:        cfg.MQBroker.InboundExchange,
		InboundQueue:           cfg.MQBroker.InboundQueue,
		InboundKey:             cfg.MQBroker.InboundKey,
		ReplyKeyTemplate:       cfg.MQBroker.ReplyKeyTemplate,
		ReplyExchange:          cfg.MQBroker.ReplyExchange,
		OpenStackEventExchange: cfg.MQBroker.OpenStackEventExchange,
		OpenStackEventKey:      cfg.MQBroker.OpenStackEventKey,
		AppFeedbackExchange:    cfg.MQBroker.AppFeedbackExchange,
		AppFeedbackKey:         cfg.MQBroker.AppFeedbackKey,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("engine: dialing broker: %w", err)
	}

	infra, err := openstack.New(ctx, openstack.Credentials{
		AuthURL:    cfg.Infra.AuthURL,
		Username:   cfg.Infra.Username,
		Password:   cfg.Infra.Password,
		DomainName: cfg.Infra.DomainName,
		RegionName: cfg.Infra.RegionName,
	})
	if err != nil {
		conn.Close()
		st.Close()
		return nil, fmt.Errorf("engine: authenticating infra client: %w", err)
	}

	var slaClient registry.SLAClient
	if cfg.SLAAgreements.Enabled {
		slaClient = sla.New(cfg.SLAAgreements.Endpoint, cfg.SLAAgreements.Username, cfg.SLAAgreements.Password)
	}

	reg := registry.New(infra, slaClient, conn)
	reg.SetPersister(store.NewRegistryPersister(st))

	jrnl := journal.New(st, reg)
	reg.SetJournal(jrnl)

	mgr, err := plugin.Discover(ctx, plugin.DiscoverConfig{
		PythonPluginDir:       cfg.Plugins.PythonDir,
		JavaPluginDir:         cfg.Plugins.JavaDir,
		DefaultWeight:         cfg.Plugins.DefaultWeight,
		Weights:               cfg.Plugins.Weights,
		Disabled:              cfg.Plugins.Disabled,
		LaunchEmbeddedRuntime: launchEmbeddedRuntime(cfg.Plugins.EmbeddedRuntime),
	})
	if err != nil {
		infraCloseNoop(infra)
		conn.Close()
		st.Close()
		return nil, fmt.Errorf("engine: discovering plugins: %w", err)
	}

	dist := distributor.New(mgr, cfg.Plugins.RoundTimeout, jrnl)

	enact := enactor.New(infra, reg, publisherFactory{conn}, jrnl, enactor.Config{
		DeveloperRoutingKey: cfg.Event.DeveloperRoutingKey,
		MigratePollAttempts: cfg.OpenstackPoll.MigrateRetries,
		MigratePollInterval: cfg.OpenstackPoll.MigrateInterval,
		PowerPollAttempts:   cfg.OpenstackPoll.PowerStateRetries,
		PowerPollMinWait:    cfg.OpenstackPoll.PowerStateMinWait,
		PowerPollMaxWait:    cfg.OpenstackPoll.PowerStateMaxWait,
		StackUpdatePoll: enactor.StackUpdatePollConfig{
			Attempts: cfg.OpenstackPoll.StackUpdateRetries,
			Interval: cfg.OpenstackPoll.StackUpdateInterval,
		},
	})

	router := event.New(reg, heatHandler{reg}, dispatcherAdapter{dist: dist, reg: reg, rounds: cfg.Plugins.Rounds}, enact, jrnl)

	httpSrv := &http.Server{
		Addr:    cfg.Introspection.ListenAddr,
		Handler: introspection.NewRouter(reg, cfg.Introspection.BannerMessage),
	}

	return &Engine{
		cfg:     cfg,
		store:   st,
		conn:    conn,
		infra:   infra,
		reg:     reg,
		router:  router,
		mgr:     mgr,
		httpSrv: httpSrv,
		logger:  logger,
	}, nil
}

// launchEmbeddedRuntime returns a plugin.DiscoverConfig.LaunchEmbeddedRuntime
// closure over the configured embedded-runtime host: it appends a classpath
// flag built from every discovered plugin jar to the configured command
// line, then starts and dials the host (spec.md §4.D, §5's runtime mutex is
// held inside *runtime.Runtime itself).
func launchEmbeddedRuntime(cfg config.EmbeddedRuntimeConfig) func(ctx context.Context, classpath []string) (*runtime.Runtime, error) {
	return func(ctx context.Context, classpath []string) (*runtime.Runtime, error) {
		args := append([]string{}, cfg.Args...)
		if len(classpath) > 0 {
			args = append(args, "-cp", strings.Join(classpath, ":"))
		}
		return runtime.Start(ctx, runtime.LaunchConfig{
			Command:        cfg.Command,
			Args:           args,
			Addr:           cfg.Addr,
			StartupTimeout: cfg.StartupTimeout,
		})
	}
}

// infraCloseNoop documents that *openstack.Client holds no closable
// connection (gophercloud's ProviderClient is reused per-request, not
// pooled); kept as an explicit no-op so a future Close method has one call
// site to update.
func infraCloseNoop(*openstack.Client) {}

// Run hydrates the registry from infrastructure state, then blocks serving
// the broker consumer loop and the introspection HTTP server until ctx is
// cancelled (spec.md §12 default run mode).
func (e *Engine) Run(ctx context.Context) error {
	if err := e.reg.RecoverState(ctx); err != nil {
		return fmt.Errorf("engine: recovering registry state: %w", err)
	}

	errCh := make(chan error, 2)

	go func() {
		errCh <- e.conn.Consume(ctx, e.router.OnMessage)
	}()

	go func() {
		e.logger.Info("Introspection HTTP server listening", "addr", e.httpSrv.Addr)
		if err := e.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("engine: introspection server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return e.shutdown()
	case err := <-errCh:
		shutdownErr := e.shutdown()
		if err != nil {
			return err
		}
		return shutdownErr
	}
}

// shutdown stops the HTTP server gracefully without aborting in-flight
// enactments (spec.md §5 "graceful shutdown" / §12).
func (e *Engine) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.httpSrv.Shutdown(ctx); err != nil {
		e.logger.Error("Introspection server shutdown", "error", err)
	}
	return nil
}

// Close releases the broker connection and the database pool. Call after
// Run returns.
func (e *Engine) Close() {
	if err := e.mgr.Close(); err != nil {
		e.logger.Error("Closing plugin manager", "error", err)
	}
	e.conn.Close()
	e.store.Close()
}

// heatHandler adapts *registry.Registry onto event.HeatHandler: the router
// hands it the full raw delivery body, still wrapped in the top-level
// {"heat": {...}} envelope.
type heatHandler struct {
	reg *registry.Registry
}

type heatEnvelope struct {
	Heat registry.HeatMessage `json:"heat"`
}

func (h heatHandler) HandleHeat(ctx context.Context, raw json.RawMessage) error {
	var env heatEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("engine: decoding heat envelope: %w", err)
	}
	return h.reg.Message(ctx, env.Heat)
}

// dispatcherAdapter adapts *distributor.Distributor onto event.Dispatcher:
// it resolves the configured round plan, strips blacklisted plugins and
// emptied rounds (distributor.Run's documented precondition), and builds
// the agreement id -> event name map plugins consult (spec.md §4.D/§4.E).
type dispatcherAdapter struct {
	dist   *distributor.Distributor
	reg    *registry.Registry
	rounds [][]string
}

func (d dispatcherAdapter) Dispatch(ctx context.Context, ev *event.Event, allowed []action.Kind) ([]*action.Action, error) {
	entry := d.reg.GetResource(ev.Name, ev.StackID)
	rounds := filterRounds(d.rounds, entry)
	agreementMap := agreementEventMap(d.reg.GetAgreementMap())

	carry, _, _ := d.dist.Run(ctx, ev.Name, ev.StackID, rounds, allowed, agreementMap, nil)
	return carry, nil
}

// filterRounds removes blacklisted plugin names from each configured round
// and drops any round left empty, satisfying distributor.Run's precondition.
func filterRounds(rounds [][]string, entry *registry.Entry) [][]string {
	out := make([][]string, 0, len(rounds))
	for _, round := range rounds {
		kept := make([]string, 0, len(round))
		for _, name := range round {
			if entry.IsPluginBlacklisted(name) {
				continue
			}
			kept = append(kept, name)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

func agreementEventMap(refs map[string]registry.AgreementRef) map[string]string {
	out := make(map[string]string, len(refs))
	for agreementID, ref := range refs {
		out[agreementID] = ref.EventName
	}
	return out
}

// publisherFactory adapts *broker.Conn onto enactor.PublisherFactory: Go
// requires the adapted method's return type to be the exact interface, so
// *broker.Conn.OpenPublisher (which returns the concrete *broker.Publisher)
// cannot satisfy enactor.PublisherFactory without this wrapper.
type publisherFactory struct {
	conn *broker.Conn
}

func (f publisherFactory) OpenPublisher(ctx context.Context) (enactor.Publisher, error) {
	return f.conn.OpenPublisher(ctx)
}
