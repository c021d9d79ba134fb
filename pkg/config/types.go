package config

import "time"

// EngineYAMLConfig mirrors adaptationengine.yaml.
type EngineYAMLConfig struct {
	Database       *DatabaseConfig       `yaml:"database"`
	MQBroker       *MQBrokerConfig       `yaml:"mq_broker"`
	Plugins        *PluginsConfig        `yaml:"plugins"`
	OpenstackPoll  *OpenstackPollConfig  `yaml:"openstack_polling"`
	Event          *EventConfig          `yaml:"event"`
	AppFeedback    *AppFeedbackConfig    `yaml:"app_feedback"`
	SLAAgreements  *SLAAgreementsConfig  `yaml:"sla_agreements"`
	Introspection  *IntrospectionConfig  `yaml:"introspection"`
}

// InfraYAMLConfig mirrors infra.yaml: the infrastructure client's own
// credentials, kept in a separate file per spec.md §6's Config contract.
type InfraYAMLConfig struct {
	AuthURL    string `yaml:"auth_url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DomainName string `yaml:"domain_name"`
	RegionName string `yaml:"region_name"`
}

// DatabaseConfig configures the Postgres connection (pkg/store).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// MQBrokerConfig configures the AMQP connection (pkg/broker).
type MQBrokerConfig struct {
	URL                    string `yaml:"url"`
	InboundExchange        string `yaml:"inbound_exchange"`
	InboundQueue           string `yaml:"inbound_queue"`
	InboundKey             string `yaml:"inbound_key"`
	ReplyKeyTemplate       string `yaml:"reply_key_template"`
	ReplyExchange          string `yaml:"reply_exchange"`
	OpenStackEventExchange string `yaml:"openstack_event_exchange"`
	OpenStackEventKey      string `yaml:"openstack_event_key"`
	AppFeedbackExchange    string `yaml:"app_feedback_exchange"`
	AppFeedbackKey         string `yaml:"app_feedback_key"`
}

// PluginsConfig configures plugin discovery and round timing.
type PluginsConfig struct {
	PythonDir     string             `yaml:"python_dir"`
	JavaDir       string             `yaml:"java_dir"`
	DefaultWeight float64            `yaml:"default_weight"`
	Weights       map[string]float64 `yaml:"weights"`
	RoundTimeout  time.Duration      `yaml:"round_timeout"`
	Rounds        [][]string         `yaml:"rounds"`

	// Disabled lists plugin names to skip entirely at discovery time,
	// distinct from weight configuration: a disabled plugin is never
	// registered, so it never appears in a round's results and has no
	// effect on the weight normalization of the plugins that do run.
	Disabled []string `yaml:"disabled"`

	// EmbeddedRuntime configures the shared embedded-runtime host launched
	// once per process when at least one embedded-runtime plugin is
	// discovered under JavaDir (spec.md §4.D).
	EmbeddedRuntime EmbeddedRuntimeConfig `yaml:"embedded_runtime"`
}

// EmbeddedRuntimeConfig configures the loopback-gRPC embedded plugin host
// (pkg/plugin/runtime).
type EmbeddedRuntimeConfig struct {
	Command        string        `yaml:"command"`
	Args           []string      `yaml:"args"`
	Addr           string        `yaml:"addr"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
}

// OpenstackPollConfig bounds the Enactor's poll loops (spec.md §4.G,
// recovered cadence from enactor.py per SPEC_FULL §11).
type OpenstackPollConfig struct {
	MigrateRetries       int           `yaml:"migrate_retries"`
	MigrateInterval      time.Duration `yaml:"migrate_interval"`
	StackUpdateRetries   int           `yaml:"stack_update_retries"`
	StackUpdateInterval  time.Duration `yaml:"stack_update_interval"`
	PowerStateRetries    int           `yaml:"power_state_retries"`
	PowerStateMinWait    time.Duration `yaml:"power_state_min_wait"`
	PowerStateMaxWait    time.Duration `yaml:"power_state_max_wait"`
}

// EventConfig configures the inbound event pipeline.
type EventConfig struct {
	DeveloperRoutingKey string `yaml:"developer_routing_key"`
}

// AppFeedbackConfig configures the app-feedback notification channel.
type AppFeedbackConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SLAAgreementsConfig configures the optional external SLA API client.
type SLAAgreementsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IntrospectionConfig configures the read-only HTTP surface.
type IntrospectionConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	BannerMessage  string `yaml:"banner_message"`
}

// Config is the fully merged, validated configuration ready for use.
type Config struct {
	Database      DatabaseConfig
	MQBroker      MQBrokerConfig
	Plugins       PluginsConfig
	OpenstackPoll OpenstackPollConfig
	Event         EventConfig
	AppFeedback   AppFeedbackConfig
	SLAAgreements SLAAgreementsConfig
	Introspection IntrospectionConfig
	Infra         InfraYAMLConfig
}
