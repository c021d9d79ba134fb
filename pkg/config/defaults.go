package config

import "time"

// defaultEngineConfig is the built-in store merged under disk-supplied
// values (disk wins for non-empty fields), mirroring the teacher's
// built-in-then-user-override merge in pkg/config/loader.go.
func defaultEngineConfig() EngineYAMLConfig {
	return EngineYAMLConfig{
		Database: &DatabaseConfig{
			Port:    5432,
			SSLMode: "disable",
		},
		MQBroker: &MQBrokerConfig{
			InboundExchange:        "adaptationengine",
			InboundQueue:           "adaptationengine.events",
			InboundKey:             "event.#",
			ReplyKeyTemplate:       "heat_resource.reply.{resource_id}",
			ReplyExchange:          "adaptationengine",
			OpenStackEventExchange: "openstack_event",
			OpenStackEventKey:      "openstack_event",
			AppFeedbackExchange:    "app_feedback",
			AppFeedbackKey:         "app_feedback",
		},
		Plugins: &PluginsConfig{
			PythonDir:     "./deploy/plugins/python",
			JavaDir:       "./deploy/plugins/java",
			DefaultWeight: 1.0,
			RoundTimeout:  30 * time.Second,
			EmbeddedRuntime: EmbeddedRuntimeConfig{
				Command:        "java",
				Addr:           "127.0.0.1:7551",
				StartupTimeout: 10 * time.Second,
			},
		},
		OpenstackPoll: &OpenstackPollConfig{
			MigrateRetries:      20,
			MigrateInterval:     10 * time.Second,
			StackUpdateRetries:  20,
			StackUpdateInterval: 10 * time.Second,
			PowerStateRetries:   20,
			PowerStateMinWait:   5 * time.Second,
			PowerStateMaxWait:   10 * time.Second,
		},
		Event: &EventConfig{
			DeveloperRoutingKey: "developer",
		},
		AppFeedback: &AppFeedbackConfig{
			Enabled: true,
		},
		SLAAgreements: &SLAAgreementsConfig{
			Enabled: false,
		},
		Introspection: &IntrospectionConfig{
			ListenAddr:    ":8090",
			BannerMessage: "Adaptation Engine",
		},
	}
}
