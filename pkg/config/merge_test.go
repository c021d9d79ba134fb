package config

import "testing"

func TestMergeEngineConfig_UserOverridesBuiltin(t *testing.T) {
	builtin := defaultEngineConfig()
	user := EngineYAMLConfig{
		Database: &DatabaseConfig{
			Host: "db.internal",
			User: "engine",
		},
	}

	merged, err := mergeEngineConfig(builtin, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.Database.Host != "db.internal" {
		t.Errorf("Host = %q, want db.internal", merged.Database.Host)
	}
	if merged.Database.User != "engine" {
		t.Errorf("User = %q, want engine", merged.Database.User)
	}
	// fields the user left zero keep the built-in default.
	if merged.Database.Port != 5432 {
		t.Errorf("Port = %d, want 5432 (builtin default preserved)", merged.Database.Port)
	}
	if merged.Database.SSLMode != "disable" {
		t.Errorf("SSLMode = %q, want disable (builtin default preserved)", merged.Database.SSLMode)
	}
}

func TestMergeEngineConfig_UserLeavesGroupNilKeepsBuiltin(t *testing.T) {
	builtin := defaultEngineConfig()
	user := EngineYAMLConfig{}

	merged, err := mergeEngineConfig(builtin, user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.MQBroker.InboundQueue != "adaptationengine.events" {
		t.Errorf("InboundQueue = %q, want builtin default", merged.MQBroker.InboundQueue)
	}
}
