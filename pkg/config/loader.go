package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, expands, parses, merges, and validates the engine and infra
// configuration files, returning a ready-to-use Config (spec.md §6).
func Load(engineFile, infraFile string) (*Config, error) {
	engine, err := loadEngineFile(engineFile)
	if err != nil {
		return nil, err
	}

	infra, err := loadInfraFile(infraFile)
	if err != nil {
		return nil, err
	}

	cfg := flatten(engine, infra)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return cfg, nil
}

func loadEngineFile(path string) (EngineYAMLConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return EngineYAMLConfig{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrConfigNotFound, err))
	}

	var user EngineYAMLConfig
	if err := yaml.Unmarshal(ExpandEnv(raw), &user); err != nil {
		return EngineYAMLConfig{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	merged, err := mergeEngineConfig(defaultEngineConfig(), user)
	if err != nil {
		return EngineYAMLConfig{}, NewLoadError(path, err)
	}
	return merged, nil
}

func loadInfraFile(path string) (InfraYAMLConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return InfraYAMLConfig{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrConfigNotFound, err))
	}

	var infra InfraYAMLConfig
	if err := yaml.Unmarshal(ExpandEnv(raw), &infra); err != nil {
		return InfraYAMLConfig{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}
	return infra, nil
}

func flatten(engine EngineYAMLConfig, infra InfraYAMLConfig) *Config {
	cfg := &Config{Infra: infra}
	if engine.Database != nil {
		cfg.Database = *engine.Database
	}
	if engine.MQBroker != nil {
		cfg.MQBroker = *engine.MQBroker
	}
	if engine.Plugins != nil {
		cfg.Plugins = *engine.Plugins
	}
	if engine.OpenstackPoll != nil {
		cfg.OpenstackPoll = *engine.OpenstackPoll
	}
	if engine.Event != nil {
		cfg.Event = *engine.Event
	}
	if engine.AppFeedback != nil {
		cfg.AppFeedback = *engine.AppFeedback
	}
	if engine.SLAAgreements != nil {
		cfg.SLAAgreements = *engine.SLAAgreements
	}
	if engine.Introspection != nil {
		cfg.Introspection = *engine.Introspection
	}
	return cfg
}
