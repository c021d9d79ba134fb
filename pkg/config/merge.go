package config

import "dario.cat/mergo"

// mergeEngineConfig overlays user on top of builtin: disk-supplied
// non-empty values win, matching spec.md §6's Config contract and the
// teacher's mergo.WithOverride usage in pkg/config/loader.go.
func mergeEngineConfig(builtin, user EngineYAMLConfig) (EngineYAMLConfig, error) {
	merged := builtin
	if err := mergo.Merge(&merged, user, mergo.WithOverride); err != nil {
		return EngineYAMLConfig{}, err
	}
	return merged, nil
}
