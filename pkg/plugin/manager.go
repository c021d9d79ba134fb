// Package plugin implements the Plugin Manager (spec.md §4.D): discovery of
// directory-hosted plugins, weighting, and per-invocation instantiation
// across the two supported transports (Python subprocess, embedded runtime).
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/contract"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/python"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/runtime"
)

// Manager holds every discovered plugin's generator and weight.
type Manager struct {
	generators    map[string]contract.Generator
	weights       map[string]float64
	defaultWeight float64
	rt            *runtime.Runtime
	logger        *slog.Logger
}

// DiscoverConfig configures plugin discovery (spec.md §4.D).
type DiscoverConfig struct {
	PythonPluginDir string
	JavaPluginDir   string
	DefaultWeight   float64
	Weights         map[string]float64
	// Disabled lists plugin names to skip at discovery — distinct from
	// weight configuration, a disabled plugin is never registered and so
	// never perturbs the weight normalization of the plugins that run.
	Disabled []string
	// LaunchEmbeddedRuntime starts the shared embedded-runtime host when at
	// least one embedded-runtime plugin is discovered.
	LaunchEmbeddedRuntime func(ctx context.Context, classpath []string) (*runtime.Runtime, error)
}

// Discover walks pythonPluginDir and javaPluginDir, registering a generator
// per discovered plugin directory.
func Discover(ctx context.Context, cfg DiscoverConfig) (*Manager, error) {
	m := &Manager{
		generators:    make(map[string]contract.Generator),
		weights:       make(map[string]float64),
		defaultWeight: cfg.DefaultWeight,
		logger:        slog.With("component", "plugin_manager"),
	}
	for name, w := range cfg.Weights {
		m.weights[name] = w
	}

	disabled := make(map[string]struct{}, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		disabled[name] = struct{}{}
	}

	if cfg.PythonPluginDir != "" {
		if err := m.discoverPython(cfg.PythonPluginDir, disabled); err != nil {
			return nil, err
		}
	}

	var classpath []string
	if cfg.JavaPluginDir != "" {
		jars, names, err := m.discoverEmbedded(cfg.JavaPluginDir, disabled)
		if err != nil {
			return nil, err
		}
		classpath = jars
		if len(names) > 0 && cfg.LaunchEmbeddedRuntime != nil {
			rt, err := cfg.LaunchEmbeddedRuntime(ctx, classpath)
			if err != nil {
				return nil, fmt.Errorf("plugin manager: starting embedded runtime: %w", err)
			}
			m.rt = rt
			for _, name := range names {
				m.generators[name] = m.embeddedGenerator(name)
			}
		}
	}

	return m, nil
}

func (m *Manager) discoverPython(dir string, disabled map[string]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("plugin manager: reading python plugin dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, skip := disabled[name]; skip {
			m.logger.Info("Plugin disabled; skipping discovery", "plugin", name)
			continue
		}
		script := filepath.Join(dir, name, name+".py")
		if _, err := os.Stat(script); err != nil {
			continue
		}
		m.generators[name] = python.NewGenerator(name, script)
	}
	return nil
}

// discoverEmbedded returns the combined classpath and the plugin names
// found under javaPluginDir, excluding anything in disabled.
func (m *Manager) discoverEmbedded(dir string, disabled map[string]struct{}) ([]string, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("plugin manager: reading java plugin dir %s: %w", dir, err)
	}

	var classpath, names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, skip := disabled[name]; skip {
			m.logger.Info("Plugin disabled; skipping discovery", "plugin", name)
			continue
		}
		pluginDir := filepath.Join(dir, name)
		jar := filepath.Join(pluginDir, name+".jar")
		if _, err := os.Stat(jar); err != nil {
			continue
		}
		names = append(names, name)

		jars, err := filepath.Glob(filepath.Join(pluginDir, "*.jar"))
		if err != nil {
			return nil, nil, fmt.Errorf("plugin manager: globbing jars in %s: %w", pluginDir, err)
		}
		classpath = append(classpath, jars...)
	}
	sort.Strings(names)
	return classpath, names, nil
}

func (m *Manager) embeddedGenerator(name string) contract.Generator {
	return func() (contract.Invoker, error) {
		return &embeddedInvoker{name: name, rt: m.rt}, nil
	}
}

// NewWithGenerators builds a Manager directly from a generator set, for
// tests and for wiring plugins that aren't discovered from a directory.
func NewWithGenerators(generators map[string]contract.Generator, weights map[string]float64, defaultWeight float64) *Manager {
	m := &Manager{
		generators:    make(map[string]contract.Generator, len(generators)),
		weights:       make(map[string]float64, len(weights)),
		defaultWeight: defaultWeight,
		logger:        slog.With("component", "plugin_manager"),
	}
	for name, gen := range generators {
		m.generators[name] = gen
	}
	for name, w := range weights {
		m.weights[name] = w
	}
	return m
}

// Weight returns the configured weight for a plugin, falling back to the
// manager's default weight.
func (m *Manager) Weight(name string) float64 {
	if w, ok := m.weights[name]; ok {
		return w
	}
	return m.defaultWeight
}

// Handle pairs a plugin name with its generator, for one round.
type Handle struct {
	Name      string
	Generator contract.Generator
}

// Get returns a fresh-instance handle for every requested name, preserving
// order. A name with no registered generator is logged and skipped
// (spec.md §4.D).
func (m *Manager) Get(names []string) []Handle {
	out := make([]Handle, 0, len(names))
	for _, name := range names {
		gen, ok := m.generators[name]
		if !ok {
			m.logger.Warn("Unknown plugin requested; skipping", "plugin", name)
			continue
		}
		out = append(out, Handle{Name: name, Generator: gen})
	}
	return out
}

// Close releases the embedded runtime connection, if one was started.
func (m *Manager) Close() error {
	if m.rt != nil {
		return m.rt.Close()
	}
	return nil
}
