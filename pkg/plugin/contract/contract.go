// Package contract defines the plugin invocation boundary shared by every
// plugin transport (subprocess-hosted Python plugins, embedded-runtime
// plugins) so the Plugin Manager can treat them uniformly (spec.md §4.D).
package contract

import (
	"context"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
)

// InvokeInput is what setup()/run() receives in the original design:
// the event's name and stack, the carried-forward input action list, and
// the current agreement map (spec.md §4.D).
type InvokeInput struct {
	EventName    string
	StackID      string
	InputActions []*action.Action
	AgreementMap map[string]string
}

// InvokeOutput is one plugin invocation's result: its proposed actions and
// its configured weight.
type InvokeOutput struct {
	Actions []*action.Action
	Weight  float64
}

// Invoker is one fresh instance of a plugin, produced per invocation by a
// Generator. A plugin that errors must not produce a partial InvokeOutput —
// the Distributor treats an error exactly like a timeout: the plugin's slot
// stays empty.
type Invoker interface {
	Invoke(ctx context.Context, in InvokeInput) (InvokeOutput, error)
}

// Generator produces a fresh Invoker per invocation, preserving the
// "new instance per call, not pooled" plugin model recovered from
// original_source/ (spec.md §11).
type Generator func() (Invoker, error)
