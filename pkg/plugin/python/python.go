// Package python invokes a directory-discovered Python plugin as a
// subprocess, exchanging a JSON request/response pair over its stdin/stdout,
// in the manner of the teacher's os/exec-based CommandTransport
// (pkg/mcp/transport.go) adapted from a long-lived MCP session to a single
// request/response call per invocation.
package python

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/contract"
)

// Interpreter is the executable used to run discovered plugin scripts.
// Overridable for tests.
var Interpreter = "python3"

// wireRequest/wireResponse mirror the JSON contract a plugin script reads
// from stdin and writes to stdout.
type wireRequest struct {
	EventName    string            `json:"event_name"`
	StackID      string            `json:"stack_id"`
	InputActions []action.Dict     `json:"input_actions"`
	AgreementMap map[string]string `json:"agreement_map"`
}

type wireResponse struct {
	Actions []action.Dict `json:"actions"`
	Weight  float64       `json:"weight"`
}

// plugin is one fresh instance of a subprocess-backed plugin.
type plugin struct {
	name       string
	scriptPath string
}

// NewGenerator returns a contract.Generator that launches name's script at
// scriptPath fresh for every invocation (spec.md §4.D: "for each direct
// subdirectory of pythonPluginDir, if <name>/<name>.py exists, register a
// generator producing a new PythonPlugin per invocation").
func NewGenerator(name, scriptPath string) contract.Generator {
	return func() (contract.Invoker, error) {
		return &plugin{name: name, scriptPath: scriptPath}, nil
	}
}

func (p *plugin) Invoke(ctx context.Context, in contract.InvokeInput) (contract.InvokeOutput, error) {
	req := wireRequest{
		EventName:    in.EventName,
		StackID:      in.StackID,
		AgreementMap: in.AgreementMap,
	}
	for _, a := range in.InputActions {
		req.InputActions = append(req.InputActions, a.ToDict())
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return contract.InvokeOutput{}, fmt.Errorf("python plugin %s: encoding request: %w", p.name, err)
	}

	cmd := exec.CommandContext(ctx, Interpreter, p.scriptPath)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return contract.InvokeOutput{}, fmt.Errorf("python plugin %s: %w: %s", p.name, err, stderr.String())
	}

	var resp wireResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return contract.InvokeOutput{}, fmt.Errorf("python plugin %s: decoding response: %w", p.name, err)
	}

	out := contract.InvokeOutput{Weight: resp.Weight}
	for _, d := range resp.Actions {
		a, err := action.FromDict(d)
		if err != nil {
			return contract.InvokeOutput{}, fmt.Errorf("python plugin %s: decoding action: %w", p.name, err)
		}
		out.Actions = append(out.Actions, a)
	}
	return out, nil
}
