package plugin

import (
	"context"
	"fmt"

	"github.com/IntelLabsEurope/adaptationengine/pkg/action"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/contract"
	"github.com/IntelLabsEurope/adaptationengine/pkg/plugin/runtime"
)

// embeddedInvoker adapts the shared embedded Runtime into a contract.Invoker
// for one named plugin, converting to and from the runtime's wire dicts.
type embeddedInvoker struct {
	name string
	rt   *runtime.Runtime
}

func (e *embeddedInvoker) Invoke(ctx context.Context, in contract.InvokeInput) (contract.InvokeOutput, error) {
	req := &runtime.InvokeRequest{
		Plugin:       e.name,
		EventName:    in.EventName,
		StackID:      in.StackID,
		AgreementMap: in.AgreementMap,
	}
	for _, a := range in.InputActions {
		req.InputActions = append(req.InputActions, a.ToDict())
	}

	resp, err := e.rt.Invoke(ctx, req)
	if err != nil {
		return contract.InvokeOutput{}, fmt.Errorf("embedded plugin %s: %w", e.name, err)
	}

	out := contract.InvokeOutput{Weight: resp.Weight}
	for _, d := range resp.Actions {
		a, err := action.FromDict(d)
		if err != nil {
			return contract.InvokeOutput{}, fmt.Errorf("embedded plugin %s: decoding action: %w", e.name, err)
		}
		out.Actions = append(out.Actions, a)
	}
	return out, nil
}
