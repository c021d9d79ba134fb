// Package runtime models the embedded-runtime plugin host: an external,
// non-reentrant process (the Java/JVM-hosted plugin runtime in the system
// this engine replaces) that this engine talks to over a loopback gRPC
// connection, with every call serialized through a single process-wide
// mutex (spec.md §4.D, §5, §9 "Embedded runtime serialization").
//
// The upstream runtime has no protoc-generated Go bindings in this
// environment, so the wire contract below is carried over gRPC using a
// JSON codec rather than protobuf-generated message types; see
// DESIGN.md for the rationale.
package runtime

import "github.com/IntelLabsEurope/adaptationengine/pkg/action"

// InvokeRequest is sent to the embedded runtime for one plugin invocation.
type InvokeRequest struct {
	Plugin       string         `json:"plugin"`
	EventName    string         `json:"event_name"`
	StackID      string         `json:"stack_id"`
	InputActions []action.Dict  `json:"input_actions"`
	AgreementMap map[string]string `json:"agreement_map"`
}

// InvokeResponse is the embedded runtime's reply.
type InvokeResponse struct {
	Actions []action.Dict `json:"actions"`
	Weight  float64       `json:"weight"`
}
