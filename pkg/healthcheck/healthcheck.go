// Package healthcheck implements the --healthcheck CLI path: a one-shot
// broker and database reachability probe (spec.md §12), used by container
// orchestrators as a liveness check without standing up the full pipeline.
package healthcheck

import (
	"context"
	"fmt"
)

// BrokerProbe reports whether the broker connection is reachable.
type BrokerProbe interface {
	Healthy() bool
}

// StoreProbe reports whether the database connection is reachable.
type StoreProbe interface {
	Healthy(ctx context.Context) bool
}

// Run checks both dependencies and returns a non-nil error describing the
// first failure, or nil if both are healthy.
func Run(ctx context.Context, broker BrokerProbe, store StoreProbe) error {
	if !broker.Healthy() {
		return fmt.Errorf("healthcheck: broker connection is not healthy")
	}
	if !store.Healthy(ctx) {
		return fmt.Errorf("healthcheck: database connection is not healthy")
	}
	return nil
}
