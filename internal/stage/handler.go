package stage

import (
	"context"

	"showrunner/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare applies cheap precondition checks and state transitions before the
// heavy work starts; Execute does the work. Both receive the claimed queue
// job and load their own entities through the store, so retried jobs always
// observe the freshest row state.
type Handler interface {
	Prepare(context.Context, *store.Job) error
	Execute(context.Context, *store.Job) error
	HealthCheck(context.Context) Health
}
