package workflow

import (
	"log/slog"

	"showrunner/internal/stage"
	"showrunner/internal/store"
)

// Lane names, used for worker logging and job context.
const (
	LanePipeline = "pipeline"
	LanePublish  = "publish"
)

// StageSet bundles the stage handlers the manager schedules. Handlers left
// nil are not registered; their jobs stay pending until a process that does
// configure them claims the queue.
type StageSet struct {
	ScriptGenerator stage.Handler
	MediaGenerator  stage.Handler
	Renderer        stage.Handler
	Publisher       stage.Handler
}

// pipelineStage binds one job kind to its handler and to the job kind that
// follows it on success. An empty successor ends the chain.
type pipelineStage struct {
	name      string
	kind      store.JobKind
	handler   stage.Handler
	successor store.JobKind
}

// laneState groups the stages one set of workers is allowed to claim.
type laneState struct {
	name    string
	workers int
	stages  []pipelineStage

	kinds       []store.JobKind
	stageByKind map[store.JobKind]pipelineStage
	logger      *slog.Logger
}

// finalize derives the claim kinds and the kind-to-stage index from the
// registered stages.
func (l *laneState) finalize() {
	l.kinds = make([]store.JobKind, 0, len(l.stages))
	l.stageByKind = make(map[store.JobKind]pipelineStage, len(l.stages))
	for _, stg := range l.stages {
		l.kinds = append(l.kinds, stg.kind)
		l.stageByKind[stg.kind] = stg
	}
}

func (l *laneState) stageFor(kind store.JobKind) (pipelineStage, bool) {
	stg, ok := l.stageByKind[kind]
	return stg, ok
}
