package workflow

import "showrunner/internal/store"

// ConfigureStages builds the pipeline and publish lanes from the given
// handlers. Call it before Start; reconfiguring a running manager is not
// supported.
func (m *Manager) ConfigureStages(set StageSet) {
	pipeline := &laneState{name: LanePipeline, workers: laneWorkers(m.cfg.Workers.Pipeline)}
	if set.ScriptGenerator != nil {
		pipeline.stages = append(pipeline.stages, pipelineStage{
			name:      string(store.KindScriptGeneration),
			kind:      store.KindScriptGeneration,
			handler:   set.ScriptGenerator,
			successor: store.KindMediaGeneration,
		})
	}
	if set.MediaGenerator != nil {
		pipeline.stages = append(pipeline.stages, pipelineStage{
			name:      string(store.KindMediaGeneration),
			kind:      store.KindMediaGeneration,
			handler:   set.MediaGenerator,
			successor: store.KindRender,
		})
	}
	if set.Renderer != nil {
		pipeline.stages = append(pipeline.stages, pipelineStage{
			name:    string(store.KindRender),
			kind:    store.KindRender,
			handler: set.Renderer,
		})
	}

	publish := &laneState{name: LanePublish, workers: laneWorkers(m.cfg.Workers.Publish)}
	if set.Publisher != nil {
		publish.stages = append(publish.stages, pipelineStage{
			name:    string(store.KindPublish),
			kind:    store.KindPublish,
			handler: set.Publisher,
		})
	}

	lanes := make([]*laneState, 0, 2)
	for _, lane := range []*laneState{pipeline, publish} {
		if len(lane.stages) == 0 {
			continue
		}
		lane.finalize()
		lane.logger = m.laneLogger(lane)
		lanes = append(lanes, lane)
	}
	m.lanes = lanes
}

func laneWorkers(configured int) int {
	if configured < 1 {
		return 1
	}
	return configured
}
