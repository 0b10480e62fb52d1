package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"showrunner/internal/notifications"
	"showrunner/internal/services"
	"showrunner/internal/store"
	"showrunner/internal/testsupport"
)

func TestProcessJobCompletesAndEnqueuesSuccessor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Morning Sparks")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	script := &stubHandler{name: string(store.KindScriptGeneration)}
	m := newTestManager(t, cfg, st, nil, StageSet{ScriptGenerator: script})
	lane := laneNamed(t, m, LanePipeline)

	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)

	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	prepared, executed := script.calls()
	if prepared != 1 || executed != 1 {
		t.Fatalf("expected one prepare and one execute, got %d/%d", prepared, executed)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobCompleted {
		t.Fatalf("expected completed job, got %s", stored.Status)
	}

	successor, err := st.FindOpenJob(ctx, store.KindMediaGeneration, episode.ID, "")
	if err != nil {
		t.Fatalf("FindOpenJob: %v", err)
	}
	if successor == nil {
		t.Fatal("expected a media generation job after script success")
	}
	if successor.MaxAttempts != cfg.Queue.MaxAttempts {
		t.Fatalf("successor max attempts = %d, want %d", successor.MaxAttempts, cfg.Queue.MaxAttempts)
	}
}

func TestPipelineChainsThroughRender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Chained")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	script := &stubHandler{name: string(store.KindScriptGeneration)}
	media := &stubHandler{name: string(store.KindMediaGeneration)}
	render := &stubHandler{name: string(store.KindRender)}
	m := newTestManager(t, cfg, st, nil, StageSet{ScriptGenerator: script, MediaGenerator: media, Renderer: render})

	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	drain(t, m)

	for _, h := range []*stubHandler{script, media, render} {
		if _, executed := h.calls(); executed != 1 {
			t.Fatalf("stage %s executed %d times, want 1", h.name, executed)
		}
	}

	jobs, err := st.ListJobsForEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("ListJobsForEpisode: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs for the episode, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Status != store.JobCompleted {
			t.Fatalf("job %d (%s) status = %s, want completed", job.ID, job.Kind, job.Status)
		}
	}

	// Auto-post is off, so render success must not create publish work.
	posts, err := st.ListPostsForEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("ListPostsForEpisode: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}

func TestRenderSuccessFansOutWhenAutoPostEnabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Auto Posted")
	series.AutoPostEnabled = true
	if err := st.UpdateSeries(ctx, series); err != nil {
		t.Fatalf("UpdateSeries: %v", err)
	}
	account := connectedAccount(t, st, series.WorkspaceID, "tiktok")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	render := &stubHandler{name: string(store.KindRender)}
	m := newTestManager(t, cfg, st, nil, StageSet{Renderer: render})
	lane := laneNamed(t, m, LanePipeline)

	if _, err := st.EnqueueJob(ctx, store.KindRender, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	posts, err := st.ListPostsForEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("ListPostsForEpisode: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected one post, got %d", len(posts))
	}
	if posts[0].AccountID != account.ID || posts[0].Status != store.PostPending {
		t.Fatalf("unexpected post %+v", posts[0])
	}

	publishJob, err := st.FindOpenJob(ctx, store.KindPublish, episode.ID, posts[0].ID)
	if err != nil {
		t.Fatalf("FindOpenJob: %v", err)
	}
	if publishJob == nil {
		t.Fatal("expected a publish job for the fanned-out post")
	}

	// Publishing lives on the post records; the episode row is untouched.
	stored, err := st.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if stored.Status != store.EpisodeScheduled {
		t.Fatalf("episode status = %s, want untouched scheduled", stored.Status)
	}
}

func TestRetryableFailureReschedulesJobAndMarksEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	series := testsupport.NewSeries(t, st, "Flaky Upstream")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	script := &stubHandler{
		name: string(store.KindScriptGeneration),
		executeErr: services.Wrap(
			services.ErrTransient, string(store.KindScriptGeneration), "call model",
			"Script model request failed", nil),
	}
	m := newTestManager(t, cfg, st, notifier, StageSet{ScriptGenerator: script})
	lane := laneNamed(t, m, LanePipeline)

	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobPending {
		t.Fatalf("job status = %s, want pending for retry", stored.Status)
	}
	if stored.Attempt != 1 {
		t.Fatalf("job attempt = %d, want 1", stored.Attempt)
	}
	if !stored.RunAt.After(time.Now().UTC()) {
		t.Fatal("expected the retry to be scheduled with backoff")
	}
	if !strings.Contains(stored.LastError, "Script model request failed") {
		t.Fatalf("job last error = %q", stored.LastError)
	}

	failed, err := st.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if failed.Status != store.EpisodeFailed {
		t.Fatalf("episode status = %s, want failed", failed.Status)
	}
	if failed.ErrorInfo == nil || failed.ErrorInfo.Step != string(store.KindScriptGeneration) {
		t.Fatalf("episode error info = %+v", failed.ErrorInfo)
	}
	if !strings.Contains(failed.ErrorInfo.Message, "Script model request failed") {
		t.Fatalf("episode error message = %q", failed.ErrorInfo.Message)
	}

	// Retries are routine; only parked jobs notify.
	if events, _ := notifier.recorded(); len(events) != 0 {
		t.Fatalf("expected no notifications, got %v", events)
	}
}

func TestValidationFailureParksJobAndNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	series := testsupport.NewSeries(t, st, "Broken Wizard")
	episode := testsupport.NewEpisode(t, st, series.ID, 3, time.Now().UTC())

	script := &stubHandler{
		name: string(store.KindScriptGeneration),
		executeErr: services.Wrap(
			services.ErrValidation, string(store.KindScriptGeneration), "load preferences",
			"Series is missing script preferences", nil),
	}
	m := newTestManager(t, cfg, st, notifier, StageSet{ScriptGenerator: script})
	lane := laneNamed(t, m, LanePipeline)

	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobFailed {
		t.Fatalf("job status = %s, want failed", stored.Status)
	}

	failed, err := st.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if failed.Status != store.EpisodeFailed {
		t.Fatalf("episode status = %s, want failed", failed.Status)
	}

	events, payloads := notifier.recorded()
	if len(events) != 1 || events[0] != notifications.EventEpisodeFailed {
		t.Fatalf("expected one episode failure notification, got %v", events)
	}
	payload := payloads[0]
	if payload["seriesName"] != series.Name || payload["step"] != string(store.KindScriptGeneration) {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestConflictFailureLeavesEpisodeAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	series := testsupport.NewSeries(t, st, "Raced")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())
	episode.Status = store.EpisodeReadyForReview
	if err := st.UpdateEpisode(ctx, episode); err != nil {
		t.Fatalf("UpdateEpisode: %v", err)
	}

	script := &stubHandler{
		name: string(store.KindScriptGeneration),
		prepareErr: services.Wrap(
			services.ErrConflict, string(store.KindScriptGeneration), "check preconditions",
			"Episode cannot start script generation from status \"ready_for_review\"", nil),
	}
	m := newTestManager(t, cfg, st, notifier, StageSet{ScriptGenerator: script})
	lane := laneNamed(t, m, LanePipeline)

	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobFailed {
		t.Fatalf("job status = %s, want parked", stored.Status)
	}

	untouched, err := st.GetEpisode(ctx, episode.ID)
	if err != nil {
		t.Fatalf("GetEpisode: %v", err)
	}
	if untouched.Status != store.EpisodeReadyForReview || untouched.ErrorInfo != nil {
		t.Fatalf("conflict must not rewrite the episode, got %s %+v", untouched.Status, untouched.ErrorInfo)
	}
	if events, _ := notifier.recorded(); len(events) != 0 {
		t.Fatalf("expected no notifications, got %v", events)
	}
}

func TestPublishParkMarksPostFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	series := testsupport.NewSeries(t, st, "Unstored")
	episode := testsupport.NewEpisode(t, st, series.ID, 2, time.Now().UTC())
	account := connectedAccount(t, st, series.WorkspaceID, "tiktok")
	post := &store.Post{EpisodeID: episode.ID, AccountID: account.ID, Status: store.PostPending}
	if err := st.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	publisher := &stubHandler{
		name: string(store.KindPublish),
		executeErr: services.Wrap(
			services.ErrConfiguration, string(store.KindPublish), "resolve video",
			"Video URL not available (storage not configured or placeholder)", nil),
	}
	m := newTestManager(t, cfg, st, notifier, StageSet{Publisher: publisher})
	lane := laneNamed(t, m, LanePublish)

	if _, err := st.EnqueueJob(ctx, store.KindPublish, episode.ID, post.ID, time.Now().UTC(), 1); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobFailed {
		t.Fatalf("job status = %s, want parked", stored.Status)
	}

	failed, err := st.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if failed.Status != store.PostFailed {
		t.Fatalf("post status = %s, want failed", failed.Status)
	}
	if failed.ErrorInfo == nil || !strings.Contains(failed.ErrorInfo.Message, "Video URL not available") {
		t.Fatalf("post error info = %+v", failed.ErrorInfo)
	}

	events, payloads := notifier.recorded()
	if len(events) != 1 || events[0] != notifications.EventPostFailed {
		t.Fatalf("expected one post failure notification, got %v", events)
	}
	if payloads[0]["platform"] != "tiktok" || payloads[0]["seriesName"] != series.Name {
		t.Fatalf("unexpected payload %v", payloads[0])
	}
}

func TestPublishRetryLeavesPostPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	notifier := &recordingNotifier{}

	series := testsupport.NewSeries(t, st, "Slow Platform")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())
	account := connectedAccount(t, st, series.WorkspaceID, "youtube")
	post := &store.Post{EpisodeID: episode.ID, AccountID: account.ID, Status: store.PostPending}
	if err := st.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost: %v", err)
	}

	publisher := &stubHandler{
		name: string(store.KindPublish),
		executeErr: services.Wrap(
			services.ErrTransient, string(store.KindPublish), "deliver upload",
			"Publishing to youtube failed", nil),
	}
	m := newTestManager(t, cfg, st, notifier, StageSet{Publisher: publisher})
	lane := laneNamed(t, m, LanePublish)

	if _, err := st.EnqueueJob(ctx, store.KindPublish, episode.ID, post.ID, time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	job := claimJob(t, st, lane)
	if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	stored, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if stored.Status != store.JobPending {
		t.Fatalf("job status = %s, want pending for retry", stored.Status)
	}

	// The queue retries; the post row keeps whatever state the stage left.
	waiting, err := st.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if waiting.Status != store.PostPending {
		t.Fatalf("post status = %s, want pending", waiting.Status)
	}
	if events, _ := notifier.recorded(); len(events) != 0 {
		t.Fatalf("expected no notifications, got %v", events)
	}
}

func TestManagerStartProcessesQueuedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Looped")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())

	script := &stubHandler{name: string(store.KindScriptGeneration)}
	m := newTestManager(t, cfg, st, nil, StageSet{ScriptGenerator: script})

	queued, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts)
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(ctx); err == nil {
		t.Fatal("expected starting a running manager to fail")
	}

	// The successor appears strictly after the script job completes, so
	// waiting on it covers the whole claim-execute-enqueue cycle.
	waitFor(t, 5*time.Second, func() bool {
		successor, err := st.FindOpenJob(ctx, store.KindMediaGeneration, episode.ID, "")
		return err == nil && successor != nil
	}, "worker loop completed the script job and enqueued its successor")

	m.Stop()
	if m.Running() {
		t.Fatal("manager still reports running after Stop")
	}

	completed, err := st.GetJob(ctx, queued.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if completed.Status != store.JobCompleted {
		t.Fatalf("script job status = %s, want completed", completed.Status)
	}
}

func TestHeartbeatLeaseLossCancelsExecution(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	series := testsupport.NewSeries(t, st, "Stolen Lease")
	episode := testsupport.NewEpisode(t, st, series.ID, 1, time.Now().UTC())
	if _, err := st.EnqueueJob(ctx, store.KindScriptGeneration, episode.ID, "", time.Now().UTC(), cfg.Queue.MaxAttempts); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	claimed, err := st.ClaimNextJob(ctx, store.KindScriptGeneration)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimable job")
	}

	// A holder whose lease token no longer matches the row must stop.
	stale := *claimed
	stale.LeaseToken = "superseded-lease"

	monitor := NewHeartbeatMonitor(st, nil, 5*time.Millisecond, time.Minute)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lost := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(runCtx, &stale, func() { close(lost) })
	}()

	select {
	case <-lost:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat monitor did not report the lost lease")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat monitor did not stop after losing the lease")
	}
}

func TestStatusReportsHealthAndQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	m := newTestManager(t, cfg, st, nil, StageSet{
		ScriptGenerator: &stubHandler{name: string(store.KindScriptGeneration)},
		MediaGenerator:  &stubHandler{name: string(store.KindMediaGeneration)},
		Renderer:        &stubHandler{name: string(store.KindRender)},
		Publisher:       &stubHandler{name: string(store.KindPublish)},
	})

	summary := m.Status(ctx)
	if summary.Running {
		t.Fatal("manager should not report running before Start")
	}
	if len(summary.StageHealth) != 4 {
		t.Fatalf("expected health for 4 stages, got %d", len(summary.StageHealth))
	}
	for name, health := range summary.StageHealth {
		if !health.Ready {
			t.Fatalf("stage %s unexpectedly unhealthy: %s", name, health.Detail)
		}
	}
	if summary.QueueStats == nil {
		t.Fatal("expected queue stats")
	}
}
