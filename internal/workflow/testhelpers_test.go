package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/logging"
	"showrunner/internal/notifications"
	"showrunner/internal/stage"
	"showrunner/internal/store"
)

// stubHandler scripts a stage's behavior for manager tests.
type stubHandler struct {
	name string

	mu         sync.Mutex
	prepareErr error
	executeErr error
	onExecute  func(ctx context.Context, job *store.Job) error
	prepared   int
	executed   int
}

func (s *stubHandler) Prepare(_ context.Context, _ *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prepared++
	return s.prepareErr
}

func (s *stubHandler) Execute(ctx context.Context, job *store.Job) error {
	s.mu.Lock()
	s.executed++
	fn := s.onExecute
	err := s.executeErr
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, job)
	}
	return err
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func (s *stubHandler) calls() (prepared, executed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared, s.executed
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) recorded() ([]notifications.Event, []notifications.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Event(nil), r.events...), append([]notifications.Payload(nil), r.payloads...)
}

// newTestManager builds a manager with fast loop intervals and the given
// handlers wired in.
func newTestManager(t *testing.T, cfg *config.Config, st *store.Store, notifier notifications.Service, set StageSet) *Manager {
	t.Helper()
	m := NewManagerWithNotifier(cfg, st, logging.NewNop(), notifier)
	m.ConfigureStages(set)
	m.pollInterval = 10 * time.Millisecond
	m.errorRetryInterval = 10 * time.Millisecond
	return m
}

func laneNamed(t *testing.T, m *Manager, name string) *laneState {
	t.Helper()
	for _, lane := range m.lanes {
		if lane.name == name {
			return lane
		}
	}
	t.Fatalf("lane %q not configured", name)
	return nil
}

// claimJob pulls the next due job for a lane and fails the test when the
// queue is empty.
func claimJob(t *testing.T, st *store.Store, lane *laneState) *store.Job {
	t.Helper()
	job, err := st.ClaimNextJob(context.Background(), lane.kinds...)
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil {
		t.Fatal("expected a claimable job")
	}
	return job
}

// drain claims and processes due jobs across all lanes until nothing is
// claimable. Retry backoff pushes rescheduled jobs out of the due window,
// so a failing job does not loop here.
func drain(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		processed := false
		for _, lane := range m.lanes {
			job, err := m.store.ClaimNextJob(ctx, lane.kinds...)
			if err != nil {
				t.Fatalf("ClaimNextJob: %v", err)
			}
			if job == nil {
				continue
			}
			processed = true
			if err := m.processJob(ctx, lane, lane.logger, job); err != nil {
				t.Fatalf("processJob: %v", err)
			}
		}
		if !processed {
			return
		}
	}
	t.Fatal("queue did not drain")
}

// waitFor polls a condition until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func connectedAccount(t *testing.T, st *store.Store, workspaceID, platform string) *store.Account {
	t.Helper()
	account := &store.Account{
		WorkspaceID: workspaceID,
		Platform:    platform,
		DisplayName: platform + " test account",
		AccessToken: "sealed-token",
	}
	if err := st.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return account
}
