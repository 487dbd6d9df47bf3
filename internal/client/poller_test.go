package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// scriptedJobServer serves a fixed sequence of job states, holding the
// last one once the script runs out.
type scriptedJobServer struct {
	mu     sync.Mutex
	states []Job
	calls  int
}

func (s *scriptedJobServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		idx := s.calls
		if idx >= len(s.states) {
			idx = len(s.states) - 1
		}
		state := s.states[idx]
		s.calls++
		s.mu.Unlock()

		json.NewEncoder(w).Encode(state)
	}
}

func (s *scriptedJobServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastPoll() PollConfig {
	return PollConfig{
		InitialInterval: 2 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxDuration:     2 * time.Second,
	}
}

func TestWatchJobCompletes(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "pending", ProgressPercent: 0},
		{ID: "j1", Status: "processing", ProgressPercent: 30, CurrentStep: "Detecting surfaces and depth..."},
		{ID: "j1", Status: "processing", ProgressPercent: 80, CurrentStep: "Rendering final image..."},
		{ID: "j1", Status: "completed", ProgressPercent: 100, ResultURL: "http://files/stage-results/j1.jpg"},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	var updates []float64
	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", fastPoll(), func(percent float64, step string) {
		updates = append(updates, percent)
	})

	job, err := watch.Wait()
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if job.ResultURL == "" {
		t.Fatal("completed job has no result URL")
	}
	if len(updates) == 0 || updates[len(updates)-1] != 100 {
		t.Fatalf("final progress update = %v, want 100", updates)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Fatalf("progress decreased: %v", updates)
		}
	}
}

func TestWatchJobClampsRegressingProgress(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "processing", ProgressPercent: 60, CurrentStep: "Generating furniture placement plan..."},
		{ID: "j1", Status: "processing", ProgressPercent: 30, CurrentStep: "Detecting surfaces and depth..."},
		{ID: "j1", Status: "completed", ProgressPercent: 100},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	var updates []float64
	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", fastPoll(), func(percent float64, step string) {
		updates = append(updates, percent)
	})
	if _, err := watch.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	for i := 1; i < len(updates); i++ {
		if updates[i] < updates[i-1] {
			t.Fatalf("progress decreased despite clamp: %v", updates)
		}
	}
}

func TestWatchJobReportsJobError(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "processing", ProgressPercent: 10},
		{ID: "j1", Status: "error", ErrorMessage: "render backend unavailable"},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", fastPoll(), nil)
	_, err := watch.Wait()

	var jobErr *staging.JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("Wait() error = %v, want JobError", err)
	}
	if jobErr.JobID != "j1" {
		t.Fatalf("JobError.JobID = %s, want j1", jobErr.JobID)
	}
}

func TestWatchJobHardDeadline(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "processing", ProgressPercent: 50},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	cfg := fastPoll()
	cfg.MaxDuration = 20 * time.Millisecond

	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", cfg, nil)
	_, err := watch.Wait()

	var jobErr *staging.JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("Wait() error = %v, want JobError after deadline", err)
	}
}

func TestWatchJobCancelStopsPolling(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "processing", ProgressPercent: 50},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	cfg := fastPoll()
	cfg.InitialInterval = 50 * time.Millisecond
	cfg.MaxInterval = 50 * time.Millisecond

	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", cfg, nil)

	// Let the first request land, then cancel during the sleep.
	time.Sleep(10 * time.Millisecond)
	before := server.callCount()
	watch.Cancel()

	_, err := watch.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}

	time.Sleep(100 * time.Millisecond)
	if after := server.callCount(); after > before {
		t.Fatalf("requests continued after cancel: %d -> %d", before, after)
	}
}

func TestWatchJobDefaultStepLabel(t *testing.T) {
	server := &scriptedJobServer{states: []Job{
		{ID: "j1", Status: "processing", ProgressPercent: 5, CurrentStep: ""},
		{ID: "j1", Status: "completed", ProgressPercent: 100},
	}}
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	var steps []string
	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", fastPoll(), func(percent float64, step string) {
		steps = append(steps, step)
	})
	if _, err := watch.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(steps) == 0 {
		t.Fatal("no progress updates delivered")
	}
	// The substitution also covers the final update for a completed job
	// that reports no step.
	for i, step := range steps {
		if step != defaultStepLabel {
			t.Fatalf("steps[%d] = %q, want %q", i, step, defaultStepLabel)
		}
	}
}

func TestWatchJobToleratesTransientErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(Job{ID: "j1", Status: "completed", ProgressPercent: 100})
	}))
	defer ts.Close()

	watch := NewClient(ts.URL).WatchJob(context.Background(), "j1", fastPoll(), nil)
	if _, err := watch.Wait(); err != nil {
		t.Fatalf("Wait() error = %v, want recovery after transient 500", err)
	}
}
