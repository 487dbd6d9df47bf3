package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/storage"
)

// memStore is an in-memory JobStore for worker tests.
type memStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.StagingJob
	images   map[string]*models.Image
	rooms    map[string]*models.Room
	progress map[string][]float64 // job id -> observed progress writes
}

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[string]*models.StagingJob),
		images:   make(map[string]*models.Image),
		rooms:    make(map[string]*models.Room),
		progress: make(map[string][]float64),
	}
}

func (m *memStore) ClaimNextPendingJob() (*models.StagingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending {
			j.Status = models.JobStatusProcessing
			j.Attempts++
			return j, nil
		}
	}
	return nil, nil
}

func (m *memStore) SaveJob(job *models.StagingJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	m.progress[job.ID] = append(m.progress[job.ID], job.ProgressPercent)
	return nil
}

func (m *memStore) GetImageByID(id string) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil, errors.New("image not found")
	}
	return img, nil
}

func (m *memStore) GetRoomByID(id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, errors.New("room not found")
	}
	return room, nil
}

func (m *memStore) LatestCompletedJob(imageID string) (*models.StagingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *models.StagingJob
	for _, j := range m.jobs {
		if j.ImageID == imageID && j.Status == models.JobStatusCompleted && j.ResultURL != "" {
			if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
				latest = j
			}
		}
	}
	return latest, nil
}

// recordingRenderer captures the request it was called with.
type recordingRenderer struct {
	lastReq RenderRequest
	err     error
}

func (r *recordingRenderer) Render(_ context.Context, req RenderRequest) ([]byte, error) {
	r.lastReq = req
	if r.err != nil {
		return nil, r.err
	}
	return []byte("jpeg-bytes"), nil
}

func fastConfig() config.WorkerConfig {
	return config.WorkerConfig{
		PollIntervalSeconds: 1,
		StepDelayMillis:     1,
		JobTimeoutSeconds:   10,
	}
}

func newTestWorker(t *testing.T, store JobStore, r Renderer) *Worker {
	t.Helper()
	disk, err := storage.NewDiskStore(t.TempDir(), "http://files.test")
	if err != nil {
		t.Fatal(err)
	}
	return NewWorker(store, disk, r, "stage-results", fastConfig())
}

func strPtr(s string) *string { return &s }

func TestProcessJobCompletes(t *testing.T) {
	store := newMemStore()
	store.images["img-1"] = &models.Image{ID: "img-1", OriginalURL: "http://files.test/stage-uploads/img-1.jpg"}
	job := &models.StagingJob{ID: "job-1", ImageID: "img-1", StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-1"] = job

	r := &recordingRenderer{}
	w := newTestWorker(t, store, r)
	w.processJob(job)

	if job.Status != models.JobStatusCompleted {
		t.Fatalf("status = %q, want completed (error=%s)", job.Status, job.ErrorMessage)
	}
	if job.ResultURL == "" {
		t.Error("completed job has empty result_url")
	}
	if job.ProgressPercent != 100 {
		t.Errorf("progress = %v, want 100", job.ProgressPercent)
	}
	if job.CurrentStep != finalStepLabel {
		t.Errorf("current_step = %q, want %q", job.CurrentStep, finalStepLabel)
	}
	if job.CompletedAt == nil {
		t.Error("completed_at not set")
	}
}

func TestProcessJobProgressMonotonic(t *testing.T) {
	store := newMemStore()
	store.images["img-1"] = &models.Image{ID: "img-1", OriginalURL: "u"}
	job := &models.StagingJob{ID: "job-1", ImageID: "img-1", StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-1"] = job

	w := newTestWorker(t, store, &recordingRenderer{})
	w.processJob(job)

	seen := store.progress["job-1"]
	if len(seen) < len(progressPlan)+1 {
		t.Fatalf("expected at least %d progress writes, got %d", len(progressPlan)+1, len(seen))
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress decreased: %v", seen)
		}
	}
	if last := seen[len(seen)-1]; last != 100 {
		t.Errorf("final progress = %v, want 100", last)
	}
}

func TestProcessJobRenderFailure(t *testing.T) {
	store := newMemStore()
	store.images["img-1"] = &models.Image{ID: "img-1", OriginalURL: "u"}
	job := &models.StagingJob{ID: "job-1", ImageID: "img-1", StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-1"] = job

	r := &recordingRenderer{err: errors.New("model unavailable")}
	w := newTestWorker(t, store, r)
	w.processJob(job)

	if job.Status != models.JobStatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
	if job.ErrorMessage == "" {
		t.Error("error_message not recorded")
	}
	if job.ResultURL != "" {
		t.Error("failed job must not carry a result_url")
	}
}

func TestProcessJobMissingImage(t *testing.T) {
	store := newMemStore()
	job := &models.StagingJob{ID: "job-1", ImageID: "gone", StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-1"] = job

	w := newTestWorker(t, store, &recordingRenderer{})
	w.processJob(job)

	if job.Status != models.JobStatusError {
		t.Fatalf("status = %q, want error", job.Status)
	}
}

func TestResolveReferencePrefersStagedResult(t *testing.T) {
	store := newMemStore()
	store.rooms["room-1"] = &models.Room{ID: "room-1", RoomType: "living_room", ReferenceImageID: strPtr("img-ref")}
	store.images["img-ref"] = &models.Image{ID: "img-ref", RoomID: strPtr("room-1"), OriginalURL: "http://files.test/stage-uploads/ref.jpg"}
	store.images["img-2"] = &models.Image{ID: "img-2", RoomID: strPtr("room-1"), OriginalURL: "http://files.test/stage-uploads/angle.jpg"}
	store.jobs["ref-job"] = &models.StagingJob{
		ID: "ref-job", ImageID: "img-ref", StylePreset: "industrial",
		Status: models.JobStatusCompleted, ResultURL: "http://files.test/stage-results/ref-job.jpg",
	}

	job := &models.StagingJob{ID: "job-2", ImageID: "img-2", RoomID: strPtr("room-1"), StylePreset: "industrial", Status: models.JobStatusProcessing}
	store.jobs["job-2"] = job

	r := &recordingRenderer{}
	w := newTestWorker(t, store, r)
	w.processJob(job)

	if want := "http://files.test/stage-results/ref-job.jpg"; r.lastReq.ReferenceImageURL != want {
		t.Errorf("reference url = %q, want staged result %q", r.lastReq.ReferenceImageURL, want)
	}
}

func TestResolveReferenceFallsBackToOriginal(t *testing.T) {
	store := newMemStore()
	store.rooms["room-1"] = &models.Room{ID: "room-1", RoomType: "bedroom", ReferenceImageID: strPtr("img-ref")}
	store.images["img-ref"] = &models.Image{ID: "img-ref", RoomID: strPtr("room-1"), OriginalURL: "http://files.test/stage-uploads/ref.jpg"}
	store.images["img-2"] = &models.Image{ID: "img-2", RoomID: strPtr("room-1"), OriginalURL: "http://files.test/stage-uploads/angle.jpg"}

	job := &models.StagingJob{ID: "job-2", ImageID: "img-2", RoomID: strPtr("room-1"), StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-2"] = job

	r := &recordingRenderer{}
	w := newTestWorker(t, store, r)
	w.processJob(job)

	if want := "http://files.test/stage-uploads/ref.jpg"; r.lastReq.ReferenceImageURL != want {
		t.Errorf("reference url = %q, want original %q", r.lastReq.ReferenceImageURL, want)
	}
}

func TestReferenceJobItselfGetsNoReference(t *testing.T) {
	store := newMemStore()
	store.rooms["room-1"] = &models.Room{ID: "room-1", RoomType: "bedroom", ReferenceImageID: strPtr("img-ref")}
	store.images["img-ref"] = &models.Image{ID: "img-ref", RoomID: strPtr("room-1"), OriginalURL: "u"}

	job := &models.StagingJob{ID: "job-1", ImageID: "img-ref", RoomID: strPtr("room-1"), StylePreset: "modern", Status: models.JobStatusProcessing}
	store.jobs["job-1"] = job

	r := &recordingRenderer{}
	w := newTestWorker(t, store, r)
	w.processJob(job)

	if r.lastReq.ReferenceImageURL != "" {
		t.Errorf("reference job must not receive a reference url, got %q", r.lastReq.ReferenceImageURL)
	}
}

func TestStubRendererHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := StubRenderer{}.Render(ctx, RenderRequest{Job: &models.StagingJob{StylePreset: "modern"}})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
