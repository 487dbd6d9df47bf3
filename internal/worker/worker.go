package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/storage"
)

// JobStore is the persistence surface the worker needs. *database.GormDB
// satisfies it; tests use an in-memory implementation.
type JobStore interface {
	ClaimNextPendingJob() (*models.StagingJob, error)
	SaveJob(job *models.StagingJob) error
	GetImageByID(id string) (*models.Image, error)
	GetRoomByID(id string) (*models.Room, error)
	LatestCompletedJob(imageID string) (*models.StagingJob, error)
}

// progressStep is one transient stage of the rendering pipeline.
type progressStep struct {
	percent float64
	label   string
}

// The fixed progress plan a job advances through before its terminal
// state. Percentages only ever increase.
var progressPlan = []progressStep{
	{10, "Analyzing room layout..."},
	{30, "Detecting surfaces and depth..."},
	{60, "Generating furniture placement plan..."},
	{80, "Rendering final image..."},
}

const finalStepLabel = "Final rendering complete"

// Worker processes pending staging jobs one at a time.
type Worker struct {
	store    JobStore
	files    storage.Store
	renderer Renderer
	results  string // results bucket

	mu        sync.Mutex
	stepDelay time.Duration
	timeout   time.Duration

	pollInterval time.Duration
	stopChan     chan struct{}
	isRunning    bool
}

// NewWorker creates a staging worker.
func NewWorker(store JobStore, files storage.Store, renderer Renderer, resultsBucket string, cfg config.WorkerConfig) *Worker {
	return &Worker{
		store:        store,
		files:        files,
		renderer:     renderer,
		results:      resultsBucket,
		stepDelay:    cfg.GetStepDelay(),
		timeout:      cfg.GetJobTimeout(),
		pollInterval: cfg.GetPollInterval(),
		stopChan:     make(chan struct{}),
	}
}

// Start starts the worker loop.
func (w *Worker) Start() {
	if w.isRunning {
		log.Println("Worker: Already running")
		return
	}
	w.isRunning = true
	log.Printf("Worker: Started (poll_interval=%v)", w.pollInterval)
	go w.run()
}

// Stop stops the worker loop.
func (w *Worker) Stop() {
	if !w.isRunning {
		return
	}
	log.Println("Worker: Stopping...")
	w.isRunning = false
	close(w.stopChan)
}

// UpdateConfig applies reloaded tunables. The queue poll interval needs
// a restart to change; step delay and timeout take effect immediately.
func (w *Worker) UpdateConfig(cfg config.WorkerConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stepDelay = cfg.GetStepDelay()
	w.timeout = cfg.GetJobTimeout()
	if cfg.GetPollInterval() != w.pollInterval {
		log.Println("Worker: poll interval change requires restart; keeping current interval")
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			log.Println("Worker: Stopped")
			return
		case <-ticker.C:
			w.processNext()
		}
	}
}

// processNext claims and processes at most one job. A second job is
// never started before the first finishes.
func (w *Worker) processNext() {
	job, err := w.store.ClaimNextPendingJob()
	if err != nil {
		log.Printf("Worker: Error claiming next job: %v", err)
		return
	}
	if job == nil {
		return
	}
	w.processJob(job)
}

// processJob drives one claimed job to a terminal state.
func (w *Worker) processJob(job *models.StagingJob) {
	log.Printf("Worker: Processing job id=%s image=%s style=%s attempt=%d",
		job.ID, job.ImageID, job.StylePreset, job.Attempts)

	w.mu.Lock()
	stepDelay, timeout := w.stepDelay, w.timeout
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()

	image, err := w.store.GetImageByID(job.ImageID)
	if err != nil {
		w.failJob(job, fmt.Errorf("image lookup: %w", err))
		return
	}

	refURL, err := w.resolveReference(job, image)
	if err != nil {
		w.failJob(job, fmt.Errorf("reference lookup: %w", err))
		return
	}
	if refURL != "" {
		log.Printf("Worker: job=%s using reference image for consistency: %s", job.ID, refURL)
	}

	for _, step := range progressPlan {
		job.ProgressPercent = step.percent
		job.CurrentStep = step.label
		if err := w.store.SaveJob(job); err != nil {
			log.Printf("Worker: Failed to save progress for job %s: %v", job.ID, err)
		}

		select {
		case <-w.stopChan:
			// Shutdown mid-job: leave it processing; a restarted worker
			// claims only pending jobs, so operators re-queue manually.
			log.Printf("Worker: Interrupted while processing job %s", job.ID)
			return
		case <-ctx.Done():
			w.failJob(job, fmt.Errorf("processing deadline exceeded after %v", timeout))
			return
		case <-time.After(stepDelay):
		}
	}

	data, err := w.renderer.Render(ctx, RenderRequest{
		Job:               job,
		ImageURL:          image.OriginalURL,
		ImageWidth:        image.Width,
		ImageHeight:       image.Height,
		ReferenceImageURL: refURL,
	})
	if err != nil {
		w.failJob(job, fmt.Errorf("render: %w", err))
		return
	}

	resultURL, err := w.files.Save(w.results, job.ID+".jpg", data)
	if err != nil {
		w.failJob(job, fmt.Errorf("store result: %w", err))
		return
	}

	now := time.Now()
	job.Status = models.JobStatusCompleted
	job.ProgressPercent = 100
	job.CurrentStep = finalStepLabel
	job.ResultURL = resultURL
	job.CompletedAt = &now
	job.GenerationTimeSeconds = int(now.Sub(started).Seconds())
	if err := w.store.SaveJob(job); err != nil {
		log.Printf("Worker: Failed to save completed job %s: %v", job.ID, err)
		return
	}
	log.Printf("Worker: Job %s completed in %ds", job.ID, job.GenerationTimeSeconds)
}

// resolveReference finds the rendering context for secondary angles:
// the room's reference image, preferring its staged result over the
// original so all angles converge on the same staged look.
func (w *Worker) resolveReference(job *models.StagingJob, image *models.Image) (string, error) {
	if job.RoomID == nil {
		return "", nil
	}

	room, err := w.store.GetRoomByID(*job.RoomID)
	if err != nil {
		return "", err
	}
	if room.ReferenceImageID == nil || *room.ReferenceImageID == image.ID {
		return "", nil
	}

	refImage, err := w.store.GetImageByID(*room.ReferenceImageID)
	if err != nil {
		return "", err
	}

	refJob, err := w.store.LatestCompletedJob(refImage.ID)
	if err != nil {
		return "", err
	}
	if refJob != nil && refJob.ResultURL != "" {
		return refJob.ResultURL, nil
	}
	return refImage.OriginalURL, nil
}

// failJob records a terminal error on the job. Scoped to the job only.
func (w *Worker) failJob(job *models.StagingJob, cause error) {
	log.Printf("Worker: Job %s failed: %v", job.ID, cause)
	job.Status = models.JobStatusError
	job.ErrorMessage = cause.Error()
	if err := w.store.SaveJob(job); err != nil {
		log.Printf("Worker: Failed to save error state for job %s: %v", job.ID, err)
	}
}
