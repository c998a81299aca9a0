// Package jobs runs export jobs in the background and reports their progress
package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"github.com/google/uuid"
)

var log = logger.GetLogger("jobs")

var (
	ErrNotFound    = errors.New("job not found")
	ErrNotFinished = errors.New("job has not completed")
)

type Kind string

const (
	KindArchive Kind = "archive"
	KindPDF     Kind = "pdf"
	KindPrint   Kind = "print"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is final.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Result is the artifact of a completed job.
type Result struct {
	Name        string
	ContentType string
	Data        []byte
}

// RunFunc does the work of a job. It must return promptly once ctx is done and
// may call progress from any goroutine.
type RunFunc func(ctx context.Context, progress func(done, total int)) (*Result, error)

// Job is the externally visible state of a job.
type Job struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"projectId,omitempty"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
	ResultName string    `json:"resultName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`

	run    RunFunc
	cancel context.CancelFunc
	result *Result
}

// Event is published on every status or progress change.
type Event struct {
	JobID  string `json:"jobId"`
	Kind   Kind   `json:"kind"`
	Status Status `json:"status"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Error  string `json:"error,omitempty"`
}

// Queue runs submitted jobs in order on a fixed number of workers.
type Queue struct {
	jobs    []*Job
	mu      sync.Mutex
	wake    chan struct{}
	workers int

	subs    map[int]chan Event
	nextSub int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue; zero workers means one per CPU. Jobs run once Start is
// called.
func New(workers int) *Queue {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Queue{
		wake:    make(chan struct{}, 1),
		workers: workers,
		subs:    make(map[int]chan Event),
	}
}

// Start launches the workers. They stop when ctx is done or Stop is called;
// running jobs are cancelled.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Stop cancels running jobs and waits for the workers to exit.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Submit queues run and returns a snapshot of the new job.
func (q *Queue) Submit(projectID string, kind Kind, run RunFunc) *Job {
	q.mu.Lock()
	job := &Job{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		run:       run,
	}
	q.jobs = append(q.jobs, job)
	snapshot := *job
	q.publishLocked(job)
	q.mu.Unlock()

	q.signal()
	log.Debugf("queued %s job %s", kind, job.ID)
	return &snapshot
}

// Get returns a snapshot of the job.
func (q *Queue) Get(id string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := q.findLocked(id)
	if job == nil {
		return nil, ErrNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

// List returns snapshots of all jobs in submission order.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*Job, len(q.jobs))
	for i, job := range q.jobs {
		snapshot := *job
		out[i] = &snapshot
	}
	return out
}

// Result returns the artifact of a completed job.
func (q *Queue) Result(id string) (*Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := q.findLocked(id)
	if job == nil {
		return nil, ErrNotFound
	}
	if job.Status != StatusCompleted || job.result == nil {
		return nil, fmt.Errorf("job %s is %s: %w", id, job.Status, ErrNotFinished)
	}
	return job.result, nil
}

// Cancel stops a queued or running job. Cancelling a finished job is a no-op.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := q.findLocked(id)
	if job == nil {
		return ErrNotFound
	}
	switch job.Status {
	case StatusQueued:
		q.finishLocked(job, StatusCancelled, nil)
	case StatusRunning:
		job.cancel()
	}
	return nil
}

// ClearFinished drops finished jobs and their results.
func (q *Queue) ClearFinished() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.jobs[:0]
	for _, job := range q.jobs {
		if !job.Status.Finished() {
			kept = append(kept, job)
		}
	}
	removed := len(q.jobs) - len(kept)
	clear(q.jobs[len(kept):])
	q.jobs = kept
	return removed
}

// Subscribe returns a channel of job events and a function to stop receiving
// them. Events are dropped for subscribers that fall behind.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan Event, 64)
	q.subs[id] = ch

	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if _, ok := q.subs[id]; ok {
			delete(q.subs, id)
			close(ch)
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		job, jobCtx := q.next(ctx)
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
			}
			continue
		}
		q.process(jobCtx, job)
	}
}

// next claims the oldest queued job.
func (q *Queue) next(ctx context.Context) (*Job, context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx.Err() != nil {
		return nil, nil
	}
	for i, job := range q.jobs {
		if job.Status != StatusQueued {
			continue
		}
		jobCtx, cancel := context.WithCancel(ctx)
		job.cancel = cancel
		job.Status = StatusRunning
		q.publishLocked(job)

		for _, rest := range q.jobs[i+1:] {
			if rest.Status == StatusQueued {
				q.signal()
				break
			}
		}
		return job, jobCtx
	}
	return nil, nil
}

func (q *Queue) process(ctx context.Context, job *Job) {
	defer job.cancel()

	progress := func(done, total int) {
		q.mu.Lock()
		defer q.mu.Unlock()
		if job.Status != StatusRunning {
			return
		}
		job.Done, job.Total = done, total
		q.publishLocked(job)
	}

	result, err := job.run(ctx, progress)

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case ctx.Err() != nil:
		q.finishLocked(job, StatusCancelled, nil)
		log.Infof("%s job %s cancelled", job.Kind, job.ID)
	case err != nil:
		q.finishLocked(job, StatusFailed, err)
		log.Warnf("%s job %s failed: %v", job.Kind, job.ID, err)
	default:
		job.result = result
		if result != nil {
			job.ResultName = result.Name
		}
		q.finishLocked(job, StatusCompleted, nil)
		log.Infof("%s job %s completed", job.Kind, job.ID)
	}
}

func (q *Queue) finishLocked(job *Job, status Status, err error) {
	job.Status = status
	job.FinishedAt = time.Now().UTC()
	if err != nil {
		job.Error = err.Error()
	}
	job.run = nil
	q.publishLocked(job)
}

func (q *Queue) findLocked(id string) *Job {
	for _, job := range q.jobs {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (q *Queue) publishLocked(job *Job) {
	ev := Event{JobID: job.ID, Kind: job.Kind, Status: job.Status, Done: job.Done, Total: job.Total, Error: job.Error}
	for _, ch := range q.subs {
		select {
		case ch <- ev:
		default:
			log.Debugf("dropping event for slow subscriber (job %s)", job.ID)
		}
	}
}
