package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startQueue(t *testing.T, workers int) *Queue {
	t.Helper()
	q := New(workers)
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func waitFor(t *testing.T, q *Queue, id string, want Status) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.Get(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func TestQueue_CompletesJob(t *testing.T) {
	q := startQueue(t, 2)

	job := q.Submit("p1", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		for i := 1; i <= 3; i++ {
			progress(i, 3)
		}
		return &Result{Name: "labels.zip", ContentType: "application/zip", Data: []byte("zip")}, nil
	})
	assert.Equal(t, StatusQueued, job.Status)

	done := waitFor(t, q, job.ID, StatusCompleted)
	assert.Equal(t, 3, done.Done)
	assert.Equal(t, 3, done.Total)
	assert.Equal(t, "labels.zip", done.ResultName)
	assert.False(t, done.FinishedAt.IsZero())

	res, err := q.Result(job.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("zip"), res.Data)
}

func TestQueue_FailedJob(t *testing.T) {
	q := startQueue(t, 1)

	job := q.Submit("p1", KindPDF, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		return nil, errors.New("label does not fit")
	})

	failed := waitFor(t, q, job.ID, StatusFailed)
	assert.Equal(t, "label does not fit", failed.Error)

	_, err := q.Result(job.ID)
	assert.ErrorIs(t, err, ErrNotFinished)
}

func TestQueue_CancelRunning(t *testing.T) {
	q := startQueue(t, 1)
	started := make(chan struct{})

	job := q.Submit("p1", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started

	require.NoError(t, q.Cancel(job.ID))
	waitFor(t, q, job.ID, StatusCancelled)
}

func TestQueue_CancelQueued(t *testing.T) {
	q := New(1) // not started
	job := q.Submit("p1", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		t.Error("cancelled job must not run")
		return nil, nil
	})

	require.NoError(t, q.Cancel(job.ID))
	got, err := q.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	q.Start(context.Background())
	defer q.Stop()
	time.Sleep(20 * time.Millisecond)
}

func TestQueue_RunsInSubmissionOrder(t *testing.T) {
	q := New(1)
	order := make(chan int, 5)
	var ids []string
	for i := 0; i < 5; i++ {
		job := q.Submit("p", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
			order <- i
			return &Result{}, nil
		})
		ids = append(ids, job.ID)
	}
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range ids {
		waitFor(t, q, id, StatusCompleted)
	}
	close(order)
	var got []int
	for i := range order {
		got = append(got, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestQueue_Subscribe(t *testing.T) {
	q := startQueue(t, 1)
	events, unsubscribe := q.Subscribe()
	defer unsubscribe()

	job := q.Submit("p1", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		progress(1, 1)
		return &Result{}, nil
	})

	var statuses []Status
	timeout := time.After(5 * time.Second)
	for len(statuses) == 0 || !statuses[len(statuses)-1].Finished() {
		select {
		case ev := <-events:
			assert.Equal(t, job.ID, ev.JobID)
			statuses = append(statuses, ev.Status)
		case <-timeout:
			t.Fatalf("no final event, got %v", statuses)
		}
	}
	assert.Equal(t, StatusQueued, statuses[0])
	assert.Contains(t, statuses, StatusRunning)
	assert.Equal(t, StatusCompleted, statuses[len(statuses)-1])
}

func TestQueue_NotFound(t *testing.T) {
	q := New(1)
	_, err := q.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, q.Cancel("missing"), ErrNotFound)
	_, err = q.Result("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_ClearFinished(t *testing.T) {
	q := startQueue(t, 1)
	job := q.Submit("p", KindArchive, func(ctx context.Context, progress func(int, int)) (*Result, error) {
		return &Result{}, nil
	})
	waitFor(t, q, job.ID, StatusCompleted)

	assert.Equal(t, 1, q.ClearFinished())
	assert.Empty(t, q.List())
}
