package classifier

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrTrainerBusy is returned by Submit when the job queue is full.
var ErrTrainerBusy = errors.New("classifier: trainer queue full")

// TrainResult reports the outcome of one submitted training job.
type TrainResult struct {
	JobID uuid.UUID
	Err   error
	Took  time.Duration
}

type trainJob struct {
	id      uuid.UUID
	samples []TrainingSample
}

// Trainer runs training jobs on a dedicated worker goroutine so a slow
// Train never blocks telemetry delivery. Submission is fire-and-forget;
// completions arrive on Results. Each job is bounded by a timeout: a
// training run that never reports back is surfaced as a failure, not a
// hang.
type Trainer struct {
	model   Classifier
	timeout time.Duration

	jobs    chan trainJob
	results chan TrainResult
	done    chan struct{}
}

// NewTrainer starts the worker. timeout bounds each job; queue bounds
// the number of jobs waiting behind a running one.
func NewTrainer(model Classifier, timeout time.Duration, queue int) *Trainer {
	if queue < 1 {
		queue = 1
	}
	t := &Trainer{
		model:   model,
		timeout: timeout,
		jobs:    make(chan trainJob, queue),
		results: make(chan TrainResult, queue),
		done:    make(chan struct{}),
	}
	go t.run()
	return t
}

// Submit queues a training job over a snapshot of the given samples and
// returns its ID immediately.
func (t *Trainer) Submit(samples []TrainingSample) (uuid.UUID, error) {
	snapshot := make([]TrainingSample, len(samples))
	copy(snapshot, samples)

	job := trainJob{id: uuid.New(), samples: snapshot}
	select {
	case t.jobs <- job:
		log.Printf("classifier: training job %s submitted (%d samples)", job.id, len(snapshot))
		return job.id, nil
	default:
		return uuid.Nil, ErrTrainerBusy
	}
}

// Results delivers one TrainResult per submitted job.
func (t *Trainer) Results() <-chan TrainResult {
	return t.results
}

// Close stops the worker after the current job finishes. Pending queued
// jobs are discarded.
func (t *Trainer) Close() {
	close(t.done)
}

func (t *Trainer) run() {
	for {
		select {
		case <-t.done:
			return
		case job := <-t.jobs:
			t.results <- t.execute(job)
		}
	}
}

func (t *Trainer) execute(job trainJob) TrainResult {
	start := time.Now()

	errCh := make(chan error, 1)
	go func() {
		errCh <- t.model.Train(job.samples)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Printf("classifier: training job %s failed: %v", job.id, err)
		} else {
			log.Printf("classifier: training job %s done in %s", job.id, time.Since(start))
		}
		return TrainResult{JobID: job.id, Err: err, Took: time.Since(start)}
	case <-time.After(t.timeout):
		// The Train goroutine may still be running; the model must
		// tolerate a late completion overwriting its state.
		err := fmt.Errorf("classifier: training job %s timed out after %s", job.id, t.timeout)
		log.Print(err)
		return TrainResult{JobID: job.id, Err: err, Took: time.Since(start)}
	}
}
