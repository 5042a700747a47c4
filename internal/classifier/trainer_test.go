package classifier

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// blockingModel holds Train until release is closed, so tests can pin
// the worker on a job.
type blockingModel struct {
	release chan struct{}
	err     error
}

func (m *blockingModel) Train(samples []TrainingSample) error {
	<-m.release
	return m.err
}

func (m *blockingModel) Predict(features []float64) (*Prediction, error) {
	return nil, ErrNotTrained
}

func waitResult(t *testing.T, tr *Trainer) TrainResult {
	t.Helper()
	select {
	case res := <-tr.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("no training result arrived")
		return TrainResult{}
	}
}

func TestTrainer_RunsJobAndReportsResult(t *testing.T) {
	model := NewNearestCentroid(DefaultWeights)
	tr := NewTrainer(model, time.Minute, 1)
	defer tr.Close()

	id, err := tr.Submit([]TrainingSample{labeledSample(eeg.EventStop, 50)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("submit returned the nil job id")
	}

	res := waitResult(t, tr)
	if res.JobID != id {
		t.Fatalf("result for job %s, want %s", res.JobID, id)
	}
	if res.Err != nil {
		t.Fatalf("training failed: %v", res.Err)
	}

	// The model must actually be trained afterwards.
	if _, err := model.Predict(make([]float64, FeatureCount)); err != nil {
		t.Fatalf("model still untrained after job: %v", err)
	}
}

func TestTrainer_ReportsTrainingError(t *testing.T) {
	model := &blockingModel{release: make(chan struct{}), err: errors.New("boom")}
	close(model.release)

	tr := NewTrainer(model, time.Minute, 1)
	defer tr.Close()

	if _, err := tr.Submit(nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := waitResult(t, tr)
	if res.Err == nil || res.Err.Error() != "boom" {
		t.Fatalf("err=%v, want boom", res.Err)
	}
}

func TestTrainer_BusyWhenQueueFull(t *testing.T) {
	model := &blockingModel{release: make(chan struct{})}
	tr := NewTrainer(model, time.Minute, 1)
	defer tr.Close()
	defer close(model.release)

	// First job occupies the worker, second fills the queue. Submission
	// order is synchronous, so only the third can be rejected.
	if _, err := tr.Submit(nil); err != nil {
		t.Fatalf("submit 1: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := tr.Submit(nil)
		if errors.Is(err, ErrTrainerBusy) {
			return
		}
		if err != nil {
			t.Fatalf("unexpected submit error: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("queue never filled up")
		}
	}
}

func TestTrainer_JobTimesOut(t *testing.T) {
	model := &blockingModel{release: make(chan struct{})}
	defer close(model.release)

	tr := NewTrainer(model, 50*time.Millisecond, 1)
	defer tr.Close()

	if _, err := tr.Submit(nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res := waitResult(t, tr)
	if res.Err == nil {
		t.Fatal("expected a timeout error")
	}
	if res.Took < 50*time.Millisecond {
		t.Fatalf("result arrived before the timeout: %s", res.Took)
	}
}
