package classifier

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/neurodeck/mindlink/internal/eeg"
	"github.com/neurodeck/mindlink/internal/history"
)

// TrainingSample is one manually labeled sample.
type TrainingSample struct {
	eeg.Sample
	Event     eeg.Event `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// TrainingSet collects labeled samples for the trainer. It persists to
// a JSON file so sets survive restarts.
type TrainingSet struct {
	mu      sync.RWMutex
	samples []TrainingSample
}

// NewTrainingSet returns an empty set.
func NewTrainingSet() *TrainingSet {
	return &TrainingSet{}
}

// Add appends one labeled sample. Unlabeled samples are dropped with a
// warning: training labels must come from manual labeling.
func (ts *TrainingSet) Add(s TrainingSample) {
	if !s.Event.Valid() {
		log.Printf("classifier: dropping unlabeled training sample")
		return
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	ts.mu.Lock()
	ts.samples = append(ts.samples, s)
	ts.mu.Unlock()
}

// Samples returns a copy of the set.
func (ts *TrainingSet) Samples() []TrainingSample {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]TrainingSample, len(ts.samples))
	copy(out, ts.samples)
	return out
}

// Count returns the number of collected samples.
func (ts *TrainingSet) Count() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.samples)
}

// Clear removes all samples.
func (ts *TrainingSet) Clear() {
	ts.mu.Lock()
	ts.samples = nil
	ts.mu.Unlock()
}

// Stats returns the per-label sample counts.
func (ts *TrainingSet) Stats() map[eeg.Event]int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	stats := make(map[eeg.Event]int, len(eeg.Events))
	for _, ev := range eeg.Events {
		stats[ev] = 0
	}
	for _, s := range ts.samples {
		stats[s.Event]++
	}
	return stats
}

// CanTrain reports whether every label has at least minPerClass
// samples, with a reason when not.
func (ts *TrainingSet) CanTrain(minPerClass int) (bool, string) {
	if ts.Count() == 0 {
		return false, "no training data available"
	}
	for _, ev := range eeg.Events {
		if n := ts.Stats()[ev]; n < minPerClass {
			return false, fmt.Sprintf("not enough samples for %q: %d < %d", string(ev), n, minPerClass)
		}
	}
	return true, "ready to train"
}

// ImportFromHistory copies labeled history records into the set,
// skipping unlabeled ones. Returns (imported, skipped).
func (ts *TrainingSet) ImportFromHistory(records []history.Record) (int, int) {
	imported, skipped := 0, 0
	for _, r := range records {
		if !r.EventName.Valid() {
			skipped++
			continue
		}
		ts.Add(TrainingSample{Sample: r.Sample, Event: r.EventName, Timestamp: time.Now()})
		imported++
	}
	log.Printf("classifier: imported %d samples from history, skipped %d", imported, skipped)
	return imported, skipped
}

// Load replaces the set from a JSON file. A missing file leaves the
// set empty.
func (ts *TrainingSet) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("classifier: no training data at %s, starting empty", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("classifier: read %s: %w", path, err)
	}

	var samples []TrainingSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return fmt.Errorf("classifier: parse %s: %w", path, err)
	}

	ts.mu.Lock()
	ts.samples = samples
	ts.mu.Unlock()
	log.Printf("classifier: loaded %d training samples from %s", len(samples), path)
	return nil
}

// Save writes the set as JSON.
func (ts *TrainingSet) Save(path string) error {
	samples := ts.Samples()
	if len(samples) == 0 {
		log.Println("classifier: no training data to save")
		return nil
	}

	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return fmt.Errorf("classifier: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("classifier: write %s: %w", path, err)
	}
	log.Printf("classifier: saved %d training samples to %s", len(samples), path)
	return nil
}
