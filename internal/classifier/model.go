package classifier

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/neurodeck/mindlink/internal/eeg"
)

// ErrNotTrained is returned by Predict before a successful Train.
// Callers treat it as "no prediction", never as a pipeline failure.
var ErrNotTrained = errors.New("classifier: model not trained")

// Prediction is one classifier verdict.
type Prediction struct {
	Event         eeg.Event
	Confidence    float64
	Probabilities map[eeg.Event]float64
}

// Classifier is the trainable capability the core consumes. Train
// replaces the model's state from labeled samples; Predict classifies
// one feature vector built by Features.
type Classifier interface {
	Train(samples []TrainingSample) error
	Predict(features []float64) (*Prediction, error)
}

// NearestCentroid is the default model: per-label mean feature
// vectors, with probabilities derived from inverse distances. It is
// deliberately simple; anything heavier plugs in behind the
// Classifier interface.
type NearestCentroid struct {
	weights Weights

	mu        sync.RWMutex
	centroids map[eeg.Event][]float64
}

// NewNearestCentroid returns an untrained model using the given
// feature weights.
func NewNearestCentroid(w Weights) *NearestCentroid {
	return &NearestCentroid{weights: w}
}

// Train recomputes the per-label centroids. Samples without a valid
// label are rejected: they should have been filtered at import time.
func (nc *NearestCentroid) Train(samples []TrainingSample) error {
	if len(samples) == 0 {
		return errors.New("classifier: no training samples")
	}

	sums := make(map[eeg.Event][]float64)
	counts := make(map[eeg.Event]int)

	for _, s := range samples {
		if !s.Event.Valid() {
			return fmt.Errorf("classifier: unlabeled training sample")
		}
		features := Features(s.Sample, nc.weights)
		sum, ok := sums[s.Event]
		if !ok {
			sum = make([]float64, FeatureCount)
			sums[s.Event] = sum
		}
		for i, v := range features {
			sum[i] += v
		}
		counts[s.Event]++
	}

	centroids := make(map[eeg.Event][]float64, len(sums))
	for ev, sum := range sums {
		centroid := make([]float64, FeatureCount)
		for i, v := range sum {
			centroid[i] = v / float64(counts[ev])
		}
		centroids[ev] = centroid
	}

	nc.mu.Lock()
	nc.centroids = centroids
	nc.mu.Unlock()
	return nil
}

// Predict classifies one feature vector. Probabilities are normalized
// inverse distances to each label centroid; confidence is the winning
// probability.
func (nc *NearestCentroid) Predict(features []float64) (*Prediction, error) {
	nc.mu.RLock()
	centroids := nc.centroids
	nc.mu.RUnlock()

	if len(centroids) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != FeatureCount {
		return nil, fmt.Errorf("classifier: want %d features, got %d", FeatureCount, len(features))
	}

	const eps = 1e-9

	inv := make(map[eeg.Event]float64, len(centroids))
	var total float64
	for ev, centroid := range centroids {
		inv[ev] = 1 / (distance(features, centroid) + eps)
		total += inv[ev]
	}

	probs := make(map[eeg.Event]float64, len(inv))
	best := eeg.EventNone
	bestProb := -1.0
	// Walk labels in canonical order so equal probabilities resolve
	// deterministically.
	for _, ev := range eeg.Events {
		w, ok := inv[ev]
		if !ok {
			continue
		}
		p := w / total
		probs[ev] = p
		if p > bestProb {
			best = ev
			bestProb = p
		}
	}

	return &Prediction{Event: best, Confidence: bestProb, Probabilities: probs}, nil
}

func distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
