// Package classifier holds the trainable event-classifier boundary:
// feature extraction, the training-sample set, a background trainer
// worker, and a small default model. Training labels always originate
// from manual or rule-based labeling; feeding Predict output back into
// the training set would reinforce the model's own errors and is
// deliberately unsupported by this API.
package classifier

import "github.com/neurodeck/mindlink/internal/eeg"

// FeatureCount is the fixed feature-vector dimensionality.
const FeatureCount = 10

// Weights scales each feature before it reaches the model. The
// defaults damp attention/meditation so the derived indices do not
// dominate the raw band powers.
type Weights struct {
	Attention  float64
	Meditation float64
	Bands      float64
}

// DefaultWeights limits attention/meditation influence to half.
var DefaultWeights = Weights{Attention: 0.5, Meditation: 0.5, Bands: 1.0}

// Features converts a sample into the fixed-order 10-dimensional
// feature vector: attention, meditation, then the eight band powers.
// Signal quality is excluded: it measures electrode contact, not
// intent.
func Features(s eeg.Sample, w Weights) []float64 {
	return []float64{
		float64(s.Attention) * w.Attention,
		float64(s.Meditation) * w.Meditation,
		float64(s.Delta) * w.Bands,
		float64(s.Theta) * w.Bands,
		float64(s.LowAlpha) * w.Bands,
		float64(s.HighAlpha) * w.Bands,
		float64(s.LowBeta) * w.Bands,
		float64(s.HighBeta) * w.Bands,
		float64(s.LowGamma) * w.Bands,
		float64(s.HighGamma) * w.Bands,
	}
}
