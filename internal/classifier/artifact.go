package classifier

// #region imports
import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/danielpatrickdp/behavior-watch/go-engine/internal/feature"
)

// #endregion

// #region errors

// ErrNotLoaded means no classifier artifact is attached. The engine must
// refuse to score, never guess.
var ErrNotLoaded = errors.New("classifier not loaded")

// ErrAlignment means the artifact's trained feature ordering does not match
// the loaded feature set. Scoring with misaligned weights would be silently
// wrong, so this is always a hard error.
var ErrAlignment = errors.New("classifier feature alignment mismatch")

// #endregion

// #region wire-format

// artifactFile is the serialized training-job output: linear model
// parameters, an optional attribution explainer, and a snapshot of the
// feature set the model was trained against.
type artifactFile struct {
	Model struct {
		Weights           []float64 `json:"weights"`
		Bias              float64   `json:"bias"`
		DecisionThreshold float64   `json:"decision_threshold"`
	} `json:"model"`
	Explainer *struct {
		Baseline []float64 `json:"baseline"`
	} `json:"explainer,omitempty"`
	Features []feature.Descriptor `json:"features"`
	Metadata map[string]any       `json:"metadata,omitempty"`
}

// #endregion

// #region artifact

// Artifact is a trained linear decision model. Immutable after load;
// multiple engines may share one artifact read-only.
type Artifact struct {
	weights           []float64
	bias              float64
	decisionThreshold float64
	baseline          []float64 // nil = no explainer attached
	snapshot          []feature.Descriptor
	fingerprint       string
	metadata          map[string]any
}

// Load reads and validates a classifier artifact from disk.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier artifact %s: %w", path, err)
	}

	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse classifier artifact %s: %w", path, err)
	}
	if len(file.Model.Weights) == 0 {
		return nil, fmt.Errorf("classifier artifact %s has no weights", path)
	}
	if len(file.Features) == 0 {
		return nil, fmt.Errorf("classifier artifact %s has no feature snapshot", path)
	}
	if len(file.Model.Weights) != len(file.Features) {
		return nil, fmt.Errorf("%w: artifact %s has %d weights for %d features",
			ErrAlignment, path, len(file.Model.Weights), len(file.Features))
	}

	threshold := file.Model.DecisionThreshold
	if threshold == 0 {
		threshold = 0.5
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("classifier artifact %s: decision threshold %.3f out of [0,1]", path, threshold)
	}

	a := &Artifact{
		weights:           file.Model.Weights,
		bias:              file.Model.Bias,
		decisionThreshold: threshold,
		snapshot:          file.Features,
		fingerprint:       feature.FingerprintOf(file.Features),
		metadata:          file.Metadata,
	}

	if file.Explainer != nil {
		if len(file.Explainer.Baseline) != len(a.weights) {
			// Attribution is best-effort: a bad explainer never blocks scoring.
			a.baseline = nil
		} else {
			a.baseline = file.Explainer.Baseline
		}
	}

	return a, nil
}

// #endregion

// #region validate

// ValidateAgainst checks the artifact's trained feature snapshot against an
// independently loaded feature set. Mismatched length or ordering fails
// closed with ErrAlignment.
func (a *Artifact) ValidateAgainst(set *feature.Set) error {
	if set.Len() != len(a.weights) {
		return fmt.Errorf("%w: feature set has %d features, artifact trained on %d",
			ErrAlignment, set.Len(), len(a.weights))
	}
	if set.Fingerprint() != a.fingerprint {
		return fmt.Errorf("%w: feature set fingerprint %.12s does not match trained fingerprint %.12s",
			ErrAlignment, set.Fingerprint(), a.fingerprint)
	}
	return nil
}

// #endregion

// #region score

// ProbabilityBad applies the linear model and logistic link to a feature
// vector in the trained ordering, returning P(bad).
func (a *Artifact) ProbabilityBad(x []float64) (float64, error) {
	if len(x) != len(a.weights) {
		return 0, fmt.Errorf("%w: vector has %d entries, artifact trained on %d",
			ErrAlignment, len(x), len(a.weights))
	}
	z := a.bias
	for i, w := range a.weights {
		z += w * x[i]
	}
	return sigmoid(z), nil
}

// DecisionThreshold returns the raw class boundary (typically 0.5).
func (a *Artifact) DecisionThreshold() float64 { return a.decisionThreshold }

// Fingerprint returns the content hash of the trained feature snapshot.
func (a *Artifact) Fingerprint() string { return a.fingerprint }

// Metadata returns the free-form training metadata.
func (a *Artifact) Metadata() map[string]any { return a.metadata }

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}

// #endregion

// #region contributions

// HasExplainer reports whether a linear attribution explainer is attached.
func (a *Artifact) HasExplainer() bool { return a.baseline != nil }

// Contributions computes per-feature signed attribution values for one
// input: weight * (activation - baseline), positive pushing toward bad.
// Returned in trained feature order, unranked.
func (a *Artifact) Contributions(x []float64) ([]float64, error) {
	if a.baseline == nil {
		return nil, fmt.Errorf("no attribution explainer attached")
	}
	if len(x) != len(a.weights) {
		return nil, fmt.Errorf("%w: vector has %d entries, artifact trained on %d",
			ErrAlignment, len(x), len(a.weights))
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = a.weights[i] * (x[i] - a.baseline[i])
	}
	return out, nil
}

// #endregion
