package evidence

import "fmt"

// Weights is the tunable, unit-summed weight vector for the five
// evidence axes (spec.md §9 open question, resolved as a single
// configured vector rather than per-strategy literals).
type Weights struct {
	Spatial  float64
	Sequence float64
	Visual   float64
	DOM      float64
	History  float64
}

// DefaultWeights matches spec.md §4.4's "typical weight" column.
func DefaultWeights() Weights {
	w := Weights{Spatial: 0.20, Sequence: 0.15, Visual: 0.25, DOM: 0.25, History: 0.15}
	if err := w.Validate(); err != nil {
		panic(err)
	}
	return w
}

// Validate reports whether the weights sum to 1.0 within epsilon. It
// returns an error; DefaultWeights and New panic on that error, so
// invalid weights fail at construction, never during scoring.
func (w Weights) Validate() error {
	sum := w.Spatial + w.Sequence + w.Visual + w.DOM + w.History
	const epsilon = 1e-9
	if sum < 1-epsilon || sum > 1+epsilon {
		return fmt.Errorf("evidence: weights must sum to 1.0, got %v", sum)
	}
	return nil
}
