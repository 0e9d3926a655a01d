package biometric

import (
	"errors"
	"math"
)

// ErrThresholdRange is returned by NewMatcher for a threshold outside [0,1].
var ErrThresholdRange = errors.New("match threshold must be within [0,1]")

// Matcher scores candidate encodings against a reference. It is stateless
// and side-effect free: equal inputs always produce equal distances.
type Matcher struct {
	threshold float64
}

func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold < 0 || threshold > 1 || math.IsNaN(threshold) {
		return nil, ErrThresholdRange
	}
	return &Matcher{threshold: threshold}, nil
}

// Threshold reports the configured acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Distance returns the normalized Euclidean distance between ref and cand,
// clamped into [0,1]. Identical encodings are at distance 0.
func (m *Matcher) Distance(ref, cand Encoding) (float64, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	if err := cand.Validate(); err != nil {
		return 0, err
	}

	var sum float64
	for i := range ref {
		d := ref[i] - cand[i]
		sum += d * d
	}

	dist := math.Sqrt(sum)
	if dist > 1 {
		dist = 1
	}
	return dist, nil
}

// Match reports whether cand is within the threshold of ref, along with the
// measured distance. A distance exactly at the threshold is a match.
func (m *Matcher) Match(ref, cand Encoding) (bool, float64, error) {
	dist, err := m.Distance(ref, cand)
	if err != nil {
		return false, 0, err
	}
	return dist <= m.threshold, dist, nil
}
