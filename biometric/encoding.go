// Package biometric defines the encoding vector exchanged with frame sources
// and the stateless matcher that scores candidates against an enrolled
// reference. Feature extraction lives outside this module; anything that can
// produce a fixed-length float vector can participate.
package biometric

import (
	"errors"
	"fmt"
	"math"
)

// EncodingLength is the required element count of every encoding.
const EncodingLength = 128

// Encoding is one biometric feature vector.
type Encoding []float64

var (
	// ErrEncodingLength is returned for a nil or wrong-length encoding.
	ErrEncodingLength = errors.New("encoding must have exactly 128 elements")
	// ErrEncodingValue is returned when an encoding contains NaN or Inf.
	ErrEncodingValue = errors.New("encoding contains non-finite values")
)

// Validate rejects encodings the matcher cannot score deterministically.
func (e Encoding) Validate() error {
	if len(e) != EncodingLength {
		return fmt.Errorf("%w: got %d", ErrEncodingLength, len(e))
	}
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrEncodingValue
		}
	}
	return nil
}

// Clone returns an independent copy.
func (e Encoding) Clone() Encoding {
	if e == nil {
		return nil
	}
	out := make(Encoding, len(e))
	copy(out, e)
	return out
}
