package facegate

import (
	"context"
	"errors"
	"time"

	"github.com/securefs/facegate/biometric"
)

type sessionState uint8

const (
	sessionIdle sessionState = iota
	sessionSampling
	sessionMatched
	sessionAttemptsExhausted
	sessionTimedOut
	sessionCancelled
)

func (s sessionState) String() string {
	switch s {
	case sessionIdle:
		return "idle"
	case sessionSampling:
		return "sampling"
	case sessionMatched:
		return "matched"
	case sessionAttemptsExhausted:
		return "attempts_exhausted"
	case sessionTimedOut:
		return "timed_out"
	case sessionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var errSessionConsumed = errors.New("verification session already consumed")

// verificationSession runs one bounded biometric sampling loop. A session is
// single use: the engine builds a fresh one per Authenticate call, so the
// attempt counter and deadline never leak across calls.
type verificationSession struct {
	matcher     *biometric.Matcher
	reference   biometric.Encoding
	source      FrameSource
	maxAttempts int
	timeout     time.Duration

	state    sessionState
	attempts int
	distance float64
}

func newVerificationSession(
	matcher *biometric.Matcher,
	reference biometric.Encoding,
	source FrameSource,
	cfg BiometricConfig,
) *verificationSession {
	return &verificationSession{
		matcher:     matcher,
		reference:   reference,
		source:      source,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.SampleTimeout,
		state:       sessionIdle,
	}
}

type frameResult struct {
	candidates []biometric.Encoding
	err        error
}

// Run drives the session to a terminal state. Every frame pull consumes one
// attempt whether it yielded candidates, nothing, or an error; the first
// candidate within the threshold ends the session immediately. Cancellation
// of the caller's ctx and expiry of the session deadline are distinguished
// in the terminal state.
func (s *verificationSession) Run(ctx context.Context) (sessionState, error) {
	if s.state != sessionIdle {
		return s.state, errSessionConsumed
	}
	s.state = sessionSampling

	sessionCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for s.attempts < s.maxAttempts {
		if done := s.checkDone(ctx, sessionCtx); done {
			return s.state, nil
		}

		result, ok := s.pullFrame(ctx, sessionCtx)
		if !ok {
			return s.state, nil
		}
		s.attempts++

		if result.err != nil {
			// A failing source consumes its attempt and the loop moves on;
			// persistent failure exhausts the budget.
			continue
		}

		for _, cand := range result.candidates {
			matched, dist, err := s.matcher.Match(s.reference, cand)
			if err != nil {
				continue
			}
			if matched {
				s.distance = dist
				s.state = sessionMatched
				return s.state, nil
			}
		}
	}

	s.state = sessionAttemptsExhausted
	return s.state, nil
}

// pullFrame runs NextFrame in its own goroutine so a stalling source cannot
// outlive the session deadline. The abandoned goroutine drains into a
// buffered channel and exits on its own.
func (s *verificationSession) pullFrame(parent, sessionCtx context.Context) (frameResult, bool) {
	ch := make(chan frameResult, 1)
	go func() {
		candidates, err := s.source.NextFrame(sessionCtx)
		ch <- frameResult{candidates: candidates, err: err}
	}()

	select {
	case result := <-ch:
		return result, true
	case <-sessionCtx.Done():
		s.finishOnDone(parent)
		return frameResult{}, false
	}
}

func (s *verificationSession) checkDone(parent, sessionCtx context.Context) bool {
	select {
	case <-sessionCtx.Done():
		s.finishOnDone(parent)
		return true
	default:
		return false
	}
}

func (s *verificationSession) finishOnDone(parent context.Context) {
	if parent.Err() != nil {
		s.state = sessionCancelled
		return
	}
	s.state = sessionTimedOut
}

// Attempts reports how many frame pulls the session consumed.
func (s *verificationSession) Attempts() int {
	return s.attempts
}

// Distance reports the matched distance; meaningful only in sessionMatched.
func (s *verificationSession) Distance() float64 {
	return s.distance
}
