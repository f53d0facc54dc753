// Package call runs one live call: a supervisor goroutine owning the carrier
// connection, the model session, the per-call analyzers and the state
// machine, with all policy decisions made in a single select loop.
package call

import "time"

// State is the call state machine position.
type State string

const (
	// StateIdle is pre-answer: resources are warm, no media yet.
	StateIdle State = "IDLE"
	// StateListening collects user speech until a silence gap ends the
	// utterance.
	StateListening State = "LISTENING"
	// StateThinking awaits the model's first audio for the turn.
	StateThinking State = "THINKING"
	// StateSpeaking streams model audio to the carrier.
	StateSpeaking State = "SPEAKING"
	// StateRecovery masks model latency with pre-recorded fillers.
	StateRecovery State = "RECOVERY"
	// StateEnding tears down sockets and persists the call record.
	StateEnding State = "CALL_ENDING"
	// StateEnded is terminal.
	StateEnded State = "ENDED"
)

// Timings are the supervisor's timer durations, overridable in tests.
type Timings struct {
	// UtteranceGap is the silence after speech that ends the user's turn.
	UtteranceGap time.Duration
	// HedgeDelay is how long THINKING tolerates silence before a filler.
	HedgeDelay time.Duration
	// ThinkTimeout is the hard ceiling on waiting for model audio.
	ThinkTimeout time.Duration
	// FrameInterval paces filler playback and periodic guard checks.
	FrameInterval time.Duration
	// TeardownGrace is the hard deadline on cooperative teardown.
	TeardownGrace time.Duration
}

// DefaultTimings returns the production timer values.
func DefaultTimings() Timings {
	return Timings{
		UtteranceGap:  600 * time.Millisecond,
		HedgeDelay:    400 * time.Millisecond,
		ThinkTimeout:  3 * time.Second,
		FrameInterval: 20 * time.Millisecond,
		TeardownGrace: 2 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	def := DefaultTimings()
	if t.UtteranceGap == 0 {
		t.UtteranceGap = def.UtteranceGap
	}
	if t.HedgeDelay == 0 {
		t.HedgeDelay = def.HedgeDelay
	}
	if t.ThinkTimeout == 0 {
		t.ThinkTimeout = def.ThinkTimeout
	}
	if t.FrameInterval == 0 {
		t.FrameInterval = def.FrameInterval
	}
	if t.TeardownGrace == 0 {
		t.TeardownGrace = def.TeardownGrace
	}
	return t
}

// maxFillersPerGap bounds consecutive fillers in one thinking gap; after the
// last one the agent asks the caller to repeat instead of stalling further.
const maxFillersPerGap = 3
