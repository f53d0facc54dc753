package interruptions

import (
	"sync"
	"time"

	"github.com/square-key-labs/voicecore-ai/src/audio"
)

// SilenceTracker watches inbound energy while the agent is listening. It
// answers two questions the state machine asks on every frame: has the user
// finished their utterance (speech followed by a silence gap), and has the
// line been dead long enough to end the call.
type SilenceTracker struct {
	mu        sync.Mutex
	threshold float64

	speechSeen bool
	lastVoice  time.Time
	lastAudio  time.Time
	started    time.Time
}

// NewSilenceTracker creates a tracker with the given voice-activity
// threshold on the absolute sample scale.
func NewSilenceTracker(threshold float64) *SilenceTracker {
	if threshold <= 0 {
		threshold = audio.DefaultVoiceThreshold
	}
	return &SilenceTracker{threshold: threshold}
}

// Observe feeds one inbound frame observed at the given time.
func (t *SilenceTracker) Observe(pcm []int16, at time.Time) {
	t.ObserveEnergy(audio.RMS(pcm), at)
}

// ObserveEnergy is Observe with a precomputed energy level.
func (t *SilenceTracker) ObserveEnergy(energy float64, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started.IsZero() {
		t.started = at
	}
	t.lastAudio = at
	if energy > t.threshold {
		t.speechSeen = true
		t.lastVoice = at
	}
}

// UtteranceEnded reports whether speech was observed and has now been
// followed by at least gap of silence.
func (t *SilenceTracker) UtteranceEnded(now time.Time, gap time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speechSeen && now.Sub(t.lastVoice) >= gap
}

// SilentFor returns how long the line has been without voice activity. When
// no voice was ever observed, the window starts at the first frame.
func (t *SilenceTracker) SilentFor(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastVoice.IsZero() {
		return now.Sub(t.lastVoice)
	}
	if !t.started.IsZero() {
		return now.Sub(t.started)
	}
	return 0
}

// SpeechSeen reports whether any voice activity was observed since the last
// Reset.
func (t *SilenceTracker) SpeechSeen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.speechSeen
}

// Reset clears per-utterance state while keeping the overall silence window.
func (t *SilenceTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechSeen = false
}
