// Package interruptions decides when inbound audio should barge in on the
// agent. Detection is volume-based: the RMS energy of incoming frames must
// stay above a configured threshold for a sustained hold window before the
// detector fires.
package interruptions

import (
	"sync"
	"time"

	"github.com/square-key-labs/voicecore-ai/src/audio"
)

// DetectorParams holds configuration for volume-based interruption detection.
type DetectorParams struct {
	Threshold float64       // RMS threshold on the absolute sample scale (default 20)
	Hold      time.Duration // sustained time above threshold before firing (default 300ms)
}

// Detector tracks inbound frame energy while the agent is speaking and
// reports when the user has been loud for long enough to count as a barge-in.
type Detector struct {
	mu        sync.Mutex
	threshold float64
	hold      time.Duration

	aboveSince time.Time
	active     bool
}

// NewDetector creates a volume-based interruption detector.
func NewDetector(params *DetectorParams) *Detector {
	if params == nil {
		params = &DetectorParams{}
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = audio.DefaultVoiceThreshold
	}
	hold := params.Hold
	if hold <= 0 {
		hold = 300 * time.Millisecond
	}
	return &Detector{threshold: threshold, hold: hold}
}

// Append feeds one inbound frame observed at the given time and returns
// whether the sustained-energy condition now holds.
func (d *Detector) Append(pcm []int16, at time.Time) bool {
	return d.AppendEnergy(audio.RMS(pcm), at)
}

// AppendEnergy is Append for carriers that report a precomputed energy level.
func (d *Detector) AppendEnergy(energy float64, at time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if energy <= d.threshold {
		d.active = false
		return false
	}

	if !d.active {
		d.active = true
		d.aboveSince = at
		return false
	}

	return at.Sub(d.aboveSince) >= d.hold
}

// Reset clears the sustained-energy state. Called on every state transition
// so a barge-in window never spans turns.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = false
}
