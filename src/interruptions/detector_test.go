package interruptions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDetectorFiresAfterSustainedEnergy(t *testing.T) {
	d := NewDetector(&DetectorParams{Threshold: 40, Hold: 300 * time.Millisecond})
	start := time.Now()

	assert.False(t, d.AppendEnergy(100, start))
	assert.False(t, d.AppendEnergy(100, start.Add(150*time.Millisecond)))
	assert.True(t, d.AppendEnergy(100, start.Add(320*time.Millisecond)))
}

func TestDetectorResetsOnQuietFrame(t *testing.T) {
	d := NewDetector(&DetectorParams{Threshold: 40, Hold: 300 * time.Millisecond})
	start := time.Now()

	d.AppendEnergy(100, start)
	d.AppendEnergy(10, start.Add(150*time.Millisecond)) // dips below threshold
	assert.False(t, d.AppendEnergy(100, start.Add(320*time.Millisecond)))
	// The window restarted at 320 ms; firing needs 300 ms more.
	assert.False(t, d.AppendEnergy(100, start.Add(500*time.Millisecond)))
	assert.True(t, d.AppendEnergy(100, start.Add(650*time.Millisecond)))
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(&DetectorParams{Threshold: 40, Hold: 300 * time.Millisecond})
	start := time.Now()

	d.AppendEnergy(100, start)
	d.Reset()
	assert.False(t, d.AppendEnergy(100, start.Add(320*time.Millisecond)))
}

func TestDetectorDefaults(t *testing.T) {
	d := NewDetector(nil)
	start := time.Now()
	// Default threshold is 20 on the absolute scale; quiet frames never fire.
	assert.False(t, d.AppendEnergy(5, start))
	assert.False(t, d.AppendEnergy(5, start.Add(time.Second)))
}

func TestSilenceTrackerUtteranceEnded(t *testing.T) {
	tr := NewSilenceTracker(20)
	start := time.Now()

	assert.False(t, tr.UtteranceEnded(start, 600*time.Millisecond))

	tr.ObserveEnergy(100, start)
	assert.True(t, tr.SpeechSeen())
	assert.False(t, tr.UtteranceEnded(start.Add(300*time.Millisecond), 600*time.Millisecond))

	tr.ObserveEnergy(5, start.Add(400*time.Millisecond)) // silence does not move lastVoice
	assert.True(t, tr.UtteranceEnded(start.Add(700*time.Millisecond), 600*time.Millisecond))
}

func TestSilenceTrackerSilentFor(t *testing.T) {
	tr := NewSilenceTracker(20)
	start := time.Now()

	tr.ObserveEnergy(5, start)
	// No voice ever: the window starts at the first frame.
	assert.Equal(t, 10*time.Second, tr.SilentFor(start.Add(10*time.Second)))

	tr.ObserveEnergy(100, start.Add(12*time.Second))
	assert.Equal(t, 3*time.Second, tr.SilentFor(start.Add(15*time.Second)))
}

func TestSilenceTrackerReset(t *testing.T) {
	tr := NewSilenceTracker(20)
	start := time.Now()

	tr.ObserveEnergy(100, start)
	tr.Reset()
	assert.False(t, tr.SpeechSeen())
	assert.False(t, tr.UtteranceEnded(start.Add(time.Second), 600*time.Millisecond))
}
