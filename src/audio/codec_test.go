package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n int, freq float64, rate int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResampleOutputLength(t *testing.T) {
	pairs := []struct{ src, dst int }{
		{RateTelephonyIn, RateInternal},
		{RateBrowser, RateInternal},
		{RateModelOut, RateTelephonyOut},
		{RateModelOut, RateBrowser},
		{RateTelephonyOut, RateInternal},
		{RateInternal, RateTelephonyOut},
	}
	for _, p := range pairs {
		in := sine(p.src/10, 440, p.src, 8000) // 100 ms
		out := Resample(in, p.src, p.dst)
		assert.Equal(t, len(in)*p.dst/p.src, len(out), "pair %d->%d", p.src, p.dst)
	}
}

func TestResampleRoundTripLength(t *testing.T) {
	rates := []int{8000, 16000, 24000, 44100, 48000}
	for _, a := range rates {
		for _, b := range rates {
			if a == b {
				continue
			}
			in := sine(a/5, 300, a, 5000) // 200 ms
			back := Resample(Resample(in, a, b), b, a)
			diff := len(in) - len(back)
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff, 1, "round trip %d->%d->%d", a, b, a)
		}
	}
}

func TestResampleRoundTripUnalignedLength(t *testing.T) {
	// Flooring in each direction: 10 samples at 44.1 kHz come back as 8.
	in := sine(10, 300, 44100, 5000)
	back := Resample(Resample(in, 44100, 16000), 16000, 44100)
	assert.Len(t, back, 8)
}

func TestResampleIdentity(t *testing.T) {
	in := sine(320, 440, RateInternal, 8000)
	out := Resample(in, RateInternal, RateInternal)
	assert.Equal(t, in, out)
}

func TestResampleEmptyInput(t *testing.T) {
	assert.Empty(t, Resample(nil, 44100, 16000))
}

func TestBytesToPCMOddLength(t *testing.T) {
	_, err := BytesToPCM([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrBadAudioFrame)
}

func TestPCMBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768, 1234}
	out, err := BytesToPCM(PCMToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBase64RoundTrip(t *testing.T) {
	raw := []byte{0, 255, 1, 2, 3, 128}
	got, err := DecodeBase64(EncodeBase64(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodeBase64Invalid(t *testing.T) {
	_, err := DecodeBase64("!!not base64!!")
	assert.Error(t, err)
}

func TestRMS(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS([]int16{0, 0, 0}))
	assert.InDelta(t, 1000, RMS([]int16{1000, -1000, 1000, -1000}), 0.01)
}

func TestIsVoiceActive(t *testing.T) {
	loud := []int16{500, -500, 500, -500}
	quiet := []int16{3, -3, 3, -3}
	assert.True(t, IsVoiceActive(loud, DefaultVoiceThreshold))
	assert.False(t, IsVoiceActive(quiet, DefaultVoiceThreshold))
}
