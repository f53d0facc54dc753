// Package audio implements the PCM codec used on every media path: linear
// resampling between the canonical sample rates, base64 framing, RMS energy
// and the energy-threshold voice-activity test.
//
// All PCM in this package is 16-bit signed little-endian mono.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrBadAudioFrame is returned for frames that cannot be decoded: invalid
// base64 payloads or odd-length PCM byte slices. Callers drop the frame and
// count it; the error never propagates past the carrier adapter.
var ErrBadAudioFrame = errors.New("audio: bad audio frame")

// Canonical sample rates used across the system.
const (
	RateTelephonyIn  = 44100 // telephony carrier inbound LINEAR16
	RateTelephonyOut = 8000  // telephony carrier outbound reverse-media
	RateBrowser      = 48000 // browser carrier, both directions
	RateInternal     = 16000 // canonical in-core rate, also filler assets
	RateModelOut     = 24000 // model output audio chunks
)

// DefaultVoiceThreshold is the default voice-activity RMS threshold on the
// absolute -32768..32767 sample scale.
const DefaultVoiceThreshold = 20.0

// Resample converts mono 16-bit PCM from srcRate to dstRate using
// piecewise-linear interpolation. The output length is
// floor(len(input) * dstRate / srcRate); positions between samples
// interpolate, with the nearest-lower source index as the anchor.
//
// Because the length floors in each direction, a round trip A->B->A keeps
// the length within one sample only when the input length is a multiple of
// the rate ratio; short unaligned frames can lose up to srcRate/dstRate
// samples. Media paths here move fixed 20 ms frames, which are aligned for
// every canonical rate pair.
func Resample(input []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(input) == 0 {
		out := make([]int16, len(input))
		copy(out, input)
		return out
	}

	outputLen := len(input) * dstRate / srcRate
	output := make([]int16, outputLen)
	ratio := float64(srcRate) / float64(dstRate)

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx+1 < len(input) {
			s0 := float64(input[srcIdx])
			s1 := float64(input[srcIdx+1])
			output[i] = int16(s0 + (s1-s0)*frac)
		} else if srcIdx < len(input) {
			output[i] = input[srcIdx]
		}
	}

	return output
}

// ResampleBytes is Resample on a raw little-endian byte payload.
func ResampleBytes(data []byte, srcRate, dstRate int) ([]byte, error) {
	pcm, err := BytesToPCM(data)
	if err != nil {
		return nil, err
	}
	return PCMToBytes(Resample(pcm, srcRate, dstRate)), nil
}

// BytesToPCM converts a little-endian byte slice to int16 PCM samples.
func BytesToPCM(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: odd PCM length %d", ErrBadAudioFrame, len(data))
	}
	pcm := make([]int16, len(data)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return pcm, nil
}

// PCMToBytes converts int16 PCM samples to a little-endian byte slice.
func PCMToBytes(pcm []int16) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// RMS computes the root-mean-square energy of the samples on the absolute
// -32768..32767 scale. Thresholds configured against this function are
// reproducible across carriers and sample rates.
func RMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

// IsVoiceActive reports whether the frame's RMS energy exceeds threshold.
func IsVoiceActive(pcm []int16, threshold float64) bool {
	return RMS(pcm) > threshold
}

// EncodeBase64 encodes raw bytes with standard base64.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a standard-base64 payload, mapping decode failures to
// ErrBadAudioFrame.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAudioFrame, err)
	}
	return data, nil
}
