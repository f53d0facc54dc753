package carriers

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/frames"
)

func TestBrowserOnConnectAnswers(t *testing.T) {
	a := NewBrowserAdapter(nil)
	frame := a.OnConnect()
	require.NotNil(t, frame)

	answered, ok := frame.(*frames.CallAnsweredFrame)
	require.True(t, ok)
	assert.NotEmpty(t, answered.CallID)
	assert.Equal(t, audio.RateBrowser, answered.SampleRate)
	assert.Equal(t, "LINEAR16", answered.Encoding)
}

func TestBrowserDecodeAudio(t *testing.T) {
	a := NewBrowserAdapter(nil)
	pcm := make([]int16, 960) // 20 ms at 48 kHz
	msg := fmt.Sprintf(`{"type":"AUDIO","audio":"%s","sampleRate":48000}`,
		audio.EncodeBase64(audio.PCMToBytes(pcm)))

	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(msg)})
	require.NoError(t, err)

	audioIn, ok := frame.(*frames.AudioInFrame)
	require.True(t, ok)
	assert.Equal(t, 320, len(audioIn.PCM)) // 20 ms at 16 kHz
	assert.False(t, audioIn.HasEnergy)
}

func TestBrowserDecodeAudioWithEnergy(t *testing.T) {
	a := NewBrowserAdapter(nil)
	pcm := make([]int16, 96)
	msg := fmt.Sprintf(`{"type":"AUDIO","audio":"%s","sampleRate":48000,"energyLevel":42.5}`,
		audio.EncodeBase64(audio.PCMToBytes(pcm)))

	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(msg)})
	require.NoError(t, err)

	audioIn, ok := frame.(*frames.AudioInFrame)
	require.True(t, ok)
	assert.True(t, audioIn.HasEnergy)
	assert.Equal(t, 42.5, audioIn.Energy)
}

func TestBrowserDecodeDefaultsRate(t *testing.T) {
	a := NewBrowserAdapter(nil)
	pcm := make([]int16, 480)
	msg := fmt.Sprintf(`{"type":"AUDIO","audio":"%s"}`, audio.EncodeBase64(audio.PCMToBytes(pcm)))

	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(msg)})
	require.NoError(t, err)
	audioIn := frame.(*frames.AudioInFrame)
	assert.Equal(t, 160, len(audioIn.PCM)) // assumed 48 kHz input
}

func TestBrowserDecodeUnknownTypeDropped(t *testing.T) {
	a := NewBrowserAdapter(nil)
	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(`{"type":"PING"}`)})
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, uint64(1), a.Dropped())
}

func TestBrowserEncodeAudio(t *testing.T) {
	a := NewBrowserAdapter(nil)
	pcm := make([]int16, 480) // 20 ms at 24 kHz
	msgs, err := a.Encode(frames.NewAudioOutFrame(pcm, audio.RateModelOut))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var out struct {
		Type       string `json:"type"`
		Audio      string `json:"audio"`
		SampleRate int    `json:"sampleRate"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &out))
	assert.Equal(t, "AUDIO", out.Type)
	assert.Equal(t, audio.RateBrowser, out.SampleRate)

	raw, err := audio.DecodeBase64(out.Audio)
	require.NoError(t, err)
	decoded, err := audio.BytesToPCM(raw)
	require.NoError(t, err)
	assert.Equal(t, 960, len(decoded)) // 20 ms at 48 kHz
}

func TestBrowserEncodeInterrupt(t *testing.T) {
	a := NewBrowserAdapter(nil)
	msgs, err := a.Encode(frames.NewInterruptFrame())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"type":"INTERRUPT"}`, string(msgs[0].Data))
}

func TestNormalizeCallerID(t *testing.T) {
	assert.Equal(t, "5551234", NormalizeCallerID("+1 (800) 555-1234"))
	assert.Equal(t, "1234567", NormalizeCallerID("1234567"))
	assert.Equal(t, "123", NormalizeCallerID("1-2-3"))
	assert.Equal(t, "", NormalizeCallerID("no digits"))
}
