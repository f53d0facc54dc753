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

func answerMessage() Message {
	return Message{Kind: websocket.TextMessage, Data: []byte(
		`{"event":"answer","streamId":"s1","channelId":"c1","callId":"k1","mediaFormat":{"sampleRate":44100,"encoding":"LINEAR16"}}`)}
}

func mediaMessage(pcm []int16) Message {
	payload := audio.EncodeBase64(audio.PCMToBytes(pcm))
	return Message{Kind: websocket.TextMessage, Data: []byte(
		fmt.Sprintf(`{"event":"media","payload":"%s","chunk":1}`, payload))}
}

func TestTelephonyAnswer(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	assert.Nil(t, a.OnConnect())

	frame, err := a.Decode(answerMessage())
	require.NoError(t, err)

	answered, ok := frame.(*frames.CallAnsweredFrame)
	require.True(t, ok)
	assert.Equal(t, "s1", answered.StreamID)
	assert.Equal(t, "c1", answered.ChannelID)
	assert.Equal(t, "k1", answered.CallID)
	assert.Equal(t, 44100, answered.SampleRate)
	assert.Equal(t, "LINEAR16", answered.Encoding)
}

func TestTelephonyAnswerMissingIDs(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(`{"event":"answer","streamId":"s1"}`)})
	assert.ErrorIs(t, err, ErrCarrierProtocol)
}

func TestTelephonyMediaBeforeAnswer(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(mediaMessage([]int16{1, 2, 3, 4}))
	assert.ErrorIs(t, err, ErrCarrierProtocol)
}

func TestTelephonyMediaResamples(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(answerMessage())
	require.NoError(t, err)

	in := make([]int16, 441) // 10 ms at 44.1 kHz
	frame, err := a.Decode(mediaMessage(in))
	require.NoError(t, err)

	audioIn, ok := frame.(*frames.AudioInFrame)
	require.True(t, ok)
	assert.Equal(t, 160, len(audioIn.PCM)) // 10 ms at 16 kHz
	assert.False(t, audioIn.HasEnergy)
}

func TestTelephonyBinaryMedia(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(answerMessage())
	require.NoError(t, err)

	raw := audio.PCMToBytes(make([]int16, 441))
	frame, err := a.Decode(Message{Kind: websocket.BinaryMessage, Data: raw})
	require.NoError(t, err)

	audioIn, ok := frame.(*frames.AudioInFrame)
	require.True(t, ok)
	assert.Equal(t, 160, len(audioIn.PCM))
}

func TestTelephonyNonJSONTextIsRawPCM(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(answerMessage())
	require.NoError(t, err)

	raw := audio.PCMToBytes([]int16{300, 300, 300, 300})
	// Raw PCM starting with a byte that is neither '{' nor '['.
	require.NotEqual(t, byte('{'), raw[0])
	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: raw})
	require.NoError(t, err)
	assert.IsType(t, &frames.AudioInFrame{}, frame)
}

func TestTelephonyBadPayloadDropped(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(answerMessage())
	require.NoError(t, err)

	frame, err := a.Decode(Message{Kind: websocket.TextMessage,
		Data: []byte(`{"event":"media","payload":"!!!","chunk":2}`)})
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, uint64(1), a.Dropped())
}

func TestTelephonyUnknownEventDropped(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	frame, err := a.Decode(Message{Kind: websocket.TextMessage, Data: []byte(`{"event":"mark"}`)})
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.Equal(t, uint64(1), a.Dropped())
}

func TestTelephonyEncodeReverseMedia(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	_, err := a.Decode(answerMessage())
	require.NoError(t, err)

	pcm := make([]int16, 480) // 20 ms at 24 kHz
	msgs, err := a.Encode(frames.NewAudioOutFrame(pcm, audio.RateModelOut))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, websocket.TextMessage, msgs[0].Kind)

	var out struct {
		Event     string `json:"event"`
		StreamID  string `json:"streamId"`
		ChannelID string `json:"channelId"`
		CallID    string `json:"callId"`
		Payload   string `json:"payload"`
		Chunk     int    `json:"chunk"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Data, &out))
	assert.Equal(t, "reverse-media", out.Event)
	assert.Equal(t, "s1", out.StreamID)
	assert.Equal(t, "c1", out.ChannelID)
	assert.Equal(t, "k1", out.CallID)
	assert.Equal(t, 1, out.Chunk)

	raw, err := audio.DecodeBase64(out.Payload)
	require.NoError(t, err)
	decoded, err := audio.BytesToPCM(raw)
	require.NoError(t, err)
	assert.Equal(t, 160, len(decoded)) // 20 ms at 8 kHz
}

func TestTelephonyEncodeInterruptIsSilent(t *testing.T) {
	a := NewTelephonyAdapter(nil)
	msgs, err := a.Encode(frames.NewInterruptFrame())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
