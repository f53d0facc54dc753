package carriers

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/frames"
	"github.com/square-key-labs/voicecore-ai/src/logger"
)

// Telephony wire structures. Inbound media is LINEAR16 at 44.1 kHz, either
// base64 in JSON "media" events or as raw binary websocket messages.
// Outbound is 8 kHz LINEAR16 base64 in "reverse-media" events echoing the
// stream identifiers from the "answer" event.

type telephonyMessage struct {
	Event       string           `json:"event"`
	StreamID    string           `json:"streamId,omitempty"`
	ChannelID   string           `json:"channelId,omitempty"`
	CallID      string           `json:"callId,omitempty"`
	Payload     string           `json:"payload,omitempty"`
	Chunk       int              `json:"chunk,omitempty"`
	MediaFormat *telephonyFormat `json:"mediaFormat,omitempty"`
}

type telephonyFormat struct {
	SampleRate int    `json:"sampleRate"`
	Encoding   string `json:"encoding"`
}

// TelephonyAdapter speaks the PBX media-stream protocol.
type TelephonyAdapter struct {
	log *logger.Logger

	streamID  string
	channelID string
	callID    string
	answered  bool
	inRate    int

	chunk   int
	dropped uint64
}

// NewTelephonyAdapter creates an adapter for one PBX connection.
func NewTelephonyAdapter(log *logger.Logger) *TelephonyAdapter {
	if log == nil {
		log = logger.WithPrefix("telephony")
	}
	return &TelephonyAdapter{log: log, inRate: audio.RateTelephonyIn}
}

func (a *TelephonyAdapter) Type() Type { return Telephony }

// OnConnect returns nil: the PBX announces the call in-band with "answer".
func (a *TelephonyAdapter) OnConnect() frames.Frame { return nil }

func (a *TelephonyAdapter) Decode(msg Message) (frames.Frame, error) {
	// Binary frames, and text frames that are not JSON, are raw LINEAR16 at
	// the carrier rate. Detection: first byte is neither '{' nor '['.
	if len(msg.Data) == 0 {
		return nil, nil
	}
	if msg.Kind == websocket.BinaryMessage || (msg.Data[0] != '{' && msg.Data[0] != '[') {
		return a.decodePCM(msg.Data)
	}

	var tm telephonyMessage
	if err := json.Unmarshal(msg.Data, &tm); err != nil {
		a.drop("unparseable JSON frame: %v", err)
		return nil, nil
	}

	switch tm.Event {
	case "answer":
		if tm.StreamID == "" || tm.ChannelID == "" || tm.CallID == "" {
			return nil, fmt.Errorf("%w: answer missing stream/channel/call id", ErrCarrierProtocol)
		}
		a.streamID, a.channelID, a.callID = tm.StreamID, tm.ChannelID, tm.CallID
		a.answered = true
		rate := audio.RateTelephonyIn
		encoding := "LINEAR16"
		if tm.MediaFormat != nil {
			if tm.MediaFormat.SampleRate != 0 {
				rate = tm.MediaFormat.SampleRate
			}
			if tm.MediaFormat.Encoding != "" {
				encoding = tm.MediaFormat.Encoding
			}
		}
		a.inRate = rate
		return frames.NewCallAnsweredFrame(a.streamID, a.channelID, a.callID, rate, encoding), nil

	case "media":
		if !a.answered {
			return nil, fmt.Errorf("%w: media before answer", ErrCarrierProtocol)
		}
		raw, err := audio.DecodeBase64(tm.Payload)
		if err != nil {
			a.drop("bad media payload: %v", err)
			return nil, nil
		}
		return a.decodePCM(raw)

	default:
		a.drop("unknown event %q", tm.Event)
		return nil, nil
	}
}

func (a *TelephonyAdapter) decodePCM(raw []byte) (frames.Frame, error) {
	pcm, err := audio.BytesToPCM(raw)
	if err != nil {
		a.drop("bad PCM frame: %v", err)
		return nil, nil
	}
	return frames.NewAudioInFrame(audio.Resample(pcm, a.inRate, audio.RateInternal)), nil
}

func (a *TelephonyAdapter) Encode(frame frames.Frame) ([]Message, error) {
	switch f := frame.(type) {
	case *frames.AudioOutFrame:
		out := audio.Resample(f.PCM, f.Rate, audio.RateTelephonyOut)
		a.chunk++
		msg := telephonyMessage{
			Event:     "reverse-media",
			StreamID:  a.streamID,
			ChannelID: a.channelID,
			CallID:    a.callID,
			Payload:   audio.EncodeBase64(audio.PCMToBytes(out)),
			Chunk:     a.chunk,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("carriers: marshal reverse-media: %w", err)
		}
		return []Message{{Kind: websocket.TextMessage, Data: data}}, nil

	case *frames.InterruptFrame:
		// The PBX has no flush control message: the core just stops emitting
		// reverse-media frames and the carrier plays out its short buffer.
		return nil, nil

	default:
		return nil, nil
	}
}

func (a *TelephonyAdapter) Dropped() uint64 {
	return atomic.LoadUint64(&a.dropped)
}

func (a *TelephonyAdapter) drop(format string, args ...interface{}) {
	atomic.AddUint64(&a.dropped, 1)
	a.log.Debug("dropping frame: "+format, args...)
}

// CallID returns the PBX call id learned from the answer event.
func (a *TelephonyAdapter) CallID() string { return a.callID }
