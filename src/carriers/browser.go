package carriers

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/frames"
	"github.com/square-key-labs/voicecore-ai/src/logger"
)

// Browser wire structures: JSON both ways, PCM base64 at 48 kHz, with an
// explicit INTERRUPT control message so the client can flush its playback
// queue.

type browserMessage struct {
	Type        string   `json:"type"`
	Audio       string   `json:"audio,omitempty"`
	SampleRate  int      `json:"sampleRate,omitempty"`
	EnergyLevel *float64 `json:"energyLevel,omitempty"`
}

// BrowserAdapter speaks the browser/test carrier protocol.
type BrowserAdapter struct {
	log     *logger.Logger
	callID  string
	dropped uint64
}

// NewBrowserAdapter creates an adapter for one browser connection.
func NewBrowserAdapter(log *logger.Logger) *BrowserAdapter {
	if log == nil {
		log = logger.WithPrefix("browser")
	}
	return &BrowserAdapter{log: log, callID: uuid.NewString()}
}

func (a *BrowserAdapter) Type() Type { return Browser }

// OnConnect announces the call immediately: a browser connection is an
// answered call.
func (a *BrowserAdapter) OnConnect() frames.Frame {
	return frames.NewCallAnsweredFrame(a.callID, a.callID, a.callID, audio.RateBrowser, "LINEAR16")
}

func (a *BrowserAdapter) Decode(msg Message) (frames.Frame, error) {
	var bm browserMessage
	if err := json.Unmarshal(msg.Data, &bm); err != nil {
		a.drop("unparseable JSON frame: %v", err)
		return nil, nil
	}

	switch bm.Type {
	case "AUDIO":
		raw, err := audio.DecodeBase64(bm.Audio)
		if err != nil {
			a.drop("bad audio payload: %v", err)
			return nil, nil
		}
		pcm, err := audio.BytesToPCM(raw)
		if err != nil {
			a.drop("bad PCM frame: %v", err)
			return nil, nil
		}
		rate := bm.SampleRate
		if rate == 0 {
			rate = audio.RateBrowser
		}
		resampled := audio.Resample(pcm, rate, audio.RateInternal)
		if bm.EnergyLevel != nil {
			return frames.NewAudioInFrameWithEnergy(resampled, *bm.EnergyLevel), nil
		}
		return frames.NewAudioInFrame(resampled), nil

	default:
		a.drop("unknown type %q", bm.Type)
		return nil, nil
	}
}

func (a *BrowserAdapter) Encode(frame frames.Frame) ([]Message, error) {
	switch f := frame.(type) {
	case *frames.AudioOutFrame:
		out := audio.Resample(f.PCM, f.Rate, audio.RateBrowser)
		msg := browserMessage{
			Type:       "AUDIO",
			Audio:      audio.EncodeBase64(audio.PCMToBytes(out)),
			SampleRate: audio.RateBrowser,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("carriers: marshal audio: %w", err)
		}
		return []Message{{Kind: websocket.TextMessage, Data: data}}, nil

	case *frames.InterruptFrame:
		data, err := json.Marshal(browserMessage{Type: "INTERRUPT"})
		if err != nil {
			return nil, fmt.Errorf("carriers: marshal interrupt: %w", err)
		}
		return []Message{{Kind: websocket.TextMessage, Data: data}}, nil

	default:
		return nil, nil
	}
}

func (a *BrowserAdapter) Dropped() uint64 {
	return atomic.LoadUint64(&a.dropped)
}

func (a *BrowserAdapter) drop(format string, args ...interface{}) {
	atomic.AddUint64(&a.dropped, 1)
	a.log.Debug("dropping frame: "+format, args...)
}
