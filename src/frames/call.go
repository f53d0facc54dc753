package frames

import "fmt"

// CallAnsweredFrame is produced once per connection when the carrier reports
// an established media channel: the telephony "answer" event, or the first
// connect on the browser carrier.
type CallAnsweredFrame struct {
	*BaseFrame
	StreamID   string
	ChannelID  string
	CallID     string
	SampleRate int
	Encoding   string
}

func NewCallAnsweredFrame(streamID, channelID, callID string, sampleRate int, encoding string) *CallAnsweredFrame {
	return &CallAnsweredFrame{
		BaseFrame:  NewBaseFrame("CallAnsweredFrame"),
		StreamID:   streamID,
		ChannelID:  channelID,
		CallID:     callID,
		SampleRate: sampleRate,
		Encoding:   encoding,
	}
}

func (f *CallAnsweredFrame) Category() FrameCategory { return ControlCategory }

func (f *CallAnsweredFrame) String() string {
	return fmt.Sprintf("CallAnsweredFrame[call=%s stream=%s rate=%d]", f.CallID, f.StreamID, f.SampleRate)
}

// AudioInFrame carries one inbound media chunk, already resampled to the
// canonical 16 kHz internal rate. Energy is the carrier-reported level when
// the wire format includes one; HasEnergy distinguishes "absent" from zero.
type AudioInFrame struct {
	*BaseFrame
	PCM       []int16
	Energy    float64
	HasEnergy bool
}

func NewAudioInFrame(pcm []int16) *AudioInFrame {
	return &AudioInFrame{
		BaseFrame: NewBaseFrame("AudioInFrame"),
		PCM:       pcm,
	}
}

func NewAudioInFrameWithEnergy(pcm []int16, energy float64) *AudioInFrame {
	return &AudioInFrame{
		BaseFrame: NewBaseFrame("AudioInFrame"),
		PCM:       pcm,
		Energy:    energy,
		HasEnergy: true,
	}
}

func (f *AudioInFrame) Category() FrameCategory { return MediaCategory }

func (f *AudioInFrame) String() string {
	return fmt.Sprintf("AudioInFrame[id=%d samples=%d]", f.ID(), len(f.PCM))
}

// AudioOutFrame carries one outbound media chunk at Rate. The carrier adapter
// resamples to its wire rate on emit; model audio (24 kHz) and filler audio
// (16 kHz) both travel as AudioOutFrames.
type AudioOutFrame struct {
	*BaseFrame
	PCM  []int16
	Rate int
}

func NewAudioOutFrame(pcm []int16, rate int) *AudioOutFrame {
	return &AudioOutFrame{
		BaseFrame: NewBaseFrame("AudioOutFrame"),
		PCM:       pcm,
		Rate:      rate,
	}
}

func (f *AudioOutFrame) Category() FrameCategory { return MediaCategory }

func (f *AudioOutFrame) String() string {
	return fmt.Sprintf("AudioOutFrame[id=%d samples=%d rate=%d]", f.ID(), len(f.PCM), f.Rate)
}

// InterruptFrame signals that the user barged in while the agent was
// speaking. Outbound, the browser carrier emits {"type":"INTERRUPT"};
// the telephony carrier simply stops producing reverse-media frames.
type InterruptFrame struct {
	*BaseFrame
}

func NewInterruptFrame() *InterruptFrame {
	return &InterruptFrame{BaseFrame: NewBaseFrame("InterruptFrame")}
}

func (f *InterruptFrame) Category() FrameCategory { return ControlCategory }

// CallClosedFrame is produced when the carrier connection ends, either by
// remote hangup or transport failure.
type CallClosedFrame struct {
	*BaseFrame
	Reason string
}

func NewCallClosedFrame(reason string) *CallClosedFrame {
	return &CallClosedFrame{
		BaseFrame: NewBaseFrame("CallClosedFrame"),
		Reason:    reason,
	}
}

func (f *CallClosedFrame) Category() FrameCategory { return ControlCategory }

func (f *CallClosedFrame) String() string {
	return fmt.Sprintf("CallClosedFrame[reason=%s]", f.Reason)
}

// ErrorFrame surfaces a carrier-side error to the supervisor. The reader
// task never decides policy; the supervisor matches on the wrapped error.
type ErrorFrame struct {
	*BaseFrame
	Err error
}

func NewErrorFrame(err error) *ErrorFrame {
	return &ErrorFrame{
		BaseFrame: NewBaseFrame("ErrorFrame"),
		Err:       err,
	}
}

func (f *ErrorFrame) Category() FrameCategory { return ControlCategory }

func (f *ErrorFrame) String() string {
	return fmt.Sprintf("ErrorFrame[%v]", f.Err)
}
