package session

// Event is a typed message from the model session to the supervisor. The
// sequence on Events() is lazy, finite and non-restartable: Ready after each
// successful setup, then audio/turn events, terminated by FatalError or
// Closed.
type Event interface {
	isEvent()
}

// Ready is emitted once after every successful setupComplete, including
// after an automatic reconnect.
type Ready struct{}

// AudioOut carries one model output audio chunk at 24 kHz.
type AudioOut struct {
	PCM []int16
}

// Transcript carries an incremental transcription: Role is "user" for input
// transcription and "model" for output transcription.
type Transcript struct {
	Role string
	Text string
}

// TurnComplete marks the end of a model turn.
type TurnComplete struct{}

// Interrupted signals the model detected the user barging in.
type Interrupted struct{}

// Closed reports a graceful close of the channel.
type Closed struct {
	Code   int
	Reason string
}

// FatalError reports a non-recoverable failure; the session is closed and
// will not reconnect.
type FatalError struct {
	Kind   string
	Detail string
}

func (Ready) isEvent()        {}
func (AudioOut) isEvent()     {}
func (Transcript) isEvent()   {}
func (TurnComplete) isEvent() {}
func (Interrupted) isEvent()  {}
func (Closed) isEvent()       {}
func (FatalError) isEvent()   {}
