// Package session maintains the long-lived bidirectional streaming channel
// to the model: setup handshake, outbound audio forwarding, typed inbound
// events, and automatic reconnect with exponential backoff.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/logger"
)

// DefaultEndpoint is the model's bidirectional streaming endpoint; the API
// key is appended as a query parameter.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// MaxPayloadChars is the hard ceiling on the system-instruction payload.
// Callers pre-truncate knowledge; the session rejects anything larger.
const MaxPayloadChars = 20000

var (
	// ErrSetupTimeout is returned when setupComplete does not arrive within
	// the configured window.
	ErrSetupTimeout = errors.New("session: setup timeout")
	// ErrPayloadTooLarge is returned for oversize system instructions.
	ErrPayloadTooLarge = errors.New("session: payload too large")
	// ErrClosed is returned from SendAudio after Close.
	ErrClosed = errors.New("session: closed")
)

// cachedHandleRe validates remote cache handles before they are placed into
// a setup message.
var cachedHandleRe = regexp.MustCompile(`^cachedContents/[A-Za-z0-9_-]+$`)

// ValidCacheHandle reports whether handle is usable in a setup message.
func ValidCacheHandle(handle string) bool {
	return cachedHandleRe.MatchString(handle)
}

// Config describes one model session.
type Config struct {
	Endpoint          string // defaults to DefaultEndpoint
	APIKey            string
	Model             string
	Voice             string
	SystemInstruction string
	CachedContent     string // optional cachedContents/... handle

	SetupTimeout  time.Duration // default 10s
	MaxReconnects int           // default 3

	Log *logger.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Endpoint == "" {
		out.Endpoint = DefaultEndpoint
	}
	if out.SetupTimeout == 0 {
		out.SetupTimeout = 10 * time.Second
	}
	if out.MaxReconnects == 0 {
		out.MaxReconnects = 3
	}
	if out.Log == nil {
		out.Log = logger.WithPrefix("session")
	}
	return out
}

// Session is one live model channel. SendAudio is safe from a single writer
// goroutine; Events is consumed by the supervisor.
type Session struct {
	cfg Config
	log *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex // guards conn and closed
	conn   *websocket.Conn
	closed bool

	events     chan Event
	reconnects int
}

// Connect opens the channel, sends the setup message exactly once for this
// connection and waits for setupComplete. A setup timeout consumes one
// reconnect attempt per the session's reconnect policy; Connect fails only
// after the policy is exhausted.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()

	if len(cfg.SystemInstruction) > MaxPayloadChars {
		return nil, fmt.Errorf("%w: %d chars", ErrPayloadTooLarge, len(cfg.SystemInstruction))
	}

	if cfg.CachedContent != "" && !ValidCacheHandle(cfg.CachedContent) {
		cfg.Log.Warn("invalid cache handle %q, falling back to inline instruction", cfg.CachedContent)
		cfg.CachedContent = ""
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:    cfg,
		log:    cfg.Log,
		ctx:    sctx,
		cancel: cancel,
		events: make(chan Event, 64),
	}

	if err := s.dialAndSetup(); err != nil {
		if !s.reconnect(err) {
			cancel()
			return nil, err
		}
	}

	go s.readLoop()
	return s, nil
}

// dialAndSetup opens a fresh connection and performs the setup handshake.
func (s *Session) dialAndSetup() error {
	url := s.cfg.Endpoint + "?key=" + s.cfg.APIKey
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, url, nil)
	if err != nil {
		return fmt.Errorf("session: dial: %w", err)
	}

	setup := setupPayload{
		Model: modelPath(s.cfg.Model),
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: s.cfg.Voice},
			},
		},
	}
	// cachedContent and systemInstruction are mutually exclusive; the cached
	// handle wins when both are configured.
	if s.cfg.CachedContent != "" {
		setup.CachedContent = s.cfg.CachedContent
	} else {
		setup.SystemInstruction = &content{Parts: []part{{Text: s.cfg.SystemInstruction}}}
	}

	if err := conn.WriteJSON(setupMessage{Setup: setup}); err != nil {
		conn.Close()
		return fmt.Errorf("session: send setup: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.SetupTimeout))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		if netTimeout(err) {
			return ErrSetupTimeout
		}
		return fmt.Errorf("session: setup read: %w", err)
	}
	if msg.SetupComplete == nil {
		conn.Close()
		return fmt.Errorf("session: expected setupComplete, got %s", describe(&msg))
	}
	conn.SetReadDeadline(time.Time{})

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.emit(Ready{})
	s.log.Info("model session ready (model=%s cached=%v)", s.cfg.Model, s.cfg.CachedContent != "")
	return nil
}

func modelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// SendAudio forwards one chunk of 16 kHz PCM as realtime input.
func (s *Session) SendAudio(pcm []int16) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return errors.New("session: not connected")
	}

	msg := realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{
			MimeType: "audio/pcm;rate=16000",
			Data:     audio.EncodeBase64(audio.PCMToBytes(pcm)),
		}},
	}}
	return conn.WriteJSON(msg)
}

// SendText sends a user text turn with turnComplete set, prompting a spoken
// response. Used for the recovery prompt-to-repeat nudge.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return errors.New("session: not connected")
	}

	msg := clientContentMessage{ClientContent: clientContent{
		Turns:        []content{{Role: "user", Parts: []part{{Text: text}}}},
		TurnComplete: true,
	}}
	return conn.WriteJSON(msg)
}

// Events returns the typed event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Reconnects reports how many reconnect attempts this session has made.
func (s *Session) Reconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

// Close shuts the session down gracefully and suppresses auto-reconnect.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.cancel()
	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		return conn.Close()
	}
	return nil
}

func (s *Session) readLoop() {
	defer close(s.events)

	for {
		s.mu.Lock()
		conn := s.conn
		closed := s.closed
		s.mu.Unlock()

		if closed || conn == nil {
			return
		}

		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				s.emit(Closed{Code: websocket.CloseNormalClosure, Reason: "closed"})
				return
			}
			s.log.Warn("model channel dropped: %v", err)
			if !s.reconnect(err) {
				s.emit(FatalError{Kind: "transport", Detail: err.Error()})
				return
			}
			continue
		}

		s.dispatch(&msg)
	}
}

// reconnect re-dials with exponential backoff (1s, 2s, 4s) and re-sends the
// setup message. The attempt counter resets after a successful setup; a
// session therefore never makes more than MaxReconnects consecutive failed
// attempts.
func (s *Session) reconnect(cause error) bool {
	backoff := time.Second
	for attempt := 1; attempt <= s.cfg.MaxReconnects; attempt++ {
		select {
		case <-s.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return false
		}
		s.reconnects++
		s.mu.Unlock()

		s.log.Info("reconnect attempt %d/%d (cause: %v)", attempt, s.cfg.MaxReconnects, cause)
		if err := s.dialAndSetup(); err == nil {
			return true
		} else {
			cause = err
		}
		backoff *= 2
	}

	s.log.Error("reconnects exhausted: %v", cause)
	return false
}

func (s *Session) dispatch(msg *serverMessage) {
	switch {
	case msg.SetupComplete != nil:
		// Duplicate setupComplete after handshake; ignore.

	case msg.Error != nil:
		s.emit(FatalError{Kind: "model", Detail: fmt.Sprintf("%d: %s", msg.Error.Code, msg.Error.Message)})

	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.Interrupted {
			s.emit(Interrupted{})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.emit(Transcript{Role: "user", Text: sc.InputTranscription.Text})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.emit(Transcript{Role: "model", Text: sc.OutputTranscription.Text})
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "audio/") {
					continue
				}
				raw, err := audio.DecodeBase64(p.InlineData.Data)
				if err != nil {
					s.log.Warn("dropping undecodable model audio part: %v", err)
					continue
				}
				pcm, err := audio.BytesToPCM(raw)
				if err != nil {
					s.log.Warn("dropping odd-length model audio part: %v", err)
					continue
				}
				s.emit(AudioOut{PCM: pcm})
			}
		}
		if sc.TurnComplete {
			s.emit(TurnComplete{})
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func describe(msg *serverMessage) string {
	data, _ := json.Marshal(msg)
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}

func netTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
