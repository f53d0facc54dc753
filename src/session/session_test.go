package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square-key-labs/voicecore-ai/src/audio"
)

// fakeModel is a websocket endpoint that plays the model side of the setup
// handshake.
type fakeModel struct {
	t        *testing.T
	upgrader websocket.Upgrader

	mu     sync.Mutex
	setups []setupMessage
	conns  []*websocket.Conn

	// silentSetups is how many initial connections ignore the setup message,
	// forcing a setup timeout on the client.
	silentSetups int32

	srv *httptest.Server
}

func newFakeModel(t *testing.T) *fakeModel {
	m := &fakeModel{t: t}
	m.srv = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *fakeModel) url() string {
	return "ws" + strings.TrimPrefix(m.srv.URL, "http")
}

func (m *fakeModel) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var setup setupMessage
	if err := conn.ReadJSON(&setup); err != nil {
		conn.Close()
		return
	}

	m.mu.Lock()
	m.setups = append(m.setups, setup)
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	if atomic.AddInt32(&m.silentSetups, -1) >= 0 {
		// Swallow the setup without answering; the client must time out.
		return
	}

	conn.WriteJSON(map[string]interface{}{"setupComplete": map[string]interface{}{}})

	// Echo loop: keep reading so client writes succeed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (m *fakeModel) setupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.setups)
}

func (m *fakeModel) lastSetup() setupMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setups[len(m.setups)-1]
}

func (m *fakeModel) send(v interface{}) {
	m.mu.Lock()
	conn := m.conns[len(m.conns)-1]
	m.mu.Unlock()
	require.NoError(m.t, conn.WriteJSON(v))
}

func waitEvent(t *testing.T, s *Session, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(timeout):
		t.Fatal("no session event within timeout")
		return nil
	}
}

func TestConnectSendsSetupAndReady(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		Voice:             "Aoede",
		SystemInstruction: "be brief",
	})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, Ready{}, waitEvent(t, s, time.Second))

	setup := m.lastSetup()
	assert.Equal(t, "models/test-live", setup.Setup.Model)
	assert.Equal(t, []string{"AUDIO"}, setup.Setup.GenerationConfig.ResponseModalities)
	assert.Equal(t, "Aoede", setup.Setup.GenerationConfig.SpeechConfig.PrebuiltVoiceConfig.VoiceName)
	require.NotNil(t, setup.Setup.SystemInstruction)
	assert.Equal(t, "be brief", setup.Setup.SystemInstruction.Parts[0].Text)
	assert.Empty(t, setup.Setup.CachedContent)
}

func TestConnectCachedContentWins(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "ignored in favor of the cache",
		CachedContent:     "cachedContents/abc_123",
	})
	require.NoError(t, err)
	defer s.Close()

	setup := m.lastSetup()
	assert.Equal(t, "cachedContents/abc_123", setup.Setup.CachedContent)
	assert.Nil(t, setup.Setup.SystemInstruction)
}

func TestConnectInvalidHandleFallsBackInline(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "inline wins",
		CachedContent:     "not-a-handle",
	})
	require.NoError(t, err)
	defer s.Close()

	setup := m.lastSetup()
	assert.Empty(t, setup.Setup.CachedContent)
	require.NotNil(t, setup.Setup.SystemInstruction)
	assert.Equal(t, "inline wins", setup.Setup.SystemInstruction.Parts[0].Text)
}

func TestConnectRejectsOversizePayload(t *testing.T) {
	_, err := Connect(context.Background(), Config{
		Endpoint:          "ws://unused",
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: strings.Repeat("x", MaxPayloadChars+1),
	})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestSetupTimeoutTriggersReconnect(t *testing.T) {
	m := newFakeModel(t)
	atomic.StoreInt32(&m.silentSetups, 1)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "hello",
		SetupTimeout:      200 * time.Millisecond,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, Ready{}, waitEvent(t, s, 5*time.Second))
	assert.Equal(t, 1, s.Reconnects())
	// The setup message was re-sent on the second connection.
	assert.Equal(t, 2, m.setupCount())
}

func TestValidCacheHandle(t *testing.T) {
	assert.True(t, ValidCacheHandle("cachedContents/abc_123"))
	assert.True(t, ValidCacheHandle("cachedContents/A-Z_09"))
	assert.False(t, ValidCacheHandle("cachedContents/"))
	assert.False(t, ValidCacheHandle("cachedContents/abc/def"))
	assert.False(t, ValidCacheHandle("abc_123"))
	assert.False(t, ValidCacheHandle(""))
}

func TestSendAudioShape(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "hello",
	})
	require.NoError(t, err)
	defer s.Close()
	waitEvent(t, s, time.Second)

	require.NoError(t, s.SendAudio([]int16{1, 2, 3, 4}))
}

func TestServerContentDispatch(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "hello",
	})
	require.NoError(t, err)
	defer s.Close()
	waitEvent(t, s, time.Second) // Ready

	pcm := []int16{100, -100, 100, -100}
	m.send(map[string]interface{}{
		"serverContent": map[string]interface{}{
			"modelTurn": map[string]interface{}{
				"parts": []map[string]interface{}{
					{"inlineData": map[string]interface{}{
						"mimeType": "audio/pcm;rate=24000",
						"data":     audio.EncodeBase64(audio.PCMToBytes(pcm)),
					}},
				},
			},
		},
	})

	ev := waitEvent(t, s, time.Second)
	out, ok := ev.(AudioOut)
	require.True(t, ok)
	assert.Equal(t, pcm, out.PCM)

	m.send(map[string]interface{}{"serverContent": map[string]interface{}{"turnComplete": true}})
	assert.IsType(t, TurnComplete{}, waitEvent(t, s, time.Second))

	m.send(map[string]interface{}{"serverContent": map[string]interface{}{"interrupted": true}})
	assert.IsType(t, Interrupted{}, waitEvent(t, s, time.Second))

	m.send(map[string]interface{}{
		"serverContent": map[string]interface{}{
			"inputTranscription": map[string]interface{}{"text": "hello there"},
		},
	})
	tr, ok := waitEvent(t, s, time.Second).(Transcript)
	require.True(t, ok)
	assert.Equal(t, "user", tr.Role)
	assert.Equal(t, "hello there", tr.Text)
}

func TestCloseIdempotent(t *testing.T) {
	m := newFakeModel(t)

	s, err := Connect(context.Background(), Config{
		Endpoint:          m.url(),
		APIKey:            "key",
		Model:             "test-live",
		SystemInstruction: "hello",
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.SendAudio([]int16{1}), ErrClosed)
}
