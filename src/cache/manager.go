// Package cache amortizes per-call prompt cost: it creates remote
// cached-content handles per agent, deduplicates them in-process, and keeps
// their TTL fresh. It is process-global and the single writer for cached
// prompt entries; supervisors only read handles from it.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/store"
)

const (
	// TTL applied at creation and on every refresh.
	TTL = time.Hour
	// MinCacheTokens is the model's documented minimum cacheable size;
	// smaller payloads are inlined by the caller instead.
	MinCacheTokens = 32768
)

var handleRe = regexp.MustCompile(`^cachedContents/[A-Za-z0-9_-]+$`)

// remoteAPI is the slice of the model endpoint the manager needs. The real
// implementation wraps the genai client; tests substitute a stub.
type remoteAPI interface {
	CreateCache(ctx context.Context, systemInstruction, contents string, ttl time.Duration) (handle string, expiresAt time.Time, err error)
	UpdateTTL(ctx context.Context, handle string, ttl time.Duration) error
	CountTokens(ctx context.Context, text string) (int32, error)
}

// Manager deduplicates cached-prompt creation per agent id. GetOrCreate
// calls for one agent are serialized; distinct agents proceed in parallel.
type Manager struct {
	api    remoteAPI
	log    *logger.Logger
	mirror store.CachedPromptRepository // optional local mirror

	mu      sync.Mutex
	entries map[string]*store.CachedPrompt
	flights map[string]*sync.Mutex
}

// NewManager builds a manager backed by the model's cache endpoint.
func NewManager(ctx context.Context, apiKey, model string, mirror store.CachedPromptRepository, log *logger.Logger) (*Manager, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: client: %w", err)
	}
	return newManager(&genaiAPI{client: client, model: model}, mirror, log), nil
}

func newManager(api remoteAPI, mirror store.CachedPromptRepository, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.WithPrefix("cache")
	}
	return &Manager{
		api:     api,
		log:     log,
		mirror:  mirror,
		entries: make(map[string]*store.CachedPrompt),
		flights: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate returns the live handle for agentID, creating one remotely if
// needed. It returns "" when the content is ineligible (no docs, below the
// token minimum) or the remote call fails; the caller then inlines the
// system instruction.
func (m *Manager) GetOrCreate(ctx context.Context, agentID string, lang agent.Language, systemInstruction string, docs []agent.KnowledgeDoc) string {
	if len(docs) == 0 {
		return ""
	}

	flight := m.flightFor(agentID)
	flight.Lock()
	defer flight.Unlock()

	m.mu.Lock()
	entry := m.entries[agentID]
	m.mu.Unlock()

	if entry != nil && time.Now().Before(entry.ExpiresAt) {
		return entry.Handle
	}

	payload := buildPayload(systemInstruction, docs, lang)

	tokens, err := m.api.CountTokens(ctx, payload)
	if err != nil {
		m.log.Warn("token count failed for agent %s: %v", agentID, err)
		return ""
	}
	if tokens < MinCacheTokens {
		m.log.Debug("agent %s payload %d tokens, below cache minimum %d", agentID, tokens, MinCacheTokens)
		return ""
	}

	handle, expiresAt, err := m.api.CreateCache(ctx, systemInstruction, payload, TTL)
	if err != nil {
		m.log.Warn("cache creation failed for agent %s: %v", agentID, err)
		return ""
	}
	if !handleRe.MatchString(handle) {
		m.log.Warn("remote returned malformed cache name %q for agent %s", handle, agentID)
		return ""
	}

	cp := &store.CachedPrompt{
		AgentID:   agentID,
		Handle:    handle,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
		CharCount: len(payload),
		DocCount:  len(docs),
	}
	if cp.ExpiresAt.IsZero() {
		cp.ExpiresAt = cp.CreatedAt.Add(TTL)
	}

	m.mu.Lock()
	m.entries[agentID] = cp
	m.mu.Unlock()

	if m.mirror != nil {
		if err := m.mirror.Put(ctx, *cp); err != nil {
			m.log.Warn("cached prompt mirror write failed: %v", err)
		}
	}

	m.log.Info("created cache %s for agent %s (%d chars, %d docs)", handle, agentID, cp.CharCount, cp.DocCount)
	return handle
}

// RefreshTTL resets the handle's TTL to one hour. Best effort; failures are
// logged and ignored.
func (m *Manager) RefreshTTL(ctx context.Context, handle string) {
	if !handleRe.MatchString(handle) {
		m.log.Warn("refusing to refresh malformed handle %q", handle)
		return
	}
	if err := m.api.UpdateTTL(ctx, handle, TTL); err != nil {
		m.log.Warn("TTL refresh failed for %s: %v", handle, err)
		return
	}

	m.mu.Lock()
	for _, e := range m.entries {
		if e.Handle == handle {
			e.ExpiresAt = time.Now().Add(TTL)
		}
	}
	m.mu.Unlock()
}

// Clear drops the local mapping for agentID, forcing re-creation on the
// next call. Used when the agent's knowledge changes.
func (m *Manager) Clear(agentID string) {
	m.mu.Lock()
	delete(m.entries, agentID)
	m.mu.Unlock()

	if m.mirror != nil {
		if err := m.mirror.Delete(context.Background(), agentID); err != nil && err != store.ErrNotFound {
			m.log.Warn("cached prompt mirror delete failed: %v", err)
		}
	}
}

func (m *Manager) flightFor(agentID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	fl, ok := m.flights[agentID]
	if !ok {
		fl = &sync.Mutex{}
		m.flights[agentID] = fl
	}
	return fl
}

// buildPayload concatenates the system instruction, the numbered knowledge
// docs, and the deterministic per-language vocabulary pad that lifts small
// payloads over the cache minimum. The pad never varies per call, keeping
// the cache key stable across calls of the same agent.
func buildPayload(systemInstruction string, docs []agent.KnowledgeDoc, lang agent.Language) string {
	pad := padFor(lang)

	var size int
	for _, d := range docs {
		size += len(d.Title) + len(d.Text)
	}

	out := make([]byte, 0, len(systemInstruction)+size+len(pad))
	out = append(out, systemInstruction...)
	for i, d := range docs {
		out = append(out, fmt.Sprintf("\n\n[Document %d: %s]\n%s", i+1, d.Title, d.Text)...)
	}
	out = append(out, "\n\n"...)
	out = append(out, pad...)
	return string(out)
}
