package store

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// CallRepository persists calls and their turn logs.
type CallRepository interface {
	Save(ctx context.Context, call *Call) error
	Get(ctx context.Context, id string) (*Call, error)
	AppendTurn(ctx context.Context, callID string, turn Turn) error
}

// CallLogRepository appends call log events.
type CallLogRepository interface {
	Append(ctx context.Context, event CallLogEvent) error
	List(ctx context.Context, callID string) ([]CallLogEvent, error)
}

// CachedPromptRepository mirrors remote cached-content handles locally.
type CachedPromptRepository interface {
	Put(ctx context.Context, cp CachedPrompt) error
	Get(ctx context.Context, agentID string) (*CachedPrompt, error)
	Delete(ctx context.Context, agentID string) error
}

// MemoryStore is an in-memory implementation of CallRepository and
// CallLogRepository.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]*Call
	logs  map[string][]CallLogEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls: make(map[string]*Call),
		logs:  make(map[string][]CallLogEvent),
	}
}

func (m *MemoryStore) Save(_ context.Context, call *Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *call
	cp.Turns = append([]Turn(nil), call.Turns...)
	m.calls[call.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Call, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	call, ok := m.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *call
	cp.Turns = append([]Turn(nil), call.Turns...)
	return &cp, nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, callID string, turn Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callID]
	if !ok {
		return ErrNotFound
	}
	call.Turns = append(call.Turns, turn)
	sort.SliceStable(call.Turns, func(i, j int) bool { return call.Turns[i].Index < call.Turns[j].Index })
	return nil
}

func (m *MemoryStore) Append(_ context.Context, event CallLogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[event.CallID] = append(m.logs[event.CallID], event)
	return nil
}

func (m *MemoryStore) List(_ context.Context, callID string) ([]CallLogEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]CallLogEvent(nil), m.logs[callID]...), nil
}

// MemoryPromptStore is an in-memory CachedPromptRepository.
type MemoryPromptStore struct {
	mu      sync.RWMutex
	prompts map[string]CachedPrompt
}

// NewMemoryPromptStore creates an empty in-memory cached-prompt mirror.
func NewMemoryPromptStore() *MemoryPromptStore {
	return &MemoryPromptStore{prompts: make(map[string]CachedPrompt)}
}

func (m *MemoryPromptStore) Put(_ context.Context, cp CachedPrompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts[cp.AgentID] = cp
	return nil
}

func (m *MemoryPromptStore) Get(_ context.Context, agentID string) (*CachedPrompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.prompts[agentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &cp, nil
}

func (m *MemoryPromptStore) Delete(_ context.Context, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prompts, agentID)
	return nil
}
