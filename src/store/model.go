// Package store holds the persisted call data model and the typed
// repositories the core talks to. Persistent backends live behind the
// repository interfaces; in-memory implementations ship in-tree for tests
// and single-process deployments.
package store

import "time"

// CallStatus tracks call lifecycle from the provider's perspective.
type CallStatus string

const (
	StatusInitiated CallStatus = "INITIATED"
	StatusDialing   CallStatus = "DIALING"
	StatusRinging   CallStatus = "RINGING"
	StatusAnswered  CallStatus = "ANSWERED"
	StatusCompleted CallStatus = "COMPLETED"
	StatusFailed    CallStatus = "FAILED"
	StatusNoAnswer  CallStatus = "NO_ANSWER"
	StatusMissed    CallStatus = "MISSED"
)

// CallDirection distinguishes who initiated the call.
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// CallOutcome records the business result of a completed call.
type CallOutcome string

const (
	OutcomeMeetingBooked     CallOutcome = "meeting_booked"
	OutcomeCallbackRequested CallOutcome = "callback_requested"
	OutcomeNotInterested     CallOutcome = "not_interested"
	OutcomeVoicemail         CallOutcome = "voicemail"
)

// Call is one phone or browser session.
type Call struct {
	ID          string
	AgentID     string
	LeadID      string
	CampaignID  string
	Direction   CallDirection
	Status      CallStatus
	CarrierType string

	StartedAt  time.Time
	AnsweredAt time.Time
	EndedAt    time.Time
	Duration   time.Duration

	RecordingURL   string
	Outcome        CallOutcome
	FinalSentiment float64

	Turns []Turn
}

// Turn is one user-utterance / agent-response exchange. Turns are committed
// append-only, only after the agent response completes: naturally, by
// interruption, or by timeout.
type Turn struct {
	Index       int
	UserText    string
	AgentText   string
	StartedAt   time.Time
	EndedAt     time.Time
	Stage       string
	Profile     string
	Objections  []string
	Principle   string
	FillerID    string
	Sentiment   float64
	Interrupted bool
}

// CallEventKind enumerates the append-only call log events.
type CallEventKind string

const (
	EventInitiated CallEventKind = "INITIATED"
	EventDialing   CallEventKind = "DIALING"
	EventRinging   CallEventKind = "RINGING"
	EventAnswered  CallEventKind = "ANSWERED"
	EventCompleted CallEventKind = "COMPLETED"
	EventFailed    CallEventKind = "FAILED"
	EventMissed    CallEventKind = "MISSED"
	EventNoAnswer  CallEventKind = "NO_ANSWER"

	EventStateChange CallEventKind = "STATE_CHANGE"
)

// CallLogEvent is one append-only log entry for a call.
type CallLogEvent struct {
	CallID     string
	CampaignID string
	Event      CallEventKind
	At         time.Time
	Details    string
	Payload    map[string]interface{}
}

// CachedPrompt is the local mirror of a remote cached-content handle.
type CachedPrompt struct {
	AgentID   string
	Handle    string
	CreatedAt time.Time
	ExpiresAt time.Time
	CharCount int
	DocCount  int
}
