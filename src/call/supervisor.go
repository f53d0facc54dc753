package call

import (
	"context"
	"errors"
	"time"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/audio"
	"github.com/square-key-labs/voicecore-ai/src/cache"
	"github.com/square-key-labs/voicecore-ai/src/carriers"
	"github.com/square-key-labs/voicecore-ai/src/frames"
	"github.com/square-key-labs/voicecore-ai/src/hedge"
	"github.com/square-key-labs/voicecore-ai/src/interruptions"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/metrics"
	"github.com/square-key-labs/voicecore-ai/src/principles"
	"github.com/square-key-labs/voicecore-ai/src/prompt"
	"github.com/square-key-labs/voicecore-ai/src/session"
	"github.com/square-key-labs/voicecore-ai/src/store"
)

// CarrierLink is the supervisor's view of a carrier connection. It is
// satisfied by *transports.CarrierConn; tests substitute a fake.
type CarrierLink interface {
	Frames() <-chan frames.Frame
	Send(f frames.Frame) error
	Drain()
	Close() error
	Wait() error
}

// ModelSession is the supervisor's view of the model channel, satisfied by
// *session.Session.
type ModelSession interface {
	SendAudio(pcm []int16) error
	SendText(text string) error
	Events() <-chan session.Event
	Reconnects() int
	Close() error
}

// Config wires one supervisor. Agent is passed by value so call state never
// leaks between calls sharing a configuration.
type Config struct {
	Agent agent.Config
	Lead  prompt.Lead

	CallID      string
	CampaignID  string
	Direction   store.CallDirection
	CarrierType carriers.Type

	Carrier CarrierLink
	Session ModelSession
	Fillers *hedge.Index

	// Cache and CacheHandle keep the remote prompt cache warm; the handle's
	// TTL is refreshed at call end. Both optional.
	Cache       *cache.Manager
	CacheHandle string

	Calls store.CallRepository
	Logs  store.CallLogRepository

	Metrics *metrics.CallMetrics
	Timings Timings

	// OnStateChange observes every transition. Optional.
	OnStateChange func(from, to State)

	Log *logger.Logger
}

// turnDraft accumulates one in-flight turn before it is committed.
type turnDraft struct {
	userText   string
	agentText  string
	startedAt  time.Time
	stage      analysis.Stage
	profile    analysis.Profile
	objections []analysis.Objection
	principle  principles.Principle
	fillerID   string
	sentiment  float64
}

func (t *turnDraft) empty() bool {
	return t.userText == "" && t.agentText == "" && t.fillerID == ""
}

// Supervisor runs one call. All fields are owned by the Run goroutine; the
// only external entry point is Stop.
type Supervisor struct {
	cfg     Config
	log     *logger.Logger
	timings Timings

	state State
	call  *store.Call

	analyzer *analysis.Analyzer
	engine   *principles.Engine
	detector *interruptions.Detector
	silence  *interruptions.SilenceTracker

	draft turnDraft

	// THINKING/RECOVERY timers, checked against the pacing tick.
	hedgeAt       time.Time
	thinkDeadline time.Time
	thinkStart    time.Time
	firstAudio    bool

	// filler playback cursor
	filler        *hedge.Filler
	fillerPos     int
	fillerCount   int
	recentFillers []string

	// dropModelAudio suppresses model audio still in flight from a turn cut
	// by a local barge-in, until the model marks its own turn boundary.
	dropModelAudio bool

	answeredAt   time.Time
	lastOutbound time.Time

	endStatus store.CallStatus
	endReason string

	stop chan struct{}
}

// NewSupervisor builds a supervisor for one call. Run must be called exactly
// once.
func NewSupervisor(cfg Config) *Supervisor {
	cfg.Timings = cfg.Timings.withDefaults()
	log := cfg.Log
	if log == nil {
		log = logger.WithPrefix("call " + cfg.CallID)
	}
	return &Supervisor{
		cfg:     cfg,
		log:     log,
		timings: cfg.Timings,
		state:   StateIdle,
		call: &store.Call{
			ID:          cfg.CallID,
			AgentID:     cfg.Agent.ID,
			CampaignID:  cfg.CampaignID,
			Direction:   cfg.Direction,
			Status:      store.StatusInitiated,
			CarrierType: string(cfg.CarrierType),
			StartedAt:   time.Now(),
		},
		analyzer: analysis.NewAnalyzer(cfg.Agent.Language),
		engine:   principles.NewEngine(),
		detector: interruptions.NewDetector(&interruptions.DetectorParams{
			Threshold: cfg.Agent.InterruptThreshold(),
		}),
		silence: interruptions.NewSilenceTracker(cfg.Agent.Call.SilenceEnergyThreshold),
		stop:    make(chan struct{}),
	}
}

// State returns the current state. Only meaningful from the Run goroutine or
// after Run returns; exposed for tests and teardown checks.
func (s *Supervisor) State() State { return s.state }

// Stop requests a graceful end of the call from outside the select loop.
func (s *Supervisor) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run drives the call to completion. It owns every timer and makes every
// policy decision; the carrier and session goroutines only move bytes.
func (s *Supervisor) Run(ctx context.Context) error {
	s.appendLog(store.EventInitiated, "supervisor started")
	if err := s.cfg.Calls.Save(ctx, s.call); err != nil {
		s.log.Warn("initial call save failed: %v", err)
	}

	ticker := time.NewTicker(s.timings.FrameInterval)
	defer ticker.Stop()

	carrierFrames := s.cfg.Carrier.Frames()
	sessionEvents := s.cfg.Session.Events()

	for s.state != StateEnding {
		select {
		case <-ctx.Done():
			s.finish(store.StatusFailed, "context cancelled")

		case <-s.stop:
			s.finish(s.statusForPhase(), "stop requested")

		case f, ok := <-carrierFrames:
			if !ok {
				carrierFrames = nil
				s.finish(s.statusForPhase(), "carrier channel closed")
				continue
			}
			s.onFrame(ctx, f)

		case ev, ok := <-sessionEvents:
			if !ok {
				sessionEvents = nil
				s.finish(store.StatusFailed, "model channel closed")
				continue
			}
			s.onEvent(ctx, ev)

		case now := <-ticker.C:
			s.onTick(ctx, now)
		}
	}

	s.teardown(ctx)
	return nil
}

// statusForPhase maps "the call is over" onto a status by how far it got.
func (s *Supervisor) statusForPhase() store.CallStatus {
	if s.answeredAt.IsZero() {
		return store.StatusMissed
	}
	return store.StatusCompleted
}

func (s *Supervisor) setState(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.log.Debug("state %s -> %s", from, to)
	s.appendLog(store.EventStateChange, string(from)+" -> "+string(to))
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

func (s *Supervisor) finish(status store.CallStatus, reason string) {
	if s.state == StateEnding || s.state == StateEnded {
		return
	}
	s.endStatus = status
	s.endReason = reason
	s.setState(StateEnding)
}

// --- carrier frames ---

func (s *Supervisor) onFrame(ctx context.Context, f frames.Frame) {
	switch fr := f.(type) {
	case *frames.CallAnsweredFrame:
		s.onAnswered(ctx, fr)

	case *frames.AudioInFrame:
		s.onAudioIn(fr)

	case *frames.CallClosedFrame:
		s.finish(s.statusForPhase(), "carrier closed: "+fr.Reason)

	case *frames.ErrorFrame:
		if errors.Is(fr.Err, carriers.ErrCarrierProtocol) {
			s.log.Error("carrier protocol violation: %v", fr.Err)
			s.finish(store.StatusFailed, fr.Err.Error())
			return
		}
		s.log.Warn("carrier error: %v", fr.Err)
	}
}

func (s *Supervisor) onAnswered(ctx context.Context, f *frames.CallAnsweredFrame) {
	if s.state != StateIdle {
		s.log.Warn("duplicate answer frame ignored (state %s)", s.state)
		return
	}
	s.answeredAt = time.Now()
	s.call.Status = store.StatusAnswered
	s.call.AnsweredAt = s.answeredAt
	if s.call.ID == "" {
		s.call.ID = f.CallID
	}
	if err := s.cfg.Calls.Save(ctx, s.call); err != nil {
		s.log.Warn("call save failed: %v", err)
	}
	s.appendLog(store.EventAnswered, "media established")
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CallsStarted.Add(ctx, 1)
	}
	s.enterListening()
}

func (s *Supervisor) onAudioIn(f *frames.AudioInFrame) {
	if s.state == StateIdle {
		return
	}
	now := time.Now()

	energy := f.Energy
	if !f.HasEnergy {
		energy = audio.RMS(f.PCM)
	}
	s.silence.ObserveEnergy(energy, now)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ChunksIn.Add(context.Background(), 1)
	}

	// Inbound audio is forwarded in arrival order in every live state; the
	// model does its own voice activity detection on its side.
	if err := s.cfg.Session.SendAudio(f.PCM); err != nil && err != session.ErrClosed {
		s.log.Debug("audio forward failed: %v", err)
	}

	if s.state == StateSpeaking || s.state == StateRecovery {
		if s.detector.AppendEnergy(energy, now) {
			s.interrupt()
		}
	}
}

// --- model events ---

func (s *Supervisor) onEvent(ctx context.Context, ev session.Event) {
	switch e := ev.(type) {
	case session.Ready:
		if s.cfg.Metrics != nil && s.cfg.Session.Reconnects() > 0 {
			s.cfg.Metrics.Reconnects.Add(ctx, 1)
		}

	case session.AudioOut:
		s.onModelAudio(ctx, e.PCM)

	case session.Transcript:
		if e.Role == "user" {
			s.draft.userText = joinText(s.draft.userText, e.Text)
		} else {
			s.draft.agentText = joinText(s.draft.agentText, e.Text)
		}

	case session.TurnComplete:
		s.dropModelAudio = false
		if s.state == StateSpeaking {
			s.commitTurn(ctx, false)
			s.enterListening()
		}

	case session.Interrupted:
		if s.state == StateSpeaking || s.state == StateRecovery {
			s.interrupt()
		}
		// The model acknowledged the cut turn; audio that follows belongs to
		// a new turn.
		s.dropModelAudio = false

	case session.Closed:
		s.finish(s.statusForPhase(), "model session closed")

	case session.FatalError:
		s.log.Error("model fatal (%s): %s", e.Kind, e.Detail)
		s.finish(store.StatusFailed, e.Kind+": "+e.Detail)
	}
}

func (s *Supervisor) onModelAudio(ctx context.Context, pcm []int16) {
	if s.dropModelAudio {
		// Leftovers from a turn the user already cut off.
		return
	}
	switch s.state {
	case StateThinking, StateRecovery, StateListening:
		// First audio of the turn: the filler, if any, stops at the frame
		// boundary already emitted and model audio takes over.
		if !s.firstAudio && !s.thinkStart.IsZero() {
			s.firstAudio = true
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.FirstAudioMs.Record(ctx,
					float64(time.Since(s.thinkStart))/float64(time.Millisecond))
			}
		}
		s.filler = nil
		s.fillerPos = 0
		s.detector.Reset()
		s.setState(StateSpeaking)
		s.emitAudio(pcm, audio.RateModelOut)

	case StateSpeaking:
		s.emitAudio(pcm, audio.RateModelOut)

	default:
		// Late audio after an interruption or during teardown is discarded.
	}
}

func (s *Supervisor) emitAudio(pcm []int16, rate int) {
	if err := s.cfg.Carrier.Send(frames.NewAudioOutFrame(pcm, rate)); err != nil {
		s.log.Debug("outbound send failed: %v", err)
		return
	}
	s.lastOutbound = time.Now()
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ChunksOut.Add(context.Background(), 1)
	}
}

// --- timers ---

func (s *Supervisor) onTick(ctx context.Context, now time.Time) {
	if s.state == StateIdle {
		return
	}

	if max := time.Duration(s.cfg.Agent.Call.MaxDurationSec) * time.Second; now.Sub(s.answeredAt) > max {
		s.log.Info("max call duration reached")
		s.finish(store.StatusCompleted, "max duration")
		return
	}

	if s.lineDeadFor(now) >= time.Duration(s.cfg.Agent.Call.EndOnSilenceSec)*time.Second {
		s.log.Info("ending on silence")
		s.finish(store.StatusCompleted, "silence")
		return
	}

	switch s.state {
	case StateListening:
		if s.silence.UtteranceEnded(now, s.timings.UtteranceGap) {
			s.enterThinking(now)
		}

	case StateThinking:
		if now.After(s.thinkDeadline) || now.After(s.hedgeAt) {
			s.enterRecovery(now)
		}

	case StateRecovery:
		s.streamFiller(now)
	}
}

// lineDeadFor is the time since either side produced audio. Agent speech
// counts as activity so a long agent turn never trips the silence guard.
func (s *Supervisor) lineDeadFor(now time.Time) time.Duration {
	dead := s.silence.SilentFor(now)
	if !s.lastOutbound.IsZero() && now.Sub(s.lastOutbound) < dead {
		dead = now.Sub(s.lastOutbound)
	}
	return dead
}

// --- state entries ---

func (s *Supervisor) enterListening() {
	s.silence.Reset()
	s.detector.Reset()
	s.filler = nil
	s.fillerPos = 0
	s.fillerCount = 0
	s.draft = turnDraft{startedAt: time.Now()}
	s.setState(StateListening)
}

func (s *Supervisor) enterThinking(now time.Time) {
	res := s.analyzer.Analyze(s.draft.userText, s.call.Turns)
	principle, reason := s.engine.Choose(res.Stage, res.Profile, res.Objections)
	s.log.Debug("turn analysis: %s", reason)

	s.draft.stage = res.Stage
	s.draft.profile = res.Profile
	s.draft.objections = res.Objections
	s.draft.principle = principle
	s.draft.sentiment = res.Sentiment

	s.thinkStart = now
	s.firstAudio = false
	s.hedgeAt = now.Add(s.timings.HedgeDelay)
	s.thinkDeadline = now.Add(s.timings.ThinkTimeout)
	s.setState(StateThinking)
}

func (s *Supervisor) enterRecovery(now time.Time) {
	if !s.selectFiller() {
		s.promptToRepeat()
		return
	}
	s.setState(StateRecovery)
	s.streamFiller(now)
}

// selectFiller picks the next filler for the current gap. Returns false when
// the gap's filler budget is spent or the index has nothing usable.
func (s *Supervisor) selectFiller() bool {
	if s.cfg.Fillers == nil || s.fillerCount >= maxFillersPerGap {
		return false
	}
	f := s.cfg.Fillers.Select(s.analyzer.Language(), s.draft.principle, s.draft.profile, s.recentFillers)
	if f == nil {
		return false
	}
	s.filler = f
	s.fillerPos = 0
	s.fillerCount++
	if s.draft.fillerID == "" {
		s.draft.fillerID = f.Filename
	}
	s.recentFillers = append(s.recentFillers, f.Filename)
	if len(s.recentFillers) > maxFillersPerGap {
		s.recentFillers = s.recentFillers[len(s.recentFillers)-maxFillersPerGap:]
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.FillersPlayed.Add(context.Background(), 1)
	}
	s.log.Debug("filler %s (%d in gap)", f.Filename, s.fillerCount)
	return true
}

// streamFiller emits the next paced chunk of the active filler. When the
// filler runs out and the model is still silent it either re-selects or
// gives up and asks the caller to repeat.
func (s *Supervisor) streamFiller(now time.Time) {
	if s.filler == nil {
		if !s.selectFiller() {
			s.promptToRepeat()
		}
		return
	}

	n := int(time.Duration(audio.RateInternal) * s.timings.FrameInterval / time.Second)
	if n <= 0 {
		n = 1
	}
	end := s.fillerPos + n
	if end > len(s.filler.PCM) {
		end = len(s.filler.PCM)
	}
	if s.fillerPos < end {
		s.emitAudio(s.filler.PCM[s.fillerPos:end], audio.RateInternal)
		s.fillerPos = end
	}

	if s.fillerPos >= len(s.filler.PCM) {
		s.filler = nil
		s.fillerPos = 0
		if !s.selectFiller() {
			s.promptToRepeat()
		}
	}
}

// promptToRepeat gives up on the current thinking gap: the model is nudged
// to ask the caller to repeat, and the call returns to LISTENING.
func (s *Supervisor) promptToRepeat() {
	if err := s.cfg.Session.SendText(repeatPrompt(s.analyzer.Language())); err != nil {
		s.log.Warn("repeat prompt failed: %v", err)
	}
	s.commitTurn(context.Background(), false)
	s.enterListening()
}

// --- interruption hot path ---

// interrupt handles a barge-in from SPEAKING or RECOVERY. Everything here is
// non-blocking; the whole path must fit the 50 ms budget.
func (s *Supervisor) interrupt() {
	s.dropModelAudio = true
	s.cfg.Carrier.Drain()
	if err := s.cfg.Carrier.Send(frames.NewInterruptFrame()); err != nil {
		s.log.Debug("interrupt signal failed: %v", err)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.Interruptions.Add(context.Background(), 1)
	}
	s.log.Info("user barge-in, cutting agent off")
	s.commitTurn(context.Background(), true)
	s.enterListening()
}

// --- turn log ---

func (s *Supervisor) commitTurn(ctx context.Context, interrupted bool) {
	if s.draft.empty() {
		return
	}
	turn := store.Turn{
		Index:       len(s.call.Turns),
		UserText:    s.draft.userText,
		AgentText:   s.draft.agentText,
		StartedAt:   s.draft.startedAt,
		EndedAt:     time.Now(),
		Stage:       string(s.draft.stage),
		Profile:     string(s.draft.profile),
		Principle:   string(s.draft.principle),
		FillerID:    s.draft.fillerID,
		Sentiment:   s.draft.sentiment,
		Interrupted: interrupted,
	}
	for _, o := range s.draft.objections {
		turn.Objections = append(turn.Objections, string(o))
	}
	s.call.Turns = append(s.call.Turns, turn)
	s.call.FinalSentiment = turn.Sentiment
	if err := s.cfg.Calls.AppendTurn(ctx, s.call.ID, turn); err != nil {
		s.log.Warn("turn append failed: %v", err)
	}
	s.draft = turnDraft{startedAt: time.Now()}
}

// --- teardown ---

func (s *Supervisor) teardown(ctx context.Context) {
	// Best-effort spoken goodbye on failures while the model may still be up.
	if s.endStatus == store.StatusFailed {
		s.cfg.Session.SendText(apologyPrompt(s.analyzer.Language()))
	}

	s.commitTurn(ctx, false)
	s.cfg.Session.Close()
	s.cfg.Carrier.Close()

	done := make(chan struct{})
	go func() {
		s.cfg.Carrier.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.timings.TeardownGrace):
		s.log.Warn("carrier teardown exceeded %s, forcing", s.timings.TeardownGrace)
	}

	now := time.Now()
	s.call.Status = s.endStatus
	s.call.EndedAt = now
	if !s.answeredAt.IsZero() {
		s.call.Duration = now.Sub(s.answeredAt)
	}
	if err := s.cfg.Calls.Save(ctx, s.call); err != nil {
		s.log.Warn("final call save failed: %v", err)
	}

	kind := store.EventCompleted
	switch s.endStatus {
	case store.StatusFailed:
		kind = store.EventFailed
	case store.StatusMissed:
		kind = store.EventMissed
	}
	s.appendLog(kind, s.endReason)

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.CallEnded(ctx, string(s.endStatus))
	}
	if s.cfg.Cache != nil && s.cfg.CacheHandle != "" {
		s.cfg.Cache.RefreshTTL(ctx, s.cfg.CacheHandle)
	}

	s.setState(StateEnded)
	s.log.Info("call ended: status=%s reason=%q turns=%d", s.endStatus, s.endReason, len(s.call.Turns))
}

func (s *Supervisor) appendLog(kind store.CallEventKind, details string) {
	if s.cfg.Logs == nil {
		return
	}
	ev := store.CallLogEvent{
		CallID:     s.call.ID,
		CampaignID: s.cfg.CampaignID,
		Event:      kind,
		At:         time.Now(),
		Details:    details,
	}
	if err := s.cfg.Logs.Append(context.Background(), ev); err != nil {
		s.log.Warn("call log append failed: %v", err)
	}
}

func joinText(base, add string) string {
	if base == "" {
		return add
	}
	return base + add
}
