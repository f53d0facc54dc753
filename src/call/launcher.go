package call

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/analysis"
	"github.com/square-key-labs/voicecore-ai/src/cache"
	"github.com/square-key-labs/voicecore-ai/src/carriers"
	"github.com/square-key-labs/voicecore-ai/src/hedge"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/metrics"
	"github.com/square-key-labs/voicecore-ai/src/principles"
	"github.com/square-key-labs/voicecore-ai/src/prompt"
	"github.com/square-key-labs/voicecore-ai/src/session"
	"github.com/square-key-labs/voicecore-ai/src/store"
	"github.com/square-key-labs/voicecore-ai/src/transports"
)

// Launcher turns accepted carrier connections into running calls: it picks
// the agent, assembles the system instruction, obtains a cache handle,
// connects the model session and hands everything to a supervisor.
type Launcher struct {
	APIKey string
	Model  string

	// Agents maps agent id to its loaded configuration.
	Agents map[string]*agent.Config
	// DefaultAgent is used when the connection names no agent.
	DefaultAgent string

	Fillers *hedge.Index
	Cache   *cache.Manager
	Calls   store.CallRepository
	Logs    store.CallLogRepository
	Metrics *metrics.CallMetrics

	Log *logger.Logger
}

// Handle is the transports.ConnHandler entry point. The agent is chosen by
// the `agent` query parameter; lead identity comes from `first_name` and
// `last_name`.
func (l *Launcher) Handle(ctx context.Context, conn *transports.CarrierConn, r *http.Request) {
	log := l.Log
	if log == nil {
		log = logger.WithPrefix("launcher")
	}

	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		agentID = l.DefaultAgent
	}
	cfg, ok := l.Agents[agentID]
	if !ok {
		log.Error("unknown agent %q, refusing call", agentID)
		conn.Close()
		return
	}

	lead := prompt.Lead{
		FirstName: r.URL.Query().Get("first_name"),
		LastName:  r.URL.Query().Get("last_name"),
	}
	campaignID := r.URL.Query().Get("campaign")
	callID := uuid.NewString()
	callLog := log.WithPrefix("call " + callID[:8])

	initial, _ := principles.NewEngine().Choose(analysis.StageAwareness, analysis.ProfileRelationshipSeeker, nil)
	instruction := prompt.Build(cfg, lead, initial, analysis.StageAwareness, callLog)

	var handle string
	if l.Cache != nil {
		handle = l.Cache.GetOrCreate(ctx, cfg.ID, cfg.Language, instruction, cfg.Knowledge)
	}

	sess, err := session.Connect(ctx, session.Config{
		APIKey:            l.APIKey,
		Model:             l.Model,
		Voice:             cfg.Voice,
		SystemInstruction: instruction,
		CachedContent:     handle,
		Log:               callLog.WithPrefix("session"),
	})
	if err != nil {
		callLog.Error("model session failed: %v", err)
		conn.Close()
		return
	}

	direction := store.DirectionOutbound
	if conn.Adapter().Type() == carriers.Browser {
		direction = store.DirectionInbound
	}

	sup := NewSupervisor(Config{
		Agent:       *cfg,
		Lead:        lead,
		CallID:      callID,
		CampaignID:  campaignID,
		Direction:   direction,
		CarrierType: conn.Adapter().Type(),
		Carrier:     conn,
		Session:     sess,
		Fillers:     l.Fillers,
		Cache:       l.Cache,
		CacheHandle: handle,
		Calls:       l.Calls,
		Logs:        l.Logs,
		Metrics:     l.Metrics,
		Log:         callLog,
	})
	if err := sup.Run(ctx); err != nil {
		callLog.Error("supervisor exited: %v", err)
	}
	if l.Metrics != nil {
		if n := conn.Adapter().Dropped(); n > 0 {
			l.Metrics.FramesDropped.Add(ctx, int64(n))
		}
	}
}
