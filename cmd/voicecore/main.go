// voicecore serves real-time voice agent calls: carrier websockets on one
// side, the model's bidirectional audio channel on the other.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/square-key-labs/voicecore-ai/src/agent"
	"github.com/square-key-labs/voicecore-ai/src/cache"
	"github.com/square-key-labs/voicecore-ai/src/call"
	"github.com/square-key-labs/voicecore-ai/src/hedge"
	"github.com/square-key-labs/voicecore-ai/src/logger"
	"github.com/square-key-labs/voicecore-ai/src/metrics"
	"github.com/square-key-labs/voicecore-ai/src/store"
	"github.com/square-key-labs/voicecore-ai/src/transports"
)

func main() {
	logger.Init()
	mainLog := logger.WithPrefix("voicecore")

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("Missing GEMINI_API_KEY")
	}

	model := os.Getenv("VOICECORE_MODEL")
	if model == "" {
		model = "gemini-2.0-flash-live-001"
	}
	addr := os.Getenv("VOICECORE_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	agentDir := os.Getenv("VOICECORE_AGENT_DIR")
	if agentDir == "" {
		agentDir = "agents"
	}
	fillerDir := os.Getenv("VOICECORE_FILLER_DIR")
	if fillerDir == "" {
		fillerDir = "fillers"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agents, defaultAgent, err := loadAgents(agentDir, mainLog)
	if err != nil {
		log.Fatalf("agent configs: %v", err)
	}

	fillers, err := hedge.LoadIndex(fillerDir, mainLog.WithPrefix("hedge"))
	if err != nil {
		log.Fatalf("filler index: %v", err)
	}

	callMetrics, scrapeHandler, err := metrics.NewPrometheus()
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}

	promptMirror := store.NewMemoryPromptStore()
	promptCache, err := cache.NewManager(ctx, apiKey, model, promptMirror, mainLog.WithPrefix("cache"))
	if err != nil {
		log.Fatalf("prompt cache: %v", err)
	}

	callStore := store.NewMemoryStore()

	launcher := &call.Launcher{
		APIKey:       apiKey,
		Model:        model,
		Agents:       agents,
		DefaultAgent: defaultAgent,
		Fillers:      fillers,
		Cache:        promptCache,
		Calls:        callStore,
		Logs:         callStore,
		Metrics:      callMetrics,
		Log:          mainLog,
	}

	server := transports.NewServer(transports.ServerConfig{
		Addr:    addr,
		Handler: launcher.Handle,
		Extra:   map[string]http.Handler{"/metrics": scrapeHandler},
		Log:     mainLog.WithPrefix("transport"),
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		mainLog.Info("shutdown requested")
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// loadAgents reads every *.yaml agent config in dir. The first agent by file
// order becomes the default.
func loadAgents(dir string, log *logger.Logger) (map[string]*agent.Config, string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, "", err
	}

	agents := make(map[string]*agent.Config, len(paths))
	var defaultAgent string
	for _, p := range paths {
		cfg, err := agent.Load(p)
		if err != nil {
			return nil, "", err
		}
		agents[cfg.ID] = cfg
		if defaultAgent == "" {
			defaultAgent = cfg.ID
		}
		log.Info("loaded agent %s (%s, %s)", cfg.ID, cfg.Name, cfg.Language)
	}
	if len(agents) == 0 {
		log.Warn("no agent configs found in %s", dir)
	}
	return agents, defaultAgent, nil
}
