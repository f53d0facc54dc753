package transports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/square-key-labs/voicecore-ai/src/carriers"
	"github.com/square-key-labs/voicecore-ai/src/logger"
)

// ConnHandler receives each established carrier connection, typically to
// wire a call supervisor around it. It runs on its own goroutine.
type ConnHandler func(ctx context.Context, conn *CarrierConn, r *http.Request)

// ServerConfig configures the carrier websocket server.
type ServerConfig struct {
	Addr string // e.g. ":8080"

	// Handler is invoked per accepted connection.
	Handler ConnHandler

	// Extra HTTP routes served alongside the carrier endpoints, e.g. the
	// metrics scrape handler.
	Extra map[string]http.Handler

	Log *logger.Logger
}

// Server exposes the two carrier endpoints:
//
//	/carrier/telephony  - PBX media streams
//	/carrier/browser    - browser/test streams
type Server struct {
	cfg      ServerConfig
	server   *http.Server
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewServer creates the carrier server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Log == nil {
		cfg.Log = logger.WithPrefix("transport")
	}
	if cfg.Handler == nil {
		panic("transports: Server requires a ConnHandler")
	}
	return &Server{
		cfg: cfg,
		log: cfg.Log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/carrier/telephony", func(w http.ResponseWriter, r *http.Request) {
		s.accept(ctx, w, r, carriers.Telephony)
	})
	mux.HandleFunc("/carrier/browser", func(w http.ResponseWriter, r *http.Request) {
		s.accept(ctx, w, r, carriers.Browser)
	})
	for path, h := range s.cfg.Extra {
		mux.Handle(path, h)
	}

	s.server = &http.Server{Addr: s.cfg.Addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.log.Info("carrier server listening on %s", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("transports: serve: %w", err)
	}
	return nil
}

func (s *Server) accept(ctx context.Context, w http.ResponseWriter, r *http.Request, typ carriers.Type) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed: %v", err)
		return
	}

	var adapter carriers.Adapter
	switch typ {
	case carriers.Telephony:
		adapter = carriers.NewTelephonyAdapter(s.log.WithPrefix("telephony"))
	default:
		adapter = carriers.NewBrowserAdapter(s.log.WithPrefix("browser"))
	}

	conn := NewCarrierConn(ctx, ws, adapter, s.log.WithPrefix(string(typ)))
	s.log.Info("carrier connection accepted (%s, %s)", typ, r.RemoteAddr)

	go s.cfg.Handler(ctx, conn, r)
}
