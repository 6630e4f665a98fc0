// Package gateway serves the Luna panel over HTTP and WebSocket on the
// local machine. A browser or script posts a question and receives the
// same status, complete and error messages the terminal panel renders.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/logging"
	"github.com/lunasherpa/luna/internal/store"
	"github.com/lunasherpa/luna/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

// ErrTokenRequired is returned by Serve when the gateway would listen on the
// network without a token.
var ErrTokenRequired = errors.New("gateway.bind is lan but no gateway token is set")

// maxPayload bounds inbound WebSocket messages and request bodies.
const maxPayload = 4 * 1024 * 1024

// RoundRecorder persists completed rounds.
type RoundRecorder interface {
	Save(r store.Round) error
}

// Options wires the gateway to the rest of the application. A nil
// Registry is built from the config.
type Options struct {
	Registry   *llm.Registry
	Credential string
	Hooks      *hooks.Manager
	Rounds     RoundRecorder
}

// Server is the Luna gateway HTTP + WebSocket server.
type Server struct {
	cfg        config.Config
	auth       ResolvedAuth
	log        *logging.Logger
	clients    *ClientRegistry
	registry   *llm.Registry
	credential string
	hooks      *hooks.Manager
	rounds     RoundRecorder
	version    string

	startedAt   time.Time
	httpServer  *http.Server
	router      chi.Router
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// New creates a gateway server.
func New(cfg config.Config, opts Options, log *logging.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		registry:    opts.Registry,
		credential:  opts.Credential,
		hooks:       opts.Hooks,
		rounds:      opts.Rounds,
		version:     version.Version,
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}
	if s.registry == nil {
		s.registry = llm.NewRegistryFromConfig(cfg, nil, log)
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// checkWebSocketOrigin allows requests without an Origin header (non-browser
// clients) and browser requests from a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return isOriginAllowed(origin, allowed)
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.Gateway.Exposed() && !s.auth.Enabled() {
		return ErrTokenRequired
	}
	ln, err := net.Listen("tcp", resolveBindAddr(s.cfg.Gateway))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", resolveBindAddr(s.cfg.Gateway), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on an existing listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.Gateway.Exposed() && !s.auth.Enabled() {
		ln.Close()
		return ErrTokenRequired
	}
	s.httpServer = &http.Server{
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// Rounds can outlast any fixed write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Bool("auth", s.auth.Enabled()).
		Msg("gateway server ready")
	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// askParams is one question submitted over HTTP or WebSocket.
type askParams struct {
	Query       string `json:"query"`
	CodeContext string `json:"codeContext,omitempty"`
	Model       string `json:"model,omitempty"`
	Demo        bool   `json:"demo,omitempty"`
}

// runRound selects a backend for the request, runs one round and records it.
func (s *Server) runRound(ctx context.Context, p askParams, progress func(string)) (*agent.RoundResult, error) {
	credential := s.credential
	if p.Demo {
		credential = llm.DemoCredential
	}
	if strings.TrimSpace(credential) == "" {
		return nil, &llm.MissingCredentialError{Hint: "store a key with `luna key set` or send \"demo\": true"}
	}
	model := p.Model
	if model == "" {
		model = s.cfg.Model
	}

	client, err := s.registry.Select(credential, s.cfg.Features.ExtendedEnabled())
	if err != nil {
		return nil, err
	}
	mgr := agent.NewManager(agent.Agents(), client, agent.Options{
		CallTimeout: s.cfg.CallTimeout(),
		Hooks:       s.hooks,
	}, s.log)

	res, err := mgr.Ask(ctx, agent.Request{
		Query:       p.Query,
		CodeContext: p.CodeContext,
		Credential:  credential,
		Model:       model,
		Progress:    progress,
	})
	if err != nil {
		return nil, err
	}

	if s.rounds != nil {
		rec := store.Round{
			ID:          res.RoundID,
			Query:       p.Query,
			Backend:     res.Backend,
			Model:       model,
			FinalAnswer: res.FinalAnswer,
			Duration:    res.Duration,
			Responses:   append([]domain.AgentResponse(nil), res.Responses...),
		}
		if err := s.rounds.Save(rec); err != nil {
			s.log.Warn().Err(err).Str("roundId", res.RoundID).Msg("failed to record round")
		}
	}
	return res, nil
}
