package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/panel"
)

// HealthResponse is returned by /health. Only Status is public; the other
// fields are filled by the authenticated /api/status.
type HealthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version,omitempty"`
	Clients  int      `json:"clients,omitempty"`
	Uptime   string   `json:"uptime,omitempty"`
	Model    string   `json:"model,omitempty"`
	Backends []string `json:"backends,omitempty"`
	Extended bool     `json:"extended,omitempty"`
}

// AgentView is the public shape of an agent persona.
type AgentView struct {
	ID           string                   `json:"id"`
	Name         string                   `json:"name"`
	Color        string                   `json:"color"`
	Emoji        string                   `json:"emoji"`
	Capabilities []domain.AgentCapability `json:"capabilities,omitempty"`
}

// AskResponse is returned by POST /api/ask.
type AskResponse struct {
	RoundID     string                 `json:"roundId"`
	Backend     string                 `json:"backend"`
	Responses   []domain.AgentResponse `json:"responses"`
	FinalAnswer string                 `json:"finalAnswer"`
	DurationMs  int64                  `json:"durationMs"`
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

// handleHealth reports liveness without revealing anything else.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var uptime string
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Clients:  s.clients.Count(),
		Uptime:   uptime,
		Model:    s.cfg.Model,
		Backends: s.registry.List(),
		Extended: s.cfg.Features.ExtendedEnabled(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents := agent.Agents()
	views := make([]AgentView, len(agents))
	for i, a := range agents {
		views[i] = AgentView{ID: a.ID, Name: a.Name, Color: a.Color, Emoji: a.Emoji, Capabilities: a.Capabilities}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var p askParams
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayload)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(p.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	res, err := s.runRound(r.Context(), p, nil)
	if err != nil {
		status, code := classifyError(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{
		RoundID:     res.RoundID,
		Backend:     res.Backend,
		Responses:   res.Responses,
		FinalAnswer: res.FinalAnswer,
		DurationMs:  res.Duration.Milliseconds(),
	})
}

// classifyError maps a round failure to an HTTP status and error code.
func classifyError(err error) (int, string) {
	var rse *llm.RemoteServiceError
	var aborted *llm.AbortedError
	switch {
	case errors.Is(err, llm.ErrMissingCredential):
		return http.StatusUnauthorized, "missing_credential"
	case errors.As(err, &aborted):
		return http.StatusGatewayTimeout, "aborted"
	case errors.As(err, &rse):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "round_failed"
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "not found: "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" not allowed on "+r.URL.Path)
}

// handleWebSocket upgrades to a WebSocket and serves one panel. Each ask
// message runs a round whose status, complete and error messages are
// streamed back to that panel.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client := NewClient(conn, s.log.Sub("ws"))
	s.clients.Add(client)

	// The hijacked request context outlives the peer, so rounds run under a
	// context that ends when the read side fails.
	ctx, cancel := context.WithCancel(r.Context())
	var rounds sync.WaitGroup
	defer func() {
		cancel()
		rounds.Wait()
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	agents := agent.Agents()
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	if err := client.Update(OutboundHello, Hello{ConnID: client.ConnID, Version: s.version, Agents: ids}); err != nil {
		client.log.Warn().Err(err).Msg("failed to send hello")
		return
	}

	s.readLoop(ctx, client, &rounds)
}

// readLoop keeps reading while a round runs so pings are answered and a
// disconnect is noticed. One round runs per connection at a time.
func (s *Server) readLoop(ctx context.Context, client *Client, rounds *sync.WaitGroup) {
	var busy atomic.Bool
	for {
		msg, err := client.ReadMessage()
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				client.Update(panel.KindError, panel.Error{Message: "invalid message: " + err.Error()})
				continue
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				client.log.Debug().Msg("panel closed connection")
			} else {
				client.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		switch msg.Type {
		case InboundPing:
			client.Update(OutboundPong, nil)
		case InboundAsk:
			if !busy.CompareAndSwap(false, true) {
				client.Update(panel.KindError, panel.Error{Message: "a round is already running on this connection"})
				continue
			}
			rounds.Add(1)
			go func(params askParams) {
				defer rounds.Done()
				defer busy.Store(false)
				s.serveAsk(ctx, client, params)
			}(msg.askParams)
		default:
			client.Update(panel.KindError, panel.Error{Message: "unknown message type: " + msg.Type})
		}
	}
}

// serveAsk runs one round for a panel.
func (s *Server) serveAsk(ctx context.Context, p panel.Panel, params askParams) {
	if strings.TrimSpace(params.Query) == "" {
		p.Update(panel.KindError, panel.Error{Message: "query is required"})
		return
	}
	progress := func(message string) {
		if err := p.Update(panel.KindStatus, panel.Status{Message: message}); err != nil {
			s.log.Debug().Err(err).Msg("failed to send status")
		}
	}

	res, err := s.runRound(ctx, params, progress)
	if err != nil {
		p.Update(panel.KindError, panel.Error{Message: err.Error()})
		return
	}
	p.Update(panel.KindComplete, panel.Complete{Responses: res.Responses, FinalAnswer: res.FinalAnswer})
}
