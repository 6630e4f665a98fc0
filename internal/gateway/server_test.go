package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
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

	"github.com/lunasherpa/luna/internal/agent"
	"github.com/lunasherpa/luna/internal/config"
	"github.com/lunasherpa/luna/internal/domain"
	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/logging"
	"github.com/lunasherpa/luna/internal/store"
)

type memRounds struct {
	mu     sync.Mutex
	rounds []store.Round
}

func (m *memRounds) Save(r store.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, r)
	return nil
}

func (m *memRounds) saved() []store.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Round(nil), m.rounds...)
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Agents.DemoDelayMs = -1
	return cfg
}

func testServer(t *testing.T, cfg config.Config, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(cfg, opts, logging.New(nil, "silent"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e.Error
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Empty(t, health.Version)
}

func TestStatusEndpoint(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "grok-4-1-fast-reasoning", status.Model)
	assert.True(t, status.Extended)
	assert.Equal(t, []string{"demo", "grok420", "xai"}, status.Backends)
}

func TestNotFoundEndpoint(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, resp).Code)
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp, err := http.Get(ts.URL + "/api/ask")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAgentsEndpoint(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp, err := http.Get(ts.URL + "/api/agents")
	require.NoError(t, err)
	defer resp.Body.Close()

	var agents []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	require.Len(t, agents, 4)
	assert.Equal(t, "luna", agents[0]["id"])
	assert.Equal(t, "designer", agents[3]["id"])
	_, hasPrompt := agents[0]["system"]
	assert.False(t, hasPrompt, "system prompts are not exposed")
}

func TestAskDemo(t *testing.T) {
	rounds := &memRounds{}
	h := hooks.NewManager(logging.New(nil, "silent"))
	var completed atomic.Int32
	h.On(hooks.EventRoundComplete, "test", func(context.Context, hooks.Payload) error {
		completed.Add(1)
		return nil
	})
	_, ts := testServer(t, testConfig(), Options{Rounds: rounds, Hooks: h})

	resp := postJSON(t, ts.URL+"/api/ask", map[string]any{"query": "Design a golf scoring API", "demo": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "demo", got.Backend)
	require.Len(t, got.Responses, 4)
	ids := []string{got.Responses[0].AgentID, got.Responses[1].AgentID, got.Responses[2].AgentID, got.Responses[3].AgentID}
	assert.Equal(t, []string{"luna", "researcher", "logician", "designer"}, ids)
	assert.Contains(t, got.FinalAnswer, "implementDesignagolfscoringAPI")
	assert.NotEmpty(t, got.RoundID)
	assert.Equal(t, int32(1), completed.Load())

	saved := rounds.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, got.RoundID, saved[0].ID)
	assert.Equal(t, "Design a golf scoring API", saved[0].Query)
	assert.Equal(t, "grok-4-1-fast-reasoning", saved[0].Model)
	assert.Len(t, saved[0].Responses, 4)
}

func TestAskValidation(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp := postJSON(t, ts.URL+"/api/ask", map[string]any{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad, err := http.Post(ts.URL+"/api/ask", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.Equal(t, "invalid_request", decodeError(t, bad).Code)
}

func TestAskWithoutCredential(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	resp := postJSON(t, ts.URL+"/api/ask", map[string]any{"query": "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	detail := decodeError(t, resp)
	assert.Equal(t, "missing_credential", detail.Code)
	assert.Contains(t, detail.Message, "no xAI API key configured")
}

func TestAskUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.BaseURL = upstream.URL
	_, ts := testServer(t, cfg, Options{Credential: "xai-bad"})

	resp := postJSON(t, ts.URL+"/api/ask", map[string]any{"query": "hello"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	detail := decodeError(t, resp)
	assert.Equal(t, "upstream_error", detail.Code)
	assert.Contains(t, detail.Message, "401")
}

func TestAskLive(t *testing.T) {
	var calls int
	var mu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.Equal(t, "Bearer xai-good", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"grok","choices":[{"index":0,"message":{"role":"assistant","content":"answer"},"finish_reason":"stop"}]}`))
	}))
	defer upstream.Close()

	cfg := testConfig()
	cfg.BaseURL = upstream.URL
	_, ts := testServer(t, cfg, Options{Credential: "xai-good"})

	resp := postJSON(t, ts.URL+"/api/ask", map[string]any{"query": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "grok420", got.Backend)
	assert.Equal(t, "answer", got.FinalAnswer)
	mu.Lock()
	assert.Equal(t, 5, calls, "four agents plus synthesis")
	mu.Unlock()
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketAskStreamsStatusThenComplete(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	hello := readMsg(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.NotEmpty(t, hello["connId"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "query": "How to add memory?", "demo": true}))

	first := readMsg(t, conn)
	assert.Equal(t, "status", first["type"])
	assert.Equal(t, "MacroFlow decomposing task...", first["message"])

	second := readMsg(t, conn)
	assert.Equal(t, "status", second["type"])
	assert.Equal(t, "Luna synthesizing final answer...", second["message"])

	done := readMsg(t, conn)
	assert.Equal(t, "complete", done["type"])
	assert.Len(t, done["responses"], 4)
	assert.Contains(t, done["finalAnswer"], "implementHowtoaddmemory")
}

func TestWebSocketErrors(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readMsg(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance"}))
	msg := readMsg(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "unknown message type")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{oops")))
	msg = readMsg(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "invalid message")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "query": "no key"}))
	msg = readMsg(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "no xAI API key configured")
}

// blockingRegistry serves live rounds from a client whose agent calls wait
// for their context to end.
func blockingRegistry(started, cancelled chan<- string) *llm.Registry {
	mock := &llm.MockClient{
		ProviderName: "blocking",
		CallFunc: func(ctx context.Context, a domain.AgentDescriptor, _, _, _ string) (*domain.AgentResponse, error) {
			started <- a.ID
			<-ctx.Done()
			cancelled <- a.ID
			return nil, ctx.Err()
		},
	}
	reg := llm.NewRegistry(logging.New(nil, "silent"))
	reg.Register(llm.BackendXAI, mock)
	reg.Register(llm.BackendGrok420, mock)
	return reg
}

func TestWebSocketDisconnectCancelsRound(t *testing.T) {
	started := make(chan string, 8)
	cancelled := make(chan string, 8)
	srv, ts := testServer(t, testConfig(), Options{
		Registry:   blockingRegistry(started, cancelled),
		Credential: "xai-live",
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	readMsg(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "query": "long question"}))

	for range agent.Agents() {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("agent calls did not start")
		}
	}
	conn.Close()

	for range agent.Agents() {
		select {
		case <-cancelled:
		case <-time.After(5 * time.Second):
			t.Fatal("agent calls were not cancelled after the panel disconnected")
		}
	}
	assert.Eventually(t, func() bool { return srv.clients.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketPingDuringRound(t *testing.T) {
	started := make(chan string, 8)
	cancelled := make(chan string, 8)
	_, ts := testServer(t, testConfig(), Options{
		Registry:   blockingRegistry(started, cancelled),
		Credential: "xai-live",
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()
	readMsg(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "query": "long question"}))
	assert.Equal(t, "status", readMsg(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readMsg(t, conn)["type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ask", "query": "another"}))
	msg := readMsg(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "already running")
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	_, ts := testServer(t, testConfig(), Options{})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestClientRegistryTracksConnections(t *testing.T) {
	srv, ts := testServer(t, testConfig(), Options{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	readMsg(t, conn)
	assert.Equal(t, 1, srv.clients.Count())

	conn.Close()
	assert.Eventually(t, func() bool { return srv.clients.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeAndShutdown(t *testing.T) {
	srv := New(testConfig(), Options{}, logging.New(nil, "silent"))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServe_LanBindRequiresToken(t *testing.T) {
	t.Setenv("LUNA_GATEWAY_TOKEN", "")
	cfg := testConfig()
	cfg.Gateway.Bind = "lan"
	srv := New(cfg, Options{}, logging.New(nil, "silent"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	err = srv.Serve(context.Background(), ln)
	assert.ErrorIs(t, err, ErrTokenRequired)
	_, err = http.Get("http://" + addr + "/api/status")
	assert.Error(t, err, "listener must be closed")

	assert.ErrorIs(t, srv.Start(context.Background()), ErrTokenRequired)
}

func TestServe_LanBindWithTokenRequiresAuth(t *testing.T) {
	t.Setenv("LUNA_GATEWAY_TOKEN", "")
	cfg := testConfig()
	cfg.Gateway.Bind = "lan"
	cfg.Gateway.Token = "lan-secret"
	srv := New(cfg, Options{}, logging.New(nil, "silent"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()
	base := "http://" + ln.Addr().String()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer lan-secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	assert.NoError(t, <-errCh)
}

func TestResolveBindAddr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:18790", resolveBindAddr(config.GatewayConfig{Port: 18790, Bind: "loopback"}))
	assert.Equal(t, "0.0.0.0:9000", resolveBindAddr(config.GatewayConfig{Port: 9000, Bind: "lan"}))
	assert.Equal(t, "127.0.0.1:1", resolveBindAddr(config.GatewayConfig{Port: 1}))
}

func TestClassifyError(t *testing.T) {
	status, code := classifyError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "round_failed", code)
}
