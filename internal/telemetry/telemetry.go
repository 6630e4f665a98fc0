// Package telemetry records usage events and failures to the local store.
//
// A Service is an explicit handle: it is created by the command root,
// passed to whatever needs it, and flushed and closed on exit. A disabled
// Service accepts every call and records nothing.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/lunasherpa/luna/internal/hooks"
	"github.com/lunasherpa/luna/internal/llm"
	"github.com/lunasherpa/luna/internal/logging"
	"github.com/lunasherpa/luna/internal/store"
)

// flushThreshold triggers an automatic flush once this many events are buffered.
const flushThreshold = 50

// maxMessageLen bounds error messages copied into event properties.
const maxMessageLen = 100

// Sink receives flushed events.
type Sink interface {
	Append(events []store.Event) error
}

// Service buffers events in memory and writes them to a Sink on Flush.
type Service struct {
	mu     sync.Mutex
	sink   Sink
	buf    []store.Event
	closed bool
	closer func() error
	log    *logging.Logger
}

// New creates a Service writing to sink. A nil sink yields a disabled Service.
func New(sink Sink, log *logging.Logger) *Service {
	return &Service{sink: sink, log: log.Sub("telemetry")}
}

// Disabled returns a Service that records nothing.
func Disabled() *Service {
	return &Service{}
}

// Open creates a Service backed by a SQLite database at dbPath. When enabled
// is false the database is not touched and a disabled Service is returned.
func Open(dbPath string, enabled bool, log *logging.Logger) (*Service, error) {
	if !enabled {
		return Disabled(), nil
	}
	db, err := store.Open(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("opening telemetry store: %w", err)
	}
	s := New(store.NewEventStore(db), log)
	s.closer = db.Close
	s.TrackEvent("ExtensionActivated", nil)
	return s, nil
}

// Enabled reports whether events are being recorded.
func (s *Service) Enabled() bool {
	return s != nil && s.sink != nil
}

// TrackEvent records a named event.
func (s *Service) TrackEvent(name string, props map[string]string) {
	s.record(store.Event{Kind: store.KindEvent, Name: name, Properties: props})
}

// TrackException records a failure. The error message, its type and the
// upstream status code (when known) are added to props.
func (s *Service) TrackException(err error, props map[string]string) {
	if err == nil {
		return
	}
	merged := map[string]string{
		"message":   truncate(err.Error(), maxMessageLen),
		"errorType": errorType(err),
	}
	if code := llm.StatusCode(err); code != 0 {
		merged["statusCode"] = fmt.Sprint(code)
	}
	for k, v := range props {
		merged[k] = v
	}
	s.record(store.Event{Kind: store.KindException, Name: "Exception", Properties: merged})
}

// TrackMediaEvent records a media event named "Media<Event>" with the
// media type added to props.
func (s *Service) TrackMediaEvent(event, mediaType string, props map[string]string) {
	merged := map[string]string{"mediaType": mediaType}
	for k, v := range props {
		merged[k] = v
	}
	s.TrackEvent("Media"+capitalize(event), merged)
}

func (s *Service) record(e store.Event) {
	if !s.Enabled() {
		return
	}
	e.CreatedAt = time.Now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.buf = append(s.buf, e)
	full := len(s.buf) >= flushThreshold
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.log.Warn().Err(err).Msg("telemetry auto-flush failed")
		}
	}
}

// Pending returns the number of buffered events.
func (s *Service) Pending() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Flush writes buffered events to the sink. On failure the events stay
// buffered for the next attempt.
func (s *Service) Flush() error {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := s.sink.Append(batch); err != nil {
		s.mu.Lock()
		s.buf = append(batch, s.buf...)
		s.mu.Unlock()
		return fmt.Errorf("flushing %d telemetry events: %w", len(batch), err)
	}
	s.log.Debug().Int("events", len(batch)).Msg("telemetry flushed")
	return nil
}

// Close flushes pending events and releases the underlying store.
// Further tracking calls are ignored.
func (s *Service) Close() error {
	if !s.Enabled() {
		return nil
	}
	flushErr := s.Flush()

	s.mu.Lock()
	s.closed = true
	closer := s.closer
	s.closer = nil
	s.mu.Unlock()

	if closer != nil {
		return errors.Join(flushErr, closer())
	}
	return flushErr
}

// Subscribe translates lifecycle hooks into telemetry events.
func (s *Service) Subscribe(h *hooks.Manager) {
	if !s.Enabled() || h == nil {
		return
	}
	h.OnAll("telemetry", func(_ context.Context, p hooks.Payload) error {
		s.handle(p)
		return nil
	})
}

func (s *Service) handle(p hooks.Payload) {
	switch p.Event {
	case hooks.EventCommandExecuted:
		s.TrackEvent("CommandExecuted", props(p.Data, "command"))
	case hooks.EventRoundComplete:
		if str(p.Data["backend"]) == llm.BackendDemo {
			return
		}
		s.TrackEvent("ApiCallSuccess", props(p.Data, "agentCount", "model", "backend", "durationMs"))
	case hooks.EventRoundFailed:
		msg := truncate(str(p.Data["error"]), maxMessageLen)
		failed := props(p.Data, "stage", "statusCode")
		failed["errorMessage"] = msg
		s.TrackEvent("ApiCallFailed", failed)
	case hooks.EventMediaProcessed:
		s.TrackMediaEvent(str(p.Data["event"]), str(p.Data["mediaType"]), props(p.Data, "command"))
	case hooks.EventBuildCreated:
		s.TrackEvent("BuildCreated", props(p.Data, "buildId", "status", "artifacts"))
	case hooks.EventGatewayStart:
		s.TrackEvent("GatewayStarted", props(p.Data, "addr"))
	}
}

// props copies the named keys from data as strings, skipping absent ones.
func props(data map[string]any, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := data[k]; ok {
			out[k] = str(v)
		}
	}
	return out
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// errorType names the most specific known error in err's chain.
func errorType(err error) string {
	var rse *llm.RemoteServiceError
	var aborted *llm.AbortedError
	switch {
	case errors.As(err, &rse):
		return "RemoteServiceError"
	case errors.As(err, &aborted):
		return "AbortedError"
	case errors.Is(err, llm.ErrMissingCredential):
		return "MissingCredentialError"
	default:
		t := fmt.Sprintf("%T", err)
		return strings.TrimPrefix(t, "*")
	}
}
