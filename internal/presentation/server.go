// Package presentation exposes the bridge to the presentation layer: the
// command invocation surface and the notification event stream.
package presentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/blucher/blucher/internal/bridge"
	"github.com/blucher/blucher/internal/notifier"
	"github.com/blucher/blucher/internal/relay"
	"github.com/blucher/blucher/pkg/protocol"
)

// CommandHandler is the inbound path invoked for each command.
type CommandHandler interface {
	OnCommand(ctx context.Context, message string) error
}

// StatusProvider reports daemon status for GET /api/v1/status.
type StatusProvider interface {
	Status() protocol.StatusResponse
}

// Server serves the presentation-layer API over a Unix socket and, when a
// NATS connection is given, over NATS request/reply.
type Server struct {
	socketPath string
	handler    CommandHandler
	status     StatusProvider
	nc         *nats.Conn
	eventBus   *EventBus
	httpServer *http.Server
	logger     zerolog.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	ln     net.Listener
	closed bool

	// baseCtx parents every request so Shutdown can end event streams.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a presentation server. nc may be nil.
func New(socketPath string, handler CommandHandler, status StatusProvider, nc *nats.Conn, logger zerolog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		handler:    handler,
		status:     status,
		nc:         nc,
		eventBus:   NewEventBus(32),
		logger:     logger.With().Str("component", "presentation").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/command", s.handleCommand)
	mux.HandleFunc("GET /api/v1/events", s.handleEventStream)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)

	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return s.baseCtx },
	}
	return s
}

// Handler returns the HTTP handler, for tests and alternate listeners.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// EventBus returns the bus feeding the event stream.
func (s *Server) EventBus() *EventBus { return s.eventBus }

// Listen binds the Unix socket and subscribes to NATS invocations. It
// returns http.ErrServerClosed if Shutdown already ran.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return http.ErrServerClosed
	}
	if s.ln != nil {
		return errors.New("presentation: already listening")
	}

	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	os.Chmod(s.socketPath, 0600)

	if s.nc != nil {
		sub, err := s.nc.Subscribe(protocol.SubjectUICommand, s.handleNATSCommand)
		if err != nil {
			ln.Close()
			return fmt.Errorf("subscribe %s: %w", protocol.SubjectUICommand, err)
		}
		s.sub = sub
	}
	s.ln = ln

	s.logger.Info().Str("socket", s.socketPath).Msg("presentation API listening")
	return nil
}

// Serve handles HTTP on the socket bound by Listen. Blocks until Shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return errors.New("presentation: serve before listen")
	}

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start is Listen followed by Serve. It returns nil if Shutdown runs first.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return s.Serve()
}

// Shutdown stops accepting invocations and closes open event streams.
// A later Listen or Start does nothing.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.cancelBase()
	return s.httpServer.Shutdown(ctx)
}

// Emit publishes a notification to event stream subscribers and, if
// configured, on NATS. It implements notifier.Sink. The event stream always
// receives the event, so a NATS failure is reported as a partial delivery.
func (s *Server) Emit(_ context.Context, name string, payload protocol.Payload) error {
	data, err := json.Marshal(protocol.NewEvent(name, payload))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	s.eventBus.Publish(data)

	if s.nc != nil {
		if err := s.nc.Publish(protocol.SubjectEvents(name), data); err != nil {
			return fmt.Errorf("%w: publish event: %w", notifier.ErrPartialDelivery, err)
		}
	}
	s.logger.Debug().Str("event", name).Str("message", payload.Message).Msg("sent to presentation layer")
	return nil
}

// invoke runs the handler and maps its error to an HTTP status.
func (s *Server) invoke(ctx context.Context, message string) (int, protocol.CommandResponse) {
	err := s.handler.OnCommand(ctx, message)
	switch {
	case err == nil:
		return http.StatusOK, protocol.CommandResponse{Status: "ok"}
	case errors.Is(err, bridge.ErrRejected):
		return http.StatusUnprocessableEntity, protocol.CommandResponse{Status: "rejected", Error: err.Error()}
	case errors.Is(err, relay.ErrClosed):
		return http.StatusServiceUnavailable, protocol.CommandResponse{Status: "closed", Error: err.Error()}
	default:
		return http.StatusInternalServerError, protocol.CommandResponse{Status: "error", Error: err.Error()}
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req protocol.CommandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.CommandResponse{Status: "error", Error: "invalid request body: " + err.Error()})
		return
	}

	code, resp := s.invoke(r.Context(), req.Message)
	if code != http.StatusOK {
		s.logger.Warn().Str("message", req.Message).Str("error", resp.Error).Msg("command failed")
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleNATSCommand(msg *nats.Msg) {
	var req protocol.CommandRequest
	var resp protocol.CommandResponse
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		resp = protocol.CommandResponse{Status: "error", Error: "invalid request: " + err.Error()}
	} else {
		_, resp = s.invoke(context.Background(), req.Message)
	}

	if msg.Reply == "" {
		return
	}
	data, _ := json.Marshal(resp)
	if err := msg.Respond(data); err != nil {
		s.logger.Error().Err(err).Msg("respond to command request")
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, recent, unsub := s.eventBus.SubscribeWithRecent()
	defer unsub()

	for _, data := range recent {
		writeEvent(w, data)
	}
	flusher.Flush()

	for {
		select {
		case data := <-ch:
			writeEvent(w, data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func writeEvent(w http.ResponseWriter, data []byte) {
	var evt protocol.Event
	name := protocol.EventInputUpdate
	if err := json.Unmarshal(data, &evt); err == nil && evt.Name != "" {
		name = evt.Name
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
