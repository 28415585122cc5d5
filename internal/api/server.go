package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Logger is the minimal structured-logging surface the server needs.
type Logger interface {
	Errorf(format string, args ...any)
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Infof(string, ...any)  {}

// Server exposes a Dispatcher over a local WebSocket listener, one
// connection per UI client (popup, options page, keyboard-shortcut
// listener), per spec.md §4.7. Connections never originate from outside
// the machine the daemon runs on, so origin checks are permissive.
type Server struct {
	addr string
	disp *Dispatcher
	log  Logger

	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer builds a Server bound to addr (e.g. "127.0.0.1:7890").
func NewServer(addr string, disp *Dispatcher, log Logger) *Server {
	if log == nil {
		log = nopLogger{}
	}
	s := &Server{
		addr: addr,
		disp: disp,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving connections until the listener fails or
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Infof("api: listening on %s", s.addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown() error {
	return s.srv.Close()
}

// handleWebSocket upgrades the connection and runs a simple
// one-message-in, one-message-out loop until the client disconnects.
// Malformed requests and requests Dispatcher refuses are dropped with no
// response at all, per spec.md §7 ("the UI interprets absence as
// failure").
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("api: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			continue
		}

		resp, ok := s.disp.Handle(ctx, req)
		if !ok {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}
