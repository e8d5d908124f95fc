package resourcefactory

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// defaultControlPort is hard-coded per spec §4.7/§9: no fallback if bind
// fails beyond a warning.
const defaultControlPort = 8001

// controlServer is the optional status-page/reload-trigger HTTP adapter
// (C6). Enabling it implies reload-support (spec §4.6): it is only ever
// constructed alongside a non-nil reloader.
type controlServer struct {
	port     int
	httpSrv  *http.Server
	listener net.Listener

	cache    *cache
	reloader *reloader

	upgrader websocket.Upgrader
	wsMu     sync.Mutex
	wsConns  []*websocket.Conn

	logger *slog.Logger
}

func newControlServer(port int, c *cache, rl *reloader, logger *slog.Logger) *controlServer {
	if port == 0 {
		port = defaultControlPort
	}
	s := &controlServer{
		port:     port,
		cache:    c,
		reloader: rl,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The status page and reload viewer are same-origin tooling, not a
			// public endpoint; a permissive origin check matches the rest of
			// this adapter's "trusted operator" threat model (spec §6).
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	rl.onEvent = s.broadcast
	return s
}

// bind opens the listener, returning false if the port could not be bound.
// A bind failure is logged as a warning, never returned as a fatal error,
// per spec §4.7: "failure to bind is a warning, not fatal." The caller is
// expected to run serve() in a supervised goroutine afterward.
func (s *controlServer) bind() bool {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/reload/", s.handleReload)
	mux.HandleFunc("/ws", s.handleWebsocket)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("control server failed to bind, continuing without it",
				"port", s.port, "error", err)
		}
		return false
	}
	s.listener = ln
	s.httpSrv = &http.Server{Handler: mux}
	return true
}

// serve blocks, accepting connections until stop() shuts the server down.
// Intended to run under the factory's errgroup (SPEC_FULL §5).
func (s *controlServer) serve() error {
	err := s.httpSrv.Serve(s.listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// stop shuts the control server down, closing any attached websocket viewers.
func (s *controlServer) stop(ctx context.Context) {
	if s.httpSrv == nil {
		return
	}
	_ = s.httpSrv.Shutdown(ctx)

	s.wsMu.Lock()
	for _, c := range s.wsConns {
		_ = c.Close()
	}
	s.wsConns = nil
	s.wsMu.Unlock()
}

// handleStatus emits the HTML status table listing each tracked resource's
// filename and current refcount (spec §4.6). Iteration order is the
// cache's natural map order; no sort is required.
func (s *controlServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><head><title>resourcefactory status</title></head><body>")
	fmt.Fprint(w, "<table border=\"1\"><tr><th>filename</th><th>refcount</th></tr>")
	for _, row := range s.cache.listFilenames() {
		fmt.Fprintf(w, "<tr><td>%s</td><td>%d</td></tr>", html.EscapeString(row.Filename), row.Refcount)
	}
	fmt.Fprint(w, "</table></body></html>")
}

// reloadLogTable is the severity/message mapping from spec §4.6, verbatim.
func reloadLogTable(result ReloadResult, name string, ext string) (slog.Level, string) {
	switch result {
	case ReloadOK:
		return slog.LevelInfo, fmt.Sprintf("%s was successfully reloaded.", name)
	case ReloadOutOfMemory:
		return slog.LevelError, fmt.Sprintf("Not enough memory to reload %s.", name)
	case ReloadFormatError, ReloadConstantError:
		return slog.LevelError, fmt.Sprintf("%s has invalid format and could not be reloaded.", name)
	case ReloadNotFound:
		return slog.LevelError, fmt.Sprintf("%s could not be reloaded since it was never loaded before.", name)
	case ReloadLoadError:
		return slog.LevelError, fmt.Sprintf("%s could not be loaded, reloading failed.", name)
	case ReloadNotSupported:
		return slog.LevelWarn, fmt.Sprintf("Reloading of resource type %s not supported.", ext)
	default:
		return slog.LevelWarn, fmt.Sprintf("%s could not be reloaded, unknown error: %s.", name, result)
	}
}

// handleReload drives Reload(name) and logs the outcome per spec §4.6's table.
func (s *controlServer) handleReload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/reload/")
	if name == "" {
		http.Error(w, "missing resource name", http.StatusBadRequest)
		return
	}

	result, desc := s.reloader.reload(r.Context(), name, s.reloader.load.uri.basePath)

	ext := ""
	if rec := s.reloader.registry.lookupHandle(desc.Type); rec != nil {
		ext = rec.extension
	}
	level, msg := reloadLogTable(result, name, ext)
	if s.logger != nil {
		s.logger.Log(r.Context(), level, msg)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result != ReloadOK {
		w.WriteHeader(http.StatusConflict)
	}
	fmt.Fprintln(w, msg)
}

// handleWebsocket upgrades GET /ws and registers the connection to receive
// a JSON line per successful reload (SPEC_FULL §4, C6 "live push"). This is
// purely additive: / and /reload/<name> behave identically whether or not
// any viewer is attached.
func (s *controlServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "error", err)
		}
		return
	}
	s.wsMu.Lock()
	s.wsConns = append(s.wsConns, conn)
	s.wsMu.Unlock()
}

// broadcast pushes a reload event to every attached websocket viewer,
// dropping (and closing) any connection that errors on write.
func (s *controlServer) broadcast(event reloadEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	live := s.wsConns[:0]
	for _, conn := range s.wsConns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = conn.Close()
			continue
		}
		live = append(live, conn)
	}
	s.wsConns = live
}

// update is the cooperative tick referenced by spec §4.6/§4.7's
// UpdateFactory: the control server here runs its own goroutine via
// net/http's Serve loop, so there is no pending I/O to drain explicitly.
// The method exists so Factory.UpdateFactory has a single, uniform call
// site regardless of whether this adapter is ever replaced by a
// non-goroutine-based transport.
func (s *controlServer) update() {}
