// Package server is the development server: it serves the built site with a
// fallback to the sources, injects a live-reload client into every HTML
// page and tells connected browsers to reload after each rebuild.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sitekit/internal/config"
	"github.com/conneroisu/sitekit/internal/logging"
)

// ReloadPath is the websocket endpoint of the live-reload client.
const ReloadPath = "/_sitekit/ws"

const reloadScript = `<script>(function(){` +
	`var p=location.protocol==="https:"?"wss:":"ws:";` +
	`var ws=new WebSocket(p+"//"+location.host+"` + ReloadPath + `");` +
	`ws.onmessage=function(e){var m=JSON.parse(e.data);if(m.type==="reload"){location.reload();}};` +
	`})();</script>`

// Server serves files from an ordered list of roots.
type Server struct {
	cfg    *config.Config
	roots  []string
	logger logging.Logger
	hub    *Hub

	mu         sync.RWMutex
	httpServer *http.Server
	addr       string
}

// New creates a server for cfg. A request is answered from the first root
// holding the file, so passing dist, app and public lets development builds
// serve resources that were never copied.
func New(cfg *config.Config, logger logging.Logger, roots ...string) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	return &Server{
		cfg:    cfg,
		roots:  roots,
		logger: logger,
		hub:    newHub(logger),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.cfg.Server.LiveReload {
		mux.HandleFunc(ReloadPath, s.handleWebSocket)
	}
	mux.HandleFunc("/", s.handleStatic)

	return Chain(mux,
		loggingMiddleware(s.logger),
		securityHeadersMiddleware,
		noCacheMiddleware,
	)
}

// Start listens on the configured address and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Address(), err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.addr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info(ctx, "serving", "url", s.URL(), "live_reload", s.cfg.Server.LiveReload)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// URL returns the address the server listens on, once started.
func (s *Server) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr := s.addr
	if addr == "" {
		addr = s.cfg.Address()
	}
	return "http://" + addr
}

// Reload tells every connected browser to reload.
func (s *Server) Reload(ctx context.Context) error {
	return s.hub.Broadcast(ctx, UpdateMessage{Type: "reload", Timestamp: time.Now()})
}

// Clients returns the number of connected live-reload clients.
func (s *Server) Clients() int {
	return s.hub.Count()
}

// allowedOrigins lists the origins the live-reload endpoint accepts: the
// request's own host, the configured address and its loopback aliases, and
// server.allowed_origins.
func (s *Server) allowedOrigins(r *http.Request) []string {
	port := strconv.Itoa(s.cfg.Server.Port)
	allowed := []string{
		r.Host,
		net.JoinHostPort(s.cfg.Server.Host, port),
		net.JoinHostPort("localhost", port),
		net.JoinHostPort("127.0.0.1", port),
	}
	return append(allowed, s.cfg.Server.AllowedOrigins...)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, ok := s.lookup(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if strings.EqualFold(filepath.Ext(file), ".html") {
		s.serveHTML(w, r, file)
		return
	}

	f, err := os.Open(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) serveHTML(w http.ResponseWriter, r *http.Request, file string) {
	data, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if s.cfg.Server.LiveReload {
		data = InjectReloadScript(data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

// lookup maps a URL path to the first existing file under the roots.
// Directories resolve to their index.html.
func (s *Server) lookup(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if strings.HasSuffix(urlPath, "/") || clean == "/" {
		clean = path.Join(clean, "index.html")
	}

	for _, root := range s.roots {
		candidate := filepath.Join(root, filepath.FromSlash(clean))
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if info.IsDir() {
			candidate = filepath.Join(candidate, "index.html")
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
		}
		return candidate, true
	}
	return "", false
}

// InjectReloadScript inserts the live-reload client before the last
// </body>, or appends it when the page has none.
func InjectReloadScript(page []byte) []byte {
	idx := lastIndexFold(page, []byte("</body>"))
	if idx < 0 {
		return append(append([]byte{}, page...), reloadScript...)
	}

	out := make([]byte, 0, len(page)+len(reloadScript))
	out = append(out, page[:idx]...)
	out = append(out, reloadScript...)
	return append(out, page[idx:]...)
}

func lastIndexFold(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
