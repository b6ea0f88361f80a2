// Package server runs the loopback HTTP server that receives the provider
// redirect during a login. It exists only for the span of one flow: it
// serves the single callback GET, renders a small status page, and hands the
// terminal result back to the CLI.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/markb/authlite/internal/callback"
	"github.com/markb/authlite/internal/log"
)

// CallbackPath is the route the OAuth app's redirect URI points at.
const CallbackPath = "/auth/callback"

// Server bridges the provider redirect into the callback state machine.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	results    chan callback.Result
	addr       string
}

func New(handler *callback.Handler) *Server {
	s := &Server{
		results: make(chan callback.Result, 1),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(CallbackPath, s.callbackHandler(handler))
	s.router = r
	s.httpServer = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Results delivers the first terminal callback result. Later redirects (a
// reloaded callback page) are served but not re-delivered.
func (s *Server) Results() <-chan callback.Result {
	return s.results
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	return s.addr
}

// Start binds addr and serves in the background. The bind happens
// synchronously so a busy port fails the login before the browser opens.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind callback listener on %s: %w", addr, err)
	}
	s.addr = ln.Addr().String()
	log.Debug("callback server listening", "addr", s.addr)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("callback server failed", "err", err)
		}
	}()
	return nil
}

// Shutdown stops the server, letting an in-flight callback response finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) callbackHandler(handler *callback.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := handler.Handle(r.Context(), r.URL.Query())

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.Failed() {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, failurePage, template.HTMLEscapeString(res.Message))
		} else {
			fmt.Fprint(w, successPage)
		}

		select {
		case s.results <- res:
		default:
		}
	}
}

const successPage = `<!DOCTYPE html>
<html>
<head><title>Signed in</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Signed in</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Sign-in failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Sign-in failed</h1>
<p>%s</p>
<p>You can close this window and retry from the terminal.</p>
</body>
</html>
`
