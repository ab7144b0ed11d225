// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package api

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/meridianledger/meridian/pkg/errors"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

// ServerOptions configures the HTTP front of the API.
type ServerOptions struct {
	// CorsOrigins is the allowed CORS origins; empty allows any.
	CorsOrigins []string

	// ConnectionLimit bounds concurrent requests; zero disables the limit.
	ConnectionLimit int

	// ReadHeaderTimeout prevents slow-loris attacks.
	ReadHeaderTimeout time.Duration
}

// Server serves the API over one or more listeners.
type Server struct {
	srv      *http.Server
	inFlight atomic.Int64
	limit    int64
}

// NewServer wraps the method table in an HTTP server.
func NewServer(m *JrpcMethods, opts ServerOptions) *Server {
	s := new(Server)
	s.limit = int64(opts.ConnectionLimit)

	var handler http.Handler = m.NewMux()
	handler = s.limitConnections(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: opts.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(handler)

	timeout := opts.ReadHeaderTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	s.srv = &http.Server{Handler: handler, ReadHeaderTimeout: timeout}
	return s
}

func (s *Server) limitConnections(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		if s.limit > 0 && n > s.limit {
			mApiRequests.WithLabelValues("rejected").Inc()
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Serve serves every listener until the context is canceled or a listener
// fails.
func (s *Server) Serve(ctx context.Context, listeners []net.Listener) error {
	if len(listeners) == 0 {
		return errors.BadRequest.With("no listeners")
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, l := range listeners {
		l := l
		eg.Go(func() error {
			err := s.srv.Serve(l)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(sctx)
	})

	return eg.Wait()
}

// Listen binds every address. If any bind fails, the already bound listeners
// are closed and the error is returned - the API either has its full port
// surface or none of it.
func Listen(addrs []string) ([]net.Listener, error) {
	var listeners []net.Listener
	for _, addr := range addrs {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, errors.UnknownError.WithFormat("listen %s: %w", addr, err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}
