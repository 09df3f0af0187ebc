package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options сервера. API монтируется на /api/, Ready вызывается из /health.
type Options struct {
	Addr          string
	ExposeMetrics bool
	API           http.Handler
	Ready         func(ctx context.Context) error
}

type Server struct {
	srv *http.Server
}

func New(o Options) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health(o.Ready))

	if o.ExposeMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	if o.API != nil {
		mux.Handle("/api/", o.API)
	}

	return &Server{srv: &http.Server{
		Addr:              o.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// health отвечает 503, пока Ready возвращает ошибку (например, база недоступна).
func health(ready func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT READY: " + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
