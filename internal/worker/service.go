// Package worker hosts the HTTP surface of factura: session operations,
// invoice previews, business lookups and the SSE event stream.
package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/factura/internal/catalog"
	"github.com/thebtf/factura/internal/config"
	"github.com/thebtf/factura/internal/llm"
	"github.com/thebtf/factura/internal/session"
	"github.com/thebtf/factura/internal/worker/sse"
)

// Service wires the session manager, catalog store and event stream behind
// the HTTP router.
type Service struct {
	cfg         *config.Config
	store       catalog.Store
	manager     *session.Manager
	broadcaster *sse.Broadcaster
	metrics     *Metrics
	router      chi.Router
}

// NewService assembles the worker. The manager's event sink feeds the SSE
// broadcaster and the reset counter.
func NewService(cfg *config.Config, store catalog.Store, model llm.Client) (*Service, error) {
	metrics, err := NewMetrics()
	if err != nil {
		return nil, err
	}

	systemPrompt, err := llm.SystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:         cfg,
		store:       store,
		broadcaster: sse.NewBroadcaster(),
		metrics:     metrics,
	}

	opts := []session.Option{
		session.WithEventSink(func(event session.Event) {
			s.broadcaster.Broadcast(event)
			if event.Kind == session.EventSessionReset {
				s.metrics.recordReset(context.Background())
			}
		}),
	}
	if counter, err := llm.NewTokenCounter(); err == nil {
		opts = append(opts, session.WithTokenCounter(counter))
	} else {
		log.Warn().Err(err).Msg("token counter unavailable, accounting disabled")
	}

	s.manager = session.NewManager(store, model, systemPrompt, cfg.ResetDelay, opts...)
	s.router = s.routes()
	return s, nil
}

// Manager exposes the session manager, for tests.
func (s *Service) Manager() *session.Manager { return s.manager }

// ApplySettings applies the reloadable subset of a freshly loaded config to
// the running worker. Listen address, store backend and model selection are
// fixed at startup and need a restart; the model timeout is read from the
// installed config at call time.
func (s *Service) ApplySettings(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.manager.SetResetDelay(cfg.ResetDelay)
	log.Info().
		Dur("reset_delay", cfg.ResetDelay).
		Dur("model_timeout", cfg.ModelTimeout).
		Msg("settings applied")
}

func (s *Service) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/api/events", s.broadcaster.ServeHTTP)
	r.Get("/api/businesses/{businessID}", s.handleGetBusiness)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.handleStartSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Get("/preview", s.handleGetPreview)
			r.Get("/reasoning", s.handleGetReasoning)
			r.Get("/status", s.handleGetStatus)
			r.Post("/request", s.handleSubmitRequest)
			r.Post("/followup", s.handleSubmitFollowUp)
			r.Post("/edits", s.handleApplyEdits)
			r.Post("/confirm", s.handleConfirm)
			r.Post("/save-all", s.handleSaveAll)
			r.Post("/close-items", s.handleCloseItems)
			r.Post("/reset", s.handleReset)
			r.Post("/items/{itemID}/save", s.handleSaveItem)
		})
	})
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Service) Handler() http.Handler { return s.router }

// Run serves HTTP until the context is canceled, then drains.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", s.cfg.ListenAddr).Msg("worker listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}
