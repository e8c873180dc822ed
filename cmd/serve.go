package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-enrich/internal/model"
	"github.com/sells-group/leadgen-enrich/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for job control, leads and history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type apiHandler struct {
	env *appEnv
}

func newRouter(env *appEnv) chi.Router {
	h := &apiHandler{env: env}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.listJobs)
			r.Post("/", h.createJob)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", h.getJob)
				r.Get("/failures", h.listFailures)
				r.Get("/alerts", h.listAlerts)
				r.Post("/start", h.control(func(ctx context.Context, id string) error { return env.Orchestrator.Start(ctx, id) }))
				r.Post("/pause", h.control(func(ctx context.Context, id string) error { return env.Orchestrator.Pause(ctx, id) }))
				r.Post("/resume", h.control(func(ctx context.Context, id string) error { return env.Orchestrator.Resume(ctx, id) }))
				r.Post("/retry-failed", h.retryFailed)
			})
		})

		r.Get("/leads", h.listParties(model.EntityLead))
		r.Get("/competitors", h.listParties(model.EntityCompetitor))
		r.Get("/projects/{projectID}/markets", h.marketCounts)
		r.Get("/history/{entity}/{id}", h.history)
	})

	return r
}

// requestLogger logs each request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			zap.L().Debug("request completed",
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *apiHandler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.env.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *apiHandler) listJobs(w http.ResponseWriter, r *http.Request) {
	filter := store.JobFilter{ProjectID: r.URL.Query().Get("project")}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Statuses = []model.JobStatus{model.JobStatus(s)}
	}
	filter.Limit = queryInt(r, "limit", 50)

	jobs, err := h.env.Store.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

type createJobRequest struct {
	ProjectID   string   `json:"project_id"`
	ClientIDs   []string `json:"client_ids"`
	BatchSize   int      `json:"batch_size"`
	Concurrency int      `json:"concurrency"`
	Start       bool     `json:"start"`
}

func (h *apiHandler) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ProjectID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "project_id is required"})
		return
	}

	ctx := r.Context()
	ids := req.ClientIDs
	if len(ids) == 0 {
		clients, err := h.env.Store.ListClients(ctx, store.ClientFilter{ProjectID: req.ProjectID, Limit: 100000})
		if err != nil {
			writeError(w, err)
			return
		}
		for _, c := range clients {
			ids = append(ids, c.ID)
		}
	}

	job := &model.Job{ProjectID: req.ProjectID, BatchSize: req.BatchSize, Concurrency: req.Concurrency}
	if err := h.env.Orchestrator.NewJob(ctx, job, ids); err != nil {
		writeError(w, err)
		return
	}
	if req.Start {
		if err := h.env.Orchestrator.Start(ctx, job.ID); err != nil {
			writeError(w, err)
			return
		}
		job.Status = model.JobRunning
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *apiHandler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.env.Store.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		*model.Job
		Percent float64 `json:"percent"`
	}{job, job.Percent()})
}

func (h *apiHandler) listFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := h.env.Store.ListFailures(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, failures)
}

func (h *apiHandler) listAlerts(w http.ResponseWriter, r *http.Request) {
	events, err := h.env.Store.ListAlertEvents(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *apiHandler) control(fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		if err := fn(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		job, err := h.env.Store.GetJob(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (h *apiHandler) retryFailed(w http.ResponseWriter, r *http.Request) {
	job, err := h.env.Orchestrator.RetryFailed(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *apiHandler) listParties(entity model.EntityType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := store.PartyFilter{
			ProjectID: q.Get("project"),
			MarketID:  q.Get("market"),
			Tier:      q.Get("tier"),
			Status:    model.ValidationStatus(q.Get("status")),
			State:     q.Get("state"),
			Name:      q.Get("name"),
			MinScore:  queryInt(r, "min_score", 0),
			Limit:     queryInt(r, "limit", 50),
			Offset:    queryInt(r, "offset", 0),
		}
		parties, err := h.env.Store.ListParties(r.Context(), entity, filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, parties)
	}
}

func (h *apiHandler) marketCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.env.Store.LeadCountsByMarket(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *apiHandler) history(w http.ResponseWriter, r *http.Request) {
	entity := model.EntityType(chi.URLParam(r, "entity"))
	if _, ok := model.DefFor(entity); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown entity"})
		return
	}
	entries, err := h.env.Store.ListHistory(r.Context(), entity, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error to an HTTP status by its sentinel.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConstraintViolation):
		status = http.StatusConflict
	case errors.Is(err, model.ErrConfigurationMissing):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
