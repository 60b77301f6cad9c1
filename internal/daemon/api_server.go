package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"briefcast/internal/config"
	"briefcast/internal/feed"
	"briefcast/internal/logging"
	"briefcast/internal/produce"
	"briefcast/internal/queue"
	"briefcast/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	episodesDir string

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:        bind,
		logger:      logging.NewComponentLogger(logger, "api"),
		daemon:      d,
		episodesDir: cfg.Paths.EpisodesDir,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobItem)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/clear", srv.handleQueueClear)
	mux.HandleFunc("/api/series", srv.handleSeries)
	mux.HandleFunc("/api/series/", srv.handleSeriesItem)
	mux.HandleFunc("/api/episodes", srv.handleEpisodes)
	mux.HandleFunc("/api/episodes/", srv.handleEpisodeItem)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/feed.xml", srv.handleFeed)
	mux.Handle("/episodes/", http.StripPrefix("/episodes/", http.FileServer(http.Dir(cfg.Paths.EpisodesDir))))

	// Series creation runs the outline request synchronously inside its
	// handler, so the write timeout must outlast the script client's budget.
	writeTimeout := time.Duration(cfg.ScriptGen.TimeoutSeconds)*time.Second + 30*time.Second

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

type enqueueRequest struct {
	Kind    string `json:"kind"`
	Topic   string `json:"topic,omitempty"`
	Depth   string `json:"depth,omitempty"`
	Brief   string `json:"brief,omitempty"`
	Trailer bool   `json:"trailer,omitempty"`
	Message string `json:"message,omitempty"`
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		views, err := s.daemon.reporter.ListJobs(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
	case http.MethodPost:
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		input, kind, err := buildJobInput(req)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		job, err := s.daemon.scheduler.Enqueue(r.Context(), kind, input)
		if err != nil {
			if errors.Is(err, services.ErrCapExceeded) {
				s.writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": job.Status})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func buildJobInput(req enqueueRequest) (string, queue.Kind, error) {
	kind := queue.Kind(strings.TrimSpace(req.Kind))
	if kind == "" {
		kind = queue.KindEpisode
	}
	switch kind {
	case queue.KindEpisode:
		if strings.TrimSpace(req.Topic) == "" {
			return "", kind, errors.New("topic is required for episode jobs")
		}
		payload, err := json.Marshal(produce.EpisodeInput{
			Topic:     req.Topic,
			Depth:     req.Depth,
			Brief:     req.Brief,
			IsTrailer: req.Trailer,
		})
		return string(payload), kind, err
	case queue.KindChat:
		if strings.TrimSpace(req.Message) == "" {
			return "", kind, errors.New("message is required for chat jobs")
		}
		payload, err := json.Marshal(produce.ChatInput{Message: req.Message, Depth: req.Depth})
		return string(payload), kind, err
	case queue.KindAutoqueue:
		return "", kind, nil
	default:
		return "", kind, fmt.Errorf("unknown job kind %q", kind)
	}
}

func (s *apiServer) handleJobItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	view, err := s.daemon.reporter.GetJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	views, err := s.daemon.reporter.ListActiveJobs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	removed, err := s.daemon.store.ClearQueue(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

type createSeriesRequest struct {
	Prompt   string           `json:"prompt,omitempty"`
	Episodes int              `json:"episodes,omitempty"`
	Title    string           `json:"title,omitempty"`
	Plan     []queue.PlanStep `json:"plan,omitempty"`
}

func (s *apiServer) handleSeries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		views, err := s.daemon.reporter.ListSeries(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"series": views})
	case http.MethodPost:
		var req createSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		var (
			created *queue.Series
			err     error
		)
		switch {
		case len(req.Plan) > 0:
			created, err = s.daemon.series.Create(r.Context(), req.Title, req.Plan)
		case strings.TrimSpace(req.Prompt) != "":
			created, err = s.daemon.series.CreateFromPrompt(r.Context(), req.Prompt, req.Episodes)
		default:
			s.writeError(w, http.StatusBadRequest, "prompt or plan is required")
			return
		}
		if err != nil {
			if errors.Is(err, services.ErrGeneration) {
				s.writeError(w, http.StatusBadGateway, err.Error())
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]any{"series_id": created.ID, "title": created.Title, "episodes": len(created.Plan)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSeriesItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/series/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "series not found")
		return
	}
	view, err := s.daemon.reporter.GetSeries(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "series not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *apiServer) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	episodes, err := s.daemon.store.ListEpisodes(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"episodes": episodeViews(episodes)})
}

func (s *apiServer) handleEpisodeItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/episodes/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	if err := s.daemon.producer.DeleteEpisode(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "episode not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.reporter.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	usage, err := s.daemon.reporter.Usage(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running": s.daemon.Running(),
		"queue":   health,
		"cap":     usage,
	})
}

func (s *apiServer) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.episodesDir, feed.FileName))
}

type episodeView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	File        string    `json:"file"`
	FileSize    int64     `json:"file_size"`
	Depth       string    `json:"depth,omitempty"`
	IsTrailer   bool      `json:"is_trailer,omitempty"`
	Sources     []string  `json:"sources,omitempty"`
	SeriesID    string    `json:"series_id,omitempty"`
	SeriesEp    int       `json:"series_ep,omitempty"`
	Published   time.Time `json:"published"`
}

func episodeViews(episodes []*queue.Episode) []episodeView {
	views := make([]episodeView, 0, len(episodes))
	for _, ep := range episodes {
		views = append(views, episodeView{
			ID:          ep.ID,
			Title:       ep.Title,
			Description: ep.Description,
			File:        filepath.Base(ep.File),
			FileSize:    ep.FileSize,
			Depth:       ep.Depth,
			IsTrailer:   ep.IsTrailer,
			Sources:     ep.Sources,
			SeriesID:    ep.SeriesID,
			SeriesEp:    ep.SeriesEp,
			Published:   ep.Published,
		})
	}
	return views
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
