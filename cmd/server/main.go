package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liamcoop/labrules/internal/batch"
	"github.com/liamcoop/labrules/internal/config"
	"github.com/liamcoop/labrules/internal/logger"
	"github.com/liamcoop/labrules/rules"
	"github.com/liamcoop/labrules/rules/inputschema"
)

type Server struct {
	cfg     *config.Config
	engine  *rules.Engine
	schemas *inputschema.Validator
	batches *batch.Evaluator
	router  *chi.Mux
}

// NewServer wires the HTTP API around an engine
func NewServer(cfg *config.Config, engine *rules.Engine) (*Server, error) {
	schemas, err := inputschema.NewValidator(engine.Panels())
	if err != nil {
		return nil, fmt.Errorf("failed to compile input schemas: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		engine:  engine,
		schemas: schemas,
		batches: batch.NewEvaluator(engine),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.cfg.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/panels", s.handleListPanels)
		r.Get("/panels/{testId}", s.handleGetPanel)
		r.Get("/panels/{testId}/schema", s.handleGetPanelSchema)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/batches", s.handleBatch)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Panels: len(s.engine.Panels()),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, logger.Snapshot())
}

func (s *Server) handleListPanels(w http.ResponseWriter, r *http.Request) {
	panels := s.engine.Panels()
	resp := PanelsListResponse{Panels: make([]PanelResponse, 0, len(panels))}
	for _, p := range panels {
		resp.Panels = append(resp.Panels, newPanelResponse(p))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.Atoi(chi.URLParam(r, "testId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "testId must be an integer", err)
		return
	}

	panel, err := s.engine.Panel(rules.TestKind(testID))
	if err != nil {
		respondError(w, http.StatusNotFound, rules.ErrUnknownTest.Error(), nil)
		return
	}
	respondJSON(w, http.StatusOK, newPanelResponse(panel))
}

func (s *Server) handleGetPanelSchema(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.Atoi(chi.URLParam(r, "testId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "testId must be an integer", err)
		return
	}

	doc, err := s.schemas.Document(rules.TestKind(testID))
	if err != nil {
		respondError(w, http.StatusNotFound, rules.ErrUnknownTest.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

// Evaluation handler. Unknown test ids answer 200 with the sentinel error object, the
// same contract as the command-line tool.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TestID == nil {
		respondError(w, http.StatusBadRequest, "testId is required", nil)
		return
	}
	if req.Values == nil {
		req.Values = rules.Measurements{}
	}

	// Unknown ids fall through to the engine, which answers with the sentinel.
	kind := rules.TestKind(*req.TestID)
	if err := s.schemas.Validate(kind, req.Values); err != nil && !errors.Is(err, rules.ErrUnknownTest) {
		logger.RejectedInputs.Add(1)
		respondError(w, http.StatusUnprocessableEntity, "invalid measurements", err)
		return
	}

	result, err := s.engine.Evaluate(*req.TestID, req.Values)
	if errors.Is(err, rules.ErrUnknownTest) {
		logger.UnknownTests.Add(1)
		respondJSON(w, http.StatusOK, map[string]string{"error": rules.ErrUnknownTest.Error()})
		return
	}

	var missing *rules.MissingFieldError
	var mismatch *rules.TypeMismatchError
	switch {
	case errors.As(err, &missing), errors.As(err, &mismatch):
		logger.RejectedInputs.Add(1)
		respondError(w, http.StatusUnprocessableEntity, "invalid measurements", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "evaluation failed", err)
		return
	}
	logger.Evaluations.Add(1)

	if explain, _ := strconv.ParseBool(r.URL.Query().Get("explain")); explain {
		panel, _ := s.engine.Panel(result.Kind)
		respondJSON(w, http.StatusOK, newExplainResponse(panel, result))
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Batch handler. Accepts the CSV as the raw body or as the multipart field "file".
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var body io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "CSV file is required", err)
			return
		}
		defer file.Close()
		body = file
	}

	report, err := s.batches.Run(r.Context(), body)
	if errors.Is(err, batch.ErrBadHeader) {
		respondError(w, http.StatusBadRequest, "invalid csv", err)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "error processing lab results", err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// requestLogger logs each request through the structured logger and feeds the
// HTTP counters
func requestLogger(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			switch {
			case status >= 500:
				logger.ErrorHttp5xx()
			case status >= 400:
				logger.WarnHttp4xx(status)
			}
			if slow > 0 && elapsed > slow {
				logger.WarnSlowRequest()
			}

			logger.Info("http request",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "labrules-server",
		Short: "Lab panel classification API server",
	}
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init()

			cfg, err := config.LoadFrom(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg)
		},
	}

	cmd.Flags().String("port", "", "listen port (overrides PORT)")
	_ = v.BindPFlag("PORT", cmd.Flags().Lookup("port"))

	return cmd
}

func serve(cfg *config.Config) error {
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	logger.Info("panels compiled", "panels", len(engine.Panels()), "env", cfg.Env)

	srv, err := NewServer(cfg, engine)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := logger.Shutdown(ctx); err != nil {
		logger.Warn("logger shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
