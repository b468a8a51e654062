package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	observatory "github.com/BerriAI/litellm-observatory"
	"github.com/BerriAI/litellm-observatory/model"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// APIKeyHeader carries the caller's observatory credential.
const APIKeyHeader = "X-LiteLLM-Observatory-API-Key"

const (
	serviceName    = "LiteLLM Observatory"
	serviceVersion = "0.1.0"

	maxBodyBytes           = 1 << 20
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP front-end settings.
type Config struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// Server is the HTTP front-end of the observatory façade.
type Server struct {
	service *observatory.Service
	apiKey  string
	schema  *jsonschema.Schema
	http    *http.Server
	config  Config
}

// New creates the gateway. With an empty apiKey every caller is accepted,
// matching the original deployment's behaviour when no key is configured.
func New(service *observatory.Service, apiKey string, config Config) (*Server, error) {
	schema, err := compileRunTestSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile submission schema: %w", err)
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8000"
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{service: service, apiKey: apiKey, schema: schema, config: config}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.withAuth(s.handleRoot))
	mux.HandleFunc("GET /status", s.withAuth(s.handleStatus))
	mux.HandleFunc("POST /run-test", s.withAuth(s.handleRunTest))
	s.http = &http.Server{Addr: config.ListenAddr, Handler: mux}
	return s, nil
}

// Handler exposes the routing for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				writeError(w, http.StatusUnauthorized, fmt.Sprintf("missing API key, provide the %q header", APIKeyHeader))
				return
			}
			if provided != s.apiKey {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":                  serviceName,
		"version":               serviceVersion,
		"available_test_suites": s.service.Suites().Names(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// runTestRequest mirrors the public wire format: the well-known tuning
// fields may appear at the top level or inside the free-form tuning object.
type runTestRequest struct {
	DeploymentURL          string                 `json:"deployment_url"`
	APIKey                 string                 `json:"api_key"`
	TestSuite              string                 `json:"test_suite"`
	Models                 []string               `json:"models"`
	DurationHours          *float64               `json:"duration_hours"`
	MaxFailureRate         *float64               `json:"max_failure_rate"`
	RequestIntervalSeconds *float64               `json:"request_interval_seconds"`
	Tuning                 map[string]interface{} `json:"tuning"`
}

func (r *runTestRequest) toModel() *model.Request {
	tuning := map[string]interface{}{}
	for key, value := range r.Tuning {
		tuning[key] = value
	}
	if r.DurationHours != nil {
		tuning["duration_hours"] = *r.DurationHours
	}
	if r.MaxFailureRate != nil {
		tuning["max_failure_rate"] = *r.MaxFailureRate
	}
	if r.RequestIntervalSeconds != nil {
		tuning["request_interval_seconds"] = *r.RequestIntervalSeconds
	}
	if len(tuning) == 0 {
		tuning = nil
	}
	return &model.Request{
		TestSuite:     r.TestSuite,
		DeploymentURL: r.DeploymentURL,
		APIKey:        r.APIKey,
		Models:        r.Models,
		Tuning:        tuning,
	}
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw interface{}
	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if err := s.schema.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid submission: %v", err))
		return
	}

	data, err := json.Marshal(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var request runTestRequest
	if err := json.Unmarshal(data, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.service.Submit(r.Context(), request.toModel())
	if err != nil {
		if errors.Is(err, observatory.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !outcome.Admitted() {
		duplicate := outcome.Duplicate
		response := map[string]interface{}{
			"error":        "duplicate submission already in flight",
			"identity_key": duplicate.IdentityKey,
			"status":       duplicate.Status,
			"submitted_at": duplicate.SubmittedAt,
		}
		if duplicate.StartedAt != nil {
			response["started_at"] = duplicate.StartedAt
		}
		writeJSON(w, http.StatusConflict, response)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"identity_key": outcome.IdentityKey,
		"status":       outcome.Status,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
