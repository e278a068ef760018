// internal/server/http.go

// Package server exposes the HTTP surface: auth, the application lifecycle
// operations, the agent webhook and the land-registry verification proxy.
// Handlers translate between HTTP and the service layers; no business rule
// lives here.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"krishi-sahayak/internal/agent"
	"krishi-sahayak/internal/common/auth"
	"krishi-sahayak/internal/common/errors"
	"krishi-sahayak/internal/common/logger"
	"krishi-sahayak/internal/common/metrics"
	"krishi-sahayak/internal/landregistry"
	"krishi-sahayak/internal/lifecycle"
	"krishi-sahayak/internal/models"
	"krishi-sahayak/internal/reconcile"
	"krishi-sahayak/internal/store"
)

// Server wires the HTTP routes to the service layers.
type Server struct {
	tokens      *auth.TokenManager
	users       store.UserStore
	lifecycle   *lifecycle.Service
	agent       *agent.Processor
	registry    *landregistry.Client
	sessions    *reconcile.SessionStore
	corsOrigin  string
	log         logger.Logger
	readyChecks map[string]func(ctx context.Context) error
}

type Deps struct {
	Tokens     *auth.TokenManager
	Users      store.UserStore
	Lifecycle  *lifecycle.Service
	Agent      *agent.Processor
	Registry   *landregistry.Client
	Sessions   *reconcile.SessionStore
	CORSOrigin string
	Log        logger.Logger

	// ReadyChecks are pinged by GET /api/ready; any failure reports 503.
	ReadyChecks map[string]func(ctx context.Context) error
}

func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		tokens:      deps.Tokens,
		users:       deps.Users,
		lifecycle:   deps.Lifecycle,
		agent:       deps.Agent,
		registry:    deps.Registry,
		sessions:    deps.Sessions,
		corsOrigin:  deps.CORSOrigin,
		log:         log,
		readyChecks: deps.ReadyChecks,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	mux.HandleFunc("POST /api/applications/draft", s.handleSaveDraft)
	mux.HandleFunc("POST /api/applications/submit", s.handleSubmit)
	mux.HandleFunc("GET /api/applications", s.handleList)

	mux.HandleFunc("POST /api/webhooks/agent", s.handleAgentWebhook)
	mux.HandleFunc("POST /api/registry/verify", s.handleRegistryVerify)

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)

	return s.withMiddleware(mux)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		next.ServeHTTP(w, r)

		metrics.RequestDuration.WithLabelValues(r.URL.Path).Observe(time.Since(start).Seconds())
		s.log.Debug("request handled", map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"durationMs": time.Since(start).Milliseconds(),
		})
	})
}

type authRequest struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobileNumber"`
	Language     string `json:"language"`
}

type authResponse struct {
	User   *models.User    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r)
}

// Login is find-or-create by mobile number: a returning farmer logs in, a
// new one is registered on the spot. Both paths hand back the same shape.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}
	if req.MobileNumber == "" {
		writeError(w, errors.NewMissingIdentifierError())
		return
	}

	user, err := s.users.FindOrCreate(r.Context(), req.MobileNumber, req.Name, req.Language)
	if err != nil {
		writeError(w, errors.NewStoreUnavailableError(err))
		return
	}
	pair, err := s.tokens.IssuePair(user.ID, user.MobileNumber)
	if err != nil {
		writeError(w, errors.NewUnauthorizedError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: pair})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}

	claims, err := s.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	pair, err := s.tokens.IssuePair(claims.UserID, claims.MobileNumber)
	if err != nil {
		writeError(w, errors.NewUnauthorizedError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": pair})
}

type applicationRequest struct {
	LoanType  models.LoanType        `json:"loanType"`
	Details   map[string]interface{} `json:"details"`
	SessionID string                 `json:"sessionId,omitempty"`
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}

	app, err := s.lifecycle.SaveDraft(r.Context(), bearerToken(r), req.LoanType, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}

	app, err := s.lifecycle.Submit(r.Context(), bearerToken(r), req.LoanType, req.Details)
	if err != nil {
		writeError(w, err)
		return
	}

	// Freeze the live form so trailing agent updates become no-ops.
	if req.SessionID != "" && s.sessions != nil {
		if err := s.sessions.MarkSubmitted(r.Context(), req.SessionID, req.LoanType); err != nil {
			s.log.WithError(err).Warn("session freeze failed", map[string]interface{}{"sessionId": req.SessionID})
		}
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	apps, err := s.lifecycle.List(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": apps})
}

type webhookRequest struct {
	Tool    string          `json:"tool"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) handleAgentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}

	switch req.Tool {
	case agent.ToolUpdateForm:
		state, err := s.agent.HandleUpdateForm(r.Context(), req.Payload)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	case agent.ToolCheckApplicationStatus:
		report, err := s.agent.HandleCheckStatus(r.Context(), req.Payload)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	default:
		writeError(w, errors.NewInvalidWebhookPayloadError("unknown tool: "+req.Tool))
	}
}

type registryVerifyRequest struct {
	SurveyNo  string          `json:"surveyNo"`
	Village   string          `json:"village"`
	SessionID string          `json:"sessionId,omitempty"`
	LoanType  models.LoanType `json:"loanType,omitempty"`
}

func (s *Server) handleRegistryVerify(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tokens.ResolveOwner(r.Context(), bearerToken(r)); err != nil {
		writeError(w, err)
		return
	}

	var req registryVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewInvalidWebhookPayloadError("malformed JSON body"))
		return
	}

	record, err := s.registry.Verify(r.Context(), req.SurveyNo, req.Village)
	if err != nil {
		writeError(w, err)
		return
	}

	// Verified holdings flow onto the live form the same way agent updates do.
	if record.Verified && req.SessionID != "" && s.sessions != nil {
		loanType := req.LoanType
		if !loanType.Valid() {
			loanType = models.LoanTypeCropInput
		}
		if _, err := s.sessions.ApplyUpdates(r.Context(), req.SessionID, loanType, record.FieldUpdates(), "registry"); err != nil {
			s.log.WithError(err).Warn("registry updates not applied", map[string]interface{}{"sessionId": req.SessionID})
		}
	}
	writeJSON(w, http.StatusOK, record)
}

// Logout is client-side token disposal; tokens are short-lived and the
// service keeps no session state for them.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	failures := map[string]string{}
	for name, check := range s.readyChecks {
		if err := check(r.Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded", "failures": failures,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	stdErr, ok := errors.As(err)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, statusFor(stdErr.Code), map[string]interface{}{"error": stdErr})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeUnauthorized, errors.ErrCodeTokenExpired:
		return http.StatusUnauthorized
	case errors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeMissingIdentifier, errors.ErrCodeInvalidLoanType, errors.ErrCodeInvalidWebhookPayload:
		return http.StatusBadRequest
	case errors.ErrCodeStoreUnavailable, errors.ErrCodeRegistryLookupFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
