package bounty

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"bounty-backend/core/bounty"
	"bounty-backend/core/pda"
	"bounty-backend/metrics"
	"bounty-backend/middleware"
	auth "bounty-backend/storage/auth"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxBodyBytes          = 64 << 10
)

// Config carries the collaborators of the HTTP API. Metrics, Broadcaster,
// RateLimiter, APIKeys and KeyIssuer are optional.
type Config struct {
	Engine         *bounty.Engine
	Auth           *auth.Authenticator
	APIKeys        auth.APIKeyValidator
	KeyIssuer      auth.APIKeyIssuer
	Events         *bounty.EventLog
	Broadcaster    *Broadcaster
	Metrics        *metrics.Metrics
	RateLimiter    *middleware.RateLimiter
	FaucetEnabled  bool
	FaucetMax      uint64
	RequestTimeout time.Duration
}

// Server exposes the ledger over HTTP.
type Server struct {
	cfg Config
}

func NewServer(cfg Config) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Events == nil {
		cfg.Events = bounty.NewEventLog(0)
	}
	return &Server{cfg: cfg}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, middleware.Recovery, middleware.Logging, middleware.SecurityHeaders, middleware.CORS, s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.ValidateQuery)

		// Streams outlive the request timeout.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.RequestTimeout))

			r.Get("/openapi.json", s.handleOpenAPI)

			r.Group(func(r chi.Router) {
				r.Use(middleware.ContentType)
				if s.cfg.RateLimiter != nil {
					r.Use(middleware.RateLimit(s.cfg.RateLimiter))
				}
				r.Post("/challenges", s.handleChallenge)
				r.Post("/tx/{op}", s.handleTx)
			})

			r.Get("/tasks", s.handleListTasks)
			r.Get("/tasks/{address}", s.handleGetTask)
			r.Get("/tasks/{address}/submissions", s.handleSubmissions)
			r.Get("/tasks/{address}/submissions/{participant}", s.handleGetSubmission)
			r.Get("/tasks/{address}/participations", s.handleParticipations)
			r.Get("/tasks/{address}/qr", s.handleTaskQR)
			r.Get("/accounts/{address}", s.handleAccount)
			r.Get("/balances/{owner}", s.handleBalance)
			r.Get("/derive", s.handleDerive)

			r.Group(func(r chi.Router) {
				r.Use(middleware.APIAuth(s.cfg.APIKeys), middleware.ContentType)
				r.Post("/admin/faucet", s.handleFaucet)
				if s.cfg.KeyIssuer != nil {
					r.Post("/admin/api-keys", s.handleIssueAPIKey)
				}
			})
		})
	})
	return r
}

// instrument records request metrics under the matched route pattern so
// addresses in paths do not explode label cardinality.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.cfg.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.cfg.Metrics.ObserveRequest(r.Method, route, status, time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.cfg.Engine.Now(r.Context()); err != nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "ledger_unavailable", err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

// Error writes a ledger error with the status its code maps to.
func Error(w http.ResponseWriter, err error) {
	code := bounty.Code(err)
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	middleware.WriteError(w, status, code, err.Error())
}

// StatusFor maps a bounty error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case "NotFound":
		return http.StatusNotFound
	case "NotCreator", "InvalidWinner", "Unauthorized", "NotParticipant":
		return http.StatusForbidden
	case "AlreadyExists", "AlreadyAccepted", "AlreadySubmitted", "EscrowOpen", "EscrowMismatch", "NoSubmissions":
		return http.StatusConflict
	case "InvalidArgument", "ConstraintSeeds", "InsufficientFunds":
		return http.StatusBadRequest
	case "TaskEnded", "TaskNotEnded":
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrapf(bounty.ErrInvalidArgument, "decode request body: %v", err)
	}
	return nil
}

func addressParam(r *http.Request, name string) (pda.Address, error) {
	addr, err := pda.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		return pda.Zero, errors.Wrap(bounty.ErrInvalidArgument, err.Error())
	}
	return addr, nil
}

// optionalAddress parses a query parameter; empty yields nil.
func optionalAddress(r *http.Request, key string) (*pda.Address, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	addr, err := pda.ParseAddress(raw)
	if err != nil {
		return nil, errors.Wrapf(bounty.ErrInvalidArgument, "%s: %v", key, err)
	}
	return &addr, nil
}

func intFromQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
