package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"disputeai/auth"
	"disputeai/dispute"
	"disputeai/evidence"
	"disputeai/wizard"
)

type ctxKey string

const (
	ctxKeyUserID    ctxKey = "user_id"
	ctxKeyRole      ctxKey = "role"
	ctxKeyRequestID ctxKey = "request_id"
)

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (auth.Identity, error)
	GetUserByID(ctx context.Context, userID string) (*auth.User, error)
}

type wizardService interface {
	Start(ctx context.Context) (*wizard.Session, error)
	Get(ctx context.Context, id string) (*wizard.Session, error)
	SendMessage(ctx context.Context, id, identity, text string) (*wizard.Session, wizard.Outcome, error)
	AddEvidence(ctx context.Context, id string, files []evidence.File, meta evidence.Meta) (*wizard.Session, []evidence.Outcome, error)
	ConfirmEvidence(ctx context.Context, id, identity string) (*wizard.Session, wizard.Outcome, error)
}

type disputeService interface {
	List(ctx context.Context, ownerID string, includeArchived bool) ([]dispute.Summary, error)
	Get(ctx context.Context, ownerID, disputeID string) (dispute.Detail, error)
	Archive(ctx context.Context, ownerID, disputeID string) (dispute.Record, error)
	Restore(ctx context.Context, ownerID, disputeID string) (dispute.Record, error)
	Delete(ctx context.Context, ownerID, disputeID string) error
}

type letterRenderer interface {
	Render(d dispute.Detail, sender string) (string, error)
}

type letterConverter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// Server holds the HTTP handlers. Nil dependencies are allowed in tests that
// do not reach them.
type Server struct {
	authService    authService
	wizardService  wizardService
	disputeService disputeService
	letters        letterRenderer
	converter      letterConverter
	logger         *zap.Logger
	maxUploadBytes int64
}

func (s *Server) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID, middleware.Recoverer, s.logRequests, s.identify)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Route("/wizard/sessions", func(r chi.Router) {
			r.Post("/", s.handleStartSession)
			r.Get("/{sessionID}", s.handleGetSession)
			r.Post("/{sessionID}/messages", s.handleSendMessage)
			r.Post("/{sessionID}/evidence", s.handleUploadEvidence)
			r.Post("/{sessionID}/evidence/confirm", s.handleConfirmEvidence)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/disputes", s.handleListDisputes)
			r.Get("/disputes/{disputeID}", s.handleGetDispute)
			r.Post("/disputes/{disputeID}/archive", s.handleArchiveDispute)
			r.Post("/disputes/{disputeID}/restore", s.handleRestoreDispute)
			r.Delete("/disputes/{disputeID}", s.handleDeleteDispute)
			r.Get("/disputes/{disputeID}/letter.pdf", s.handleDisputeLetter)
		})
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}

// identify resolves an optional bearer token. Invalid tokens leave the
// request anonymous; routes that need a user reject it in requireUser.
func (s *Server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || s.authService == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := s.authService.VerifyToken(token)
		if err != nil {
			s.log().Debug("bearer token rejected", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, id.UserID)
		ctx = context.WithValue(ctx, ctxKeyRole, id.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r.Context()) == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
