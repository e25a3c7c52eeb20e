package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/2beens/engblog/internal/auth"
	"github.com/2beens/engblog/internal/middleware"
	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/internal/telemetry/tracing"
	"github.com/2beens/engblog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=admin_test

const loginRateLimitKey = "login"

type authService interface {
	Login(ctx context.Context, creds auth.Credentials, createdAt time.Time) (string, error)
	Logout(ctx context.Context, token string) (bool, error)
}

var _ authService = (*auth.Service)(nil)

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler serves the single admin session endpoints and the version probe.
type Handler struct {
	authService authService
	versionInfo string
}

func NewHandler(authService authService, versionInfo string) *Handler {
	return &Handler{
		authService: authService,
		versionInfo: versionInfo,
	}
}

func (h *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	metricsManager *metrics.Manager,
	loginAllowedPerMin int,
) {
	mainRouter.HandleFunc("/version", h.HandleVersion).Methods("GET").Name("version")

	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", h.HandleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", h.HandleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the /login and /logout endpoints to prevent password guessing
	loginSubrouter.Use(middleware.RateLimit(rateLimiter, loginRateLimitKey, loginAllowedPerMin, metricsManager))
}

func writeFailure(w http.ResponseWriter, message string, statusCode int) {
	pkg.WriteJSON(w, messageResponse{Success: false, Error: message}, statusCode)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	var creds auth.Credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			log.Debugf("login, unmarshal json params: %s", err)
			writeFailure(w, "invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Debugf("login, parse form: %s", err)
			writeFailure(w, "invalid request body", http.StatusBadRequest)
			return
		}
		creds = auth.Credentials{
			Username: r.Form.Get("username"),
			Password: r.Form.Get("password"),
		}
	}

	if creds.Username == "" || creds.Password == "" {
		writeFailure(w, "username and password are required", http.StatusBadRequest)
		return
	}

	token, err := h.authService.Login(ctx, creds, time.Now())
	if err != nil {
		if errors.Is(err, auth.ErrWrongPassword) {
			log.Tracef("failed login attempt for user: %s", creds.Username)
			span.SetStatus(codes.Error, "wrong-credentials")
			writeFailure(w, "wrong credentials", http.StatusUnauthorized)
			return
		}
		log.Errorf("login failed: %s", err)
		span.RecordError(err)
		writeFailure(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Trace("new login success")
	pkg.WriteJSON(w, loginResponse{Success: true, Token: token}, http.StatusOK)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.admin.logout")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	authToken := r.Header.Get(auth.TokenHeader)
	if authToken == "" {
		writeFailure(w, "no admin session", http.StatusUnauthorized)
		return
	}

	loggedOut, err := h.authService.Logout(ctx, authToken)
	if err != nil {
		log.Errorf("logout: %s", err)
		span.RecordError(err)
		writeFailure(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !loggedOut {
		writeFailure(w, "no admin session", http.StatusUnauthorized)
		return
	}

	pkg.WriteJSON(w, messageResponse{Success: true, Message: "logged out"}, http.StatusOK)
}

func (h *Handler) HandleVersion(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, h.versionInfo)
}
