package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/2beens/engblog/internal/auth"
	"github.com/2beens/engblog/internal/telemetry/tracing"
	"github.com/2beens/engblog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type loginChecker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

var _ loginChecker = (auth.Checker)(nil)

type AuthMiddlewareHandler struct {
	loginChecker loginChecker
	// path -> methods open to the public, no methods means all of them
	allowedPaths         map[string][]string
	allowedPathsPrefixes map[string][]string
}

func NewAuthMiddlewareHandler(loginChecker loginChecker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		loginChecker: loginChecker,
		allowedPaths: map[string][]string{
			// blog handler, non-public listings are checked by the handler itself
			"/blogs":      {http.MethodGet},
			"/blogs/like": {http.MethodPost},

			// admin handler
			"/version":  {http.MethodGet},
			"/a/login":  nil,
			"/a/logout": nil,
		},
		allowedPathsPrefixes: map[string][]string{
			// stored images
			"/uploads/": {http.MethodGet},
		},
	}
}

func methodAllowed(methods []string, method string) bool {
	if len(methods) == 0 {
		return true
	}
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

func (h *AuthMiddlewareHandler) pathIsAlwaysAllowed(method, path string) bool {
	if methods, ok := h.allowedPaths[path]; ok && methodAllowed(methods, method) {
		return true
	}
	for prefix, methods := range h.allowedPathsPrefixes {
		if strings.HasPrefix(path, prefix) && methodAllowed(methods, method) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter) {
	pkg.WriteJSON(w, map[string]any{
		"success": false,
		"error":   "admin session required",
	}, http.StatusUnauthorized)
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsAlwaysAllowed(r.Method, r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			// a non-standard req. header is set, and thus - browser makes a preflight/OPTIONS request:
			//	https://developer.mozilla.org/en-US/docs/Web/HTTP/CORS#preflighted_requests
			authToken := r.Header.Get(auth.TokenHeader)
			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s %s", r.Method, r.URL.Path)
				unauthorized(w)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			isLogged, err := h.loginChecker.IsLogged(ctx, authToken)
			if err != nil {
				log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				unauthorized(w)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}
			if !isLogged {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s %s", r.Method, r.URL.Path)
				unauthorized(w)
				span.SetStatus(codes.Error, "not-logged")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}
