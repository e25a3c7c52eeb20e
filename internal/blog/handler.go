package blog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/2beens/engblog/internal/auth"
	"github.com/2beens/engblog/internal/telemetry/tracing"
	"github.com/2beens/engblog/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=blog_test

type postService interface {
	Create(ctx context.Context, in NewPost) (*Post, error)
	Get(ctx context.Context, ref PostRef) (*Post, error)
	List(ctx context.Context, query ListQuery) (*ListResult, error)
	Update(ctx context.Context, ref PostRef, patch PostPatch) (*Post, error)
	Delete(ctx context.Context, ref PostRef) (*DeletedPost, error)
	Like(ctx context.Context, slug string) (int, error)
}

type loginChecker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

var _ postService = (*Service)(nil)

type listResponse struct {
	Success    bool       `json:"success"`
	Blogs      []*Post    `json:"blogs"`
	Pagination Pagination `json:"pagination"`
}

type postResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Blog    *Post  `json:"blog"`
}

type deleteResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	DeletedBlog *DeletedPost `json:"deletedBlog"`
}

type likeResponse struct {
	Success bool `json:"success"`
	Likes   int  `json:"likes"`
}

type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type Handler struct {
	service      postService
	loginChecker loginChecker
}

func NewHandler(service postService, loginChecker loginChecker) *Handler {
	return &Handler{
		service:      service,
		loginChecker: loginChecker,
	}
}

// HandleList serves both the paginated listing and, with ?slug=, a single post.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.list")
	defer span.End()

	params := r.URL.Query()
	if slug := strings.TrimSpace(params.Get("slug")); slug != "" {
		h.handleGetBySlug(ctx, w, r, slug)
		return
	}

	query := listQueryFromParams(params)
	filter, err := query.Filter()
	if err != nil {
		writeError(w, err, "list blogs")
		return
	}
	span.SetAttributes(attribute.String("visibility", filter.Visibility.String()))

	if filter.Visibility.RequiresAdmin() && !h.isAdmin(ctx, r) {
		span.SetStatus(codes.Error, "not-admin")
		writeErrorMessage(w, "admin session required for non-public listings", http.StatusUnauthorized)
		return
	}

	result, err := h.service.List(ctx, query)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "list blogs")
		return
	}

	pkg.WriteJSON(w, listResponse{
		Success:    true,
		Blogs:      result.Posts,
		Pagination: result.Pagination,
	}, http.StatusOK)
}

func (h *Handler) handleGetBySlug(ctx context.Context, w http.ResponseWriter, r *http.Request, slug string) {
	post, err := h.service.Get(ctx, BySlug(slug))
	if err != nil {
		writeError(w, err, "get blog")
		return
	}

	// unpublished posts do not exist for the public
	if !post.IsPublished() && !h.isAdmin(ctx, r) {
		writeError(w, ErrPostNotFound, "get blog")
		return
	}

	pkg.WriteJSON(w, postResponse{
		Success: true,
		Blog:    post,
	}, http.StatusOK)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.create")
	defer span.End()

	var in NewPost
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		log.Debugf("create blog, decode request body: %s", err)
		writeErrorMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	post, err := h.service.Create(ctx, in)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "create blog")
		return
	}

	log.Printf("new blog post added: %d [%s]", post.ID, post.Slug)
	pkg.WriteJSON(w, postResponse{
		Success: true,
		Message: "Blog created successfully",
		Blog:    post,
	}, http.StatusCreated)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.update")
	defer span.End()

	ref, err := refFromParams(r)
	if err != nil {
		writeError(w, err, "update blog")
		return
	}

	var patch PostPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		log.Debugf("update blog, decode request body: %s", err)
		writeErrorMessage(w, "invalid request body", http.StatusBadRequest)
		return
	}

	post, err := h.service.Update(ctx, ref, patch)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "update blog")
		return
	}

	pkg.WriteJSON(w, postResponse{
		Success: true,
		Message: "Blog updated successfully",
		Blog:    post,
	}, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.delete")
	defer span.End()

	ref, err := refFromParams(r)
	if err != nil {
		writeError(w, err, "delete blog")
		return
	}

	deleted, err := h.service.Delete(ctx, ref)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "delete blog")
		return
	}

	log.Printf("blog post %d [%s] removed", deleted.ID, deleted.Slug)
	pkg.WriteJSON(w, deleteResponse{
		Success:     true,
		Message:     "Blog deleted successfully",
		DeletedBlog: deleted,
	}, http.StatusOK)
}

func (h *Handler) HandleLike(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.blog.like")
	defer span.End()

	slug := strings.TrimSpace(r.URL.Query().Get("slug"))
	if slug == "" {
		writeError(w, toValidationError(fieldErr("slug", "is required")), "like blog")
		return
	}

	likes, err := h.service.Like(ctx, slug)
	if err != nil {
		writeError(w, err, "like blog")
		return
	}

	pkg.WriteJSON(w, likeResponse{Success: true, Likes: likes}, http.StatusOK)
}

func (h *Handler) isAdmin(ctx context.Context, r *http.Request) bool {
	token := r.Header.Get(auth.TokenHeader)
	if token == "" || h.loginChecker == nil {
		return false
	}
	isLogged, err := h.loginChecker.IsLogged(ctx, token)
	if err != nil {
		log.Debugf("blog handler, check admin token: %s", err)
		return false
	}
	return isLogged
}

// listQueryFromParams reads the listing params. Malformed numbers fall back to the defaults.
func listQueryFromParams(params map[string][]string) ListQuery {
	get := func(key string) string {
		if v := params[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	page, _ := strconv.Atoi(get("page"))
	limit, _ := strconv.Atoi(get("limit"))
	includeAll, _ := strconv.ParseBool(get("includeAll"))

	return ListQuery{
		Page:       page,
		Limit:      limit,
		Category:   get("category"),
		Status:     get("status"),
		IncludeAll: includeAll,
	}.Normalized()
}

// refFromParams reads exactly one of ?id= or ?slug=.
func refFromParams(r *http.Request) (PostRef, error) {
	idParam := strings.TrimSpace(r.URL.Query().Get("id"))
	slugParam := strings.TrimSpace(r.URL.Query().Get("slug"))

	switch {
	case idParam != "" && slugParam != "":
		return PostRef{}, toValidationError(fieldErr("id", "provide either id or slug, not both"))
	case idParam != "":
		id, err := strconv.Atoi(idParam)
		if err != nil || id <= 0 {
			return PostRef{}, toValidationError(fieldErr("id", "must be a positive integer"))
		}
		return ByID(id), nil
	case slugParam != "":
		return BySlug(slugParam), nil
	default:
		return PostRef{}, toValidationError(fieldErr("id", "id or slug is required"))
	}
}

func writeErrorMessage(w http.ResponseWriter, message string, statusCode int) {
	pkg.WriteJSON(w, ErrorResponse{
		Success: false,
		Error:   message,
	}, statusCode)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, op string) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		pkg.WriteJSON(w, ErrorResponse{
			Success: false,
			Error:   "validation failed",
			Details: validationErr.Fields,
		}, http.StatusBadRequest)
	case errors.Is(err, ErrPostNotFound):
		writeErrorMessage(w, "blog post not found", http.StatusNotFound)
	case errors.Is(err, ErrSlugConflict):
		log.Errorf("%s: %s", op, err)
		writeErrorMessage(w, "slug already taken, try again", http.StatusConflict)
	default:
		log.Errorf("%s: %s", op, err)
		writeErrorMessage(w, "internal server error", http.StatusInternalServerError)
	}
}
