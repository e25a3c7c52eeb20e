package images

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2beens/engblog/internal/telemetry/tracing"
	"github.com/2beens/engblog/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=images_test

// multipart envelope on top of the image bytes
const formOverheadBytes = 1 << 20

type imageStore interface {
	Store(ctx context.Context, data []byte, declaredType string) (*Upload, error)
	List(ctx context.Context) ([]Image, error)
	Delete(ctx context.Context, filename string) error
	MaxBytes() int64
}

// fileLocator resolves stored images to local files. Only the disk backend has one.
type fileLocator interface {
	Path(filename string) (string, error)
}

var (
	_ imageStore  = (*Service)(nil)
	_ fileLocator = (*DiskBackend)(nil)
)

type uploadResponse struct {
	Success bool `json:"success"`
	*Upload
}

type listResponse struct {
	Success bool    `json:"success"`
	Images  []Image `json:"images"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Reason  RejectReason `json:"reason,omitempty"`
}

type Handler struct {
	store imageStore
	files fileLocator
}

// NewHandler creates the upload handler. files may be nil, in which case images
// are expected to be served by the backend itself.
func NewHandler(store imageStore, files fileLocator) *Handler {
	return &Handler{
		store: store,
		files: files,
	}
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.upload")
	defer span.End()

	maxBytes := h.store.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverheadBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, &RejectedError{Reason: ReasonTooLarge, Message: "upload exceeds the size limit"}, "upload image")
			return
		}
		log.Debugf("upload image, parse form: %s", err)
		writeErrorMessage(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Errorf("upload image, remove multipart temp files: %s", err)
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		log.Debugf("upload image, get file from form: %s", err)
		writeErrorMessage(w, "no image provided", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Errorf("upload image, close file: %s", err)
		}
	}()

	// one byte over the ceiling is enough to reject
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		log.Errorf("upload image, read file: %s", err)
		writeErrorMessage(w, "internal server error", http.StatusInternalServerError)
		return
	}

	declaredType := header.Header.Get("Content-Type")
	log.Debugf("upload image, filename: %s, size: %d, content-type: %s", header.Filename, header.Size, declaredType)

	upload, err := h.store.Store(ctx, data, declaredType)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "upload image")
		return
	}

	pkg.WriteJSON(w, uploadResponse{Success: true, Upload: upload}, http.StatusOK)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.list")
	defer span.End()

	images, err := h.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		writeError(w, err, "list images")
		return
	}

	pkg.WriteJSON(w, listResponse{Success: true, Images: images}, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.images.delete")
	defer span.End()

	filename := strings.TrimSpace(r.URL.Query().Get("filename"))
	if filename == "" {
		writeErrorMessage(w, "filename is required", http.StatusBadRequest)
		return
	}

	if err := h.store.Delete(ctx, filename); err != nil {
		writeError(w, err, "delete image")
		return
	}

	log.Printf("image %s removed", filename)
	pkg.WriteJSON(w, deleteResponse{Success: true, Message: "Image deleted successfully"}, http.StatusOK)
}

func (h *Handler) HandleServe(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeErrorMessage(w, "image not found", http.StatusNotFound)
		return
	}

	path, err := h.files.Path(mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, err, "serve image")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

func writeErrorMessage(w http.ResponseWriter, message string, statusCode int) {
	pkg.WriteJSON(w, ErrorResponse{Success: false, Error: message}, statusCode)
}

func writeError(w http.ResponseWriter, err error, op string) {
	var rejectedErr *RejectedError
	switch {
	case errors.As(err, &rejectedErr):
		pkg.WriteJSON(w, ErrorResponse{
			Success: false,
			Error:   rejectedErr.Message,
			Reason:  rejectedErr.Reason,
		}, http.StatusBadRequest)
	case errors.Is(err, ErrInvalidFilename):
		writeErrorMessage(w, "invalid filename", http.StatusBadRequest)
	case errors.Is(err, ErrImageNotFound):
		writeErrorMessage(w, "image not found", http.StatusNotFound)
	default:
		log.Errorf("%s: %s", op, err)
		writeErrorMessage(w, "internal server error", http.StatusInternalServerError)
	}
}
