package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"slices"
	"strings"
	"time"

	// registered decoders, the bytes of an upload must decode as one of these
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const DefaultMaxBytes = 5 << 20

var (
	ErrImageNotFound   = errors.New("image not found")
	ErrInvalidFilename = errors.New("invalid image filename")
)

// AllowedTypes is the MIME allow-list of uploads.
var AllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"}

var allowedExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// decoded image format -> stored extension and content type
var formats = map[string]struct {
	ext         string
	contentType string
}{
	"jpeg": {".jpg", "image/jpeg"},
	"png":  {".png", "image/png"},
	"gif":  {".gif", "image/gif"},
	"webp": {".webp", "image/webp"},
}

type RejectReason string

const (
	ReasonInvalidType RejectReason = "invalid-type"
	ReasonTooLarge    RejectReason = "too-large"
)

// RejectedError is returned when an upload is refused before reaching the backend.
type RejectedError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("image rejected [%s]: %s", e.Reason, e.Message)
}

// Image is one stored image as listed by a backend.
type Image struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Upload is the result of a stored upload.
type Upload struct {
	URL      string `json:"imageURL"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

func normalizeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// validate checks the declared type, the size ceiling, and that the bytes really are an
// image of a permitted format. It returns the extension and content type to store under.
func validate(data []byte, declaredType string, maxBytes int64) (string, string, error) {
	if !slices.Contains(AllowedTypes, normalizeType(declaredType)) {
		return "", "", &RejectedError{
			Reason:  ReasonInvalidType,
			Message: "only JPEG, PNG, WebP and GIF are allowed",
		}
	}
	if int64(len(data)) > maxBytes {
		return "", "", &RejectedError{
			Reason:  ReasonTooLarge,
			Message: fmt.Sprintf("maximum size is %d bytes", maxBytes),
		}
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", "", &RejectedError{
			Reason:  ReasonInvalidType,
			Message: "content is not a supported image",
		}
	}
	f, ok := formats[format]
	if !ok {
		return "", "", &RejectedError{
			Reason:  ReasonInvalidType,
			Message: fmt.Sprintf("image format %s is not allowed", format),
		}
	}

	return f.ext, f.contentType, nil
}

// checkFilename refuses anything that is not a plain image file name in the store root.
func checkFilename(filename string) error {
	if filename == "" ||
		strings.HasPrefix(filename, ".") ||
		strings.ContainsAny(filename, `/\`) ||
		filepath.Base(filename) != filename {
		return ErrInvalidFilename
	}
	if !slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(filename))) {
		return ErrInvalidFilename
	}
	return nil
}

func hasImageExtension(filename string) bool {
	return slices.Contains(allowedExtensions, strings.ToLower(filepath.Ext(filename)))
}

func sortNewestFirst(images []Image) {
	slices.SortStableFunc(images, func(a, b Image) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Filename, b.Filename)
	})
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
