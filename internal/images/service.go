package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// backend is where the image bytes end up: local disk or an S3 bucket.
type backend interface {
	Put(ctx context.Context, filename, contentType string, data []byte) error
	List(ctx context.Context) ([]Image, error)
	Delete(ctx context.Context, filename string) error
	URL(filename string) string
}

var (
	_ backend = (*DiskBackend)(nil)
	_ backend = (*S3Backend)(nil)
)

type ServiceParams struct {
	Backend  backend
	MaxBytes int64
	Metrics  *metrics.Manager
}

// Service is the blob store used by the editor. It never touches post documents.
type Service struct {
	backend  backend
	maxBytes int64
	metrics  *metrics.Manager
	newName  func() string
}

func NewService(params ServiceParams) *Service {
	maxBytes := params.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		backend:  params.Backend,
		maxBytes: maxBytes,
		metrics:  params.Metrics,
		newName:  uuid.NewString,
	}
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Store validates and stores the image under a fresh unique name and returns its public URL.
func (s *Service) Store(ctx context.Context, data []byte, declaredType string) (_ *Upload, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "images.service.store")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(
		attribute.String("image.declared_type", declaredType),
		attribute.Int("image.size", len(data)),
	)

	ext, contentType, err := validate(data, declaredType, s.maxBytes)
	if err != nil {
		var rejectedErr *RejectedError
		if errors.As(err, &rejectedErr) && s.metrics != nil {
			s.metrics.CounterImagesRejected.WithLabelValues(string(rejectedErr.Reason)).Inc()
		}
		return nil, err
	}

	filename := s.newName() + ext
	if err := s.backend.Put(ctx, filename, contentType, data); err != nil {
		return nil, fmt.Errorf("put image %s: %w", filename, err)
	}

	if s.metrics != nil {
		s.metrics.CounterImagesStored.Inc()
	}
	log.Debugf("images: stored %s [%s, %d bytes]", filename, contentType, len(data))

	return &Upload{
		URL:      s.backend.URL(filename),
		Filename: filename,
		Size:     int64(len(data)),
		Type:     contentType,
	}, nil
}

// List returns all stored images, newest first.
func (s *Service) List(ctx context.Context) (_ []Image, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "images.service.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	images, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []Image{}
	}
	sortNewestFirst(images)
	return images, nil
}

func (s *Service) Delete(ctx context.Context, filename string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "images.service.delete")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("image.filename", filename))

	if err := checkFilename(filename); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, filename); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.CounterImagesDeleted.Inc()
	}
	log.Debugf("images: deleted %s", filename)
	return nil
}
