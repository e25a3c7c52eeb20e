package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/engblog/internal/telemetry/metrics"
	"github.com/2beens/engblog/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

const DefaultSlugConflictRetries = 5

type postRepo interface {
	Create(ctx context.Context, post *Post) error
	Get(ctx context.Context, ref PostRef) (*Post, error)
	SlugExists(ctx context.Context, slug string, excludeID int) (bool, error)
	List(ctx context.Context, filter ListFilter, offset, limit int) ([]*Post, int, error)
	Update(ctx context.Context, post *Post) error
	Delete(ctx context.Context, ref PostRef) (*DeletedPost, error)
	IncrementLikes(ctx context.Context, slug string) (int, error)
	ListLegacy(ctx context.Context) ([]*Post, error)
}

var _ postRepo = (*Repo)(nil)

// NewPost is the create payload. IsPublished is the flag sent by older clients and
// is only looked at when Status is empty.
type NewPost struct {
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	Excerpt          string         `json:"excerpt"`
	FeaturedImage    string         `json:"featuredImage"`
	FeaturedImageAlt string         `json:"featuredImageAlt"`
	Content          []ContentBlock `json:"content"`
	Author           string         `json:"author"`
	Category         Category       `json:"category"`
	Tags             []string       `json:"tags"`
	Status           Status         `json:"status"`
	IsPublished      *bool          `json:"isPublished"`
}

func (in NewPost) toPost() *Post {
	post := &Post{
		Title:            in.Title,
		Excerpt:          in.Excerpt,
		FeaturedImage:    in.FeaturedImage,
		FeaturedImageAlt: in.FeaturedImageAlt,
		Content:          in.Content,
		Author:           in.Author,
		Category:         Category(strings.TrimSpace(string(in.Category))),
		Tags:             in.Tags,
		Status:           normalizeStatus(in.Status),
	}
	if post.Status == "" && in.IsPublished != nil {
		post.Status = StatusFromLegacyFlag(*in.IsPublished)
	}
	return post
}

// PostPatch is a partial update. Nil fields are left untouched.
type PostPatch struct {
	Title            *string         `json:"title"`
	Slug             *string         `json:"slug"`
	Excerpt          *string         `json:"excerpt"`
	FeaturedImage    *string         `json:"featuredImage"`
	FeaturedImageAlt *string         `json:"featuredImageAlt"`
	Content          *[]ContentBlock `json:"content"`
	Author           *string         `json:"author"`
	Category         *Category       `json:"category"`
	Tags             *[]string       `json:"tags"`
	Status           *Status         `json:"status"`
	IsPublished      *bool           `json:"isPublished"`
}

// apply merges the patch into post, validating only the patched fields.
// The returned slug is the requested new slug, empty when the slug is not patched.
func (pp PostPatch) apply(post *Post) (slug string, err error) {
	if pp.Title != nil {
		post.Title = strings.TrimSpace(*pp.Title)
		err = multierr.Append(err, validateTitle(post.Title))
	}
	if pp.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*pp.Excerpt)
		err = multierr.Append(err, validateExcerpt(post.Excerpt))
	}
	if pp.FeaturedImage != nil {
		post.FeaturedImage = strings.TrimSpace(*pp.FeaturedImage)
		err = multierr.Append(err, validateFeaturedImage(post.FeaturedImage))
	}
	if pp.FeaturedImageAlt != nil {
		post.FeaturedImageAlt = strings.TrimSpace(*pp.FeaturedImageAlt)
	}
	if pp.Content != nil {
		post.Content = prepareBlocks(*pp.Content)
		err = multierr.Append(err, validateBlocks(post.Content))
	}
	if pp.Author != nil {
		post.Author = strings.TrimSpace(*pp.Author)
		if post.Author == "" {
			post.Author = DefaultAuthor
		}
	}
	if pp.Category != nil {
		post.Category = Category(strings.TrimSpace(string(*pp.Category)))
		err = multierr.Append(err, validateCategory(post.Category))
	}
	if pp.Tags != nil {
		post.Tags = normalizeTags(*pp.Tags)
	}
	switch {
	case pp.Status != nil:
		post.Status = normalizeStatus(*pp.Status)
		err = multierr.Append(err, validateStatus(post.Status))
	case pp.IsPublished != nil:
		post.Status = StatusFromLegacyFlag(*pp.IsPublished)
	}
	if pp.Slug != nil {
		slug = NormalizeSlug(*pp.Slug)
		err = multierr.Append(err, validateSlug(slug))
	}

	err = multierr.Append(err, validateCompleteness(post))
	return slug, toValidationError(err)
}

func normalizeStatus(s Status) Status {
	return Status(strings.ToLower(strings.TrimSpace(string(s))))
}

// reconcilePublication keeps publishedAt in line with the status: set on the first
// publication, cleared whenever the post is not published.
func reconcilePublication(post *Post, now time.Time) {
	switch {
	case post.Status == StatusPublished && post.PublishedAt == nil:
		publishedAt := now.UTC()
		post.PublishedAt = &publishedAt
	case post.Status != StatusPublished:
		post.PublishedAt = nil
	}
}

// backfill fills display defaults on posts read back from the store.
func backfill(post *Post) {
	if post.ReadingTime < 1 {
		post.ReadingTime = ReadingTime(post.Content)
	}
	if post.FeaturedImageAlt == "" {
		post.FeaturedImageAlt = post.Title
	}
	if post.Category == "" {
		post.Category = DefaultCategory
	}
	if post.Author == "" {
		post.Author = DefaultAuthor
	}
}

type ListResult struct {
	Posts      []*Post
	Pagination Pagination
}

type LegacyReport struct {
	Scanned   int
	Published int
	Drafts    int
}

type ServiceParams struct {
	Repo                postRepo
	Cache               *PostCache       // optional
	Metrics             *metrics.Manager // optional
	SlugConflictRetries int
}

// Service is the publication reconciler sitting between callers and the record store.
type Service struct {
	repo                postRepo
	cache               *PostCache
	metrics             *metrics.Manager
	slugConflictRetries int
	now                 func() time.Time
}

func NewService(params ServiceParams) *Service {
	retries := params.SlugConflictRetries
	if retries <= 0 {
		retries = DefaultSlugConflictRetries
	}
	return &Service{
		repo:                params.Repo,
		cache:               params.Cache,
		metrics:             params.Metrics,
		slugConflictRetries: retries,
		now:                 time.Now,
	}
}

func (s *Service) Create(ctx context.Context, in NewPost) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.create")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	post := in.toPost()
	post.normalize()

	baseSlug := NormalizeSlug(in.Slug)
	if baseSlug == "" {
		baseSlug = Slugify(post.Title)
	}
	if err := toValidationError(multierr.Append(
		post.fieldErrors(),
		validateSlug(baseSlug),
	)); err != nil {
		return nil, err
	}

	reconcilePublication(post, s.now())
	post.ReadingTime = ReadingTime(post.Content)

	if err := s.persistWithUniqueSlug(ctx, post, baseSlug, s.repo.Create); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	span.SetAttributes(attribute.Int("id", post.ID), attribute.String("slug", post.Slug))

	if s.metrics != nil {
		s.metrics.CounterPostsCreated.Inc()
	}
	log.Debugf("blog service: created post %d [%s] status [%s]", post.ID, post.Slug, post.Status)

	return post, nil
}

func (s *Service) Get(ctx context.Context, ref PostRef) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.get")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	if ref.IsSlug() && s.cache != nil {
		if post, ok := s.cache.Get(ref.Slug); ok {
			if s.metrics != nil {
				s.metrics.CounterPostCacheHits.Inc()
			}
			span.SetAttributes(attribute.Bool("cached", true))
			return post, nil
		}
		if s.metrics != nil {
			s.metrics.CounterPostCacheMisses.Inc()
		}
	}

	post, err := s.repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", ref, err)
	}
	backfill(post)

	if s.cache != nil {
		s.cache.Set(post)
	}
	return post, nil
}

func (s *Service) List(ctx context.Context, query ListQuery) (_ *ListResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	query = query.Normalized()
	filter, err := query.Filter()
	if err != nil {
		return nil, err
	}

	posts, total, err := s.repo.List(ctx, filter, query.Offset(), query.Limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	for _, post := range posts {
		backfill(post)
	}

	return &ListResult{
		Posts:      posts,
		Pagination: NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *Service) Update(ctx context.Context, ref PostRef, patch PostPatch) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.update")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("ref", ref.String()))

	post, err := s.repo.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", ref, err)
	}
	prevSlug := post.Slug

	newSlug, err := patch.apply(post)
	if err != nil {
		return nil, err
	}

	reconcilePublication(post, s.now())
	post.ReadingTime = ReadingTime(post.Content)

	if newSlug != "" && newSlug != prevSlug {
		err = s.persistWithUniqueSlug(ctx, post, newSlug, s.repo.Update)
	} else {
		err = s.repo.Update(ctx, post)
	}
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", ref, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(prevSlug, post.Slug)
	}
	if s.metrics != nil {
		s.metrics.CounterPostsUpdated.Inc()
	}
	backfill(post)

	return post, nil
}

func (s *Service) Delete(ctx context.Context, ref PostRef) (_ *DeletedPost, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.delete")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("ref", ref.String()))

	deleted, err := s.repo.Delete(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("delete post %s: %w", ref, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(deleted.Slug)
	}
	if s.metrics != nil {
		s.metrics.CounterPostsDeleted.Inc()
	}
	log.Debugf("blog service: deleted post %d [%s]", deleted.ID, deleted.Slug)

	return deleted, nil
}

// Like adds one like to a published post.
func (s *Service) Like(ctx context.Context, slug string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.like")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	slug = NormalizeSlug(slug)
	likes, err := s.repo.IncrementLikes(ctx, slug)
	if err != nil {
		return 0, fmt.Errorf("like post [%s]: %w", slug, err)
	}

	if s.cache != nil {
		s.cache.Invalidate(slug)
	}
	if s.metrics != nil {
		s.metrics.CounterPostLikes.Inc()
	}

	return likes, nil
}

// ReconcileLegacy rewrites rows that predate the status column so both publication
// columns and publishedAt agree. Published legacy rows get their creation time as
// publication time. With dryRun nothing is written.
func (s *Service) ReconcileLegacy(ctx context.Context, dryRun bool) (_ LegacyReport, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.blog.reconcile.legacy")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	report := LegacyReport{}
	posts, err := s.repo.ListLegacy(ctx)
	if err != nil {
		return report, fmt.Errorf("list legacy posts: %w", err)
	}

	for _, post := range posts {
		report.Scanned++
		if post.IsPublished() {
			report.Published++
		} else {
			report.Drafts++
		}

		reconcilePublication(post, post.CreatedAt)
		if post.ReadingTime < 1 {
			post.ReadingTime = ReadingTime(post.Content)
		}

		if dryRun {
			log.Infof("legacy reconcile [dry run]: post %d [%s] => %s", post.ID, post.Slug, post.Status)
			continue
		}
		if err := s.repo.Update(ctx, post); err != nil {
			return report, fmt.Errorf("reconcile legacy post %d: %w", post.ID, err)
		}
		if s.cache != nil {
			s.cache.Invalidate(post.Slug)
		}
		log.Infof("legacy reconcile: post %d [%s] => %s", post.ID, post.Slug, post.Status)
	}

	return report, nil
}

type persistFunc func(ctx context.Context, post *Post) error

// persistWithUniqueSlug probes base, base-1, base-2 ... for the first free slug and
// persists the post under it. A conflict at persist time means a concurrent writer
// took the candidate in between; probing then resumes after it, at most
// slugConflictRetries times.
func (s *Service) persistWithUniqueSlug(ctx context.Context, post *Post, base string, persist persistFunc) error {
	from := 0
	for attempt := 0; ; attempt++ {
		slug, n, err := s.freeSlug(ctx, base, from, post.ID)
		if err != nil {
			return err
		}
		post.Slug = slug

		err = persist(ctx, post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrSlugConflict) {
			return err
		}

		if s.metrics != nil {
			s.metrics.CounterSlugConflicts.Inc()
		}
		if attempt >= s.slugConflictRetries {
			return fmt.Errorf("slug [%s] still taken after %d retries: %w", slug, attempt, err)
		}
		log.Warnf("blog service: slug [%s] taken at persist time, retrying with next suffix", slug)
		from = n + 1
	}
}

func (s *Service) freeSlug(ctx context.Context, base string, from, excludeID int) (string, int, error) {
	for n := from; ; n++ {
		candidate := slugCandidate(base, n)
		exists, err := s.repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", 0, fmt.Errorf("probe slug [%s]: %w", candidate, err)
		}
		if !exists {
			return candidate, n, nil
		}
	}
}
