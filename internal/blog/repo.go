package blog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2beens/engblog/internal/telemetry/tracing"
	"github.com/2beens/engblog/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const slugUniqueConstraint = "blog_post_slug_key"

const postColumns = `
	id, title, slug, excerpt, featured_image, featured_image_alt, content,
	author, category, tags, status, is_published, published_at,
	views, likes, reading_time, created_at, updated_at`

// Repo is the Postgres backed content record store. Content blocks are embedded
// in the row as JSONB, tags as TEXT[].
type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanPost(row pgx.Row) (*Post, error) {
	var (
		p           Post
		content     []byte
		category    string
		status      *string
		isPublished *bool
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Excerpt, &p.FeaturedImage, &p.FeaturedImageAlt, &content,
		&p.Author, &category, &p.Tags, &status, &isPublished, &p.PublishedAt,
		&p.Views, &p.Likes, &p.ReadingTime, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(content) > 0 {
		if err := json.Unmarshal(content, &p.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content of post %d: %w", p.ID, err)
		}
	}
	if p.Content == nil {
		p.Content = []ContentBlock{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.Category = Category(category)
	p.Status = storedStatus(status, isPublished)

	return &p, nil
}

// storedStatus reads the publication state of a row. Rows written before the status
// column existed only carry the boolean flag.
func storedStatus(status *string, isPublished *bool) Status {
	if status != nil && *status != "" {
		return Status(*status)
	}
	if isPublished != nil {
		return StatusFromLegacyFlag(*isPublished)
	}
	return StatusDraft
}

func contentJSON(blocks []ContentBlock) (string, error) {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	raw, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("marshal content: %w", err)
	}
	return string(raw), nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// Create inserts a new post. The full structural validation runs again here so
// no caller can persist an invalid document. A taken slug yields ErrSlugConflict.
func (r *Repo) Create(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.create")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("slug", post.Slug))

	if err := post.Validate(); err != nil {
		return err
	}

	content, err := contentJSON(post.Content)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO blog_post (
			title, slug, excerpt, featured_image, featured_image_alt, content,
			author, category, tags, status, is_published, published_at, reading_time
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, views, likes, created_at, updated_at
	`,
		post.Title, post.Slug, post.Excerpt, post.FeaturedImage, post.FeaturedImageAlt, content,
		post.Author, string(post.Category), tagsOrEmpty(post.Tags), string(post.Status), post.IsPublished(),
		post.PublishedAt, post.ReadingTime,
	).Scan(&post.ID, &post.Views, &post.Likes, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if pkg.UniqueViolationConstraint(err) == slugUniqueConstraint {
			return fmt.Errorf("create post [%s]: %w", post.Slug, ErrSlugConflict)
		}
		return err
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, ref PostRef) (_ *Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.get")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("ref", ref.String()))

	var row pgx.Row
	if ref.IsSlug() {
		row = r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_post WHERE slug = $1`, ref.Slug)
	} else {
		row = r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM blog_post WHERE id = $1`, ref.ID)
	}

	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return post, nil
}

// SlugExists reports whether a post other than excludeID already owns the slug.
// Pass 0 as excludeID when probing for a new post.
func (r *Repo) SlugExists(ctx context.Context, slug string, excludeID int) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.slug.exists")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	var exists bool
	if err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blog_post WHERE slug = $1 AND id <> $2)
	`, slug, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns one page of posts matching the filter, and the total number of matches.
func (r *Repo) List(ctx context.Context, filter ListFilter, offset, limit int) (_ []*Post, _ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.list")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(
		attribute.String("visibility", filter.Visibility.String()),
		attribute.String("category", string(filter.Category)),
		attribute.Int("offset", offset),
		attribute.Int("limit", limit),
	)

	where := fmt.Sprintf(`WHERE ($1::text = '' OR category = $1::text) AND %s`, filter.Visibility.sqlPredicate())

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM blog_post `+where,
		string(filter.Category),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM blog_post
		`+where+`
		ORDER BY published_at DESC NULLS LAST, created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, string(filter.Category), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]*Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

// Update writes the mutable fields of an already merged post, keyed by its id.
func (r *Repo) Update(ctx context.Context, post *Post) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.update")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.Int("id", post.ID))

	content, err := contentJSON(post.Content)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx, `
		UPDATE blog_post SET
			title = $2, slug = $3, excerpt = $4, featured_image = $5, featured_image_alt = $6,
			content = $7, author = $8, category = $9, tags = $10, status = $11,
			is_published = $12, published_at = $13, reading_time = $14, updated_at = now()
		WHERE id = $1
		RETURNING views, likes, updated_at
	`,
		post.ID, post.Title, post.Slug, post.Excerpt, post.FeaturedImage, post.FeaturedImageAlt,
		content, post.Author, string(post.Category), tagsOrEmpty(post.Tags), string(post.Status),
		post.IsPublished(), post.PublishedAt, post.ReadingTime,
	).Scan(&post.Views, &post.Likes, &post.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPostNotFound
		}
		if pkg.UniqueViolationConstraint(err) == slugUniqueConstraint {
			return fmt.Errorf("update post %d [%s]: %w", post.ID, post.Slug, ErrSlugConflict)
		}
		return err
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, ref PostRef) (_ *DeletedPost, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.delete")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()
	span.SetAttributes(attribute.String("ref", ref.String()))

	var row pgx.Row
	if ref.IsSlug() {
		row = r.db.QueryRow(ctx, `DELETE FROM blog_post WHERE slug = $1 RETURNING id, title, slug`, ref.Slug)
	} else {
		row = r.db.QueryRow(ctx, `DELETE FROM blog_post WHERE id = $1 RETURNING id, title, slug`, ref.ID)
	}

	deleted := &DeletedPost{}
	if err := row.Scan(&deleted.ID, &deleted.Title, &deleted.Slug); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return deleted, nil
}

// IncrementLikes adds one like to a published post and returns the new count.
func (r *Repo) IncrementLikes(ctx context.Context, slug string) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.likes.increment")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	var likes int
	err = r.db.QueryRow(ctx, `
		UPDATE blog_post SET likes = likes + 1
		WHERE slug = $1 AND `+VisibilityPublished.sqlPredicate()+`
		RETURNING likes
	`, slug).Scan(&likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrPostNotFound
		}
		return 0, err
	}
	return likes, nil
}

// ListLegacy returns the rows that predate the status column.
func (r *Repo) ListLegacy(ctx context.Context) (_ []*Post, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.blog.list.legacy")
	defer func() { tracing.EndSpanWithErrCheck(span, err) }()

	rows, err := r.db.Query(ctx, `
		SELECT `+postColumns+`
		FROM blog_post
		WHERE status IS NULL OR is_published IS NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}
