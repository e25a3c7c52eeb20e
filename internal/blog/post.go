package blog

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/multierr"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// StatusFromLegacyFlag maps the boolean publication flag used by older clients to a status.
func StatusFromLegacyFlag(isPublished bool) Status {
	if isPublished {
		return StatusPublished
	}
	return StatusDraft
}

type Category string

const (
	CategoryGeneral       Category = "General"
	CategoryTechnology    Category = "Technology"
	CategoryLifestyle     Category = "Lifestyle"
	CategoryBusiness      Category = "Business"
	CategoryHealth        Category = "Health"
	CategoryTravel        Category = "Travel"
	CategoryFood          Category = "Food"
	CategoryFashion       Category = "Fashion"
	CategorySports        Category = "Sports"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"

	DefaultCategory = CategoryGeneral
)

var categories = []Category{
	CategoryGeneral, CategoryTechnology, CategoryLifestyle, CategoryBusiness,
	CategoryHealth, CategoryTravel, CategoryFood, CategoryFashion,
	CategorySports, CategoryEntertainment, CategoryOther,
}

func (c Category) IsValid() bool {
	return slices.Contains(categories, c)
}

const (
	DefaultAuthor    = "Admin"
	MaxTitleLength   = 200
	MaxExcerptLength = 500
)

type Post struct {
	ID               int            `json:"id"`
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
	PublishedAt      *time.Time     `json:"publishedAt"`
	Views            int            `json:"views"`
	Likes            int            `json:"likes"`
	ReadingTime      int            `json:"readingTime"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// IsPublished is derived from Status, there is no second stored source of truth.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}

// IsComplete reports whether the post has any content to render.
func (p *Post) IsComplete() bool {
	return len(p.Content) > 0
}

// MarshalJSON adds the derived isPublished flag expected by older clients.
func (p Post) MarshalJSON() ([]byte, error) {
	type post Post
	return json.Marshal(struct {
		post
		IsPublished bool `json:"isPublished"`
	}{
		post:        post(p),
		IsPublished: p.IsPublished(),
	})
}

// DeletedPost is the summary returned after a post is removed.
type DeletedPost struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// PostRef points to a single post either by id or by slug.
type PostRef struct {
	ID   int
	Slug string
}

func ByID(id int) PostRef {
	return PostRef{ID: id}
}

func BySlug(slug string) PostRef {
	return PostRef{Slug: NormalizeSlug(slug)}
}

func (r PostRef) IsSlug() bool {
	return r.ID == 0
}

func (r PostRef) String() string {
	if r.IsSlug() {
		return "slug:" + r.Slug
	}
	return "id:" + strconv.Itoa(r.ID)
}

// normalize trims free text, drops placeholder blocks, removes empty tags and
// fills the defaults of omitted fields.
func (p *Post) normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Excerpt = strings.TrimSpace(p.Excerpt)
	p.FeaturedImage = strings.TrimSpace(p.FeaturedImage)
	p.FeaturedImageAlt = strings.TrimSpace(p.FeaturedImageAlt)
	p.Author = strings.TrimSpace(p.Author)
	p.Content = prepareBlocks(p.Content)
	p.Tags = normalizeTags(p.Tags)

	if p.Author == "" {
		p.Author = DefaultAuthor
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	if p.Status == "" {
		p.Status = StatusDraft
	}
}

func normalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(normalized, tag) {
			continue
		}
		normalized = append(normalized, tag)
	}
	return normalized
}

func validateTitle(title string) error {
	if title == "" {
		return fieldErr("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fieldErr("title", "must be at most %d characters", MaxTitleLength)
	}
	return nil
}

func validateExcerpt(excerpt string) error {
	if excerpt == "" {
		return fieldErr("excerpt", "is required")
	}
	if utf8.RuneCountInString(excerpt) > MaxExcerptLength {
		return fieldErr("excerpt", "must be at most %d characters", MaxExcerptLength)
	}
	return nil
}

func validateFeaturedImage(featuredImage string) error {
	if featuredImage == "" {
		return fieldErr("featuredImage", "is required")
	}
	return nil
}

func validateCategory(c Category) error {
	if !c.IsValid() {
		return fieldErr("category", "unknown category %q", c)
	}
	return nil
}

func validateStatus(s Status) error {
	if !s.IsValid() {
		return fieldErr("status", "must be one of draft, published, archived")
	}
	return nil
}

func validateCompleteness(p *Post) error {
	if p.IsPublished() && !p.IsComplete() {
		return fieldErr("content", "a published post needs at least one content block")
	}
	return nil
}

func (p *Post) fieldErrors() error {
	return multierr.Combine(
		validateTitle(p.Title),
		validateExcerpt(p.Excerpt),
		validateFeaturedImage(p.FeaturedImage),
		validateCategory(p.Category),
		validateStatus(p.Status),
		validateBlocks(p.Content),
		validateCompleteness(p),
	)
}

// Validate checks every structural invariant of a full post and reports all failures at once.
func (p *Post) Validate() error {
	return toValidationError(multierr.Append(p.fieldErrors(), validateSlug(p.Slug)))
}
