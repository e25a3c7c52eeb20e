//go:build integration_test || all_tests

package test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/2beens/engblog/internal/blog"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPost(title string, status blog.Status) blog.NewPost {
	return blog.NewPost{
		Title:         title,
		Excerpt:       gofakeit.Sentence(8),
		FeaturedImage: "/uploads/cover.png",
		Content: []blog.ContentBlock{
			{Type: blog.BlockHeading, Content: "Intro", Level: 2},
			{Type: blog.BlockParagraph, Content: gofakeit.Paragraph(2, 4, 30, " "), Order: 1},
			// editor placeholder, dropped
			{Type: blog.BlockParagraph, Content: "   ", Order: 2},
			{Type: blog.BlockCode, Content: "fmt.Println(42)", Language: "go", Order: 3},
		},
		Category: blog.CategoryTechnology,
		Tags:     []string{"go", "postgres"},
		Status:   status,
	}
}

func (s *IntegrationTestSuite) TestBlogs_AuthRequired() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	post := newTestPost("Unauthorized post", blog.StatusPublished)
	status, _ := s.do(ctx, t, http.MethodPost, "/blogs", "", post)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(ctx, t, http.MethodPost, "/blogs", "invalid-token", post)
	assert.Equal(t, http.StatusUnauthorized, status)

	for _, path := range []string{"/blogs?status=draft", "/blogs?includeAll=true", "/blogs?status=archived"} {
		status, _ = s.do(ctx, t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}

	status, resp := s.do(ctx, t, http.MethodGet, "/blogs", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Blogs)
	require.NotNil(t, resp.Pagination)
	assert.Equal(t, 0, resp.Pagination.Total)
}

func (s *IntegrationTestSuite) TestBlogs_Lifecycle() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx, t)
	title := "Lifecycle " + gofakeit.LetterN(10)

	var draft *blog.Post
	t.Run("create draft", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPost, "/blogs", token, newTestPost(title, ""))
		require.Equal(t, http.StatusCreated, status, resp.Error)
		require.NotNil(t, resp.Blog)
		draft = resp.Blog

		assert.Equal(t, blog.Slugify(title), draft.Slug)
		assert.Equal(t, blog.StatusDraft, draft.Status)
		assert.Nil(t, draft.PublishedAt)
		assert.Len(t, draft.Content, 3, "placeholder block dropped")
		assert.Equal(t, blog.DefaultAuthor, draft.Author)
		assert.GreaterOrEqual(t, draft.ReadingTime, 1)
	})
	require.NotNil(t, draft)

	t.Run("draft is not public", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodGet, "/blogs", "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, resp.Blogs)

		status, _ = s.do(ctx, t, http.MethodGet, "/blogs?slug="+draft.Slug, "", nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = s.do(ctx, t, http.MethodPost, "/blogs/like?slug="+draft.Slug, "", nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, resp = s.do(ctx, t, http.MethodGet, "/blogs?status=draft", token, nil)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, resp.Blogs, 1)
		assert.Equal(t, draft.ID, resp.Blogs[0].ID)
	})

	t.Run("same title gets a suffixed slug", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPost, "/blogs", token, newTestPost(title, blog.StatusDraft))
		require.Equal(t, http.StatusCreated, status, resp.Error)
		assert.Equal(t, draft.Slug+"-1", resp.Blog.Slug)

		status, resp = s.do(ctx, t, http.MethodPost, "/blogs", token, newTestPost(title, blog.StatusDraft))
		require.Equal(t, http.StatusCreated, status, resp.Error)
		assert.Equal(t, draft.Slug+"-2", resp.Blog.Slug)
	})

	t.Run("publish", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPatch, fmt.Sprintf("/blogs?id=%d", draft.ID), token, map[string]any{
			"status": "published",
		})
		require.Equal(t, http.StatusOK, status, resp.Error)
		assert.Equal(t, blog.StatusPublished, resp.Blog.Status)
		require.NotNil(t, resp.Blog.PublishedAt)
		assert.Equal(t, draft.Slug, resp.Blog.Slug)

		status, resp = s.do(ctx, t, http.MethodGet, "/blogs?slug="+draft.Slug, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, title, resp.Blog.Title)

		status, resp = s.do(ctx, t, http.MethodGet, "/blogs?category=All", "", nil)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, resp.Blogs, 1)
		assert.Equal(t, 1, resp.Pagination.Total)
	})

	t.Run("like", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPost, "/blogs/like?slug="+draft.Slug, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 1, resp.Likes)

		status, resp = s.do(ctx, t, http.MethodPost, "/blogs/like?slug="+draft.Slug, "", nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 2, resp.Likes)
	})

	t.Run("unpublish clears publishedAt", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPut, "/blogs?slug="+draft.Slug, token, map[string]any{
			"isPublished": false,
		})
		require.Equal(t, http.StatusOK, status, resp.Error)
		assert.Equal(t, blog.StatusDraft, resp.Blog.Status)
		assert.Nil(t, resp.Blog.PublishedAt)

		status, _ = s.do(ctx, t, http.MethodGet, "/blogs?slug="+draft.Slug, "", nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("explicit slug conflict on update", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodPatch, fmt.Sprintf("/blogs?id=%d", draft.ID), token, map[string]any{
			"slug": draft.Slug + "-1",
		})
		require.Equal(t, http.StatusOK, status, resp.Error)
		assert.Equal(t, draft.Slug+"-1-1", resp.Blog.Slug)
	})

	t.Run("delete", func(t *testing.T) {
		status, resp := s.do(ctx, t, http.MethodDelete, fmt.Sprintf("/blogs?id=%d", draft.ID), token, nil)
		require.Equal(t, http.StatusOK, status, resp.Error)
		require.NotNil(t, resp.DeletedBlog)
		assert.Equal(t, draft.ID, resp.DeletedBlog.ID)
		assert.Equal(t, title, resp.DeletedBlog.Title)

		status, _ = s.do(ctx, t, http.MethodDelete, fmt.Sprintf("/blogs?id=%d", draft.ID), token, nil)
		assert.Equal(t, http.StatusNotFound, status)

		status, resp = s.do(ctx, t, http.MethodGet, "/blogs?includeAll=true", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, 2, resp.Pagination.Total)
	})
}

func (s *IntegrationTestSuite) TestBlogs_Validation() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx, t)

	invalid := newTestPost("", blog.StatusPublished)
	invalid.Excerpt = ""
	invalid.Content = []blog.ContentBlock{{Type: blog.BlockHeading, Content: "Too deep", Level: 9}}
	invalid.Category = "Knitting"

	status, resp := s.do(ctx, t, http.MethodPost, "/blogs", token, invalid)
	require.Equal(t, http.StatusBadRequest, status)
	fields := map[string]bool{}
	for _, d := range resp.Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["excerpt"])
	assert.True(t, fields["category"])
	assert.True(t, fields["content[0].level"], "%v", resp.Details)

	empty := newTestPost("Nothing to say", blog.StatusPublished)
	empty.Content = nil
	status, _ = s.do(ctx, t, http.MethodPost, "/blogs", token, empty)
	assert.Equal(t, http.StatusBadRequest, status, "published posts need content")

	empty.Status = blog.StatusDraft
	status, resp = s.do(ctx, t, http.MethodPost, "/blogs", token, empty)
	require.Equal(t, http.StatusCreated, status, resp.Error)

	status, _ = s.do(ctx, t, http.MethodGet, "/blogs?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(ctx, t, http.MethodDelete, "/blogs?id=1&slug=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func (s *IntegrationTestSuite) TestBlogs_Pagination() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx, t)
	prefix := "Paged " + gofakeit.LetterN(6)
	for i := 0; i < 5; i++ {
		status, resp := s.do(ctx, t, http.MethodPost, "/blogs", token, newTestPost(fmt.Sprintf("%s %d", prefix, i), blog.StatusPublished))
		require.Equal(t, http.StatusCreated, status, resp.Error)
	}

	query := url.Values{"page": {"2"}, "limit": {"2"}, "category": {string(blog.CategoryTechnology)}}
	status, resp := s.do(ctx, t, http.MethodGet, "/blogs?"+query.Encode(), "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Blogs, 2)
	assert.Equal(t, blog.Pagination{
		Page: 2, Limit: 2, Total: 5, TotalPages: 3, HasNext: true, HasPrev: true,
	}, *resp.Pagination)
	// newest first: the 5 posts were created in order 0..4
	assert.True(t, strings.HasSuffix(resp.Blogs[0].Title, " 2"), resp.Blogs[0].Title)

	status, resp = s.do(ctx, t, http.MethodGet, "/blogs?category=Travel", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, resp.Blogs)

	// far past the last page: an empty page, not a failed query
	status, resp = s.do(ctx, t, http.MethodGet, "/blogs?page=1844674407370955161&limit=10", "", nil)
	require.Equal(t, http.StatusOK, status, resp.Error)
	assert.Empty(t, resp.Blogs)
	assert.Equal(t, blog.MaxPage, resp.Pagination.Page)
}
