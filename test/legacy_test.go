//go:build integration_test || all_tests

package test

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/2beens/engblog/internal/blog"
	"github.com/2beens/engblog/internal/db"
	"github.com/2beens/engblog/internal/telemetry/metrics"
)

// insertLegacyPost writes a row the way the old admin did: only the boolean flag, no status.
func (s *IntegrationTestSuite) insertLegacyPost(title, slug string, isPublished bool) int {
	var id int
	err := s.DB.QueryRow(`
		INSERT INTO blog_post (title, slug, excerpt, featured_image, content, is_published, reading_time, created_at)
		VALUES ($1, $2, 'legacy excerpt', '/uploads/legacy.png',
			'[{"type":"paragraph","content":"written long ago","order":0}]', $3, 0, $4)
		RETURNING id
	`, title, slug, isPublished, time.Date(2021, 3, 14, 9, 0, 0, 0, time.UTC)).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *IntegrationTestSuite) newLegacyReconciler(ctx context.Context) (*blog.Service, func()) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: "localhost",
		DBPort: s.pgPort,
		DBName: testDBName,
	})
	s.Require().NoError(err)

	metricsManager, _ := metrics.NewTestManagerAndRegistry()
	return blog.NewService(blog.ServiceParams{
		Repo:    blog.NewRepo(dbPool),
		Metrics: metricsManager,
	}), dbPool.Close
}

func (s *IntegrationTestSuite) TestLegacyPosts_PublicVisibility() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.insertLegacyPost("Legacy visible", "legacy-visible", true)
	s.insertLegacyPost("Legacy hidden", "legacy-hidden", false)

	status, resp := s.do(ctx, t, http.MethodGet, "/blogs", "", nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(resp.Blogs, 1)
	s.Equal("legacy-visible", resp.Blogs[0].Slug)
	s.Equal(blog.StatusPublished, resp.Blogs[0].Status)
	s.Equal(blog.DefaultCategory, resp.Blogs[0].Category)
	s.GreaterOrEqual(resp.Blogs[0].ReadingTime, 1)

	status, _ = s.do(ctx, t, http.MethodGet, "/blogs?slug=legacy-hidden", "", nil)
	s.Equal(http.StatusNotFound, status)

	token := s.doLogin(ctx, t)
	status, resp = s.do(ctx, t, http.MethodGet, "/blogs?status=draft", token, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(resp.Blogs, 1)
	s.Equal("legacy-hidden", resp.Blogs[0].Slug)
}

func (s *IntegrationTestSuite) TestLegacyPosts_Reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	publishedID := s.insertLegacyPost("Legacy published", "legacy-published", true)
	draftID := s.insertLegacyPost("Legacy draft", "legacy-draft", false)

	reconciler, closePool := s.newLegacyReconciler(ctx)
	defer closePool()

	report, err := reconciler.ReconcileLegacy(ctx, true)
	s.Require().NoError(err)
	s.Equal(blog.LegacyReport{Scanned: 2, Published: 1, Drafts: 1}, report)

	var status sql.NullString
	s.Require().NoError(s.DB.QueryRow(`SELECT status FROM blog_post WHERE id = $1`, publishedID).Scan(&status))
	s.False(status.Valid, "dry run must not write")

	report, err = reconciler.ReconcileLegacy(ctx, false)
	s.Require().NoError(err)
	s.Equal(blog.LegacyReport{Scanned: 2, Published: 1, Drafts: 1}, report)

	var (
		isPublished bool
		publishedAt sql.NullTime
		createdAt   time.Time
		readingTime int
	)
	s.Require().NoError(s.DB.QueryRow(`
		SELECT status, is_published, published_at, created_at, reading_time FROM blog_post WHERE id = $1
	`, publishedID).Scan(&status, &isPublished, &publishedAt, &createdAt, &readingTime))
	s.Equal("published", status.String)
	s.True(isPublished)
	s.Require().True(publishedAt.Valid)
	s.True(publishedAt.Time.Equal(createdAt), "publication time taken from creation time")
	s.Equal(1, readingTime)

	s.Require().NoError(s.DB.QueryRow(`
		SELECT status, is_published, published_at FROM blog_post WHERE id = $1
	`, draftID).Scan(&status, &isPublished, &publishedAt))
	s.Equal("draft", status.String)
	s.False(isPublished)
	s.False(publishedAt.Valid)

	// nothing left to reconcile
	report, err = reconciler.ReconcileLegacy(ctx, false)
	s.Require().NoError(err)
	s.Zero(report.Scanned)
}
