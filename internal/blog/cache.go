package blog

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "post||"

// PostCache keeps recently read posts by slug, serialized in a freecache arena.
type PostCache struct {
	cache *freecache.Cache
	ttl   time.Duration
}

// NewPostCache creates a cache of sizeMB megabytes (freecache enforces 512KB at least).
func NewPostCache(sizeMB int, ttl time.Duration) *PostCache {
	return &PostCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   ttl,
	}
}

func (c *PostCache) Get(slug string) (*Post, bool) {
	raw, err := c.cache.Get([]byte(cacheKeyPrefix + slug))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("post cache get [%s]: %s", slug, err)
		}
		return nil, false
	}

	post := &Post{}
	if err := json.Unmarshal(raw, post); err != nil {
		log.Errorf("post cache unmarshal [%s]: %s", slug, err)
		c.Invalidate(slug)
		return nil, false
	}
	return post, true
}

func (c *PostCache) Set(post *Post) {
	raw, err := json.Marshal(post)
	if err != nil {
		log.Errorf("post cache marshal [%s]: %s", post.Slug, err)
		return
	}
	if err := c.cache.Set([]byte(cacheKeyPrefix+post.Slug), raw, int(c.ttl.Seconds())); err != nil {
		// freecache refuses entries larger than 1/1024 of its size
		log.Debugf("post cache set [%s]: %s", post.Slug, err)
	}
}

func (c *PostCache) Invalidate(slugs ...string) {
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		c.cache.Del([]byte(cacheKeyPrefix + slug))
	}
}

func (c *PostCache) Clear() {
	c.cache.Clear()
}
