package blog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nonSlugRunRegex = regexp.MustCompile(`[^a-z0-9]+`)
	validSlugRegex  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Slugify derives the base slug of a title: lowercase, every run of characters
// outside [a-z0-9] becomes a single '-', leading and trailing '-' are stripped.
func Slugify(title string) string {
	slug := nonSlugRunRegex.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// NormalizeSlug cleans up a caller supplied slug without rewriting its characters.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func validateSlug(slug string) error {
	if slug == "" {
		return fieldErr("slug", "cannot be derived from the title, provide a slug")
	}
	if !validSlugRegex.MatchString(slug) {
		return fieldErr("slug", "may only contain a-z, 0-9 and single dashes between them")
	}
	return nil
}

// slugCandidate returns the n-th probe for base: base itself, then base-1, base-2 ...
func slugCandidate(base string, n int) string {
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
