package repositories

import (
	"sort"
	"strings"
	"time"

	"naa-posts/models"
)

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCreatedAt reads the createdAt formats found in stored data. Unparsable values
// yield the zero time, which sorts last.
func ParseCreatedAt(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Query filters, sorts newest first and paginates posts without modifying them.
func Query(posts []models.Post, f Filter) Page {
	f = f.Normalized()
	search := strings.ToLower(strings.TrimSpace(f.Search))

	matched := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return ParseCreatedAt(matched[i].CreatedAt).After(ParseCreatedAt(matched[j].CreatedAt))
	})

	total := len(matched)
	start := f.offset()
	if start > total {
		start = total
	}
	end := start + f.ItemsPerPage
	if end > total {
		end = total
	}
	return Page{Posts: matched[start:end], Total: total}
}

func matchesSearch(p models.Post, term string) bool {
	for _, field := range []string{p.Title, p.Description, p.Author} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}
