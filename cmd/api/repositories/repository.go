package repositories

import (
	"context"
	"errors"

	"naa-posts/models"
)

var ErrNotFound = errors.New("post not found")

// ErrDuplicateID is returned by Insert when the id is already taken.
var ErrDuplicateID = errors.New("post id already exists")

const (
	AllPosts  = "All Posts"
	AllStatus = "All Status"

	DefaultPage         = 1
	DefaultItemsPerPage = 10
)

// Filter selects a page of posts. Empty Type/Status/Search apply no restriction.
type Filter struct {
	Type         string
	Status       string
	Search       string
	Page         int
	ItemsPerPage int
}

// Normalized applies the page defaults, drops the "all" sentinels and maps any
// other type onto a stored category.
func (f Filter) Normalized() Filter {
	switch f.Type {
	case AllPosts, "":
		f.Type = ""
	default:
		f.Type = models.NormalizeCategory(f.Type)
	}
	if f.Status == AllStatus {
		f.Status = ""
	}
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.ItemsPerPage < 1 {
		f.ItemsPerPage = DefaultItemsPerPage
	}
	return f
}

func (f Filter) offset() int { return (f.Page - 1) * f.ItemsPerPage }

// Page holds one page of posts and the number of posts matching the filter.
type Page struct {
	Posts []models.Post `json:"posts"`
	Total int           `json:"total"`
}

// PostRepository is the persistence boundary for posts.
type PostRepository interface {
	List(ctx context.Context, f Filter) (Page, error)
	FindByID(ctx context.Context, id string) (models.Post, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Insert places p first in the collection.
	Insert(ctx context.Context, p models.Post) error
	Replace(ctx context.Context, p models.Post) error
	// Delete removes the post and returns what was stored.
	Delete(ctx context.Context, id string) (models.Post, error)
	Ping(ctx context.Context) error
}
