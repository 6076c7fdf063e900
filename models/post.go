package models

import "strings"

const (
	CategoryNews         = "News"
	CategoryAnnouncement = "Announcement"
)

// Post is a published article as stored in the posts collection and returned by the API.
// Field names follow the camelCase JSON the admin panel and public site already consume.
type Post struct {
	ID            string   `bson:"_id" json:"id"`
	Title         string   `bson:"title" json:"title"`
	Slug          *string  `bson:"slug" json:"slug"`
	Type          string   `bson:"type" json:"type"`
	Image         string   `bson:"image" json:"image"`
	GalleryImages []string `bson:"galleryImages,omitempty" json:"galleryImages,omitempty"`
	HTMLContent   string   `bson:"htmlContent" json:"htmlContent"`
	Description   string   `bson:"description" json:"description"`
	Language      string   `bson:"language" json:"language"`
	Status        string   `bson:"status" json:"status"`
	PublishStatus string   `bson:"publishStatus" json:"publishStatus"`
	Author        string   `bson:"author" json:"author"`
	// CreatedAt and UpdatedAt are ISO-8601 UTC strings with milliseconds.
	// Kept as strings so records written by older tooling load unchanged.
	CreatedAt   string `bson:"createdAt" json:"createdAt"`
	UpdatedAt   string `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	SharingTime string `bson:"sharingTime" json:"sharingTime"`
	SharingHour string `bson:"sharingHour" json:"sharingHour"`
}

// Collection is the on-disk document holding every post, newest first.
type Collection struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (p Post) Clone() Post {
	out := p
	if p.Slug != nil {
		s := *p.Slug
		out.Slug = &s
	}
	if p.GalleryImages != nil {
		out.GalleryImages = append([]string(nil), p.GalleryImages...)
	}
	return out
}

// Images lists every image URL referenced by the post, cover first.
func (p Post) Images() []string {
	out := make([]string, 0, len(p.GalleryImages)+1)
	if p.Image != "" {
		out = append(out, p.Image)
	}
	return append(out, p.GalleryImages...)
}

// NormalizeCategory maps any category other than Announcement to News.
func NormalizeCategory(category string) string {
	if strings.TrimSpace(category) == CategoryAnnouncement {
		return CategoryAnnouncement
	}
	return CategoryNews
}
