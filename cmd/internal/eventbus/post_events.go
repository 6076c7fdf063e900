package eventbus

const (
	PostCreated = "post.created"
	PostUpdated = "post.updated"
	PostDeleted = "post.deleted"
)

// PostEventPayload is a light snapshot of a post for downstream consumers
// (search indexers, cache warmers). Content bodies are not included.
type PostEventPayload struct {
	PostID        string   `json:"post_id"`
	Title         string   `json:"title"`
	Slug          *string  `json:"slug"`
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	PublishStatus string   `json:"publish_status"`
	Language      string   `json:"language"`
	Images        []string `json:"images"`
	CreatedAt     string   `json:"created_at"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}
