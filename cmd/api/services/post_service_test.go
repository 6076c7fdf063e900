package services

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/ingest"
	"naa-posts/cmd/api/payload"
	"naa-posts/cmd/api/repositories"
	"naa-posts/cmd/internal/eventbus"
	"naa-posts/models"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type mapCache struct {
	posts       map[string]models.Post
	invalidated []string
	getErr      error
}

func newMapCache() *mapCache { return &mapCache{posts: map[string]models.Post{}} }

func (c *mapCache) GetPost(_ context.Context, id string) (*models.Post, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if p, ok := c.posts[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *mapCache) SetPost(_ context.Context, p models.Post) error {
	c.posts[p.ID] = p
	return nil
}

func (c *mapCache) InvalidatePost(_ context.Context, id string) error {
	delete(c.posts, id)
	c.invalidated = append(c.invalidated, id)
	return nil
}

type fixture struct {
	svc      *PostService
	repo     *repositories.FileRepository
	cache    *mapCache
	events   *eventbus.MemoryPublisher
	filesDir string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	repo := repositories.NewFileRepository(filepath.Join(dir, "posts.json"), "")
	filesDir := filepath.Join(dir, "files")
	in := ingest.New(&ingest.LocalBackend{Dir: filesDir, URLPrefix: "/files"}, 5<<20)
	c := newMapCache()
	events := &eventbus.MemoryPublisher{}

	svc := NewPostService(repo, in, c, events, PostOptions{
		Statuses:        []string{"Active", "Inactive"},
		PublishStatuses: []string{"Publish", "Draft"},
		Location:        time.UTC,
		Topic:           eventbus.NewTopic("naa.post.events"),
	})
	clock := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, repo: repo, cache: c, events: events, filesDir: filesDir}
}

func jsonPayload(doc map[string]any) *payload.Payload {
	return payload.New().SetJSON(doc)
}

func TestCreateFromDataURI(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(context.Background(), jsonPayload(map[string]any{
		"title":       "  A  ",
		"htmlContent": "<p>hi</p>",
		"coverImage":  "data:image/png;base64," + onePixelPNG,
	}))
	require.NoError(t, err)

	assert.Equal(t, "prod-1714555801000", p.ID)
	assert.Equal(t, "A", p.Title)
	assert.Equal(t, "hi", p.Description)
	assert.True(t, strings.HasPrefix(p.Image, "/files/upload-"))
	assert.Equal(t, "News", p.Type)
	assert.Equal(t, "AZ", p.Language)
	assert.Equal(t, "Active", p.Status)
	assert.Equal(t, "Publish", p.PublishStatus)
	assert.Equal(t, "admin", p.Author)
	assert.Nil(t, p.Slug)
	assert.Nil(t, p.GalleryImages)
	assert.Equal(t, "2024-05-01T09:30:01.000Z", p.CreatedAt)
	assert.Equal(t, "01/05/2024", p.SharingTime)
	assert.Equal(t, "09:30 AM", p.SharingHour)
	assert.Empty(t, p.UpdatedAt)

	written, err := os.ReadFile(filepath.Join(f.filesDir, strings.TrimPrefix(p.Image, "/files/")))
	require.NoError(t, err)
	png, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	assert.Equal(t, png, written)

	got, err := f.svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.Len(t, f.events.Events, 1)
	assert.Equal(t, eventbus.PostCreated, f.events.Events[0].Type)
	assert.Equal(t, []string{"naa.post.events"}, f.events.Topics)
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		msg  string
	}{
		{"missing title", map[string]any{"htmlContent": "<p>x</p>", "coverImage": "/files/a.png"}, "Title is required"},
		{"blank title", map[string]any{"title": "   ", "htmlContent": "<p>x</p>", "coverImage": "/files/a.png"}, "Title is required"},
		{"missing content", map[string]any{"title": "A", "coverImage": "/files/a.png"}, "htmlContent is required"},
		{"missing cover", map[string]any{"title": "A", "htmlContent": "<p>x</p>"}, "Cover image is required"},
		{"undefined cover", map[string]any{"title": "A", "htmlContent": "<p>x</p>", "coverImage": ""}, "Cover image is required"},
		{"bad status", map[string]any{"title": "A", "htmlContent": "<p>x</p>", "coverImage": "/files/a.png", "status": "Archived"}, "Invalid status: Archived (allowed: Active, Inactive)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Create(context.Background(), jsonPayload(tt.doc))
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err, ""))
			assert.Empty(t, f.repo.Load().Posts)
		})
	}
}

func TestCreateRejectsOversizedGalleryImage(t *testing.T) {
	f := newFixture(t)
	big := base64.StdEncoding.EncodeToString(make([]byte, 5<<20+1))

	_, err := f.svc.Create(context.Background(), jsonPayload(map[string]any{
		"title":         "A",
		"htmlContent":   "<p>x</p>",
		"coverImage":    "data:image/png;base64," + onePixelPNG,
		"galleryImages": []any{"data:image/png;base64," + big},
	}))
	require.Error(t, err)
	assert.Equal(t, "Gallery image size exceeds 5MB limit", apperr.Message(err, ""))
	assert.Empty(t, f.repo.Load().Posts)

	// the cover stored before the failure is cleaned up
	entries, _ := os.ReadDir(f.filesDir)
	assert.Empty(t, entries)
}

func TestCreateCategoryAndGalleryDedup(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(context.Background(), payload.New().
		AddForm("title", "Rector's address").
		AddForm("htmlContent", "<p>x</p>").
		AddForm("category", "Announcement").
		AddForm("slug", "rectors-address").
		AddForm("existingCoverImage", "https://utfs.io/f/cover").
		AddForm("galleryImages[0]", "https://utfs.io/f/g1").
		AddForm("galleryImages[1]", "https://utfs.io/f/g1").
		AddForm("galleryImages[2]", "undefined"))
	require.NoError(t, err)

	assert.Equal(t, "Announcement", p.Type)
	require.NotNil(t, p.Slug)
	assert.Equal(t, "rectors-address", *p.Slug)
	assert.Equal(t, "https://utfs.io/f/cover", p.Image)
	assert.Equal(t, []string{"https://utfs.io/f/g1"}, p.GalleryImages)
}

func TestCreateFromMultipartFiles(t *testing.T) {
	f := newFixture(t)
	png, _ := base64.StdEncoding.DecodeString(onePixelPNG)

	p, err := f.svc.Create(context.Background(), payload.New().
		AddForm("title", "With files").
		AddForm("htmlContent", "<p>x</p>").
		AddFile(payload.File{Field: "coverImage", Filename: "cover.JPG", ContentType: "image/jpeg", Data: png}).
		AddFile(payload.File{Field: "galleryImages", Filename: "g.webp", ContentType: "image/webp", Data: png}).
		AddForm("existingGalleryImages", `["/files/old.png"]`))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(p.Image, ".jpg"))
	require.Len(t, p.GalleryImages, 2)
	assert.Equal(t, "/files/old.png", p.GalleryImages[0])
	assert.True(t, strings.HasSuffix(p.GalleryImages[1], ".webp"))
}

func TestCreateIDsAreUnique(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	doc := map[string]any{"title": "A", "htmlContent": "<p>x</p>", "coverImage": "/files/a.png"}
	a, err := f.svc.Create(context.Background(), jsonPayload(doc))
	require.NoError(t, err)
	b, err := f.svc.Create(context.Background(), jsonPayload(doc))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "prod-1714555800001", b.ID)
	assert.Equal(t, b.ID, f.repo.Load().Posts[0].ID, "newest first")
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := map[string]any{"title": "A", "htmlContent": "<p>x</p>", "coverImage": "https://utfs.io/f/a.png"}
			_, err := f.svc.Create(context.Background(), jsonPayload(doc))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	posts := f.repo.Load().Posts
	require.Len(t, posts, workers)
	seen := map[string]bool{}
	for _, p := range posts {
		assert.False(t, seen[p.ID], "id %s stored twice", p.ID)
		seen[p.ID] = true
	}
	assert.Len(t, f.events.Events, workers)
}

func createBase(t *testing.T, f *fixture) models.Post {
	p, err := f.svc.Create(context.Background(), jsonPayload(map[string]any{
		"title":         "Original",
		"htmlContent":   "<p>original body</p>",
		"coverImage":    "/files/cover.png",
		"galleryImages": []any{"/files/g1.png", "/files/g2.png"},
		"slug":          "original",
		"author":        "press",
	}))
	require.NoError(t, err)
	return p
}

func TestUpdateMergesProvidedFields(t *testing.T) {
	f := newFixture(t)
	base := createBase(t, f)

	got, err := f.svc.Update(context.Background(), base.ID, jsonPayload(map[string]any{
		"title":       "",
		"htmlContent": "<h1>New</h1><p>body</p>",
		"slug":        "",
		"author":      "",
		"status":      "Inactive",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Original", got.Title, "empty title keeps the old one")
	assert.Equal(t, "New body", got.Description)
	assert.Nil(t, got.Slug)
	assert.Equal(t, "admin", got.Author)
	assert.Equal(t, "Inactive", got.Status)
	assert.Equal(t, base.Image, got.Image)
	assert.Equal(t, base.GalleryImages, got.GalleryImages)
	assert.Equal(t, base.CreatedAt, got.CreatedAt)
	assert.Equal(t, base.SharingTime, got.SharingTime)
	assert.NotEmpty(t, got.UpdatedAt)
	assert.Contains(t, f.cache.invalidated, base.ID)
}

func TestUpdateGalleryReplaces(t *testing.T) {
	f := newFixture(t)
	base := createBase(t, f)

	got, err := f.svc.Update(context.Background(), base.ID, payload.New().
		AddForm("existingGalleryImages", `["/files/g2.png"]`).
		AddForm("galleryImageUrls[]", "/files/g3.png").
		AddForm("galleryImageUrls[]", "/files/g2.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/files/g2.png", "/files/g3.png"}, got.GalleryImages)

	got, err = f.svc.Update(context.Background(), base.ID, jsonPayload(map[string]any{"existingGalleryImages": "[]"}))
	require.NoError(t, err)
	assert.Nil(t, got.GalleryImages, "an explicit empty gallery removes it")
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	base := createBase(t, f)
	doc := map[string]any{
		"title":              "Edited",
		"htmlContent":        "<p>edited</p>",
		"category":           "Announcement",
		"existingCoverImage": "/files/other.png",
		"galleryImages":      []any{"/files/g1.png", "/files/g1.png"},
	}

	first, err := f.svc.Update(context.Background(), base.ID, jsonPayload(doc))
	require.NoError(t, err)
	second, err := f.svc.Update(context.Background(), base.ID, jsonPayload(doc))
	require.NoError(t, err)

	first.UpdatedAt, second.UpdatedAt = "", ""
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"/files/g1.png"}, second.GalleryImages)
	assert.Equal(t, "/files/other.png", second.Image)
}

func TestUpdateAndDeleteUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), "nope", jsonPayload(map[string]any{"title": "x"}))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Post not found", apperr.Message(err, ""))

	err = f.svc.Delete(context.Background(), "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Get(context.Background(), "nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteRemovesLocalImages(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.Create(context.Background(), jsonPayload(map[string]any{
		"title":       "A",
		"htmlContent": "<p>x</p>",
		"coverImage":  "data:image/png;base64," + onePixelPNG,
	}))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), p.ID))
	assert.Empty(t, f.repo.Load().Posts)

	entries, _ := os.ReadDir(f.filesDir)
	assert.Empty(t, entries)
	assert.Equal(t, eventbus.PostDeleted, f.events.Events[len(f.events.Events)-1].Type)
}

func TestGetUsesCacheAndSurvivesCacheErrors(t *testing.T) {
	f := newFixture(t)
	base := createBase(t, f)

	_, err := f.svc.Get(context.Background(), base.ID)
	require.NoError(t, err)
	assert.Contains(t, f.cache.posts, base.ID)

	f.cache.getErr = errors.New("redis down")
	got, err := f.svc.Get(context.Background(), base.ID)
	require.NoError(t, err)
	assert.Equal(t, base.ID, got.ID)
}

func TestEventFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.events.Err = errors.New("broker down")

	p := createBase(t, f)
	_, err := f.svc.Get(context.Background(), p.ID)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		createBase(t, f)
	}

	page, err := f.svc.List(context.Background(), repositories.Filter{Page: 2, ItemsPerPage: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Len(t, page.Posts, 5)
}
