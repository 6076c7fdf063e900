package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/cache"
	"naa-posts/cmd/api/ingest"
	"naa-posts/cmd/api/payload"
	"naa-posts/cmd/api/repositories"
	"naa-posts/cmd/api/trace"
	"naa-posts/cmd/internal/eventbus"
	"naa-posts/cmd/internal/logger"
	"naa-posts/models"
)

const (
	msgPostNotFound = "Post not found"
	msgSaveFailed   = "Failed to save post"

	maxIDAttempts = 1000
)

// PostOptions carries the configurable post rules.
type PostOptions struct {
	// Empty lists accept any value.
	Statuses        []string
	PublishStatuses []string
	Location        *time.Location
	Topic           eventbus.Topic
	PublishTimeout  time.Duration
}

// PostService assembles posts from request payloads and persists them.
type PostService struct {
	repo     repositories.PostRepository
	ingestor *ingest.Ingestor
	cache    cache.PostCache
	events   eventbus.Publisher
	opts     PostOptions
	now      func() time.Time
}

func NewPostService(repo repositories.PostRepository, ingestor *ingest.Ingestor, c cache.PostCache, events eventbus.Publisher, opts PostOptions) *PostService {
	if c == nil {
		c = cache.NopCache{}
	}
	if events == nil {
		events = eventbus.NopPublisher{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	return &PostService{
		repo:     repo,
		ingestor: ingestor,
		cache:    c,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

func (s *PostService) List(ctx context.Context, f repositories.Filter) (repositories.Page, error) {
	page, err := s.repo.List(ctx, f)
	if err != nil {
		return repositories.Page{}, apperr.Persistence("Failed to load posts", err)
	}
	return page, nil
}

// Get 캐시를 거쳐 포스트 조회
func (s *PostService) Get(ctx context.Context, id string) (models.Post, error) {
	if cached, err := s.cache.GetPost(ctx, id); err != nil {
		s.logCacheError(ctx, "get", id, err)
	} else if cached != nil {
		return *cached, nil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.Post{}, s.repoError(err, "Failed to load post")
	}
	if err := s.cache.SetPost(ctx, p); err != nil {
		s.logCacheError(ctx, "set", id, err)
	}
	return p, nil
}

// Create builds a new post. Title and htmlContent are checked before any image is stored.
func (s *PostService) Create(ctx context.Context, in *payload.Payload) (models.Post, error) {
	title := trimmed(in, "title")
	if title == "" {
		return models.Post{}, apperr.Validation("Title is required")
	}
	content, _ := in.Get("htmlContent")
	if strings.TrimSpace(content) == "" {
		return models.Post{}, apperr.Validation("htmlContent is required")
	}
	language := orDefault(trimmed(in, "language"), DefaultLanguage)
	status, err := s.enumField(in, "status", DefaultStatus, s.opts.Statuses)
	if err != nil {
		return models.Post{}, err
	}
	publishStatus, err := s.enumField(in, "publishStatus", DefaultPublishStatus, s.opts.PublishStatuses)
	if err != nil {
		return models.Post{}, err
	}

	var stored []string
	cover, err := s.resolveCover(ctx, in, &stored)
	if err != nil {
		return models.Post{}, err
	}
	if cover == "" {
		return models.Post{}, apperr.Validation("Cover image is required")
	}
	gallery, _, err := s.resolveGallery(ctx, in, &stored)
	if err != nil {
		s.ingestor.Discard(ctx, stored)
		return models.Post{}, err
	}

	now := s.now()
	category, _ := in.First("category", "type")

	p := models.Post{
		Title:         title,
		Slug:          slugOf(in),
		Type:          models.NormalizeCategory(category),
		Image:         cover,
		GalleryImages: gallery,
		HTMLContent:   content,
		Description:   DeriveDescription(content),
		Language:      language,
		Status:        status,
		PublishStatus: publishStatus,
		Author:        orDefault(trimmed(in, "author"), DefaultAuthor),
		CreatedAt:     FormatCreatedAt(now),
		SharingTime:   SharingTime(now, s.opts.Location),
		SharingHour:   SharingHour(now, s.opts.Location),
	}

	if err := s.insert(ctx, &p, now); err != nil {
		s.ingestor.Discard(ctx, stored)
		return models.Post{}, err
	}

	logger.InfoWithFields("post created", s.fields(ctx, p.ID, logger.Fields{"images": len(p.Images())}))
	s.publish(ctx, eventbus.PostCreated, p)
	return p, nil
}

// Update merges the provided fields into the stored post. Absent fields keep their
// value, and a gallery input of any kind replaces the gallery.
func (s *PostService) Update(ctx context.Context, id string, in *payload.Payload) (models.Post, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.Post{}, s.repoError(err, "Failed to load post")
	}
	next := existing.Clone()

	if title := trimmed(in, "title"); title != "" {
		next.Title = title
	}
	if content, ok := in.Get("htmlContent"); ok && strings.TrimSpace(content) != "" {
		next.HTMLContent = content
		next.Description = DeriveDescription(content)
	}
	if category, ok := in.First("category", "type"); ok {
		next.Type = models.NormalizeCategory(category)
	}
	if in.Has("slug") {
		next.Slug = slugOf(in)
	}
	if in.Has("language") {
		next.Language = orDefault(trimmed(in, "language"), DefaultLanguage)
	}
	if in.Has("author") {
		next.Author = orDefault(trimmed(in, "author"), DefaultAuthor)
	}
	if in.Has("status") {
		if next.Status, err = s.enumField(in, "status", DefaultStatus, s.opts.Statuses); err != nil {
			return models.Post{}, err
		}
	}
	if in.Has("publishStatus") {
		if next.PublishStatus, err = s.enumField(in, "publishStatus", DefaultPublishStatus, s.opts.PublishStatuses); err != nil {
			return models.Post{}, err
		}
	}

	var stored []string
	cover, err := s.resolveCover(ctx, in, &stored)
	if err != nil {
		return models.Post{}, err
	}
	if cover != "" {
		next.Image = cover
	}
	gallery, touched, err := s.resolveGallery(ctx, in, &stored)
	if err != nil {
		s.ingestor.Discard(ctx, stored)
		return models.Post{}, err
	}
	if touched {
		next.GalleryImages = gallery
	}
	next.UpdatedAt = FormatCreatedAt(s.now())

	if err := s.repo.Replace(ctx, next); err != nil {
		s.ingestor.Discard(ctx, stored)
		return models.Post{}, s.repoError(err, msgSaveFailed)
	}
	if err := s.cache.InvalidatePost(ctx, id); err != nil {
		s.logCacheError(ctx, "invalidate", id, err)
	}

	logger.InfoWithFields("post updated", s.fields(ctx, id, nil))
	s.publish(ctx, eventbus.PostUpdated, next)
	return next, nil
}

// Delete 포스트를 삭제한 뒤 이미지 삭제를 시도한다. 이미지 삭제 실패는 무시.
func (s *PostService) Delete(ctx context.Context, id string) error {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.repoError(err, msgSaveFailed)
	}
	if err := s.cache.InvalidatePost(ctx, id); err != nil {
		s.logCacheError(ctx, "invalidate", id, err)
	}
	s.ingestor.Discard(ctx, removed.Images())

	logger.InfoWithFields("post deleted", s.fields(ctx, id, nil))
	s.publish(ctx, eventbus.PostDeleted, removed)
	return nil
}

// resolveCover ingests coverImage (file or string) or falls back to a referenced URL.
// It returns "" when the request carries no cover at all.
func (s *PostService) resolveCover(ctx context.Context, in *payload.Payload, stored *[]string) (string, error) {
	if f, ok := in.File("coverImage"); ok {
		res, err := s.ingestor.IngestFile(ctx, ingest.LabelCover, f)
		if err != nil {
			return "", err
		}
		*stored = append(*stored, res.URL)
		return res.URL, nil
	}
	if raw := trimmed(in, "coverImage"); raw != "" {
		u, err := s.ingestor.IngestString(ctx, ingest.LabelCover, raw)
		if err != nil {
			return "", err
		}
		if ingest.IsDataURI(raw) {
			*stored = append(*stored, u)
		}
		return u, nil
	}
	for _, name := range []string{"existingCoverImage", "coverImageUrl", "image"} {
		if ref := trimmed(in, name); ref != "" {
			return s.ingestor.IngestString(ctx, ingest.LabelCover, ref)
		}
	}
	return "", nil
}

// resolveGallery merges referenced gallery URLs with newly ingested entries. touched
// reports whether the request said anything about the gallery.
func (s *PostService) resolveGallery(ctx context.Context, in *payload.Payload, stored *[]string) ([]string, bool, error) {
	files := in.Files("galleryImages")
	touched := len(files) > 0
	for _, name := range []string{"galleryImages", "existingGalleryImages", "galleryImageUrls"} {
		touched = touched || in.Has(name)
	}
	if !touched {
		return nil, false, nil
	}

	refs := ingest.NormalizeGallery(in.Value("galleryImages"))
	ingested, err := s.ingestor.IngestGallery(ctx, refs, files)
	if err != nil {
		return nil, true, err
	}
	for i, ref := range refs {
		if ingest.IsDataURI(ref) {
			*stored = append(*stored, ingested[i])
		}
	}
	*stored = append(*stored, ingested[len(refs):]...)

	existing := append(
		ingest.NormalizeGallery(in.Value("existingGalleryImages")),
		ingest.NormalizeGallery(in.Value("galleryImageUrls"))...,
	)
	return ingest.Dedupe(existing, ingested), true, nil
}

func (s *PostService) enumField(in *payload.Payload, name, def string, allowed []string) (string, error) {
	v := orDefault(trimmed(in, name), def)
	if len(allowed) > 0 && !contains(allowed, v) {
		return "", apperr.Validationf("Invalid %s: %s (allowed: %s)", name, v, strings.Join(allowed, ", "))
	}
	return v, nil
}

// insert stores p as prod-<epoch-ms>, stepping forward a millisecond while the id is
// taken. The repository rejects a taken id atomically, so concurrent creates that pick
// the same id retry with the next one.
func (s *PostService) insert(ctx context.Context, p *models.Post, now time.Time) error {
	ms := now.UnixMilli()
	for i := 0; i < maxIDAttempts; i++ {
		p.ID = fmt.Sprintf("prod-%d", ms+int64(i))
		exists, err := s.repo.Exists(ctx, p.ID)
		if err != nil {
			return apperr.Persistence(msgSaveFailed, err)
		}
		if exists {
			continue
		}
		err = s.repo.Insert(ctx, *p)
		if errors.Is(err, repositories.ErrDuplicateID) {
			continue
		}
		if err != nil {
			return apperr.Persistence(msgSaveFailed, err)
		}
		return nil
	}
	return apperr.Persistence(msgSaveFailed, errors.New("no free post id"))
}

func (s *PostService) repoError(err error, msg string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound(msgPostNotFound)
	}
	return apperr.Persistence(msg, err)
}

func (s *PostService) publish(ctx context.Context, eventType string, p models.Post) {
	evt, err := eventbus.NewJSONEvent("", eventType, eventbus.PostEventPayload{
		PostID:        p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Type:          p.Type,
		Status:        p.Status,
		PublishStatus: p.PublishStatus,
		Language:      p.Language,
		Images:        p.Images(),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
	if err == nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PublishTimeout)
		defer cancel()
		err = s.events.Publish(pctx, s.opts.Topic.Base(), evt)
	}
	if err != nil {
		logger.ErrorWithFields("post event publish failed", s.fields(ctx, p.ID, logger.Fields{
			"event_type": eventType,
			"error":      err.Error(),
		}))
	}
}

func (s *PostService) logCacheError(ctx context.Context, op, id string, err error) {
	logger.WarnWithFields("post cache "+op+" failed", s.fields(ctx, id, logger.Fields{"error": err.Error()}))
}

func (s *PostService) fields(ctx context.Context, id string, extra logger.Fields) logger.Fields {
	f := logger.Fields(trace.Fields(ctx))
	f["post_id"] = id
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func trimmed(in *payload.Payload, name string) string {
	v, _ := in.Get(name)
	return strings.TrimSpace(v)
}

func slugOf(in *payload.Payload) *string {
	slug := trimmed(in, "slug")
	if slug == "" {
		return nil
	}
	return &slug
}
