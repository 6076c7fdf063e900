package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"naa-posts/cmd/internal/logger"
	"naa-posts/models"
)

// FileRepository keeps the whole collection in one JSON document. Every call loads
// the file, and writes replace it through a temp file and rename.
type FileRepository struct {
	path string
	seed string
	mu   sync.Mutex
}

// NewFileRepository reads from seed until path exists; writes always go to path.
func NewFileRepository(path, seed string) *FileRepository {
	return &FileRepository{path: path, seed: seed}
}

func (r *FileRepository) Path() string { return r.path }

// Load returns the stored collection. A missing or unreadable file yields an empty one.
func (r *FileRepository) Load() models.Collection {
	for _, p := range []string{r.path, r.seed} {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.ErrorWithFields("posts file unreadable", logger.Fields{"path": p, "error": err.Error()})
			return models.Collection{Posts: []models.Post{}}
		}
		c, err := decodeCollection(data)
		if err != nil {
			logger.ErrorWithFields("posts file malformed", logger.Fields{"path": p, "error": err.Error()})
			return models.Collection{Posts: []models.Post{}}
		}
		return c
	}
	return models.Collection{Posts: []models.Post{}}
}

// decodeCollection accepts {"posts": [...], "total": n} and a bare array of posts.
func decodeCollection(data []byte) (models.Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return models.Collection{Posts: []models.Post{}}, nil
	}
	var c models.Collection
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &c.Posts); err != nil {
			return models.Collection{}, err
		}
	} else if err := json.Unmarshal(trimmed, &c); err != nil {
		return models.Collection{}, err
	}
	if c.Posts == nil {
		c.Posts = []models.Post{}
	}
	c.Total = len(c.Posts)
	return c, nil
}

// Save overwrites the data file with c, recomputing total.
func (r *FileRepository) Save(c models.Collection) error {
	if c.Posts == nil {
		c.Posts = []models.Post{}
	}
	c.Total = len(c.Posts)

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func (r *FileRepository) List(_ context.Context, f Filter) (Page, error) {
	return Query(r.Load().Posts, f), nil
}

func (r *FileRepository) FindByID(_ context.Context, id string) (models.Post, error) {
	for _, p := range r.Load().Posts {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Post{}, ErrNotFound
}

func (r *FileRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *FileRepository) Insert(_ context.Context, p models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.Load()
	for _, existing := range c.Posts {
		if existing.ID == p.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
	}
	c.Posts = append([]models.Post{p}, c.Posts...)
	return r.Save(c)
}

func (r *FileRepository) Replace(_ context.Context, p models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.Load()
	for i := range c.Posts {
		if c.Posts[i].ID == p.ID {
			c.Posts[i] = p
			return r.Save(c)
		}
	}
	return ErrNotFound
}

func (r *FileRepository) Delete(_ context.Context, id string) (models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.Load()
	for i, p := range c.Posts {
		if p.ID == id {
			c.Posts = append(c.Posts[:i:i], c.Posts[i+1:]...)
			if err := r.Save(c); err != nil {
				return models.Post{}, err
			}
			return p, nil
		}
	}
	return models.Post{}, ErrNotFound
}

// Ping reports whether the data file's directory is usable.
func (r *FileRepository) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(r.path))
	return err
}
