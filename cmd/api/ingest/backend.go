package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/clients/uploadthing"
	"naa-posts/config"
)

// Backend persists an image and returns the URL it is served from.
type Backend interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Name() string
}

// Remover is implemented by backends that can delete what they stored.
// URLs they do not own are ignored.
type Remover interface {
	Remove(ctx context.Context, urls []string) error
}

// NewBackend picks the storage strategy once at startup: UploadThing when a remote
// client is configured, otherwise local disk, or a failing backend on read-only hosts.
func NewBackend(cfg config.AppConfig, remote *uploadthing.Client) Backend {
	if remote != nil {
		return NewRemoteBackend(remote)
	}
	if cfg.Storage.ReadOnly {
		return ReadOnlyBackend{}
	}
	return &LocalBackend{Dir: cfg.Storage.FilesDir, URLPrefix: cfg.Storage.FilesURLPrefix}
}

// LocalBackend writes files into Dir and serves them under URLPrefix.
type LocalBackend struct {
	Dir       string
	URLPrefix string
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", apperr.Persistence("Failed to store image", err)
	}
	if err := os.WriteFile(filepath.Join(b.Dir, name), data, 0o644); err != nil {
		return "", apperr.Persistence("Failed to store image", err)
	}
	return b.prefix() + "/" + name, nil
}

func (b *LocalBackend) Remove(_ context.Context, urls []string) error {
	var errs []error
	for _, u := range urls {
		name, ok := b.owned(u)
		if !ok {
			continue
		}
		if err := os.Remove(filepath.Join(b.Dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// owned returns the file name for URLs under URLPrefix. Nested paths are rejected.
func (b *LocalBackend) owned(u string) (string, bool) {
	p := b.prefix() + "/"
	if !strings.HasPrefix(u, p) {
		return "", false
	}
	name := strings.TrimPrefix(u, p)
	if name == "" || name != path.Base(name) || name == ".." {
		return "", false
	}
	return name, true
}

func (b *LocalBackend) prefix() string {
	p := strings.TrimSuffix(b.URLPrefix, "/")
	if p != "" && !strings.HasPrefix(p, "/") && !strings.Contains(p, "://") {
		p = "/" + p
	}
	return p
}

// ReadOnlyBackend is used on hosts without writable disk and without remote credentials.
type ReadOnlyBackend struct{}

func (ReadOnlyBackend) Name() string { return "read-only" }

func (ReadOnlyBackend) Put(context.Context, string, string, []byte) (string, error) {
	return "", apperr.Config("UploadThing API key is not configured")
}

type uploader interface {
	UploadFile(ctx context.Context, name, contentType string, data []byte) (uploadthing.UploadedFile, error)
	DeleteFiles(ctx context.Context, keys []string) error
}

// RemoteBackend stores images at UploadThing.
type RemoteBackend struct {
	client uploader
}

func NewRemoteBackend(client uploader) *RemoteBackend {
	return &RemoteBackend{client: client}
}

func (b *RemoteBackend) Name() string { return "uploadthing" }

func (b *RemoteBackend) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	f, err := b.client.UploadFile(ctx, name, contentType, data)
	if err != nil {
		return "", err
	}
	return f.URL, nil
}

func (b *RemoteBackend) Remove(ctx context.Context, urls []string) error {
	var keys []string
	for _, u := range urls {
		if key, ok := uploadthing.KeyFromURL(u); ok {
			keys = append(keys, key)
		}
	}
	return b.client.DeleteFiles(ctx, keys)
}
