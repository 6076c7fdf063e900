package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/payload"
	"naa-posts/cmd/internal/logger"
)

const (
	LabelCover   = "Cover image"
	LabelGallery = "Gallery image"
	LabelUpload  = "Image"

	dataURIPrefix = "data:image/"
	base64Marker  = ";base64,"
)

// Stored describes a persisted image.
type Stored struct {
	URL      string
	Filename string
}

// Ingestor turns uploaded files, data URIs and URL references into stored image URLs.
type Ingestor struct {
	backend  Backend
	maxBytes int64
	now      func() time.Time
}

func New(backend Backend, maxBytes int64) *Ingestor {
	return &Ingestor{backend: backend, maxBytes: maxBytes, now: time.Now}
}

func (in *Ingestor) MaxBytes() int64 { return in.maxBytes }

func (in *Ingestor) BackendName() string { return in.backend.Name() }

// IngestFile stores an uploaded multipart file. label names the image in size errors.
func (in *Ingestor) IngestFile(ctx context.Context, label string, f payload.File) (Stored, error) {
	if len(f.Data) == 0 {
		return Stored{}, apperr.Validationf("%s is empty", label)
	}
	ext := Extension(f.Filename, f.ContentType, "bin")
	return in.store(ctx, label, f.Data, contentTypeOr(f.ContentType, ext), ext)
}

// IngestString stores a data URI, or passes any other non-empty string through as an
// already stored URL.
func (in *Ingestor) IngestString(ctx context.Context, label, s string) (string, error) {
	s = strings.TrimSpace(s)
	if !IsDataURI(s) {
		if strings.HasPrefix(strings.ToLower(s), "data:") {
			return "", apperr.Validation("Invalid image data format")
		}
		return s, nil
	}
	data, mimeType, err := DecodeDataURI(s)
	if err != nil {
		return "", err
	}
	stored, err := in.store(ctx, label, data, mimeType, Extension("", mimeType, "bin"))
	if err != nil {
		return "", err
	}
	return stored.URL, nil
}

// IngestBase64 stores a data URI or a bare base64 payload. The extension of a bare
// payload comes from filename, defaulting to jpg.
func (in *Ingestor) IngestBase64(ctx context.Context, label, s, filename string) (Stored, error) {
	s = strings.TrimSpace(s)
	if IsDataURI(s) {
		data, mimeType, err := DecodeDataURI(s)
		if err != nil {
			return Stored{}, err
		}
		return in.store(ctx, label, data, mimeType, Extension(filename, mimeType, "bin"))
	}
	data, err := decodeBase64(s)
	if err != nil {
		return Stored{}, err
	}
	ext := Extension(filename, "", "jpg")
	return in.store(ctx, label, data, contentTypeOr("", ext), ext)
}

// IngestGallery runs every reference and then every uploaded file through ingestion,
// sequentially and in submission order.
func (in *Ingestor) IngestGallery(ctx context.Context, refs []string, files []payload.File) ([]string, error) {
	out := make([]string, 0, len(refs)+len(files))
	for _, ref := range refs {
		u, err := in.IngestString(ctx, LabelGallery, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	for _, f := range files {
		stored, err := in.IngestFile(ctx, LabelGallery, f)
		if err != nil {
			return nil, err
		}
		out = append(out, stored.URL)
	}
	return out, nil
}

// Discard removes previously stored images on a best-effort basis.
func (in *Ingestor) Discard(ctx context.Context, urls []string) {
	r, ok := in.backend.(Remover)
	if !ok || len(urls) == 0 {
		return
	}
	if err := r.Remove(ctx, urls); err != nil {
		logger.ErrorWithFields("image cleanup failed", logger.Fields{
			"backend": in.backend.Name(),
			"urls":    urls,
			"error":   err.Error(),
		})
	}
}

func (in *Ingestor) store(ctx context.Context, label string, data []byte, contentType, ext string) (Stored, error) {
	if len(data) == 0 {
		return Stored{}, apperr.Validation("Image data is empty")
	}
	if in.maxBytes > 0 && int64(len(data)) > in.maxBytes {
		return Stored{}, apperr.Validationf("%s size exceeds %s limit", label, formatLimit(in.maxBytes))
	}
	name := in.filename(ext)
	url, err := in.backend.Put(ctx, name, contentType, data)
	if err != nil {
		return Stored{}, err
	}
	logger.DebugWithFields("image stored", logger.Fields{
		"backend":  in.backend.Name(),
		"filename": name,
		"bytes":    len(data),
	})
	return Stored{URL: url, Filename: name}, nil
}

// filename builds upload-<epoch-ms>-<7 random chars>.<ext>.
func (in *Ingestor) filename(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return fmt.Sprintf("upload-%d-%s.%s", in.now().UnixMilli(), suffix, ext)
}

func formatLimit(n int64) string {
	if n%(1<<20) == 0 {
		return strconv.FormatInt(n>>20, 10) + "MB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

func IsDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), dataURIPrefix)
}

// DecodeDataURI splits data:image/<type>;base64,<payload> and decodes the payload.
func DecodeDataURI(s string) ([]byte, string, error) {
	idx := strings.Index(s, base64Marker)
	if !IsDataURI(s) || idx < 0 {
		return nil, "", apperr.Validation("Invalid image data format")
	}
	mimeType := s[len("data:"):idx]
	if semi := strings.IndexByte(mimeType, ';'); semi >= 0 {
		mimeType = mimeType[:semi]
	}
	data, err := decodeBase64(s[idx+len(base64Marker):])
	if err != nil {
		return nil, "", err
	}
	return data, strings.ToLower(mimeType), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, apperr.Validation("Image data is empty")
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			if len(data) == 0 {
				return nil, apperr.Validation("Image data is empty")
			}
			return data, nil
		}
	}
	return nil, apperr.Validation("Image data is not valid base64")
}

// Extension derives a file extension from the original filename, then the MIME
// subtype with any "+suffix" dropped, then fallback.
func Extension(filename, mimeType, fallback string) string {
	if ext := filepath.Ext(filename); ext != "" && ext != filename {
		if clean := sanitizeExt(ext[1:]); clean != "" {
			return clean
		}
	}
	if mimeType != "" {
		mt, _, err := mime.ParseMediaType(mimeType)
		if err != nil {
			mt = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
		}
		if _, sub, ok := strings.Cut(mt, "/"); ok && sub != "octet-stream" {
			sub, _, _ = strings.Cut(sub, "+")
			if clean := sanitizeExt(sub); clean != "" {
				return clean
			}
		}
	}
	return fallback
}

func sanitizeExt(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func contentTypeOr(contentType, ext string) string {
	if contentType != "" {
		return contentType
	}
	if t := mime.TypeByExtension("." + ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// NormalizeGallery flattens a gallery value into non-empty entries. Entries may be
// URLs, data URIs or JSON-encoded arrays of either; "undefined" and "null" are dropped.
func NormalizeGallery(v payload.Value) []string {
	var out []string
	for _, item := range v.Items() {
		out = appendGalleryEntry(out, item)
	}
	return out
}

func appendGalleryEntry(out []string, item string) []string {
	item = strings.TrimSpace(item)
	switch item {
	case "", "undefined", "null":
		return out
	}
	if strings.HasPrefix(item, "[") {
		var arr []any
		if err := json.Unmarshal([]byte(item), &arr); err == nil {
			for _, e := range arr {
				if s, ok := e.(string); ok {
					out = appendGalleryEntry(out, s)
				}
			}
			return out
		}
	}
	return append(out, item)
}

// Dedupe concatenates lists, dropping empty strings and repeats while keeping order.
func Dedupe(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if s == "" {
				continue
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
