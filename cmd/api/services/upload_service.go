package services

import (
	"context"
	"io"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/ingest"
	"naa-posts/cmd/api/payload"
	"naa-posts/cmd/api/trace"
	"naa-posts/cmd/internal/logger"
)

// Proxier forwards a raw multipart upload to the remote file store.
type Proxier interface {
	Proxy(ctx context.Context, contentType string, body io.Reader) (int, []byte, error)
}

type UploadService struct {
	ingestor *ingest.Ingestor
	proxy    Proxier
}

// NewUploadService accepts a nil proxy when no remote store is configured.
func NewUploadService(ingestor *ingest.Ingestor, proxy Proxier) *UploadService {
	return &UploadService{ingestor: ingestor, proxy: proxy}
}

// Upload stores a single image sent as multipart field file/image, or as a data URI
// or bare base64 string in the same fields.
func (s *UploadService) Upload(ctx context.Context, in *payload.Payload) (ingest.Stored, error) {
	var (
		stored ingest.Stored
		err    error
	)
	if f, ok := in.File("file"); ok {
		stored, err = s.ingestor.IngestFile(ctx, ingest.LabelUpload, f)
	} else if f, ok := in.File("image"); ok {
		stored, err = s.ingestor.IngestFile(ctx, ingest.LabelUpload, f)
	} else if raw := firstTrimmed(in, "file", "image"); raw != "" {
		name := firstTrimmed(in, "filename", "name")
		stored, err = s.ingestor.IngestBase64(ctx, ingest.LabelUpload, raw, name)
	} else {
		return ingest.Stored{}, apperr.Validation("No file provided")
	}
	if err != nil {
		return ingest.Stored{}, err
	}

	fields := logger.Fields(trace.Fields(ctx))
	fields["url"] = stored.URL
	fields["backend"] = s.ingestor.BackendName()
	logger.InfoWithFields("file uploaded", fields)
	return stored, nil
}

// Proxy relays a client-encoded multipart body to UploadThing unchanged.
func (s *UploadService) Proxy(ctx context.Context, contentType string, body io.Reader) (int, []byte, error) {
	if s.proxy == nil {
		return 0, nil, apperr.Config("UploadThing API key is not configured")
	}
	return s.proxy.Proxy(ctx, contentType, body)
}

func firstTrimmed(in *payload.Payload, names ...string) string {
	for _, n := range names {
		if v := trimmed(in, n); v != "" {
			return v
		}
	}
	return ""
}
