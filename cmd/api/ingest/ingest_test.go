package ingest

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/clients/uploadthing"
	"naa-posts/cmd/api/payload"
	"naa-posts/config"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

var filenamePattern = regexp.MustCompile(`^upload-\d+-[0-9a-f]{7}\.[a-z0-9]+$`)

func newLocalIngestor(t *testing.T, max int64) (*Ingestor, string) {
	dir := t.TempDir()
	return New(&LocalBackend{Dir: filepath.Join(dir, "files"), URLPrefix: "/files"}, max), dir
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mime     string
		fallback string
		want     string
	}{
		{"filename wins", "Photo.JPG", "image/png", "bin", "jpg"},
		{"dotfile falls through", ".png", "image/gif", "bin", "gif"},
		{"svg plus suffix", "", "image/svg+xml", "bin", "svg"},
		{"mime params", "", "image/webp; charset=binary", "bin", "webp"},
		{"octet stream", "", "application/octet-stream", "bin", "bin"},
		{"nothing", "", "", "bin", "bin"},
		{"garbage ext", "x.$$", "", "png", "png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.filename, tt.mime, tt.fallback))
		})
	}
}

func TestIngestStringDataURIWritesLocalFile(t *testing.T) {
	in, dir := newLocalIngestor(t, 5<<20)

	url, err := in.IngestString(context.Background(), LabelCover, "data:image/png;base64,"+onePixelPNG)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/files/"))

	name := strings.TrimPrefix(url, "/files/")
	assert.Regexp(t, filenamePattern, name)
	assert.True(t, strings.HasSuffix(name, ".png"))

	written, err := os.ReadFile(filepath.Join(dir, "files", name))
	require.NoError(t, err)
	want, _ := base64.StdEncoding.DecodeString(onePixelPNG)
	assert.Equal(t, want, written)
}

func TestDataURIWithoutSubtypeGetsBinExtension(t *testing.T) {
	in, _ := newLocalIngestor(t, 5<<20)

	url, err := in.IngestString(context.Background(), LabelCover, "data:image/;base64,"+onePixelPNG)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".bin"), url)

	stored, err := in.IngestBase64(context.Background(), LabelUpload, "data:image/;base64,"+onePixelPNG, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Filename, ".bin"), stored.Filename)
}

func TestIngestStringPassThrough(t *testing.T) {
	in, _ := newLocalIngestor(t, 5<<20)

	url, err := in.IngestString(context.Background(), LabelCover, "  https://utfs.io/f/abc  ")
	require.NoError(t, err)
	assert.Equal(t, "https://utfs.io/f/abc", url)
}

func TestIngestStringErrors(t *testing.T) {
	in, _ := newLocalIngestor(t, 5<<20)

	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"missing marker", "data:image/png," + onePixelPNG, "Invalid image data format"},
		{"non image data uri", "data:text/plain;base64,aGk=", "Invalid image data format"},
		{"bad base64", "data:image/png;base64,@@@not-base64@@@", "Image data is not valid base64"},
		{"empty payload", "data:image/png;base64,", "Image data is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.IngestString(context.Background(), LabelCover, tt.input)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err, ""))
		})
	}
}

func TestSizeLimitNamesTheImage(t *testing.T) {
	in, dir := newLocalIngestor(t, 5<<20)
	big := bytes.Repeat([]byte{0xff}, 5<<20+1)

	_, err := in.IngestFile(context.Background(), LabelCover, payload.File{Filename: "big.png", Data: big})
	require.Error(t, err)
	assert.Equal(t, "Cover image size exceeds 5MB limit", apperr.Message(err, ""))

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(big)
	_, err = in.IngestGallery(context.Background(), []string{uri}, nil)
	require.Error(t, err)
	assert.Equal(t, "Gallery image size exceeds 5MB limit", apperr.Message(err, ""))

	_, statErr := os.Stat(filepath.Join(dir, "files"))
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing is written for rejected images")
}

func TestExactlyAtLimitIsAccepted(t *testing.T) {
	in, _ := newLocalIngestor(t, 16)

	stored, err := in.IngestFile(context.Background(), LabelCover, payload.File{Filename: "a.gif", Data: make([]byte, 16)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Filename, ".gif"))
}

func TestIngestBase64Raw(t *testing.T) {
	in, _ := newLocalIngestor(t, 5<<20)

	stored, err := in.IngestBase64(context.Background(), LabelUpload, onePixelPNG, "")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Filename, ".jpg"))
	assert.Equal(t, "/files/"+stored.Filename, stored.URL)

	stored, err = in.IngestBase64(context.Background(), LabelUpload, onePixelPNG, "pic.webp")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(stored.Filename, ".webp"))
}

func TestFilenameUsesClock(t *testing.T) {
	in, _ := newLocalIngestor(t, 5<<20)
	in.now = func() time.Time { return time.UnixMilli(1700000000123) }

	assert.True(t, strings.HasPrefix(in.filename("png"), "upload-1700000000123-"))
}

func TestReadOnlyBackend(t *testing.T) {
	in := New(ReadOnlyBackend{}, 5<<20)

	_, err := in.IngestString(context.Background(), LabelCover, "data:image/png;base64,"+onePixelPNG)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
	assert.Equal(t, "UploadThing API key is not configured", apperr.Message(err, ""))

	// references do not need storage
	url, err := in.IngestString(context.Background(), LabelCover, "https://utfs.io/f/x")
	require.NoError(t, err)
	assert.Equal(t, "https://utfs.io/f/x", url)
}

type fakeUploader struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeUploader) UploadFile(_ context.Context, name, _ string, _ []byte) (uploadthing.UploadedFile, error) {
	if f.err != nil {
		return uploadthing.UploadedFile{}, f.err
	}
	f.uploaded = append(f.uploaded, name)
	return uploadthing.UploadedFile{Key: name, URL: "https://utfs.io/f/" + name}, nil
}

func (f *fakeUploader) DeleteFiles(_ context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func TestRemoteBackend(t *testing.T) {
	up := &fakeUploader{}
	in := New(NewRemoteBackend(up), 5<<20)

	url, err := in.IngestString(context.Background(), LabelCover, "data:image/png;base64,"+onePixelPNG)
	require.NoError(t, err)
	require.Len(t, up.uploaded, 1)
	assert.Equal(t, "https://utfs.io/f/"+up.uploaded[0], url)

	in.Discard(context.Background(), []string{url, "/files/local.png"})
	assert.Equal(t, up.uploaded, up.deleted)
}

func TestRemoteErrorIsSurfaced(t *testing.T) {
	in := New(NewRemoteBackend(&fakeUploader{err: apperr.Upstream("Quota exceeded", nil)}), 5<<20)

	_, err := in.IngestString(context.Background(), LabelCover, "data:image/png;base64,"+onePixelPNG)
	assert.Equal(t, "Quota exceeded", apperr.Message(err, ""))
}

func TestLocalDiscard(t *testing.T) {
	in, dir := newLocalIngestor(t, 5<<20)

	url, err := in.IngestString(context.Background(), LabelCover, "data:image/png;base64,"+onePixelPNG)
	require.NoError(t, err)

	in.Discard(context.Background(), []string{url, "https://utfs.io/f/remote", "/files/../config.yaml"})

	_, statErr := os.Stat(filepath.Join(dir, "files", strings.TrimPrefix(url, "/files/")))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestNormalizeGallery(t *testing.T) {
	tests := []struct {
		name string
		in   payload.Value
		want []string
	}{
		{"absent", payload.Value{}, nil},
		{"single", payload.ScalarOf("/files/a.png"), []string{"/files/a.png"}},
		{"json string", payload.ScalarOf(`["/files/a.png","", "null"]`), []string{"/files/a.png"}},
		{"list with junk", payload.ListOf("undefined", " ", "/files/b.png", "null"), []string{"/files/b.png"}},
		{"empty json", payload.ScalarOf("[]"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeGallery(tt.in))
		})
	}
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]string{"/a", "/b", "/a"}, []string{"", "/b", "/c"})
	assert.Equal(t, []string{"/a", "/b", "/c"}, got)
	assert.Nil(t, Dedupe(nil, []string{""}))
}

func TestNewBackendSelection(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "local", NewBackend(cfg, nil).Name())

	cfg.Storage.ReadOnly = true
	assert.Equal(t, "read-only", NewBackend(cfg, nil).Name())

	cfg.Upload.APIKey = "sk"
	assert.Equal(t, "uploadthing", NewBackend(cfg, uploadthing.FromConfig(cfg.Upload)).Name())
}
