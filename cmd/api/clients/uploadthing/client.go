package uploadthing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"naa-posts/cmd/api/apperr"
	"naa-posts/cmd/api/httpclient"
	"naa-posts/config"
)

const (
	uploadPath = "/api/uploadFiles"
	deletePath = "/api/deleteFiles"
)

// ErrNoURL is returned when the upload succeeded but no file URL came back.
var ErrNoURL = errors.New("uploadthing: response carried no file url")

type Config struct {
	BaseURL string
	APIKey  string
	AppID   string
	Version string
	// Route is the file route the files are attributed to on the UploadThing dashboard.
	Route   string
	Timeout time.Duration
}

// Client talks to the UploadThing REST API with the server-side API key.
type Client struct {
	base *httpclient.BaseClient
	cfg  Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://uploadthing.com"
	}
	if cfg.Version == "" {
		cfg.Version = "6"
	}
	return &Client{
		base: httpclient.NewBaseClientWithClient(httpclient.New(httpclient.Config{Timeout: cfg.Timeout}), cfg.BaseURL),
		cfg:  cfg,
	}
}

// FromConfig returns nil when no API key is configured.
func FromConfig(cfg config.UploadConfig) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	return New(Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		AppID:   cfg.AppID,
		Version: cfg.Version,
		Route:   cfg.Route,
		Timeout: cfg.Timeout,
	})
}

type UploadedFile struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

type fileResult struct {
	UploadedFile
	Data  *UploadedFile   `json:"data"`
	Error json.RawMessage `json:"error"`
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Uploadthing-Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Uploadthing-App-Id", c.cfg.AppID)
	req.Header.Set("X-Uploadthing-Version", c.cfg.Version)
}

// UploadFile sends one file and returns where UploadThing stored it.
func (c *Client) UploadFile(ctx context.Context, name, contentType string, data []byte) (UploadedFile, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	fw, err := w.CreatePart(h)
	if err != nil {
		return UploadedFile{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return UploadedFile{}, err
	}
	if c.cfg.Route != "" {
		if err := w.WriteField("route", c.cfg.Route); err != nil {
			return UploadedFile{}, err
		}
	}
	if err := w.Close(); err != nil {
		return UploadedFile{}, err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, uploadPath, nil, &buf)
	if err != nil {
		return UploadedFile{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.setHeaders(req)

	resp, err := c.base.Do(req)
	if err != nil {
		return UploadedFile{}, apperr.Upstream("UploadThing request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return UploadedFile{}, apperr.Upstream("UploadThing request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UploadedFile{}, upstreamError(resp.StatusCode, body)
	}

	results, err := decodeResults(body)
	if err != nil {
		return UploadedFile{}, apperr.Upstream("UploadThing returned an unreadable response", err)
	}
	for _, r := range results {
		if msg := errorMessage(r.Error); msg != "" {
			return UploadedFile{}, apperr.Upstream(msg, nil)
		}
		f := r.UploadedFile
		if r.Data != nil {
			f = *r.Data
		}
		if f.URL != "" {
			return f, nil
		}
	}
	return UploadedFile{}, apperr.Upstream("UploadThing returned no file URL", ErrNoURL)
}

// decodeResults accepts a bare array, {"files": [...]} or {"data": [...]}.
func decodeResults(body []byte) ([]fileResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []fileResult
		err := json.Unmarshal(trimmed, &arr)
		return arr, err
	}
	var wrapped struct {
		Files []fileResult `json:"files"`
		Data  []fileResult `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Files) > 0 {
		return wrapped.Files, nil
	}
	return wrapped.Data, nil
}

// errorMessage reads an error given either as a string or as {"message": "..."}.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Code
	}
	return ""
}

func upstreamError(status int, body []byte) error {
	var obj struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		if msg := errorMessage(obj.Error); msg != "" {
			return apperr.Upstream(msg, fmt.Errorf("uploadthing status %d", status))
		}
		if obj.Message != "" {
			return apperr.Upstream(obj.Message, fmt.Errorf("uploadthing status %d", status))
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return apperr.Upstream(fmt.Sprintf("UploadThing error: %s", text), fmt.Errorf("uploadthing status %d", status))
}

// DeleteFiles removes files by key.
func (c *Client) DeleteFiles(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	buf, err := json.Marshal(struct {
		FileKeys []string `json:"fileKeys"`
	}{FileKeys: keys})
	if err != nil {
		return err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, deletePath, nil, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.base.Do(req)
	if err != nil {
		return apperr.Upstream("UploadThing request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return upstreamError(resp.StatusCode, b)
	}
	return nil
}

// Proxy forwards an already-encoded multipart body and returns the raw upstream reply.
func (c *Client) Proxy(ctx context.Context, contentType string, body io.Reader) (int, []byte, error) {
	req, err := c.base.NewRequest(ctx, http.MethodPost, uploadPath, nil, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	c.setHeaders(req)

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, nil, apperr.Upstream("UploadThing request failed", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, apperr.Upstream("UploadThing request failed", err)
	}
	return resp.StatusCode, b, nil
}

// KeyFromURL extracts the file key from an UploadThing file URL such as
// https://utfs.io/f/<key> or https://<app>.ufs.sh/f/<key>.
func KeyFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "utfs.io" && !strings.HasSuffix(host, ".ufs.sh") && !strings.HasSuffix(host, "uploadthing.com") {
		return "", false
	}
	idx := strings.Index(u.Path, "/f/")
	if idx < 0 {
		return "", false
	}
	key := strings.Trim(u.Path[idx+len("/f/"):], "/")
	if key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
