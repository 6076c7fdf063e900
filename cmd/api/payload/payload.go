package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"naa-posts/cmd/api/apperr"
)

// File is an uploaded multipart part. Data holds at most the reader limit plus one byte,
// so an oversized upload is still detectable by length.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// Payload is the immutable result of parsing one request body. Form fields and the
// JSON document are kept apart so lookups can prefer the form source.
type Payload struct {
	form  map[string]Value
	json  map[string]Value
	files map[string][]File
}

func New() *Payload {
	return &Payload{
		form:  map[string]Value{},
		json:  map[string]Value{},
		files: map[string][]File{},
	}
}

// AddForm records a form field value under its base name.
func (p *Payload) AddForm(name, value string) *Payload {
	base, indexed := BaseName(name)
	p.form[base] = p.form[base].append(value, indexed)
	return p
}

func (p *Payload) AddFile(f File) *Payload {
	base, _ := BaseName(f.Field)
	f.Field = base
	p.files[base] = append(p.files[base], f)
	return p
}

// SetJSON replaces the JSON source with the decoded object doc.
func (p *Payload) SetJSON(doc map[string]any) *Payload {
	p.json = map[string]Value{}
	for name, raw := range doc {
		base, indexed := BaseName(name)
		v := jsonValue(raw)
		if v.IsAbsent() {
			continue
		}
		if indexed {
			for _, item := range v.items {
				p.json[base] = p.json[base].append(item, true)
			}
			continue
		}
		p.json[base] = v
	}
	return p
}

// Value resolves name against the form fields first, then the JSON body.
func (p *Payload) Value(name string) Value {
	base, _ := BaseName(name)
	if v, ok := p.form[base]; ok && !v.IsAbsent() {
		return v
	}
	if v, ok := p.json[base]; ok {
		return v
	}
	return Value{}
}

// Get returns the last value submitted for name.
func (p *Payload) Get(name string) (string, bool) {
	return p.Value(name).Last()
}

// First returns the value of the first name present, in the given order.
func (p *Payload) First(names ...string) (string, bool) {
	for _, n := range names {
		if s, ok := p.Get(n); ok {
			return s, true
		}
	}
	return "", false
}

func (p *Payload) Has(name string) bool { return !p.Value(name).IsAbsent() }

func (p *Payload) All(name string) []string { return p.Value(name).Items() }

func (p *Payload) Files(name string) []File {
	base, _ := BaseName(name)
	return append([]File(nil), p.files[base]...)
}

// File returns the first file uploaded under name.
func (p *Payload) File(name string) (File, bool) {
	fs := p.Files(name)
	if len(fs) == 0 {
		return File{}, false
	}
	return fs[0], true
}

func jsonValue(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Value{}
	case []any:
		out := Value{kind: List, items: []string{}}
		for _, item := range t {
			if item == nil {
				continue
			}
			out.items = append(out.items, stringify(item))
		}
		return out
	default:
		return ScalarOf(stringify(t))
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// Parse reads the request body once. maxFileBytes bounds how much of each uploaded
// file is kept in memory.
func Parse(r *http.Request, maxFileBytes int64) (*Payload, error) {
	p := New()
	if r.Body == nil || r.Body == http.NoBody {
		return p, nil
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if params["boundary"] == "" {
			return nil, apperr.Validation("Invalid multipart body")
		}
		return p, parseMultipart(p, multipart.NewReader(r.Body, params["boundary"]), maxFileBytes)
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err, "Invalid form body")
		}
		for name, values := range r.PostForm {
			for _, v := range values {
				p.AddForm(name, v)
			}
		}
		return p, nil
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, bodyError(err, "Invalid request body")
		}
		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return p, nil
		}
		// bodies without a JSON content type are only parsed when they look like an object
		if mediaType != "application/json" && trimmed[0] != '{' {
			return p, nil
		}
		doc, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		return p.SetJSON(doc), nil
	}
}

func parseMultipart(p *Payload, mr *multipart.Reader, maxFileBytes int64) error {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return bodyError(err, "Invalid multipart body")
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() != "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFileBytes+1))
			if err != nil {
				return bodyError(err, "Invalid multipart body")
			}
			p.AddFile(File{
				Field:       name,
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return bodyError(err, "Invalid multipart body")
		}
		// a JSON part is the structured body travelling alongside the form fields
		if ct, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type")); ct == "application/json" {
			doc, err := decodeObject(data)
			if err != nil {
				return err
			}
			p.SetJSON(doc)
			continue
		}
		p.AddForm(name, string(data))
	}
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Invalid JSON body", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Wrap(apperr.KindValidation, "Request body too large", err)
	}
	if strings.Contains(err.Error(), "request body too large") {
		return apperr.Wrap(apperr.KindValidation, "Request body too large", err)
	}
	return apperr.Wrap(apperr.KindValidation, msg, err)
}
