package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// BodySource produces fresh readers over the same request body.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
	ContentType() string
}

// Inline serves data from memory.
func Inline(data []byte, contentType string) BodySource {
	return &inlineBodySource{data: data, contentType: contentType}
}

// Form serves url-encoded form values.
func Form(values url.Values) BodySource {
	return Inline([]byte(values.Encode()), "application/x-www-form-urlencoded")
}

// File serves the contents of path, reopened for every reader.
func File(path string) (BodySource, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("body file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("body file %q is a directory", path)
	}
	return &fileBodySource{path: path, size: info.Size()}, nil
}

// Multipart wraps content as a single file part named field, the way browsers upload files.
func Multipart(field, filename string, content BodySource) (BodySource, error) {
	r, err := content.NewReader()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy %s: %w", filename, err)
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return Inline(buf.Bytes(), w.FormDataContentType()), nil
}

type inlineBodySource struct {
	data        []byte
	contentType string
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

func (s *inlineBodySource) ContentType() string {
	return s.contentType
}

type fileBodySource struct {
	path string
	size int64
}

func (s *fileBodySource) NewReader() (io.ReadCloser, error) {
	return os.Open(s.path)
}

func (s *fileBodySource) ContentLength() (int64, bool) {
	return s.size, true
}

func (s *fileBodySource) ContentType() string {
	return "application/octet-stream"
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}

func (emptyBodySource) ContentType() string {
	return ""
}
