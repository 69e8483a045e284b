package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBatch is the largest number of files one multi upload accepts
const MaxUploadBatch = 20

// UploadResult describes one stored file. URL is the original upload,
// CompressedURL the re-encoded copy when Compressed is set.
type UploadResult struct {
	Success       bool   `json:"success"`
	Compressed    bool   `json:"compressed"`
	URL           string `json:"url"`
	CompressedURL string `json:"compressed_url"`
	Filename      string `json:"filename,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Location returns the URL a document should reference
func (r UploadResult) Location() string {
	if r.Compressed && r.CompressedURL != "" {
		return r.CompressedURL
	}
	return r.URL
}

// MultiUploadResult is the response of a batch upload
type MultiUploadResult struct {
	Success bool           `json:"success"`
	Results []UploadResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// FileService talks to the file endpoints
type FileService struct {
	c *Client
}

// UploadSingle uploads one file
func (s *FileService) UploadSingle(ctx context.Context, path string) (*UploadResult, error) {
	body, contentType, err := multipartBody("file", []string{path})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filepath.Base(path), err)
	}

	var result UploadResult
	err = s.c.do(ctx, request{
		op:          "upload file",
		method:      http.MethodPost,
		path:        "/api/file/single",
		body:        body,
		contentType: contentType,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadMultiple uploads up to MaxUploadBatch files in one request
func (s *FileService) UploadMultiple(ctx context.Context, paths []string) (*MultiUploadResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to upload")
	}
	if len(paths) > MaxUploadBatch {
		return nil, fmt.Errorf("at most %d files per upload, got %d", MaxUploadBatch, len(paths))
	}

	body, contentType, err := multipartBody("files", paths)
	if err != nil {
		return nil, fmt.Errorf("upload batch: %w", err)
	}

	var result MultiUploadResult
	err = s.c.do(ctx, request{
		op:          "upload files",
		method:      http.MethodPost,
		path:        "/api/file/multi",
		body:        body,
		contentType: contentType,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Download saves the remote file at remotePath (for example
// "uploads/img/a.png") to localPath and returns the number of bytes written.
// A failed download leaves no partial file behind.
func (s *FileService) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	resp, err := s.c.send(ctx, request{
		op:     "download file",
		method: http.MethodGet,
		path:   "/api/file/" + escapePath(strings.TrimPrefix(remotePath, "/")),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return s.c.save(resp, localPath, filepath.Base(localPath))
}

// CleanExtra asks the backend to remove files no document references
func (s *FileService) CleanExtra(ctx context.Context) (map[string]any, error) {
	var result map[string]any
	err := s.c.do(ctx, request{op: "clean files", method: http.MethodDelete, path: "/api/file/clean"}, &result)
	return result, err
}

// save streams a response body into path
func (c *Client) save(resp *http.Response, path, description string) (int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	var src io.Reader = resp.Body
	if c.progress != nil {
		src = c.progress(resp.Body, resp.ContentLength, description)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return n, nil
}

// multipartBody encodes paths as file parts of one form field. Each file is
// closed before the next one is opened, whether or not copying succeeds.
func multipartBody(field string, paths []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, path := range paths {
		if err := addFilePart(w, field, path); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func addFilePart(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectReader(f); err == nil {
		contentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", path, err)
	}

	return writeFormFile(w, field, filepath.Base(path), contentType, f)
}

func writeFormFile(w *multipart.Writer, field, filename, contentType string, r io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return nil
}

// escapePath escapes each segment of a slash separated path
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = escape(part)
	}
	return strings.Join(parts, "/")
}
