package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// RootService exports and imports the whole backend
type RootService struct {
	c *Client
}

// ExportData writes the backend's data dump to path as indented JSON
func (s *RootService) ExportData(ctx context.Context, path string) (int64, error) {
	var raw json.RawMessage
	if err := s.c.do(ctx, request{op: "export data", method: http.MethodGet, path: "/api/root/export/data"}, &raw); err != nil {
		return 0, err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return 0, fmt.Errorf("export data: invalid json: %w", err)
	}
	out.WriteByte('\n')

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return int64(out.Len()), nil
}

// ExportStatic streams the static file archive to path and returns its size
func (s *RootService) ExportStatic(ctx context.Context, path string) (int64, error) {
	resp, err := s.c.send(ctx, request{op: "export static", method: http.MethodGet, path: "/api/root/export/static"})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return s.c.save(resp, path, "static archive")
}

// ValidateImport asks the backend whether the data file can be imported
func (s *RootService) ValidateImport(ctx context.Context, path string) (bool, error) {
	var result struct {
		Valid bool `json:"valid"`
	}
	if err := s.upload(ctx, "validate import", "/api/root/validate", path, "application/json", &result); err != nil {
		return false, err
	}
	return result.Valid, nil
}

// ImportData uploads a data dump produced by ExportData
func (s *RootService) ImportData(ctx context.Context, path string) (map[string]any, error) {
	var result map[string]any
	err := s.upload(ctx, "import data", "/api/root/import/data", path, "application/json", &result)
	return result, err
}

// ImportStatic uploads an archive produced by ExportStatic
func (s *RootService) ImportStatic(ctx context.Context, path string) (map[string]any, error) {
	var result map[string]any
	err := s.upload(ctx, "import static", "/api/root/import/static", path, "application/zip", &result)
	return result, err
}

func (s *RootService) upload(ctx context.Context, op, endpoint, path, partType string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := writeFormFile(w, "file", filepath.Base(path), partType, f)
		if err == nil {
			err = w.Close()
		}
		pw.CloseWithError(err)
	}()

	err = s.c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        endpoint,
		body:        pr,
		contentType: w.FormDataContentType(),
	}, out)
	pr.Close()
	<-done
	return err
}
