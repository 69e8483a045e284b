package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/remote"
)

func TestReplaceReference(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		ref      string
		expected string
	}{
		{"markdown image", "![a](a.png)", "a.png", "![a](URL)"},
		{"every occurrence", "a.png and (a.png)", "a.png", "URL and (URL)"},
		{"longer name untouched", "![a](b/a.png) ![b](aa.png)", "a.png", "![a](b/a.png) ![b](aa.png)"},
		{"suffix untouched", "a.png.bak", "a.png", "a.png.bak"},
		{"sentence end", "see a.png.", "a.png", "see URL."},
		{"html attribute", `<img src="img/a.png">`, "img/a.png", `<img src="URL">`},
		{"unicode neighbours", "图a.png", "a.png", "图a.png"},
		{"rooted after other script", "参见/static/a/b.png。", "/static/a/b.png", "参见URL。"},
		{"rooted inside url", "http://x.com/static/a/b.png", "/static/a/b.png", "http://x.com/static/a/b.png"},
		{"not present", "nothing here", "a.png", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReplaceReference(tt.content, tt.ref, "URL"); got != tt.expected {
				t.Errorf("ReplaceReference(%q) = %q, want %q", tt.content, got, tt.expected)
			}
		})
	}
}

func TestStaticRefs(t *testing.T) {
	content := strings.Join([]string{
		"![a](/static/uploads/img/a.png)",
		"![b](/static/uploads/b%20c.png?x=1#frag)",
		`[c](/static/compressed/c.webp "title")`,
		"/static/uploads/img/a.png again",
		"/static/noext/file",
		"/static/flat.png",
		"https://cdn.example.com/static/uploads/ext.png",
		"参见/static/uploads/cjk.png",
	}, "\n")

	got := StaticRefs(content)
	want := []string{
		"/static/uploads/img/a.png",
		"/static/uploads/b c.png",
		"/static/compressed/c.webp",
		"/static/uploads/cjk.png",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StaticRefs() = %q, want %q", got, want)
	}
}

func TestRemotePath(t *testing.T) {
	tests := []struct {
		ref      string
		expected string
	}{
		{"/static/uploads/img/a.png", "uploads/img/a.png"},
		{"/static/compressed/img/a.webp", "uploads/img/a.webp"},
		{"/static/other/compressed/a.png", "other/compressed/a.png"},
	}

	for _, tt := range tests {
		if got := RemotePath(tt.ref); got != tt.expected {
			t.Errorf("RemotePath(%q) = %q, want %q", tt.ref, got, tt.expected)
		}
	}
}

type stubFiles struct {
	fail map[string]bool
	seen []string
}

func (s *stubFiles) UploadSingle(ctx context.Context, path string) (*remote.UploadResult, error) {
	name := filepath.Base(path)
	s.seen = append(s.seen, name)
	if s.fail[name] {
		return &remote.UploadResult{Success: false, Message: "too large"}, nil
	}
	return &remote.UploadResult{Success: true, URL: "/static/uploads/" + name}, nil
}

func (s *stubFiles) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	s.seen = append(s.seen, remotePath)
	if s.fail[remotePath] {
		return 0, errors.New("unavailable")
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return 0, err
	}
	return 1, os.WriteFile(localPath, []byte("x"), 0644)
}

func TestRelocator_Outbound(t *testing.T) {
	files := &stubFiles{fail: map[string]bool{"big.png": true}}
	r := NewRelocator(files, files, "", nil)

	attach := []model.Attachment{
		{Origin: "a.png", Absolute: "/docs/a.png", Kind: model.KindImage},
		{Origin: "big.png", Absolute: "/docs/big.png", Kind: model.KindImage},
	}
	content, moved, failures := r.Outbound(context.Background(), "![a](a.png) ![b](big.png)", attach)

	if content != "![a](/static/uploads/a.png) ![b](big.png)" {
		t.Errorf("unexpected content %q", content)
	}
	if moved["a.png"] != "/static/uploads/a.png" || len(moved) != 1 {
		t.Errorf("unexpected moved map %v", moved)
	}
	if len(failures) != 1 || failures[0].Reference != "big.png" {
		t.Fatalf("unexpected failures %v", failures)
	}
	if !strings.Contains(failures[0].Error(), "too large") {
		t.Errorf("failure should carry the server message, got %q", failures[0].Error())
	}
}

func TestRelocator_InboundUsesJournal(t *testing.T) {
	root := t.TempDir()
	journal, err := OpenJournal(t.TempDir(), root)
	if err != nil {
		t.Fatal(err)
	}

	files := &stubFiles{fail: map[string]bool{"uploads/missing.png": true}}
	r := NewRelocator(files, files, ".assets", journal)

	content, failures := r.Inbound(context.Background(), "![a](/static/uploads/x/a.png) ![m](/static/uploads/missing.png)", root)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", failures)
	}

	local, _ := filepath.Abs(filepath.Join(root, ".assets", "a.png"))
	if content != "![a]("+local+") ![m](/static/uploads/missing.png)" {
		t.Errorf("unexpected content %q", content)
	}

	// unchanged downloads map back to their original reference
	back, moved, failures := r.Outbound(context.Background(), content, []model.Attachment{{Origin: local, Absolute: local}})
	if len(failures) != 0 {
		t.Fatalf("unexpected failures %v", failures)
	}
	if moved[local] != "/static/uploads/x/a.png" {
		t.Errorf("moved = %v", moved)
	}
	if back != "![a](/static/uploads/x/a.png) ![m](/static/uploads/missing.png)" {
		t.Errorf("unexpected content %q", back)
	}

	// edited downloads are uploaded again
	if err := os.WriteFile(local, []byte("edited"), 0644); err != nil {
		t.Fatal(err)
	}
	_, moved, _ = r.Outbound(context.Background(), content, []model.Attachment{{Origin: local, Absolute: local}})
	if moved[local] != "/static/uploads/a.png" {
		t.Errorf("edited file should be uploaded, moved = %v", moved)
	}
}

func TestRelocator_InboundSharedFileName(t *testing.T) {
	root := t.TempDir()
	journal, err := OpenJournal(t.TempDir(), root)
	if err != nil {
		t.Fatal(err)
	}

	files := &stubFiles{}
	r := NewRelocator(files, files, "", journal)
	local, _ := filepath.Abs(filepath.Join(root, DefaultStaticDir, "a.png"))

	content, failures := r.Inbound(context.Background(), "![x](/static/uploads/x/a.png) ![y](/static/uploads/y/a.png)", root)
	if len(failures) != 1 || failures[0].Reference != "/static/uploads/y/a.png" {
		t.Fatalf("expected the second reference to fail, got %v", failures)
	}
	if content != "![x]("+local+") ![y](/static/uploads/y/a.png)" {
		t.Errorf("unexpected content %q", content)
	}
	if !reflect.DeepEqual(files.seen, []string{"uploads/x/a.png"}) {
		t.Errorf("only the first file should be downloaded, got %v", files.seen)
	}
	if ref, ok := journal.StaticRef(local); !ok || ref != "/static/uploads/x/a.png" {
		t.Errorf("StaticRef() = %q, %v", ref, ok)
	}

	// the claim holds across documents until reset
	_, failures = r.Inbound(context.Background(), "![y](/static/uploads/y/a.png) ![x](/static/uploads/x/a.png)", root)
	if len(failures) != 1 || failures[0].Reference != "/static/uploads/y/a.png" {
		t.Errorf("expected the claimed name to be refused, got %v", failures)
	}
	if len(files.seen) != 1 {
		t.Errorf("claimed file should not be fetched again, got %v", files.seen)
	}

	r.ResetClaims()
	_, failures = r.Inbound(context.Background(), "![y](/static/uploads/y/a.png)", root)
	if len(failures) != 0 {
		t.Errorf("unexpected failures after reset %v", failures)
	}
}
