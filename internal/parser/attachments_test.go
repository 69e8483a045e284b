package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vonshlovens/docsync/internal/model"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractor_RuleOrderAndKinds(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "img/a.png", "img/b.png", "files/report.pdf", "raw/c.zip")

	body := `![a](img/a.png "title")
<img src="img/b.png" alt="b">
[report](files/report.pdf)
download raw/c.zip here
`

	got := NewExtractor().Extract(body, dir)

	want := []struct {
		origin string
		kind   model.AttachmentKind
	}{
		{"img/a.png", model.KindImage},
		{"img/b.png", model.KindImage},
		{"files/report.pdf", model.KindFile},
		{"raw/c.zip", model.KindDirect},
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d attachments, got %d: %+v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i].Origin != w.origin || got[i].Kind != w.kind {
			t.Errorf("attachment %d = %s/%s, want %s/%s", i, got[i].Origin, got[i].Kind, w.origin, w.kind)
		}
		if !filepath.IsAbs(got[i].Absolute) {
			t.Errorf("attachment %d absolute path %q is not absolute", i, got[i].Absolute)
		}
		if got[i].Filename != filepath.Base(w.origin) {
			t.Errorf("attachment %d filename %q", i, got[i].Filename)
		}
	}
}

func TestExtractor_DeduplicatesPreferringImage(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "img/a.png")

	body := "![a](img/a.png)\n\nAlso see img/a.png and [again](img/a.png)."

	got := NewExtractor().Extract(body, dir)

	if len(got) != 1 {
		t.Fatalf("expected one attachment, got %+v", got)
	}
	if got[0].Kind != model.KindImage {
		t.Errorf("expected the image record to win, got %s", got[0].Kind)
	}
}

func TestExtractor_SkipsExternalURLs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.png")

	body := `![x](http://example.com/a.png)
![x](https://example.com/a.png)
![x](//cdn.example.com/a.png)
[x](ftp://example.com/a.zip)
[mail](mailto:me@example.com)
[call](tel:12345)
<img src="https://example.com/a.png">
bare https://example.com/a.png too`

	got := NewExtractor().Extract(body, dir)

	for _, att := range got {
		if IsExternalURL(att.Origin) {
			t.Errorf("external reference %q returned", att.Origin)
		}
	}
	if len(got) != 0 {
		t.Errorf("expected no attachments, got %+v", got)
	}
}

func TestExtractor_MissingAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "folder.png/inner.txt")

	body := "![x](missing.png) ![y](folder.png)"

	if got := NewExtractor().Extract(body, dir); len(got) != 0 {
		t.Errorf("expected nothing for missing files and directories, got %+v", got)
	}
}

func TestExtractor_AbsoluteEncodedAndQuery(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "my img.png", "q.png")
	abs := filepath.Join(dir, "q.png")

	body := "![x](my%20img.png) ![y](q.png?v=2) ![z](" + filepath.ToSlash(abs) + ")"

	got := NewExtractor().Extract(body, dir)

	// the bare-path rule also reports "q.png" as written inside the query form
	if len(got) != 4 {
		t.Fatalf("expected 4 attachments, got %+v", got)
	}
	if got[0].Filename != "my img.png" {
		t.Errorf("expected decoded filename, got %q", got[0].Filename)
	}
	if got[1].Origin != "q.png?v=2" || got[1].Absolute != abs {
		t.Errorf("unexpected query handling: %+v", got[1])
	}
	if got[2].Absolute != abs {
		t.Errorf("absolute path should be used as-is, got %q", got[2].Absolute)
	}
	if got[3].Origin != "q.png" || got[3].Kind != model.KindDirect {
		t.Errorf("unexpected bare record: %+v", got[3])
	}
}

func TestExtractor_Resolve(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "cover.jpg")

	e := NewExtractor()

	att, ok := e.Resolve("cover.jpg", dir, model.KindImage)
	if !ok || att.Filename != "cover.jpg" {
		t.Errorf("expected cover.jpg to resolve, got %+v ok=%v", att, ok)
	}
	if _, ok := e.Resolve("https://x/cover.jpg", dir, model.KindImage); ok {
		t.Error("external URL should not resolve")
	}
}

func TestIsExternalURL(t *testing.T) {
	tests := []struct {
		ref      string
		expected bool
	}{
		{"http://a", true},
		{"https://a", true},
		{"//a", true},
		{"ftp://a", true},
		{"mailto:a@b", true},
		{"tel:1", true},
		{"/static/a.png", false},
		{"img/a.png", false},
	}

	for _, tt := range tests {
		if got := IsExternalURL(tt.ref); got != tt.expected {
			t.Errorf("IsExternalURL(%q) = %v, want %v", tt.ref, got, tt.expected)
		}
	}
}
