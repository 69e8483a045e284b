// Package scanner turns a docs directory into posts and pages.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/parser"
)

// SupportedExtensions lists the document file extensions
var SupportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// Scanner walks a docs root and builds typed documents
type Scanner struct {
	ignorePatterns []string
	parser         *parser.Parser
	extractor      *parser.Extractor
}

// New creates a Scanner. Ignore patterns match a path when they equal its
// file name, appear as a substring of the root-relative path, or match it as
// a doublestar glob.
func New(ignorePatterns []string, p *parser.Parser) *Scanner {
	if p == nil {
		p = parser.NewParser(0)
	}
	return &Scanner{
		ignorePatterns: ignorePatterns,
		parser:         p,
		extractor:      parser.NewExtractor(),
	}
}

// Scan walks root and returns posts and pages in lexical path order.
// Unreadable or unparsable files are skipped; only a missing root is an
// error.
func (s *Scanner) Scan(root string) ([]model.Post, []model.Page, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat docs root: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("docs root %s is not a directory", root)
	}

	var posts []model.Post
	var pages []model.Page
	postTitles := make(map[string]string)
	pageTitles := make(map[string]string)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if path == root {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		relPath = filepath.ToSlash(relPath)

		if s.ShouldIgnore(relPath) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !IsDocument(relPath) {
			return nil
		}

		post, page, err := s.ScanFile(root, path)
		if err != nil {
			slog.Debug("skipping document", "path", relPath, "error", err)
			return nil
		}

		switch {
		case post != nil:
			if first, dup := postTitles[post.Title]; dup {
				slog.Warn("duplicate post title, skipping", "title", post.Title, "path", relPath, "first", first)
				return nil
			}
			postTitles[post.Title] = relPath
			posts = append(posts, *post)
		case page != nil:
			if first, dup := pageTitles[page.Title]; dup {
				slog.Warn("duplicate page title, skipping", "title", page.Title, "path", relPath, "first", first)
				return nil
			}
			pageTitles[page.Title] = relPath
			pages = append(pages, *page)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk docs root: %w", err)
	}

	slog.Debug("scan completed", "root", root, "posts", len(posts), "pages", len(pages))
	return posts, pages, nil
}

// ScanFile builds the document for a single file below root. Exactly one of
// the returned documents is non-nil on success.
func (s *Scanner) ScanFile(root, path string) (*model.Post, *model.Page, error) {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return nil, nil, err
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) == 0 || parts[0] == ".." {
		return nil, nil, fmt.Errorf("%s is outside %s", path, root)
	}

	doc, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	if len(parts) == 1 {
		return nil, s.buildPage(doc, absPath), nil
	}
	return s.buildPost(doc, absPath, parts), nil, nil
}

func (s *Scanner) buildPost(doc *parser.ParsedDocument, path string, parts []string) *model.Post {
	meta := doc.Metadata
	dir := filepath.Dir(path)

	post := &model.Post{
		Title:    doc.Title,
		Content:  doc.Body,
		Category: parts[0],
		IsTop:    meta.Bool("is_top", false),
		IsLocked: meta.Bool("is_locked", false),
		Extra:    meta.Without(model.IsPostField),
		FilePath: path,
	}

	// parts[1] names a tag directory only when the file sits below it
	switch {
	case len(parts) > 2:
		post.Tag = parts[1]
	case meta.FirstString("tag") != "":
		post.Tag = meta.FirstString("tag")
	default:
		post.Tag = meta.FirstString("tags")
	}

	if meta.Has("excerpt") {
		post.Excerpt = meta.String("excerpt")
	} else {
		post.Excerpt = s.parser.Excerpt(doc.Body)
	}

	if meta.Has("cover") {
		post.Cover = meta.String("cover")
	} else {
		post.Cover = s.parser.FirstImage(doc.Body)
	}

	post.Attach = s.extractor.Extract(doc.Body, dir)
	post.Attach = s.withCover(post.Attach, post.Cover, dir)

	return post
}

func (s *Scanner) buildPage(doc *parser.ParsedDocument, path string) *model.Page {
	meta := doc.Metadata

	page := &model.Page{
		Title:    doc.Title,
		Content:  doc.Body,
		Icon:     meta.String("icon"),
		IsActive: meta.Bool("is_active", model.DefaultPageActive),
		Order:    meta.Int("order", model.DefaultPageOrder),
		Extra:    meta.Without(model.IsPageField),
		FilePath: path,
	}

	if meta.Has("description") {
		page.Description = meta.String("description")
	} else {
		page.Description = s.parser.Excerpt(doc.Body)
	}

	page.Attach = s.extractor.Extract(doc.Body, filepath.Dir(path))

	return page
}

// withCover adds a local cover image that the body does not reference so it
// is uploaded along with the other attachments.
func (s *Scanner) withCover(attach []model.Attachment, cover, dir string) []model.Attachment {
	if cover == "" {
		return attach
	}
	for _, a := range attach {
		if a.Origin == cover {
			return attach
		}
	}
	if att, ok := s.extractor.Resolve(cover, dir, model.KindImage); ok {
		attach = append(attach, att)
	}
	return attach
}

// ShouldIgnore checks if a root-relative path should be skipped
func (s *Scanner) ShouldIgnore(relPath string) bool {
	name := filepath.Base(relPath)
	for _, pattern := range s.ignorePatterns {
		if pattern == "" {
			continue
		}
		if name == pattern || strings.Contains(relPath, pattern) {
			return true
		}
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// IsDocument reports whether path has a supported document extension
func IsDocument(path string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(path))]
}
