package parser

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// DefaultExcerptLength is the rune count kept by generated excerpts
const DefaultExcerptLength = 150

var (
	// excerptStripRegex matches markdown punctuation removed from excerpts
	excerptStripRegex = regexp.MustCompile("[#*`\\[\\]!]")

	whitespaceRegex = regexp.MustCompile(`\s+`)

	// htmlImgRegex matches <img ... src="..."> tags
	htmlImgRegex = regexp.MustCompile(`(?is)<img[^>]*?src=["']([^"']+)["'][^>]*>`)
)

// ParsedDocument represents a fully parsed markdown document
type ParsedDocument struct {
	Metadata   Metadata
	Body       string
	RawContent string
	Title      string
}

// Parser handles parsing of markdown documents
type Parser struct {
	md            goldmark.Markdown
	excerptLength int
}

// NewParser creates a new Parser. A non-positive excerptLength selects the
// default.
func NewParser(excerptLength int) *Parser {
	if excerptLength <= 0 {
		excerptLength = DefaultExcerptLength
	}
	return &Parser{
		md:            goldmark.New(),
		excerptLength: excerptLength,
	}
}

// ParseFile reads and parses a markdown file
func (p *Parser) ParseFile(path string) (*ParsedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !IsValidUTF8(string(content)) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}

	return p.ParseContent(string(content), path), nil
}

// ParseContent parses markdown content. The title is resolved from the
// title field, then the first level-1 heading, then the file name.
func (p *Parser) ParseContent(content string, path string) *ParsedDocument {
	meta, body := ParseFrontmatter(content)

	doc := &ParsedDocument{
		Metadata:   meta,
		Body:       body,
		RawContent: content,
	}

	// a set title is the remote identity and is kept as written
	doc.Title = meta.String("title")
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = p.FirstHeading(body)
	}
	if doc.Title == "" {
		filename := filepath.Base(path)
		doc.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	return doc
}

// FirstHeading returns the text of the first level-1 heading, or ""
func (p *Parser) FirstHeading(body string) string {
	src := []byte(body)
	root := p.md.Parser().Parse(text.NewReader(src))

	var title string
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := heading.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		title = strings.TrimSpace(buf.String())
		if title == "" {
			return ast.WalkContinue, nil
		}
		return ast.WalkStop, nil
	})

	return title
}

// FirstImage returns the first markdown image destination, falling back to
// the first html <img> source. A file:// prefix is dropped.
func (p *Parser) FirstImage(body string) string {
	src := []byte(body)
	root := p.md.Parser().Parse(text.NewReader(src))

	var dest string
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			dest = string(img.Destination)
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	if dest == "" {
		if m := htmlImgRegex.FindStringSubmatch(body); m != nil {
			dest = m[1]
		}
	}

	return strings.TrimPrefix(dest, "file://")
}

// Excerpt strips markdown punctuation, collapses whitespace and truncates
// the result to the configured length with a trailing ellipsis.
func (p *Parser) Excerpt(body string) string {
	return GenerateExcerpt(body, p.excerptLength)
}

// GenerateExcerpt is Excerpt with an explicit length
func GenerateExcerpt(body string, length int) string {
	clean := excerptStripRegex.ReplaceAllString(body, "")
	clean = strings.TrimSpace(whitespaceRegex.ReplaceAllString(clean, " "))

	if utf8.RuneCountInString(clean) <= length {
		return clean
	}

	runes := []rune(clean)
	return string(runes[:length]) + "..."
}

// IsValidUTF8 checks if content is valid UTF-8
func IsValidUTF8(content string) bool {
	return utf8.ValidString(content)
}
