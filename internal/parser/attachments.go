package parser

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vonshlovens/docsync/internal/model"
)

// externalPrefixes mark references that point off the local filesystem
var externalPrefixes = []string{"http://", "https://", "//", "ftp://", "mailto:", "tel:"}

// Rule is one attachment matcher. Pattern's first group is the reference.
type Rule struct {
	Name    string
	Kind    model.AttachmentKind
	Pattern *regexp.Regexp
}

// DefaultRules lists the matchers in priority order. A reference found by an
// earlier rule is not reprocessed by a later one.
var DefaultRules = []Rule{
	{
		Name:    "markdown-image",
		Kind:    model.KindImage,
		Pattern: regexp.MustCompile(`!\[.*?\]\(\s*([^)\s]+)(?:\s+[^)]*)?\s*\)`),
	},
	{
		Name:    "html-image",
		Kind:    model.KindImage,
		Pattern: regexp.MustCompile(`(?i)<img[^>]*src=["']([^"']+)["'][^>]*>`),
	},
	{
		Name:    "markdown-link",
		Kind:    model.KindFile,
		Pattern: regexp.MustCompile(`\[.*?\]\(\s*([^)\s]+)(?:\s+[^)]*)?\s*\)`),
	},
	{
		Name: "bare-path",
		Kind: model.KindDirect,
		Pattern: regexp.MustCompile(
			`(?i)([\p{L}\p{N}_/.\-~]+\.(?:jpeg|jpg|png|gif|webp|bmp|pdf|docx|doc|txt|zip|rar|mp4|avi|mov|mp3|wav|ogg|svg|ico))\b`),
	},
}

// Extractor finds locally referenced files in a document body
type Extractor struct {
	rules []Rule
}

// NewExtractor creates an Extractor. Without rules DefaultRules is used.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Extractor{rules: rules}
}

// Extract returns every existing local file referenced by body, resolved
// against dir, in rule order without duplicates.
func (e *Extractor) Extract(body, dir string) []model.Attachment {
	var attachments []model.Attachment
	seen := make(map[string]bool)

	for _, rule := range e.rules {
		for _, candidate := range rule.candidates(body) {
			att, ok := e.accept(candidate, rule.Kind, dir, seen)
			if !ok {
				continue
			}
			seen[att.Origin] = true
			attachments = append(attachments, att)
		}
	}

	return attachments
}

// Resolve applies the shared filter to a single reference
func (e *Extractor) Resolve(ref, dir string, kind model.AttachmentKind) (model.Attachment, bool) {
	return e.accept(ref, kind, dir, nil)
}

func (r Rule) candidates(body string) []string {
	matches := r.Pattern.FindAllStringSubmatch(body, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, m[1])
		}
	}
	return out
}

// accept is the filter every rule goes through: external URLs, already
// recorded references and anything that is not an existing regular file are
// dropped.
func (e *Extractor) accept(ref string, kind model.AttachmentKind, dir string, seen map[string]bool) (model.Attachment, bool) {
	ref = strings.Trim(ref, `"'`)
	if ref == "" || IsExternalURL(ref) || seen[ref] {
		return model.Attachment{}, false
	}

	abs := resolvePath(ref, dir)
	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return model.Attachment{}, false
	}

	return model.Attachment{
		Origin:   ref,
		Absolute: abs,
		Filename: filepath.Base(abs),
		Kind:     kind,
	}, true
}

// IsExternalURL reports whether ref is scheme-prefixed or protocol-relative
func IsExternalURL(ref string) bool {
	for _, prefix := range externalPrefixes {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}

// resolvePath decodes ref, drops any query or fragment and resolves it
// against dir unless it is already absolute.
func resolvePath(ref, dir string) string {
	clean := ref
	if decoded, err := url.PathUnescape(clean); err == nil {
		clean = decoded
	}
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	clean = filepath.FromSlash(clean)

	if filepath.IsAbs(clean) {
		return filepath.Clean(clean)
	}
	abs, err := filepath.Abs(filepath.Join(dir, clean))
	if err != nil {
		return filepath.Join(dir, clean)
	}
	return abs
}
