package sync

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vonshlovens/docsync/internal/model"
	"github.com/vonshlovens/docsync/internal/remote"
)

// DefaultStaticDir is the docs subdirectory holding downloaded attachments
const DefaultStaticDir = ".static"

// staticRefRegex matches /static/ references, allowing one parenthesized
// run inside the path
var staticRefRegex = regexp.MustCompile(`(?i)/static/[^\s<>"'\)]*(?:\([^)]*\))?[^\s<>"'\)]*`)

// Uploader stores a local file remotely
type Uploader interface {
	UploadSingle(ctx context.Context, path string) (*remote.UploadResult, error)
}

// Downloader fetches a remote file to a local path
type Downloader interface {
	Download(ctx context.Context, remotePath, localPath string) (int64, error)
}

// RelocationFailure records one attachment that could not be moved. The
// reference it names is left untouched in the body.
type RelocationFailure struct {
	Reference string
	Err       error
}

func (f RelocationFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Reference, f.Err)
}

// Relocator rewrites attachment references between local paths and remote
// URLs
type Relocator struct {
	up        Uploader
	down      Downloader
	staticDir string
	journal   *Journal

	// local attachment path -> reference it was downloaded for since the
	// last ResetClaims
	claims map[string]string
}

// NewRelocator creates a Relocator. journal may be nil; when set, files
// fetched by Inbound are remembered so that Outbound restores their
// original reference instead of uploading them again.
func NewRelocator(up Uploader, down Downloader, staticDir string, journal *Journal) *Relocator {
	if staticDir == "" {
		staticDir = DefaultStaticDir
	}
	return &Relocator{
		up:        up,
		down:      down,
		staticDir: staticDir,
		journal:   journal,
		claims:    make(map[string]string),
	}
}

// ResetClaims forgets which references the local attachment names were
// downloaded for. Call it at the start of each pull.
func (r *Relocator) ResetClaims() {
	r.claims = make(map[string]string)
}

// Outbound uploads every attachment and rewrites its references in content.
// It returns the rewritten content and the origin to URL mapping of the
// attachments that moved.
func (r *Relocator) Outbound(ctx context.Context, content string, attach []model.Attachment) (string, map[string]string, []RelocationFailure) {
	moved := make(map[string]string)
	var failures []RelocationFailure

	for _, att := range attach {
		target, err := r.upload(ctx, att)
		if err != nil {
			slog.Debug("attachment upload failed", "path", att.Absolute, "error", err)
			failures = append(failures, RelocationFailure{Reference: att.Origin, Err: err})
			continue
		}
		moved[att.Origin] = target
		content = ReplaceReference(content, att.Origin, target)
	}

	return content, moved, failures
}

func (r *Relocator) upload(ctx context.Context, att model.Attachment) (string, error) {
	if r.journal != nil {
		if ref, ok := r.journal.StaticRef(att.Absolute); ok {
			return ref, nil
		}
	}
	if r.up == nil {
		return "", fmt.Errorf("no uploader configured")
	}

	res, err := r.up.UploadSingle(ctx, att.Absolute)
	if err != nil {
		return "", err
	}
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "rejected by server"
		}
		return "", fmt.Errorf("upload failed: %s", msg)
	}
	target := res.Location()
	if target == "" {
		return "", fmt.Errorf("upload returned no url")
	}
	return target, nil
}

// staticRef is one /static/ reference found in a body
type staticRef struct {
	written string // as it appears in the body
	clean   string // decoded, without query, fragment or title
}

// StaticRefs returns the de-duplicated /static/ file references of content
func StaticRefs(content string) []string {
	refs := findStaticRefs(content)
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.clean
	}
	return out
}

func findStaticRefs(content string) []staticRef {
	var refs []staticRef
	seen := make(map[string]bool)

	for _, loc := range staticRefRegex.FindAllStringIndex(content, -1) {
		// part of a longer path or an absolute URL
		if prev, _ := utf8.DecodeLastRuneInString(content[:loc[0]]); loc[0] > 0 && isURLRune(prev) {
			continue
		}

		written := content[loc[0]:loc[1]]
		written, _, _ = strings.Cut(written, "?")
		written, _, _ = strings.Cut(written, "#")
		written, _, _ = strings.Cut(written, `"`)
		written = strings.TrimSpace(written)

		clean := written
		if decoded, err := url.PathUnescape(written); err == nil {
			clean = decoded
		}

		if !strings.HasPrefix(strings.ToLower(clean), "/static/") {
			continue
		}
		rest := clean[len("/static/"):]
		if !strings.Contains(rest, "/") || !strings.Contains(path.Base(rest), ".") {
			continue
		}
		if seen[clean] {
			continue
		}
		seen[clean] = true
		refs = append(refs, staticRef{written: written, clean: clean})
	}

	return refs
}

// RemotePath maps a /static/ reference to the path the file endpoint
// serves. Compressed variants are fetched from their original upload.
func RemotePath(ref string) string {
	p := ref[len("/static/"):]
	if strings.HasPrefix(p, "compressed") {
		p = "uploads" + strings.TrimPrefix(p, "compressed")
	}
	return p
}

// Inbound downloads every /static/ file content references into
// <root>/<static dir>/ and rewrites the references to the absolute local
// path. A file name already taken by another reference since the last
// ResetClaims is not overwritten; that reference fails and stays as is.
func (r *Relocator) Inbound(ctx context.Context, content, root string) (string, []RelocationFailure) {
	var failures []RelocationFailure

	for _, ref := range findStaticRefs(content) {
		local := filepath.Join(root, r.staticDir, path.Base(ref.clean))
		abs, err := filepath.Abs(local)
		if err != nil {
			abs = local
		}

		claimed, ok := r.claims[abs]
		switch {
		case ok && claimed != ref.clean:
			failures = append(failures, RelocationFailure{
				Reference: ref.clean,
				Err:       fmt.Errorf("%s is already used by %s", path.Base(ref.clean), claimed),
			})
			continue
		case ok:
			// fetched earlier in this pull
		case r.down == nil:
			failures = append(failures, RelocationFailure{Reference: ref.clean, Err: fmt.Errorf("no downloader configured")})
			continue
		default:
			if _, err := r.down.Download(ctx, RemotePath(ref.clean), abs); err != nil {
				slog.Debug("attachment download failed", "reference", ref.clean, "error", err)
				failures = append(failures, RelocationFailure{Reference: ref.clean, Err: err})
				continue
			}
			r.claims[abs] = ref.clean
		}

		for _, written := range uniqueStrings(ref.written, ref.clean) {
			content = replaceTitledLink(content, written, abs)
			content = ReplaceReference(content, written, abs)
		}

		if r.journal != nil {
			r.journal.RecordStatic(abs, ref.written)
		}
	}

	return content, failures
}

// replaceTitledLink rewrites (ref "title") to (local)
func replaceTitledLink(content, ref, local string) string {
	re := regexp.MustCompile(`\(` + regexp.QuoteMeta(ref) + `\s+"[^"]*"\)`)
	return re.ReplaceAllLiteralString(content, "("+local+")")
}

// ReplaceReference replaces every occurrence of ref in content that is not
// part of a longer path: the rune before must not continue the path (see
// continuesBefore), and neither may the rune after. A trailing full stop
// ends it.
func ReplaceReference(content, ref, replacement string) string {
	if ref == "" || ref == replacement {
		return content
	}

	var b strings.Builder
	last, pos := 0, 0
	for {
		i := strings.Index(content[pos:], ref)
		if i < 0 {
			break
		}
		start := pos + i
		end := start + len(ref)

		before, _ := utf8.DecodeLastRuneInString(content[:start])
		if !continuesBefore(before, ref) && endsReference(content[end:]) {
			b.WriteString(content[last:start])
			b.WriteString(replacement)
			last = end
			pos = end
		} else {
			pos = start + 1
		}
	}
	b.WriteString(content[last:])
	return b.String()
}

func endsReference(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || !isPathRune(r) {
		return true
	}
	if r == '.' {
		next, n := utf8.DecodeRuneInString(s[size:])
		return n == 0 || !isPathRune(next)
	}
	return false
}

// continuesBefore reports whether before makes ref part of a longer path.
// A reference starting at a slash only continues a URL or an ASCII path, so
// it may follow text in any other script.
func continuesBefore(before rune, ref string) bool {
	if strings.HasPrefix(ref, "/") {
		return isURLRune(before)
	}
	return isPathRune(before)
}

// isURLRune reports whether r can precede a path inside a URL or an ASCII
// file path
func isURLRune(r rune) bool {
	return r < utf8.RuneSelf && isPathRune(r)
}

// isPathRune reports whether r can continue a file path or URL path
func isPathRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	switch r {
	case '/', '\\', '.', '_', '-', '~', '%':
		return true
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func uniqueStrings(values ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
