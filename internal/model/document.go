package model

import (
	"encoding/json"
	"strings"
)

// DocType distinguishes the two remote collections
type DocType string

const (
	TypePost DocType = "post"
	TypePage DocType = "page"
)

// Fields the remote service owns and that never take part in comparison or
// serialization.
var VolatileFields = []string{"id", "like", "created_at", "updated_at"}

// Page defaults applied when the frontmatter does not set them
const (
	DefaultPageActive = true
	DefaultPageOrder  = 10
)

// Post is a document nested under a category directory
type Post struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Tag      string `json:"tag"`
	Category string `json:"category"`
	Excerpt  string `json:"excerpt"`
	Cover    string `json:"cover"`
	IsTop    bool   `json:"is_top"`
	IsLocked bool   `json:"is_locked"`

	// Extra holds metadata keys that are not part of the known field set.
	// It is re-emitted when the post is written to disk but never sent.
	Extra    map[string]any `json:"-"`
	Attach   []Attachment   `json:"-"`
	FilePath string         `json:"-"`
}

// Page is a top-level document
type Page struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"is_active"`
	Order       int    `json:"order"`

	Extra    map[string]any `json:"-"`
	Attach   []Attachment   `json:"-"`
	FilePath string         `json:"-"`
}

var (
	postFields = fieldSet("title", "content", "tag", "category", "excerpt", "cover", "is_top", "is_locked")
	pageFields = fieldSet("title", "content", "description", "icon", "is_active", "order")
)

// IsPostField reports whether key is one of the known post fields
func IsPostField(key string) bool { return postFields[key] }

// IsPageField reports whether key is one of the known page fields
func IsPageField(key string) bool { return pageFields[key] }

// Fields returns the comparable field mapping of the post
func (p *Post) Fields() map[string]any {
	return map[string]any{
		"title":     p.Title,
		"content":   p.Content,
		"tag":       p.Tag,
		"category":  p.Category,
		"excerpt":   p.Excerpt,
		"cover":     p.Cover,
		"is_top":    p.IsTop,
		"is_locked": p.IsLocked,
	}
}

// Fields returns the comparable field mapping of the page
func (p *Page) Fields() map[string]any {
	return map[string]any{
		"title":       p.Title,
		"content":     p.Content,
		"description": p.Description,
		"icon":        p.Icon,
		"is_active":   p.IsActive,
		"order":       p.Order,
	}
}

// postMeta fixes the key order of a serialized post header
type postMeta struct {
	Title    string         `yaml:"title"`
	Category string         `yaml:"category"`
	Tag      string         `yaml:"tag"`
	Excerpt  string         `yaml:"excerpt"`
	Cover    string         `yaml:"cover"`
	IsTop    bool           `yaml:"is_top"`
	IsLocked bool           `yaml:"is_locked"`
	Extra    map[string]any `yaml:",inline"`
}

type pageMeta struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Icon        string         `yaml:"icon"`
	IsActive    bool           `yaml:"is_active"`
	Order       int            `yaml:"order"`
	Extra       map[string]any `yaml:",inline"`
}

// Metadata returns the frontmatter representation of the post: every known
// field except the content, followed by the passthrough keys.
func (p *Post) Metadata() any {
	return postMeta{
		Title:    p.Title,
		Category: p.Category,
		Tag:      p.Tag,
		Excerpt:  p.Excerpt,
		Cover:    p.Cover,
		IsTop:    p.IsTop,
		IsLocked: p.IsLocked,
		Extra:    passthrough(p.Extra, postFields),
	}
}

// Metadata returns the frontmatter representation of the page
func (p *Page) Metadata() any {
	return pageMeta{
		Title:       p.Title,
		Description: p.Description,
		Icon:        p.Icon,
		IsActive:    p.IsActive,
		Order:       p.Order,
		Extra:       passthrough(p.Extra, pageFields),
	}
}

// UnmarshalJSON decodes a remote record, keeping unknown non-volatile keys
// in Extra.
func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*p = Post(known)
	p.Extra = passthrough(all, postFields)
	return nil
}

// UnmarshalJSON decodes a remote record, keeping unknown non-volatile keys
// in Extra.
func (p *Page) UnmarshalJSON(data []byte) error {
	type plain Page
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	*p = Page(known)
	p.Extra = passthrough(all, pageFields)
	return nil
}

// FileName returns the on-disk name for a document title. Path separators
// cannot appear in a file name and are replaced.
func FileName(title string) string {
	r := strings.NewReplacer("/", "_", "\\", "_")
	return r.Replace(title) + ".md"
}

func fieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// passthrough copies src without known and volatile keys. Returns nil when
// nothing is left.
func passthrough(src map[string]any, known map[string]bool) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any)
	for k, v := range src {
		if known[k] || isVolatile(k) || k == "attach" || k == "file_path" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isVolatile(key string) bool {
	for _, v := range VolatileFields {
		if v == key {
			return true
		}
	}
	return false
}
