package parser

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var (
	// frontmatterRegex matches a YAML block between --- delimiter lines
	frontmatterRegex = regexp.MustCompile(`(?s)^---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|$)`)
)

// Metadata is a decoded frontmatter block
type Metadata map[string]interface{}

// ParseFrontmatter splits content into its metadata and body. A missing or
// undecodable block yields empty metadata and the whole content as body.
func ParseFrontmatter(content string) (Metadata, string) {
	meta := Metadata{}

	match := frontmatterRegex.FindStringSubmatch(content)
	if match == nil {
		return meta, content
	}

	var fields map[string]interface{}
	if err := yaml.Unmarshal([]byte(match[1]), &fields); err != nil {
		return meta, content
	}
	for k, v := range fields {
		meta[k] = v
	}

	return meta, content[len(match[0]):]
}

// HasFrontmatter checks if content starts with a frontmatter block
func HasFrontmatter(content string) bool {
	return frontmatterRegex.MatchString(content)
}

// Has reports whether key was set, even to an empty value
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// String returns the value of key as a string. Null and unconvertible
// values are returned as "".
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// Bool returns the value of key as a bool, or def when absent or invalid
func (m Metadata) Bool(key string, def bool) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the value of key as an int, or def when absent or invalid
func (m Metadata) Int(key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

// FirstString returns a string value, or the first element when the value
// is a list
func (m Metadata) FirstString(key string) string {
	switch val := m[key].(type) {
	case nil:
		return ""
	case []interface{}:
		if len(val) == 0 {
			return ""
		}
		s, _ := cast.ToStringE(val[0])
		return strings.TrimSpace(s)
	case []string:
		if len(val) == 0 {
			return ""
		}
		return strings.TrimSpace(val[0])
	default:
		return strings.TrimSpace(m.String(key))
	}
}

// Without returns a copy of the metadata minus the keys known reports
func (m Metadata) Without(known func(string) bool) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		if known(k) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
