package sync

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Reporter prints one line per processed item:
//
//	[2/5] PUSH Hello type=post action=update diff=excerpt
type Reporter struct {
	w io.Writer
}

// NewReporter creates a Reporter writing to w, or stdout when w is nil
func NewReporter(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stdout
	}
	return &Reporter{w: w}
}

// Item reports progress on the i-th of total items. kv alternates keys and
// values; empty values are omitted.
func (r *Reporter) Item(i, total int, verb, title string, kv ...any) {
	if r == nil {
		return
	}
	fmt.Fprintf(r.w, "[%d/%d] %s %s%s\n", i, total, verb, quote(title), pairs(kv))
}

// Event reports a command level result
func (r *Reporter) Event(verb, message string, kv ...any) {
	if r == nil {
		return
	}
	fmt.Fprintf(r.w, "%s %s%s\n", verb, message, pairs(kv))
}

// Map reports every entry of m in key order
func (r *Reporter) Map(verb, message string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, m[k])
	}
	r.Event(verb, message, kv...)
}

func pairs(kv []any) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		val := fmt.Sprint(kv[i+1])
		if val == "" {
			continue
		}
		fmt.Fprintf(&b, " %v=%s", kv[i], quote(val))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=,") {
		return strconv.Quote(s)
	}
	return s
}
