package sync

import (
	"reflect"
	"sort"

	"github.com/vonshlovens/docsync/internal/model"
)

// ignoredFields never take part in a comparison
var ignoredFields = func() map[string]bool {
	set := map[string]bool{"attach": true, "file_path": true}
	for _, f := range model.VolatileFields {
		set[f] = true
	}
	return set
}()

// Diff returns the sorted names of the fields whose values differ between
// local and remote. An empty string and a missing key compare equal.
func Diff(local, remote map[string]any) []string {
	keys := make(map[string]bool, len(local)+len(remote))
	for k := range local {
		keys[k] = true
	}
	for k := range remote {
		keys[k] = true
	}

	var diff []string
	for k := range keys {
		if ignoredFields[k] {
			continue
		}
		if !reflect.DeepEqual(normalize(local[k]), normalize(remote[k])) {
			diff = append(diff, k)
		}
	}

	sort.Strings(diff)
	return diff
}

func normalize(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return nil
	}
	return v
}
