package catalog

import "strings"

// ParseTags splits a comma-separated tag string, trimming whitespace and
// dropping empty entries.
func ParseTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// MergeTags unions incoming into existing, deduplicating by exact string
// equality. Existing tags keep their positions; new tags are appended in
// first-seen order. Merging the same tags twice is a no-op.
func MergeTags(existing, incoming []string) []string {
	merged := append([]string(nil), existing...)
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range incoming {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		merged = append(merged, t)
	}
	return merged
}
