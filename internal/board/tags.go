package board

import (
	"regexp"
	"strings"
)

var hashtagRe = regexp.MustCompile(`#([a-zA-Z0-9_]{1,32})`)

const maxTags = 20

// ExtractTags returns lowercased, de-duplicated hashtags from text.
func ExtractTags(text string) []string {
	return MergeTags(nil, text)
}

// MergeTags combines explicit tags with hashtags found in text, keeping order
// of first appearance.
func MergeTags(tags []string, text string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(t string) bool {
		t = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(t), "#"))
		if t == "" {
			return true
		}
		if _, ok := seen[t]; ok {
			return true
		}
		seen[t] = struct{}{}
		out = append(out, t)
		return len(out) < maxTags
	}

	for _, t := range tags {
		if !add(t) {
			return out
		}
	}
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		if len(m) < 2 {
			continue
		}
		if !add(m[1]) {
			break
		}
	}
	return out
}
