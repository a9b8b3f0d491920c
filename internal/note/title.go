package note

import "strings"

// Placeholder is the title shown for a note with no title and no content.
const Placeholder = "untitled"

// DerivedTitle computes the display title:
// 1. the trimmed title, if non-empty
// 2. else the first non-empty trimmed line of content
// 3. else Placeholder
func DerivedTitle(title, content string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	for line := range strings.SplitSeq(content, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return Placeholder
}
