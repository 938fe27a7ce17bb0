package mutation

import (
	"fmt"
	"strings"
)

// countLines counts logical lines the way the diff header expects: a string
// holds count('\n')+1 lines, so even empty snippets occupy one header slot.
func countLines(s string) int {
	return strings.Count(s, "\n") + 1
}

// splitLines splits into lines without a trailing empty element, yielding
// nothing for the empty string.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// MakeDiff renders the unified hunk for one candidate:
// a "@@ -L,n +L,m @@" header followed by the original lines prefixed with
// '-' and the modified lines prefixed with '+'.
func MakeDiff(startLine int, original, modified string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", startLine, countLines(original), startLine, countLines(modified))

	for _, line := range splitLines(original) {
		b.WriteString("-")
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, line := range splitLines(modified) {
		b.WriteString("+")
		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
