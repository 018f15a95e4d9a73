package process

import (
	"strings"
	"unicode"
)

// SplitArguments tokenizes a joined argument string on whitespace. Double quotes
// group a token and are dropped; backslashes are literal so Windows paths survive.
func SplitArguments(line string) []string {
	var (
		out     []string
		current strings.Builder
		quoted  bool
		pending bool
	)
	flush := func() {
		if pending {
			out = append(out, current.String())
			current.Reset()
			pending = false
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case unicode.IsSpace(r) && !quoted:
			flush()
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	flush()
	return out
}
