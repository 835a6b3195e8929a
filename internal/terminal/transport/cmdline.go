package transport

import "strings"

// escapeArg quotes one argument for CreateProcess following the
// CommandLineToArgvW rules, the same algorithm as syscall.EscapeArg:
// backslashes are doubled only when they precede a double quote, quotes
// are backslash-escaped, and the result is wrapped in quotes only when it
// contains a space or tab. An empty argument becomes "".
func escapeArg(s string) string {
	if s == "" {
		return `""`
	}
	quote := strings.ContainsAny(s, " \t")
	if !quote && !strings.ContainsAny(s, `"\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	if quote {
		b.WriteByte('"')
	}
	slashes := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	if quote {
		// Trailing backslashes would escape the closing quote.
		b.WriteString(strings.Repeat(`\`, slashes))
		b.WriteByte('"')
	}
	return b.String()
}

// buildCmdLine joins args into a single Windows command line.
func buildCmdLine(args []string) string {
	escaped := make([]string, len(args))
	for i, arg := range args {
		escaped[i] = escapeArg(arg)
	}
	return strings.Join(escaped, " ")
}
