package decode

import "regexp"

// escapePattern matches ANSI/VT escape sequences:
//   - CSI: ESC [ params final letter
//   - OSC: ESC ] ... terminated by BEL or ST
//   - two-byte ESC + one non-bracket char
var escapePattern = regexp.MustCompile(
	`\x1b\[[0-9;?]*[a-zA-Z]` +
		`|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)` +
		`|\x1b[^[\]]`,
)

// Strip removes all ANSI/VT escape sequences from b.
func Strip(b []byte) []byte {
	return escapePattern.ReplaceAll(b, nil)
}
