package docstore

import "strings"

// maxFolderNameLen bounds sanitized folder names. One limit everywhere;
// folder names are for human browsing, uniqueness comes from the submission
// UUID suffix appended by the processor.
const maxFolderNameLen = 50

// SanitizeFolderName lowercases the input, maps every run of characters
// outside [a-z0-9] to a single dash, trims dashes and truncates the result.
func SanitizeFolderName(name string) string {
	var b strings.Builder
	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	out := strings.TrimRight(b.String(), "-")
	if len(out) > maxFolderNameLen {
		out = strings.TrimRight(out[:maxFolderNameLen], "-")
	}
	if out == "" {
		return "unnamed"
	}
	return out
}
