package utils

import "strings"

// Truncate shortens s to at most maxLen runes, appending "..." when it cuts,
// and flattens line breaks so the result fits on one terminal line.
func Truncate(s string, maxLen int) string {
	s = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`).Replace(s)

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
