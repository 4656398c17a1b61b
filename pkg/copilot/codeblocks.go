package copilot

import "regexp"

var codeBlockPattern = regexp.MustCompile(`(?is)<code\b[^>]*>.*?</code>`)

// HasCodeBlocks reports whether text contains an HTML-style <code>...</code>
// block. Tags match case-insensitively and the block may span lines.
func HasCodeBlocks(text string) bool {
	return codeBlockPattern.MatchString(text)
}
