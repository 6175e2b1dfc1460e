package tts

import (
	"regexp"
	"strings"
)

var (
	codeFence   = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]*)`")
	mdLink      = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	bareURL     = regexp.MustCompile(`https?://\S+`)
	emphasis    = regexp.MustCompile(`(\*\*|__|\*|_|~~)([^*_~]+)(\*\*|__|\*|_|~~)`)
	heading     = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]*`)
	listMarker  = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+•]|\d+[.)])[ \t]+`)
	blockquote  = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	strayMarks  = regexp.MustCompile("[*#`|]+")
	whitespaces = regexp.MustCompile(`\s+`)
)

// CleanForSpeech strips markdown and links from reply text so the engine
// does not read formatting characters aloud.
func CleanForSpeech(text string) string {
	text = codeFence.ReplaceAllString(text, " ")
	text = inlineCode.ReplaceAllString(text, "$1")
	text = mdLink.ReplaceAllString(text, "$1")
	text = bareURL.ReplaceAllString(text, "")
	text = heading.ReplaceAllString(text, "")
	text = listMarker.ReplaceAllString(text, "")
	text = blockquote.ReplaceAllString(text, "")
	text = emphasis.ReplaceAllString(text, "$2")
	text = strayMarks.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaces.ReplaceAllString(text, " "))
}

// DefaultCleaner wraps CleanForSpeech.
var DefaultCleaner Cleaner = CleanerFunc(CleanForSpeech)
