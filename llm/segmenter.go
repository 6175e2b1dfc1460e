package llm

import "strings"

// Segmenter collects streamed reply text and cuts it into sentences as soon as
// a terminator (. ! ?) followed by whitespace shows up. Text after the last
// boundary stays in the remainder until more text or Flush arrives.
type Segmenter struct {
	remainder string
}

func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Push appends a fragment and returns the sentences it completed, in text order.
func (s *Segmenter) Push(fragment string) []string {
	s.remainder += fragment

	var sentences []string
	for {
		end := firstBoundary(s.remainder)
		if end < 0 {
			break
		}
		sentence := strings.TrimSpace(s.remainder[:end])
		s.remainder = s.remainder[end:]
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
	}
	return sentences
}

// Flush returns the trimmed remainder and clears it.
func (s *Segmenter) Flush() string {
	rest := strings.TrimSpace(s.remainder)
	s.remainder = ""
	return rest
}

// Remainder returns the pending text without clearing it.
func (s *Segmenter) Remainder() string {
	return s.remainder
}

// firstBoundary returns the index just past the earliest terminator that is
// followed by whitespace, or -1.
func firstBoundary(text string) int {
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			switch text[i+1] {
			case ' ', '\n', '\t', '\r':
				return i + 1
			}
		}
	}
	return -1
}
