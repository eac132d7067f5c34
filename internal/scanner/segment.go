package scanner

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const minSegmentLength = 3

// Segment splits a raw scan into product codes. Scanners sometimes fire
// several labels into one burst with only the shared prefix between them;
// such a burst is cut before every prefix occurrence. Anything else is
// returned whole.
func Segment(raw, prefix string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if prefix == "" || !strings.Contains(s, prefix) {
		return []string{s}
	}

	var starts []int
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], prefix)
		if j < 0 {
			break
		}
		starts = append(starts, i+j)
		i += j + len(prefix)
	}

	seen := make(map[string]bool, len(starts))
	codes := make([]string, 0, len(starts))
	for k, start := range starts {
		end := len(s)
		if k+1 < len(starts) {
			end = starts[k+1]
		}
		piece := strings.TrimRightFunc(s[start:end], isSeparator)
		if utf8.RuneCountInString(piece) < minSegmentLength || !strings.HasPrefix(piece, prefix) {
			continue
		}
		if seen[piece] {
			continue
		}
		seen[piece] = true
		codes = append(codes, piece)
	}

	if len(codes) > 1 {
		return codes
	}
	return []string{s}
}

// isSeparator matches the punctuation and spacing a scanner leaves between
// concatenated labels.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
