package delivery

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncationMarker is appended to text shortened by hard truncation.
const TruncationMarker = "..."

// Chunk is one transport-legal piece of an outbound message.
// Only the first chunk of a send carries reply markup and the reply-to
// reference. Chunks are replaced, never modified.
type Chunk struct {
	Text  string
	Index int
	First bool
}

// Boundaries tried in order when a piece of text does not fit: paragraphs,
// lines, sentences, words. Each unit keeps its trailing separator so the
// units concatenate back to the input.
var splitLevels = []*regexp.Regexp{
	regexp.MustCompile(`\n[ \t]*\n\s*`),
	regexp.MustCompile(`\n`),
	regexp.MustCompile(`[.!?]\s+`),
	regexp.MustCompile(`\s+`),
}

// Split breaks text into pieces of at most maxLength runes, preferring
// paragraph, then line, then sentence, then word boundaries. A single word
// longer than maxLength is truncated with TruncationMarker; that is the only
// case where content is lost. Text that already fits is returned unchanged
// as a one-element slice. Returned pieces are trimmed and never empty.
func Split(text string, maxLength int) []string {
	return split(text, maxLength, TruncationMarker)
}

func split(text string, maxLength int, marker string) []string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	for _, c := range pack(text, maxLength, 0, marker) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// pack accumulates units of the given level while they fit and descends
// one level for any unit that is too large on its own.
func pack(text string, maxLength, level int, marker string) []string {
	if visibleLen(text) <= maxLength {
		return []string{text}
	}
	if level == len(splitLevels) {
		return []string{truncate(text, maxLength, marker)}
	}

	var chunks []string
	current := ""
	for _, unit := range cutAfter(text, splitLevels[level]) {
		if visibleLen(current+unit) <= maxLength {
			current += unit
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
		if visibleLen(unit) <= maxLength {
			current = unit
			continue
		}
		chunks = append(chunks, pack(unit, maxLength, level+1, marker)...)
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// cutAfter splits text after every match of sep.
func cutAfter(text string, sep *regexp.Regexp) []string {
	var units []string
	start := 0
	for _, loc := range sep.FindAllStringIndex(text, -1) {
		if loc[1] <= start {
			continue
		}
		units = append(units, text[start:loc[1]])
		start = loc[1]
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return units
}

// truncate shortens text to maxLength runes including marker. The cut never
// leaves an unpaired escape backslash at the end.
func truncate(text string, maxLength int, marker string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	markerLen := utf8.RuneCountInString(marker)
	if maxLength <= markerLen {
		return string(dropDangling(runes[:maxLength]))
	}
	return string(dropDangling(runes[:maxLength-markerLen])) + marker
}

// truncatePlain cuts unescaped text to maxLength runes, marker included.
// The text is kept as is, so a trailing backslash survives.
func truncatePlain(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	keep := maxLength - utf8.RuneCountInString(TruncationMarker)
	if keep <= 0 {
		return string(runes[:maxLength])
	}
	return string(runes[:keep]) + TruncationMarker
}

// SplitHalf cuts text near its middle, on the closest newline, sentence end
// or space within window runes of the midpoint, in that order of preference.
// Without a natural break it cuts at the midpoint. ok is false when text
// cannot be divided into two non-empty halves.
func SplitHalf(text string, window int) (left, right string, ok bool) {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) < 2 {
		return "", "", false
	}

	mid := len(runes) / 2
	cut := nearestBreak(runes, mid, window)
	if cut < 0 {
		cut = mid
		if len(dropDangling(runes[:cut])) < cut {
			cut--
		}
	}

	left = strings.TrimSpace(string(runes[:cut]))
	right = strings.TrimSpace(string(runes[cut:]))
	if left == "" || right == "" {
		return "", "", false
	}
	return left, right, true
}

// breakPreference holds predicates reporting whether cutting before
// runes[i] lands on a natural break.
var breakPreference = []func(runes []rune, i int) bool{
	func(runes []rune, i int) bool { return runes[i-1] == '\n' },
	func(runes []rune, i int) bool {
		return i >= 2 && unicode.IsSpace(runes[i-1]) && strings.ContainsRune(".!?", runes[i-2])
	},
	func(runes []rune, i int) bool { return unicode.IsSpace(runes[i-1]) },
}

func nearestBreak(runes []rune, mid, window int) int {
	for _, isBreak := range breakPreference {
		for d := 0; d <= window; d++ {
			if i := mid - d; i > 0 && i < len(runes) && isBreak(runes, i) {
				return i
			}
			if i := mid + d; i > 0 && i < len(runes) && isBreak(runes, i) {
				return i
			}
		}
	}
	return -1
}

// dropDangling removes a trailing backslash that would escape nothing.
func dropDangling(runes []rune) []rune {
	n := 0
	for i := len(runes) - 1; i >= 0 && runes[i] == '\\'; i-- {
		n++
	}
	if n%2 == 1 {
		return runes[:len(runes)-1]
	}
	return runes
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
