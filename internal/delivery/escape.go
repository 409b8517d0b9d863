package delivery

import (
	"fmt"
	"strings"
)

// Mode is the rich-text dialect applied to outbound text.
type Mode int

const (
	// ModeNone sends text verbatim with no parse mode.
	ModeNone Mode = iota
	// ModeBasic is the legacy Markdown dialect. Text is sent as written.
	ModeBasic
	// ModeStrict is MarkdownV2. Every reserved character is escaped.
	ModeStrict
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeBasic:
		return "basic"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a configuration or API value into a Mode.
// The empty string maps to ModeNone.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "plain":
		return ModeNone, nil
	case "basic", "markdown":
		return ModeBasic, nil
	case "strict", "markdownv2":
		return ModeStrict, nil
	default:
		return ModeNone, fmt.Errorf("delivery: unknown mode %q", s)
	}
}

// strictReserved lists every character that must be escaped in MarkdownV2.
// The backslash itself is included so literal backslashes survive parsing.
var strictReserved = strings.NewReplacer(
	`\`, `\\`,
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`#`, `\#`,
	`+`, `\+`,
	`-`, `\-`,
	`=`, `\=`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`.`, `\.`,
	`!`, `\!`,
)

// Escape prepares raw text for the given mode. Only ModeStrict changes the
// text. It must be applied exactly once per message, before splitting:
// escaping already escaped text doubles every marker.
func Escape(text string, mode Mode) string {
	if mode != ModeStrict {
		return text
	}
	return strictReserved.Replace(text)
}

// Unescape reverses Escape. It is used when a request falls back to plain
// text after the remote side rejected its markup.
func Unescape(text string, mode Mode) string {
	if mode != ModeStrict || !strings.Contains(text, `\`) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	escaped := false
	for _, r := range text {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}
