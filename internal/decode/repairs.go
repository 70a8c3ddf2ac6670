package decode

import "strings"

// Repair is one named text transformation applied before the second parse.
type Repair struct {
	Name  string
	Apply func(string) string
}

// Repairs run in this order.
var Repairs = []Repair{
	{"strip_bom", StripBOM},
	{"trim_space", strings.TrimSpace},
	{"strip_code_fence", StripCodeFence},
	{"strip_control_chars", StripControlChars},
	{"remove_trailing_commas", RemoveTrailingCommas},
	{"normalize_escaped_quotes", NormalizeEscapedQuotes},
}

// Clean runs every repair over s.
func Clean(s string) string {
	for _, r := range Repairs {
		s = r.Apply(s)
	}
	return s
}

// StripBOM removes leading byte-order marks, including repeated ones and
// ones preceded by whitespace.
func StripBOM(s string) string {
	return strings.TrimLeft(s, " \t\r\n\uFEFF")
}

// StripCodeFence unwraps a markdown fence such as ```json ... ```.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	nl := strings.IndexByte(t, '\n')
	if nl < 0 {
		return s
	}
	t = t[nl+1:]
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// StripControlChars drops C0 controls and DEL, keeping newline, carriage
// return and tab.
func StripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// RemoveTrailingCommas drops a comma that is followed only by whitespace and
// a closing brace or bracket. Commas inside string literals are kept.
func RemoveTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// NormalizeEscapedQuotes rewrites the invalid escape \' as a plain quote.
// An escaped backslash followed by a quote is left alone.
func NormalizeEscapedQuotes(s string) string {
	if !strings.Contains(s, `\'`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		if next == '\'' {
			b.WriteByte('\'')
		} else {
			b.WriteByte(c)
			b.WriteByte(next)
		}
		i++
	}
	return b.String()
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
