package export

import "strings"

// FormatGenres renders tags as a bracketed, quote-delimited list, e.g.
// ['pop', 'dance pop']. Tags containing only an apostrophe use double
// quotes. Backslashes and the delimiting quote are backslash-escaped.
func FormatGenres(tags []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, t := range tags {
		if i > 0 {
			b.WriteString(", ")
		}
		q := byte('\'')
		if strings.ContainsRune(t, '\'') && !strings.ContainsRune(t, '"') {
			q = '"'
		}
		b.WriteByte(q)
		for j := 0; j < len(t); j++ {
			if t[j] == '\\' || t[j] == q {
				b.WriteByte('\\')
			}
			b.WriteByte(t[j])
		}
		b.WriteByte(q)
	}
	b.WriteByte(']')
	return b.String()
}

// ParseGenres reads a genre cell back into a set of tags, keeping first-seen
// order. It accepts quoted lists as written by FormatGenres as well as bare
// comma separated text.
func ParseGenres(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	var tags []string
	seen := make(map[string]bool)
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}

	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '\'', '"':
			tag, next := unquote(s, i+1, c)
			add(tag)
			i = next
		case ',', ' ':
			i++
		default:
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = len(s) - i
			}
			add(s[i : i+end])
			i += end
		}
	}
	return tags
}

// unquote reads a quoted tag starting at s[i] up to the closing q and
// returns it with escapes removed, plus the index after the closing quote.
// An unterminated tag runs to the end of s.
func unquote(s string, i int, q byte) (string, int) {
	var b strings.Builder
	for i < len(s) {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			b.WriteByte(s[i+1])
			i += 2
		case c == q:
			return b.String(), i + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), i
}
