package utils

import "strings"

// homoglyphs maps look-alike letters (mostly Lisu script) that show up in
// decorated channel and category names to plain ASCII capitals.
var homoglyphs = map[rune]rune{
	'ꓮ': 'A', 'ꓐ': 'B', 'ꓚ': 'C', 'ꓓ': 'D', 'ꓰ': 'E', 'ꓝ': 'F', 'ꓖ': 'G', 'ꓧ': 'H',
	'ꓲ': 'I', 'ꓙ': 'J', 'ꓗ': 'K', 'ꓡ': 'L', 'ꓟ': 'M', 'ꓠ': 'N', 'ꓳ': 'O', 'ꓑ': 'P',
	'𝘘': 'Q', 'ꓣ': 'R', 'ꓢ': 'S', 'ꓔ': 'T', 'ꓴ': 'U', 'ꓦ': 'V', 'ꓪ': 'W', 'ꓫ': 'X',
	'ꓬ': 'Y', 'ꓜ': 'Z',
}

// Sanitize makes name safe to use as a file or directory name. Only ASCII
// letters and digits, space, '-', '_' and '.' survive; surrounding
// whitespace is trimmed. The result may be empty.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafeRune(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '-', r == '_', r == '.':
		return true
	}
	return false
}

// SafePathSegment sanitizes name and falls back to fallback when nothing is left.
func SafePathSegment(name, fallback string) string {
	if s := Sanitize(name); s != "" && s != "." && s != ".." {
		return s
	}
	return Sanitize(fallback)
}

// NormalizeHomoglyphs replaces the known fake capitals with their ASCII
// counterparts. Every other rune is kept as is.
func NormalizeHomoglyphs(text string) string {
	return strings.Map(func(r rune) rune {
		if ascii, ok := homoglyphs[r]; ok {
			return ascii
		}
		return r
	}, text)
}
