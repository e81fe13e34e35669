package slug

import (
	"strings"
	"unicode"
)

// DefaultMaxLength bounds each segment produced by Make.
const DefaultMaxLength = 64

// Option configures Make.
type Option func(*config)

type config struct {
	maxLength int
	separator string
}

// MaxLength caps the segment length in runes. Zero disables the cap.
func MaxLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxLength = n
		}
	}
}

// Separator replaces the default "-" between words.
func Separator(s string) Option {
	return func(c *config) {
		if s != "" {
			c.separator = s
		}
	}
}

// Make turns s into a lowercase URL segment. Latin diacritics fold to
// ASCII, every other run of non-alphanumerics becomes one separator.
func Make(s string, opts ...Option) string {
	cfg := config{maxLength: DefaultMaxLength, separator: "-"}
	for _, opt := range opts {
		opt(&cfg)
	}

	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	n := 0
	for _, r := range s {
		r = unicode.ToLower(r)
		if folded, ok := diacritics[r]; ok {
			r = folded
		}
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			pendingSep = n > 0
			continue
		}

		sepLen := 0
		if pendingSep {
			sepLen = len(cfg.separator)
		}
		if cfg.maxLength > 0 && n+sepLen+1 > cfg.maxLength {
			break
		}
		if pendingSep {
			b.WriteString(cfg.separator)
			n += sepLen
			pendingSep = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Path slugs each part with Make and joins the non-empty results with "/".
// Level URLs take the shape author/name.
func Path(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := Make(p); s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, "/")
}

// diacritics folds lowercase Latin letters to ASCII. Input is lowered
// before lookup.
var diacritics = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a', 'ă': 'a', 'ą': 'a', 'æ': 'a',
	'ç': 'c', 'ć': 'c', 'č': 'c',
	'đ': 'd', 'ď': 'd',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e', 'ė': 'e', 'ę': 'e', 'ě': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i', 'ī': 'i', 'į': 'i',
	'ł': 'l',
	'ñ': 'n', 'ń': 'n', 'ň': 'n',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o', 'œ': 'o',
	'ř': 'r',
	'ś': 's', 'š': 's', 'ș': 's', 'ß': 's',
	'ť': 't', 'ț': 't',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u', 'ū': 'u', 'ů': 'u', 'ų': 'u',
	'ý': 'y', 'ÿ': 'y',
	'ź': 'z', 'ž': 'z', 'ż': 'z',
}
