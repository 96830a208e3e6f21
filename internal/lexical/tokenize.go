package lexical

import (
	"strings"
	"unicode"
)

// Tokenize lower-cases text and splits it into alphanumeric terms.
// Apostrophes inside a word are dropped along with a trailing possessive "s",
// so "Rust's" and "rust" produce the same term.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tokens = append(tokens, cur.String())
		cur.Reset()
	}

	runes := []rune(strings.ToLower(text))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		case isApostrophe(r) && cur.Len() > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]):
			// possessive: skip the "'s" entirely
			if runes[i+1] == 's' && (i+2 == len(runes) || !unicode.IsLetter(runes[i+2]) && !unicode.IsDigit(runes[i+2])) {
				i++
				continue
			}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}
