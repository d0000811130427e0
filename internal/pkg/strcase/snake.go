// Package strcase converts Go identifiers into wire-style names.
package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake turns UserID into user_id and HTTPServer into http_server.
// A new word starts at an upper case rune that follows a lower case rune or
// digit, or that ends an acronym and is followed by a lower case rune.
func ToLowerSnake(s string) string {
	rs := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prev := rs[i-1]
			endsAcronym := unicode.IsUpper(prev) && i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || endsAcronym {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
