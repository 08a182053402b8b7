package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// glyphs NFKC either leaves alone or folds into something unhelpful.
var preNormalize = strings.NewReplacer(
	"º", "°", // masculine ordinal, NFKC would turn it into "o"
	"˚", "°", // ring above
	"−", "-", // minus sign
)

// normalizeText folds compatibility forms so "℃" reads "°C" and full-width digits become ASCII.
func normalizeText(s string) string {
	return norm.NFKC.String(preNormalize.Replace(s))
}

// admit drops low-confidence tokens and splits the rest into whitespace-separated pieces
// that keep the parent's confidence and box.
func admit(tokens []Token, minConfidence float64) []Token {
	out := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if !(t.Confidence >= minConfidence) { // also rejects NaN
			continue
		}
		for _, part := range strings.Fields(normalizeText(t.Text)) {
			out = append(out, Token{Text: part, Confidence: t.Confidence, Box: t.Box})
		}
	}
	return out
}
