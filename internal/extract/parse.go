package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// A numeric token: optional sign, digits, at most one '.' or ',' decimal part, and an
// optional unit marker glued to the end ("24.5C", "60%").
var numberRe = regexp.MustCompile(`^([+-]?\d+(?:[.,]\d+)?)(°C|°c|°|C|c|%RH|%rh|%|RH|rh)?$`)

func parseNumber(text string) (float64, UnitHint, bool) {
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return 0, HintUnknown, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, HintUnknown, false
	}
	if v == 0 {
		v = 0 // drop the sign of "-0"
	}
	return v, suffixHint(m[2]), true
}

func suffixHint(s string) UnitHint {
	switch s {
	case "":
		return HintUnknown
	case "%", "%RH", "%rh", "RH", "rh":
		return HintPercent
	default:
		return HintCelsius
	}
}

// hintOf reads unit evidence from a non-numeric token.
func hintOf(text string) UnitHint {
	if strings.Contains(text, "°F") {
		return HintUnknown
	}
	celsius := text == "c" || strings.ContainsAny(text, "°C")
	percent := strings.Contains(text, "%") || strings.Contains(text, "RH")
	switch {
	case celsius && percent:
		return HintUnknown
	case celsius:
		return HintCelsius
	case percent:
		return HintPercent
	}
	return HintUnknown
}

// candidates parses admitted tokens into numeric candidates and attaches neighbour hints.
func (e *Engine) candidates(tokens []Token) []Candidate {
	admitted := admit(tokens, e.opts.MinConfidence)

	slots := make([]int, len(admitted))
	var cands []Candidate
	for i, t := range admitted {
		v, h, ok := parseNumber(t.Text)
		if !ok {
			slots[i] = -1
			continue
		}
		slots[i] = len(cands)
		cands = append(cands, Candidate{
			Value:      v,
			Hint:       h,
			Sources:    []Token{t},
			Confidence: t.Confidence,
			order:      len(cands),
		})
	}

	for i, t := range admitted {
		if slots[i] >= 0 {
			continue
		}
		h := hintOf(t.Text)
		if h == HintUnknown {
			continue
		}
		if c := unhintedNeighbour(cands, slots, i); c != nil {
			c.Hint = h
			c.Sources = append(c.Sources, t)
			c.Confidence = min(c.Confidence, t.Confidence)
		}
	}
	return cands
}

// unhintedNeighbour prefers the token right before i, then the one right after.
func unhintedNeighbour(cands []Candidate, slots []int, i int) *Candidate {
	for _, j := range [2]int{i - 1, i + 1} {
		if j < 0 || j >= len(slots) || slots[j] < 0 {
			continue
		}
		if c := &cands[slots[j]]; c.Hint == HintUnknown {
			return c
		}
	}
	return nil
}
