package domain

import (
	"regexp"
	"strings"
)

// pricePattern matches "500,000원", "1500 원", "$12.99" and "12.99$".
const pricePattern = `\d[\d,]*(?:\.\d+)?\s?원|\$\s?\d+(?:\.\d+)?|\d+(?:\.\d+)?\s?\$`

var (
	bracketTagRe     = regexp.MustCompile(`\[[^\]]*\]|【[^】]*】`)
	trailingCountRe  = regexp.MustCompile(`\s*\(\d+\)\s*$`)
	priceRe          = regexp.MustCompile(pricePattern)
	priceAnnotatedRe = regexp.MustCompile(`\s*\(?\s*(?:` + pricePattern + `)\s*\)?`)
	freeShippingRe   = regexp.MustCompile(`(?i)무료\s?배송|무배|free\s?shipping|/\s*무료\s*(?:\)|$)|\(\s*무료\s*\)|^\s*무료\s*$`)
	shippingNoteRe   = regexp.MustCompile(`(?i)\s*[/|,]?\s*(?:무료\s?배송|무배|free\s?shipping)\s*`)
	// a bare "무료" counts only after a slash or alone in parentheses
	slashFreeRe   = regexp.MustCompile(`\s*/\s*무료\s*(\)|$)`)
	parenFreeRe   = regexp.MustCompile(`\(\s*무료\s*\)`)
	emptyParensRe = regexp.MustCompile(`\(\s*\)`)
	spacesRe      = regexp.MustCompile(`\s+`)
	pricePrefixRe = regexp.MustCompile(`^\s*(?:가격|price)\s*[:：]\s*`)
)

const edgeSeparators = " \t/|,·-~"

// CleanTitle strips bracketed tags, a trailing comment count and the price and
// free-shipping annotations community posters put in titles.
//
//	"[딜]삼성 TV 50인치 500,000원/무료배송(2)" -> "삼성 TV 50인치"
func CleanTitle(raw string) string {
	s := bracketTagRe.ReplaceAllString(raw, " ")
	s = trailingCountRe.ReplaceAllString(s, "")
	s = priceAnnotatedRe.ReplaceAllString(s, " ")
	s = shippingNoteRe.ReplaceAllString(s, " ")
	s = slashFreeRe.ReplaceAllString(s, "$1")
	s = parenFreeRe.ReplaceAllString(s, " ")
	s = emptyParensRe.ReplaceAllString(s, " ")
	s = trailingCountRe.ReplaceAllString(s, "")
	s = dropUnbalancedParens(s)
	s = spacesRe.ReplaceAllString(s, " ")
	return strings.Trim(s, edgeSeparators)
}

// dropUnbalancedParens removes the half of a "(...)" pair left behind when the
// annotation inside it was stripped.
func dropUnbalancedParens(s string) string {
	open, closing := strings.Count(s, "("), strings.Count(s, ")")
	switch {
	case open > 0 && closing == 0:
		return strings.ReplaceAll(s, "(", " ")
	case closing > 0 && open == 0:
		return strings.ReplaceAll(s, ")", " ")
	}
	return s
}

// ExtractPrice returns the first currency amount found in text, or PriceUnknown.
func ExtractPrice(text string) string {
	if m := priceRe.FindString(text); m != "" {
		return strings.TrimSpace(m)
	}
	return PriceUnknown
}

// NormalizePrice prefers a dedicated price element and falls back to the title.
func NormalizePrice(field, title string) string {
	field = strings.TrimSpace(field)
	if field != "" {
		if p := ExtractPrice(field); p != PriceUnknown {
			return p
		}
		if v := strings.TrimSpace(pricePrefixRe.ReplaceAllString(field, "")); v != "" {
			return v
		}
	}
	return ExtractPrice(title)
}

// ClassifyShipping reports ShippingFree when any text carries a free-shipping
// keyword, ShippingUnknown otherwise. A bare "무료" counts after a slash, in
// parentheses or as the whole text of a shipping field.
func ClassifyShipping(texts ...string) string {
	for _, t := range texts {
		if freeShippingRe.MatchString(t) {
			return ShippingFree
		}
	}
	return ShippingUnknown
}

// CleanText collapses whitespace in scraped text (authors, fallback fields).
func CleanText(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}
