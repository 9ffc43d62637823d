package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Generic terms that carry no identity in a hotel name. The catalog mixes
// Latin and Cyrillic listings, so both alphabets appear here.
var nameStopwords = map[string]struct{}{
	"hotel": {}, "hostel": {}, "resort": {}, "spa": {}, "apartments": {},
	"apartment": {}, "suites": {}, "suite": {}, "inn": {}, "villa": {},
	"villas": {}, "lodge": {}, "motel": {}, "camp": {}, "guesthouse": {},
	"guest": {}, "house": {}, "boutique": {}, "design": {}, "chain": {},
	"and": {}, "the": {}, "a": {},
	"отель": {}, "готель": {}, "апартаменты": {}, "апартаменти": {},
	"гостиница": {}, "гост": {}, "хостел": {}, "резорт": {}, "вилла": {},
	"пансион": {}, "мотель": {},
}

// Street-suffix abbreviations, long and dotted forms folded to one canon.
var addrAbbrev = map[string]string{
	"street": "str", "str.": "str", "st.": "str", "st": "str",
	"avenue": "ave", "ave.": "ave",
	"boulevard": "blvd", "blvd.": "blvd",
	"road": "rd", "rd.": "rd",
	"lane": "ln", "ln.": "ln",
	"drive": "dr", "dr.": "dr",
	"place": "pl", "pl.": "pl",
}

var dropMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripDiacritics(s string) string {
	out, _, err := transform.String(dropMarks, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName lowercases, strips diacritics and punctuation, rewrites "&"
// as "and", collapses whitespace and removes stopwords. Tokens shorter than
// two runes are dropped. Total: malformed input yields "".
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	s := stripDiacritics(strings.ToLower(strings.TrimSpace(name)))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	var out []string
	for _, t := range strings.Fields(s) {
		if len([]rune(t)) < 2 {
			continue
		}
		if _, stop := nameStopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// NameTokens returns the indexable token set of a raw name: normalized
// tokens of at least three runes.
func NameTokens(name string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range strings.Fields(NormalizeName(name)) {
		if len([]rune(t)) >= 3 {
			set[t] = struct{}{}
		}
	}
	return set
}

// NormalizeAddress lowercases, strips diacritics, keeps dots so dotted
// suffixes still hit the abbreviation table, and folds each token through it.
func NormalizeAddress(addr string) string {
	if addr == "" {
		return ""
	}
	s := stripDiacritics(strings.ToLower(strings.TrimSpace(addr)))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	var out []string
	for _, t := range strings.Fields(s) {
		if canon, ok := addrAbbrev[t]; ok {
			t = canon
		}
		out = append(out, t)
	}
	return strings.Join(out, " ")
}

// AddressTokens returns the token set of a normalized address.
func AddressTokens(addr string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, t := range strings.Fields(NormalizeAddress(addr)) {
		set[t] = struct{}{}
	}
	return set
}

// NormalizeSite reduces a URL to its bare host: no scheme, no leading
// "www.", no path, no trailing slash.
func NormalizeSite(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimRight(s, "/")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return s
}

// NormalizePhone keeps digits only, preserving one leading "+". Returns ""
// when the input carries no digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + b.String()
	}
	return b.String()
}

// Jaccard over token sets. Either set empty means no evidence, scored 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
