package normalize

import (
	"sort"
	"strings"
	"unicode"
)

var legalSuffixes = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "co": true,
	"corp": true, "company": true, "corporation": true,
}

var genericWords = map[string]bool{
	"promotional": true, "promo": true, "products": true, "marketing": true,
	"printing": true, "group": true, "agency": true, "solutions": true, "services": true,
}

// segmentWords are recognised at the end of run-together tokens, so
// "allpromos" splits into "all promos". Longest first.
var segmentWords = []string{
	"promotional", "marketing", "solutions", "products", "printing", "services",
	"supplies", "graphics", "apparel", "designs", "agency", "brands", "promos",
	"prints", "supply", "design", "group", "promo", "print", "gear", "wear",
}

var digitWords = [...]string{"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}

var freeMailDomains = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true, "ymail.com": true,
	"outlook.com": true, "hotmail.com": true, "live.com": true, "msn.com": true,
	"aol.com": true, "icloud.com": true, "me.com": true, "mac.com": true,
	"protonmail.com": true, "proton.me": true, "comcast.net": true, "att.net": true,
	"verizon.net": true, "gmx.com": true, "mail.com": true, "zoho.com": true,
}

// IsFreeMail reports whether domain belongs to a consumer mail provider.
// Such domains identify nobody and are skipped by domain matching.
func IsFreeMail(domain string) bool {
	return freeMailDomains[strings.ToLower(domain)]
}

// Key singularizes every token of a normalized name so that plural and
// singular spellings route identically
func Key(name string) string {
	tokens := strings.Fields(name)
	for i, t := range tokens {
		tokens[i] = singular(t)
	}
	return strings.Join(tokens, " ")
}

func singular(t string) string {
	switch {
	case len(t) <= 3:
		return t
	case strings.HasSuffix(t, "ies"):
		return t[:len(t)-3] + "y"
	case strings.HasSuffix(t, "ss"), strings.HasSuffix(t, "us"), strings.HasSuffix(t, "is"):
		return t
	case strings.HasSuffix(t, "s"):
		return t[:len(t)-1]
	}
	return t
}

// Root drops legal suffixes and generic industry words from a normalized
// name. The result is empty when nothing distinctive remains.
func Root(name string) string {
	tokens := strings.Fields(name)
	kept := tokens[:0:0]
	for _, t := range tokens {
		if legalSuffixes[t] || genericWords[t] {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

// Expansions returns the alternate spellings of a normalized name used for
// lexical retrieval only. The result is deduplicated, sorted and never
// contains name itself.
func Expansions(name, root string, hasDomain bool) []string {
	if name == "" {
		return nil
	}

	seen := map[string]bool{name: true}
	var out []string
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	split := splitRuns(name)
	add(split)
	add(spellDigits(split))
	add(strings.ReplaceAll(name, " ", ""))
	if root != "" && root != name {
		add(splitRuns(root))
	}
	if !hasDomain {
		if compact := alnum(name); compact != "" {
			add(compact + ".com")
		}
	}

	sort.Strings(out)
	return out
}

// splitRuns separates digit/letter boundaries and peels known trailing
// words off run-together tokens
func splitRuns(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if i > 0 && prev != ' ' && r != ' ' && unicode.IsDigit(prev) != unicode.IsDigit(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}

	tokens := strings.Fields(b.String())
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, segment(t)...)
	}
	return strings.Join(out, " ")
}

func segment(t string) []string {
	for _, w := range segmentWords {
		if strings.HasSuffix(t, w) && len(t)-len(w) >= 2 {
			return []string{t[:len(t)-len(w)], w}
		}
	}
	return []string{t}
}

// spellDigits replaces every digit with its English word
func spellDigits(s string) string {
	if !strings.ContainsFunc(s, unicode.IsDigit) {
		return s
	}
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !strings.ContainsFunc(t, unicode.IsDigit) {
			out = append(out, t)
			continue
		}
		for _, r := range t {
			if r >= '0' && r <= '9' {
				out = append(out, digitWords[r-'0'])
			}
		}
	}
	return strings.Join(out, " ")
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
