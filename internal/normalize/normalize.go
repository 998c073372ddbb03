package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/entityres/pkg/types"
)

// Normalizer canonicalizes raw query fields. It is deterministic and has no
// side effects, so one instance can be shared across goroutines.
type Normalizer struct {
	ownDomains []string
}

// New creates a Normalizer. ownDomains are the operator's own email domains;
// addresses on them are never treated as the external entity's contact.
func New(ownDomains []string) *Normalizer {
	domains := make([]string, 0, len(ownDomains))
	for _, d := range ownDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Normalizer{ownDomains: domains}
}

// Normalize produces the canonical form of q
func (n *Normalizer) Normalize(q types.Query) types.NormalizedQuery {
	nq := types.NormalizedQuery{
		Kind:        q.Kind,
		ExternalIDs: normalizeExternalIDs(q.ExternalIDs),
	}

	if id, ok := q.ID.Get(); ok {
		nq.ID = types.NonEmpty(strings.TrimSpace(id))
	}

	if raw, ok := q.Name.Get(); ok {
		if name := Name(raw); name != "" {
			nq.Name = types.Some(name)
			nq.Key = types.NonEmpty(Key(name))
			nq.Root = types.NonEmpty(Root(name))
		}
	}

	if raw, ok := q.JobTitle.Get(); ok {
		nq.JobTitle = types.NonEmpty(Text(raw))
	}

	nq.Email, nq.SenderEmail = n.contactEmails(q)
	if email, ok := nq.Email.Get(); ok {
		nq.Domain = types.NonEmpty(Domain(email))
	} else if sender, ok := nq.SenderEmail.Get(); ok {
		nq.Domain = types.NonEmpty(Domain(sender))
	}

	if raw, ok := q.Phone.Get(); ok {
		nq.Phone = types.NonEmpty(Phone(raw))
	}
	if raw, ok := q.City.Get(); ok {
		nq.City = types.NonEmpty(Text(raw))
	}
	if raw, ok := q.State.Get(); ok {
		nq.State = types.NonEmpty(Text(raw))
	}

	nq.Expansions = Expansions(nq.Name.OrElse(""), nq.Root.OrElse(""), nq.Domain.IsSome())
	return nq
}

// contactEmails applies the own-domain rule to the customer and sender
// emails. An own-domain address is replaced by the upstream original sender
// when that is external, otherwise dropped.
func (n *Normalizer) contactEmails(q types.Query) (types.Optional[string], types.Optional[string]) {
	original := types.None[string]()
	if raw, ok := q.OriginalSenderEmail.Get(); ok {
		if e := Email(raw); e != "" && !n.IsOwnDomain(Domain(e)) {
			original = types.Some(e)
		}
	}

	pick := func(field types.Optional[string]) types.Optional[string] {
		raw, ok := field.Get()
		if !ok {
			return types.None[string]()
		}
		e := Email(raw)
		if e == "" {
			return types.None[string]()
		}
		if n.IsOwnDomain(Domain(e)) {
			return original
		}
		return types.Some(e)
	}

	email := pick(q.Email)
	sender := pick(q.SenderEmail)
	if !sender.IsSome() && original.IsSome() && !q.SenderEmail.IsSome() {
		sender = original
	}
	if s, ok := sender.Get(); ok && s == email.OrElse("") {
		sender = types.None[string]()
	}
	return email, sender
}

// IsOwnDomain reports whether domain is (or is a subdomain of) an operator domain
func (n *Normalizer) IsOwnDomain(domain string) bool {
	if domain == "" {
		return false
	}
	for _, own := range n.ownDomains {
		if domain == own || strings.HasSuffix(domain, "."+own) {
			return true
		}
	}
	return false
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold strips diacritics so "Café" and "Cafe" compare equal
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// Text lowercases, folds diacritics, trims and collapses whitespace
func Text(s string) string {
	return strings.Join(strings.Fields(fold(strings.ToLower(s))), " ")
}

// Name normalizes an entity name: Text plus & expansion and punctuation
// removal. Apostrophes and periods are dropped; other punctuation separates
// words.
func Name(s string) string {
	s = fold(strings.ToLower(s))
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '.' || r == '’':
			// dropped
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Phone strips every non-digit character
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Email lowercases and trims an address. Anything that is not a single
// local@domain pair normalizes to the empty string.
func Email(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "mailto:")
	s = strings.Trim(s, "<>")
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") || strings.ContainsAny(s, " \t") {
		return ""
	}
	return s
}

// Domain returns the part of a normalized email after '@'
func Domain(email string) string {
	_, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	return domain
}

func normalizeExternalIDs(ids map[string]string) map[string]string {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]string, len(ids))
	for scheme, value := range ids {
		scheme = strings.ToLower(strings.TrimSpace(scheme))
		value = strings.TrimSpace(value)
		if scheme != "" && value != "" {
			out[scheme] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
