package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"

	"github.com/dshills/entityres/pkg/types"
)

const fieldSep = " | "

// QueryText is the canonical projection of a query that is embedded for
// vector retrieval: name | email | domain | city state | phone
func QueryText(nq *types.NormalizedQuery) string {
	email := nq.Email.OrElse(nq.SenderEmail.OrElse(""))
	return join(
		nq.Name.OrElse(""),
		email,
		nq.Domain.OrElse(""),
		strings.TrimSpace(nq.City.OrElse("")+" "+nq.State.OrElse("")),
		nq.Phone.OrElse(""),
	)
}

// EntryText is the canonical projection of a registry entry. It uses the
// same field order as QueryText so both sides embed comparably; aliases
// trail the projection since queries never carry them.
func EntryText(e *types.Entry) string {
	email := Email(e.Email)
	text := join(
		Name(e.Name),
		email,
		Domain(email),
		Text(e.Address.City+" "+e.Address.State),
		Phone(e.Phone),
	)
	if len(e.Aliases) == 0 {
		return text
	}
	aliases := make([]string, 0, len(e.Aliases))
	for _, a := range e.Aliases {
		if n := Name(a); n != "" {
			aliases = append(aliases, n)
		}
	}
	if len(aliases) == 0 {
		return text
	}
	// the registry stores one alias per normalized form
	slices.Sort(aliases)
	aliases = slices.Compact(aliases)
	return text + fieldSep + "aka " + strings.Join(aliases, ", ")
}

// SourceHash fingerprints canonical text. A stored embedding is current only
// while its hash equals the hash of the entry's present EntryText.
func SourceHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, fieldSep)
}
