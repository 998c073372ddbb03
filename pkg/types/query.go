package types

// Query is a single resolution request as produced by upstream extraction.
// Every field is optional; absent fields are never queried.
type Query struct {
	Kind Kind `json:"kind,omitempty"`

	ID          Optional[string]  `json:"id,omitzero"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	Name     Optional[string] `json:"name,omitzero"`
	JobTitle Optional[string] `json:"job_title,omitzero"`

	Email               Optional[string] `json:"email,omitzero"`
	SenderEmail         Optional[string] `json:"sender_email,omitzero"`
	OriginalSenderEmail Optional[string] `json:"original_sender_email,omitzero"`

	Phone Optional[string] `json:"phone,omitzero"`
	City  Optional[string] `json:"city,omitzero"`
	State Optional[string] `json:"state,omitzero"`
}

// NormalizedQuery is the canonical, comparable form of a Query
type NormalizedQuery struct {
	Kind Kind `json:"kind,omitempty"`

	ID          Optional[string]  `json:"id,omitzero"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	// Name is lowercased, whitespace-collapsed with & expanded.
	// Key additionally singularizes tokens; Root strips legal suffixes and
	// generic industry words.
	Name Optional[string] `json:"name,omitzero"`
	Key  Optional[string] `json:"key,omitzero"`
	Root Optional[string] `json:"root,omitzero"`

	JobTitle Optional[string] `json:"job_title,omitzero"`

	Email       Optional[string] `json:"email,omitzero"`
	SenderEmail Optional[string] `json:"sender_email,omitzero"`
	Domain      Optional[string] `json:"domain,omitzero"`

	Phone Optional[string] `json:"phone,omitzero"`
	City  Optional[string] `json:"city,omitzero"`
	State Optional[string] `json:"state,omitzero"`

	// Expansions feed only the lexical retriever
	Expansions []string `json:"expansions,omitempty"`
}

// Usable reports whether the query carries at least one of identifier,
// email or name
func (q *NormalizedQuery) Usable() bool {
	return q.ID.IsSome() || len(q.ExternalIDs) > 0 ||
		q.Email.IsSome() || q.SenderEmail.IsSome() || q.Name.IsSome()
}

// Emails returns the present query emails, primary first
func (q *NormalizedQuery) Emails() []string {
	emails := make([]string, 0, 2)
	if v, ok := q.Email.Get(); ok {
		emails = append(emails, v)
	}
	if v, ok := q.SenderEmail.Get(); ok && v != q.Email.OrElse("") {
		emails = append(emails, v)
	}
	return emails
}
