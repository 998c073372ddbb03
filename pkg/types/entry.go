package types

import "time"

// Kind distinguishes the two resolvable entity families
type Kind string

const (
	KindCustomer Kind = "customer"
	KindContact  Kind = "contact"
)

// Address holds free-form postal fields
type Address struct {
	Line1      string `json:"line1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Verification carries the registry-confirming metadata written by the recorder
type Verification struct {
	Verified           bool      `json:"verified"`
	LastVerifiedAt     time.Time `json:"last_verified_at,omitzero"`
	LastVerifiedMethod Method    `json:"last_verified_method,omitempty"`
	Confidence         float64   `json:"verification_confidence"`
}

// Entry is one resolvable entity in the reference registry
type Entry struct {
	// Identification
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	// Names
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`

	// Contact fields
	Email    string  `json:"email,omitempty"`
	AltEmail string  `json:"alt_email,omitempty"`
	Phone    string  `json:"phone,omitempty"` // digits only
	JobTitle string  `json:"job_title,omitempty"`
	Address  Address `json:"address"`

	// ExternalIDs maps an identifier scheme (e.g. an industry membership
	// number) to its value
	ExternalIDs map[string]string `json:"external_ids,omitempty"`

	// Embedding is nil when the entry has not been embedded or its source
	// text changed since the last embedding
	Embedding     []float32 `json:"-"`
	EmbeddingHash string    `json:"-"`

	Active       bool         `json:"active"`
	Verification Verification `json:"verification"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Validate checks the entry invariants enforced before storage
func (e *Entry) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Name == "" {
		return ErrMissingName
	}
	switch e.Kind {
	case KindCustomer, KindContact:
	default:
		return ErrInvalidKind
	}
	return nil
}

// AllNames returns the display name followed by its aliases
func (e *Entry) AllNames() []string {
	names := make([]string, 0, 1+len(e.Aliases))
	names = append(names, e.Name)
	names = append(names, e.Aliases...)
	return names
}

// Emails returns the non-empty primary and alternate emails
func (e *Entry) Emails() []string {
	emails := make([]string, 0, 2)
	if e.Email != "" {
		emails = append(emails, e.Email)
	}
	if e.AltEmail != "" {
		emails = append(emails, e.AltEmail)
	}
	return emails
}
