package arbiter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Abstain is the selected_id an oracle returns when no candidate fits
const Abstain = "NONE"

// ErrMalformed is returned when an oracle reply does not satisfy the
// verdict schema
var ErrMalformed = errors.New("malformed arbitration response")

// Verdict is the only reply shape accepted from an oracle
type Verdict struct {
	SelectedID string `json:"selected_id" validate:"required,max=128"`
	Rationale  string `json:"rationale" validate:"max=2000"`
}

var (
	validate       = validator.New()
	jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")
)

// ParseVerdict decodes content strictly: unknown fields, trailing data and
// missing selected_id are rejected. A reply wrapped in a markdown code
// fence is unwrapped first.
func ParseVerdict(content string) (*Verdict, error) {
	content = strings.TrimSpace(content)

	v, err := decodeStrict(content)
	if err == nil {
		return v, nil
	}
	if matches := jsonBlockRegex.FindStringSubmatch(content); len(matches) >= 2 {
		if v, fenceErr := decodeStrict(strings.TrimSpace(matches[1])); fenceErr == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
}

func decodeStrict(content string) (*Verdict, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()

	var v Verdict
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after verdict")
	}
	v.SelectedID = strings.TrimSpace(v.SelectedID)
	if err := validate.Struct(v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Abstained reports whether the verdict declines to choose
func (v *Verdict) Abstained() bool {
	return strings.EqualFold(v.SelectedID, Abstain)
}
