package matcher

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/entityres/internal/normalize"
	"github.com/dshills/entityres/internal/storage"
	"github.com/dshills/entityres/pkg/types"
)

// Stage names one deterministic lookup
type Stage string

const (
	StageNone        Stage = ""
	StageID          Stage = "id"
	StageExternalID  Stage = "external_id"
	StageEmail       Stage = "email"
	StageSenderEmail Stage = "sender_email"
	StageDomain      Stage = "domain"
	StageName        Stage = "name"
)

var stageEvidence = map[Stage]string{
	StageID:          types.EvidenceExactID,
	StageExternalID:  types.EvidenceExactExternalID,
	StageEmail:       types.EvidenceExactEmail,
	StageSenderEmail: types.EvidenceExactSenderEmail,
	StageDomain:      types.EvidenceExactDomain,
	StageName:        types.EvidenceExactName,
}

// Outcome is the result of the deterministic phase. Entries holds the hits
// of the first stage that produced any.
type Outcome struct {
	Stage   Stage
	Entries []*types.Entry
	// Lookups counts registry calls made
	Lookups int
}

// Unique reports whether a stage produced exactly one hit
func (o *Outcome) Unique() bool {
	return len(o.Entries) == 1
}

// Ambiguous reports whether a stage produced several hits
func (o *Outcome) Ambiguous() bool {
	return len(o.Entries) > 1
}

// Evidence returns the evidence tag of the deciding stage
func (o *Outcome) Evidence() string {
	return stageEvidence[o.Stage]
}

// lookup is one exact registry lookup
type lookup struct {
	stage Stage
	field storage.Field
	value string
}

// Matcher runs exact lookups in priority order and stops at the first stage
// with any hit
type Matcher struct {
	registry storage.Registry
	logger   *zap.Logger
}

// New creates a Matcher
func New(registry storage.Registry, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{registry: registry, logger: logger}
}

// Match runs the deterministic phase for nq. Registry failures wrap
// types.ErrStorage.
func (m *Matcher) Match(ctx context.Context, nq *types.NormalizedQuery) (*Outcome, error) {
	out := &Outcome{}
	for _, l := range plan(nq) {
		entries, err := m.registry.ExactLookup(ctx, nq.Kind, l.field, l.value)
		out.Lookups++
		if err != nil {
			return nil, fmt.Errorf("%w: exact %s lookup: %v", types.ErrStorage, l.stage, err)
		}
		if len(entries) == 0 {
			continue
		}

		out.Stage = l.stage
		out.Entries = entries
		m.logger.Debug("deterministic stage hit",
			zap.String("stage", string(l.stage)),
			zap.Int("hits", len(entries)))
		return out, nil
	}
	return out, nil
}

// plan lists the lookups for nq in priority order
func plan(nq *types.NormalizedQuery) []lookup {
	var steps []lookup

	if id, ok := nq.ID.Get(); ok {
		steps = append(steps, lookup{StageID, storage.FieldID, id})
	}

	schemes := make([]string, 0, len(nq.ExternalIDs))
	for scheme := range nq.ExternalIDs {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	for _, scheme := range schemes {
		steps = append(steps, lookup{StageExternalID, storage.FieldExternal(scheme), nq.ExternalIDs[scheme]})
	}

	if email, ok := nq.Email.Get(); ok {
		steps = append(steps, lookup{StageEmail, storage.FieldEmail, email})
	}
	if sender, ok := nq.SenderEmail.Get(); ok && sender != nq.Email.OrElse("") {
		steps = append(steps, lookup{StageSenderEmail, storage.FieldEmail, sender})
	}

	// a shared mailbox provider never identifies one organization
	if domain, ok := nq.Domain.Get(); ok && !normalize.IsFreeMail(domain) {
		steps = append(steps, lookup{StageDomain, storage.FieldDomain, domain})
	}

	if key, ok := nq.Key.Get(); ok {
		steps = append(steps, lookup{StageName, storage.FieldNameKey, key})
	}
	return steps
}
