package override

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dshills/entityres/internal/normalize"
)

// ErrEmptyRule is returned for a rule with neither tokens nor domains
var ErrEmptyRule = errors.New("override rule needs at least one token or domain")

// Qualifier narrows a rule. It holds when the query name key contains any
// of NameTokens or the query domain ends with any of DomainSuffixes.
type Qualifier struct {
	NameTokens     []string `yaml:"name_tokens"`
	DomainSuffixes []string `yaml:"domain_suffixes"`
}

// Rule maps brand tokens or email domains to a fixed registry entry
type Rule struct {
	ID        string     `yaml:"id" validate:"required"`
	Name      string     `yaml:"name" validate:"required"`
	Tokens    []string   `yaml:"tokens"`
	Domains   []string   `yaml:"domains"`
	Qualifier *Qualifier `yaml:"qualifier,omitempty"`
}

// Qualified reports whether the rule carries a qualifier predicate
func (r *Rule) Qualified() bool {
	return r.Qualifier != nil
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Table holds override rules in evaluation order: qualified rules first,
// then unqualified, each group in file order. A Table is immutable after
// construction and safe for concurrent use.
type Table struct {
	rules []Rule
}

// New builds a table from rules, normalizing their tokens and domains
func New(rules []Rule) (*Table, error) {
	validate := validator.New()
	var qualified, plain []Rule
	for i, r := range rules {
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if len(r.Tokens) == 0 && len(r.Domains) == 0 {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, ErrEmptyRule)
		}
		r = normalizeRule(r)
		if r.Qualified() {
			qualified = append(qualified, r)
		} else {
			plain = append(plain, r)
		}
	}
	return &Table{rules: append(qualified, plain...)}, nil
}

// Parse decodes a YAML rule document
func Parse(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse override rules: %w", err)
	}
	return f.Rules, nil
}

// Load builds a table from the rules in path. An empty path yields an empty
// table: overrides exist only where an operator configured them.
func Load(path string) (*Table, error) {
	if path == "" {
		return New(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read override rules: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return New(rules)
}

// Len returns the number of rules
func (t *Table) Len() int {
	return len(t.rules)
}

// Lookup returns the first rule matching a normalized name key and any of
// the query's email domains. Empty arguments are ignored.
func (t *Table) Lookup(key string, domains ...string) (Rule, bool) {
	domains = lower(domains)
	if key == "" && len(domains) == 0 {
		return Rule{}, false
	}
	for _, r := range t.rules {
		if !r.matches(key, domains) {
			continue
		}
		if r.Qualified() && !r.Qualifier.holds(key, domains) {
			continue
		}
		return r, true
	}
	return Rule{}, false
}

func (r *Rule) matches(key string, domains []string) bool {
	for _, tok := range r.Tokens {
		if containsPhrase(key, tok) {
			return true
		}
	}
	for _, d := range r.Domains {
		for _, domain := range domains {
			if domainMatches(domain, d) {
				return true
			}
		}
	}
	return false
}

func (q *Qualifier) holds(key string, domains []string) bool {
	for _, tok := range q.NameTokens {
		if containsPhrase(key, tok) {
			return true
		}
	}
	for _, suffix := range q.DomainSuffixes {
		for _, domain := range domains {
			if strings.HasSuffix(domain, suffix) {
				return true
			}
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in key on word boundaries
func containsPhrase(key, phrase string) bool {
	if key == "" || phrase == "" {
		return false
	}
	return strings.Contains(" "+key+" ", " "+phrase+" ")
}

func domainMatches(domain, rule string) bool {
	return domain != "" && (domain == rule || strings.HasSuffix(domain, "."+rule))
}

func normalizeRule(r Rule) Rule {
	r.Tokens = keys(r.Tokens)
	r.Domains = lower(r.Domains)
	if r.Qualifier != nil {
		q := *r.Qualifier
		q.NameTokens = keys(q.NameTokens)
		q.DomainSuffixes = lower(q.DomainSuffixes)
		r.Qualifier = &q
	}
	return r
}

func keys(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if k := normalize.Key(normalize.Name(s)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
