// Package override provides the operator-curated mapping of brand tokens
// and email domains to fixed registry entries.
//
// Rules come only from the operator's YAML file; with no file configured
// the table is empty. Overrides take precedence over every other signal.
// Known name collisions
// between divisions of one brand are expressed as a qualified rule that is
// evaluated ahead of the unqualified one:
//
//	rules:
//	  - id: CUST-STAPLES-CA
//	    name: Staples Canada
//	    tokens: [staples]
//	    qualifier:
//	      name_tokens: [canada]
//	      domain_suffixes: [.ca]
//
// Tokens are matched against the normalized name key, so plural and
// singular spellings route identically.
package override
