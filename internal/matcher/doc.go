// Package matcher implements the deterministic phase of resolution: exact
// lookups in strict priority order.
//
//  1. direct identifier, then external identifiers by scheme
//  2. primary email, then sender email
//  3. email domain, skipped for free-mail providers
//  4. normalized name key against names and aliases
//
// The first stage with any hit ends the phase. One hit is an exact match;
// several hits become the candidate pool for scoring.
package matcher
