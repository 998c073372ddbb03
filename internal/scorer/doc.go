// Package scorer combines candidate signals into one composite score and
// applies the decision policy.
//
//	score = 0.60*cosine + 0.25*email + 0.10*domain (without email) + 0.05*name
//
// Candidates without a cosine use LexicalBaseline (0.5). With top and
// margin taken over the ranked scores:
//
//   - top >= 0.85 and margin >= 0.03: accept as vector, or lexical when no
//     cosine was available
//   - top >= 0.75 with two or more candidates: arbitrate the top three
//   - any other candidate: low-confidence accept, confidence clamped to
//     [0.30, 0.65]
//   - no candidates: no match
package scorer
