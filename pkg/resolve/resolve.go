// Package resolve maps loosely written component and parameter names onto
// canonical names and live port names.
package resolve

import (
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

// Resolver resolves names against the alias tables of the current
// knowledge base snapshot.
type Resolver struct {
	holder *knowledge.Holder
}

// New creates a resolver that reads aliases from holder on every call,
// so reloads are picked up without rebuilding the resolver.
func New(holder *knowledge.Holder) *Resolver {
	return &Resolver{holder: holder}
}

// ResolveComponentName returns the canonical component name for input, or
// input unchanged when no alias matches. It never fails.
func (r *Resolver) ResolveComponentName(input string) string {
	return lookup(r.holder.Current().Aliases().Components, input)
}

// ResolveParameterName returns the canonical parameter name for input, or
// input unchanged when no alias matches.
func (r *Resolver) ResolveParameterName(input string) string {
	return lookup(r.holder.Current().Aliases().Parameters, input)
}

// lookup does a single hop: the canonical name is never looked up again.
func lookup(table map[string]string, input string) string {
	if canonical, ok := table[knowledge.NormalizeKey(input)]; ok {
		return canonical
	}
	return input
}

// FindClosestMatch picks the candidate that best matches input.
//
// Tiers, each tried only when the previous one found nothing or more than one hit:
// exact case-insensitive equality, unique substring hit, unique prefix hit,
// and finally the shortest of several substring hits (earliest wins on equal
// length). When nothing matches the input is returned unchanged.
func FindClosestMatch(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return input
	}
	needle := strings.ToLower(input)

	for _, c := range candidates {
		if strings.ToLower(c) == needle {
			return c
		}
	}

	var substring []string
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), needle) {
			substring = append(substring, c)
		}
	}
	if len(substring) == 1 {
		return substring[0]
	}

	var prefix []string
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), needle) {
			prefix = append(prefix, c)
		}
	}
	if len(prefix) == 1 {
		return prefix[0]
	}

	if len(substring) > 1 {
		best := substring[0]
		for _, c := range substring[1:] {
			if len(c) < len(best) {
				best = c
			}
		}
		return best
	}

	return input
}
