package buildx

import (
	"sort"
	"strings"
)

// Candidate scores one constructor against the configuration keys
// available at a node and an optional resolver. Candidates are created
// fresh per resolution attempt and never mutated after scoring.
type Candidate struct {
	Ctor                  *Constructor
	TotalParams           int
	MatchedParams         int
	InvokableStrict       bool
	InvokableWithDefaults bool
	MissingParams         []string
}

// Rank scores each constructor and returns the candidates ordered best
// first. A parameter is satisfiable when its name matches an available
// key or the resolver reports it can supply the parameter.
//
// The order is total: strict invokability, then invokability with
// defaults, then matched-parameter count, then total parameter count
// (prefer the constructor that consumes more information), then
// original declaration order.
func Rank(ctors []*Constructor, keys map[string]bool, r Resolver) []Candidate {
	out := make([]Candidate, 0, len(ctors))
	for _, c := range ctors {
		out = append(out, score(c, keys, r))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.InvokableStrict != b.InvokableStrict {
			return a.InvokableStrict
		}
		if a.InvokableWithDefaults != b.InvokableWithDefaults {
			return a.InvokableWithDefaults
		}
		if a.MatchedParams != b.MatchedParams {
			return a.MatchedParams > b.MatchedParams
		}
		if a.TotalParams != b.TotalParams {
			return a.TotalParams > b.TotalParams
		}
		return a.Ctor.index < b.Ctor.index
	})
	return out
}

func score(c *Constructor, keys map[string]bool, r Resolver) Candidate {
	cand := Candidate{
		Ctor:                  c,
		TotalParams:           len(c.params),
		InvokableStrict:       true,
		InvokableWithDefaults: true,
	}
	for _, p := range c.params {
		if keys[strings.ToLower(p.Name)] || (r != nil && r.CanResolve(p.Type, p.Name)) {
			cand.MatchedParams++
			continue
		}
		cand.InvokableStrict = false
		if !p.HasDefault {
			cand.InvokableWithDefaults = false
			cand.MissingParams = append(cand.MissingParams, p.Name)
		}
	}
	return cand
}
