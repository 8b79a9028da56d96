// Package media translates per-tick proximity rules into calls against
// the external media routing service, publishing only what changed.
package media

import "sort"

// RuleSet is one participant's subscription directive: either an
// explicit exclude-all marker or a list of identities whose streams to
// include. An empty include list is not a valid state; the exclude-all
// marker must be used instead, because the two are not equivalent to
// the external router.
type RuleSet struct {
	ExcludeAll bool     `json:"excludeAll,omitempty"`
	Include    []string `json:"include,omitempty"`
}

// Exclude returns the exclude-all marker.
func Exclude() RuleSet {
	return RuleSet{ExcludeAll: true}
}

// Include returns an inclusion rule set with a sorted copy of ids.
// An empty ids slice degenerates to the exclude-all marker.
func Include(ids []string) RuleSet {
	if len(ids) == 0 {
		return Exclude()
	}
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return RuleSet{Include: sorted}
}

// Equal reports whether two rule sets have identical content. Include
// lists are compared element-wise; both sides are expected sorted,
// which the constructors guarantee.
func (r RuleSet) Equal(other RuleSet) bool {
	if r.ExcludeAll != other.ExcludeAll {
		return false
	}
	if len(r.Include) != len(other.Include) {
		return false
	}
	for i := range r.Include {
		if r.Include[i] != other.Include[i] {
			return false
		}
	}
	return true
}
