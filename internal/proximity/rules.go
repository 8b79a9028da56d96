// Package proximity derives media subscription rules from pairwise
// participant distances.
package proximity

import (
	"math"

	"github.com/Xyzrr/virtual-office-server/internal/media"
)

// Sample is one eligible participant's position at snapshot time.
type Sample struct {
	Identity string
	X        float64
	Y        float64
}

// Compute derives one rule set per participant: every other
// participant within threshold is included; a participant with no
// neighbors in range gets the exclude-all marker, never an empty list.
// Inclusion is a pure threshold predicate on Euclidean distance, so
// the result depends only on the samples and the threshold, not on
// iteration order, and the relation is symmetric. The scan is O(n²),
// which holds up at the room sizes this server targets (low hundreds);
// past that a spatial index would be the substitution.
func Compute(samples []Sample, threshold float64) map[string]media.RuleSet {
	rules := make(map[string]media.RuleSet, len(samples))
	for _, p := range samples {
		var include []string
		for _, q := range samples {
			if q.Identity == p.Identity {
				continue
			}
			if math.Hypot(p.X-q.X, p.Y-q.Y) <= threshold {
				include = append(include, q.Identity)
			}
		}
		rules[p.Identity] = media.Include(include)
	}
	return rules
}
