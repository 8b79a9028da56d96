package proximity

import (
	"testing"

	"github.com/Xyzrr/virtual-office-server/internal/media"
)

func TestThresholdScenario(t *testing.T) {
	samples := []Sample{
		{Identity: "a", X: 0, Y: 0},
		{Identity: "b", X: 3, Y: 0},
		{Identity: "c", X: 100, Y: 0},
	}

	rules := Compute(samples, 10)

	if !rules["a"].Equal(media.Include([]string{"b"})) {
		t.Fatalf("unexpected rules for a: %+v", rules["a"])
	}
	if !rules["b"].Equal(media.Include([]string{"a"})) {
		t.Fatalf("unexpected rules for b: %+v", rules["b"])
	}
	if !rules["c"].ExcludeAll {
		t.Fatalf("expected exclude-all for c, got %+v", rules["c"])
	}
	if len(rules["c"].Include) != 0 {
		t.Fatalf("exclude-all must carry no include entries: %+v", rules["c"])
	}
}

func TestInclusionIsSymmetric(t *testing.T) {
	samples := []Sample{
		{Identity: "a", X: 0, Y: 0},
		{Identity: "b", X: 5, Y: 5},
		{Identity: "c", X: 9, Y: 0},
		{Identity: "d", X: 40, Y: 40},
	}

	rules := Compute(samples, 12)

	includes := func(identity, other string) bool {
		for _, id := range rules[identity].Include {
			if id == other {
				return true
			}
		}
		return false
	}

	for _, p := range samples {
		for _, q := range samples {
			if p.Identity == q.Identity {
				continue
			}
			if includes(p.Identity, q.Identity) != includes(q.Identity, p.Identity) {
				t.Fatalf("asymmetric inclusion between %s and %s", p.Identity, q.Identity)
			}
		}
	}
}

func TestSelfNeverIncluded(t *testing.T) {
	samples := []Sample{
		{Identity: "a", X: 0, Y: 0},
		{Identity: "b", X: 1, Y: 1},
	}

	rules := Compute(samples, 100)
	for identity, rs := range rules {
		for _, id := range rs.Include {
			if id == identity {
				t.Fatalf("%s includes itself", identity)
			}
		}
	}
}

func TestBoundaryDistanceIncluded(t *testing.T) {
	samples := []Sample{
		{Identity: "a", X: 0, Y: 0},
		{Identity: "b", X: 10, Y: 0},
	}

	rules := Compute(samples, 10)
	if !rules["a"].Equal(media.Include([]string{"b"})) {
		t.Fatalf("distance equal to threshold must be included, got %+v", rules["a"])
	}
}

func TestLoneParticipantGetsExcludeAll(t *testing.T) {
	rules := Compute([]Sample{{Identity: "a", X: 0, Y: 0}}, 10)
	if !rules["a"].ExcludeAll {
		t.Fatalf("expected exclude-all for a lone participant, got %+v", rules["a"])
	}
}

func TestEmptySnapshot(t *testing.T) {
	if rules := Compute(nil, 10); len(rules) != 0 {
		t.Fatalf("expected no rules for empty snapshot, got %d", len(rules))
	}
}
