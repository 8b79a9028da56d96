package media

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Xyzrr/virtual-office-server/internal/metrics"
)

// Publisher pushes one participant's rule set to the media router.
type Publisher interface {
	PublishRules(ctx context.Context, identity string, rules RuleSet) error
}

// NopPublisher discards every rule set. Used when no media router is
// configured; the adapter's cache semantics stay intact.
type NopPublisher struct{}

// PublishRules implements Publisher.
func (NopPublisher) PublishRules(context.Context, string, RuleSet) error { return nil }

type publishResult struct {
	identity string
	rules    RuleSet
	err      error
}

// Adapter diffs each tick's rule sets against the last confirmed
// publish per identity and dispatches only the changed ones. Publishes
// run in the background; their outcomes flow back through a result
// channel drained at the start of the next sync, so external latency
// never gates the tick. The confirmed cache advances only on success,
// which makes a failed publish retry with the same payload next tick.
type Adapter struct {
	mu        sync.Mutex
	publisher Publisher
	timeout   time.Duration
	logger    *zap.SugaredLogger

	confirmed map[string]RuleSet
	inflight  map[string]RuleSet
	retired   map[string]bool
	results   chan publishResult
}

// NewAdapter builds an adapter around publisher. A nil publisher is
// replaced with NopPublisher.
func NewAdapter(publisher Publisher, timeout time.Duration, logger *zap.SugaredLogger) *Adapter {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Adapter{
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
		confirmed: make(map[string]RuleSet),
		inflight:  make(map[string]RuleSet),
		retired:   make(map[string]bool),
		results:   make(chan publishResult, 256),
	}
}

// Sync reconciles the freshly computed rule sets with the confirmed
// cache. Identities previously retired but absent from desired are
// driven to exclude-all and then forgotten. One identity's publish
// failure never blocks the others.
func (a *Adapter) Sync(desired map[string]RuleSet) {
	a.drainResults()

	a.mu.Lock()
	defer a.mu.Unlock()

	targets := make(map[string]RuleSet, len(desired)+len(a.retired))
	for identity, rules := range desired {
		delete(a.retired, identity)
		targets[identity] = rules
	}
	for identity := range a.retired {
		targets[identity] = Exclude()
	}

	for identity, want := range targets {
		if _, busy := a.inflight[identity]; busy {
			continue
		}
		if got, ok := a.confirmed[identity]; ok && got.Equal(want) {
			if a.retired[identity] {
				delete(a.confirmed, identity)
				delete(a.retired, identity)
			}
			continue
		}
		a.inflight[identity] = want
		go a.publish(identity, want)
	}
}

// Retire marks an identity as gone from the room. The next sync
// publishes a final exclude-all for it and then drops its cache entry.
func (a *Adapter) Retire(identity string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, confirmed := a.confirmed[identity]; !confirmed {
		if _, busy := a.inflight[identity]; !busy {
			// Nothing was ever published for this identity.
			return
		}
	}
	a.retired[identity] = true
}

// Shutdown fires a best-effort exclude-all for every identity the
// router may still know about and clears all bookkeeping. Used at room
// disposal; outcomes are logged but not tracked.
func (a *Adapter) Shutdown() {
	a.mu.Lock()
	pending := make(map[string]bool, len(a.confirmed)+len(a.retired)+len(a.inflight))
	for identity := range a.confirmed {
		pending[identity] = true
	}
	for identity := range a.retired {
		pending[identity] = true
	}
	for identity := range a.inflight {
		pending[identity] = true
	}
	a.confirmed = make(map[string]RuleSet)
	a.inflight = make(map[string]RuleSet)
	a.retired = make(map[string]bool)
	a.mu.Unlock()

	for identity := range pending {
		identity := identity
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()
			if err := a.publisher.PublishRules(ctx, identity, Exclude()); err != nil {
				a.logger.Warnw("final exclude-all publish failed", "identity", identity, "error", err)
			}
		}()
	}
}

func (a *Adapter) publish(identity string, rules RuleSet) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	err := a.publisher.PublishRules(ctx, identity, rules)
	if err != nil {
		metrics.MediaPublishes.WithLabelValues(metrics.OutcomeError).Inc()
	} else {
		metrics.MediaPublishes.WithLabelValues(metrics.OutcomeOK).Inc()
	}

	select {
	case a.results <- publishResult{identity: identity, rules: rules, err: err}:
	default:
		// The result channel backing up means syncs stopped; the next
		// drain rebuilds state from whatever landed.
		a.logger.Warnw("dropping publish result, channel full", "identity", identity)
		a.mu.Lock()
		delete(a.inflight, identity)
		a.mu.Unlock()
	}
}

func (a *Adapter) drainResults() {
	for {
		select {
		case res := <-a.results:
			a.mu.Lock()
			delete(a.inflight, res.identity)
			if res.err != nil {
				a.logger.Warnw("media rule publish failed, retrying next tick",
					"identity", res.identity, "error", res.err)
			} else if a.retired[res.identity] && res.rules.ExcludeAll {
				delete(a.confirmed, res.identity)
				delete(a.retired, res.identity)
			} else {
				a.confirmed[res.identity] = res.rules
			}
			a.mu.Unlock()
		default:
			return
		}
	}
}

// Confirmed returns the last confirmed rule set for identity, if any.
func (a *Adapter) Confirmed(identity string) (RuleSet, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rules, ok := a.confirmed[identity]
	return rules, ok
}
