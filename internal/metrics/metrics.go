// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoomsActive counts rooms currently running.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "office_rooms_active",
		Help: "Number of live rooms.",
	})

	// ConnectedPlayers tracks connected participants per room.
	ConnectedPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "office_connected_players",
		Help: "Connected participants per room.",
	}, []string{"room"})

	// ProximityTickDuration observes one full proximity recomputation,
	// diff included, publish dispatch excluded.
	ProximityTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "office_proximity_tick_seconds",
		Help:    "Duration of one proximity rule recomputation.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// MediaPublishes counts rule publishes to the media router by outcome.
	MediaPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "office_media_publishes_total",
		Help: "Media rule publish attempts by outcome.",
	}, []string{"outcome"})
)

const (
	// OutcomeOK labels a confirmed publish.
	OutcomeOK = "ok"
	// OutcomeError labels a failed publish that will be retried.
	OutcomeError = "error"
)
