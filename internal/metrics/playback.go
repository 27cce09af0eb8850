// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_playback_transitions_total",
		Help: "Playback session state transitions",
	}, []string{"from", "to"})

	playbackFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_playback_faults_total",
		Help: "Classified playback engine faults",
	}, []string{"class"})

	playbackRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_playback_retries_total",
		Help: "Manual retry requests by outcome (started, ignored, rejected)",
	}, []string{"result"})

	playbackStaleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchcast_playback_stale_events_total",
		Help: "Engine callbacks dropped because they belonged to a torn-down generation",
	})

	playbackTimeToReady = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchcast_playback_time_to_ready_seconds",
		Help:    "Time from mount to first READY per session run",
		Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 20, 30, 60},
	})

	engineLibraryLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_engine_library_loads_total",
		Help: "Engine library acquisitions by result (fetched, cached, failed)",
	}, []string{"result"})
)

// ObservePlaybackTransition counts one state change.
func ObservePlaybackTransition(from, to string) {
	playbackTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncPlaybackFault counts one classified fault.
func IncPlaybackFault(class string) {
	playbackFaultsTotal.WithLabelValues(class).Inc()
}

// IncPlaybackRetry counts a manual retry request.
func IncPlaybackRetry(result string) {
	playbackRetriesTotal.WithLabelValues(result).Inc()
}

// IncPlaybackStaleEvent counts a dropped stale engine callback.
func IncPlaybackStaleEvent() {
	playbackStaleEventsTotal.Inc()
}

// ObservePlaybackTimeToReady records seconds from mount to READY.
func ObservePlaybackTimeToReady(seconds float64) {
	playbackTimeToReady.Observe(seconds)
}

// IncEngineLibraryLoad counts one library acquisition.
func IncEngineLibraryLoad(result string) {
	engineLibraryLoadsTotal.WithLabelValues(result).Inc()
}

// BusDropsTotal counts status messages dropped for slow subscribers.
var BusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "matchcast_bus_drops_total",
	Help: "Messages dropped from full subscriber queues, by topic family",
}, []string{"topic"})

// IncBusDrop counts one dropped bus message.
func IncBusDrop(topic string) {
	BusDropsTotal.WithLabelValues(topic).Inc()
}
