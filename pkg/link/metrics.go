// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Discard reasons reported in osmolink_link_frames_discarded_total
const (
	DiscardSOF      = "sof"
	DiscardFraming  = "framing"
	DiscardSequence = "sequence"
	DiscardCommand  = "command"
)

var (
	registerOnce sync.Once

	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osmolink",
			Subsystem: "link",
			Name:      "frames_sent_total",
			Help:      "Frames written to the transport.",
		},
		[]string{"command", "cmd_type"},
	)
	framesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "osmolink",
			Subsystem: "link",
			Name:      "frames_received_total",
			Help:      "Packets delivered by the transport.",
		},
	)
	framesDiscarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "osmolink",
			Subsystem: "link",
			Name:      "frames_discarded_total",
			Help:      "Inbound frames dropped while waiting for a response.",
		},
		[]string{"reason"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "osmolink",
			Subsystem: "link",
			Name:      "exchange_duration_seconds",
			Help:      "Command exchange duration in seconds, transmit to result.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "osmolink",
			Subsystem: "link",
			Name:      "connection_state",
			Help:      "Handshake state (0 disconnected, 1 handshake sent, 2 connected, 3 failed).",
		},
	)
)

// RegisterMetrics registers the link collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesSent, framesReceived, framesDiscarded, exchangeDuration, connectionState)
	})
}

func recordFrameSent(command, cmdType string) {
	RegisterMetrics()
	framesSent.WithLabelValues(command, cmdType).Inc()
}

func recordFrameReceived() {
	RegisterMetrics()
	framesReceived.Inc()
}

func recordDiscard(reason string) {
	RegisterMetrics()
	framesDiscarded.WithLabelValues(reason).Inc()
}

func recordExchange(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	exchangeDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

func recordState(s ConnectionState) {
	RegisterMetrics()
	connectionState.Set(float64(s))
}
