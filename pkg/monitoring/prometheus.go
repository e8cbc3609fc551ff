package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MessagesSent counts every message a process hands to its link.
var MessagesSent = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ringelect",
		Name:      "messages_sent_total",
		Help:      "Ring messages sent, by algorithm and tag.",
	},
	[]string{"algorithm", "tag"},
)

// MessagesReceived counts every message a process takes from its link.
var MessagesReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ringelect",
		Name:      "messages_received_total",
		Help:      "Ring messages received, by algorithm and tag.",
	},
	[]string{"algorithm", "tag"},
)

// RoleTransitions counts roles entered, by algorithm and role.
var RoleTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ringelect",
		Name:      "role_transitions_total",
		Help:      "Roles entered by ring processes.",
	},
	[]string{"algorithm", "role"},
)

// Elections counts finished ring runs by outcome: elected, failed or inconsistent.
var Elections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ringelect",
		Name:      "elections_total",
		Help:      "Finished elections, by algorithm and outcome.",
	},
	[]string{"algorithm", "outcome"},
)

// ElectionDuration observes the wall time of every successful election.
var ElectionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "ringelect",
		Name:      "election_duration_seconds",
		Help:      "Wall time of successful elections, by algorithm.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	},
	[]string{"algorithm"},
)
