// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_polls_total",
		Help: "Snapshot requests made while polling, by policy and result (ok, error)",
	}, []string{"policy", "result"})

	pollSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_poll_sessions_total",
		Help: "Finished poll loops by policy and how they ended",
	}, []string{"policy", "outcome"})

	recordsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paper_fetcher_records_skipped_total",
		Help: "Raw records dropped by the parser as malformed",
	})
)
