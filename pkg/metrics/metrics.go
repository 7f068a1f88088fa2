package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph API
	GraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standup_graph_requests_total",
			Help: "Total Microsoft Graph requests",
		},
		[]string{"endpoint", "status"},
	)

	// Parsing
	MessagesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "standup_messages_fetched_total",
			Help: "Total chat messages fetched",
		},
	)

	UpdatesParsedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "standup_updates_parsed_total",
			Help: "Total messages parsed as standup updates",
		},
	)

	MessagesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standup_messages_skipped_total",
			Help: "Total messages not parsed as standup updates",
		},
		[]string{"reason"}, // "system", "not_standup"
	)

	// Cache
	PageCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standup_page_cache_total",
			Help: "First page cache lookups",
		},
		[]string{"result"}, // "hit" or "miss"
	)

	// Analysis
	AnalysisTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "standup_analysis_total",
			Help: "Total chat analyses",
		},
		[]string{"source", "result"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "standup_analysis_duration_seconds",
			Help:    "Chat analysis duration",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	// Retention
	ReportsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "standup_reports_deleted_total",
			Help: "Total stored reports removed by retention",
		},
	)
)
