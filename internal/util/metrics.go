package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EmailsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_emails_received_total",
		Help: "Total number of inbound emails accepted on the webhook",
	})

	EmailsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_emails_duplicate_total",
		Help: "Total number of inbound emails dropped as content-hash duplicates",
	})

	EmailsUnknownVendorTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_emails_unknown_vendor_total",
		Help: "Total number of emails routed to manual review with no vendor match",
	})

	ParseResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_parse_results_total",
		Help: "Parse outcomes by vendor and result",
	}, []string{"vendor", "result"})

	EnrichmentLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_enrichment_lookups_total",
		Help: "Catalog enrichment lookups by outcome (hit, miss, fetched, error, timeout)",
	}, []string{"vendor", "outcome"})

	EnrichmentCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_enrichment_coalesced_total",
		Help: "Enrichment requests coalesced into an in-flight catalog fetch",
	})

	EnrichmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_enrichment_latency_seconds",
		Help:    "Latency of a single catalog enrichment lookup",
		Buckets: prometheus.DefBuckets,
	})

	OrdersAssembledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_orders_assembled_total",
		Help: "Orders assembled from parsed emails, by vendor",
	}, []string{"vendor"})

	OrdersMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intake_orders_merged_total",
		Help: "Reprocessed orders merged into an existing order row",
	})

	ItemsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_items_created_total",
		Help: "Inventory items created at pending, by vendor",
	}, []string{"vendor"})

	ItemTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_item_transitions_total",
		Help: "Inventory item lifecycle transitions",
	}, []string{"transition"})

	TransitionConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_transition_conflicts_total",
		Help: "Rejected lifecycle transitions by reason",
	}, []string{"reason"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "intake_pipeline_duration_seconds",
		Help:    "End-to-end processing time for one inbound email",
		Buckets: prometheus.DefBuckets,
	}, []string{"vendor"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
