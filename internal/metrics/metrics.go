// internal/metrics/metrics.go

// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketing_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	TicketsReservedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketing_tickets_reserved_total",
		Help: "Ticket instances moved to reserved",
	})

	TicketsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_tickets_released_total",
		Help: "Ticket instances returned to available",
	}, []string{"reason"})

	InsufficientInventoryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketing_insufficient_inventory_total",
		Help: "Reservation attempts rejected for lack of inventory",
	})

	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_checkouts_total",
		Help: "Checkout attempts by payment method and outcome",
	}, []string{"method", "outcome"})

	CheckoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ticketing_checkout_duration_seconds",
		Help:    "Checkout latency including provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	CompensatingRefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_compensating_refunds_total",
		Help: "Refunds issued to undo a partially failed checkout",
	}, []string{"stage", "outcome"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_settlements_total",
		Help: "Ledger settlements by outcome",
	}, []string{"outcome"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_transfers_total",
		Help: "Transfer authorization operations by outcome",
	}, []string{"operation", "outcome"})

	DomainActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_domain_actions_total",
		Help: "Domain action executions by type and outcome",
	}, []string{"type", "outcome"})
)
