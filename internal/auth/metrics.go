// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels.
const (
	OperationRegister     = "register"
	OperationLogin        = "login"
	OperationLogout       = "logout"
	OperationRefresh      = "refresh"
	OperationAddImage     = "add_image"
	OperationReplaceImage = "replace_image"
	OperationDeleteImage  = "delete_image"
)

// Inconsistency kinds for effects that could not be completed or undone.
const (
	InconsistencyOrphanImage = "orphan_image"
)

// Operations is the counter for auth operations by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Operations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of auth operations",
	},
	[]string{"operation", "status"},
)

// OperationDuration is the histogram for auth operation duration.
// Use RegisterMetrics to register this with a Prometheus registry.
var OperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "auth_operation_duration_seconds",
		Help:    "Auth operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// Inconsistencies counts side effects that left state the caller must reconcile.
var Inconsistencies = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_inconsistencies_total",
		Help: "Total number of side effects that could not be completed or compensated",
	},
	[]string{"kind"},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Operations)
	reg.MustRegister(OperationDuration)
	reg.MustRegister(Inconsistencies)
}

// RecordOperation records one finished operation. The status label is the
// error kind, or "success" when err is nil.
func RecordOperation(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = KindOf(err).String()
	}
	Operations.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordInconsistency increments the inconsistency counter.
func RecordInconsistency(kind string) {
	Inconsistencies.WithLabelValues(kind).Inc()
}
