// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_gate_decisions_total",
		Help: "Access gate decisions by verdict and denial reason",
	}, []string{"verdict", "reason"})

	grantOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "matchcast_grant_operations_total",
		Help: "Grant store operations by op and result",
	}, []string{"op", "result"})

	signOutRevocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "matchcast_signout_revocations_total",
		Help: "Grants revoked because the identity session went away",
	})
)

// IncGateDecision counts one gate evaluation. Empty reason is reported as "none".
func IncGateDecision(verdict, reason string) {
	if reason == "" {
		reason = "none"
	}
	gateDecisionsTotal.WithLabelValues(strings.ToLower(verdict), strings.ToLower(reason)).Inc()
}

// IncGrantOperation counts a grant store operation.
// Known ops: issue, check, revoke. Known results: ok, valid, expired, absent, error.
func IncGrantOperation(op, result string) {
	grantOperationsTotal.WithLabelValues(normalizeGrantOp(op), normalizeGrantResult(result)).Inc()
}

// IncSignOutRevocation counts a revoke triggered by a sign-out transition.
func IncSignOutRevocation() {
	signOutRevocationsTotal.Inc()
}

func normalizeGrantOp(op string) string {
	switch op {
	case "issue", "check", "revoke":
		return op
	default:
		return "unknown"
	}
}

func normalizeGrantResult(result string) string {
	switch result {
	case "ok", "valid", "expired", "absent", "error":
		return result
	default:
		return "unknown"
	}
}
