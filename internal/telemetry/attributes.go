// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Gate attributes
	GateVerdictKey    = "gate.verdict"
	GateReasonKey     = "gate.reason"
	GateFromLobbyKey  = "gate.arrived_from_lobby"
	GateGrantValidKey = "gate.grant_valid"

	// Engine attributes
	EngineVersionKey = "engine.version"
	EngineCachedKey  = "engine.cached"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// GateAttributes describes one gate evaluation. Empty reason is omitted.
func GateAttributes(verdict, reason string, fromLobby, grantValid bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(GateVerdictKey, verdict),
		attribute.Bool(GateFromLobbyKey, fromLobby),
		attribute.Bool(GateGrantValidKey, grantValid),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(GateReasonKey, reason))
	}
	return attrs
}

// EngineAttributes describes an engine library acquisition.
func EngineAttributes(version string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(EngineVersionKey, version),
		attribute.Bool(EngineCachedKey, cached),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
