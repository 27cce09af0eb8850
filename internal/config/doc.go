// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads matchcast configuration.
//
// Precedence is defaults, then a single strict YAML document, then MATCHCAST_*
// environment variables. Loaded configs are validated before use and
// ConfigHolder swaps them atomically on reload.
package config
