// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package grant records that a viewer's tab arrived at the watch surface
// from the lobby.
//
// A grant is one Record per tab id, stored in a Medium whose own entry TTL
// runs a little past the grant TTL so abandoned tabs are reclaimed without a
// sweeper. Store.IsValid alone decides the inclusive TTL boundary.
// The lobby-arrival signal behind a grant is a client-supplied referrer, so
// a grant is a navigation hint for the watch surface and not a security
// control.
package grant
