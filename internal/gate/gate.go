// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gate

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/matchcast/internal/grant"
	"github.com/ManuGH/matchcast/internal/identity"
	"github.com/ManuGH/matchcast/internal/log"
	"github.com/ManuGH/matchcast/internal/metrics"
	"github.com/ManuGH/matchcast/internal/telemetry"
)

// Config holds the surfaces the gate redirects to.
type Config struct {
	// Origin is the public origin of the app, e.g. https://watch.example.com.
	Origin           string
	LobbyPath        string
	LoginPath        string
	ProfileSetupPath string
}

// Input is everything one evaluation looks at.
type Input struct {
	Identity identity.Snapshot
	Referrer string
	// Origin overrides Config.Origin when set.
	Origin string
}

// Gate evaluates watch access for tabs.
type Gate struct {
	cfg     Config
	grants  *grant.Grants
	tracker *identity.Tracker
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New creates a gate and registers it to revoke grants on sign-out.
func New(cfg Config, grants *grant.Grants, tracker *identity.Tracker) *Gate {
	g := &Gate{
		cfg:     cfg,
		grants:  grants,
		tracker: tracker,
		tracer:  telemetry.Tracer("matchcast/gate"),
		logger:  log.WithComponent("gate"),
	}
	tracker.OnSignOut(g.RevokeOnSignOut)
	return g
}

// Evaluate runs the gate for tabID. Grant medium failures fail closed with
// NoLobbyGrant.
func (g *Gate) Evaluate(ctx context.Context, tabID string, in Input) Decision {
	ctx, span := g.tracer.Start(ctx, "gate.evaluate")
	defer span.End()
	logger := log.WithContext(ctx, g.logger).With().Str(log.FieldTabID, tabID).Logger()

	g.tracker.Observe(ctx, tabID, in.Identity)

	origin := in.Origin
	if origin == "" {
		origin = g.cfg.Origin
	}
	store := g.grants.For(tabID)

	// A grant belongs to a session; without one there is nothing to re-arm
	// and the sign-out revoke above must stand.
	fromLobby := ArrivedFromLobby(in.Referrer, origin, g.cfg.LobbyPath)
	if fromLobby && in.Identity.Session == identity.Present {
		if err := store.Issue(ctx); err != nil {
			span.RecordError(err)
			logger.Warn().Err(err).Msg("failed to issue lobby grant")
		}
	}

	grantValid := false
	if in.Identity.Session == identity.Present && in.Identity.Profile == identity.Present {
		valid, err := store.IsValid(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "grant check failed")
			logger.Error().Err(err).Msg("grant check failed, denying")
		}
		grantValid = valid && err == nil
	}

	d := Decide(in.Identity, grantValid)
	d.Redirect = g.redirectFor(d.Reason)

	span.SetAttributes(telemetry.GateAttributes(d.Verdict.String(), string(d.Reason), fromLobby, grantValid)...)
	metrics.IncGateDecision(d.Verdict.String(), string(d.Reason))
	logger.Info().
		Str(log.FieldEvent, "gate.decided").
		Str(log.FieldVerdict, d.Verdict.String()).
		Str(log.FieldReason, string(d.Reason)).
		Bool("arrived_from_lobby", fromLobby).
		Msg("gate evaluated")
	return d
}

func (g *Gate) redirectFor(r Reason) string {
	switch r {
	case ReasonUnauthenticated:
		return g.cfg.LoginPath
	case ReasonIncompleteProfile:
		return g.cfg.ProfileSetupPath
	default:
		return ""
	}
}

// ReturnToLobby revokes the tab's grant and returns where to navigate.
func (g *Gate) ReturnToLobby(ctx context.Context, tabID string) (string, error) {
	if err := g.grants.For(tabID).Revoke(ctx); err != nil {
		return "", err
	}
	logger := log.WithContext(ctx, g.logger)
	logger.Info().
		Str(log.FieldTabID, tabID).
		Str(log.FieldEvent, "gate.return_to_lobby").
		Msg("viewer returned to lobby")
	return g.cfg.LobbyPath, nil
}

// RevokeOnSignOut drops the grant of a tab whose session went away.
func (g *Gate) RevokeOnSignOut(ctx context.Context, tabID string) {
	if err := g.grants.For(tabID).Revoke(ctx); err != nil {
		logger := log.WithContext(ctx, g.logger)
		logger.Error().Err(err).Str(log.FieldTabID, tabID).Msg("failed to revoke grant on sign-out")
		return
	}
	metrics.IncSignOutRevocation()
}
