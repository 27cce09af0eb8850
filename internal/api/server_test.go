// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/matchcast/internal/catalog"
	"github.com/ManuGH/matchcast/internal/config"
	"github.com/ManuGH/matchcast/internal/control/http/problem"
	"github.com/ManuGH/matchcast/internal/gate"
	"github.com/ManuGH/matchcast/internal/grant"
	"github.com/ManuGH/matchcast/internal/identity"
)

const (
	testOrigin = "https://watch.example.com"
	lobbyURL   = testOrigin + "/dashboard"
	streamURL  = "https://cdn.example.com/m1/web/en/master.m3u8"
)

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, string) (identity.Snapshot, error) {
	return identity.Snapshot{}, identity.ErrProvider
}

type testServer struct {
	srv     *Server
	grants  *grant.Grants
	clock   *clockwork.FakeClock
	tracker *identity.Tracker
}

func newTestServer(t *testing.T, resolver identity.Resolver) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClock()
	medium := grant.NewMemoryMedium(clock)
	t.Cleanup(func() { _ = medium.Close() })
	grants := grant.New(medium, grant.WithClock(clock), grant.WithTTL(time.Hour))
	tracker := identity.NewTracker(clock, time.Hour)
	t.Cleanup(tracker.Close)

	g := gate.New(gate.Config{
		Origin:           testOrigin,
		LobbyPath:        "/dashboard",
		LoginPath:        "/login",
		ProfileSetupPath: "/profile/setup",
	}, grants, tracker)

	if resolver == nil {
		resolver = identity.StaticResolver{
			"alice": {Session: identity.Present, Profile: identity.Present},
			"bob":   {Session: identity.Present, Profile: identity.Absent},
		}
	}
	cat := catalog.NewMemoryCatalog(
		catalog.Stream{MatchID: "m1", Device: "web", Language: "en", URL: streamURL},
		catalog.Stream{MatchID: "m1", Device: "web", Language: "de", URL: "https://cdn.example.com/m1/web/de/master.m3u8"},
	)

	cfg := config.Defaults().API
	cfg.PublicOrigin = testOrigin
	srv, err := New(cfg, Deps{Gate: g, Tracker: tracker, Resolver: resolver, Catalog: cat})
	require.NoError(t, err)
	return &testServer{srv: srv, grants: grants, clock: clock, tracker: tracker}
}

type watchRequest struct {
	path     string
	token    string
	tab      string
	referrer string
}

func (ts *testServer) watch(t *testing.T, wr watchRequest) *httptest.ResponseRecorder {
	t.Helper()
	path := wr.path
	if path == "" {
		path = "/api/v1/watch/m1?device=web&lang=en"
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if wr.token != "" {
		req.Header.Set("Authorization", "Bearer "+wr.token)
	}
	if wr.tab != "" {
		req.Header.Set(HeaderTabID, wr.tab)
	}
	if wr.referrer != "" {
		req.Header.Set("Referer", wr.referrer)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) post(t *testing.T, path, tab string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Origin", testOrigin)
	if tab != "" {
		req.Header.Set(HeaderTabID, tab)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) grantValid(t *testing.T, tab string) bool {
	t.Helper()
	ok, err := ts.grants.For(tab).IsValid(context.Background())
	require.NoError(t, err)
	return ok
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWatch_GrantedFromLobby(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()

	rec := ts.watch(t, watchRequest{token: "alice", tab: tab, referrer: lobbyURL})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp WatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Granted", resp.Verdict)
	assert.Equal(t, streamURL, resp.StreamURL)
	assert.Equal(t, tab, rec.Header().Get(HeaderTabID))
	assert.Empty(t, rec.Result().Cookies(), "a tab id sent by the client is not re-minted")
}

func TestWatch_ReloadWithinTTLStaysGranted(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()

	require.Equal(t, http.StatusOK, ts.watch(t, watchRequest{token: "alice", tab: tab, referrer: lobbyURL}).Code)

	ts.clock.Advance(59 * time.Minute)
	rec := ts.watch(t, watchRequest{token: "alice", tab: tab})
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.clock.Advance(2 * time.Minute)
	rec = ts.watch(t, watchRequest{token: "alice", tab: tab})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWatch_Denials(t *testing.T) {
	tests := []struct {
		name         string
		token        string
		referrer     string
		wantStatus   int
		wantCode     string
		wantReason   string
		wantRedirect string
	}{
		{
			name:         "signed out",
			referrer:     lobbyURL,
			wantStatus:   http.StatusUnauthorized,
			wantCode:     "UNAUTHENTICATED",
			wantReason:   "Unauthenticated",
			wantRedirect: "/login",
		},
		{
			name:         "incomplete profile",
			token:        "bob",
			referrer:     lobbyURL,
			wantStatus:   http.StatusForbidden,
			wantCode:     "INCOMPLETE_PROFILE",
			wantReason:   "IncompleteProfile",
			wantRedirect: "/profile/setup",
		},
		{
			name:       "deep link from outside",
			token:      "alice",
			referrer:   "https://social.example.net/post/1",
			wantStatus: http.StatusForbidden,
			wantCode:   "NO_LOBBY_GRANT",
			wantReason: "NoLobbyGrant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			rec := ts.watch(t, watchRequest{token: tt.token, tab: uuid.NewString(), referrer: tt.referrer})
			require.Equal(t, tt.wantStatus, rec.Code)

			body := decodeProblem(t, rec)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.Equal(t, "Denied", body["verdict"])
			assert.Equal(t, tt.wantReason, body["reason"])
			if tt.wantRedirect == "" {
				assert.NotContains(t, body, "redirect")
			} else {
				assert.Equal(t, tt.wantRedirect, body["redirect"])
			}
			assert.NotContains(t, rec.Body.String(), "streamUrl")
		})
	}
}

func TestWatch_MintsTabCookie(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.watch(t, watchRequest{token: "alice", referrer: lobbyURL})
	require.Equal(t, http.StatusOK, rec.Code)

	var minted *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == TabCookie {
			minted = c
		}
	}
	require.NotNil(t, minted)
	_, err := uuid.Parse(minted.Value)
	require.NoError(t, err)
	assert.True(t, minted.HttpOnly)
	assert.True(t, minted.Secure)
	assert.Equal(t, minted.Value, rec.Header().Get(HeaderTabID))
	assert.True(t, ts.grantValid(t, minted.Value))

	// The cookie alone identifies the tab on the next request.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/watch/m1?device=web", nil)
	req.Header.Set("Authorization", "Bearer alice")
	req.AddCookie(minted)
	rec = httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWatch_MalformedTabIDIsReplaced(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.watch(t, watchRequest{token: "alice", tab: "../../etc", referrer: lobbyURL})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, "../../etc", rec.Header().Get(HeaderTabID))
	_, err := uuid.Parse(rec.Header().Get(HeaderTabID))
	assert.NoError(t, err)
}

func TestWatch_StreamNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()

	rec := ts.watch(t, watchRequest{path: "/api/v1/watch/m1?device=tv", token: "alice", tab: tab, referrer: lobbyURL})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "STREAM_NOT_FOUND", decodeProblem(t, rec)["code"])

	rec = ts.watch(t, watchRequest{path: "/api/v1/watch/m1?device=web&lang=ja", token: "alice", tab: tab})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatch_MissingDevice(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.watch(t, watchRequest{path: "/api/v1/watch/m1", token: "alice", tab: uuid.NewString()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeProblem(t, rec)["code"])
}

func TestWatch_IdentityOutageFailsClosedWithoutRevoking(t *testing.T) {
	ts := newTestServer(t, failingResolver{})
	tab := uuid.NewString()
	require.NoError(t, ts.grants.For(tab).Issue(context.Background()))

	rec := ts.watch(t, watchRequest{token: "alice", tab: tab})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "IDENTITY_UNAVAILABLE", decodeProblem(t, rec)["code"])
	assert.True(t, ts.grantValid(t, tab))
}

func TestReturnToLobby(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()
	require.Equal(t, http.StatusOK, ts.watch(t, watchRequest{token: "alice", tab: tab, referrer: lobbyURL}).Code)

	rec := ts.post(t, "/api/v1/watch/return-to-lobby", tab)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LobbyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/dashboard", resp.Location)
	assert.False(t, ts.grantValid(t, tab))

	// Forward navigation back into the match is denied.
	assert.Equal(t, http.StatusForbidden, ts.watch(t, watchRequest{token: "alice", tab: tab}).Code)
}

func TestSignOut_RevokesGrant(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()
	require.Equal(t, http.StatusOK, ts.watch(t, watchRequest{token: "alice", tab: tab, referrer: lobbyURL}).Code)

	rec := ts.post(t, "/api/v1/auth/signout", tab)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, ts.grantValid(t, tab))

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.SessionCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	// Signing back in does not bring the grant back.
	assert.Equal(t, http.StatusForbidden, ts.watch(t, watchRequest{token: "alice", tab: tab}).Code)
}

func TestPost_RequiresTrustedOrigin(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/signout", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CSRF_FORBIDDEN", decodeProblem(t, rec)["code"])
}

func TestApplyConfig_UpdatesRateLimit(t *testing.T) {
	ts := newTestServer(t, nil)
	tab := uuid.NewString()

	cfg := config.Defaults()
	cfg.API.PublicOrigin = testOrigin
	cfg.API.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}
	ts.srv.ApplyConfig(cfg)

	assert.Equal(t, http.StatusForbidden, ts.watch(t, watchRequest{token: "alice", tab: tab}).Code)
	rec := ts.watch(t, watchRequest{token: "alice", tab: tab})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Probes are outside the limited group.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	hrec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(hrec, req)
	assert.Equal(t, http.StatusOK, hrec.Code)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(config.Defaults().API, Deps{})
	require.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
