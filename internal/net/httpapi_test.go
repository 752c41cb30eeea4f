package net

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dustline/server"
	"dustline/server/internal/sim"
)

func writeIndex(t *testing.T, dir string) {
	t.Helper()
	page := []byte("<html><body>dustline</body></html>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), page, 0o644))
}

func newTestHandler(t *testing.T) nethttp.Handler {
	t.Helper()
	engine := sim.NewEngine(sim.EngineConfig{World: sim.Config{Seed: 3}})
	loop := sim.NewLoop(engine, sim.LoopConfig{TickRate: 60, SnapshotEvery: 30}, sim.LoopHooks{})
	hub := server.NewHub(engine, server.HubConfig{})
	return NewHTTPHandler(engine, loop, hub, HTTPHandlerConfig{})
}

func TestHealthzAnswersOK(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := nethttp.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}

func TestDiagnosticsReportsLoopAndEngineState(t *testing.T) {
	srv := httptest.NewServer(newTestHandler(t))
	defer srv.Close()

	resp, err := nethttp.Get(srv.URL + "/diagnostics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var payload diagnosticsPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))

	require.Equal(t, "waiting", payload.Status)
	require.Equal(t, "idle", payload.LoopState)
	require.Equal(t, 60, payload.TickRate)
	require.Equal(t, 30, payload.SnapshotEvery)
	require.Len(t, payload.ConfigHash, 16)
	require.NotZero(t, payload.ServerTime)
	require.Empty(t, payload.Players)
}

func TestStaticClientDirServesFiles(t *testing.T) {
	dir := t.TempDir()
	writeIndex(t, dir)

	engine := sim.NewEngine(sim.EngineConfig{World: sim.Config{Seed: 3}})
	loop := sim.NewLoop(engine, sim.LoopConfig{}, sim.LoopHooks{})
	hub := server.NewHub(engine, server.HubConfig{})
	handler := NewHTTPHandler(engine, loop, hub, HTTPHandlerConfig{ClientDir: dir})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := nethttp.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "dustline")
}
