package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dustline/server/internal/net/proto"
	"dustline/server/internal/sim"
	"dustline/server/internal/telemetry"
)

type fakeConn struct {
	mu      sync.Mutex
	frames  [][]byte
	failing bool
	closed  bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// decodeFrames parses every frame written so far into outbound payloads.
func (c *fakeConn) decodeFrames(t *testing.T) []proto.Outbound {
	t.Helper()
	c.mu.Lock()
	frames := make([][]byte, len(c.frames))
	copy(frames, c.frames)
	c.mu.Unlock()

	out := make([]proto.Outbound, 0, len(frames))
	for _, frame := range frames {
		env, err := proto.DecodeEnvelope(frame)
		require.NoError(t, err)
		payload, err := proto.DecodeOutbound(env)
		require.NoError(t, err)
		out = append(out, payload)
	}
	return out
}

func newTestHub(t *testing.T, cfg HubConfig) (*Hub, *sim.Engine) {
	t.Helper()
	engine := sim.NewEngine(sim.EngineConfig{World: sim.Config{Seed: 11}})
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewCounters()
	}
	return NewHub(engine, cfg), engine
}

func TestJoinSendsWelcomeGameStateFirst(t *testing.T) {
	hub, engine := newTestHub(t, HubConfig{SnapshotEvery: 12})
	conn := &fakeConn{}

	player, sub, err := hub.Join("ada", "red", conn)
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, 1, engine.PlayerCount())

	frames := conn.decodeFrames(t)
	require.NotEmpty(t, frames)

	state, ok := frames[0].(proto.GameState)
	require.True(t, ok, "first frame must be a gameState, got %T", frames[0])
	require.Equal(t, 12, state.SnapshotEvery)
	require.Equal(t, hub.ConfigHash(), state.ConfigHash)
	require.Len(t, state.Checksum, 16)
	require.NotZero(t, state.ServerTime)

	require.Len(t, state.Players, 1)
	require.Equal(t, player.ID, state.Players[0].ID)
	require.NotEmpty(t, state.Entities, "welcome snapshot should carry the starting units")
	require.NotEmpty(t, state.Map.Terrain, "welcome snapshot should carry the map")
}

func TestJoinAnnouncesNewPlayerToOthers(t *testing.T) {
	hub, _ := newTestHub(t, HubConfig{})
	first := &fakeConn{}
	second := &fakeConn{}

	_, _, err := hub.Join("ada", "red", first)
	require.NoError(t, err)
	firstFramesBefore := first.frameCount()

	joined, _, err := hub.Join("grace", "blue", second)
	require.NoError(t, err)

	frames := first.decodeFrames(t)
	require.Greater(t, len(frames), firstFramesBefore)
	announce, ok := frames[len(frames)-1].(proto.PlayerJoin)
	require.True(t, ok, "existing subscriber should hear playerJoin, got %T", frames[len(frames)-1])
	require.Equal(t, joined.ID, announce.Player.ID)
	require.Equal(t, "grace", announce.Player.Name)

	// The joining client gets only its welcome, not its own announcement.
	require.Equal(t, 1, second.frameCount())
}

func TestLeaveClosesConnAndAnnounces(t *testing.T) {
	hub, engine := newTestHub(t, HubConfig{})
	first := &fakeConn{}
	second := &fakeConn{}

	_, _, err := hub.Join("ada", "red", first)
	require.NoError(t, err)
	leaver, _, err := hub.Join("grace", "blue", second)
	require.NoError(t, err)

	require.True(t, hub.Leave(leaver.ID))
	require.True(t, second.isClosed())
	require.Equal(t, 1, engine.PlayerCount())
	require.Equal(t, 1, hub.SubscriberCount())

	frames := first.decodeFrames(t)
	gone, ok := frames[len(frames)-1].(proto.PlayerLeave)
	require.True(t, ok, "remaining subscriber should hear playerLeave, got %T", frames[len(frames)-1])
	require.Equal(t, leaver.ID, gone.PlayerID)

	require.False(t, hub.Leave(leaver.ID), "second leave is a no-op")
}

func TestBroadcastSnapshotReachesEverySubscriber(t *testing.T) {
	metrics := telemetry.NewCounters()
	hub, engine := newTestHub(t, HubConfig{Metrics: metrics})
	conns := []*fakeConn{{}, {}, {}}
	for i, conn := range conns {
		_, _, err := hub.Join("player", "red", conn)
		require.NoError(t, err, "join %d", i)
	}

	counts := make([]int, len(conns))
	for i, conn := range conns {
		counts[i] = conn.frameCount()
	}

	hub.BroadcastSnapshot(engine.Snapshot())

	for i, conn := range conns {
		frames := conn.decodeFrames(t)
		require.Equal(t, counts[i]+1, len(frames))
		_, ok := frames[len(frames)-1].(proto.GameState)
		require.True(t, ok)
	}
	require.Equal(t, uint64(1), metrics.Snapshot()[metricHubBroadcasts])
}

func TestBroadcastDropsFailedConnections(t *testing.T) {
	hub, engine := newTestHub(t, HubConfig{})
	healthy := &fakeConn{}
	broken := &fakeConn{}

	_, _, err := hub.Join("ada", "red", healthy)
	require.NoError(t, err)
	victim, _, err := hub.Join("grace", "blue", broken)
	require.NoError(t, err)

	broken.mu.Lock()
	broken.failing = true
	broken.mu.Unlock()

	hub.BroadcastSnapshot(engine.Snapshot())

	require.Equal(t, 1, hub.SubscriberCount())
	require.Equal(t, 1, engine.PlayerCount())
	require.True(t, broken.isClosed())

	frames := healthy.decodeFrames(t)
	gone, ok := frames[len(frames)-1].(proto.PlayerLeave)
	require.True(t, ok, "survivors should hear about the dropped player, got %T", frames[len(frames)-1])
	require.Equal(t, victim.ID, gone.PlayerID)
}

func TestHeartbeatTracksRTT(t *testing.T) {
	hub, _ := newTestHub(t, HubConfig{})
	player, _, err := hub.Join("ada", "red", &fakeConn{})
	require.NoError(t, err)

	now := time.Now()
	rtt, ok := hub.Heartbeat(player.ID, now, now.Add(-50*time.Millisecond).UnixMilli())
	require.True(t, ok)
	require.InDelta(t, 50*time.Millisecond, rtt, float64(time.Millisecond))

	// A client clock far in the future must not poison the RTT.
	rtt, ok = hub.Heartbeat(player.ID, now, now.Add(time.Minute).UnixMilli())
	require.True(t, ok)
	require.InDelta(t, 50*time.Millisecond, rtt, float64(time.Millisecond))

	_, ok = hub.Heartbeat("nobody", now, now.UnixMilli())
	require.False(t, ok)

	diag := hub.DiagnosticsSnapshot()
	require.Len(t, diag, 1)
	require.Equal(t, player.ID, diag[0].ID)
	require.Equal(t, int64(50), diag[0].RTTMillis)
}

func TestRunSweepsIdleSubscribers(t *testing.T) {
	hub, engine := newTestHub(t, HubConfig{
		HeartbeatInterval: 5 * time.Millisecond,
		IdleTimeout:       20 * time.Millisecond,
	})
	idle := &fakeConn{}
	_, _, err := hub.Join("ada", "red", idle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 0, hub.SubscriberCount(), "idle subscriber should be swept")
	require.Equal(t, 0, engine.PlayerCount())
	require.True(t, idle.isClosed())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub.Run did not return after cancel")
	}
}

func TestRunClosesRemainingConnsOnShutdown(t *testing.T) {
	hub, _ := newTestHub(t, HubConfig{
		HeartbeatInterval: time.Hour, // sweep never fires
	})
	conn := &fakeConn{}
	_, _, err := hub.Join("ada", "red", conn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub.Run did not return after cancel")
	}
	require.True(t, conn.isClosed())
	require.Equal(t, 0, hub.SubscriberCount())
}
