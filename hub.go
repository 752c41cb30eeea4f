// Package server couples the authoritative simulation to its websocket
// audience. The Hub owns every live connection: it admits players, fans
// snapshots and roster announcements out to subscribers, tracks heartbeats,
// and drops connections that stop answering.
package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dustline/server/internal/net/proto"
	"dustline/server/internal/sim"
	"dustline/server/internal/telemetry"
)

const writeWait = 10 * time.Second

const (
	metricHubSubscribers     = "hub_subscribers"
	metricHubJoins           = "hub_joins_total"
	metricHubLeaves          = "hub_leaves_total"
	metricHubBroadcasts      = "hub_broadcasts_total"
	metricHubBroadcastBytes  = "hub_broadcast_bytes_total"
	metricHubSendFailures    = "hub_send_failures_total"
	metricHubIdleDisconnects = "hub_idle_disconnects_total"
)

// Conn is the slice of a websocket connection the hub needs. *websocket.Conn
// satisfies it; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// HubConfig tunes connection housekeeping. Zero values fall back to the
// defaults noted per field.
type HubConfig struct {
	HeartbeatInterval time.Duration // idle-sweep cadence; default 5s
	IdleTimeout       time.Duration // silence beyond this drops the player; default 30s
	SnapshotEvery     int           // broadcast cadence echoed to clients; default 30
	Logger            *zap.Logger
	Metrics           *telemetry.Counters
}

// Hub owns all live subscribers and is safe for concurrent use. Simulation
// state stays behind the engine; the hub only brokers between the loop's
// snapshot hook and the sockets.
type Hub struct {
	engine     *sim.Engine
	logger     *zap.Logger
	metrics    *telemetry.Counters
	configHash string

	heartbeatInterval time.Duration
	idleTimeout       time.Duration
	snapshotEvery     int

	mu   sync.Mutex
	subs map[string]*subscriber
}

// NewHub wires a hub to an engine. The engine must outlive the hub.
func NewHub(engine *sim.Engine, cfg HubConfig) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 5 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Second
	}
	if cfg.SnapshotEvery <= 0 {
		cfg.SnapshotEvery = 30
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewCounters()
	}
	return &Hub{
		engine:            engine,
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
		configHash:        proto.FormatChecksum(engine.Config().Hash()),
		heartbeatInterval: cfg.HeartbeatInterval,
		idleTimeout:       cfg.IdleTimeout,
		snapshotEvery:     cfg.SnapshotEvery,
		subs:              make(map[string]*subscriber),
	}
}

// Join admits a player: it creates the engine-side entry, sends the welcome
// gameState to the new connection, and announces the arrival to everyone
// else. The welcome frame is always the first thing the new client receives.
// The returned subscriber serializes any further writes to the connection.
func (h *Hub) Join(name, faction string, conn Conn) (sim.Player, *subscriber, error) {
	player, snap := h.engine.Join(name, faction)

	welcome, err := h.encodeState(snap)
	if err != nil {
		h.engine.Leave(player.ID)
		return sim.Player{}, nil, fmt.Errorf("encode welcome state: %w", err)
	}

	sub := newSubscriber(player.ID, conn)
	if err := sub.write(welcome); err != nil {
		h.engine.Leave(player.ID)
		conn.Close()
		return sim.Player{}, nil, fmt.Errorf("send welcome state: %w", err)
	}

	h.mu.Lock()
	h.subs[player.ID] = sub
	total := len(h.subs)
	h.mu.Unlock()

	h.metrics.Add(metricHubJoins, 1)
	h.metrics.Store(metricHubSubscribers, uint64(total))
	h.metrics.Add(metricHubBroadcastBytes, uint64(len(welcome)))

	h.announce(proto.KindPlayerJoin, proto.PlayerJoin{Player: player}, player.ID)
	h.logger.Info("player joined",
		zap.String("player_id", player.ID),
		zap.String("name", player.Name),
		zap.String("faction", player.Faction),
		zap.Int("subscribers", total),
	)
	return player, sub, nil
}

// Leave removes a player at their own request (socket closed, client quit).
func (h *Hub) Leave(playerID string) bool {
	return h.drop(playerID, "disconnect")
}

// drop removes the subscriber and engine entry for playerID and tells the
// remaining subscribers. Safe to call for ids that are already gone.
func (h *Hub) drop(playerID, reason string) bool {
	sub, left, existed := h.remove(playerID)
	if sub == nil && !existed {
		return false
	}

	h.metrics.Add(metricHubLeaves, 1)
	if existed {
		h.announce(proto.KindPlayerLeave, proto.PlayerLeave{PlayerID: left.ID}, "")
	}
	h.logger.Info("player left",
		zap.String("player_id", playerID),
		zap.String("reason", reason),
	)
	return existed
}

// remove detaches playerID from the hub and engine without announcing it.
func (h *Hub) remove(playerID string) (*subscriber, sim.Player, bool) {
	h.mu.Lock()
	sub, ok := h.subs[playerID]
	if ok {
		delete(h.subs, playerID)
	}
	total := len(h.subs)
	h.mu.Unlock()

	if ok {
		sub.conn.Close()
		h.metrics.Store(metricHubSubscribers, uint64(total))
	}

	left, existed := h.engine.Leave(playerID)
	return sub, left, existed
}

// BroadcastSnapshot encodes one snapshot and fans it out to every
// subscriber. Wire it to the loop's OnSnapshot hook.
func (h *Hub) BroadcastSnapshot(snap sim.Snapshot) {
	data, err := h.encodeState(snap)
	if err != nil {
		h.logger.Error("encode snapshot", zap.Uint64("tick", snap.Tick), zap.Error(err))
		return
	}
	h.metrics.Add(metricHubBroadcasts, 1)
	h.send(data, "")
}

func (h *Hub) encodeState(snap sim.Snapshot) ([]byte, error) {
	now := time.Now()
	state := proto.GameState{
		Snapshot:      snap,
		ServerTime:    now.UnixMilli(),
		Checksum:      proto.FormatChecksum(snap.Checksum()),
		ConfigHash:    h.configHash,
		SnapshotEvery: h.snapshotEvery,
	}
	return proto.Encode(proto.KindGameState, state, now)
}

func (h *Hub) announce(kind proto.Kind, payload proto.Outbound, exclude string) {
	data, err := proto.Encode(kind, payload, time.Now())
	if err != nil {
		h.logger.Error("encode announcement", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	h.send(data, exclude)
}

// send writes data to every subscriber except exclude. Writes happen outside
// the hub lock; subscribers whose write fails are dropped afterwards so the
// sweep cannot mutate the map mid-iteration.
func (h *Hub) send(data []byte, exclude string) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs))
	for id, sub := range h.subs {
		if id == exclude {
			continue
		}
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	var failed []string
	for _, sub := range targets {
		if err := sub.write(data); err != nil {
			h.logger.Warn("send failed",
				zap.String("player_id", sub.playerID),
				zap.Error(err),
			)
			h.metrics.Add(metricHubSendFailures, 1)
			failed = append(failed, sub.playerID)
			continue
		}
		h.metrics.Add(metricHubBroadcastBytes, uint64(len(data)))
	}
	for _, id := range failed {
		h.drop(id, "write_failed")
	}
}

// Heartbeat records liveness for playerID and returns the smoothed RTT. A
// clientSent wildly ahead of the server clock is ignored rather than
// producing a negative RTT.
func (h *Hub) Heartbeat(playerID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[playerID]
	if !ok {
		return 0, false
	}

	sub.lastHeartbeat = receivedAt
	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			sub.lastRTT = rtt
		}
	}
	return sub.lastRTT, true
}

// Run sweeps for idle subscribers until ctx is cancelled, then closes every
// remaining connection with a going-away frame.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case now := <-ticker.C:
			for _, id := range h.staleSubscribers(now) {
				h.metrics.Add(metricHubIdleDisconnects, 1)
				h.logger.Warn("dropping idle player", zap.String("player_id", id))
				h.drop(id, "heartbeat_timeout")
			}
		}
	}
}

func (h *Hub) staleSubscribers(now time.Time) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var stale []string
	for id, sub := range h.subs {
		if now.Sub(sub.lastHeartbeat) > h.idleTimeout {
			stale = append(stale, id)
		}
	}
	return stale
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]*subscriber)
	h.mu.Unlock()

	closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, sub := range subs {
		sub.WriteMessage(websocket.CloseMessage, closing)
		sub.conn.Close()
	}
	h.metrics.Store(metricHubSubscribers, 0)
}

// SubscriberCount reports how many connections are currently registered.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ConfigHash is the world-config fingerprint sent with every gameState.
func (h *Hub) ConfigHash() string { return h.configHash }

// HeartbeatInterval is the idle-sweep cadence; clients must beat faster.
func (h *Hub) HeartbeatInterval() time.Duration { return h.heartbeatInterval }

// TelemetrySnapshot copies the counters behind the diagnostics endpoint.
func (h *Hub) TelemetrySnapshot() map[string]uint64 { return h.metrics.Snapshot() }

// DiagnosticsPlayer is one row of the diagnostics endpoint's roster table.
type DiagnosticsPlayer struct {
	ID            string `json:"id"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}

// DiagnosticsSnapshot lists heartbeat freshness per subscriber, ordered by
// player id so the endpoint output is stable.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsPlayer {
	h.mu.Lock()
	players := make([]DiagnosticsPlayer, 0, len(h.subs))
	for id, sub := range h.subs {
		players = append(players, DiagnosticsPlayer{
			ID:            id,
			LastHeartbeat: sub.lastHeartbeat.UnixMilli(),
			RTTMillis:     sub.lastRTT.Milliseconds(),
		})
	}
	h.mu.Unlock()

	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}
