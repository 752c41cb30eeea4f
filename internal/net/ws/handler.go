// Package ws runs one websocket session per connected player: a join
// handshake, then a read pump that feeds commands into the simulation loop
// and answers heartbeats. All writes go through the hub's subscriber so they
// never interleave with broadcast frames.
package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dustline/server"
	"dustline/server/internal/net/intake"
	"dustline/server/internal/net/proto"
	"dustline/server/internal/sim"
)

// session is the slice of the hub subscriber the read pump replies through.
type session interface {
	WriteMessage(messageType int, data []byte) error
}

type HandlerConfig struct {
	Logger    *zap.Logger
	JoinWait  time.Duration // how long the client may take to send join; default 10s
	ReadLimit int64         // largest accepted frame in bytes; default 64KiB
}

type Handler struct {
	hub       *server.Hub
	staging   intake.CommandContext
	logger    *zap.Logger
	joinWait  time.Duration
	readLimit int64
	upgrader  websocket.Upgrader
}

func NewHandler(hub *server.Hub, loop *sim.Loop, engine *sim.Engine, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	joinWait := cfg.JoinWait
	if joinWait <= 0 {
		joinWait = 10 * time.Second
	}
	readLimit := cfg.ReadLimit
	if readLimit <= 0 {
		readLimit = 64 << 10
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub: hub,
		staging: intake.CommandContext{
			Enqueue: loop.Enqueue,
			Tick:    engine.Tick,
		},
		logger:    logger,
		joinWait:  joinWait,
		readLimit: readLimit,
		upgrader:  upgrader,
	}
}

// ServeHTTP upgrades the connection and runs the session until the client
// disconnects. The first frame must be a join; everything after that is
// commands and heartbeats.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	conn.SetReadLimit(h.readLimit)

	join, err := h.awaitJoin(conn)
	if err != nil {
		h.logger.Warn("join handshake failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		closeWith(conn, websocket.ClosePolicyViolation, "expected join")
		return
	}

	player, sess, err := h.hub.Join(join.Name, join.Faction, conn)
	if err != nil {
		h.logger.Error("join rejected",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		closeWith(conn, websocket.CloseInternalServerErr, "join failed")
		return
	}

	h.readPump(conn, sess, player.ID)
	h.hub.Leave(player.ID)
}

// awaitJoin reads the handshake frame under a deadline so a silent client
// cannot hold the goroutine forever.
func (h *Handler) awaitJoin(conn *websocket.Conn) (proto.JoinRequest, error) {
	conn.SetReadDeadline(time.Now().Add(h.joinWait))
	defer conn.SetReadDeadline(time.Time{})

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return proto.JoinRequest{}, err
	}
	env, err := proto.DecodeEnvelope(payload)
	if err != nil {
		return proto.JoinRequest{}, err
	}
	msg, err := proto.DecodeInbound(env)
	if err != nil {
		return proto.JoinRequest{}, err
	}
	join, ok := msg.(proto.JoinRequest)
	if !ok {
		return proto.JoinRequest{}, &proto.ProtocolError{
			Kind:   string(env.Kind),
			Reason: "first frame must be join",
		}
	}
	return join, nil
}

func (h *Handler) readPump(conn *websocket.Conn, sess session, playerID string) {
	log := h.logger.With(zap.String("player_id", playerID))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("connection closed", zap.Error(err))
			}
			return
		}

		env, err := proto.DecodeEnvelope(payload)
		if err != nil {
			log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		msg, err := proto.DecodeInbound(env)
		if err != nil {
			log.Warn("discarding frame",
				zap.String("kind", string(env.Kind)),
				zap.Error(err),
			)
			continue
		}

		switch m := msg.(type) {
		case proto.CommandRequest:
			h.handleCommand(log, m, playerID)
		case proto.Heartbeat:
			if !h.handleHeartbeat(sess, m, playerID) {
				return
			}
		case proto.JoinRequest:
			log.Warn("duplicate join ignored")
		}
	}
}

func (h *Handler) handleCommand(log *zap.Logger, req proto.CommandRequest, playerID string) {
	// The session identity wins; a payload claiming another player is noted
	// and overridden, never honored.
	if req.PlayerID != "" && req.PlayerID != playerID {
		log.Warn("command carried foreign player id", zap.String("claimed", req.PlayerID))
	}

	if _, ok, reason := intake.StageCommand(h.staging, playerID, req); !ok {
		log.Debug("command not staged",
			zap.String("command_kind", req.CommandKind),
			zap.String("reason", reason),
		)
	}
}

// handleHeartbeat echoes the client's timestamp with the observed RTT. A
// false return means the connection is dead and the pump should exit.
func (h *Handler) handleHeartbeat(sess session, hb proto.Heartbeat, playerID string) bool {
	now := time.Now()
	rtt, ok := h.hub.Heartbeat(playerID, now, hb.SentAt)
	if !ok {
		return true
	}

	echo := proto.Heartbeat{
		SentAt:     hb.SentAt,
		ServerTime: now.UnixMilli(),
		RTTMillis:  rtt.Milliseconds(),
	}
	data, err := proto.Encode(proto.KindHeartbeat, echo, now)
	if err != nil {
		h.logger.Error("encode heartbeat echo", zap.Error(err))
		return true
	}
	return sess.WriteMessage(websocket.TextMessage, data) == nil
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	conn.WriteMessage(websocket.CloseMessage, message)
	conn.Close()
}
