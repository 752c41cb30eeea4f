// Package net assembles the server's HTTP surface: the websocket endpoint,
// health and diagnostics probes, and an optional static client directory.
package net

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"go.uber.org/zap"

	"dustline/server"
	"dustline/server/internal/net/ws"
	"dustline/server/internal/sim"
)

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    *zap.Logger
	JoinWait  time.Duration
}

type diagnosticsPayload struct {
	Status        string                     `json:"status"`
	ServerTime    int64                      `json:"serverTime"`
	Tick          uint64                     `json:"tick"`
	LoopState     string                     `json:"loopState"`
	TickRate      int                        `json:"tickRate"`
	SnapshotEvery int                        `json:"snapshotEvery"`
	ConfigHash    string                     `json:"configHash"`
	Heartbeat     int64                      `json:"heartbeatMillis"`
	Players       []server.DiagnosticsPlayer `json:"players"`
	Telemetry     map[string]uint64          `json:"telemetry"`
}

// NewHTTPHandler builds the mux. The hub handles connections, the loop
// answers cadence questions, and the engine reports authoritative state.
func NewHTTPHandler(engine *sim.Engine, loop *sim.Loop, hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := nethttp.NewServeMux()

	mux.Handle("/ws", ws.NewHandler(hub, loop, engine, ws.HandlerConfig{
		Logger:   logger,
		JoinWait: cfg.JoinWait,
	}))

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := diagnosticsPayload{
			Status:        string(engine.Status()),
			ServerTime:    time.Now().UnixMilli(),
			Tick:          engine.Tick(),
			LoopState:     loop.State().String(),
			TickRate:      loop.TickRate(),
			SnapshotEvery: loop.SnapshotEvery(),
			ConfigHash:    hub.ConfigHash(),
			Heartbeat:     hub.HeartbeatInterval().Milliseconds(),
			Players:       hub.DiagnosticsSnapshot(),
			Telemetry:     hub.TelemetrySnapshot(),
		}

		data, err := json.Marshal(payload)
		if err != nil {
			logger.Error("encode diagnostics", zap.Error(err))
			nethttp.Error(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}
