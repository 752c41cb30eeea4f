// Package intake stages client commands for the simulation loop: parse the
// wire payload, stamp the session identity and origin tick, and enqueue. It
// is the only path from a socket into the command buffer.
package intake

import (
	"time"

	"dustline/server/internal/net/proto"
	"dustline/server/internal/sim"
)

// RejectInvalidPayload marks frames whose command data could not be parsed.
// Queue-side reasons (queue_limit, queue_full, stopped) pass through from
// the loop untouched.
const RejectInvalidPayload = "invalid_payload"

// CommandContext carries the staging dependencies as plain funcs so sessions
// and tests can wire exactly what they need.
type CommandContext struct {
	Enqueue func(sim.Command) (bool, string)
	Tick    func() uint64
	Now     func() time.Time
}

// StageCommand turns one CommandRequest into a staged sim.Command. The
// actorID comes from the session, never from the payload. Unknown command
// kinds are staged as-is; the engine rejects them at dispatch so the tick
// telemetry counts them.
func StageCommand(ctx CommandContext, actorID string, req proto.CommandRequest) (sim.Command, bool, string) {
	var zero sim.Command

	now := time.Now()
	if ctx.Now != nil {
		now = ctx.Now()
	}

	cmd, err := proto.ParseCommand(req, actorID, now)
	if err != nil {
		return zero, false, RejectInvalidPayload
	}

	if ctx.Tick != nil {
		cmd.OriginTick = ctx.Tick()
	}

	if ctx.Enqueue == nil {
		return zero, false, sim.CommandRejectStopped
	}
	if ok, reason := ctx.Enqueue(cmd); !ok {
		return zero, false, reason
	}
	return cmd, true, ""
}
