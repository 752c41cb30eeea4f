package intake

import (
	"encoding/json"
	"testing"
	"time"

	"dustline/server/internal/ecs"
	"dustline/server/internal/net/proto"
	"dustline/server/internal/sim"
)

type fakeQueue struct {
	ok       bool
	reason   string
	commands []sim.Command
}

func (f *fakeQueue) Enqueue(cmd sim.Command) (bool, string) {
	f.commands = append(f.commands, cmd)
	if f.ok {
		return true, ""
	}
	return false, f.reason
}

func moveRequest(t *testing.T) proto.CommandRequest {
	t.Helper()
	data, err := json.Marshal(sim.MoveCommand{EntityIDs: []ecs.EntityID{1}, TargetX: 64, TargetY: 32})
	if err != nil {
		t.Fatalf("marshal move payload: %v", err)
	}
	return proto.CommandRequest{CommandKind: string(sim.CommandMove), Data: data}
}

func TestStageCommandStampsIdentityAndTick(t *testing.T) {
	queue := &fakeQueue{ok: true}
	issuedAt := time.Unix(100, 0)
	ctx := CommandContext{
		Enqueue: queue.Enqueue,
		Tick:    func() uint64 { return 42 },
		Now:     func() time.Time { return issuedAt },
	}

	req := moveRequest(t)
	req.PlayerID = "someone-else" // payload identity must lose to the session

	cmd, ok, reason := StageCommand(ctx, "player-1", req)
	if !ok {
		t.Fatalf("expected command to be staged, got reason %q", reason)
	}
	if cmd.ActorID != "player-1" {
		t.Fatalf("expected session actor id, got %q", cmd.ActorID)
	}
	if cmd.OriginTick != 42 {
		t.Fatalf("expected OriginTick 42, got %d", cmd.OriginTick)
	}
	if !cmd.IssuedAt.Equal(issuedAt) {
		t.Fatalf("expected IssuedAt %v, got %v", issuedAt, cmd.IssuedAt)
	}
	if cmd.Move == nil || cmd.Move.TargetX != 64 {
		t.Fatalf("expected parsed move payload, got %+v", cmd.Move)
	}
	if len(queue.commands) != 1 {
		t.Fatalf("expected one staged command, got %d", len(queue.commands))
	}
}

func TestStageCommandRejectsMalformedData(t *testing.T) {
	queue := &fakeQueue{ok: true}
	ctx := CommandContext{Enqueue: queue.Enqueue}

	req := proto.CommandRequest{CommandKind: string(sim.CommandMove), Data: json.RawMessage(`{"entityIds":`)}
	_, ok, reason := StageCommand(ctx, "player-1", req)
	if ok {
		t.Fatalf("expected rejection for malformed data")
	}
	if reason != RejectInvalidPayload {
		t.Fatalf("expected reason %q, got %q", RejectInvalidPayload, reason)
	}
	if len(queue.commands) != 0 {
		t.Fatalf("malformed command must not reach the queue")
	}
}

func TestStageCommandPropagatesQueueReason(t *testing.T) {
	queue := &fakeQueue{ok: false, reason: sim.CommandRejectQueueLimit}
	ctx := CommandContext{Enqueue: queue.Enqueue}

	_, ok, reason := StageCommand(ctx, "player-1", moveRequest(t))
	if ok {
		t.Fatalf("expected rejection from queue")
	}
	if reason != sim.CommandRejectQueueLimit {
		t.Fatalf("expected queue reason %q, got %q", sim.CommandRejectQueueLimit, reason)
	}
}

func TestStageCommandStagesUnknownKindsForDispatch(t *testing.T) {
	queue := &fakeQueue{ok: true}
	ctx := CommandContext{Enqueue: queue.Enqueue}

	req := proto.CommandRequest{CommandKind: "teleport", Data: json.RawMessage(`{}`)}
	cmd, ok, reason := StageCommand(ctx, "player-1", req)
	if !ok {
		t.Fatalf("unknown kinds stage for engine-side rejection, got reason %q", reason)
	}
	if cmd.Kind != sim.CommandKind("teleport") {
		t.Fatalf("expected kind to pass through, got %q", cmd.Kind)
	}
}

func TestStageCommandHandlesMissingQueue(t *testing.T) {
	_, ok, reason := StageCommand(CommandContext{}, "player-1", moveRequest(t))
	if ok {
		t.Fatalf("expected rejection when queue is absent")
	}
	if reason != sim.CommandRejectStopped {
		t.Fatalf("expected reason %q, got %q", sim.CommandRejectStopped, reason)
	}
}
