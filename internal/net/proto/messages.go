// Package proto defines the JSON wire protocol between server and clients:
// a versioned envelope around a closed set of payload kinds. Both directions
// decode through sealed unions so a handler switch that forgets a kind fails
// to compile rather than silently dropping frames.
package proto

import (
	"encoding/json"
	"fmt"
	"time"

	"dustline/server/internal/sim"
)

// Version is the wire protocol revision stamped on every envelope. Bump it
// when a payload changes shape; peers reject frames from another revision.
const Version = 1

// Kind discriminates envelope payloads.
type Kind string

const (
	// Client to server.
	KindJoin      Kind = "join"
	KindCommand   Kind = "command"
	KindHeartbeat Kind = "heartbeat" // echoed back by the server

	// Server to client.
	KindGameState   Kind = "gameState"
	KindPlayerJoin  Kind = "playerJoin"
	KindPlayerLeave Kind = "playerLeave"
)

// Envelope frames every message in both directions. Timestamp is the
// sender's clock in Unix milliseconds; payload shape is fixed by Kind.
type Envelope struct {
	Ver       int             `json:"ver"`
	Kind      Kind            `json:"type"`
	Timestamp int64           `json:"ts"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ProtocolError reports a frame that could not be understood: malformed
// JSON, an unknown kind, a version from another era. The receiver logs it
// and drops the frame; it never tears down the simulation.
type ProtocolError struct {
	Kind   string
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return "protocol: " + e.Reason
	}
	return fmt.Sprintf("protocol: %s: %s", e.Kind, e.Reason)
}

// JoinRequest is the first frame a client sends after the socket opens.
type JoinRequest struct {
	Name    string `json:"name"`
	Faction string `json:"faction"`
}

// CommandRequest wraps one player command. Data's shape depends on
// CommandKind and is parsed by ParseCommand. PlayerID is advisory; the
// server trusts the session identity instead.
type CommandRequest struct {
	CommandKind string          `json:"commandKind"`
	PlayerID    string          `json:"playerId,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// Heartbeat measures liveness and round-trip time. The client sends SentAt;
// the server echoes it back with ServerTime and the RTT it observed.
type Heartbeat struct {
	SentAt     int64 `json:"sentAt"`
	ServerTime int64 `json:"serverTime,omitempty"`
	RTTMillis  int64 `json:"rtt,omitempty"`
}

// GameState carries a full world snapshot plus transport metadata.
type GameState struct {
	sim.Snapshot
	ServerTime    int64  `json:"serverTime"`
	Checksum      string `json:"checksum"`
	ConfigHash    string `json:"configHash"`
	SnapshotEvery int    `json:"snapshotEvery"`
}

// PlayerJoin announces a new roster entry to everyone already connected.
type PlayerJoin struct {
	Player sim.Player `json:"player"`
}

// PlayerLeave announces a departure.
type PlayerLeave struct {
	PlayerID string `json:"playerId"`
}

// Inbound is the closed set of client-to-server payloads.
type Inbound interface{ inbound() }

func (JoinRequest) inbound()    {}
func (CommandRequest) inbound() {}
func (Heartbeat) inbound()      {}

// Outbound is the closed set of server-to-client payloads.
type Outbound interface{ outbound() }

func (GameState) outbound()   {}
func (PlayerJoin) outbound()  {}
func (PlayerLeave) outbound() {}
func (Heartbeat) outbound()   {}

// NewEnvelope wraps a payload for the wire.
func NewEnvelope(kind Kind, payload any, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Envelope{
		Ver:       Version,
		Kind:      kind,
		Timestamp: now.UnixMilli(),
		Payload:   raw,
	}, nil
}

// Encode marshals payload inside a stamped envelope, ready to write.
func Encode(kind Kind, payload any, now time.Time) ([]byte, error) {
	env, err := NewEnvelope(kind, payload, now)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", kind, err)
	}
	return data, nil
}

// DecodeEnvelope parses the outer frame and rejects foreign protocol
// revisions. A zero Ver is tolerated for bare test fixtures; any other
// mismatch is an error.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &ProtocolError{Reason: "malformed frame: " + err.Error()}
	}
	if env.Ver != 0 && env.Ver != Version {
		return Envelope{}, &ProtocolError{
			Kind:   string(env.Kind),
			Reason: fmt.Sprintf("unsupported protocol version %d", env.Ver),
		}
	}
	if env.Kind == "" {
		return Envelope{}, &ProtocolError{Reason: "missing message kind"}
	}
	return env, nil
}

// DecodeInbound parses the payload of a client-to-server envelope.
func DecodeInbound(env Envelope) (Inbound, error) {
	switch env.Kind {
	case KindJoin:
		var p JoinRequest
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindCommand:
		var p CommandRequest
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindHeartbeat:
		var p Heartbeat
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindGameState, KindPlayerJoin, KindPlayerLeave:
		return nil, &ProtocolError{Kind: string(env.Kind), Reason: "server-to-client kind on the inbound channel"}
	default:
		return nil, &ProtocolError{Kind: string(env.Kind), Reason: "unknown message kind"}
	}
}

// DecodeOutbound parses the payload of a server-to-client envelope.
func DecodeOutbound(env Envelope) (Outbound, error) {
	switch env.Kind {
	case KindGameState:
		var p GameState
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPlayerJoin:
		var p PlayerJoin
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindPlayerLeave:
		var p PlayerLeave
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindHeartbeat:
		var p Heartbeat
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindJoin, KindCommand:
		return nil, &ProtocolError{Kind: string(env.Kind), Reason: "client-to-server kind on the outbound channel"}
	default:
		return nil, &ProtocolError{Kind: string(env.Kind), Reason: "unknown message kind"}
	}
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return &ProtocolError{Kind: string(env.Kind), Reason: "missing payload"}
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &ProtocolError{Kind: string(env.Kind), Reason: "malformed payload: " + err.Error()}
	}
	return nil
}

// ParseCommand maps a command request onto the sim's typed union, stamping
// the session's identity as the actor. Unknown command kinds pass through
// with no payload so the tick dispatcher can log and discard them; only
// malformed data is an error here.
func ParseCommand(req CommandRequest, actorID string, now time.Time) (sim.Command, error) {
	cmd := sim.Command{
		ActorID:  actorID,
		Kind:     sim.CommandKind(req.CommandKind),
		IssuedAt: now,
	}
	switch cmd.Kind {
	case sim.CommandMove:
		var p sim.MoveCommand
		if err := unmarshalCommandData(req.Data, &p); err != nil {
			return sim.Command{}, err
		}
		cmd.Move = &p
	case sim.CommandAttack:
		var p sim.AttackCommand
		if err := unmarshalCommandData(req.Data, &p); err != nil {
			return sim.Command{}, err
		}
		cmd.Attack = &p
	case sim.CommandBuild:
		var p sim.BuildCommand
		if err := unmarshalCommandData(req.Data, &p); err != nil {
			return sim.Command{}, err
		}
		cmd.Build = &p
	case sim.CommandSelect:
		var p sim.SelectCommand
		if err := unmarshalCommandData(req.Data, &p); err != nil {
			return sim.Command{}, err
		}
		cmd.Select = &p
	}
	return cmd, nil
}

func unmarshalCommandData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return &ProtocolError{Kind: string(KindCommand), Reason: "missing command data"}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &ProtocolError{Kind: string(KindCommand), Reason: "malformed command data: " + err.Error()}
	}
	return nil
}

// FormatChecksum renders a 64-bit checksum as fixed-width hex. Strings keep
// the value intact for clients whose numbers top out at 2^53.
func FormatChecksum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
