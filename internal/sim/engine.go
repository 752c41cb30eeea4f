package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"dustline/server/internal/ecs"
	"dustline/server/internal/telemetry"
)

const (
	metricCommandsApplied  = "sim_commands_applied_total"
	metricCommandsRejected = "sim_commands_rejected_total"
	metricCommandsUnknown  = "sim_commands_unknown_total"
	metricTicksTotal       = "sim_ticks_total"
	metricEntities         = "sim_entities"
	metricPlayers          = "sim_players"
)

// EngineConfig assembles an engine. Zero-value fields fall back to the base
// rules, a nop logger, and fresh counters, so tests can construct engines
// with only the world knobs they care about.
type EngineConfig struct {
	World         Config
	Rules         Rules
	DeathHook     DeathHook
	CollisionHook CollisionHook
	Logger        *zap.Logger
	Metrics       *telemetry.Counters
}

// TickResult summarizes one completed simulation step.
type TickResult struct {
	Tick     uint64
	Delta    float64
	Applied  int
	Rejected int
	Duration time.Duration
}

// Engine serializes every read and write of the authoritative world behind a
// single mutex. The loop calls Advance once per tick; joins, leaves, and
// snapshot reads take the same lock out of band, so they land between ticks,
// never inside one.
type Engine struct {
	mu       sync.Mutex
	world    *World
	pipeline *ecs.Pipeline
	rules    Rules
	logger   *zap.Logger
	metrics  *telemetry.Counters
}

// NewEngine builds a world from cfg and wires the standard pipeline:
// movement, then health, then collision.
func NewEngine(cfg EngineConfig) *Engine {
	world := NewWorld(cfg.World)
	rules := cfg.Rules
	if rules == nil {
		rules = BaseRules{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewCounters()
	}
	pipeline := ecs.NewPipeline(
		NewMovementSystem(),
		NewHealthSystem(world.Config().RegenPerSecond, cfg.DeathHook),
		NewCollisionSystem(cfg.CollisionHook),
	)
	return &Engine{
		world:    world,
		pipeline: pipeline,
		rules:    rules,
		logger:   logger,
		metrics:  metrics,
	}
}

// Advance executes one tick: commands first, then the tick counter, then the
// system pipeline. Command failures are logged and counted, never fatal; a
// bad command must not stall the match for everyone else.
func (e *Engine) Advance(cmds []Command, dt float64) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, rejected := 0, 0
	for i := range cmds {
		if err := e.dispatchLocked(&cmds[i]); err != nil {
			rejected++
			e.logger.Warn("command rejected",
				zap.String("actor", cmds[i].ActorID),
				zap.String("kind", string(cmds[i].Kind)),
				zap.Error(err),
			)
			continue
		}
		applied++
	}

	e.world.tick++
	e.pipeline.Update(e.world.store, e.world.store, dt)

	e.metrics.Add(metricTicksTotal, 1)
	if applied > 0 {
		e.metrics.Add(metricCommandsApplied, uint64(applied))
	}
	if rejected > 0 {
		e.metrics.Add(metricCommandsRejected, uint64(rejected))
	}
	e.metrics.Store(metricEntities, uint64(e.world.store.Len()))

	return TickResult{
		Tick:     e.world.tick,
		Delta:    dt,
		Applied:  applied,
		Rejected: rejected,
	}
}

func (e *Engine) dispatchLocked(cmd *Command) error {
	switch cmd.Kind {
	case CommandMove:
		return e.rules.HandleMove(e.world, cmd.ActorID, cmd.Move)
	case CommandAttack:
		return e.rules.HandleAttack(e.world, cmd.ActorID, cmd.Attack)
	case CommandBuild:
		return e.rules.HandleBuild(e.world, cmd.ActorID, cmd.Build)
	case CommandSelect:
		return e.rules.HandleSelect(e.world, cmd.ActorID, cmd.Select)
	default:
		e.metrics.Add(metricCommandsUnknown, 1)
		return invalidf("kind", "unknown command kind %q", cmd.Kind)
	}
}

// Join admits a player between ticks and returns their roster entry along
// with a snapshot for the welcome message, captured atomically so the new
// player sees themselves in it.
func (e *Engine) Join(name, faction string) (Player, Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.world.AddPlayer(name, faction)
	e.metrics.Store(metricPlayers, uint64(e.world.PlayerCount()))
	e.logger.Info("player joined",
		zap.String("player", p.ID),
		zap.String("name", p.Name),
		zap.String("faction", p.Faction),
	)
	return *p, e.world.Snapshot()
}

// Leave removes a player and destroys their units. The returned copy carries
// the final roster state for the leave notice.
func (e *Engine) Leave(playerID string) (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.world.RemovePlayer(playerID)
	if !ok {
		return Player{}, false
	}
	e.metrics.Store(metricPlayers, uint64(e.world.PlayerCount()))
	e.logger.Info("player left", zap.String("player", playerID))
	return p, true
}

// Snapshot deep-copies the world between ticks.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.world.Snapshot()
}

// Tick reports the number of completed steps.
func (e *Engine) Tick() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.world.tick
}

// Status reports the match lifecycle state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.world.status
}

// SetStatus moves the match lifecycle state; the loop drives this as it
// starts, pauses, resumes, and stops.
func (e *Engine) SetStatus(s Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.world.SetStatus(s)
}

// PlayerCount reports the roster size.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.world.PlayerCount()
}

// Config returns the world configuration. Immutable after construction, so
// no lock is taken.
func (e *Engine) Config() Config {
	return e.world.config
}
