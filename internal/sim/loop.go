package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped by per-actor
	// throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the shared command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectStopped indicates the loop has shut down for good.
	CommandRejectStopped = "stopped"
)

const (
	metricTickDuration    = "sim_tick_duration_micros"
	metricCommandsDropped = "sim_commands_dropped_total"
	metricSnapshots       = "sim_snapshots_total"
)

// LoopState tracks where the loop is in its lifecycle. Stopped is terminal;
// a stopped loop is never restarted.
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopPaused
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopPaused:
		return "paused"
	case LoopStopped:
		return "stopped"
	}
	return "unknown"
}

// LoopConfig tunes tick cadence, broadcast cadence, and command intake.
type LoopConfig struct {
	TickRate        int // simulation steps per second; default 60
	SnapshotEvery   int // broadcast a snapshot every Nth tick; default 30
	CommandCapacity int // shared command ring size; default 1024
	PerActorLimit   int // staged commands allowed per player; default 32
	WarningStep     int // queue depth between saturation warnings; 0 disables
}

func (c LoopConfig) normalized() LoopConfig {
	if c.TickRate <= 0 {
		c.TickRate = 60
	}
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = 30
	}
	if c.CommandCapacity <= 0 {
		c.CommandCapacity = 1024
	}
	if c.PerActorLimit <= 0 {
		c.PerActorLimit = 32
	}
	if c.WarningStep < 0 {
		c.WarningStep = 0
	}
	return c
}

// LoopHooks let the owner observe the loop without the loop knowing who is
// listening. OnSnapshot fires on the broadcast cadence with a fresh deep
// copy; the other two surface intake pressure.
type LoopHooks struct {
	OnSnapshot     func(Snapshot)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop drives the engine at a fixed cadence and owns the staging buffer
// between the network edge and the tick. Each tick drains the buffer in
// arrival order, advances the engine once with dt = 1/TickRate, and decides
// whether this tick broadcasts.
type Loop struct {
	engine *Engine
	buffer *CommandBuffer
	hooks  LoopHooks
	config LoopConfig
	logger *zap.Logger

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	stateMu sync.Mutex
	state   LoopState
	stop    chan struct{}
}

// NewLoop wraps an engine with command staging and the tick driver.
func NewLoop(engine *Engine, cfg LoopConfig, hooks LoopHooks) *Loop {
	if engine == nil {
		return nil
	}
	cfg = cfg.normalized()
	return &Loop{
		engine:        engine,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, engine.metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        engine.logger,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
		stop:          make(chan struct{}),
	}
}

// State reports the loop lifecycle state.
func (l *Loop) State() LoopState {
	if l == nil {
		return LoopStopped
	}
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.state
}

// TickInterval is the wall-clock spacing between ticks.
func (l *Loop) TickInterval() time.Duration {
	return time.Second / time.Duration(l.config.TickRate)
}

// TickRate reports simulation steps per second.
func (l *Loop) TickRate() int { return l.config.TickRate }

// SnapshotEvery reports the broadcast cadence in ticks.
func (l *Loop) SnapshotEvery() int { return l.config.SnapshotEvery }

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command for the next tick, enforcing per-actor throttling
// and buffer capacity. It never blocks; the caller learns the drop reason
// and the command simply vanishes, as delivery was never guaranteed.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if l.State() == LoopStopped {
		return false, CommandRejectStopped
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Run drives the loop until the context is canceled or Stop is called. It
// may be called once, on an idle loop; the in-flight tick always completes
// before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.transition(LoopIdle, LoopRunning, StatusPlaying, "run"); err != nil {
		return err
	}

	dt := 1.0 / float64(l.config.TickRate)
	ticker := time.NewTicker(l.TickInterval())
	defer ticker.Stop()

	l.logger.Info("simulation loop started",
		zap.Int("tickRate", l.config.TickRate),
		zap.Int("snapshotEvery", l.config.SnapshotEvery),
	)

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return nil
		case <-l.stop:
			return nil
		case <-ticker.C:
			if l.State() != LoopRunning {
				continue
			}
			l.runTick(dt)
		}
	}
}

func (l *Loop) runTick(dt float64) {
	start := time.Now()
	commands := l.drainCommands()
	result := l.engine.Advance(commands, dt)
	result.Duration = time.Since(start)
	l.engine.metrics.Store(metricTickDuration, uint64(result.Duration.Microseconds()))

	if result.Tick%uint64(l.config.SnapshotEvery) != 0 {
		return
	}
	l.engine.metrics.Add(metricSnapshots, 1)
	if l.hooks.OnSnapshot != nil {
		l.hooks.OnSnapshot(l.engine.Snapshot())
	}
}

// Pause suspends ticking at the next tick boundary. Commands keep buffering
// while paused.
func (l *Loop) Pause() error {
	return l.transition(LoopRunning, LoopPaused, StatusPaused, "pause")
}

// Resume continues ticking after a pause.
func (l *Loop) Resume() error {
	return l.transition(LoopPaused, LoopRunning, StatusPlaying, "resume")
}

// Stop ends the loop for good. Safe to call from any state and more than
// once; a tick already executing finishes first.
func (l *Loop) Stop() {
	if l == nil {
		return
	}
	l.stateMu.Lock()
	if l.state == LoopStopped {
		l.stateMu.Unlock()
		return
	}
	from := l.state
	l.state = LoopStopped
	close(l.stop)
	l.stateMu.Unlock()

	l.engine.SetStatus(StatusEnded)
	l.logger.Info("simulation loop stopped", zap.String("from", from.String()))
}

func (l *Loop) transition(from, to LoopState, status Status, op string) error {
	l.stateMu.Lock()
	if l.state != from {
		cur := l.state
		l.stateMu.Unlock()
		return &LifecycleError{Op: op, Reason: "loop is " + cur.String()}
	}
	l.state = to
	l.stateMu.Unlock()

	l.engine.SetStatus(status)
	l.logger.Info("loop state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	return nil
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
	l.logger.Warn("command queue filling", zap.Int("length", length))
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	l.engine.metrics.Add(metricCommandsDropped, 1)
	// Per-actor drops log on power-of-two counts so a spamming client cannot
	// flood the log.
	if reason == CommandRejectQueueLimit && count > 0 && count&(count-1) == 0 {
		l.logger.Warn("dropping command under backpressure",
			zap.String("actor", cmd.ActorID),
			zap.String("kind", string(cmd.Kind)),
			zap.Uint64("count", count),
			zap.Int("limit", l.config.PerActorLimit),
		)
	}
}
