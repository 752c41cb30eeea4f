package ecs

// System is a behavior unit applied once per tick to every entity matching
// its required component set. Systems keep no per-tick state and must be
// synchronous and bounded: a blocking system stalls the whole world.
//
// Systems must not add or remove entities while traversing the slice they
// were handed; membership changes are deferred to the engine between
// systems (see internal/sim).
type System interface {
	// Name identifies the system for registration and removal.
	Name() string
	// Required declares the component kinds an entity must carry for the
	// system to see it. Fixed at construction.
	Required() []ComponentKind
	// Update processes the matched entities with the tick's time delta in
	// seconds. Entities arrive in the store's stable query order.
	Update(store *Store, entities []EntityID, dt float64)
}

// EntitySource supplies the matched entity set per system. The store
// implements it; the indirection lets server and client assemble different
// pipelines over their own stores from the same system implementations.
type EntitySource interface {
	Query(kinds ...ComponentKind) []EntityID
}

// Pipeline executes systems in registration order. Later systems observe
// mutations made by earlier systems within the same tick; there is no
// double buffering.
type Pipeline struct {
	systems []System
}

// NewPipeline returns an empty pipeline.
func NewPipeline(systems ...System) *Pipeline {
	p := &Pipeline{}
	for _, sys := range systems {
		p.Add(sys)
	}
	return p
}

// Add appends a system to the end of the execution order. Duplicate names
// are allowed; Remove drops them en masse.
func (p *Pipeline) Add(sys System) {
	if sys == nil {
		return
	}
	p.systems = append(p.systems, sys)
}

// Remove drops every system registered under the given name and reports
// how many were removed.
func (p *Pipeline) Remove(name string) int {
	kept := p.systems[:0]
	removed := 0
	for _, sys := range p.systems {
		if sys.Name() == name {
			removed++
			continue
		}
		kept = append(kept, sys)
	}
	for i := len(kept); i < len(p.systems); i++ {
		p.systems[i] = nil
	}
	p.systems = kept
	return removed
}

// Len reports the number of registered systems.
func (p *Pipeline) Len() int { return len(p.systems) }

// Names returns the registered system names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.systems))
	for i, sys := range p.systems {
		names[i] = sys.Name()
	}
	return names
}

// Update runs one tick: each system receives exactly the entities whose
// component set is a superset of its requirement, queried fresh from the
// source so membership changes applied between systems are visible to the
// systems that follow.
func (p *Pipeline) Update(store *Store, source EntitySource, dt float64) {
	if source == nil {
		source = store
	}
	for _, sys := range p.systems {
		matched := source.Query(sys.Required()...)
		sys.Update(store, matched, dt)
	}
}
