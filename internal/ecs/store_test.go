package ecs

import "testing"

func TestCreateAllocatesDistinctHandles(t *testing.T) {
	s := NewStore()
	a := s.Create()
	b := s.Create()
	if a == NilEntity || b == NilEntity {
		t.Fatal("expected non-nil entity handles")
	}
	if a == b {
		t.Fatalf("expected distinct handles, got %d twice", a)
	}
	if !s.Contains(a) || !s.Contains(b) {
		t.Fatal("expected created entities to be live")
	}
}

func TestHandlesNeverReused(t *testing.T) {
	s := NewStore()
	first := s.Create()
	s.Remove(first)
	second := s.Create()
	s.Remove(second)
	third := s.Create()

	if first == second || second == third || first == third {
		t.Fatalf("expected three distinct handles, got %d %d %d", first, second, third)
	}
}

func TestAttachGetAndTypedAccessors(t *testing.T) {
	s := NewStore()
	id := s.Create()
	s.Attach(id, &Position{X: 3, Y: 4, Z: 5})

	c := s.Get(id, KindPosition)
	if c == nil {
		t.Fatal("expected position component, got nil")
	}
	pos, ok := s.PositionOf(id)
	if !ok {
		t.Fatal("expected typed accessor to find position")
	}
	if pos.X != 3 || pos.Y != 4 || pos.Z != 5 {
		t.Fatalf("unexpected position %+v", pos)
	}
	if _, ok := s.VelocityOf(id); ok {
		t.Fatal("expected velocity accessor to report absence")
	}
}

func TestAttachReplacesSameKind(t *testing.T) {
	s := NewStore()
	id := s.Create()
	s.Attach(id, &Health{Current: 10, Max: 100})
	s.Attach(id, &Health{Current: 70, Max: 80})

	h, ok := s.HealthOf(id)
	if !ok {
		t.Fatal("expected health component")
	}
	if h.Current != 70 || h.Max != 80 {
		t.Fatalf("expected replacement component, got %+v", h)
	}
}

func TestAttachToRemovedEntityIsNoop(t *testing.T) {
	s := NewStore()
	id := s.Create()
	s.Remove(id)
	s.Attach(id, &Position{X: 1})
	if s.Get(id, KindPosition) != nil {
		t.Fatal("expected attach to a removed entity to be ignored")
	}
}

func TestRemoveCascadesAllComponents(t *testing.T) {
	s := NewStore()
	id := s.Create()
	s.Attach(id, &Position{})
	s.Attach(id, &Velocity{})
	s.Attach(id, &Health{Current: 1, Max: 1})

	s.Remove(id)

	if s.Contains(id) {
		t.Fatal("entity should be gone after Remove")
	}
	for k := ComponentKind(0); k < kindCount; k++ {
		if s.Get(id, k) != nil {
			t.Fatalf("component %s should be unreachable after Remove", k)
		}
	}
}

func TestQueryReturnsSupersetMatchesOnly(t *testing.T) {
	s := NewStore()

	both := s.Create()
	s.Attach(both, &Position{})
	s.Attach(both, &Velocity{})

	onlyPos := s.Create()
	s.Attach(onlyPos, &Position{})

	extra := s.Create()
	s.Attach(extra, &Position{})
	s.Attach(extra, &Velocity{})
	s.Attach(extra, &Health{Current: 5, Max: 5})

	got := s.Query(KindPosition, KindVelocity)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0] != both || got[1] != extra {
		t.Fatalf("unexpected match set %v", got)
	}
}

func TestQueryOrderIsStable(t *testing.T) {
	s := NewStore()
	var want []EntityID
	for i := 0; i < 16; i++ {
		id := s.Create()
		s.Attach(id, &Position{X: float64(i)})
		want = append(want, id)
	}

	for trial := 0; trial < 8; trial++ {
		got := s.Query(KindPosition)
		if len(got) != len(want) {
			t.Fatalf("trial %d: expected %d entities, got %d", trial, len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("trial %d: order changed at %d: %v", trial, i, got)
			}
		}
	}
}

func TestQueryEmptyKindsMatchesEverything(t *testing.T) {
	s := NewStore()
	a := s.Create()
	b := s.Create()
	s.Attach(b, &Position{})

	got := s.Query()
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected every live entity, got %v", got)
	}
}

func TestCreateUnitAttachesStandardBundle(t *testing.T) {
	s := NewStore()
	id := s.CreateUnit(120, 240, "rifleman", "player-1")

	pos, ok := s.PositionOf(id)
	if !ok || pos.X != 120 || pos.Y != 240 {
		t.Fatalf("unexpected position %+v ok=%v", pos, ok)
	}
	hp, ok := s.HealthOf(id)
	if !ok || hp.Current != 100 || hp.Max != 100 {
		t.Fatalf("unexpected health %+v ok=%v", hp, ok)
	}
	if !hp.Alive() {
		t.Fatal("fresh unit should be alive")
	}
	sprite, ok := s.SpriteOf(id)
	if !ok || sprite.Width != 32 || sprite.Height != 32 {
		t.Fatalf("unexpected sprite %+v ok=%v", sprite, ok)
	}
	unit, ok := s.UnitOf(id)
	if !ok || unit.Type != "rifleman" || unit.OwnerID != "player-1" {
		t.Fatalf("unexpected unit %+v ok=%v", unit, ok)
	}
	if unit.Selected {
		t.Fatal("fresh unit should not be selected")
	}
}

func TestHealthDerivedHelpers(t *testing.T) {
	h := &Health{Current: 25, Max: 100}
	if !h.Alive() {
		t.Fatal("expected alive at 25 hp")
	}
	if h.Percent() != 0.25 {
		t.Fatalf("expected 0.25, got %f", h.Percent())
	}
	h.Current = 0
	if h.Alive() {
		t.Fatal("expected dead at 0 hp")
	}
	if (&Health{}).Percent() != 0 {
		t.Fatal("expected zero percent when max unset")
	}
}
