package engine

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func last(v string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(v), Valid: true}
}

func TestGateUnchanged(t *testing.T) {
	g := NewGate(0.1)
	d := g.Evaluate(Observation{EventID: "42", Value: dec("1")}, GateState{LastSeenID: "42"})
	if d.Verdict != VerdictUnchanged {
		t.Fatalf("same event id should be unchanged, got %s", d.Verdict)
	}
}

func TestGateFiresWithoutCooldown(t *testing.T) {
	g := NewGate(0.1)
	d := g.Evaluate(Observation{EventID: "43", Value: dec("1.5")}, GateState{LastSeenID: "42", LastValue: last("1.4")})
	if d.Verdict != VerdictFire || d.Override {
		t.Fatalf("expected plain fire, got %+v", d)
	}
}

func TestGateFirstObservationFires(t *testing.T) {
	g := NewGate(0.1)
	d := g.Evaluate(Observation{EventID: "1", Value: dec("2")}, GateState{})
	if d.Verdict != VerdictFire {
		t.Fatalf("first observation should fire, got %s", d.Verdict)
	}
	if d.ChangePct.Valid {
		t.Fatal("no change percentage without a prior value")
	}
}

func TestGateOverride(t *testing.T) {
	g := NewGate(0.1)
	st := GateState{LastSeenID: "1", LastValue: last("100"), CooldownActive: true}

	d := g.Evaluate(Observation{EventID: "2", Value: dec("85")}, st)
	if d.Verdict != VerdictFire || !d.Override {
		t.Fatalf("15%% drop should override cooldown, got %+v", d)
	}
	if !d.ChangePct.Valid || !d.ChangePct.Decimal.Equal(dec("-15")) {
		t.Fatalf("change pct should be -15, got %v", d.ChangePct)
	}

	d = g.Evaluate(Observation{EventID: "2", Value: dec("97")}, st)
	if d.Verdict != VerdictSuppressed || d.Override {
		t.Fatalf("3%% drop should stay suppressed, got %+v", d)
	}

	d = g.Evaluate(Observation{EventID: "2", Value: dec("120")}, st)
	if d.Verdict != VerdictFire || !d.Override {
		t.Fatalf("20%% rise should override cooldown, got %+v", d)
	}
}

func TestGateCooldownWithoutPriorValue(t *testing.T) {
	g := NewGate(0.1)
	d := g.Evaluate(Observation{EventID: "2", Value: dec("1")}, GateState{LastSeenID: "1", CooldownActive: true})
	if d.Verdict != VerdictSuppressed {
		t.Fatalf("no prior value means no override, got %s", d.Verdict)
	}

	d = g.Evaluate(Observation{EventID: "2", Value: decimal.Zero}, GateState{LastSeenID: "1", LastValue: last("1"), CooldownActive: true})
	if d.Verdict != VerdictSuppressed {
		t.Fatalf("zero value must not divide, got %s", d.Verdict)
	}
}

func TestGateSuppressionDoesNotLoseEvent(t *testing.T) {
	g := NewGate(0.1)
	obs := Observation{EventID: "2", Value: dec("97")}
	st := GateState{LastSeenID: "1", LastValue: last("100"), CooldownActive: true}

	if d := g.Evaluate(obs, st); d.Verdict != VerdictSuppressed {
		t.Fatalf("expected suppression, got %s", d.Verdict)
	}

	// Nothing was persisted, then the cooldown lapsed: the same event is still new.
	st.CooldownActive = false
	if d := g.Evaluate(obs, st); d.Verdict != VerdictFire {
		t.Fatalf("stale cursor should let the same event fire, got %s", d.Verdict)
	}

	// After firing the caller records the id; a third poll is unchanged.
	st.LastSeenID = obs.EventID
	if d := g.Evaluate(obs, st); d.Verdict != VerdictUnchanged {
		t.Fatalf("event should fire exactly once, got %s", d.Verdict)
	}
}
