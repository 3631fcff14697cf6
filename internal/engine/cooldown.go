package engine

import (
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Verdict is the cooldown gate's decision.
type Verdict int

const (
	// VerdictUnchanged means the newest event is the one already alerted.
	VerdictUnchanged Verdict = iota
	// VerdictSuppressed means a new event arrived during the cooldown window. No
	// state may be written, so the same event is re-evaluated next poll.
	VerdictSuppressed
	// VerdictFire means the caller should persist state and notify.
	VerdictFire
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuppressed:
		return "suppressed"
	case VerdictFire:
		return "fire"
	default:
		return "unchanged"
	}
}

// Observation is the newest event of a value stream.
type Observation struct {
	EventID string
	Value   decimal.Decimal
}

// GateState is the persisted state of a value stream.
type GateState struct {
	LastSeenID     string
	LastValue      decimal.NullDecimal
	CooldownActive bool
}

// Decision is the gate's output.
type Decision struct {
	Verdict Verdict
	// Override is set when a large swing bypassed an active cooldown.
	Override bool
	// ChangePct is the move from the last alerted value in percent, when known.
	ChangePct decimal.NullDecimal
}

// Gate decides whether a value change may alert.
type Gate struct {
	// OverrideThreshold is the fractional change (0.1 = 10%) that bypasses an
	// active cooldown.
	OverrideThreshold decimal.Decimal
}

// NewGate builds a gate from a fractional override threshold.
func NewGate(threshold float64) Gate {
	return Gate{OverrideThreshold: decimal.NewFromFloat(threshold)}
}

// Evaluate applies the cooldown rules to the newest observation.
func (g Gate) Evaluate(obs Observation, st GateState) Decision {
	if obs.EventID == st.LastSeenID {
		return Decision{Verdict: VerdictUnchanged}
	}

	dec := Decision{ChangePct: changePct(st.LastValue, obs.Value)}

	cooling := st.CooldownActive
	if cooling && g.exceedsOverride(st.LastValue, obs.Value) {
		cooling = false
		dec.Override = true
	}
	if cooling {
		dec.Verdict = VerdictSuppressed
		return dec
	}
	dec.Verdict = VerdictFire
	return dec
}

// exceedsOverride compares last/new against 1±threshold. Without a prior value
// or with a zero new value there is no ratio and the cooldown stands.
func (g Gate) exceedsOverride(last decimal.NullDecimal, value decimal.Decimal) bool {
	if !last.Valid || value.IsZero() {
		return false
	}
	ratio := last.Decimal.Div(value)
	return ratio.GreaterThan(one.Add(g.OverrideThreshold)) || ratio.LessThan(one.Sub(g.OverrideThreshold))
}

func changePct(last decimal.NullDecimal, value decimal.Decimal) decimal.NullDecimal {
	if !last.Valid || last.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	pct := value.Sub(last.Decimal).Div(last.Decimal).Mul(hundred)
	return decimal.NullDecimal{Decimal: pct, Valid: true}
}
