// Package engine turns polled, possibly overlapping "latest N events" snapshots
// into an ordered, deduplicated notification stream.
//
// Resolve handles item streams (listings, sales) against a persisted cursor.
// Gate handles value streams (floor price, top bid) against a cooldown window.
// Both are pure: callers own fetching, persistence and delivery.
package engine

import (
	"nft-alerts/internal/market"
	"nft-alerts/internal/state"
)

// Action tells the caller what to do with the cursor after a resolution.
type Action int

const (
	// ActionNone leaves the cursor untouched.
	ActionNone Action = iota
	// ActionInit is the first poll of a stream: record NewCursor, post the
	// "starting from here" notice, emit nothing.
	ActionInit
	// ActionAdvance emits the new events and records NewCursor.
	ActionAdvance
	// ActionGap means the cursor fell outside the fetched window. The cursor must
	// be cleared so the next poll starts over as a first run.
	ActionGap
)

func (a Action) String() string {
	switch a {
	case ActionInit:
		return "init"
	case ActionAdvance:
		return "advance"
	case ActionGap:
		return "gap"
	default:
		return "none"
	}
}

// Resolution is the outcome of comparing a snapshot with a cursor.
type Resolution[E market.Event] struct {
	Action Action
	// Emit holds the new events, oldest first.
	Emit []E
	// Suppressed holds new events collapsed as duplicates of their predecessor.
	Suppressed []E
	// NewCursor is the id to persist for ActionInit and ActionAdvance.
	NewCursor string
	// Missed is a lower bound on the events lost in a gap.
	Missed int
}

// Resolve compares a newest-first snapshot with the stream's cursor.
func Resolve[E market.Event](snapshot []E, cursor state.Cursor) Resolution[E] {
	if len(snapshot) == 0 {
		return Resolution[E]{Action: ActionNone}
	}

	newest := snapshot[0].EventID()
	if !cursor.Set {
		return Resolution[E]{Action: ActionInit, NewCursor: newest}
	}
	if newest == cursor.LastSeenID {
		return Resolution[E]{Action: ActionNone}
	}

	idx := indexOf(snapshot, cursor.LastSeenID)
	if idx < 0 {
		return Resolution[E]{Action: ActionGap, Missed: len(snapshot)}
	}

	res := Resolution[E]{
		Action:    ActionAdvance,
		NewCursor: newest,
		Emit:      make([]E, 0, idx),
	}
	// Walk from the oldest new event up to the newest. snapshot[i+1] is the event
	// just before snapshot[i] in time; for the oldest new event that is the
	// cursor's own event.
	for i := idx - 1; i >= 0; i-- {
		if isDuplicate(snapshot[i], snapshot[i+1]) {
			res.Suppressed = append(res.Suppressed, snapshot[i])
			continue
		}
		res.Emit = append(res.Emit, snapshot[i])
	}
	return res
}

func indexOf[E market.Event](snapshot []E, id string) int {
	for i, ev := range snapshot {
		if ev.EventID() == id {
			return i
		}
	}
	return -1
}

func isDuplicate(ev, prev market.Event) bool {
	key := ev.GroupKey()
	return key != "" && key == prev.GroupKey()
}
