package engine

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nft-alerts/internal/market"
	"nft-alerts/internal/state"
)

// snapshotOf builds a newest-first snapshot of size n with ids n..1.
func snapshotOf(n int) []market.Sale {
	out := make([]market.Sale, n)
	for i := range out {
		out[i] = market.Sale{ID: strconv.Itoa(n - i)}
	}
	return out
}

func TestProperty_ResolveCatchUp(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Emitted events are exactly the ones newer than the cursor, oldest first.
	properties.Property("emits events newer than the cursor in chronological order", prop.ForAll(
		func(size, cursorPos int) bool {
			if cursorPos >= size {
				cursorPos = size - 1
			}
			snapshot := snapshotOf(size)
			cursor := state.Cursor{LastSeenID: snapshot[cursorPos].ID, Set: true}

			res := Resolve(snapshot, cursor)
			if len(res.Emit) != cursorPos {
				return false
			}
			for i, ev := range res.Emit {
				if ev.ID != snapshot[cursorPos-1-i].ID {
					return false
				}
			}
			if cursorPos == 0 {
				return res.Action == ActionNone
			}
			return res.Action == ActionAdvance && res.NewCursor == snapshot[0].ID
		},
		gen.IntRange(1, 500),
		gen.IntRange(0, 499),
	))

	// Applying a resolution and polling again with the same snapshot emits nothing.
	properties.Property("re-polling an unchanged snapshot is idempotent", prop.ForAll(
		func(size, cursorPos int) bool {
			if cursorPos >= size {
				cursorPos = size - 1
			}
			snapshot := snapshotOf(size)
			first := Resolve(snapshot, state.Cursor{LastSeenID: snapshot[cursorPos].ID, Set: true})

			next := state.Cursor{LastSeenID: snapshot[cursorPos].ID, Set: true}
			if first.NewCursor != "" {
				next.LastSeenID = first.NewCursor
			}
			second := Resolve(snapshot, next)
			return second.Action == ActionNone && len(second.Emit) == 0
		},
		gen.IntRange(1, 500),
		gen.IntRange(0, 499),
	))

	// A cursor outside the window never emits and never sets a cursor.
	properties.Property("cursor outside the window resets", prop.ForAll(
		func(size int) bool {
			res := Resolve(snapshotOf(size), state.Cursor{LastSeenID: "missing", Set: true})
			return res.Action == ActionGap && len(res.Emit) == 0 && res.NewCursor == "" && res.Missed == size
		},
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}
