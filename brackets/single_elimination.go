// openmat-api/brackets/single_elimination.go
package brackets

import (
	"fmt"
	"math/bits"

	"github.com/openmat/openmat-api/models"
)

// Athlete is the minimal identity needed to place somebody on a bracket.
type Athlete struct {
	ID   int
	Name string
}

// TotalRounds returns log2(capacity) for a power-of-two capacity.
func TotalRounds(capacity int) int {
	return bits.Len(uint(capacity)) - 1
}

// BuildSingleElimination produces the complete match tree for one category:
// capacity/2 round-1 matches pairing slots (2k-1, 2k), then empty placeholder
// matches for every later round, capacity-1 matches in total.
//
// Round-1 rules: both slots filled -> pending bout; exactly one filled -> bye,
// the present athlete wins immediately; neither filled -> an empty pending
// match is still emitted so the bracket shape stays complete. Placeholder
// rounds carry SlotA = SlotB = 0 because their pairings only exist once
// round-1 results do.
//
// Pure and deterministic: identical inputs yield identical output, which the
// preview path relies on since it rebuilds the bracket on every read.
func BuildSingleElimination(capacity int, bySlot map[int]Athlete, eventID, categoryID int) ([]models.Match, error) {
	if !IsPowerOfTwo(capacity) {
		return nil, fmt.Errorf("bracket capacity must be a power of two >= 2, got %d", capacity)
	}
	for slot := range bySlot {
		if slot < 1 || slot > capacity {
			return nil, fmt.Errorf("slot %d outside bracket capacity %d", slot, capacity)
		}
	}

	totalRounds := TotalRounds(capacity)
	matches := make([]models.Match, 0, capacity-1)
	matchNo := 0

	for k := 1; k <= capacity/2; k++ {
		slotA := 2*k - 1
		slotB := 2 * k
		matchNo++

		m := models.Match{
			EventID:    eventID,
			CategoryID: categoryID,
			Round:      1,
			MatchNo:    matchNo,
			SlotA:      slotA,
			SlotB:      slotB,
			Status:     models.MatchStatusPending,
		}

		a, okA := bySlot[slotA]
		b, okB := bySlot[slotB]
		switch {
		case okA && okB:
			aID, bID := a.ID, b.ID
			m.AthleteAID = &aID
			m.AthleteBID = &bID
		case okA:
			aID := a.ID
			m.AthleteAID = &aID
			m.WinnerID = &aID
			m.IsBye = true
			m.Status = models.MatchStatusCompleted
		case okB:
			bID := b.ID
			m.AthleteBID = &bID
			m.WinnerID = &bID
			m.IsBye = true
			m.Status = models.MatchStatusCompleted
		default:
			// Fully empty pair from an under-subscribed bracket. Repair
			// normally prevents this, but the builder must not choke on it.
		}

		matches = append(matches, m)
	}

	for round := 2; round <= totalRounds; round++ {
		count := capacity >> uint(round)
		for i := 0; i < count; i++ {
			matchNo++
			matches = append(matches, models.Match{
				EventID:    eventID,
				CategoryID: categoryID,
				Round:      round,
				MatchNo:    matchNo,
				Status:     models.MatchStatusPending,
			})
		}
	}

	return matches, nil
}

// Round1Matches filters a built bracket down to what the lock controller
// actually persists.
func Round1Matches(all []models.Match) []models.Match {
	out := make([]models.Match, 0, len(all))
	for _, m := range all {
		if m.Round == 1 {
			out = append(out, m)
		}
	}
	return out
}
