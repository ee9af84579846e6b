package brackets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmat/openmat-api/models"
)

func TestBuildSingleEliminationRejectsBadCapacity(t *testing.T) {
	for _, capacity := range []int{0, 1, 3, 6, 12} {
		_, err := BuildSingleElimination(capacity, nil, 1, 1)
		require.Error(t, err, "capacity %d", capacity)
	}
}

func TestBuildSingleEliminationRejectsOutOfRangeSlot(t *testing.T) {
	bySlot := map[int]Athlete{5: {ID: 1, Name: "A"}}
	_, err := BuildSingleElimination(4, bySlot, 1, 1)
	require.Error(t, err)
}

func TestBuildSingleEliminationFullBracket(t *testing.T) {
	bySlot := map[int]Athlete{
		1: {ID: 101, Name: "Ana"},
		2: {ID: 102, Name: "Bruno"},
		3: {ID: 103, Name: "Caio"},
		4: {ID: 104, Name: "Duda"},
	}

	matches, err := BuildSingleElimination(4, bySlot, 7, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	// Round 1 pairs (1,2) and (3,4), then one placeholder final.
	require.Equal(t, 1, matches[0].Round)
	require.Equal(t, 1, matches[0].MatchNo)
	require.Equal(t, 1, matches[0].SlotA)
	require.Equal(t, 2, matches[0].SlotB)
	require.Equal(t, 101, *matches[0].AthleteAID)
	require.Equal(t, 102, *matches[0].AthleteBID)
	require.Equal(t, models.MatchStatusPending, matches[0].Status)
	require.False(t, matches[0].IsBye)

	require.Equal(t, 3, matches[1].SlotA)
	require.Equal(t, 4, matches[1].SlotB)

	final := matches[2]
	require.Equal(t, 2, final.Round)
	require.Equal(t, 3, final.MatchNo)
	require.Zero(t, final.SlotA)
	require.Zero(t, final.SlotB)
	require.Nil(t, final.AthleteAID)
	require.Nil(t, final.AthleteBID)
	require.Equal(t, models.MatchStatusPending, final.Status)

	for _, m := range matches {
		require.Equal(t, 7, m.EventID)
		require.Equal(t, 3, m.CategoryID)
	}
}

// Three athletes in a four-slot bracket: slot 4 is empty, its pair is a bye.
func TestBuildSingleEliminationWithBye(t *testing.T) {
	bySlot := map[int]Athlete{
		1: {ID: 101, Name: "Ana"},
		2: {ID: 102, Name: "Bruno"},
		3: {ID: 103, Name: "Caio"},
	}

	matches, err := BuildSingleElimination(4, bySlot, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	bye := matches[1]
	require.True(t, bye.IsBye)
	require.Equal(t, models.MatchStatusCompleted, bye.Status)
	require.Equal(t, 103, *bye.AthleteAID)
	require.Nil(t, bye.AthleteBID)
	require.Equal(t, 103, *bye.WinnerID)

	require.False(t, matches[0].IsBye)
	require.Nil(t, matches[0].WinnerID)
}

func TestBuildSingleEliminationByeOnSlotA(t *testing.T) {
	bySlot := map[int]Athlete{
		2: {ID: 200, Name: "Solo"},
	}

	matches, err := BuildSingleElimination(2, bySlot, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	m := matches[0]
	require.True(t, m.IsBye)
	require.Nil(t, m.AthleteAID)
	require.Equal(t, 200, *m.AthleteBID)
	require.Equal(t, 200, *m.WinnerID)
	require.Equal(t, models.MatchStatusCompleted, m.Status)
}

func TestBuildSingleEliminationEmptyPair(t *testing.T) {
	bySlot := map[int]Athlete{
		1: {ID: 101, Name: "Ana"},
		2: {ID: 102, Name: "Bruno"},
	}

	matches, err := BuildSingleElimination(8, bySlot, 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 7)

	// Pairs (3,4), (5,6), (7,8) are fully empty: pending, no bye, no winner.
	for _, m := range matches[1:4] {
		require.Equal(t, 1, m.Round)
		require.False(t, m.IsBye)
		require.Nil(t, m.AthleteAID)
		require.Nil(t, m.AthleteBID)
		require.Nil(t, m.WinnerID)
		require.Equal(t, models.MatchStatusPending, m.Status)
	}
}

func TestBuildSingleEliminationShape(t *testing.T) {
	for _, capacity := range []int{2, 4, 8, 16, 32} {
		matches, err := BuildSingleElimination(capacity, nil, 1, 1)
		require.NoError(t, err)
		require.Len(t, matches, capacity-1, "capacity %d", capacity)

		perRound := make(map[int]int)
		for i, m := range matches {
			require.Equal(t, i+1, m.MatchNo, "match numbers must be sequential")
			perRound[m.Round]++
		}
		for round := 1; round <= TotalRounds(capacity); round++ {
			require.Equal(t, capacity>>uint(round), perRound[round],
				"capacity %d round %d", capacity, round)
		}
	}
}

func TestBuildSingleEliminationDeterministic(t *testing.T) {
	bySlot := map[int]Athlete{
		1: {ID: 1, Name: "A"},
		3: {ID: 3, Name: "C"},
		6: {ID: 6, Name: "F"},
	}

	first, err := BuildSingleElimination(8, bySlot, 2, 5)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := BuildSingleElimination(8, bySlot, 2, 5)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestRound1Matches(t *testing.T) {
	matches, err := BuildSingleElimination(8, nil, 1, 1)
	require.NoError(t, err)

	round1 := Round1Matches(matches)
	require.Len(t, round1, 4)
	for _, m := range round1 {
		require.Equal(t, 1, m.Round)
	}
}

func TestTotalRounds(t *testing.T) {
	require.Equal(t, 1, TotalRounds(2))
	require.Equal(t, 2, TotalRounds(4))
	require.Equal(t, 3, TotalRounds(8))
	require.Equal(t, 4, TotalRounds(16))
}
