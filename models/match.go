package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match is one bout of a category bracket. Only round-1 matches are ever
// persisted; later rounds exist as in-memory placeholders of the preview with
// SlotA = SlotB = 0. For round 1, SlotA is odd and SlotB = SlotA + 1.
// MatchNo numbers matches sequentially across the whole bracket, round 1
// first.
type Match struct {
	ID         int         `json:"id" db:"id"`
	EventID    int         `json:"event_id" db:"event_id"`
	CategoryID int         `json:"category_id" db:"category_id"`
	Round      int         `json:"round" db:"round"`
	MatchNo    int         `json:"match_no" db:"match_no"`
	SlotA      int         `json:"slot_a" db:"slot_a"`
	SlotB      int         `json:"slot_b" db:"slot_b"`
	AthleteAID *int        `json:"athlete_a_id,omitempty" db:"athlete_a_id"`
	AthleteBID *int        `json:"athlete_b_id,omitempty" db:"athlete_b_id"`
	WinnerID   *int        `json:"winner_id,omitempty" db:"winner_id"`
	IsBye      bool        `json:"is_bye" db:"is_bye"`
	Status     MatchStatus `json:"status" db:"status"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`

	// Joined from users when reading a frozen bracket.
	AthleteAName *string `json:"athlete_a_name,omitempty" db:"-"`
	AthleteBName *string `json:"athlete_b_name,omitempty" db:"-"`
}
