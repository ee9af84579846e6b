package models

import "time"

type BeltRank string

const (
	BeltWhite  BeltRank = "white"
	BeltBlue   BeltRank = "blue"
	BeltPurple BeltRank = "purple"
	BeltBrown  BeltRank = "brown"
	BeltBlack  BeltRank = "black"
)

// DefaultBracketCapacity is used when a category is created without an
// explicit capacity. Capacity is always a power of two >= 2 and only grows.
const DefaultBracketCapacity = 4

// Category is a belt/age/weight competition bracket inside an event.
// IsLocked flips when the organizer stops registrations: the preview bracket
// becomes a frozen set of persisted round-1 matches.
type Category struct {
	ID              int        `json:"id" db:"id"`
	EventID         int        `json:"event_id" db:"event_id"`
	Name            string     `json:"name" db:"name"`
	Belt            BeltRank   `json:"belt" db:"belt"`
	AgeDivision     string     `json:"age_division" db:"age_division"`
	WeightClass     string     `json:"weight_class" db:"weight_class"`
	BracketCapacity int        `json:"bracket_capacity" db:"bracket_capacity"`
	IsLocked        bool       `json:"is_locked" db:"is_locked"`
	LockedAt        *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}
