package models

import "time"

type RegistrationStatus string

const (
	RegistrationPendingPayment RegistrationStatus = "pending_payment"
	RegistrationPaid           RegistrationStatus = "paid"
	RegistrationCancelled      RegistrationStatus = "cancelled"
)

// Registration ties an athlete to a category of an event. BracketSlot stays
// nil until the seeding repair assigns one; only paid registrations take part
// in bracket construction. Once assigned, a slot is unique within the
// category and lies in [1, bracket_capacity].
type Registration struct {
	ID          int                `json:"id" db:"id"`
	AthleteID   int                `json:"athlete_id" db:"athlete_id"`
	EventID     int                `json:"event_id" db:"event_id"`
	CategoryID  int                `json:"category_id" db:"category_id"`
	Status      RegistrationStatus `json:"status" db:"status"`
	BracketSlot *int               `json:"bracket_slot,omitempty" db:"bracket_slot"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`

	// Joined from users for bracket views, not a column of registrations.
	AthleteName string `json:"athlete_name,omitempty" db:"-"`
}
