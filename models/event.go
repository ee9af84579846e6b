package models

import "time"

// Event is a competition day owned by an organizer. Athlete registrations are
// accepted while IsOpenForInscriptions is true; stopping registrations freezes
// every category bracket of the event.
type Event struct {
	ID                    int       `json:"id" db:"id"`
	Name                  string    `json:"name" db:"name"`
	Description           *string   `json:"description,omitempty" db:"description"`
	OrganizerID           int       `json:"organizer_id" db:"organizer_id"`
	Location              *string   `json:"location,omitempty" db:"location"`
	StartDate             time.Time `json:"start_date" db:"start_date"`
	EndDate               time.Time `json:"end_date" db:"end_date"`
	IsOpenForInscriptions bool      `json:"is_open_for_inscriptions" db:"is_open_for_inscriptions"`
	PosterKey             *string   `json:"-" db:"poster_key"`
	PosterURL             *string   `json:"poster_url,omitempty" db:"-"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`

	Categories []Category `json:"categories,omitempty" db:"-"`
}
