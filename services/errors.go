package services

import "errors"

// Errors shared across services and the HTTP mapping layer.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")

	// Authentication / authorization. Event and category lookups that fail
	// for a non-owning caller surface ErrForbiddenOperation too, so callers
	// cannot probe which events exist.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Registration business rules
	ErrRegistrationNotOpen      = errors.New("event registration is not open")
	ErrCategoryLocked           = errors.New("category bracket is locked")
	ErrRegistrationConflict     = errors.New("athlete is already registered for this category")
	ErrRegistrationNotPending   = errors.New("registration is not awaiting payment")
	ErrRegistrationNotCancelled = errors.New("registration cannot be cancelled in its current status")

	// Bracket lifecycle
	ErrRegistrationsAlreadyClosed = errors.New("registrations are already closed for this event")
	ErrRegistrationsAlreadyOpen   = errors.New("registrations are already open for this event")
	ErrCategoryAlreadyLocked      = errors.New("category bracket is already locked")

	// Entity-specific not-found (more context than the generic ErrNotFound)
	ErrUserNotFound         = errors.New("user not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrRegistrationNotFound = errors.New("registration not found")

	// Event validation
	ErrEventNameRequired      = errors.New("event name is required")
	ErrEventInvalidDateRange  = errors.New("event end date must be after start date")
	ErrCategoryNameRequired   = errors.New("category name is required")
	ErrCategoryInvalidBracket = errors.New("bracket capacity must be a power of two >= 2")
)
