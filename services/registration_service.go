package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openmat/openmat-api/models"
	"github.com/openmat/openmat-api/repositories"
)

// RegistrationService handles athlete inscriptions. Registrations never touch
// the seeding here: bracket slots are assigned later by the seeding repair,
// and only paid registrations take part in it.
type RegistrationService interface {
	RegisterAthlete(ctx context.Context, athleteID, eventID, categoryID int) (*models.Registration, error)
	ConfirmPayment(ctx context.Context, registrationID, organizerID int) (*models.Registration, error)
	CancelRegistration(ctx context.Context, registrationID, athleteID int) error
}

type registrationService struct {
	eventRepo        repositories.EventRepository
	categoryRepo     repositories.CategoryRepository
	registrationRepo repositories.RegistrationRepository
	logger           *slog.Logger
}

func NewRegistrationService(
	eventRepo repositories.EventRepository,
	categoryRepo repositories.CategoryRepository,
	registrationRepo repositories.RegistrationRepository,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		eventRepo:        eventRepo,
		categoryRepo:     categoryRepo,
		registrationRepo: registrationRepo,
		logger:           logger,
	}
}

func (s *registrationService) RegisterAthlete(ctx context.Context, athleteID, eventID, categoryID int) (*models.Registration, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	if !event.IsOpenForInscriptions {
		return nil, ErrRegistrationNotOpen
	}

	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to load category %d: %w", categoryID, err)
	}
	if category.EventID != eventID {
		return nil, ErrCategoryNotFound
	}
	if category.IsLocked {
		return nil, ErrCategoryLocked
	}

	registration := &models.Registration{
		AthleteID:  athleteID,
		EventID:    eventID,
		CategoryID: categoryID,
		Status:     models.RegistrationPendingPayment,
	}
	if err := s.registrationRepo.Create(ctx, registration); err != nil {
		if errors.Is(err, repositories.ErrRegistrationConflict) {
			return nil, ErrRegistrationConflict
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}

	s.logger.Info("athlete registered",
		slog.Int("registration_id", registration.ID),
		slog.Int("athlete_id", athleteID),
		slog.Int("category_id", categoryID))
	return registration, nil
}

// ConfirmPayment moves a registration from pending_payment to paid. The
// event's organizer confirms; payment collection itself happens elsewhere,
// this is the status hook.
func (s *registrationService) ConfirmPayment(ctx context.Context, registrationID, organizerID int) (*models.Registration, error) {
	registration, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrForbiddenOperation
		}
		return nil, fmt.Errorf("failed to load registration %d: %w", registrationID, err)
	}

	event, err := s.eventRepo.GetByID(ctx, registration.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", registration.EventID, err)
	}
	if event.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}

	if registration.Status != models.RegistrationPendingPayment {
		return nil, ErrRegistrationNotPending
	}

	if err := s.registrationRepo.UpdateStatus(ctx, registrationID, models.RegistrationPaid); err != nil {
		return nil, fmt.Errorf("failed to mark registration %d paid: %w", registrationID, err)
	}
	registration.Status = models.RegistrationPaid
	return registration, nil
}

func (s *registrationService) CancelRegistration(ctx context.Context, registrationID, athleteID int) error {
	registration, err := s.ownedRegistration(ctx, registrationID, athleteID)
	if err != nil {
		return err
	}
	if registration.Status == models.RegistrationCancelled {
		return ErrRegistrationNotCancelled
	}

	category, err := s.categoryRepo.GetByID(ctx, registration.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to load category %d: %w", registration.CategoryID, err)
	}
	if category.IsLocked {
		return ErrCategoryLocked
	}

	if err := s.registrationRepo.UpdateStatus(ctx, registrationID, models.RegistrationCancelled); err != nil {
		return fmt.Errorf("failed to cancel registration %d: %w", registrationID, err)
	}
	return nil
}

func (s *registrationService) ownedRegistration(ctx context.Context, registrationID, athleteID int) (*models.Registration, error) {
	registration, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, repositories.ErrRegistrationNotFound) {
			return nil, ErrForbiddenOperation
		}
		return nil, fmt.Errorf("failed to load registration %d: %w", registrationID, err)
	}
	if registration.AthleteID != athleteID {
		return nil, ErrForbiddenOperation
	}
	return registration, nil
}
