package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openmat/openmat-api/brackets"
	"github.com/openmat/openmat-api/models"
	"github.com/openmat/openmat-api/repositories"
	"github.com/openmat/openmat-api/storage"
)

type CreateEventInput struct {
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Location    *string   `json:"location"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

type UpdateEventInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type CreateCategoryInput struct {
	Name            string `json:"name"`
	Belt            string `json:"belt"`
	AgeDivision     string `json:"age_division"`
	WeightClass     string `json:"weight_class"`
	BracketCapacity int    `json:"bracket_capacity"`
}

type EventService interface {
	CreateEvent(ctx context.Context, organizerID int, input CreateEventInput) (*models.Event, error)
	GetEvent(ctx context.Context, eventID int) (*models.Event, error)
	ListEvents(ctx context.Context, filter repositories.ListEventsFilter) ([]models.Event, error)
	UpdateEvent(ctx context.Context, eventID, organizerID int, input UpdateEventInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, eventID, organizerID int) error

	AddCategory(ctx context.Context, eventID, organizerID int, input CreateCategoryInput) (*models.Category, error)
	ListCategories(ctx context.Context, eventID int) ([]*models.Category, error)
	DeleteCategory(ctx context.Context, eventID, categoryID, organizerID int) error

	UploadPoster(ctx context.Context, eventID, organizerID int, contentType string, file io.Reader) (*models.Event, error)
}

type eventService struct {
	eventRepo    repositories.EventRepository
	categoryRepo repositories.CategoryRepository
	uploader     storage.FileUploader
	logger       *slog.Logger
}

// NewEventService wires the event CRUD surface. uploader may be nil, in which
// case poster uploads are rejected but everything else works.
func NewEventService(
	eventRepo repositories.EventRepository,
	categoryRepo repositories.CategoryRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) EventService {
	return &eventService{
		eventRepo:    eventRepo,
		categoryRepo: categoryRepo,
		uploader:     uploader,
		logger:       logger,
	}
}

func (s *eventService) requireOwnedEvent(ctx context.Context, eventID, organizerID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrForbiddenOperation
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}
	if event.OrganizerID != organizerID {
		return nil, ErrForbiddenOperation
	}
	return event, nil
}

func (s *eventService) CreateEvent(ctx context.Context, organizerID int, input CreateEventInput) (*models.Event, error) {
	if input.Name == "" {
		return nil, ErrEventNameRequired
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, ErrEventInvalidDateRange
	}

	event := &models.Event{
		Name:                  input.Name,
		Description:           input.Description,
		OrganizerID:           organizerID,
		Location:              input.Location,
		StartDate:             input.StartDate,
		EndDate:               input.EndDate,
		IsOpenForInscriptions: true,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.logger.Info("event created",
		slog.Int("event_id", event.ID),
		slog.Int("organizer_id", organizerID))
	return event, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID int) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}

	categories, err := s.categoryRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for event %d: %w", eventID, err)
	}
	event.Categories = make([]models.Category, 0, len(categories))
	for _, c := range categories {
		event.Categories = append(event.Categories, *c)
	}

	s.fillPosterURL(event)
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context, filter repositories.ListEventsFilter) ([]models.Event, error) {
	events, err := s.eventRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	for i := range events {
		s.fillPosterURL(&events[i])
	}
	return events, nil
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID, organizerID int, input UpdateEventInput) (*models.Event, error) {
	event, err := s.requireOwnedEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, ErrEventNameRequired
		}
		event.Name = *input.Name
	}
	if input.Description != nil {
		event.Description = input.Description
	}
	if input.Location != nil {
		event.Location = input.Location
	}
	if input.StartDate != nil {
		event.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		event.EndDate = *input.EndDate
	}
	if event.EndDate.Before(event.StartDate) {
		return nil, ErrEventInvalidDateRange
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to update event %d: %w", eventID, err)
	}
	s.fillPosterURL(event)
	return event, nil
}

func (s *eventService) DeleteEvent(ctx context.Context, eventID, organizerID int) error {
	event, err := s.requireOwnedEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}

	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		return fmt.Errorf("failed to delete event %d: %w", eventID, err)
	}

	if event.PosterKey != nil && s.uploader != nil {
		if delErr := s.uploader.Delete(ctx, *event.PosterKey); delErr != nil {
			s.logger.Warn("failed to delete event poster from storage",
				slog.Int("event_id", eventID),
				slog.Any("error", delErr))
		}
	}
	return nil
}

func (s *eventService) AddCategory(ctx context.Context, eventID, organizerID int, input CreateCategoryInput) (*models.Category, error) {
	event, err := s.requireOwnedEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}
	if !event.IsOpenForInscriptions {
		return nil, ErrRegistrationsAlreadyClosed
	}
	if input.Name == "" {
		return nil, ErrCategoryNameRequired
	}

	capacity := input.BracketCapacity
	if capacity == 0 {
		capacity = models.DefaultBracketCapacity
	}
	if capacity < 2 || !brackets.IsPowerOfTwo(capacity) {
		return nil, ErrCategoryInvalidBracket
	}

	category := &models.Category{
		EventID:         eventID,
		Name:            input.Name,
		Belt:            models.BeltRank(input.Belt),
		AgeDivision:     input.AgeDivision,
		WeightClass:     input.WeightClass,
		BracketCapacity: capacity,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return category, nil
}

func (s *eventService) ListCategories(ctx context.Context, eventID int) ([]*models.Category, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repositories.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %d: %w", eventID, err)
	}

	categories, err := s.categoryRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for event %d: %w", eventID, err)
	}
	return categories, nil
}

func (s *eventService) DeleteCategory(ctx context.Context, eventID, categoryID, organizerID int) error {
	if _, err := s.requireOwnedEvent(ctx, eventID, organizerID); err != nil {
		return err
	}

	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, repositories.ErrCategoryNotFound) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to load category %d: %w", categoryID, err)
	}
	if category.EventID != eventID {
		return ErrForbiddenOperation
	}
	if category.IsLocked {
		return ErrCategoryLocked
	}

	if err := s.categoryRepo.Delete(ctx, categoryID); err != nil {
		return fmt.Errorf("failed to delete category %d: %w", categoryID, err)
	}
	return nil
}

func (s *eventService) UploadPoster(ctx context.Context, eventID, organizerID int, contentType string, file io.Reader) (*models.Event, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("poster storage is not configured: %w", ErrValidationFailed)
	}
	event, err := s.requireOwnedEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}

	ext := ""
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	default:
		return nil, fmt.Errorf("unsupported poster content type %q: %w", contentType, ErrValidationFailed)
	}

	key := fmt.Sprintf("events/%d/poster/%s%s", eventID, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload poster for event %d: %w", eventID, err)
	}

	oldKey := event.PosterKey
	if err := s.eventRepo.UpdatePosterKey(ctx, eventID, &result.Key); err != nil {
		return nil, fmt.Errorf("failed to persist poster key for event %d: %w", eventID, err)
	}
	event.PosterKey = &result.Key

	if oldKey != nil && *oldKey != result.Key {
		if delErr := s.uploader.Delete(ctx, *oldKey); delErr != nil {
			s.logger.Warn("failed to delete previous poster",
				slog.Int("event_id", eventID),
				slog.String("key", *oldKey),
				slog.Any("error", delErr))
		}
	}

	s.fillPosterURL(event)
	return event, nil
}

func (s *eventService) fillPosterURL(event *models.Event) {
	if event.PosterKey == nil || s.uploader == nil {
		return
	}
	url := s.uploader.GetPublicURL(*event.PosterKey)
	if url != "" {
		event.PosterURL = &url
	}
}
