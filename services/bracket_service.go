package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmat/openmat-api/brackets"
	"github.com/openmat/openmat-api/models"
	"github.com/openmat/openmat-api/repositories"
)

// BracketService drives the two-state bracket lifecycle of every category:
// while an event is open for inscriptions a bracket is a recomputed preview;
// stopping registrations freezes each category's round-1 matches into
// persisted rows; reopening discards them and reverts to preview mode.
type BracketService interface {
	StopRegistrations(ctx context.Context, eventID, organizerID int) (*LockReport, error)
	ReopenRegistrations(ctx context.Context, eventID, organizerID int) error
	GetBracket(ctx context.Context, eventID, categoryID, organizerID int) (*BracketView, error)
}

// CategoryLockResult reports the outcome of freezing one category. The lock
// loop is best-effort across categories, so partial failure is surfaced here
// instead of a single boolean.
type CategoryLockResult struct {
	CategoryID     int    `json:"category_id"`
	Capacity       int    `json:"capacity,omitempty"`
	MatchesCreated int    `json:"matches_created"`
	Error          string `json:"error,omitempty"`
}

type LockReport struct {
	EventID int                  `json:"event_id"`
	Results []CategoryLockResult `json:"results"`
}

func (r *LockReport) Failed() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return true
		}
	}
	return false
}

// SeededRegistration is the flat seeding list returned with previews for the
// organizer's seeding UI.
type SeededRegistration struct {
	RegistrationID int    `json:"registration_id"`
	AthleteID      int    `json:"athlete_id"`
	AthleteName    string `json:"athlete_name"`
	Slot           int    `json:"slot"`
}

type BracketView struct {
	EventID       int                  `json:"event_id"`
	CategoryID    int                  `json:"category_id"`
	Capacity      int                  `json:"capacity"`
	IsLocked      bool                 `json:"is_locked"`
	Matches       []models.Match       `json:"matches"`
	Registrations []SeededRegistration `json:"registrations,omitempty"`
}

type bracketService struct {
	eventRepo        repositories.EventRepository
	categoryRepo     repositories.CategoryRepository
	registrationRepo repositories.RegistrationRepository
	matchRepo        repositories.MatchRepository
	hub              *brackets.Hub
	logger           *slog.Logger

	// runTx wraps a repair-and-persist sequence in one transaction; swapped
	// out in unit tests where no real database sits behind the repos.
	runTx func(ctx context.Context, fn func(repositories.SQLExecutor) error) error
}

func NewBracketService(
	db *sql.DB,
	eventRepo repositories.EventRepository,
	categoryRepo repositories.CategoryRepository,
	registrationRepo repositories.RegistrationRepository,
	matchRepo repositories.MatchRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) BracketService {
	s := &bracketService{
		eventRepo:        eventRepo,
		categoryRepo:     categoryRepo,
		registrationRepo: registrationRepo,
		matchRepo:        matchRepo,
		hub:              hub,
		logger:           logger,
	}
	s.runTx = func(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	}
	return s
}

// authorizeEvent loads the event and checks ownership. A missing event is
// reported exactly like a foreign one.
func (s *bracketService) authorizeEvent(ctx context.Context, eventID, organizerID int) (*models.Event, error) {
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

func (s *bracketService) StopRegistrations(ctx context.Context, eventID, organizerID int) (*LockReport, error) {
	event, err := s.authorizeEvent(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}
	if !event.IsOpenForInscriptions {
		return nil, ErrRegistrationsAlreadyClosed
	}

	if err := s.eventRepo.SetOpenForInscriptions(ctx, nil, eventID, false); err != nil {
		return nil, fmt.Errorf("failed to close registrations for event %d: %w", eventID, err)
	}

	categories, err := s.categoryRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for event %d: %w", eventID, err)
	}

	report := &LockReport{EventID: eventID, Results: make([]CategoryLockResult, 0, len(categories))}
	for _, category := range categories {
		result := CategoryLockResult{CategoryID: category.ID}

		created, capacity, lockErr := s.lockCategory(ctx, eventID, category.ID)
		if lockErr != nil {
			result.Error = lockErr.Error()
			s.logger.Error("failed to lock category bracket",
				slog.Int("event_id", eventID),
				slog.Int("category_id", category.ID),
				slog.Any("error", lockErr))
		} else {
			result.MatchesCreated = created
			result.Capacity = capacity
		}
		report.Results = append(report.Results, result)
	}

	if s.hub != nil {
		s.hub.BroadcastToRoom(brackets.EventRoom(eventID), brackets.Message{
			Type:    brackets.MessageBracketsLocked,
			Payload: report,
		})
	}
	return report, nil
}

// lockCategory freezes a single category bracket: repair seeding, grow
// capacity if needed, flag the category locked and persist the round-1
// matches — all inside one transaction holding the category row lock.
func (s *bracketService) lockCategory(ctx context.Context, eventID, categoryID int) (matchesCreated, capacity int, err error) {
	err = s.runTx(ctx, func(exec repositories.SQLExecutor) error {
		category, err := s.categoryRepo.GetForUpdate(ctx, exec, categoryID)
		if err != nil {
			return err
		}
		if category.IsLocked {
			return ErrCategoryAlreadyLocked
		}

		registrations, err := s.registrationRepo.ListPaidByCategory(ctx, exec, eventID, categoryID)
		if err != nil {
			return err
		}

		capacity, err = s.repairAndPersistSlots(ctx, exec, category, registrations)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := s.categoryRepo.SetLocked(ctx, exec, categoryID, true, &now); err != nil {
			return err
		}

		bySlot := slotMap(registrations)
		matches, err := brackets.BuildSingleElimination(capacity, bySlot, eventID, categoryID)
		if err != nil {
			return err
		}
		round1 := brackets.Round1Matches(matches)
		for i := range round1 {
			if err := s.matchRepo.Create(ctx, exec, &round1[i]); err != nil {
				return err
			}
			matchesCreated++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return matchesCreated, capacity, nil
}

// repairAndPersistSlots runs the pure seeding repair and writes its outcome:
// one slot per previously unseeded registration, plus the grown capacity.
// The passed registrations are updated in place so callers can keep working
// with them without a re-read. Must run under the category row lock.
func (s *bracketService) repairAndPersistSlots(
	ctx context.Context,
	exec repositories.SQLExecutor,
	category *models.Category,
	registrations []*models.Registration,
) (int, error) {
	currentCapacity := category.BracketCapacity
	if currentCapacity < 2 {
		currentCapacity = models.DefaultBracketCapacity
	}

	entries := make([]brackets.SeedEntry, len(registrations))
	for i, reg := range registrations {
		entries[i] = brackets.SeedEntry{
			RegistrationID: reg.ID,
			Slot:           reg.BracketSlot,
			CreatedAt:      reg.CreatedAt,
		}
	}

	result, err := brackets.RepairSlots(entries, currentCapacity)
	if err != nil {
		return 0, fmt.Errorf("seeding repair for category %d: %w", category.ID, err)
	}

	byID := make(map[int]*models.Registration, len(registrations))
	for _, reg := range registrations {
		byID[reg.ID] = reg
	}
	for _, a := range result.Assignments {
		if err := s.registrationRepo.UpdateSlot(ctx, exec, a.RegistrationID, a.Slot); err != nil {
			return 0, err
		}
		slot := a.Slot
		byID[a.RegistrationID].BracketSlot = &slot
	}

	if result.NewCapacity > category.BracketCapacity {
		if err := s.categoryRepo.UpdateCapacity(ctx, exec, category.ID, result.NewCapacity); err != nil {
			return 0, err
		}
		category.BracketCapacity = result.NewCapacity
	}
	return result.NewCapacity, nil
}

func (s *bracketService) ReopenRegistrations(ctx context.Context, eventID, organizerID int) error {
	event, err := s.authorizeEvent(ctx, eventID, organizerID)
	if err != nil {
		return err
	}
	if event.IsOpenForInscriptions {
		return ErrRegistrationsAlreadyOpen
	}

	frozenMatches, err := s.matchRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("failed to count matches for event %d: %w", eventID, err)
	}

	err = s.runTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.eventRepo.SetOpenForInscriptions(ctx, exec, eventID, true); err != nil {
			return err
		}
		if err := s.matchRepo.DeleteByEvent(ctx, exec, eventID); err != nil {
			return err
		}
		// Clearing the lock flags here is deliberate: without it the view
		// service would keep serving a frozen bracket with zero matches.
		return s.categoryRepo.UnlockByEvent(ctx, exec, eventID)
	})
	if err != nil {
		return fmt.Errorf("failed to reopen registrations for event %d: %w", eventID, err)
	}

	s.logger.Info("registrations reopened, frozen brackets discarded",
		slog.Int("event_id", eventID),
		slog.Int("matches_discarded", frozenMatches))
	if s.hub != nil {
		s.hub.BroadcastToRoom(brackets.EventRoom(eventID), brackets.Message{
			Type:    brackets.MessageBracketsUnlocked,
			Payload: map[string]int{"event_id": eventID},
		})
	}
	return nil
}

func (s *bracketService) GetBracket(ctx context.Context, eventID, categoryID, organizerID int) (*BracketView, error) {
	if _, err := s.authorizeEvent(ctx, eventID, organizerID); err != nil {
		return nil, err
	}

	var (
		category      *models.Category
		registrations []*models.Registration
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.categoryRepo.GetByID(gCtx, categoryID)
		if err != nil {
			if errors.Is(err, repositories.ErrCategoryNotFound) {
				return ErrForbiddenOperation
			}
			return err
		}
		category = c
		return nil
	})
	g.Go(func() error {
		regs, err := s.registrationRepo.ListPaidByCategory(gCtx, nil, eventID, categoryID)
		if err != nil {
			return err
		}
		registrations = regs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if category.EventID != eventID {
		return nil, ErrForbiddenOperation
	}

	if category.IsLocked {
		return s.frozenBracket(ctx, eventID, category)
	}
	return s.previewBracket(ctx, eventID, category, registrations)
}

func (s *bracketService) frozenBracket(ctx context.Context, eventID int, category *models.Category) (*BracketView, error) {
	matches, err := s.matchRepo.ListByCategory(ctx, eventID, category.ID)
	if err != nil {
		return nil, err
	}
	view := &BracketView{
		EventID:    eventID,
		CategoryID: category.ID,
		Capacity:   category.BracketCapacity,
		IsLocked:   true,
		Matches:    make([]models.Match, 0, len(matches)),
	}
	for _, m := range matches {
		view.Matches = append(view.Matches, *m)
	}
	return view, nil
}

// previewBracket repairs missing slots (persisting only the slot numbers and
// any capacity growth, never matches) and rebuilds the bracket on the fly.
func (s *bracketService) previewBracket(
	ctx context.Context,
	eventID int,
	category *models.Category,
	registrations []*models.Registration,
) (*BracketView, error) {
	needsRepair := false
	for _, reg := range registrations {
		if reg.BracketSlot == nil {
			needsRepair = true
			break
		}
	}

	capacity := category.BracketCapacity
	if capacity < 2 {
		capacity = models.DefaultBracketCapacity
	}

	if needsRepair {
		err := s.runTx(ctx, func(exec repositories.SQLExecutor) error {
			locked, err := s.categoryRepo.GetForUpdate(ctx, exec, category.ID)
			if err != nil {
				return err
			}
			// Re-read under the row lock; another request may have repaired
			// (or even frozen) the category since our snapshot.
			if locked.IsLocked {
				return ErrCategoryLocked
			}
			registrations, err = s.registrationRepo.ListPaidByCategory(ctx, exec, eventID, category.ID)
			if err != nil {
				return err
			}
			capacity, err = s.repairAndPersistSlots(ctx, exec, locked, registrations)
			return err
		})
		if errors.Is(err, ErrCategoryLocked) {
			return s.frozenBracket(ctx, eventID, category)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to repair seeding for category %d: %w", category.ID, err)
		}
		if s.hub != nil {
			s.hub.BroadcastToRoom(brackets.EventRoom(eventID), brackets.Message{
				Type:    brackets.MessageSeedingRepaired,
				Payload: map[string]int{"category_id": category.ID},
			})
		}
	}

	matches, err := brackets.BuildSingleElimination(capacity, slotMap(registrations), eventID, category.ID)
	if err != nil {
		return nil, err
	}

	view := &BracketView{
		EventID:       eventID,
		CategoryID:    category.ID,
		Capacity:      capacity,
		IsLocked:      false,
		Matches:       matches,
		Registrations: make([]SeededRegistration, 0, len(registrations)),
	}
	for _, reg := range registrations {
		if reg.BracketSlot == nil {
			continue
		}
		view.Registrations = append(view.Registrations, SeededRegistration{
			RegistrationID: reg.ID,
			AthleteID:      reg.AthleteID,
			AthleteName:    reg.AthleteName,
			Slot:           *reg.BracketSlot,
		})
	}
	return view, nil
}

func slotMap(registrations []*models.Registration) map[int]brackets.Athlete {
	bySlot := make(map[int]brackets.Athlete, len(registrations))
	for _, reg := range registrations {
		if reg.BracketSlot == nil {
			continue
		}
		bySlot[*reg.BracketSlot] = brackets.Athlete{ID: reg.AthleteID, Name: reg.AthleteName}
	}
	return bySlot
}
