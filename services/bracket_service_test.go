package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmat/openmat-api/models"
	"github.com/openmat/openmat-api/repositories"
)

// Mock repositories

type mockEventRepo struct {
	getByIDFunc func(ctx context.Context, id int) (*models.Event, error)
	setOpenFunc func(ctx context.Context, exec repositories.SQLExecutor, id int, open bool) error
}

func (m *mockEventRepo) Create(ctx context.Context, e *models.Event) error { return nil }
func (m *mockEventRepo) GetByID(ctx context.Context, id int) (*models.Event, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repositories.ErrEventNotFound
}
func (m *mockEventRepo) List(ctx context.Context, f repositories.ListEventsFilter) ([]models.Event, error) {
	return nil, nil
}
func (m *mockEventRepo) Update(ctx context.Context, e *models.Event) error { return nil }
func (m *mockEventRepo) SetOpenForInscriptions(ctx context.Context, exec repositories.SQLExecutor, id int, open bool) error {
	if m.setOpenFunc != nil {
		return m.setOpenFunc(ctx, exec, id, open)
	}
	return nil
}
func (m *mockEventRepo) UpdatePosterKey(ctx context.Context, id int, key *string) error { return nil }
func (m *mockEventRepo) Delete(ctx context.Context, id int) error                       { return nil }

type mockCategoryRepo struct {
	getByIDFunc        func(ctx context.Context, id int) (*models.Category, error)
	getForUpdateFunc   func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error)
	listByEventFunc    func(ctx context.Context, eventID int) ([]*models.Category, error)
	updateCapacityFunc func(ctx context.Context, exec repositories.SQLExecutor, id, capacity int) error
	setLockedFunc      func(ctx context.Context, exec repositories.SQLExecutor, id int, locked bool, lockedAt *time.Time) error
	unlockByEventFunc  func(ctx context.Context, exec repositories.SQLExecutor, eventID int) error
}

func (m *mockCategoryRepo) Create(ctx context.Context, c *models.Category) error { return nil }
func (m *mockCategoryRepo) GetByID(ctx context.Context, id int) (*models.Category, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repositories.ErrCategoryNotFound
}
func (m *mockCategoryRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error) {
	if m.getForUpdateFunc != nil {
		return m.getForUpdateFunc(ctx, exec, id)
	}
	return nil, repositories.ErrCategoryNotFound
}
func (m *mockCategoryRepo) ListByEvent(ctx context.Context, eventID int) ([]*models.Category, error) {
	if m.listByEventFunc != nil {
		return m.listByEventFunc(ctx, eventID)
	}
	return nil, nil
}
func (m *mockCategoryRepo) UpdateCapacity(ctx context.Context, exec repositories.SQLExecutor, id, capacity int) error {
	if m.updateCapacityFunc != nil {
		return m.updateCapacityFunc(ctx, exec, id, capacity)
	}
	return nil
}
func (m *mockCategoryRepo) SetLocked(ctx context.Context, exec repositories.SQLExecutor, id int, locked bool, lockedAt *time.Time) error {
	if m.setLockedFunc != nil {
		return m.setLockedFunc(ctx, exec, id, locked, lockedAt)
	}
	return nil
}
func (m *mockCategoryRepo) UnlockByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	if m.unlockByEventFunc != nil {
		return m.unlockByEventFunc(ctx, exec, eventID)
	}
	return nil
}
func (m *mockCategoryRepo) Delete(ctx context.Context, id int) error { return nil }

type mockRegistrationRepo struct {
	createFunc       func(ctx context.Context, r *models.Registration) error
	getByIDFunc      func(ctx context.Context, id int) (*models.Registration, error)
	listPaidFunc     func(ctx context.Context, exec repositories.SQLExecutor, eventID, categoryID int) ([]*models.Registration, error)
	updateStatusFunc func(ctx context.Context, id int, status models.RegistrationStatus) error
	updateSlotFunc   func(ctx context.Context, exec repositories.SQLExecutor, id, slot int) error
}

func (m *mockRegistrationRepo) Create(ctx context.Context, r *models.Registration) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	return nil
}
func (m *mockRegistrationRepo) GetByID(ctx context.Context, id int) (*models.Registration, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, repositories.ErrRegistrationNotFound
}
func (m *mockRegistrationRepo) ListPaidByCategory(ctx context.Context, exec repositories.SQLExecutor, eventID, categoryID int) ([]*models.Registration, error) {
	if m.listPaidFunc != nil {
		return m.listPaidFunc(ctx, exec, eventID, categoryID)
	}
	return nil, nil
}
func (m *mockRegistrationRepo) UpdateStatus(ctx context.Context, id int, status models.RegistrationStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}
func (m *mockRegistrationRepo) UpdateSlot(ctx context.Context, exec repositories.SQLExecutor, id, slot int) error {
	if m.updateSlotFunc != nil {
		return m.updateSlotFunc(ctx, exec, id, slot)
	}
	return nil
}

type mockMatchRepo struct {
	createFunc         func(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error
	listByCategoryFunc func(ctx context.Context, eventID, categoryID int) ([]*models.Match, error)
	deleteByEventFunc  func(ctx context.Context, exec repositories.SQLExecutor, eventID int) error
}

func (m *mockMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, exec, match)
	}
	return nil
}
func (m *mockMatchRepo) ListByCategory(ctx context.Context, eventID, categoryID int) ([]*models.Match, error) {
	if m.listByCategoryFunc != nil {
		return m.listByCategoryFunc(ctx, eventID, categoryID)
	}
	return nil, nil
}
func (m *mockMatchRepo) CountByEvent(ctx context.Context, eventID int) (int, error) { return 0, nil }
func (m *mockMatchRepo) DeleteByEvent(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
	if m.deleteByEventFunc != nil {
		return m.deleteByEventFunc(ctx, exec, eventID)
	}
	return nil
}

func newTestBracketService(
	events *mockEventRepo,
	categories *mockCategoryRepo,
	registrations *mockRegistrationRepo,
	matches *mockMatchRepo,
) *bracketService {
	s := &bracketService{
		eventRepo:        events,
		categoryRepo:     categories,
		registrationRepo: registrations,
		matchRepo:        matches,
		logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	// Pass-through: the mocks do not need a real transaction behind them.
	s.runTx = func(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
		return fn(nil)
	}
	return s
}

func paidReg(id, athleteID int, slot *int, createdAt time.Time) *models.Registration {
	return &models.Registration{
		ID:          id,
		AthleteID:   athleteID,
		EventID:     1,
		CategoryID:  10,
		Status:      models.RegistrationPaid,
		BracketSlot: slot,
		CreatedAt:   createdAt,
		AthleteName: "Athlete",
	}
}

func openEvent(organizerID int) *models.Event {
	return &models.Event{ID: 1, Name: "Open Mat Cup", OrganizerID: organizerID, IsOpenForInscriptions: true}
}

func TestStopRegistrationsFreezesCategories(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := &mockEventRepo{}
	eventClosed := false
	events.getByIDFunc = func(ctx context.Context, id int) (*models.Event, error) {
		return openEvent(42), nil
	}
	events.setOpenFunc = func(ctx context.Context, exec repositories.SQLExecutor, id int, open bool) error {
		require.False(t, open)
		eventClosed = true
		return nil
	}

	// Category 10: three paid athletes in a four-slot bracket (one bye).
	// Category 11: five paid athletes, capacity must grow to eight.
	regsByCategory := map[int][]*models.Registration{
		10: {
			paidReg(1, 101, nil, base),
			paidReg(2, 102, nil, base.Add(time.Minute)),
			paidReg(3, 103, nil, base.Add(2*time.Minute)),
		},
		11: {
			paidReg(4, 104, nil, base),
			paidReg(5, 105, nil, base.Add(time.Minute)),
			paidReg(6, 106, nil, base.Add(2*time.Minute)),
			paidReg(7, 107, nil, base.Add(3*time.Minute)),
			paidReg(8, 108, nil, base.Add(4*time.Minute)),
		},
	}

	categories := &mockCategoryRepo{}
	categories.listByEventFunc = func(ctx context.Context, eventID int) ([]*models.Category, error) {
		return []*models.Category{
			{ID: 10, EventID: 1, BracketCapacity: 4},
			{ID: 11, EventID: 1, BracketCapacity: 4},
		}, nil
	}
	categories.getForUpdateFunc = func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error) {
		return &models.Category{ID: id, EventID: 1, BracketCapacity: 4}, nil
	}
	capacityUpdates := map[int]int{}
	categories.updateCapacityFunc = func(ctx context.Context, exec repositories.SQLExecutor, id, capacity int) error {
		capacityUpdates[id] = capacity
		return nil
	}
	locked := map[int]bool{}
	categories.setLockedFunc = func(ctx context.Context, exec repositories.SQLExecutor, id int, isLocked bool, lockedAt *time.Time) error {
		require.NotNil(t, lockedAt)
		locked[id] = isLocked
		return nil
	}

	registrations := &mockRegistrationRepo{}
	registrations.listPaidFunc = func(ctx context.Context, exec repositories.SQLExecutor, eventID, categoryID int) ([]*models.Registration, error) {
		return regsByCategory[categoryID], nil
	}
	slotWrites := map[int]int{}
	registrations.updateSlotFunc = func(ctx context.Context, exec repositories.SQLExecutor, id, slot int) error {
		slotWrites[id] = slot
		return nil
	}

	matches := &mockMatchRepo{}
	var created []*models.Match
	matches.createFunc = func(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
		created = append(created, match)
		return nil
	}

	svc := newTestBracketService(events, categories, registrations, matches)

	report, err := svc.StopRegistrations(context.Background(), 1, 42)
	require.NoError(t, err)
	require.True(t, eventClosed)
	require.False(t, report.Failed())
	require.Len(t, report.Results, 2)

	require.Equal(t, 10, report.Results[0].CategoryID)
	require.Equal(t, 4, report.Results[0].Capacity)
	require.Equal(t, 2, report.Results[0].MatchesCreated)

	require.Equal(t, 11, report.Results[1].CategoryID)
	require.Equal(t, 8, report.Results[1].Capacity)
	require.Equal(t, 4, report.Results[1].MatchesCreated)

	// Only the grown category writes capacity.
	require.Equal(t, map[int]int{11: 8}, capacityUpdates)
	require.True(t, locked[10])
	require.True(t, locked[11])
	require.Len(t, slotWrites, 8, "every unseeded registration gets a slot")
	require.Len(t, created, 6)
	for _, m := range created {
		require.Equal(t, 1, m.Round, "only round-1 matches are persisted")
	}
}

func TestStopRegistrationsForeignEvent(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	svc := newTestBracketService(events, &mockCategoryRepo{}, &mockRegistrationRepo{}, &mockMatchRepo{})

	_, err := svc.StopRegistrations(context.Background(), 1, 99)
	require.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStopRegistrationsMissingEventLooksForbidden(t *testing.T) {
	svc := newTestBracketService(&mockEventRepo{}, &mockCategoryRepo{}, &mockRegistrationRepo{}, &mockMatchRepo{})

	_, err := svc.StopRegistrations(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestStopRegistrationsAlreadyClosed(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			e := openEvent(42)
			e.IsOpenForInscriptions = false
			return e, nil
		},
	}
	svc := newTestBracketService(events, &mockCategoryRepo{}, &mockRegistrationRepo{}, &mockMatchRepo{})

	_, err := svc.StopRegistrations(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrRegistrationsAlreadyClosed)
}

func TestStopRegistrationsReportsPartialFailure(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}

	categories := &mockCategoryRepo{}
	categories.listByEventFunc = func(ctx context.Context, eventID int) ([]*models.Category, error) {
		return []*models.Category{
			{ID: 10, EventID: 1, BracketCapacity: 4},
			{ID: 11, EventID: 1, BracketCapacity: 4},
		}, nil
	}
	categories.getForUpdateFunc = func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error) {
		if id == 10 {
			return &models.Category{ID: 10, EventID: 1, BracketCapacity: 4, IsLocked: true}, nil
		}
		return &models.Category{ID: id, EventID: 1, BracketCapacity: 4}, nil
	}

	svc := newTestBracketService(events, categories, &mockRegistrationRepo{}, &mockMatchRepo{})

	report, err := svc.StopRegistrations(context.Background(), 1, 42)
	require.NoError(t, err, "partial failure is reported, not returned")
	require.True(t, report.Failed())
	require.Len(t, report.Results, 2)
	require.Contains(t, report.Results[0].Error, "already locked")
	require.Empty(t, report.Results[1].Error)
}

func TestReopenRegistrationsDiscardsFrozenBrackets(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			e := openEvent(42)
			e.IsOpenForInscriptions = false
			return e, nil
		},
	}
	reopened := false
	events.setOpenFunc = func(ctx context.Context, exec repositories.SQLExecutor, id int, open bool) error {
		require.True(t, open)
		reopened = true
		return nil
	}

	unlockedEvent := 0
	categories := &mockCategoryRepo{
		unlockByEventFunc: func(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
			unlockedEvent = eventID
			return nil
		},
	}

	deletedEvent := 0
	matches := &mockMatchRepo{
		deleteByEventFunc: func(ctx context.Context, exec repositories.SQLExecutor, eventID int) error {
			deletedEvent = eventID
			return nil
		},
	}

	svc := newTestBracketService(events, categories, &mockRegistrationRepo{}, matches)

	err := svc.ReopenRegistrations(context.Background(), 1, 42)
	require.NoError(t, err)
	require.True(t, reopened)
	require.Equal(t, 1, deletedEvent)
	require.Equal(t, 1, unlockedEvent)
}

func TestReopenRegistrationsAlreadyOpen(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	svc := newTestBracketService(events, &mockCategoryRepo{}, &mockRegistrationRepo{}, &mockMatchRepo{})

	err := svc.ReopenRegistrations(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrRegistrationsAlreadyOpen)
}

func TestGetBracketFrozenServesPersistedMatches(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	now := time.Now()
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, BracketCapacity: 4, IsLocked: true, LockedAt: &now}, nil
		},
	}
	matches := &mockMatchRepo{
		listByCategoryFunc: func(ctx context.Context, eventID, categoryID int) ([]*models.Match, error) {
			return []*models.Match{
				{ID: 1, Round: 1, MatchNo: 1, SlotA: 1, SlotB: 2},
				{ID: 2, Round: 1, MatchNo: 2, SlotA: 3, SlotB: 4, IsBye: true},
			}, nil
		},
	}

	svc := newTestBracketService(events, categories, &mockRegistrationRepo{}, matches)

	view, err := svc.GetBracket(context.Background(), 1, 10, 42)
	require.NoError(t, err)
	require.True(t, view.IsLocked)
	require.Equal(t, 4, view.Capacity)
	require.Len(t, view.Matches, 2)
	require.Empty(t, view.Registrations)
}

func TestGetBracketPreviewRepairsMissingSlots(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, BracketCapacity: 4}, nil
		},
		getForUpdateFunc: func(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, BracketCapacity: 4}, nil
		},
	}

	one := 1
	registrations := &mockRegistrationRepo{
		listPaidFunc: func(ctx context.Context, exec repositories.SQLExecutor, eventID, categoryID int) ([]*models.Registration, error) {
			return []*models.Registration{
				paidReg(1, 101, &one, base),
				paidReg(2, 102, nil, base.Add(time.Minute)),
			}, nil
		},
	}
	slotWrites := map[int]int{}
	registrations.updateSlotFunc = func(ctx context.Context, exec repositories.SQLExecutor, id, slot int) error {
		slotWrites[id] = slot
		return nil
	}

	matchCreated := false
	matches := &mockMatchRepo{
		createFunc: func(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
			matchCreated = true
			return nil
		},
	}

	svc := newTestBracketService(events, categories, registrations, matches)

	view, err := svc.GetBracket(context.Background(), 1, 10, 42)
	require.NoError(t, err)
	require.False(t, view.IsLocked)
	require.Equal(t, 4, view.Capacity)
	require.Len(t, view.Matches, 3, "full tree including placeholder rounds")
	require.Equal(t, map[int]int{2: 2}, slotWrites, "repair fills the free slot")
	require.False(t, matchCreated, "previews never persist matches")

	require.Len(t, view.Registrations, 2)
	require.Equal(t, 1, view.Registrations[0].Slot)
	require.Equal(t, 2, view.Registrations[1].Slot)
}

func TestGetBracketPreviewSkipsRepairWhenSeeded(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, BracketCapacity: 4}, nil
		},
	}

	one, two := 1, 2
	registrations := &mockRegistrationRepo{
		listPaidFunc: func(ctx context.Context, exec repositories.SQLExecutor, eventID, categoryID int) ([]*models.Registration, error) {
			return []*models.Registration{
				paidReg(1, 101, &one, base),
				paidReg(2, 102, &two, base.Add(time.Minute)),
			}, nil
		},
	}

	svc := newTestBracketService(events, categories, registrations, &mockMatchRepo{})
	txUsed := false
	svc.runTx = func(ctx context.Context, fn func(repositories.SQLExecutor) error) error {
		txUsed = true
		return fn(nil)
	}

	view, err := svc.GetBracket(context.Background(), 1, 10, 42)
	require.NoError(t, err)
	require.False(t, txUsed, "fully seeded preview needs no repair transaction")
	require.Len(t, view.Matches, 3)
}

func TestGetBracketCategoryFromAnotherEvent(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 2, BracketCapacity: 4}, nil
		},
	}

	svc := newTestBracketService(events, categories, &mockRegistrationRepo{}, &mockMatchRepo{})

	_, err := svc.GetBracket(context.Background(), 1, 10, 42)
	require.ErrorIs(t, err, ErrForbiddenOperation)
}
