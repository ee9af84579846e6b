package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openmat/openmat-api/models"
	"github.com/openmat/openmat-api/repositories"
)

func newTestRegistrationService(
	events *mockEventRepo,
	categories *mockCategoryRepo,
	registrations *mockRegistrationRepo,
) RegistrationService {
	return NewRegistrationService(events, categories, registrations,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterAthleteCreatesPendingRegistration(t *testing.T) {
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

	var created *models.Registration
	registrations := &mockRegistrationRepo{
		createFunc: func(ctx context.Context, r *models.Registration) error {
			r.ID = 77
			created = r
			return nil
		},
	}

	svc := newTestRegistrationService(events, categories, registrations)

	reg, err := svc.RegisterAthlete(context.Background(), 101, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 77, reg.ID)
	require.Equal(t, models.RegistrationPendingPayment, reg.Status)
	require.Nil(t, reg.BracketSlot, "registration never assigns a bracket slot")
	require.NotNil(t, created)
}

func TestRegisterAthleteClosedEvent(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			e := openEvent(42)
			e.IsOpenForInscriptions = false
			return e, nil
		},
	}
	svc := newTestRegistrationService(events, &mockCategoryRepo{}, &mockRegistrationRepo{})

	_, err := svc.RegisterAthlete(context.Background(), 101, 1, 10)
	require.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestRegisterAthleteLockedCategory(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, IsLocked: true}, nil
		},
	}
	svc := newTestRegistrationService(events, categories, &mockRegistrationRepo{})

	_, err := svc.RegisterAthlete(context.Background(), 101, 1, 10)
	require.ErrorIs(t, err, ErrCategoryLocked)
}

func TestRegisterAthleteDuplicate(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1}, nil
		},
	}
	registrations := &mockRegistrationRepo{
		createFunc: func(ctx context.Context, r *models.Registration) error {
			return repositories.ErrRegistrationConflict
		},
	}
	svc := newTestRegistrationService(events, categories, registrations)

	_, err := svc.RegisterAthlete(context.Background(), 101, 1, 10)
	require.ErrorIs(t, err, ErrRegistrationConflict)
}

func TestConfirmPaymentMarksPaid(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	registrations := &mockRegistrationRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Registration, error) {
			return &models.Registration{ID: 77, AthleteID: 101, EventID: 1, CategoryID: 10, Status: models.RegistrationPendingPayment}, nil
		},
	}
	var statusWritten models.RegistrationStatus
	registrations.updateStatusFunc = func(ctx context.Context, id int, status models.RegistrationStatus) error {
		statusWritten = status
		return nil
	}
	svc := newTestRegistrationService(events, &mockCategoryRepo{}, registrations)

	reg, err := svc.ConfirmPayment(context.Background(), 77, 42)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationPaid, reg.Status)
	require.Equal(t, models.RegistrationPaid, statusWritten)
}

func TestConfirmPaymentForeignOrganizer(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	registrations := &mockRegistrationRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Registration, error) {
			return &models.Registration{ID: 77, AthleteID: 101, EventID: 1, Status: models.RegistrationPendingPayment}, nil
		},
	}
	svc := newTestRegistrationService(events, &mockCategoryRepo{}, registrations)

	_, err := svc.ConfirmPayment(context.Background(), 77, 999)
	require.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestConfirmPaymentAlreadyPaid(t *testing.T) {
	events := &mockEventRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Event, error) {
			return openEvent(42), nil
		},
	}
	registrations := &mockRegistrationRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Registration, error) {
			return &models.Registration{ID: 77, AthleteID: 101, EventID: 1, Status: models.RegistrationPaid}, nil
		},
	}
	svc := newTestRegistrationService(events, &mockCategoryRepo{}, registrations)

	_, err := svc.ConfirmPayment(context.Background(), 77, 42)
	require.ErrorIs(t, err, ErrRegistrationNotPending)
}

func TestCancelRegistrationLockedCategory(t *testing.T) {
	registrations := &mockRegistrationRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Registration, error) {
			return &models.Registration{ID: 77, AthleteID: 101, CategoryID: 10, Status: models.RegistrationPaid}, nil
		},
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1, IsLocked: true}, nil
		},
	}
	svc := newTestRegistrationService(&mockEventRepo{}, categories, registrations)

	err := svc.CancelRegistration(context.Background(), 77, 101)
	require.ErrorIs(t, err, ErrCategoryLocked)
}

func TestCancelRegistration(t *testing.T) {
	registrations := &mockRegistrationRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Registration, error) {
			return &models.Registration{ID: 77, AthleteID: 101, CategoryID: 10, Status: models.RegistrationPendingPayment}, nil
		},
	}
	var statusWritten models.RegistrationStatus
	registrations.updateStatusFunc = func(ctx context.Context, id int, status models.RegistrationStatus) error {
		statusWritten = status
		return nil
	}
	categories := &mockCategoryRepo{
		getByIDFunc: func(ctx context.Context, id int) (*models.Category, error) {
			return &models.Category{ID: 10, EventID: 1}, nil
		},
	}
	svc := newTestRegistrationService(&mockEventRepo{}, categories, registrations)

	err := svc.CancelRegistration(context.Background(), 77, 101)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationCancelled, statusWritten)
}
