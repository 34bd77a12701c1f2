package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appAuth "github.com/yigit/classmarket/internal/app/auth"
	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/metrics"
)

// ClassService is the inventory ledger: class listings, approval and seat counters
type ClassService interface {
	ListApproved(ctx context.Context) ([]*models.Class, error)
	ListAll(ctx context.Context) ([]*models.Class, error)
	GetByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, callerEmail string, req *dto.CreateClassRequest) (*models.Class, error)
	UpdateFields(ctx context.Context, callerEmail, id string, req *dto.UpdateClassRequest) error
	Delete(ctx context.Context, callerEmail, id string) error
	SetApprovalStatus(ctx context.Context, callerEmail, id string, status models.ClassStatus) error

	// AdjustSeatsForEnrollment moves one seat of classID to the enrollment keyed by key.
	AdjustSeatsForEnrollment(ctx context.Context, classID, key string) error
	// ReleaseSeat compensates AdjustSeatsForEnrollment for the same key.
	ReleaseSeat(ctx context.Context, classID, key string) error
}

// ClassServiceConfig holds the ledger policy
type ClassServiceConfig struct {
	StrictSeatCheck bool
	StoreTimeout    time.Duration
}

type classServiceImpl struct {
	classRepo repositories.ClassRepository
	gate      *appAuth.RoleGate
	cfg       ClassServiceConfig
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewClassService creates a new ClassService
func NewClassService(
	classRepo repositories.ClassRepository,
	gate *appAuth.RoleGate,
	cfg ClassServiceConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) ClassService {
	return &classServiceImpl{
		classRepo: classRepo,
		gate:      gate,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// ListApproved returns the classes visible to students
func (s *classServiceImpl) ListApproved(ctx context.Context) ([]*models.Class, error) {
	classes, err := s.classRepo.ListByStatus(ctx, models.ClassStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("error listing approved classes: %w", err)
	}
	return classes, nil
}

// ListAll returns every class regardless of status
func (s *classServiceImpl) ListAll(ctx context.Context) ([]*models.Class, error) {
	classes, err := s.classRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing classes: %w", err)
	}
	return classes, nil
}

// GetByID retrieves one class
func (s *classServiceImpl) GetByID(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error finding class: %w", err)
	}
	return class, nil
}

// Create stores a new class in pending state
func (s *classServiceImpl) Create(ctx context.Context, callerEmail string, req *dto.CreateClassRequest) (*models.Class, error) {
	instructorEmail := normalizeEmail(req.InstructorEmail)
	if instructorEmail == "" {
		instructorEmail = normalizeEmail(callerEmail)
	}

	class := &models.Class{
		Name:             req.Name,
		ImageURL:         req.ImageURL,
		InstructorName:   req.InstructorName,
		InstructorEmail:  instructorEmail,
		Price:            req.Price,
		SpotsAvailable:   req.SpotsAvailable,
		StudentsEnrolled: req.StudentsEnrolled,
		Status:           models.ClassStatusPending,
	}
	if err := s.classRepo.Create(ctx, class); err != nil {
		return nil, fmt.Errorf("error creating class: %w", err)
	}

	s.logger.Info().Str("classId", class.ID).Str("instructor", instructorEmail).Msg("Class created")
	return class, nil
}

// UpdateFields overwrites price and seat counters of a class the caller may edit
func (s *classServiceImpl) UpdateFields(ctx context.Context, callerEmail, id string, req *dto.UpdateClassRequest) error {
	if err := s.authorizeEdit(ctx, callerEmail, id); err != nil {
		return err
	}

	fields := models.ClassFieldsUpdate{
		Price:            *req.Price,
		SpotsAvailable:   *req.SpotsAvailable,
		StudentsEnrolled: *req.StudentsEnrolled,
	}
	if err := s.classRepo.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("error updating class: %w", err)
	}
	return nil
}

// Delete removes a class the caller may edit
func (s *classServiceImpl) Delete(ctx context.Context, callerEmail, id string) error {
	if err := s.authorizeEdit(ctx, callerEmail, id); err != nil {
		return err
	}

	if err := s.classRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("error deleting class: %w", err)
	}
	s.logger.Info().Str("classId", id).Msg("Class deleted")
	return nil
}

// authorizeEdit lets admins edit any class and instructors only the ones they teach
func (s *classServiceImpl) authorizeEdit(ctx context.Context, callerEmail, id string) error {
	caller := normalizeEmail(callerEmail)
	admin, err := s.gate.HasRole(ctx, caller, models.RoleAdmin)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}

	class, err := s.classRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("error finding class: %w", err)
	}
	if normalizeEmail(class.InstructorEmail) != caller {
		return apperrors.NewForbiddenError("forbidden access")
	}
	return nil
}

// SetApprovalStatus approves or denies a class. Only admins may call it.
func (s *classServiceImpl) SetApprovalStatus(ctx context.Context, callerEmail, id string, status models.ClassStatus) error {
	if status != models.ClassStatusApproved && status != models.ClassStatusDenied {
		return apperrors.NewBadRequestError(fmt.Sprintf("unsupported class status %q", status))
	}
	if err := s.gate.Authorize(ctx, normalizeEmail(callerEmail), models.RoleAdmin); err != nil {
		return err
	}

	if err := s.classRepo.SetStatus(ctx, id, status); err != nil {
		return fmt.Errorf("error updating class status: %w", err)
	}

	s.logger.Info().Str("classId", id).Str("status", string(status)).Str("by", callerEmail).Msg("Class status changed")
	return nil
}

// AdjustSeatsForEnrollment takes one seat. Under the strict policy a full class
// fails with ErrSeatsExhausted; otherwise the counter may go negative.
func (s *classServiceImpl) AdjustSeatsForEnrollment(ctx context.Context, classID, key string) error {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	err := s.classRepo.ReserveSeat(ctx, classID, key, s.cfg.StrictSeatCheck)
	switch {
	case err == nil:
		s.metrics.IncSeatReservation(metrics.OutcomeSuccess)
		return nil
	case errors.Is(err, apperrors.ErrSeatsExhausted):
		s.metrics.IncSeatReservation(metrics.OutcomeExhausted)
		return apperrors.NewCustomError(apperrors.ErrSeatsExhausted, fmt.Sprintf("no seats available in class %s", classID))
	case errors.Is(err, apperrors.ErrClassNotFound):
		s.metrics.IncSeatReservation(metrics.OutcomeError)
		return apperrors.NewCustomError(apperrors.ErrClassNotFound, fmt.Sprintf("class %s not found", classID))
	default:
		s.metrics.IncSeatReservation(metrics.OutcomeError)
		return fmt.Errorf("error reserving seat: %w", err)
	}
}

// ReleaseSeat gives back the seat held under key
func (s *classServiceImpl) ReleaseSeat(ctx context.Context, classID, key string) error {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	if err := s.classRepo.ReleaseSeat(ctx, classID, key); err != nil {
		return fmt.Errorf("error releasing seat: %w", err)
	}
	s.metrics.IncSeatReservation(metrics.OutcomeReleased)
	return nil
}
