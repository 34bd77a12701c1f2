package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/charge"
	"github.com/yigit/classmarket/internal/pkg/logger"
	"github.com/yigit/classmarket/internal/pkg/metrics"
)

const spanPrefix = "Enrollment."

// EnrollmentRequest is a completed charge together with the cart it pays for
type EnrollmentRequest struct {
	IdempotencyKey string
	Email          string
	Amount         float64
	TransactionID  string
	CartItemIDs    []string
	ClassIDs       []string
	ClassNames     []string
}

// EnrollmentOutcome is the composite result handed back to the payer
type EnrollmentOutcome struct {
	Result   models.EnrollmentResult
	Replayed bool
}

// EnrollmentService turns a completed charge into seat, payment and cart changes
type EnrollmentService interface {
	Submit(ctx context.Context, callerEmail string, req *EnrollmentRequest) (*EnrollmentOutcome, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// EnrollmentConfig holds the saga timing policy
type EnrollmentConfig struct {
	StoreTimeout   time.Duration
	LeaseDuration  time.Duration
	IdempotencyTTL time.Duration
	VerifyCharge   bool
}

type enrollmentServiceImpl struct {
	enrollmentRepo repositories.EnrollmentRepository
	paymentRepo    repositories.PaymentRepository
	userRepo       repositories.UserRepository
	classes        ClassService
	carts          CartService
	authority      charge.Authority
	cfg            EnrollmentConfig
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	group          singleflight.Group
	now            func() time.Time
	logger         zerolog.Logger
}

// NewEnrollmentService wires the saga. authority may be nil when charges are not verified.
func NewEnrollmentService(
	repos *repositories.Repositories,
	classes ClassService,
	carts CartService,
	authority charge.Authority,
	cfg EnrollmentConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) EnrollmentService {
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 30 * time.Second
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &enrollmentServiceImpl{
		enrollmentRepo: repos.EnrollmentRepository,
		paymentRepo:    repos.PaymentRepository,
		userRepo:       repos.UserRepository,
		classes:        classes,
		carts:          carts,
		authority:      authority,
		cfg:            cfg,
		metrics:        m,
		tracer:         otel.Tracer("github.com/yigit/classmarket/enrollment"),
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		logger:         logger.With().Str("service", "enrollment").Logger(),
	}
}

// Submit runs the enrollment saga under the request's idempotency key:
//
//  1. reserve one seat per class (compensated by releasing them)
//  2. record the payment (compensated by deleting it) and checkpoint
//  3. clear the paid cart items (resumable, never compensated)
//  4. store and return the composite result
//
// Resubmitting the same key replays a completed result or resumes where the
// previous attempt stopped.
func (s *enrollmentServiceImpl) Submit(ctx context.Context, callerEmail string, req *EnrollmentRequest) (_ *EnrollmentOutcome, err error) {
	rec, err := s.newRecord(callerEmail, req)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx).With().
		Str("idempotencyKey", rec.Key).
		Str("email", rec.Email).
		Logger()
	ctx = logger.WithContext(ctx, log)

	ctx, span := s.tracer.Start(ctx, spanPrefix+"Submit", trace.WithAttributes(
		attribute.String("enrollment.key", rec.Key),
		attribute.Int("enrollment.classes", len(rec.ClassIDs)),
		attribute.Int("enrollment.cart_items", len(rec.CartItemIDs)),
	))
	start := time.Now()
	outcome := metrics.OutcomeSuccess
	var result *EnrollmentOutcome

	defer func() {
		switch {
		case err != nil && errors.Is(err, apperrors.ErrEnrollmentInProgress):
			outcome = metrics.OutcomeInProgress
		case err != nil:
			outcome = metrics.OutcomeError
		case result != nil && result.Replayed:
			outcome = metrics.OutcomeReplayed
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		} else {
			span.SetStatus(codes.Ok, outcome)
		}
		span.SetAttributes(attribute.String("enrollment.outcome", outcome))
		span.End()

		elapsed := time.Since(start)
		s.metrics.ObserveEnrollment(outcome, elapsed)

		event := log.Info()
		if err != nil {
			event = log.Warn().Err(err)
		}
		event.Str("outcome", outcome).Dur("latency", elapsed).Msg("Enrollment finished")
	}()

	// The saga outlives a disconnected client; every store call carries its own deadline.
	runCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(rec.Key+"|"+fingerprint(rec), func() (interface{}, error) {
		return s.run(runCtx, rec, req.ClassNames)
	})
	if err != nil {
		return nil, err
	}
	result = v.(*EnrollmentOutcome)
	return result, nil
}

// PurgeExpired deletes finished records whose retention has passed
func (s *enrollmentServiceImpl) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.enrollmentRepo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error purging enrollments: %w", err)
	}
	return n, nil
}

func (s *enrollmentServiceImpl) newRecord(callerEmail string, req *EnrollmentRequest) (*models.EnrollmentRecord, error) {
	email := normalizeEmail(req.Email)
	if email == "" || email != normalizeEmail(callerEmail) {
		return nil, apperrors.NewForbiddenError("forbidden access")
	}
	if len(req.ClassIDs) == 0 || len(req.CartItemIDs) == 0 {
		return nil, apperrors.NewBadRequestError("a payment must reference at least one class and one cart item")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(req.TransactionID)
	}
	if key == "" {
		return nil, apperrors.NewBadRequestError("an idempotency key or transaction id is required")
	}

	now := s.now()
	return &models.EnrollmentRecord{
		Key:           key,
		Email:         email,
		Amount:        req.Amount,
		TransactionID: req.TransactionID,
		ClassIDs:      slices.Clone(req.ClassIDs),
		CartItemIDs:   slices.Clone(req.CartItemIDs),
		State:         models.EnrollmentPending,
		LockedUntil:   now.Add(s.cfg.LeaseDuration),
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.IdempotencyTTL),
	}, nil
}

func (s *enrollmentServiceImpl) run(ctx context.Context, req *models.EnrollmentRecord, classNames []string) (*EnrollmentOutcome, error) {
	rec, replay, err := s.acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	log := logger.Ctx(ctx)

	if rec.State == models.EnrollmentPending {
		if err := s.verifyCharge(ctx, rec); err != nil {
			s.markFailed(ctx, rec, err)
			return nil, err
		}
		if err := s.reserveSeats(ctx, rec); err != nil {
			return nil, err
		}
		if err := s.recordPayment(ctx, rec, classNames); err != nil {
			return nil, err
		}
	} else {
		log.Info().Str("state", string(rec.State)).Msg("Resuming enrollment")
	}

	if !rec.InstructorsCredited {
		if err := s.creditInstructors(ctx, rec); err != nil {
			return nil, err
		}
	}

	deleted, err := s.clearCart(ctx, rec)
	if err != nil {
		return nil, err
	}

	return s.complete(ctx, rec, deleted)
}

// acquire reserves the key, or takes over a stored record whose lease has run out.
// A non-nil outcome means the stored result is replayed as is.
func (s *enrollmentServiceImpl) acquire(ctx context.Context, rec *models.EnrollmentRecord) (*models.EnrollmentRecord, *EnrollmentOutcome, error) {
	sctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	stored, created, err := s.enrollmentRepo.Reserve(sctx, rec)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("error reserving idempotency key: %w", err)
	}
	if created {
		return stored, nil, nil
	}

	if !samePayload(stored, rec) {
		return nil, nil, apperrors.NewCustomError(apperrors.ErrIdempotencyMismatch,
			"idempotency key was already used for a different payment")
	}

	if stored.State == models.EnrollmentCompleted && stored.Result != nil {
		logger.Ctx(ctx).Info().Msg("Replaying completed enrollment")
		return nil, &EnrollmentOutcome{Result: *stored.Result, Replayed: true}, nil
	}

	now := s.now()
	if !stored.Terminal() && stored.LockedUntil.After(now) {
		return nil, nil, apperrors.ErrEnrollmentInProgress
	}

	lockedUntil := now.Add(s.cfg.LeaseDuration)
	sctx, cancel = bounded(ctx, s.cfg.StoreTimeout)
	ok, err := s.enrollmentRepo.Acquire(sctx, stored.Key, stored.Fence, stored.LockedUntil, lockedUntil)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("error acquiring enrollment lease: %w", err)
	}
	if !ok {
		return nil, nil, apperrors.ErrEnrollmentInProgress
	}

	stored.Fence++
	stored.LockedUntil = lockedUntil
	if stored.State == models.EnrollmentFailed {
		// Every step of a failed attempt was compensated, so it starts over.
		stored.State = models.EnrollmentPending
		stored.FailureReason = ""
		stored.PaymentID = ""
	}
	return stored, nil, nil
}

func (s *enrollmentServiceImpl) verifyCharge(ctx context.Context, rec *models.EnrollmentRecord) error {
	if !s.cfg.VerifyCharge || s.authority == nil {
		return nil
	}

	intent, err := s.authority.RetrieveIntent(ctx, rec.TransactionID)
	if err != nil {
		s.metrics.IncChargeRequest("retrieve_intent", metrics.OutcomeError)
		return fmt.Errorf("error verifying charge: %w", err)
	}
	s.metrics.IncChargeRequest("retrieve_intent", metrics.OutcomeSuccess)

	if intent.Status != charge.StatusSucceeded || intent.Amount != MinorUnits(rec.Amount) {
		return apperrors.NewCustomError(apperrors.ErrValidationFailed,
			fmt.Sprintf("charge %s is not a completed payment of %.2f", rec.TransactionID, rec.Amount))
	}
	return nil
}

func (s *enrollmentServiceImpl) reserveSeats(ctx context.Context, rec *models.EnrollmentRecord) error {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"ReserveSeats")
	defer span.End()

	keys := seatKeys(rec.Key, rec.ClassIDs)
	for i, classID := range rec.ClassIDs {
		if err := s.classes.AdjustSeatsForEnrollment(ctx, classID, keys[i]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "seat reservation failed")
			logger.Ctx(ctx).Warn().Err(err).Str("classId", classID).Str("step", "reserve_seats").Msg("Seat reservation failed")

			return s.abort(ctx, rec, err)
		}
	}
	return nil
}

func (s *enrollmentServiceImpl) recordPayment(ctx context.Context, rec *models.EnrollmentRecord, classNames []string) error {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"RecordPayment")
	defer span.End()

	if err := s.renew(ctx, rec); err != nil {
		span.RecordError(err)
		if leaseLost(err) {
			return err
		}
		return s.abort(ctx, rec, fmt.Errorf("error extending enrollment lease: %w", err))
	}

	payment, err := s.insertPayment(ctx, rec, classNames)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment insert failed")
		logger.Ctx(ctx).Error().Err(err).Str("step", "record_payment").Msg("Payment insert failed")

		return s.abort(ctx, rec, err)
	}

	rec.State = models.EnrollmentRecorded
	rec.PaymentID = payment.ID
	if err := s.save(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkpoint failed")
		if leaseLost(err) {
			// The new holder finds the payment under the same idempotency key.
			return err
		}
		logger.Ctx(ctx).Error().Err(err).Str("step", "record_payment").Msg("Enrollment checkpoint failed")

		return s.abort(ctx, rec, fmt.Errorf("error saving enrollment progress: %w", err))
	}

	span.SetAttributes(attribute.String("payment.id", payment.ID))
	return nil
}

// insertPayment writes the payment for rec, reusing one an earlier attempt already wrote
func (s *enrollmentServiceImpl) insertPayment(ctx context.Context, rec *models.EnrollmentRecord, classNames []string) (*models.Payment, error) {
	payment := &models.Payment{
		Email:          rec.Email,
		Amount:         rec.Amount,
		TransactionID:  rec.TransactionID,
		ClassIDs:       slices.Clone(rec.ClassIDs),
		CartItemIDs:    slices.Clone(rec.CartItemIDs),
		IdempotencyKey: rec.Key,
		CreatedAt:      s.now(),
	}
	payment.ClassNames = s.classNames(ctx, rec.ClassIDs, classNames)

	sctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	err := s.paymentRepo.Create(sctx, payment)
	cancel()
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, apperrors.ErrResourceAlreadyExists) {
		return nil, fmt.Errorf("error recording payment: %w", err)
	}

	sctx, cancel = bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()
	existing, err := s.paymentRepo.FindByIdempotencyKey(sctx, rec.Key)
	if err != nil {
		return nil, fmt.Errorf("error loading recorded payment: %w", err)
	}
	return existing, nil
}

// classNames reads the current class names, falling back to the names the client submitted
func (s *enrollmentServiceImpl) classNames(ctx context.Context, classIDs, submitted []string) []string {
	names := make([]string, 0, len(classIDs))
	for _, id := range classIDs {
		sctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
		class, err := s.classes.GetByID(sctx, id)
		cancel()
		if err != nil {
			return slices.Clone(submitted)
		}
		names = append(names, class.Name)
	}
	return names
}

// creditInstructors adds one enrollment to the counter of each distinct instructor
// teaching one of the classes. The flag is stored before any counter moves, so a
// resumed enrollment never credits twice; a crash in between loses the credit.
func (s *enrollmentServiceImpl) creditInstructors(ctx context.Context, rec *models.EnrollmentRecord) error {
	log := logger.Ctx(ctx)

	rec.InstructorsCredited = true
	if err := s.renew(ctx, rec); err != nil {
		if leaseLost(err) {
			return err
		}
		rec.InstructorsCredited = false
		log.Warn().Err(err).Msg("Failed to flag instructors as credited, skipping credit")
		return nil
	}

	credited := make(map[string]struct{})
	for _, classID := range rec.ClassIDs {
		if err := s.creditInstructor(ctx, classID, credited); err != nil {
			log.Warn().Err(err).Str("classId", classID).Msg("Failed to credit instructor")
		}
	}
	return nil
}

func (s *enrollmentServiceImpl) creditInstructor(ctx context.Context, classID string, credited map[string]struct{}) error {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		return err
	}
	email := normalizeEmail(class.InstructorEmail)
	if _, done := credited[email]; done || email == "" {
		return nil
	}
	credited[email] = struct{}{}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if user.Role != models.RoleInstructor {
		return nil
	}
	return s.userRepo.AddStudentsEnrolled(ctx, email, 1)
}

func (s *enrollmentServiceImpl) clearCart(ctx context.Context, rec *models.EnrollmentRecord) (int64, error) {
	ctx, span := s.tracer.Start(ctx, spanPrefix+"ClearCart")
	defer span.End()

	deleted, err := s.carts.RemoveMany(ctx, rec.Email, rec.CartItemIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cart cleanup failed")
		logger.Ctx(ctx).Error().Err(err).Str("step", "clear_cart").Msg("Cart cleanup failed, enrollment stays recorded")

		rec.LockedUntil = s.now()
		if serr := s.save(ctx, rec); serr != nil {
			if leaseLost(serr) {
				return 0, serr
			}
			logger.Ctx(ctx).Error().Err(serr).Msg("Failed to release enrollment lease")
		}
		return 0, apperrors.NewUpstreamError(
			"payment recorded but the cart could not be cleared; retry with the same idempotency key", err)
	}

	span.SetAttributes(attribute.Int64("cart.deleted", deleted))
	return deleted, nil
}

func (s *enrollmentServiceImpl) complete(ctx context.Context, rec *models.EnrollmentRecord, deleted int64) (*EnrollmentOutcome, error) {
	now := s.now()
	rec.State = models.EnrollmentCompleted
	rec.Result = &models.EnrollmentResult{
		InsertResult: models.InsertResult{InsertedID: rec.PaymentID},
		DeleteResult: models.DeleteResult{DeletedCount: deleted},
	}
	rec.LockedUntil = now
	rec.ExpiresAt = now.Add(s.cfg.IdempotencyTTL)

	if err := s.save(ctx, rec); err != nil {
		if leaseLost(err) {
			return s.storedOutcome(ctx, rec.Key, err)
		}
		// Seats, payment and cart are already consistent; a retry re-runs the cart step only.
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to store enrollment result")
	}
	return &EnrollmentOutcome{Result: *rec.Result}, nil
}

// storedOutcome replays the result the current lease holder stored, or reports
// cause while it is still running.
func (s *enrollmentServiceImpl) storedOutcome(ctx context.Context, key string, cause error) (*EnrollmentOutcome, error) {
	sctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	stored, err := s.enrollmentRepo.FindByKey(sctx, key)
	if err != nil || stored.State != models.EnrollmentCompleted || stored.Result == nil {
		return nil, cause
	}
	return &EnrollmentOutcome{Result: *stored.Result, Replayed: true}, nil
}

// abort compensates the steps taken so far and marks rec failed. A worker whose
// lease was taken over leaves the record and its seats to the new holder.
func (s *enrollmentServiceImpl) abort(ctx context.Context, rec *models.EnrollmentRecord, cause error) error {
	if err := s.renew(ctx, rec); leaseLost(err) {
		logger.Ctx(ctx).Warn().Err(cause).Msg("Enrollment was taken over, skipping compensation")
		return err
	}

	s.discardPayment(ctx, rec.Key)
	s.releaseSeats(ctx, rec)
	rec.PaymentID = ""
	s.markFailed(ctx, rec, cause)
	return cause
}

// releaseSeats undoes every seat reservation held by rec
func (s *enrollmentServiceImpl) releaseSeats(ctx context.Context, rec *models.EnrollmentRecord) {
	keys := seatKeys(rec.Key, rec.ClassIDs)
	for i, classID := range rec.ClassIDs {
		if err := s.classes.ReleaseSeat(ctx, classID, keys[i]); err != nil && !apperrors.IsNotFound(err) {
			logger.Ctx(ctx).Error().Err(err).Str("classId", classID).Msg("Failed to release seat")
		}
	}
}

func (s *enrollmentServiceImpl) discardPayment(ctx context.Context, key string) {
	sctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	payment, err := s.paymentRepo.FindByIdempotencyKey(sctx, key)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to look up payment to discard")
		}
		return
	}
	if err := s.paymentRepo.Delete(sctx, payment.ID); err != nil && !apperrors.IsNotFound(err) {
		logger.Ctx(ctx).Error().Err(err).Str("paymentId", payment.ID).Msg("Failed to discard payment")
	}
}

func (s *enrollmentServiceImpl) markFailed(ctx context.Context, rec *models.EnrollmentRecord, cause error) {
	now := s.now()
	rec.State = models.EnrollmentFailed
	rec.FailureReason = cause.Error()
	rec.LockedUntil = now
	rec.ExpiresAt = now.Add(s.cfg.IdempotencyTTL)

	if err := s.save(ctx, rec); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Failed to mark enrollment as failed")
	}
}

// renew extends the lease, failing once another worker has taken the record over
func (s *enrollmentServiceImpl) renew(ctx context.Context, rec *models.EnrollmentRecord) error {
	rec.LockedUntil = s.now().Add(s.cfg.LeaseDuration)
	return s.save(ctx, rec)
}

// save writes rec under its fence
func (s *enrollmentServiceImpl) save(ctx context.Context, rec *models.EnrollmentRecord) error {
	ctx, cancel := bounded(ctx, s.cfg.StoreTimeout)
	defer cancel()

	rec.UpdatedAt = s.now()
	return s.enrollmentRepo.Save(ctx, rec)
}

// seatKeys derives one reservation key per class entry, so a class listed twice
// takes two seats and both are released together.
func seatKeys(key string, classIDs []string) []string {
	seen := make(map[string]int, len(classIDs))
	keys := make([]string, len(classIDs))
	for i, id := range classIDs {
		seen[id]++
		if n := seen[id]; n > 1 {
			keys[i] = key + "#" + strconv.Itoa(n)
		} else {
			keys[i] = key
		}
	}
	return keys
}

func leaseLost(err error) bool {
	return errors.Is(err, apperrors.ErrEnrollmentInProgress)
}

func samePayload(a, b *models.EnrollmentRecord) bool {
	return a.Email == b.Email &&
		MinorUnits(a.Amount) == MinorUnits(b.Amount) &&
		a.TransactionID == b.TransactionID &&
		slices.Equal(a.ClassIDs, b.ClassIDs) &&
		slices.Equal(a.CartItemIDs, b.CartItemIDs)
}

func fingerprint(rec *models.EnrollmentRecord) string {
	return strings.Join([]string{
		rec.Email,
		strconv.FormatInt(MinorUnits(rec.Amount), 10),
		rec.TransactionID,
		strings.Join(rec.ClassIDs, ","),
		strings.Join(rec.CartItemIDs, ","),
	}, "|")
}
