package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/repositories/memory"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/charge"
)

func submitRequest(key, email string, amount float64, items []*models.CartItem) *EnrollmentRequest {
	req := &EnrollmentRequest{
		IdempotencyKey: key,
		Email:          email,
		Amount:         amount,
		TransactionID:  "pi_" + key,
	}
	for _, item := range items {
		req.CartItemIDs = append(req.CartItemIDs, item.ID)
		req.ClassIDs = append(req.ClassIDs, item.ClassID)
	}
	return req
}

func TestSubmitEnrollsWholeCart(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	c2 := env.addClass(t, "Sketching", 5)
	keep := env.addClass(t, "Knitting", 5)
	items := []*models.CartItem{env.addCartItem(t, studentEmail, c1), env.addCartItem(t, studentEmail, c2)}
	env.addCartItem(t, studentEmail, keep)

	out, err := env.enrollments.Submit(ctx, studentEmail, submitRequest("k1", studentEmail, 50, items))
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.NotEmpty(t, out.Result.InsertResult.InsertedID)
	assert.Equal(t, int64(2), out.Result.DeleteResult.DeletedCount)

	for _, id := range []string{c1.ID, c2.ID} {
		class := env.class(t, id)
		assert.Equal(t, 4, class.SpotsAvailable)
		assert.Equal(t, 1, class.StudentsEnrolled)
	}
	assert.Equal(t, 5, env.class(t, keep.ID).SpotsAvailable)

	payments, err := env.repos.PaymentRepository.ListByPayer(ctx, studentEmail)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, out.Result.InsertResult.InsertedID, payments[0].ID)
	assert.Equal(t, []string{"Pottery", "Sketching"}, payments[0].ClassNames)

	cart, err := env.repos.CartRepository.ListByOwner(ctx, studentEmail)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, keep.ID, cart[0].ClassID)

	// Two classes by the same instructor credit the instructor once.
	instructor, err := env.repos.UserRepository.FindByEmail(ctx, instructorEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, instructor.StudentsEnrolled)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, rec.State)
	assert.True(t, rec.InstructorsCredited)
}

func TestSubmitReplaysCompletedResult(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	first, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)

	second, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Result, second.Result)

	assert.Equal(t, 4, env.class(t, c1.ID).SpotsAvailable)
	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestSubmitDefaultsKeyToTransactionID(t *testing.T) {
	env := newTestEnv(t, false)
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})
	req.TransactionID = "pi_abc"

	_, err := env.enrollments.Submit(context.Background(), studentEmail, req)
	require.NoError(t, err)

	rec, err := env.repos.EnrollmentRepository.FindByKey(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, rec.State)
}

func TestSubmitRejectsReusedKeyWithDifferentPayload(t *testing.T) {
	env := newTestEnv(t, false)
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	_, err := env.enrollments.Submit(context.Background(), studentEmail, req)
	require.NoError(t, err)

	changed := *req
	changed.Amount = 30
	_, err = env.enrollments.Submit(context.Background(), studentEmail, &changed)
	assert.ErrorIs(t, err, apperrors.ErrIdempotencyMismatch)
	assert.Equal(t, 4, env.class(t, c1.ID).SpotsAvailable)
}

func TestSubmitRejectsForeignPayer(t *testing.T) {
	env := newTestEnv(t, false)
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	_, err := env.enrollments.Submit(context.Background(), otherEmail, req)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Equal(t, 5, env.class(t, c1.ID).SpotsAvailable)
}

func TestSubmitRequiresClassesAndKey(t *testing.T) {
	env := newTestEnv(t, false)

	_, err := env.enrollments.Submit(context.Background(), studentEmail, &EnrollmentRequest{Email: studentEmail, TransactionID: "pi_1"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = env.enrollments.Submit(context.Background(), studentEmail, &EnrollmentRequest{
		Email:       studentEmail,
		ClassIDs:    []string{"c"},
		CartItemIDs: []string{"i"},
	})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestSubmitCompensatesSeatsWhenClassMissing(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	item := env.addCartItem(t, studentEmail, c1)

	req := submitRequest("k1", studentEmail, 50, []*models.CartItem{item})
	req.ClassIDs = append(req.ClassIDs, "missing")
	req.CartItemIDs = append(req.CartItemIDs, "gone")

	_, err := env.enrollments.Submit(ctx, studentEmail, req)
	assert.ErrorIs(t, err, apperrors.ErrClassNotFound)

	class := env.class(t, c1.ID)
	assert.Equal(t, 5, class.SpotsAvailable)
	assert.Equal(t, 0, class.StudentsEnrolled)

	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)

	cart, err := env.repos.CartRepository.ListByOwner(ctx, studentEmail)
	require.NoError(t, err)
	assert.Len(t, cart, 1)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentFailed, rec.State)
	assert.NotEmpty(t, rec.FailureReason)
}

func TestSubmitResumesAfterCartCleanupFailure(t *testing.T) {
	repos := memory.NewRepositories()
	flaky := &flakyCartRepository{CartRepository: repos.CartRepository, failures: 1}
	repos.CartRepository = flaky
	env := newTestEnvWithRepos(t, repos, false, nil)
	ctx := context.Background()

	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	_, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.ErrorIs(t, err, apperrors.ErrUpstreamFailure)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRecorded, rec.State)
	assert.NotEmpty(t, rec.PaymentID)

	out, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, rec.PaymentID, out.Result.InsertResult.InsertedID)
	assert.Equal(t, int64(1), out.Result.DeleteResult.DeletedCount)

	class := env.class(t, c1.ID)
	assert.Equal(t, 4, class.SpotsAvailable)
	assert.Equal(t, 1, class.StudentsEnrolled)

	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	instructor, err := env.repos.UserRepository.FindByEmail(ctx, instructorEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, instructor.StudentsEnrolled)
}

func TestSubmitReportsInProgressWhileLeaseIsHeld(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	item := env.addCartItem(t, studentEmail, c1)

	now := time.Now().UTC().Truncate(time.Millisecond)
	held := &models.EnrollmentRecord{
		Key:           "k1",
		Email:         studentEmail,
		Amount:        25,
		TransactionID: "pi_k1",
		ClassIDs:      []string{c1.ID},
		CartItemIDs:   []string{item.ID},
		State:         models.EnrollmentPending,
		LockedUntil:   now.Add(time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(time.Hour),
	}
	_, created, err := env.repos.EnrollmentRepository.Reserve(ctx, held)
	require.NoError(t, err)
	require.True(t, created)

	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{item})
	_, err = env.enrollments.Submit(ctx, studentEmail, req)
	assert.ErrorIs(t, err, apperrors.ErrEnrollmentInProgress)
	assert.Equal(t, 5, env.class(t, c1.ID).SpotsAvailable)

	// Once the lease runs out the record is taken over and finished.
	held.LockedUntil = now.Add(-time.Second)
	require.NoError(t, env.repos.EnrollmentRepository.Save(ctx, held))

	out, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Result.DeleteResult.DeletedCount)
	assert.Equal(t, 4, env.class(t, c1.ID).SpotsAvailable)
}

func TestSubmitLastSeatGoesToOneBuyer(t *testing.T) {
	env := newTestEnv(t, true)
	c1 := env.addClass(t, "Pottery", 1)
	reqs := []*EnrollmentRequest{
		submitRequest("k-amy", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)}),
		submitRequest("k-bob", otherEmail, 25, []*models.CartItem{env.addCartItem(t, otherEmail, c1)}),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(reqs))
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *EnrollmentRequest) {
			defer wg.Done()
			_, errs[i] = env.enrollments.Submit(context.Background(), req.Email, req)
		}(i, req)
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrSeatsExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exhausted)

	class := env.class(t, c1.ID)
	assert.Equal(t, 0, class.SpotsAvailable)
	assert.Equal(t, 1, class.StudentsEnrolled)

	payments, err := env.repos.PaymentRepository.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestSubmitSameClassTwiceTakesTwoSeats(t *testing.T) {
	env := newTestEnv(t, false)
	c1 := env.addClass(t, "Pottery", 5)
	items := []*models.CartItem{env.addCartItem(t, studentEmail, c1), env.addCartItem(t, studentEmail, c1)}

	out, err := env.enrollments.Submit(context.Background(), studentEmail, submitRequest("k1", studentEmail, 50, items))
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Result.DeleteResult.DeletedCount)

	class := env.class(t, c1.ID)
	assert.Equal(t, 3, class.SpotsAvailable)
	assert.Equal(t, 2, class.StudentsEnrolled)
}

func TestSubmitStrictReleasesEarlierSeatsWhenLaterClassIsFull(t *testing.T) {
	env := newTestEnv(t, true)
	open := env.addClass(t, "Pottery", 3)
	full := env.addClass(t, "Sketching", 0)
	items := []*models.CartItem{env.addCartItem(t, studentEmail, open), env.addCartItem(t, studentEmail, full)}

	_, err := env.enrollments.Submit(context.Background(), studentEmail, submitRequest("k1", studentEmail, 50, items))
	assert.ErrorIs(t, err, apperrors.ErrSeatsExhausted)
	assert.Equal(t, 3, env.class(t, open.ID).SpotsAvailable)
	assert.Equal(t, 0, env.class(t, full.ID).StudentsEnrolled)
}

func TestSubmitVerifiesChargeWhenConfigured(t *testing.T) {
	authority := &fakeAuthority{intents: map[string]*charge.Intent{
		"pi_k1": {ID: "pi_k1", Amount: 2500, Status: charge.StatusSucceeded},
		"pi_k2": {ID: "pi_k2", Amount: 1000, Status: charge.StatusSucceeded},
	}}
	env := newTestEnvWithRepos(t, memory.NewRepositories(), false, authority)
	c1 := env.addClass(t, "Pottery", 5)

	req := submitRequest("k2", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})
	_, err := env.enrollments.Submit(context.Background(), studentEmail, req)
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, 5, env.class(t, c1.ID).SpotsAvailable)

	req = submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})
	_, err = env.enrollments.Submit(context.Background(), studentEmail, req)
	require.NoError(t, err)
	assert.Equal(t, 4, env.class(t, c1.ID).SpotsAvailable)
}

func TestPurgeExpiredRemovesFinishedRecords(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	_, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)

	n, err := env.enrollments.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	impl := env.enrollments.(*enrollmentServiceImpl)
	impl.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	n, err = env.enrollments.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestSeatKeysDistinguishRepeatedClasses(t *testing.T) {
	assert.Equal(t, []string{"k", "k", "k#2", "k#3"}, seatKeys("k", []string{"a", "b", "a", "a"}))
}

// takeOver runs req on a second worker whose clock is past the first worker's lease
func takeOver(t *testing.T, env *testEnv, req *EnrollmentRequest) *EnrollmentOutcome {
	t.Helper()
	fresh := env.newEnrollmentService(env.classes)
	fresh.now = func() time.Time { return time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond) }

	out, err := fresh.Submit(context.Background(), studentEmail, req)
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	return out
}

func TestSubmitStaleWorkerStopsAfterTakeover(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	stalled := newStallingClassService(env.classes, nil)
	stale := env.newEnrollmentService(stalled)
	errc := make(chan error, 1)
	go func() {
		_, err := stale.Submit(ctx, studentEmail, req)
		errc <- err
	}()
	<-stalled.entered

	out := takeOver(t, env, req)
	assert.Equal(t, int64(1), out.Result.DeleteResult.DeletedCount)

	close(stalled.release)
	assert.ErrorIs(t, <-errc, apperrors.ErrEnrollmentInProgress)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, rec.State)
	require.NotNil(t, rec.Result)
	assert.Equal(t, out.Result, *rec.Result)

	instructor, err := env.repos.UserRepository.FindByEmail(ctx, instructorEmail)
	require.NoError(t, err)
	assert.Equal(t, 1, instructor.StudentsEnrolled)

	class := env.class(t, c1.ID)
	assert.Equal(t, 4, class.SpotsAvailable)
	assert.Equal(t, 1, class.StudentsEnrolled)

	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	replay, err := env.enrollments.Submit(ctx, studentEmail, req)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, out.Result, replay.Result)
}

func TestSubmitStaleWorkerSkipsCompensationAfterTakeover(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	req := submitRequest("k1", studentEmail, 25, []*models.CartItem{env.addCartItem(t, studentEmail, c1)})

	stalled := newStallingClassService(env.classes, apperrors.NewCustomError(apperrors.ErrSeatsExhausted, "no seats"))
	stale := env.newEnrollmentService(stalled)
	errc := make(chan error, 1)
	go func() {
		_, err := stale.Submit(ctx, studentEmail, req)
		errc <- err
	}()
	<-stalled.entered

	takeOver(t, env, req)

	close(stalled.release)
	assert.ErrorIs(t, <-errc, apperrors.ErrEnrollmentInProgress)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, rec.State)
	assert.Empty(t, rec.FailureReason)

	class := env.class(t, c1.ID)
	assert.Equal(t, 4, class.SpotsAvailable)
	assert.Equal(t, 1, class.StudentsEnrolled)

	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestSubmitResumesAfterCrashBeforeCheckpoint(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c1 := env.addClass(t, "Pottery", 5)
	item := env.addCartItem(t, studentEmail, c1)

	// A worker reserved the seat and wrote the payment, then died before the checkpoint.
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, created, err := env.repos.EnrollmentRepository.Reserve(ctx, &models.EnrollmentRecord{
		Key:           "k1",
		Email:         studentEmail,
		Amount:        25,
		TransactionID: "pi_k1",
		ClassIDs:      []string{c1.ID},
		CartItemIDs:   []string{item.ID},
		State:         models.EnrollmentPending,
		LockedUntil:   now.Add(-time.Second),
		CreatedAt:     now.Add(-time.Minute),
		UpdatedAt:     now.Add(-time.Minute),
		ExpiresAt:     now.Add(time.Hour),
	})
	require.NoError(t, err)
	require.True(t, created)
	require.NoError(t, env.classes.AdjustSeatsForEnrollment(ctx, c1.ID, "k1"))
	earlier := &models.Payment{
		Email:          studentEmail,
		Amount:         25,
		TransactionID:  "pi_k1",
		ClassIDs:       []string{c1.ID},
		CartItemIDs:    []string{item.ID},
		IdempotencyKey: "k1",
		CreatedAt:      now.Add(-time.Minute),
	}
	require.NoError(t, env.repos.PaymentRepository.Create(ctx, earlier))

	out, err := env.enrollments.Submit(ctx, studentEmail, submitRequest("k1", studentEmail, 25, []*models.CartItem{item}))
	require.NoError(t, err)
	assert.Equal(t, earlier.ID, out.Result.InsertResult.InsertedID)
	assert.Equal(t, int64(1), out.Result.DeleteResult.DeletedCount)

	payments, err := env.repos.PaymentRepository.List(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, earlier.ID, payments[0].ID)

	class := env.class(t, c1.ID)
	assert.Equal(t, 4, class.SpotsAvailable)
	assert.Equal(t, 1, class.StudentsEnrolled)

	cart, err := env.repos.CartRepository.ListByOwner(ctx, studentEmail)
	require.NoError(t, err)
	assert.Empty(t, cart)

	rec, err := env.repos.EnrollmentRepository.FindByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentCompleted, rec.State)
	assert.Equal(t, earlier.ID, rec.PaymentID)
}
