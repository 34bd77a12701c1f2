package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	appAuth "github.com/yigit/classmarket/internal/app/auth"
	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/app/repositories/memory"
	"github.com/yigit/classmarket/internal/pkg/charge"
)

const (
	studentEmail    = "amy@example.com"
	otherEmail      = "bob@example.com"
	instructorEmail = "ivy@example.com"
	adminEmail      = "root@example.com"
)

type testEnv struct {
	repos       *repositories.Repositories
	gate        *appAuth.RoleGate
	classes     ClassService
	carts       CartService
	users       UserService
	enrollments EnrollmentService
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()
	repos := memory.NewRepositories()
	return newTestEnvWithRepos(t, repos, strict, nil)
}

func newTestEnvWithRepos(t *testing.T, repos *repositories.Repositories, strict bool, authority charge.Authority) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	gate := appAuth.NewRoleGate(repos.UserRepository)

	env := &testEnv{
		repos:   repos,
		gate:    gate,
		classes: NewClassService(repos.ClassRepository, gate, ClassServiceConfig{StrictSeatCheck: strict, StoreTimeout: time.Second}, nil, log),
		carts:   NewCartService(repos.CartRepository, time.Second, log),
		users:   NewUserService(repos.UserRepository, gate, log),
	}
	env.enrollments = NewEnrollmentService(repos, env.classes, env.carts, authority, EnrollmentConfig{
		StoreTimeout:   time.Second,
		LeaseDuration:  30 * time.Second,
		IdempotencyTTL: time.Hour,
		VerifyCharge:   authority != nil,
	}, nil, log)

	env.addUser(t, studentEmail, models.RoleStudent)
	env.addUser(t, otherEmail, models.RoleStudent)
	env.addUser(t, instructorEmail, models.RoleInstructor)
	env.addUser(t, adminEmail, models.RoleAdmin)
	return env
}

// newEnrollmentService builds a second saga driver over the same repositories
func (e *testEnv) newEnrollmentService(classes ClassService) *enrollmentServiceImpl {
	return NewEnrollmentService(e.repos, classes, e.carts, nil, EnrollmentConfig{
		StoreTimeout:   time.Second,
		LeaseDuration:  30 * time.Second,
		IdempotencyTTL: time.Hour,
	}, nil, zerolog.Nop()).(*enrollmentServiceImpl)
}

func (e *testEnv) addUser(t *testing.T, email string, role models.RoleType) {
	t.Helper()
	require.NoError(t, e.repos.UserRepository.Create(context.Background(), &models.User{Email: email, Role: role}))
}

func (e *testEnv) addClass(t *testing.T, name string, spots int) *models.Class {
	t.Helper()
	class := &models.Class{
		Name:            name,
		InstructorEmail: instructorEmail,
		Price:           25,
		SpotsAvailable:  spots,
		Status:          models.ClassStatusApproved,
	}
	require.NoError(t, e.repos.ClassRepository.Create(context.Background(), class))
	return class
}

func (e *testEnv) addCartItem(t *testing.T, owner string, class *models.Class) *models.CartItem {
	t.Helper()
	item := &models.CartItem{ClassID: class.ID, Email: owner, Name: class.Name, Price: class.Price}
	require.NoError(t, e.repos.CartRepository.Create(context.Background(), item))
	return item
}

func (e *testEnv) class(t *testing.T, id string) *models.Class {
	t.Helper()
	class, err := e.repos.ClassRepository.FindByID(context.Background(), id)
	require.NoError(t, err)
	return class
}

// flakyCartRepository fails DeleteMany until failures runs out
type flakyCartRepository struct {
	repositories.CartRepository
	mu       sync.Mutex
	failures int
}

func (r *flakyCartRepository) DeleteMany(ctx context.Context, email string, ids []string) (int64, error) {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return 0, errors.New("connection reset by peer")
	}
	r.mu.Unlock()
	return r.CartRepository.DeleteMany(ctx, email, ids)
}

// stallingClassService blocks the first seat reservation until release is closed,
// then fails it with err or lets it through when err is nil
type stallingClassService struct {
	ClassService
	entered chan struct{}
	release chan struct{}
	err     error
	once    sync.Once
}

func newStallingClassService(classes ClassService, err error) *stallingClassService {
	return &stallingClassService{
		ClassService: classes,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
		err:          err,
	}
}

func (s *stallingClassService) AdjustSeatsForEnrollment(ctx context.Context, classID, key string) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
		if s.err != nil {
			return s.err
		}
	}
	return s.ClassService.AdjustSeatsForEnrollment(ctx, classID, key)
}

// fakeAuthority records intent requests and serves canned intents
type fakeAuthority struct {
	mu       sync.Mutex
	requests []charge.IntentRequest
	intents  map[string]*charge.Intent
	err      error
}

func (f *fakeAuthority) CreateIntent(ctx context.Context, req charge.IntentRequest) (*charge.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &charge.Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       "requires_payment_method",
	}, nil
}

func (f *fakeAuthority) RetrieveIntent(ctx context.Context, id string) (*charge.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	intent, ok := f.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return intent, nil
}
