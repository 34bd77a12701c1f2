package repositories

import (
	"context"
	"time"

	"github.com/yigit/classmarket/internal/app/models"
)

// UserRepository persists user records. Lookups that find nothing return
// apperrors.ErrUserNotFound.
type UserRepository interface {
	List(ctx context.Context) ([]*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// Create stores user and fills in its ID; a taken email yields apperrors.ErrEmailAlreadyExists.
	Create(ctx context.Context, user *models.User) error
	SetRole(ctx context.Context, id string, role models.RoleType) error
	// AddStudentsEnrolled atomically adds delta to the user's enrollment counter.
	AddStudentsEnrolled(ctx context.Context, email string, delta int) error
}

// ClassRepository owns class records and their seat counters. Lookups that find
// nothing return apperrors.ErrClassNotFound.
type ClassRepository interface {
	List(ctx context.Context) ([]*models.Class, error)
	ListByStatus(ctx context.Context, status models.ClassStatus) ([]*models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	UpdateFields(ctx context.Context, id string, fields models.ClassFieldsUpdate) error
	SetStatus(ctx context.Context, id string, status models.ClassStatus) error
	Delete(ctx context.Context, id string) error

	// ReserveSeat moves one seat from spotsAvailable to studentsEnrolled in a single
	// store-level operation, recorded under key. Reserving the same key twice is a
	// no-op. With strict set, a class without free seats yields apperrors.ErrSeatsExhausted.
	ReserveSeat(ctx context.Context, classID, key string, strict bool) error
	// ReleaseSeat undoes the reservation held under key; without one it is a no-op.
	ReleaseSeat(ctx context.Context, classID, key string) error
}

// CartRepository stores pending selections. Lookups that find nothing return
// apperrors.ErrCartItemNotFound.
type CartRepository interface {
	ListByOwner(ctx context.Context, email string) ([]*models.CartItem, error)
	FindByID(ctx context.Context, id string) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	Delete(ctx context.Context, id string) error
	// DeleteMany removes the owner's items among ids and returns how many existed.
	DeleteMany(ctx context.Context, email string, ids []string) (int64, error)
}

// PaymentRepository stores immutable payment records, unique per idempotency key.
type PaymentRepository interface {
	// Create stores payment; a second payment for the same idempotency key yields
	// apperrors.ErrResourceAlreadyExists.
	Create(ctx context.Context, payment *models.Payment) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error)
	ListByPayer(ctx context.Context, email string) ([]*models.Payment, error)
	List(ctx context.Context) ([]*models.Payment, error)
	// Delete exists only to compensate a failed enrollment.
	Delete(ctx context.Context, id string) error
}

// EnrollmentRepository is the idempotency ledger of enrollment transactions.
type EnrollmentRepository interface {
	// Reserve inserts record unless its key exists. It returns the stored record and
	// whether this call created it.
	Reserve(ctx context.Context, record *models.EnrollmentRecord) (*models.EnrollmentRecord, bool, error)
	// Acquire takes over the lease on key when the stored fence and lease still equal
	// fence and expected. It bumps the fence, returning false if another process got
	// there first.
	Acquire(ctx context.Context, key string, fence int64, expected, lockedUntil time.Time) (bool, error)
	// Save writes the progress fields of record as long as the stored fence equals
	// record.Fence. Otherwise it fails with apperrors.ErrEnrollmentInProgress.
	Save(ctx context.Context, record *models.EnrollmentRecord) error
	FindByKey(ctx context.Context, key string) (*models.EnrollmentRecord, error)
	// DeleteExpired removes completed or failed records that expired before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// InstructorRepository lists public instructor profiles
type InstructorRepository interface {
	List(ctx context.Context) ([]*models.Instructor, error)
}

// ReviewRepository lists reviews
type ReviewRepository interface {
	List(ctx context.Context) ([]*models.Review, error)
}

// Repositories holds all the repository instances of one store driver
type Repositories struct {
	UserRepository       UserRepository
	ClassRepository      ClassRepository
	CartRepository       CartRepository
	PaymentRepository    PaymentRepository
	EnrollmentRepository EnrollmentRepository
	InstructorRepository InstructorRepository
	ReviewRepository     ReviewRepository
}
