package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

// enrollmentDocument is keyed by the idempotency key itself
type enrollmentDocument struct {
	Key                 string                   `bson:"_id"`
	Email               string                   `bson:"email"`
	Amount              float64                  `bson:"amount"`
	TransactionID       string                   `bson:"transactionId"`
	ClassIDs            []string                 `bson:"classIds"`
	CartItemIDs         []string                 `bson:"cartItemIds"`
	State               string                   `bson:"state"`
	PaymentID           string                   `bson:"paymentId,omitempty"`
	InstructorsCredited bool                     `bson:"instructorsCredited"`
	Result              *models.EnrollmentResult `bson:"result,omitempty"`
	FailureReason       string                   `bson:"failureReason,omitempty"`
	LockedUntil         time.Time                `bson:"lockedUntil"`
	Fence               int64                    `bson:"fence"`
	CreatedAt           time.Time                `bson:"createdAt"`
	UpdatedAt           time.Time                `bson:"updatedAt"`
	ExpiresAt           time.Time                `bson:"expiresAt"`
}

func newEnrollmentDocument(rec *models.EnrollmentRecord) *enrollmentDocument {
	return &enrollmentDocument{
		Key:                 rec.Key,
		Email:               rec.Email,
		Amount:              rec.Amount,
		TransactionID:       rec.TransactionID,
		ClassIDs:            rec.ClassIDs,
		CartItemIDs:         rec.CartItemIDs,
		State:               string(rec.State),
		PaymentID:           rec.PaymentID,
		InstructorsCredited: rec.InstructorsCredited,
		Result:              rec.Result,
		FailureReason:       rec.FailureReason,
		LockedUntil:         rec.LockedUntil,
		Fence:               rec.Fence,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
		ExpiresAt:           rec.ExpiresAt,
	}
}

func (d *enrollmentDocument) model() *models.EnrollmentRecord {
	return &models.EnrollmentRecord{
		Key:                 d.Key,
		Email:               d.Email,
		Amount:              d.Amount,
		TransactionID:       d.TransactionID,
		ClassIDs:            d.ClassIDs,
		CartItemIDs:         d.CartItemIDs,
		State:               models.EnrollmentState(d.State),
		PaymentID:           d.PaymentID,
		InstructorsCredited: d.InstructorsCredited,
		Result:              d.Result,
		FailureReason:       d.FailureReason,
		LockedUntil:         d.LockedUntil,
		Fence:               d.Fence,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
		ExpiresAt:           d.ExpiresAt,
	}
}

// EnrollmentRepository handles the enrollment idempotency ledger
type EnrollmentRepository struct {
	coll *mongo.Collection
}

// NewEnrollmentRepository creates a new EnrollmentRepository
func NewEnrollmentRepository(db *mongo.Database) *EnrollmentRepository {
	return &EnrollmentRepository{coll: db.Collection(enrollmentsCollection)}
}

// Reserve inserts the record or returns the one already stored under its key
func (r *EnrollmentRepository) Reserve(ctx context.Context, record *models.EnrollmentRecord) (*models.EnrollmentRecord, bool, error) {
	_, err := r.coll.InsertOne(ctx, newEnrollmentDocument(record))
	if err == nil {
		return record, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, dberrors.Upstream("reserve enrollment", err)
	}

	existing, err := r.FindByKey(ctx, record.Key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Acquire moves the lease and bumps the fence only if nobody touched them since they were read
func (r *EnrollmentRepository) Acquire(ctx context.Context, key string, fence int64, expected, lockedUntil time.Time) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": key, "fence": fence, "lockedUntil": expected},
		bson.M{
			"$set": bson.M{"lockedUntil": lockedUntil, "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"fence": 1},
		},
	)
	if err != nil {
		return false, dberrors.Upstream("acquire enrollment", err)
	}
	return res.MatchedCount == 1, nil
}

// Save writes the progress fields while the caller's fence is still current
func (r *EnrollmentRepository) Save(ctx context.Context, record *models.EnrollmentRecord) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": record.Key, "fence": record.Fence}, bson.M{"$set": bson.M{
		"state":               string(record.State),
		"paymentId":           record.PaymentID,
		"instructorsCredited": record.InstructorsCredited,
		"result":              record.Result,
		"failureReason":       record.FailureReason,
		"lockedUntil":         record.LockedUntil,
		"updatedAt":           record.UpdatedAt,
		"expiresAt":           record.ExpiresAt,
	}})
	if err != nil {
		return dberrors.Upstream("save enrollment", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := r.FindByKey(ctx, record.Key); err != nil {
		return err
	}
	return apperrors.NewLeaseLostError()
}

// FindByKey retrieves a record by idempotency key
func (r *EnrollmentRepository) FindByKey(ctx context.Context, key string) (*models.EnrollmentRecord, error) {
	var doc enrollmentDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		return nil, translate("find enrollment", err, apperrors.ErrResourceNotFound)
	}
	return doc.model(), nil
}

// DeleteExpired purges finished records past their expiry
func (r *EnrollmentRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"state":     bson.M{"$in": bson.A{string(models.EnrollmentCompleted), string(models.EnrollmentFailed)}},
		"expiresAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, dberrors.Upstream("purge enrollments", err)
	}
	return res.DeletedCount, nil
}
