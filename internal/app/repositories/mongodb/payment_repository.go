package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

type paymentDocument struct {
	ID             primitive.ObjectID `bson:"_id"`
	Email          string             `bson:"email"`
	Price          float64            `bson:"price"`
	TransactionID  string             `bson:"transactionId"`
	ClassIDs       []string           `bson:"classesId"`
	CartItemIDs    []string           `bson:"cartItemsId"`
	ClassNames     []string           `bson:"classesName,omitempty"`
	IdempotencyKey string             `bson:"idempotencyKey"`
	Date           time.Time          `bson:"date"`
}

func (d *paymentDocument) model() *models.Payment {
	return &models.Payment{
		ID:             d.ID.Hex(),
		Email:          d.Email,
		Amount:         d.Price,
		TransactionID:  d.TransactionID,
		ClassIDs:       d.ClassIDs,
		CartItemIDs:    d.CartItemIDs,
		ClassNames:     d.ClassNames,
		IdempotencyKey: d.IdempotencyKey,
		CreatedAt:      d.Date,
	}
}

// PaymentRepository handles payment documents
type PaymentRepository struct {
	coll *mongo.Collection
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *mongo.Database) *PaymentRepository {
	return &PaymentRepository{coll: db.Collection(paymentsCollection)}
}

// Create inserts a payment; the unique index on idempotencyKey rejects a second one
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	doc := paymentDocument{
		ID:             primitive.NewObjectID(),
		Email:          payment.Email,
		Price:          payment.Amount,
		TransactionID:  payment.TransactionID,
		ClassIDs:       payment.ClassIDs,
		CartItemIDs:    payment.CartItemIDs,
		ClassNames:     payment.ClassNames,
		IdempotencyKey: payment.IdempotencyKey,
		Date:           payment.CreatedAt,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrResourceAlreadyExists
		}
		return dberrors.Upstream("create payment", err)
	}

	payment.ID = doc.ID.Hex()
	return nil
}

// FindByIdempotencyKey retrieves the payment written under key
func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	var doc paymentDocument
	if err := r.coll.FindOne(ctx, bson.M{"idempotencyKey": key}).Decode(&doc); err != nil {
		return nil, translate("find payment", err, apperrors.ErrResourceNotFound)
	}
	return doc.model(), nil
}

// ListByPayer returns the payer's payments, newest first
func (r *PaymentRepository) ListByPayer(ctx context.Context, email string) ([]*models.Payment, error) {
	return r.find(ctx, bson.M{"email": email})
}

// List returns all payments, newest first
func (r *PaymentRepository) List(ctx context.Context) ([]*models.Payment, error) {
	return r.find(ctx, bson.M{})
}

func (r *PaymentRepository) find(ctx context.Context, filter bson.M) ([]*models.Payment, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, dberrors.Upstream("list payments", err)
	}
	return decodeAll(ctx, "payments", cur, (*paymentDocument).model)
}

// Delete removes a payment written by a failed enrollment
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrResourceNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return dberrors.Upstream("delete payment", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrResourceNotFound
	}
	return nil
}
