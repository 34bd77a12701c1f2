// Package mongodb implements the repositories on MongoDB.
package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

// Collection names
const (
	usersCollection            = "users"
	classesCollection          = "classes"
	cartsCollection            = "carts"
	paymentsCollection         = "payments"
	enrollmentsCollection      = "enrollments"
	seatReservationsCollection = "seatReservations"
	instructorsCollection      = "instructors"
	reviewsCollection          = "reviews"
)

// NewRepositories initializes all MongoDB repositories on one database
func NewRepositories(db *mongo.Database) *repositories.Repositories {
	return &repositories.Repositories{
		UserRepository:       NewUserRepository(db),
		ClassRepository:      NewClassRepository(db),
		CartRepository:       NewCartRepository(db),
		PaymentRepository:    NewPaymentRepository(db),
		EnrollmentRepository: NewEnrollmentRepository(db),
		InstructorRepository: NewInstructorRepository(db),
		ReviewRepository:     NewReviewRepository(db),
	}
}

// indexModels lists the unique and lookup indexes per collection
func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		classesCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		cartsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		paymentsCollection: {
			{Keys: bson.D{{Key: "idempotencyKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		enrollmentsCollection: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}},
		},
		seatReservationsCollection: {
			{Keys: bson.D{{Key: "classId", Value: 1}, {Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for name, models := range indexModels() {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return dberrors.Upstream("create indexes on "+name, err)
		}
	}
	return nil
}

// objectID parses a hex id; malformed ids can never match a document
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := objectID(id); ok {
			out = append(out, oid)
		}
	}
	return out
}

// translate maps mongo.ErrNoDocuments to notFound and wraps anything else as an upstream failure
func translate(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return dberrors.Upstream(op, err)
}

func decodeAll[D any, M any](ctx context.Context, op string, cur *mongo.Cursor, toModel func(*D) *M) ([]*M, error) {
	defer cur.Close(ctx)

	out := []*M{}
	for cur.Next(ctx) {
		var doc D
		if err := cur.Decode(&doc); err != nil {
			return nil, dberrors.Upstream("decode "+op, err)
		}
		out = append(out, toModel(&doc))
	}
	if err := cur.Err(); err != nil {
		return nil, dberrors.Upstream("iterate "+op, err)
	}
	return out, nil
}
