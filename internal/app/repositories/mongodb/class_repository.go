package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

type classDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	Name             string             `bson:"name"`
	Image            string             `bson:"image,omitempty"`
	InstructorName   string             `bson:"instructorName"`
	InstructorEmail  string             `bson:"instructorEmail"`
	Price            float64            `bson:"price"`
	SpotsAvailable   int                `bson:"spotsAvailable"`
	StudentsEnrolled int                `bson:"studentsEnrolled"`
	Status           string             `bson:"status"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d *classDocument) model() *models.Class {
	return &models.Class{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		ImageURL:         d.Image,
		InstructorName:   d.InstructorName,
		InstructorEmail:  d.InstructorEmail,
		Price:            d.Price,
		SpotsAvailable:   d.SpotsAvailable,
		StudentsEnrolled: d.StudentsEnrolled,
		Status:           models.ClassStatus(d.Status),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// seatReservation records the seat one enrollment key holds in one class.
// (classId, key) is unique.
type seatReservation struct {
	ClassID   primitive.ObjectID `bson:"classId"`
	Key       string             `bson:"key"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// errSeatHeld aborts a reservation transaction whose key already holds a seat
var errSeatHeld = errors.New("seat already held")

// ClassRepository handles class documents and their seat counters. Seat
// reservations live in their own collection and move together with the counters
// inside one transaction.
type ClassRepository struct {
	coll         *mongo.Collection
	reservations *mongo.Collection
}

// NewClassRepository creates a new ClassRepository
func NewClassRepository(db *mongo.Database) *ClassRepository {
	return &ClassRepository{
		coll:         db.Collection(classesCollection),
		reservations: db.Collection(seatReservationsCollection),
	}
}

func (r *ClassRepository) find(ctx context.Context, filter bson.M) ([]*models.Class, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, dberrors.Upstream("list classes", err)
	}
	return decodeAll(ctx, "classes", cur, (*classDocument).model)
}

// List returns every class
func (r *ClassRepository) List(ctx context.Context) ([]*models.Class, error) {
	return r.find(ctx, bson.M{})
}

// ListByStatus returns classes in one approval state
func (r *ClassRepository) ListByStatus(ctx context.Context, status models.ClassStatus) ([]*models.Class, error) {
	return r.find(ctx, bson.M{"status": string(status)})
}

// FindByID retrieves a class
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrClassNotFound
	}

	var doc classDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate("find class", err, apperrors.ErrClassNotFound)
	}
	return doc.model(), nil
}

// Create inserts a class
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	doc := classDocument{
		ID:               primitive.NewObjectID(),
		Name:             class.Name,
		Image:            class.ImageURL,
		InstructorName:   class.InstructorName,
		InstructorEmail:  class.InstructorEmail,
		Price:            class.Price,
		SpotsAvailable:   class.SpotsAvailable,
		StudentsEnrolled: class.StudentsEnrolled,
		Status:           string(class.Status),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return dberrors.Upstream("create class", err)
	}

	class.ID = doc.ID.Hex()
	class.CreatedAt, class.UpdatedAt = now, now
	return nil
}

func (r *ClassRepository) set(ctx context.Context, op, id string, fields bson.M) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrClassNotFound
	}

	fields["updatedAt"] = time.Now().UTC()
	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": fields})
	if err != nil {
		return dberrors.Upstream(op, err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

// UpdateFields overwrites price and seat counters
func (r *ClassRepository) UpdateFields(ctx context.Context, id string, fields models.ClassFieldsUpdate) error {
	return r.set(ctx, "update class", id, bson.M{
		"price":            fields.Price,
		"spotsAvailable":   fields.SpotsAvailable,
		"studentsEnrolled": fields.StudentsEnrolled,
	})
}

// SetStatus changes the approval state
func (r *ClassRepository) SetStatus(ctx context.Context, id string, status models.ClassStatus) error {
	return r.set(ctx, "set class status", id, bson.M{"status": string(status)})
}

// Delete removes a class
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrClassNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return dberrors.Upstream("delete class", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrClassNotFound
	}

	if _, err := r.reservations.DeleteMany(ctx, bson.M{"classId": oid}); err != nil {
		return dberrors.Upstream("delete class reservations", err)
	}
	return nil
}

// ReserveSeat records the reservation under key and takes one seat in one transaction
func (r *ClassRepository) ReserveSeat(ctx context.Context, classID, key string, strict bool) error {
	oid, ok := objectID(classID)
	if !ok {
		return apperrors.ErrClassNotFound
	}

	err := r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		_, err := r.reservations.InsertOne(sc, seatReservation{ClassID: oid, Key: key, CreatedAt: time.Now().UTC()})
		if mongo.IsDuplicateKeyError(err) {
			return errSeatHeld
		}
		if err != nil {
			return err
		}

		filter := bson.M{"_id": oid}
		if strict {
			filter["spotsAvailable"] = bson.M{"$gt": 0}
		}
		res, err := r.coll.UpdateOne(sc, filter, bson.M{
			"$inc": bson.M{"spotsAvailable": -1, "studentsEnrolled": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		})
		if err != nil {
			return err
		}
		if res.MatchedCount == 1 {
			return nil
		}

		n, err := r.coll.CountDocuments(sc, bson.M{"_id": oid})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.ErrClassNotFound
		}
		return apperrors.ErrSeatsExhausted
	})

	switch {
	case err == nil, errors.Is(err, errSeatHeld):
		return nil
	case errors.Is(err, apperrors.ErrClassNotFound), errors.Is(err, apperrors.ErrSeatsExhausted):
		return err
	default:
		return dberrors.Upstream("reserve seat", err)
	}
}

// ReleaseSeat drops the reservation held under key and gives its seat back
func (r *ClassRepository) ReleaseSeat(ctx context.Context, classID, key string) error {
	oid, ok := objectID(classID)
	if !ok {
		return apperrors.ErrClassNotFound
	}

	err := r.inTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := r.reservations.DeleteOne(sc, bson.M{"classId": oid, "key": key})
		if err != nil {
			return err
		}
		if res.DeletedCount == 0 {
			n, err := r.coll.CountDocuments(sc, bson.M{"_id": oid})
			if err != nil {
				return err
			}
			if n == 0 {
				return apperrors.ErrClassNotFound
			}
			return nil
		}

		upd, err := r.coll.UpdateOne(sc, bson.M{"_id": oid}, bson.M{
			"$inc": bson.M{"spotsAvailable": 1, "studentsEnrolled": -1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		})
		if err != nil {
			return err
		}
		if upd.MatchedCount == 0 {
			return apperrors.ErrClassNotFound
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperrors.ErrClassNotFound):
		return err
	default:
		return dberrors.Upstream("release seat", err)
	}
}

// inTransaction runs fn in a session transaction; the driver retries transient
// transaction errors and unknown commit results.
func (r *ClassRepository) inTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := r.coll.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
