package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

type instructorDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	Image        string             `bson:"image,omitempty"`
	ClassesTaken int                `bson:"classesTaken"`
	Classes      []string           `bson:"classes,omitempty"`
}

func (d *instructorDocument) model() *models.Instructor {
	return &models.Instructor{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		ImageURL:     d.Image,
		ClassesTaken: d.ClassesTaken,
		Classes:      d.Classes,
	}
}

// InstructorRepository reads instructor profiles
type InstructorRepository struct {
	coll *mongo.Collection
}

// NewInstructorRepository creates a new InstructorRepository
func NewInstructorRepository(db *mongo.Database) *InstructorRepository {
	return &InstructorRepository{coll: db.Collection(instructorsCollection)}
}

// List returns all instructors, most booked first
func (r *InstructorRepository) List(ctx context.Context) ([]*models.Instructor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "classesTaken", Value: -1}, {Key: "name", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, dberrors.Upstream("list instructors", err)
	}
	return decodeAll(ctx, "instructors", cur, (*instructorDocument).model)
}

type reviewDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email,omitempty"`
	Rating    float64            `bson:"rating"`
	Comment   string             `bson:"comment"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *reviewDocument) model() *models.Review {
	return &models.Review{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Rating:    d.Rating,
		Comment:   d.Comment,
		CreatedAt: d.CreatedAt,
	}
}

// ReviewRepository reads reviews
type ReviewRepository struct {
	coll *mongo.Collection
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{coll: db.Collection(reviewsCollection)}
}

// List returns all reviews, newest first
func (r *ReviewRepository) List(ctx context.Context) ([]*models.Review, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, dberrors.Upstream("list reviews", err)
	}
	return decodeAll(ctx, "reviews", cur, (*reviewDocument).model)
}
