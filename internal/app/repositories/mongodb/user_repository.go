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

type userDocument struct {
	ID               primitive.ObjectID `bson:"_id"`
	Name             string             `bson:"name"`
	Email            string             `bson:"email"`
	Photo            string             `bson:"photo,omitempty"`
	Role             string             `bson:"role,omitempty"`
	StudentsEnrolled int                `bson:"studentsEnrolled"`
	CreatedAt        time.Time          `bson:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt"`
}

func (d *userDocument) model() *models.User {
	return &models.User{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Email:            d.Email,
		PhotoURL:         d.Photo,
		Role:             models.RoleType(d.Role),
		StudentsEnrolled: d.StudentsEnrolled,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

// UserRepository handles user documents
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// List returns all users ordered by name
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, dberrors.Upstream("list users", err)
	}
	return decodeAll(ctx, "users", cur, (*userDocument).model)
}

// FindByEmail retrieves a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, translate("find user", err, apperrors.ErrUserNotFound)
	}
	return doc.model(), nil
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Name:      user.Name,
		Email:     user.Email,
		Photo:     user.PhotoURL,
		Role:      string(user.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrEmailAlreadyExists
		}
		return dberrors.Upstream("create user", err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

// SetRole changes the role of a user
func (r *UserRepository) SetRole(ctx context.Context, id string, role models.RoleType) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrUserNotFound
	}

	res, err := r.coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"role": string(role), "updatedAt": time.Now().UTC()}})
	if err != nil {
		return dberrors.Upstream("set user role", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// AddStudentsEnrolled atomically adds delta to the user's enrollment counter
func (r *UserRepository) AddStudentsEnrolled(ctx context.Context, email string, delta int) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{
		"$inc": bson.M{"studentsEnrolled": delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return dberrors.Upstream("add students enrolled", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
