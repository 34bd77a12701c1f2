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

type cartDocument struct {
	ID              primitive.ObjectID `bson:"_id"`
	ClassID         string             `bson:"classId"`
	Email           string             `bson:"email"`
	Name            string             `bson:"name"`
	Image           string             `bson:"image,omitempty"`
	Price           float64            `bson:"price"`
	InstructorEmail string             `bson:"instructorEmail,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

func (d *cartDocument) model() *models.CartItem {
	return &models.CartItem{
		ID:              d.ID.Hex(),
		ClassID:         d.ClassID,
		Email:           d.Email,
		Name:            d.Name,
		ImageURL:        d.Image,
		Price:           d.Price,
		InstructorEmail: d.InstructorEmail,
		CreatedAt:       d.CreatedAt,
	}
}

// CartRepository handles cart documents
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository creates a new CartRepository
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(cartsCollection)}
}

// ListByOwner returns the owner's items, oldest first
func (r *CartRepository) ListByOwner(ctx context.Context, email string) ([]*models.CartItem, error) {
	cur, err := r.coll.Find(ctx, bson.M{"email": email}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, dberrors.Upstream("list cart", err)
	}
	return decodeAll(ctx, "cart", cur, (*cartDocument).model)
}

// FindByID retrieves a cart item
func (r *CartRepository) FindByID(ctx context.Context, id string) (*models.CartItem, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, apperrors.ErrCartItemNotFound
	}

	var doc cartDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translate("find cart item", err, apperrors.ErrCartItemNotFound)
	}
	return doc.model(), nil
}

// Create inserts a cart item
func (r *CartRepository) Create(ctx context.Context, item *models.CartItem) error {
	doc := cartDocument{
		ID:              primitive.NewObjectID(),
		ClassID:         item.ClassID,
		Email:           item.Email,
		Name:            item.Name,
		Image:           item.ImageURL,
		Price:           item.Price,
		InstructorEmail: item.InstructorEmail,
		CreatedAt:       time.Now().UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return dberrors.Upstream("create cart item", err)
	}

	item.ID = doc.ID.Hex()
	item.CreatedAt = doc.CreatedAt
	return nil
}

// Delete removes one cart item
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return apperrors.ErrCartItemNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return dberrors.Upstream("delete cart item", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrCartItemNotFound
	}
	return nil
}

// DeleteMany removes the owner's items among ids
func (r *CartRepository) DeleteMany(ctx context.Context, email string, ids []string) (int64, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}

	res, err := r.coll.DeleteMany(ctx, bson.M{"email": email, "_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, dberrors.Upstream("delete cart items", err)
	}
	return res.DeletedCount, nil
}
