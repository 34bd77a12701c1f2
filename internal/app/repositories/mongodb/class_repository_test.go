package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

func TestIndexModelsMakeSeatReservationsUnique(t *testing.T) {
	indexes := indexModels()[seatReservationsCollection]
	require.Len(t, indexes, 1)

	assert.Equal(t, bson.D{{Key: "classId", Value: 1}, {Key: "key", Value: 1}}, indexes[0].Keys)
	require.NotNil(t, indexes[0].Options)
	require.NotNil(t, indexes[0].Options.Unique)
	assert.True(t, *indexes[0].Options.Unique)
}

// testDatabase connects to MONGO_TEST_URI, which must point at a replica set
// since seat reservations run in transactions
func testDatabase(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	db := client.Database("classmarket_test_" + uuid.NewString()[:8])
	require.NoError(t, EnsureIndexes(ctx, db))

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestClassRepositorySeatReservations(t *testing.T) {
	db := testDatabase(t)
	ctx := context.Background()
	repo := NewClassRepository(db)

	class := &models.Class{Name: "Pottery", SpotsAvailable: 1, Status: models.ClassStatusApproved}
	require.NoError(t, repo.Create(ctx, class))

	require.NoError(t, repo.ReserveSeat(ctx, class.ID, "k1", true))
	require.NoError(t, repo.ReserveSeat(ctx, class.ID, "k1", true))
	assert.ErrorIs(t, repo.ReserveSeat(ctx, class.ID, "k2", true), apperrors.ErrSeatsExhausted)

	got, err := repo.FindByID(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SpotsAvailable)
	assert.Equal(t, 1, got.StudentsEnrolled)

	n, err := db.Collection(seatReservationsCollection).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var raw bson.M
	require.NoError(t, db.Collection(classesCollection).FindOne(ctx, bson.M{}).Decode(&raw))
	assert.NotContains(t, raw, "reservationKeys")

	require.NoError(t, repo.ReleaseSeat(ctx, class.ID, "k1"))
	require.NoError(t, repo.ReleaseSeat(ctx, class.ID, "k1"))

	got, err = repo.FindByID(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SpotsAvailable)
	assert.Equal(t, 0, got.StudentsEnrolled)

	n, err = db.Collection(seatReservationsCollection).CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, repo.ReserveSeat(ctx, "000000000000000000000000", "k1", false), apperrors.ErrClassNotFound)
}
