package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
)

func createClass(t *testing.T, repo *ClassRepository, spots, enrolled int) *models.Class {
	t.Helper()
	class := &models.Class{Name: "Pottery", Price: 30, SpotsAvailable: spots, StudentsEnrolled: enrolled}
	require.NoError(t, repo.Create(context.Background(), class))
	return class
}

func TestReserveSeatStrictRejectsWhenFull(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 0, 5)

	err := repo.ReserveSeat(context.Background(), class.ID, "k1", true)
	assert.ErrorIs(t, err, apperrors.ErrSeatsExhausted)

	got, err := repo.FindByID(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SpotsAvailable)
	assert.Equal(t, 5, got.StudentsEnrolled)
}

func TestReserveSeatLenientGoesNegative(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 0, 3)

	require.NoError(t, repo.ReserveSeat(context.Background(), class.ID, "k1", false))

	got, err := repo.FindByID(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, got.SpotsAvailable)
	assert.Equal(t, 4, got.StudentsEnrolled)
}

func TestReserveSeatSameKeyIsNoop(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 3, 0)

	require.NoError(t, repo.ReserveSeat(context.Background(), class.ID, "k1", true))
	require.NoError(t, repo.ReserveSeat(context.Background(), class.ID, "k1", true))

	got, _ := repo.FindByID(context.Background(), class.ID)
	assert.Equal(t, 2, got.SpotsAvailable)
	assert.Equal(t, 1, got.StudentsEnrolled)
}

func TestReleaseSeatOnlyUndoesHeldReservation(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 2, 0)

	require.NoError(t, repo.ReleaseSeat(context.Background(), class.ID, "never-reserved"))
	require.NoError(t, repo.ReserveSeat(context.Background(), class.ID, "k1", true))
	require.NoError(t, repo.ReleaseSeat(context.Background(), class.ID, "k1"))
	require.NoError(t, repo.ReleaseSeat(context.Background(), class.ID, "k1"))

	got, _ := repo.FindByID(context.Background(), class.ID)
	assert.Equal(t, 2, got.SpotsAvailable)
	assert.Equal(t, 0, got.StudentsEnrolled)
}

func TestReserveSeatUnknownClass(t *testing.T) {
	repo := NewClassRepository()
	err := repo.ReserveSeat(context.Background(), "missing", "k1", false)
	assert.ErrorIs(t, err, apperrors.ErrClassNotFound)
}

func TestReserveSeatLastSeatConcurrent(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 1, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.ReserveSeat(context.Background(), class.ID, fmt.Sprintf("buyer-%d", i), true)
		}(i)
	}
	wg.Wait()

	var ok, exhausted int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperrors.ErrSeatsExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, exhausted)

	got, _ := repo.FindByID(context.Background(), class.ID)
	assert.Equal(t, 0, got.SpotsAvailable)
	assert.Equal(t, 1, got.StudentsEnrolled)
}

func TestSeatCountsConservedUnderStrictPolicy(t *testing.T) {
	repo := NewClassRepository()
	class := createClass(t, repo, 10, 4)
	capacity := class.SpotsAvailable + class.StudentsEnrolled

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k-%d", i%15)
			_ = repo.ReserveSeat(context.Background(), class.ID, key, true)
			if i%3 == 0 {
				_ = repo.ReleaseSeat(context.Background(), class.ID, key)
			}
		}(i)
	}
	wg.Wait()

	got, err := repo.FindByID(context.Background(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, capacity, got.SpotsAvailable+got.StudentsEnrolled)
	assert.GreaterOrEqual(t, got.SpotsAvailable, 0)
	assert.GreaterOrEqual(t, got.StudentsEnrolled, 4)
}
