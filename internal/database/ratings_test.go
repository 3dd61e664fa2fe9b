package database

import (
	"context"
	"testing"

	"gymbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRating(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	rating := &models.Rating{
		UserID:    1,
		BookingID: 5,
		Score:     4,
		Comment:   "Отличное занятие",
	}
	require.NoError(t, db.CreateRating(ctx, rating))
	assert.NotZero(t, rating.ID)

	got, err := db.GetRatingByBooking(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Score)
	assert.Equal(t, "Отличное занятие", got.Comment)
}

func TestCreateRating_DuplicateBooking(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.CreateRating(ctx, &models.Rating{UserID: 1, BookingID: 5, Score: 5}))

	err := db.CreateRating(ctx, &models.Rating{UserID: 1, BookingID: 5, Score: 3})
	assert.ErrorIs(t, err, ErrRatingExists)
}

func TestGetRatingByBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetRatingByBooking(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRatingNotFound)
}
