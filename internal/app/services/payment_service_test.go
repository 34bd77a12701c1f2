package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/repositories/memory"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/metrics"
)

func TestMinorUnitsRounds(t *testing.T) {
	tests := []struct {
		price float64
		want  int64
	}{
		{49.99, 4999},
		{19.999, 2000},
		{0.1 + 0.2, 30},
		{10, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MinorUnits(tt.price), "price %v", tt.price)
	}
}

func TestCreateIntentSizesAmountAndForwardsKey(t *testing.T) {
	authority := &fakeAuthority{}
	svc := NewPaymentService(memory.NewPaymentRepository(), authority, "eur", metrics.New("test"), zerolog.Nop())

	resp, err := svc.CreateIntent(context.Background(), &dto.PaymentIntentRequest{Price: 49.99}, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4999), resp.Amount)
	assert.Equal(t, "eur", resp.Currency)
	assert.Equal(t, "pi_test_secret", resp.ClientSecret)

	require.Len(t, authority.requests, 1)
	assert.Equal(t, "intent-1", authority.requests[0].IdempotencyKey)
	assert.Equal(t, int64(4999), authority.requests[0].Amount)
}

func TestCreateIntentGeneratesKeyWhenMissing(t *testing.T) {
	authority := &fakeAuthority{}
	svc := NewPaymentService(memory.NewPaymentRepository(), authority, "", nil, zerolog.Nop())

	_, err := svc.CreateIntent(context.Background(), &dto.PaymentIntentRequest{Price: 5}, "")
	require.NoError(t, err)
	require.Len(t, authority.requests, 1)
	assert.NotEmpty(t, authority.requests[0].IdempotencyKey)
	assert.Equal(t, "usd", authority.requests[0].Currency)
}

func TestCreateIntentRejectsSubCentPrice(t *testing.T) {
	svc := NewPaymentService(memory.NewPaymentRepository(), &fakeAuthority{}, "usd", nil, zerolog.Nop())

	_, err := svc.CreateIntent(context.Background(), &dto.PaymentIntentRequest{Price: 0.001}, "")
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestCreateIntentPropagatesAuthorityFailure(t *testing.T) {
	authority := &fakeAuthority{err: apperrors.NewUpstreamError("charge authority unavailable", assert.AnError)}
	svc := NewPaymentService(memory.NewPaymentRepository(), authority, "usd", nil, zerolog.Nop())

	_, err := svc.CreateIntent(context.Background(), &dto.PaymentIntentRequest{Price: 5}, "")
	assert.ErrorIs(t, err, apperrors.ErrUpstreamFailure)
}

func TestListForPayerIsOwnerOnly(t *testing.T) {
	repo := memory.NewPaymentRepository()
	require.NoError(t, repo.Create(context.Background(), &models.Payment{Email: studentEmail, Amount: 10, IdempotencyKey: "k1"}))
	svc := NewPaymentService(repo, &fakeAuthority{}, "usd", nil, zerolog.Nop())

	payments, err := svc.ListForPayer(context.Background(), studentEmail, studentEmail)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	_, err = svc.ListForPayer(context.Background(), otherEmail, studentEmail)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
}
