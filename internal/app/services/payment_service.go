package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/app/models/dto"
	"github.com/yigit/classmarket/internal/app/repositories"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/charge"
	"github.com/yigit/classmarket/internal/pkg/metrics"
)

// PaymentService requests payment handles and reads payment history
type PaymentService interface {
	CreateIntent(ctx context.Context, req *dto.PaymentIntentRequest, idempotencyKey string) (*dto.PaymentIntentResponse, error)
	ListForPayer(ctx context.Context, callerEmail, email string) ([]*models.Payment, error)
	ListAll(ctx context.Context) ([]*models.Payment, error)
}

type paymentServiceImpl struct {
	paymentRepo repositories.PaymentRepository
	authority   charge.Authority
	currency    string
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	paymentRepo repositories.PaymentRepository,
	authority charge.Authority,
	currency string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) PaymentService {
	if currency == "" {
		currency = "usd"
	}
	return &paymentServiceImpl{
		paymentRepo: paymentRepo,
		authority:   authority,
		currency:    currency,
		metrics:     m,
		logger:      logger,
	}
}

// MinorUnits converts a price in major currency units to minor units
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CreateIntent asks the charge authority for a handle sized to price
func (s *paymentServiceImpl) CreateIntent(ctx context.Context, req *dto.PaymentIntentRequest, idempotencyKey string) (*dto.PaymentIntentResponse, error) {
	amount := MinorUnits(req.Price)
	if amount <= 0 {
		return nil, apperrors.NewBadRequestError("price must be at least one minor currency unit")
	}
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	intent, err := s.authority.CreateIntent(ctx, charge.IntentRequest{
		Amount:         amount,
		Currency:       s.currency,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		s.metrics.IncChargeRequest("create_intent", metrics.OutcomeError)
		s.logger.Error().Err(err).Int64("amount", amount).Msg("Payment intent failed")
		return nil, fmt.Errorf("error creating payment intent: %w", err)
	}
	s.metrics.IncChargeRequest("create_intent", metrics.OutcomeSuccess)

	return &dto.PaymentIntentResponse{
		ClientSecret: intent.ClientSecret,
		IntentID:     intent.ID,
		Amount:       amount,
		Currency:     s.currency,
	}, nil
}

// ListForPayer returns the payment history of email; only the payer may read it
func (s *paymentServiceImpl) ListForPayer(ctx context.Context, callerEmail, email string) ([]*models.Payment, error) {
	email = normalizeEmail(email)
	if email != normalizeEmail(callerEmail) {
		return nil, apperrors.NewForbiddenError("forbidden access")
	}

	payments, err := s.paymentRepo.ListByPayer(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	return payments, nil
}

// ListAll returns every payment
func (s *paymentServiceImpl) ListAll(ctx context.Context) ([]*models.Payment, error) {
	payments, err := s.paymentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	return payments, nil
}
