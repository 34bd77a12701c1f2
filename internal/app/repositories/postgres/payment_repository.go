package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

var paymentColumns = []string{
	"id", "email", "amount", "transaction_id", "class_ids", "cart_item_ids", "class_names", "idempotency_key", "created_at",
}

// PaymentRepository handles payment database operations
type PaymentRepository struct {
	db *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(&p.ID, &p.Email, &p.Amount, &p.TransactionID, &p.ClassIDs, &p.CartItemIDs, &p.ClassNames,
		&p.IdempotencyKey, &p.CreatedAt)
	return p, err
}

// Create inserts a payment; the idempotency key is unique
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = newID()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	sql, args, err := psql.Insert("payments").
		Columns(paymentColumns...).
		Values(payment.ID, payment.Email, payment.Amount, payment.TransactionID, nonNil(payment.ClassIDs),
			nonNil(payment.CartItemIDs), nonNil(payment.ClassNames), payment.IdempotencyKey, payment.CreatedAt).
		ToSql()
	if err != nil {
		return dberrors.Upstream("build create payment query", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsDuplicateConstraintError(err, "payments_idempotency_key_key") {
			return apperrors.ErrResourceAlreadyExists
		}
		return dberrors.Upstream("create payment", err)
	}
	return nil
}

// FindByIdempotencyKey retrieves the payment written under key
func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, key string) (*models.Payment, error) {
	sql, args, err := psql.Select(paymentColumns...).From("payments").Where(squirrel.Eq{"idempotency_key": key}).ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build find payment query", err)
	}

	p, err := scanPayment(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, translate("find payment", err, apperrors.ErrResourceNotFound)
	}
	return p, nil
}

// ListByPayer returns the payer's payments, newest first
func (r *PaymentRepository) ListByPayer(ctx context.Context, email string) ([]*models.Payment, error) {
	return r.list(ctx, psql.Select(paymentColumns...).From("payments").
		Where(squirrel.Eq{"email": email}).
		OrderBy("created_at DESC"))
}

// List returns all payments, newest first
func (r *PaymentRepository) List(ctx context.Context) ([]*models.Payment, error) {
	return r.list(ctx, psql.Select(paymentColumns...).From("payments").OrderBy("created_at DESC"))
}

func (r *PaymentRepository) list(ctx context.Context, b squirrel.SelectBuilder) ([]*models.Payment, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build list payments query", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, dberrors.Upstream("list payments", err)
	}
	defer rows.Close()

	payments := []*models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, dberrors.Upstream("scan payment", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Upstream("iterate payments", err)
	}
	return payments, nil
}

// Delete removes a payment written by a failed enrollment
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return dberrors.Upstream("delete payment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrResourceNotFound
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
