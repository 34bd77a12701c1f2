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

var cartColumns = []string{"id", "class_id", "email", "name", "image_url", "price", "instructor_email", "created_at"}

// CartRepository handles cart database operations
type CartRepository struct {
	db *pgxpool.Pool
}

// NewCartRepository creates a new CartRepository
func NewCartRepository(db *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: db}
}

func scanCartItem(row pgx.Row) (*models.CartItem, error) {
	item := &models.CartItem{}
	err := row.Scan(&item.ID, &item.ClassID, &item.Email, &item.Name, &item.ImageURL, &item.Price,
		&item.InstructorEmail, &item.CreatedAt)
	return item, err
}

// ListByOwner returns the owner's items, oldest first
func (r *CartRepository) ListByOwner(ctx context.Context, email string) ([]*models.CartItem, error) {
	sql, args, err := psql.Select(cartColumns...).
		From("carts").
		Where(squirrel.Eq{"email": email}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build list cart query", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, dberrors.Upstream("list cart", err)
	}
	defer rows.Close()

	items := []*models.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, dberrors.Upstream("scan cart item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Upstream("iterate cart", err)
	}
	return items, nil
}

// FindByID retrieves a cart item
func (r *CartRepository) FindByID(ctx context.Context, id string) (*models.CartItem, error) {
	sql, args, err := psql.Select(cartColumns...).From("carts").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build find cart item query", err)
	}

	item, err := scanCartItem(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, translate("find cart item", err, apperrors.ErrCartItemNotFound)
	}
	return item, nil
}

// Create inserts a cart item
func (r *CartRepository) Create(ctx context.Context, item *models.CartItem) error {
	item.ID = newID()
	item.CreatedAt = time.Now().UTC()

	sql, args, err := psql.Insert("carts").
		Columns(cartColumns...).
		Values(item.ID, item.ClassID, item.Email, item.Name, item.ImageURL, item.Price, item.InstructorEmail, item.CreatedAt).
		ToSql()
	if err != nil {
		return dberrors.Upstream("build create cart item query", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return dberrors.Upstream("create cart item", err)
	}
	return nil
}

// Delete removes one cart item
func (r *CartRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return dberrors.Upstream("delete cart item", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCartItemNotFound
	}
	return nil
}

// DeleteMany removes the owner's items among ids in one statement
func (r *CartRepository) DeleteMany(ctx context.Context, email string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM carts WHERE email = $1 AND id = ANY($2)`, email, ids)
	if err != nil {
		return 0, dberrors.Upstream("delete cart items", err)
	}
	return tag.RowsAffected(), nil
}
