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

const userColumns = "id, name, email, photo_url, role, students_enrolled, created_at, updated_at"

// UserRepository handles user database operations
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhotoURL, &role, &u.StudentsEnrolled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.RoleType(role)
	return u, nil
}

// List returns users in creation order
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, dberrors.Upstream("list users", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, dberrors.Upstream("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Upstream("iterate users", err)
	}
	return users, nil
}

// FindByEmail retrieves a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, translate("find user", err, apperrors.ErrUserNotFound)
	}
	return u, nil
}

// Create inserts a user; the unique email constraint decides races between two sign-ins
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = newID()
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, photo_url, role, students_enrolled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Name, user.Email, user.PhotoURL, string(user.Role), user.StudentsEnrolled, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "users_email_key") {
			return apperrors.ErrEmailAlreadyExists
		}
		return dberrors.Upstream("create user", err)
	}
	return nil
}

// SetRole overwrites the user's role
func (r *UserRepository) SetRole(ctx context.Context, id string, role models.RoleType) error {
	sql, args, err := psql.Update("users").
		Set("role", string(role)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return dberrors.Upstream("build set role query", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberrors.Upstream("set role", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// AddStudentsEnrolled increments the counter in place
func (r *UserRepository) AddStudentsEnrolled(ctx context.Context, email string, delta int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET students_enrolled = students_enrolled + $1, updated_at = NOW()
		WHERE email = $2`, delta, email)
	if err != nil {
		return dberrors.Upstream("update students enrolled", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}
