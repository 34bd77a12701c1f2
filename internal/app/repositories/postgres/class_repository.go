package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yigit/classmarket/internal/app/models"
	"github.com/yigit/classmarket/internal/db"
	"github.com/yigit/classmarket/internal/pkg/apperrors"
	"github.com/yigit/classmarket/internal/pkg/dberrors"
)

var classColumns = []string{
	"id", "name", "image_url", "instructor_name", "instructor_email", "price",
	"spots_available", "students_enrolled", "status", "created_at", "updated_at",
}

// ClassRepository handles class and seat reservation database operations
type ClassRepository struct {
	db *pgxpool.Pool
}

// NewClassRepository creates a new ClassRepository
func NewClassRepository(db *pgxpool.Pool) *ClassRepository {
	return &ClassRepository{db: db}
}

func scanClass(row pgx.Row) (*models.Class, error) {
	c := &models.Class{}
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.ImageURL, &c.InstructorName, &c.InstructorEmail, &c.Price,
		&c.SpotsAvailable, &c.StudentsEnrolled, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.ClassStatus(status)
	return c, nil
}

func (r *ClassRepository) query(ctx context.Context, b squirrel.SelectBuilder) ([]*models.Class, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build class query", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, dberrors.Upstream("list classes", err)
	}
	defer rows.Close()

	classes := []*models.Class{}
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, dberrors.Upstream("scan class", err)
		}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, dberrors.Upstream("iterate classes", err)
	}
	return classes, nil
}

// List returns every class regardless of status
func (r *ClassRepository) List(ctx context.Context) ([]*models.Class, error) {
	return r.query(ctx, psql.Select(classColumns...).From("classes").OrderBy("created_at ASC"))
}

// ListByStatus returns classes in the given approval state
func (r *ClassRepository) ListByStatus(ctx context.Context, status models.ClassStatus) ([]*models.Class, error) {
	return r.query(ctx, psql.Select(classColumns...).
		From("classes").
		Where(squirrel.Eq{"status": string(status)}).
		OrderBy("created_at ASC"))
}

// FindByID retrieves a class by ID
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	sql, args, err := psql.Select(classColumns...).From("classes").Where(squirrel.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, dberrors.Upstream("build find class query", err)
	}

	c, err := scanClass(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, translate("find class", err, apperrors.ErrClassNotFound)
	}
	return c, nil
}

// Create inserts a class
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	class.ID = newID()
	class.CreatedAt, class.UpdatedAt = now, now

	sql, args, err := psql.Insert("classes").
		Columns(classColumns...).
		Values(class.ID, class.Name, class.ImageURL, class.InstructorName, class.InstructorEmail, class.Price,
			class.SpotsAvailable, class.StudentsEnrolled, string(class.Status), class.CreatedAt, class.UpdatedAt).
		ToSql()
	if err != nil {
		return dberrors.Upstream("build create class query", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return dberrors.Upstream("create class", err)
	}
	return nil
}

func (r *ClassRepository) update(ctx context.Context, id string, set map[string]interface{}) error {
	set["updated_at"] = time.Now().UTC()
	sql, args, err := psql.Update("classes").SetMap(set).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return dberrors.Upstream("build update class query", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberrors.Upstream("update class", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

// UpdateFields overwrites price and both seat counters
func (r *ClassRepository) UpdateFields(ctx context.Context, id string, fields models.ClassFieldsUpdate) error {
	return r.update(ctx, id, map[string]interface{}{
		"price":             fields.Price,
		"spots_available":   fields.SpotsAvailable,
		"students_enrolled": fields.StudentsEnrolled,
	})
}

// SetStatus changes the approval state
func (r *ClassRepository) SetStatus(ctx context.Context, id string, status models.ClassStatus) error {
	return r.update(ctx, id, map[string]interface{}{"status": string(status)})
}

// Delete removes a class and, through the foreign key, its reservations
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	sql, args, err := psql.Delete("classes").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return dberrors.Upstream("build delete class query", err)
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return dberrors.Upstream("delete class", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrClassNotFound
	}
	return nil
}

// ReserveSeat records the reservation key and moves one seat in the same transaction.
// The conditional UPDATE takes the row lock, so concurrent reservations for the last
// seat serialize on it and only one of them sees spots_available > 0.
func (r *ClassRepository) ReserveSeat(ctx context.Context, classID, key string, strict bool) error {
	err := db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO seat_reservations (class_id, reservation_key)
			SELECT id, $2 FROM classes WHERE id = $1
			ON CONFLICT (class_id, reservation_key) DO NOTHING`, classID, key)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM classes WHERE id = $1)`, classID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return apperrors.ErrClassNotFound
			}
			// already reserved under this key
			return nil
		}

		tag, err = tx.Exec(ctx, `
			UPDATE classes
			SET spots_available = spots_available - 1,
			    students_enrolled = students_enrolled + 1,
			    updated_at = NOW()
			WHERE id = $1 AND (NOT $2 OR spots_available > 0)`, classID, strict)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrSeatsExhausted
		}
		return nil
	})
	return classError("reserve seat", err)
}

// ReleaseSeat deletes the reservation row and returns its seat
func (r *ClassRepository) ReleaseSeat(ctx context.Context, classID, key string) error {
	err := db.WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM seat_reservations WHERE class_id = $1 AND reservation_key = $2`, classID, key)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE classes
			SET spots_available = spots_available + 1,
			    students_enrolled = students_enrolled - 1,
			    updated_at = NOW()
			WHERE id = $1`, classID)
		return err
	})
	return classError("release seat", err)
}

func classError(op string, err error) error {
	if err == nil || apperrors.Is(err, apperrors.ErrClassNotFound, apperrors.ErrSeatsExhausted) {
		return err
	}
	return dberrors.Upstream(op, err)
}
