package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-select-api/internal/models"
)

// ErrDuplicateEnrollment reports a unique-index violation on
// (user_id, course_id). The index backstops the duplicate check when
// two enrolls for the same pair race.
var ErrDuplicateEnrollment = errors.New("enrollment already exists")

const uniqueViolation = "23505"

// EnrollmentStore is the persistence surface the enrollment service
// composes into its transactions.
type EnrollmentStore interface {
	CountByCourse(ctx context.Context, courseID string) (int, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
	ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error)
	FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

// EnrollmentRepository handles persistence of enrollments. It binds to
// either a database handle or an open transaction.
type EnrollmentRepository struct {
	ext sqlx.ExtContext
}

// NewEnrollmentRepository constructs the repository on a database handle.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{ext: db}
}

func newEnrollmentRepositoryTx(tx *sqlx.Tx) *EnrollmentRepository {
	return &EnrollmentRepository{ext: tx}
}

// CountByCourse returns the number of enrollments referencing a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}

// CountByStudent returns the number of a student's active enrollments.
func (r *EnrollmentRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE user_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.ext, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count student enrollments: %w", err)
	}
	return count, nil
}

// ExistsByStudentAndCourse checks whether the (student, course) pair is
// already enrolled.
func (r *EnrollmentRepository) ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, r.ext, &exists, query, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// FindByIDAndStudent returns an enrollment only when it belongs to the
// given student. A row owned by someone else surfaces as sql.ErrNoRows,
// indistinguishable from a missing row.
func (r *EnrollmentRepository) FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.EnrollmentDetail, error) {
	const query = `SELECT en.id, en.user_id, en.course_id, en.enrolled_at,
        c.name AS course_name, c.course_code, c.credit, c.semester
        FROM enrollments en
        JOIN courses c ON c.id = en.course_id
        WHERE en.id = $1 AND en.user_id = $2`
	var detail models.EnrollmentDetail
	if err := sqlx.GetContext(ctx, r.ext, &detail, query, id, studentID); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns the student's enrollments with course info.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT en.id, en.user_id, en.course_id, en.enrolled_at,
        c.name AS course_name, c.course_code, c.credit, c.semester
        FROM enrollments en
        JOIN courses c ON c.id = en.course_id
        WHERE en.user_id = $1 ORDER BY en.enrolled_at DESC`
	var enrollments []models.EnrollmentDetail
	if err := sqlx.SelectContext(ctx, r.ext, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, user_id, course_id, enrolled_at)
        VALUES (:id, :user_id, :course_id, :enrolled_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.ext, query, enrollment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment row. Deleting a missing row reports
// sql.ErrNoRows.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM enrollments WHERE id = $1`
	result, err := r.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
