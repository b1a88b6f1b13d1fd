package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-select-api/internal/models"
)

// CourseStore is the read/lock surface the enrollment and catalog
// services need from course persistence.
type CourseStore interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	ListEnrolledByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error)
	LockForUpdate(ctx context.Context, id string) (*models.Course, error)
}

// CourseRepository handles persistence of courses and their time slots.
// It binds to either a database handle or an open transaction.
type CourseRepository struct {
	ext sqlx.ExtContext
}

// NewCourseRepository constructs the repository on a database handle.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{ext: db}
}

func newCourseRepositoryTx(tx *sqlx.Tx) *CourseRepository {
	return &CourseRepository{ext: tx}
}

const courseDetailColumns = `c.id, c.name, c.course_code, c.type, c.capacity, c.credit, c.description, c.semester, c.teacher_id, c.created_at,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count,
        c.capacity - (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS remaining_capacity`

// FindByID returns a course with occupancy counts and its time slots.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c WHERE c.id = $1`, courseDetailColumns)
	var detail models.CourseDetail
	if err := sqlx.GetContext(ctx, r.ext, &detail, query, id); err != nil {
		return nil, err
	}
	details := []models.CourseDetail{detail}
	if err := r.loadTimeSlots(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// List returns catalog courses filtered by the provided criteria.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("c.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("c.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("c.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":        "c.name",
		"course_code": "c.course_code",
		"credit":      "c.credit",
		"created_at":  "c.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM courses c%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		courseDetailColumns, clause, orderBy, order, size, offset)

	var courses []models.CourseDetail
	if err := sqlx.SelectContext(ctx, r.ext, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses c%s", clause)
	var total int
	if err := sqlx.GetContext(ctx, r.ext, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	if err := r.loadTimeSlots(ctx, courses); err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// ListEnrolledByStudent returns every course the student is currently
// enrolled in, with occupancy counts and time slots.
func (r *CourseRepository) ListEnrolledByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c
        JOIN enrollments en ON en.course_id = c.id
        WHERE en.user_id = $1 ORDER BY c.name`, courseDetailColumns)
	var courses []models.CourseDetail
	if err := sqlx.SelectContext(ctx, r.ext, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	if err := r.loadTimeSlots(ctx, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// LockForUpdate reads a course row under FOR UPDATE. It serializes
// concurrent capacity checks per course and is only meaningful inside
// an open transaction.
func (r *CourseRepository) LockForUpdate(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, name, course_code, type, capacity, credit, description, semester, teacher_id, created_at
        FROM courses WHERE id = $1 FOR UPDATE`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.ext, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) loadTimeSlots(ctx context.Context, courses []models.CourseDetail) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	query, args, err := sqlx.In(`SELECT id, course_id, day_of_week, start_min, end_min, location
        FROM course_time_slots WHERE course_id IN (?) ORDER BY day_of_week, start_min`, ids)
	if err != nil {
		return fmt.Errorf("build time slot query: %w", err)
	}
	query = r.ext.Rebind(query)

	var slots []models.CourseTimeSlot
	if err := sqlx.SelectContext(ctx, r.ext, &slots, query, args...); err != nil {
		return fmt.Errorf("load time slots: %w", err)
	}

	byCourse := make(map[string][]models.CourseTimeSlot, len(courses))
	for _, slot := range slots {
		byCourse[slot.CourseID] = append(byCourse[slot.CourseID], slot)
	}
	for i := range courses {
		courses[i].TimeSlots = byCourse[courses[i].ID]
	}
	return nil
}
