package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/repository"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

// Per-student course load bounds. A student with at least one
// enrollment must keep between MinCourseLimit and MaxCourseLimit
// active courses; a brand-new student legitimately has zero.
const (
	MinCourseLimit = 2
	MaxCourseLimit = 8
)

// CatalogInvalidator drops cached catalog payloads whose occupancy
// counts an enrollment mutation just changed.
type CatalogInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// EnrollmentService decides whether enroll and withdraw requests are
// admitted. Every mutation runs its rule pipeline and its write inside
// one transaction; the course row is locked FOR UPDATE first, so the
// capacity check and the insert behave as one unit per course.
type EnrollmentService struct {
	courses     repository.CourseStore
	enrollments repository.EnrollmentStore
	tx          repository.TxManager
	invalidator CatalogInvalidator
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The invalidator
// may be nil when no catalog cache is configured.
func NewEnrollmentService(courses repository.CourseStore, enrollments repository.EnrollmentStore, tx repository.TxManager, invalidator CatalogInvalidator, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{courses: courses, enrollments: enrollments, tx: tx, invalidator: invalidator, logger: logger}
}

// Enroll registers a student to a course. The validation pipeline runs
// in order (course existence, duplicate, capacity, time conflict, load
// limit) and each step short-circuits with its own error. The
// whole pipeline and the insert share one transaction holding the
// course row lock, so two racing enrolls for the last seat cannot both
// win: the loser re-reads the committed count and observes CourseFull.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and course are required")
	}

	var detail *models.EnrollmentDetail
	err := s.tx.WithTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		course, err := stores.Courses.LockForUpdate(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrCourseNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}

		exists, err := stores.Enrollments.ExistsByStudentAndCourse(ctx, studentID, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate enrollment")
		}
		if exists {
			return appErrors.ErrAlreadyEnrolled
		}

		enrolled, err := stores.Enrollments.CountByCourse(ctx, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course enrollments")
		}
		if enrolled >= course.Capacity {
			return appErrors.ErrCourseFull
		}

		candidate, err := stores.Courses.FindByID(ctx, courseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course time slots")
		}
		current, err := stores.Courses.ListEnrolledByStudent(ctx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
		}
		if scheduleConflicts(candidate.TimeSlots, current) {
			return appErrors.ErrTimeConflict
		}

		load, err := stores.Enrollments.CountByStudent(ctx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count student enrollments")
		}
		if load >= MaxCourseLimit {
			return appErrors.ErrMaxCourseLimit
		}

		enrollment := &models.Enrollment{UserID: studentID, CourseID: courseID}
		if err := stores.Enrollments.Create(ctx, enrollment); err != nil {
			if errors.Is(err, repository.ErrDuplicateEnrollment) {
				return appErrors.ErrAlreadyEnrolled
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}

		detail = &models.EnrollmentDetail{
			Enrollment: *enrollment,
			CourseName: course.Name,
			CourseCode: course.Code,
			Credit:     course.Credit,
			Semester:   course.Semester,
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidate(ctx, courseID)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", detail.ID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
	)
	return detail, nil
}

// Withdraw removes a student's enrollment. The lookup is scoped to the
// student, so an enrollment owned by someone else reports the same
// EnrollmentNotFound as a missing one.
func (s *EnrollmentService) Withdraw(ctx context.Context, studentID, enrollmentID string) (*models.WithdrawalSummary, error) {
	if studentID == "" || enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and enrollment are required")
	}

	var summary *models.WithdrawalSummary
	var courseID string
	err := s.tx.WithTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		enrollment, err := stores.Enrollments.FindByIDAndStudent(ctx, enrollmentID, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrEnrollmentNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
		}

		// Serializes the count against concurrent enrolls for the same course.
		if _, err := stores.Courses.LockForUpdate(ctx, enrollment.CourseID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course")
		}

		load, err := stores.Enrollments.CountByStudent(ctx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count student enrollments")
		}
		if load <= MinCourseLimit {
			return appErrors.ErrMinCourseLimit
		}

		if err := stores.Enrollments.Delete(ctx, enrollment.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.ErrEnrollmentNotFound
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
		}

		courseID = enrollment.CourseID
		summary = &models.WithdrawalSummary{
			CourseName:           enrollment.CourseName,
			RemainingEnrollments: load - 1,
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.FromError(err)
	}

	s.invalidate(ctx, courseID)
	s.logger.Info("enrollment withdrawn",
		zap.String("enrollment_id", enrollmentID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
	)
	return summary, nil
}

// HasConflict reports whether enrolling the student into the course
// would overlap any of their current meetings. Pure read, exposed for
// introspection.
func (s *EnrollmentService) HasConflict(ctx context.Context, studentID, courseID string) (bool, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.ErrCourseNotFound
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	enrolled, err := s.courses.ListEnrolledByStudent(ctx, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
	}
	return scheduleConflicts(course.TimeSlots, enrolled), nil
}

// List returns the student's enrollments with course info.
func (s *EnrollmentService) List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Schedule returns the student's enrolled courses with their meetings,
// the source data for timetable rendering and export.
func (s *EnrollmentService) Schedule(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	courses, err := s.courses.ListEnrolledByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	return courses, nil
}

func (s *EnrollmentService) invalidate(ctx context.Context, courseID string) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.InvalidateCourse(ctx, courseID)
}
