package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	"github.com/noah-isme/course-select-api/internal/repository"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

// memStore is shared in-memory state for the fake stores. The fake tx
// manager holds mu for the duration of each transaction, which models
// the course row lock: transactions never interleave.
type memStore struct {
	mu          sync.Mutex
	courses     map[string]models.CourseDetail
	enrollments map[string]models.EnrollmentDetail
	seq         int
	createErr   error
}

func newMemStore() *memStore {
	return &memStore{
		courses:     make(map[string]models.CourseDetail),
		enrollments: make(map[string]models.EnrollmentDetail),
	}
}

func (st *memStore) addCourse(id, name string, capacity int, slots ...models.CourseTimeSlot) {
	st.courses[id] = models.CourseDetail{
		Course:    models.Course{ID: id, Name: name, Code: "C-" + id, Capacity: capacity, Credit: 3, Semester: "2026-FALL"},
		TimeSlots: slots,
	}
}

func (st *memStore) addEnrollment(studentID, courseID string) string {
	st.seq++
	id := fmt.Sprintf("en-%d", st.seq)
	course := st.courses[courseID]
	st.enrollments[id] = models.EnrollmentDetail{
		Enrollment: models.Enrollment{ID: id, UserID: studentID, CourseID: courseID},
		CourseName: course.Name,
		CourseCode: course.Code,
		Credit:     course.Credit,
		Semester:   course.Semester,
	}
	return id
}

type fakeCourseStore struct{ st *memStore }

func (f *fakeCourseStore) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	c, ok := f.st.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (f *fakeCourseStore) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var out []models.CourseDetail
	for _, c := range f.st.courses {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (f *fakeCourseStore) ListEnrolledByStudent(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	var out []models.CourseDetail
	for _, e := range f.st.enrollments {
		if e.UserID == studentID {
			out = append(out, f.st.courses[e.CourseID])
		}
	}
	return out, nil
}

func (f *fakeCourseStore) LockForUpdate(ctx context.Context, id string) (*models.Course, error) {
	c, ok := f.st.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	course := c.Course
	return &course, nil
}

type fakeEnrollmentStore struct{ st *memStore }

func (f *fakeEnrollmentStore) CountByCourse(ctx context.Context, courseID string) (int, error) {
	n := 0
	for _, e := range f.st.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (f *fakeEnrollmentStore) CountByStudent(ctx context.Context, studentID string) (int, error) {
	n := 0
	for _, e := range f.st.enrollments {
		if e.UserID == studentID {
			n++
		}
	}
	return n, nil
}

func (f *fakeEnrollmentStore) ExistsByStudentAndCourse(ctx context.Context, studentID, courseID string) (bool, error) {
	for _, e := range f.st.enrollments {
		if e.UserID == studentID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEnrollmentStore) FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.EnrollmentDetail, error) {
	e, ok := f.st.enrollments[id]
	if !ok || e.UserID != studentID {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (f *fakeEnrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range f.st.enrollments {
		if e.UserID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if f.st.createErr != nil {
		return f.st.createErr
	}
	for _, e := range f.st.enrollments {
		if e.UserID == enrollment.UserID && e.CourseID == enrollment.CourseID {
			return repository.ErrDuplicateEnrollment
		}
	}
	f.st.seq++
	enrollment.ID = fmt.Sprintf("en-%d", f.st.seq)
	f.st.enrollments[enrollment.ID] = models.EnrollmentDetail{Enrollment: *enrollment}
	return nil
}

func (f *fakeEnrollmentStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.st.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.st.enrollments, id)
	return nil
}

type fakeTxManager struct{ st *memStore }

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, stores repository.TxStores) error) error {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()

	snapshot := make(map[string]models.EnrollmentDetail, len(m.st.enrollments))
	for k, v := range m.st.enrollments {
		snapshot[k] = v
	}

	err := fn(ctx, repository.TxStores{
		Courses:     &fakeCourseStore{st: m.st},
		Enrollments: &fakeEnrollmentStore{st: m.st},
	})
	if err != nil {
		m.st.enrollments = snapshot
	}
	return err
}

func newTestEnrollmentService(st *memStore) *EnrollmentService {
	return NewEnrollmentService(&fakeCourseStore{st: st}, &fakeEnrollmentStore{st: st}, &fakeTxManager{st: st}, nil, zap.NewNop())
}

func TestEnrollSuccess(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 2, slot(1, 9*60, 12*60))
	svc := newTestEnrollmentService(st)

	detail, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "Data Structures", detail.CourseName)
	assert.Equal(t, "s1", detail.UserID)
	assert.NotEmpty(t, detail.ID)
	assert.Len(t, st.enrollments, 1)
}

func TestEnrollCourseNotFound(t *testing.T) {
	st := newMemStore()
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrCourseNotFound)
}

func TestEnrollAlreadyEnrolled(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Algorithms", 2)
	st.addEnrollment("s1", "c1")
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
	assert.Len(t, st.enrollments, 1)
}

func TestEnrollCourseFull(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Operating Systems", 1)
	st.addEnrollment("s2", "c1")
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrCourseFull)
}

func TestEnrollFillsCapacityExactly(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Operating Systems", 2)
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	_, err = svc.Enroll(context.Background(), "s2", "c1")
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), "s3", "c1")
	assert.ErrorIs(t, err, appErrors.ErrCourseFull)
	assert.Len(t, st.enrollments, 2)
}

// A student already enrolled in a full course must still see
// AlreadyEnrolled, not CourseFull.
func TestEnrollDuplicateBeatsFull(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Operating Systems", 1)
	st.addEnrollment("s1", "c1")
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyEnrolled)
}

func TestEnrollTimeConflict(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Linear Algebra", 10, slot(1, 9*60, 12*60))
	st.addCourse("c2", "Statistics", 10, slot(1, 10*60, 13*60))
	st.addEnrollment("s1", "c2")
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	assert.ErrorIs(t, err, appErrors.ErrTimeConflict)
}

func TestEnrollTouchingSlotsAllowed(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Linear Algebra", 10, slot(1, 12*60, 14*60))
	st.addCourse("c2", "Statistics", 10, slot(1, 9*60, 12*60))
	st.addEnrollment("s1", "c2")
	svc := newTestEnrollmentService(st)

	detail, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", detail.CourseID)
}

func TestEnrollMaxCourseLimit(t *testing.T) {
	st := newMemStore()
	for i := 0; i < MaxCourseLimit; i++ {
		id := fmt.Sprintf("c%d", i)
		st.addCourse(id, "Course "+id, 10)
		st.addEnrollment("s1", id)
	}
	st.addCourse("extra", "One Too Many", 10)
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "extra")
	assert.ErrorIs(t, err, appErrors.ErrMaxCourseLimit)
	assert.Len(t, st.enrollments, MaxCourseLimit)
}

func TestEnrollValidatesInput(t *testing.T) {
	svc := newTestEnrollmentService(newMemStore())

	_, err := svc.Enroll(context.Background(), "", "c1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestEnrollRollsBackOnCreateFailure(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 2)
	st.createErr = fmt.Errorf("connection reset")
	svc := newTestEnrollmentService(st)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Empty(t, st.enrollments)
}

// Two students race for the last seat. Exactly one enroll may commit;
// the other observes the committed count and loses with CourseFull.
func TestEnrollLastSeatSingleWinner(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Deep Learning", 1)
	svc := newTestEnrollmentService(st)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, student := range []string{"s1", "s2"} {
		wg.Add(1)
		go func(i int, student string) {
			defer wg.Done()
			_, errs[i] = svc.Enroll(context.Background(), student, "c1")
		}(i, student)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case assert.ErrorIs(t, err, appErrors.ErrCourseFull):
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
	assert.Len(t, st.enrollments, 1)
}

func TestWithdrawSuccess(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 10)
	st.addCourse("c2", "Algorithms", 10)
	st.addCourse("c3", "Statistics", 10)
	target := st.addEnrollment("s1", "c1")
	st.addEnrollment("s1", "c2")
	st.addEnrollment("s1", "c3")
	svc := newTestEnrollmentService(st)

	summary, err := svc.Withdraw(context.Background(), "s1", target)
	require.NoError(t, err)
	assert.Equal(t, "Data Structures", summary.CourseName)
	assert.Equal(t, 2, summary.RemainingEnrollments)
	assert.Len(t, st.enrollments, 2)
}

func TestWithdrawNotFound(t *testing.T) {
	st := newMemStore()
	svc := newTestEnrollmentService(st)

	_, err := svc.Withdraw(context.Background(), "s1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)
}

// Withdrawing someone else's enrollment reports the same NotFound as a
// missing one, so enrollment IDs cannot be probed.
func TestWithdrawForeignEnrollment(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 10)
	st.addCourse("c2", "Algorithms", 10)
	st.addCourse("c3", "Statistics", 10)
	foreign := st.addEnrollment("s2", "c1")
	st.addEnrollment("s2", "c2")
	st.addEnrollment("s2", "c3")
	svc := newTestEnrollmentService(st)

	_, err := svc.Withdraw(context.Background(), "s1", foreign)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentNotFound)
	assert.Len(t, st.enrollments, 3)
}

func TestWithdrawMinCourseLimit(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 10)
	st.addCourse("c2", "Algorithms", 10)
	target := st.addEnrollment("s1", "c1")
	st.addEnrollment("s1", "c2")
	svc := newTestEnrollmentService(st)

	_, err := svc.Withdraw(context.Background(), "s1", target)
	assert.ErrorIs(t, err, appErrors.ErrMinCourseLimit)
	assert.Len(t, st.enrollments, 2)
}

func TestHasConflict(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Linear Algebra", 10, slot(2, 9*60, 11*60))
	st.addCourse("c2", "Statistics", 10, slot(2, 10*60, 12*60))
	st.addCourse("c3", "Web Programming", 10, slot(4, 10*60, 12*60))
	st.addEnrollment("s1", "c2")
	svc := newTestEnrollmentService(st)

	conflict, err := svc.HasConflict(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, conflict)

	conflict, err = svc.HasConflict(context.Background(), "s1", "c3")
	require.NoError(t, err)
	assert.False(t, conflict)

	_, err = svc.HasConflict(context.Background(), "s1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrCourseNotFound)
}

func TestListAndSchedule(t *testing.T) {
	st := newMemStore()
	st.addCourse("c1", "Data Structures", 10, slot(1, 8*60, 10*60))
	st.addCourse("c2", "Algorithms", 10, slot(2, 8*60, 10*60))
	st.addEnrollment("s1", "c1")
	st.addEnrollment("s1", "c2")
	st.addEnrollment("s2", "c1")
	svc := newTestEnrollmentService(st)

	enrollments, err := svc.List(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, enrollments, 2)

	schedule, err := svc.Schedule(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	for _, course := range schedule {
		assert.NotEmpty(t, course.TimeSlots)
	}
}
