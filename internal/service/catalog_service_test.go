package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

type stubCatalogCache struct {
	store   map[string][]byte
	deletes []string
}

func (s *stubCatalogCache) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCatalogCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCatalogCache) DeleteByPattern(_ context.Context, pattern string) error {
	s.deletes = append(s.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range s.store {
		if strings.HasPrefix(key, prefix) {
			delete(s.store, key)
		}
	}
	return nil
}

type stubCourseCatalog struct {
	courses map[string]models.CourseDetail
	calls   int
}

func (s *stubCourseCatalog) FindByID(_ context.Context, id string) (*models.CourseDetail, error) {
	s.calls++
	c, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &c, nil
}

func (s *stubCourseCatalog) List(_ context.Context, _ models.CourseFilter) ([]models.CourseDetail, int, error) {
	s.calls++
	var out []models.CourseDetail
	for _, c := range s.courses {
		out = append(out, c)
	}
	return out, len(out), nil
}

func catalogFixture() *stubCourseCatalog {
	return &stubCourseCatalog{courses: map[string]models.CourseDetail{
		"c1": {
			Course:        models.Course{ID: "c1", Name: "Data Structures", Code: "CS101", Capacity: 60},
			EnrolledCount: 12, RemainingCapacity: 48,
			TimeSlots: []models.CourseTimeSlot{slot(1, 8*60, 10*60)},
		},
	}}
}

func TestCatalogGetCachesResult(t *testing.T) {
	courses := catalogFixture()
	cache := &stubCatalogCache{}
	svc := NewCatalogService(courses, cache, nil, time.Minute, zap.NewNop())

	course, hit, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Data Structures", course.Name)
	assert.Equal(t, 1, courses.calls)

	cached, hit, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, course.Name, cached.Name)
	assert.Equal(t, course.TimeSlots, cached.TimeSlots)
	assert.Equal(t, 1, courses.calls, "cache hit must not touch the store")
}

func TestCatalogGetNotFound(t *testing.T) {
	svc := NewCatalogService(catalogFixture(), &stubCatalogCache{}, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrCourseNotFound)
}

func TestCatalogListCachesResult(t *testing.T) {
	courses := catalogFixture()
	cache := &stubCatalogCache{}
	svc := NewCatalogService(courses, cache, nil, time.Minute, zap.NewNop())

	filter := models.CourseFilter{Page: 1, PageSize: 20}
	list, pagination, hit, err := svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, hit, err = svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, courses.calls)

	// A different filter is a different cache entry.
	_, _, hit, err = svc.List(context.Background(), models.CourseFilter{Search: "data", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, courses.calls)
}

func TestCatalogInvalidateCourse(t *testing.T) {
	courses := catalogFixture()
	cache := &stubCatalogCache{}
	svc := NewCatalogService(courses, cache, nil, time.Minute, zap.NewNop())

	_, _, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)

	svc.InvalidateCourse(context.Background(), "c1")
	assert.Contains(t, cache.deletes, "catalog:*")

	_, hit, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, hit, "invalidation must force a reload")
	assert.Equal(t, 2, courses.calls)
}

func TestCatalogWorksWithoutCache(t *testing.T) {
	courses := catalogFixture()
	svc := NewCatalogService(courses, nil, nil, time.Minute, zap.NewNop())

	course, hit, err := svc.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "CS101", course.Code)
}
