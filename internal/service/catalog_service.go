package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
)

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cachedCourseList struct {
	Courses    []models.CourseDetail `json:"courses"`
	Pagination models.Pagination     `json:"pagination"`
}

// CatalogService serves read-mostly course browsing with a Redis cache
// in front of the database. It owns no enrollment rules; occupancy
// counts it reports are computed by the store.
type CatalogService struct {
	courses courseCatalog
	cache   catalogCache
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCatalogService constructs CatalogService. cache and metrics may
// be nil, which disables caching and instrumentation respectively.
func NewCatalogService(courses courseCatalog, cache catalogCache, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{courses: courses, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// List returns catalog courses with pagination metadata. The bool
// reports whether the payload came from cache.
func (s *CatalogService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, bool, error) {
	key := listCacheKey(filter)
	if s.cache != nil {
		var cached cachedCourseList
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.recordCache(true)
			pagination := cached.Pagination
			return cached.Courses, &pagination, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	start := time.Now()
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	s.observeQuery("course_list", time.Since(start))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, cachedCourseList{Courses: courses, Pagination: *pagination}, s.ttl); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return courses, pagination, false, nil
}

// Get returns one course with its time slots and occupancy. The bool
// reports whether the payload came from cache.
func (s *CatalogService) Get(ctx context.Context, id string) (*models.CourseDetail, bool, error) {
	key := courseCacheKey(id)
	if s.cache != nil {
		var cached models.CourseDetail
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			s.recordCache(true)
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	start := time.Now()
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.ErrCourseNotFound
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	s.observeQuery("course_get", time.Since(start))

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, course, s.ttl); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return course, false, nil
}

// InvalidateCourse flushes cached catalog payloads after an enrollment
// mutation changed the course's occupancy. Lists embed counts for
// every course, so the whole namespace goes.
func (s *CatalogService) InvalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "catalog:*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *CatalogService) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit()
	} else {
		s.metrics.RecordCacheMiss()
	}
}

func (s *CatalogService) observeQuery(op string, d time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDBQuery(op, d)
}

func listCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("catalog:list:%s|%s|%s|%d|%d|%s|%s",
		filter.Search, filter.Type, filter.Semester, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func courseCacheKey(id string) string {
	return "catalog:course:" + id
}
