package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-select-api/internal/models"
	appErrors "github.com/noah-isme/course-select-api/pkg/errors"
	"github.com/noah-isme/course-select-api/pkg/export"
	"github.com/noah-isme/course-select-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Enroll(ctx context.Context, studentID, courseID string) (*models.EnrollmentDetail, error)
	Withdraw(ctx context.Context, studentID, enrollmentID string) (*models.WithdrawalSummary, error)
	HasConflict(ctx context.Context, studentID, courseID string) (bool, error)
	Schedule(ctx context.Context, studentID string) ([]models.CourseDetail, error)
}

// EnrollRequest describes the enroll payload.
type EnrollRequest struct {
	CourseID string `json:"course_id" binding:"required"`
}

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments enrollmentService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollments: enrollments,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// List godoc
// @Summary List the authenticated student's enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.enrollments.List(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Create godoc
// @Summary Enroll the authenticated student into a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	enrollment, err := h.enrollments.Enroll(c.Request.Context(), claims.UserID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Delete godoc
// @Summary Withdraw from a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.enrollments.Withdraw(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ConflictCheck godoc
// @Summary Check whether a course would conflict with the student's schedule
// @Tags Enrollments
// @Produce json
// @Param courseId query string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/conflict-check [get]
func (h *EnrollmentHandler) ConflictCheck(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courseID := c.Query("courseId")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "courseId is required"))
		return
	}
	conflict, err := h.enrollments.HasConflict(c.Request.Context(), claims.UserID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"course_id": courseID, "conflict": conflict}, nil)
}

// Schedule godoc
// @Summary List the student's enrolled courses with meeting times
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollments/schedule [get]
func (h *EnrollmentHandler) Schedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courses, err := h.enrollments.Schedule(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Export godoc
// @Summary Export the student's weekly timetable
// @Tags Enrollments
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	courses, err := h.enrollments.Schedule(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dataset := timetableDataset(courses)
	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	switch format {
	case "csv":
		data, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="timetable.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
	case "pdf":
		data, err := h.pdf.Render(dataset, "Weekly Timetable")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="timetable.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

var dayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

func timetableDataset(courses []models.CourseDetail) export.Dataset {
	headers := []string{"Course", "Code", "Day", "Start", "End", "Location"}
	rows := make([]map[string]string, 0, len(courses))
	for _, course := range courses {
		for _, slot := range course.TimeSlots {
			day := dayNames[slot.DayOfWeek]
			if day == "" {
				day = fmt.Sprintf("Day %d", slot.DayOfWeek)
			}
			rows = append(rows, map[string]string{
				"Course":   course.Name,
				"Code":     course.Code,
				"Day":      day,
				"Start":    slot.StartClock(),
				"End":      slot.EndClock(),
				"Location": slot.Location,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
