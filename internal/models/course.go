package models

import (
	"fmt"
	"time"
)

// CourseType distinguishes required from elective courses.
type CourseType string

// Possible course types.
const (
	CourseTypeRequired CourseType = "REQUIRED"
	CourseTypeElective CourseType = "ELECTIVE"
)

// Course describes a course offered in the catalog.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Code        string     `db:"course_code" json:"course_code"`
	Type        CourseType `db:"type" json:"type"`
	Capacity    int        `db:"capacity" json:"capacity"`
	Credit      int        `db:"credit" json:"credit"`
	Description string     `db:"description" json:"description"`
	Semester    string     `db:"semester" json:"semester"`
	TeacherID   *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// CourseTimeSlot is one recurring weekly meeting of a course.
// Times are stored as minutes since midnight so interval comparisons
// stay plain integer arithmetic.
type CourseTimeSlot struct {
	ID        string `db:"id" json:"id"`
	CourseID  string `db:"course_id" json:"course_id"`
	DayOfWeek int    `db:"day_of_week" json:"day_of_week"`
	StartMin  int    `db:"start_min" json:"start_min"`
	EndMin    int    `db:"end_min" json:"end_min"`
	Location  string `db:"location" json:"location"`
}

// StartClock renders the slot start as HH:MM.
func (s CourseTimeSlot) StartClock() string {
	return clock(s.StartMin)
}

// EndClock renders the slot end as HH:MM.
func (s CourseTimeSlot) EndClock() string {
	return clock(s.EndMin)
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CourseDetail enriches Course with occupancy and meeting times.
type CourseDetail struct {
	Course
	EnrolledCount     int              `db:"enrolled_count" json:"enrolled_count"`
	RemainingCapacity int              `db:"remaining_capacity" json:"remaining_capacity"`
	TimeSlots         []CourseTimeSlot `db:"-" json:"time_slots"`
}

// CourseFilter provides filters for listing catalog courses.
type CourseFilter struct {
	Search    string
	Type      CourseType
	Semester  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
