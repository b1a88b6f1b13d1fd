package models

import "time"

// Enrollment links one student to one course. Rows are only ever
// created by a successful enroll and deleted by a successful withdraw;
// there is no update transition.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with course info.
type EnrollmentDetail struct {
	Enrollment
	CourseName string `db:"course_name" json:"course_name"`
	CourseCode string `db:"course_code" json:"course_code"`
	Credit     int    `db:"credit" json:"credit"`
	Semester   string `db:"semester" json:"semester"`
}

// WithdrawalSummary reports the outcome of a successful withdraw.
type WithdrawalSummary struct {
	CourseName           string `json:"course_name"`
	RemainingEnrollments int    `json:"remaining_enrollments"`
}
