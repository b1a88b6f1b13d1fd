package service

import "github.com/noah-isme/course-select-api/internal/models"

// slotsOverlap reports whether two weekly meetings collide. Slots on
// different days never collide; on the same day the [start, end)
// intervals must strictly overlap, so a slot ending exactly when the
// other starts is allowed.
func slotsOverlap(a, b models.CourseTimeSlot) bool {
	return a.DayOfWeek == b.DayOfWeek && a.StartMin < b.EndMin && a.EndMin > b.StartMin
}

// scheduleConflicts scans every (candidate, enrolled) slot pair and
// short-circuits on the first overlap. Slot counts per course are
// small, so the quadratic scan is fine.
func scheduleConflicts(candidate []models.CourseTimeSlot, enrolled []models.CourseDetail) bool {
	for _, slot := range candidate {
		for _, course := range enrolled {
			for _, taken := range course.TimeSlots {
				if slotsOverlap(slot, taken) {
					return true
				}
			}
		}
	}
	return false
}
