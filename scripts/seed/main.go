package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/course-select-api/migrations"
	"github.com/noah-isme/course-select-api/pkg/config"
	"github.com/noah-isme/course-select-api/pkg/database"
)

type seedUser struct {
	Username string
	FullName string
	Email    string
	Role     string
	Password string
}

type seedCourse struct {
	Code        string
	Name        string
	Type        string
	Capacity    int
	Credit      int
	Description string
	Semester    string
	Slots       []seedSlot
}

type seedSlot struct {
	Day      int
	StartMin int
	EndMin   int
	Location string
}

func main() {
	var (
		clear   bool
		timeout time.Duration
	)
	flag.BoolVar(&clear, "clear", false, "Delete existing data before seeding")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	if err := migrations.Up(db.DB); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if clear {
		log.Println("clearing existing data")
		if err := clearData(ctx, db); err != nil {
			log.Fatalf("failed to clear data: %v", err)
		}
	}

	if err := seed(ctx, db); err != nil {
		log.Fatalf("failed to seed: %v", err)
	}
	log.Println("seed complete")
}

func clearData(ctx context.Context, db *sqlx.DB) error {
	for _, table := range []string{"enrollments", "course_time_slots", "courses", "users"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func seed(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	userIDs, err := seedUsers(ctx, tx)
	if err != nil {
		return err
	}

	courseIDs, err := seedCourses(ctx, tx)
	if err != nil {
		return err
	}

	if err := seedEnrollments(ctx, tx, userIDs, courseIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func seedUsers(ctx context.Context, tx *sqlx.Tx) ([]string, error) {
	users := []seedUser{
		{Username: "admin", FullName: "System Administrator", Email: "admin@example.com", Role: "ADMIN", Password: "admin123"},
	}
	for i := 1; i <= 3; i++ {
		users = append(users, seedUser{
			Username: fmt.Sprintf("teacher%03d", i),
			FullName: fmt.Sprintf("Teacher %d", i),
			Email:    fmt.Sprintf("teacher%03d@example.com", i),
			Role:     "TEACHER",
			Password: "password123",
		})
	}
	for i := 1; i <= 20; i++ {
		users = append(users, seedUser{
			Username: fmt.Sprintf("student%03d", i),
			FullName: fmt.Sprintf("Student %d", i),
			Email:    fmt.Sprintf("student%03d@example.com", i),
			Role:     "STUDENT",
			Password: "password123",
		})
	}

	var studentIDs []string
	for _, u := range users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Username, err)
		}
		id := uuid.NewString()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (id, username, email, password_hash, full_name, role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (username) DO NOTHING`,
			id, u.Username, u.Email, string(hash), u.FullName, u.Role)
		if err != nil {
			return nil, fmt.Errorf("insert user %s: %w", u.Username, err)
		}
		if u.Role == "STUDENT" {
			var existing string
			if err := tx.GetContext(ctx, &existing, "SELECT id FROM users WHERE username = $1", u.Username); err != nil {
				return nil, fmt.Errorf("lookup user %s: %w", u.Username, err)
			}
			studentIDs = append(studentIDs, existing)
		}
		log.Printf("  user %s (%s)", u.Username, u.Role)
	}
	return studentIDs, nil
}

func seedCourses(ctx context.Context, tx *sqlx.Tx) ([]string, error) {
	const semester = "2026-FALL"
	courses := []seedCourse{
		{Code: "CS101", Name: "Data Structures", Type: "REQUIRED", Capacity: 60, Credit: 3,
			Description: "Arrays, linked lists, stacks, queues, trees, and graphs",
			Slots:       []seedSlot{{Day: 1, StartMin: 8 * 60, EndMin: 10 * 60, Location: "CS Building 101"}}},
		{Code: "CS102", Name: "Algorithms", Type: "REQUIRED", Capacity: 60, Credit: 3,
			Description: "Algorithm design and analysis, sorting, searching, dynamic programming",
			Slots:       []seedSlot{{Day: 2, StartMin: 10 * 60, EndMin: 12 * 60, Location: "CS Building 201"}}},
		{Code: "CS201", Name: "Operating Systems", Type: "REQUIRED", Capacity: 50, Credit: 3,
			Description: "Processes, memory management, and file systems",
			Slots: []seedSlot{
				{Day: 3, StartMin: 13 * 60, EndMin: 15 * 60, Location: "Science Hall A205"},
				{Day: 5, StartMin: 13 * 60, EndMin: 15 * 60, Location: "Science Hall A205"},
			}},
		{Code: "MATH201", Name: "Linear Algebra", Type: "REQUIRED", Capacity: 80, Credit: 3,
			Description: "Vector spaces, linear transformations, matrices, eigenvalues",
			Slots:       []seedSlot{{Day: 4, StartMin: 8 * 60, EndMin: 10 * 60, Location: "Science Hall B301"}}},
		{Code: "CS301", Name: "Introduction to Machine Learning", Type: "ELECTIVE", Capacity: 40, Credit: 3,
			Description: "Supervised and unsupervised learning, deep learning basics",
			Slots:       []seedSlot{{Day: 1, StartMin: 13 * 60, EndMin: 15 * 60, Location: "CS Building 101"}}},
		{Code: "CS302", Name: "Web Programming", Type: "ELECTIVE", Capacity: 45, Credit: 3,
			Description: "HTML, CSS, JavaScript, and frontend frameworks",
			Slots:       []seedSlot{{Day: 2, StartMin: 15 * 60, EndMin: 17 * 60, Location: "CS Building 201"}}},
		{Code: "CS303", Name: "Database Systems", Type: "ELECTIVE", Capacity: 50, Credit: 3,
			Description: "Relational databases, SQL, normalization, transactions",
			Slots: []seedSlot{
				{Day: 3, StartMin: 10 * 60, EndMin: 12 * 60, Location: "Main Building 401"},
				{Day: 4, StartMin: 10 * 60, EndMin: 12 * 60, Location: "Main Building 401"},
			}},
		{Code: "CS304", Name: "Artificial Intelligence", Type: "ELECTIVE", Capacity: 40, Credit: 3,
			Description: "Search, knowledge representation, natural language processing",
			Slots:       []seedSlot{{Day: 5, StartMin: 15 * 60, EndMin: 17 * 60, Location: "CS Building 101"}}},
		{Code: "STAT101", Name: "Statistics", Type: "ELECTIVE", Capacity: 60, Credit: 3,
			Description: "Descriptive statistics, probability, hypothesis testing, regression",
			Slots:       []seedSlot{{Day: 1, StartMin: 18 * 60, EndMin: 20 * 60, Location: "Science Hall A205"}}},
		{Code: "CS401", Name: "Deep Learning", Type: "ELECTIVE", Capacity: 35, Credit: 3,
			Description: "Neural networks, CNN, RNN, and transformer architectures",
			Slots:       []seedSlot{{Day: 4, StartMin: 18 * 60, EndMin: 20 * 60, Location: "Main Building 401"}}},
	}

	var ids []string
	for _, c := range courses {
		for _, s := range c.Slots {
			if s.EndMin <= s.StartMin {
				return nil, fmt.Errorf("course %s: slot end must be after start", c.Code)
			}
		}
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO courses (id, course_code, name, type, capacity, credit, description, semester, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (course_code) DO NOTHING`,
			id, c.Code, c.Name, c.Type, c.Capacity, c.Credit, c.Description, semester)
		if err != nil {
			return nil, fmt.Errorf("insert course %s: %w", c.Code, err)
		}
		var courseID string
		if err := tx.GetContext(ctx, &courseID, "SELECT id FROM courses WHERE course_code = $1", c.Code); err != nil {
			return nil, fmt.Errorf("lookup course %s: %w", c.Code, err)
		}
		ids = append(ids, courseID)

		for _, s := range c.Slots {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO course_time_slots (id, course_id, day_of_week, start_min, end_min, location)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (course_id, day_of_week, start_min) DO NOTHING`,
				uuid.NewString(), courseID, s.Day, s.StartMin, s.EndMin, s.Location)
			if err != nil {
				return nil, fmt.Errorf("insert slot for %s: %w", c.Code, err)
			}
		}
		log.Printf("  course %s (%s)", c.Name, c.Code)
	}
	return ids, nil
}

// seedEnrollments gives the first ten students a starting schedule of
// three non-overlapping courses each.
func seedEnrollments(ctx context.Context, tx *sqlx.Tx, studentIDs, courseIDs []string) error {
	if len(courseIDs) < 3 {
		return nil
	}
	for i, studentID := range studentIDs {
		if i >= 10 {
			break
		}
		picks := []string{
			courseIDs[i%len(courseIDs)],
			courseIDs[(i+3)%len(courseIDs)],
			courseIDs[(i+6)%len(courseIDs)],
		}
		for _, courseID := range picks {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO enrollments (id, user_id, course_id, enrolled_at)
				VALUES ($1, $2, $3, NOW())
				ON CONFLICT (user_id, course_id) DO NOTHING`,
				uuid.NewString(), studentID, courseID)
			if err != nil {
				return fmt.Errorf("insert enrollment: %w", err)
			}
		}
	}
	return nil
}
