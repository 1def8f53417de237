// ABOUTME: Thin admission and review submission pass-throughs
// ABOUTME: Session-consuming single-request wrappers over an in-memory log

package portal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Submission errors
var (
	ErrMissingCollege = errors.New("college is required")
	ErrBadRating      = errors.New("rating must be between 1 and 5")
)

// Admission is one submitted admission enquiry. Email comes from the
// signed-in identity, never from the request body.
type Admission struct {
	ID          string
	Email       string
	CollegeID   string
	Program     string
	SubmittedAt time.Time
}

// Review is one submitted college review.
type Review struct {
	ID          string
	Email       string
	CollegeID   string
	Rating      int
	Comment     string
	SubmittedAt time.Time
}

// ApplicationService accepts admission and review submissions on behalf of a
// signed-in user.
type ApplicationService interface {
	SubmitAdmission(ctx context.Context, a Admission) (id string, err error)
	SubmitReview(ctx context.Context, r Review) (id string, err error)
}

// Applications is the in-memory ApplicationService. Submissions are assigned
// a uuid and retained for the process lifetime.
type Applications struct {
	mu         sync.Mutex
	admissions []Admission
	reviews    []Review

	logger *slog.Logger
}

// NewApplications creates an empty in-memory application log.
func NewApplications() *Applications {
	return &Applications{
		logger: slog.Default().With("component", "applications"),
	}
}

func (s *Applications) SubmitAdmission(ctx context.Context, a Admission) (string, error) {
	if a.CollegeID == "" {
		return "", ErrMissingCollege
	}

	a.ID = uuid.New().String()
	a.SubmittedAt = time.Now()

	s.mu.Lock()
	s.admissions = append(s.admissions, a)
	s.mu.Unlock()

	s.logger.Info("admission submitted", "admission_id", a.ID, "college_id", a.CollegeID)
	return a.ID, nil
}

func (s *Applications) SubmitReview(ctx context.Context, r Review) (string, error) {
	if r.CollegeID == "" {
		return "", ErrMissingCollege
	}
	if r.Rating < 1 || r.Rating > 5 {
		return "", ErrBadRating
	}

	r.ID = uuid.New().String()
	r.SubmittedAt = time.Now()

	s.mu.Lock()
	s.reviews = append(s.reviews, r)
	s.mu.Unlock()

	s.logger.Info("review submitted", "review_id", r.ID, "college_id", r.CollegeID)
	return r.ID, nil
}

// Admissions returns a copy of the submitted admissions.
func (s *Applications) Admissions() []Admission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Admission, len(s.admissions))
	copy(out, s.admissions)
	return out
}

// Reviews returns a copy of the submitted reviews.
func (s *Applications) Reviews() []Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Review, len(s.reviews))
	copy(out, s.reviews)
	return out
}
