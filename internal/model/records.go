package model

import (
	"fmt"
	"time"
)

// GuestSubject is the identity stress records are filed under when the
// client does not send one.
const GuestSubject = "guest@example.com"

// StressRecord is one persisted assessment.
type StressRecord struct {
	ID          int64     `json:"id"`
	User        string    `json:"user"`
	Sleep       float64   `json:"sleep"`
	BP          string    `json:"bp"`
	Resp        float64   `json:"resp"`
	Heart       float64   `json:"heart"`
	StressLevel string    `json:"stress_level"`
	Score       int       `json:"score"`
	BPStage     string    `json:"bp_stage"`
	Advice      string    `json:"advice"`
	Timestamp   time.Time `json:"timestamp"`
}

// Feedback is a public rating left by a visitor.
type Feedback struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Message string `json:"message"`
	Rating  int    `json:"rating"`
}

// ContentKind selects one of the curated content libraries.
type ContentKind string

const (
	ContentExercise ContentKind = "exercises"
	ContentDiet     ContentKind = "diets"
	ContentVideo    ContentKind = "videos"
)

// ContentKinds lists every library, in display order.
var ContentKinds = []ContentKind{ContentExercise, ContentDiet, ContentVideo}

// ParseContentKind validates a path segment such as "videos".
func ParseContentKind(s string) (ContentKind, error) {
	for _, k := range ContentKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content kind %q", s)
}

// Content is an exercise, diet, or video entry. Body holds the description,
// or the link for videos.
type Content struct {
	ID    int64       `json:"id"`
	Kind  ContentKind `json:"-"`
	Title string      `json:"title"`
	Body  string      `json:"body"`
}

// ValidateContent checks required fields and lengths.
func ValidateContent(c Content) error {
	if c.Title == "" || c.Body == "" {
		return fmt.Errorf("title and body are required")
	}
	if len(c.Title) > MaxContentTitleLen {
		return fmt.Errorf("title exceeds maximum length of %d characters", MaxContentTitleLen)
	}
	if len(c.Body) > MaxContentBodyLen {
		return fmt.Errorf("body exceeds maximum length of %d bytes", MaxContentBodyLen)
	}
	return nil
}
