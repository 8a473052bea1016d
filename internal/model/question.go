package model

import "time"

// QuestionStatusActive marks a question as eligible for drawing.
// Disabled questions (status 0) stay in the table for audit history
// but never appear in a drawn paper.
const QuestionStatusActive = 1

// Question is a row in the shared question bank. Content is copied into
// sessions at draw time, so edits here never affect an in-flight paper.
type Question struct {
	ID        int64     `json:"question_id"`
	Content   string    `json:"question_content"`
	ImagePath string    `json:"question_img,omitempty"` // comma-separated relative paths
	Answer    string    `json:"-"`                      // canonical answer, never serialized to clients
	OrgID     string    `json:"org_id"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
