package model

import "time"

// GradedAnswer is one persisted answer row. Append-only: written exactly once
// per question of a successful submission, never updated.
type GradedAnswer struct {
	ID         int64     `json:"answer_id"`
	PaperID    string    `json:"paper_id"`
	OrgID      string    `json:"org_id"`
	UserID     int64     `json:"user_id"`
	QuestionID int64     `json:"question_id"`
	UserAnswer string    `json:"user_answer"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// QualityRecord summarizes one graded paper: total score plus timing.
// UsedTime is formatted mm:ss from the session start to grading time.
type QualityRecord struct {
	ID        int64     `json:"quality_id"`
	PaperID   string    `json:"paper_id"`
	UserID    int64     `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Score     int       `json:"score"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	UsedTime  string    `json:"used_time"`
	CreatedAt time.Time `json:"created_at"`
}
