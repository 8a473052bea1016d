package model

import "time"

// SessionQuestion is the client-facing view of one drawn question.
// The canonical answer is deliberately absent.
type SessionQuestion struct {
	QuestionID int64    `json:"question_id"`
	Content    string   `json:"question_content"`
	ImageURLs  []string `json:"question_img"`
}

// ExamSession is the materialized record of one drawn paper. It lives in the
// session store for its TTL and is the sole authority on which questions were
// actually shown for a paperId.
type ExamSession struct {
	PaperID   string            `json:"paper_id"`
	OrgID     string            `json:"org_id"`
	StartTime time.Time         `json:"start_time"`
	Questions []SessionQuestion `json:"questions"`
}

// QuestionIDSet returns the session's question IDs as a set.
func (s *ExamSession) QuestionIDSet() map[int64]struct{} {
	ids := make(map[int64]struct{}, len(s.Questions))
	for _, q := range s.Questions {
		ids[q.QuestionID] = struct{}{}
	}
	return ids
}

// DrawRequest is the payload for drawing a fresh random paper.
type DrawRequest struct {
	Count int `json:"count" binding:"required,min=1,max=100"`
}

// RedrawRequest is the payload for replacing an existing paper with a
// disjoint question set.
type RedrawRequest struct {
	PaperID string `json:"paper_id" binding:"required"`
	Count   int    `json:"count" binding:"required,min=1,max=100"`
}

// SubmittedAnswer is one answered question in a submission.
type SubmittedAnswer struct {
	QuestionID int64  `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

// SubmitRequest is the payload for grading a paper.
type SubmitRequest struct {
	PaperID string            `json:"paper_id" binding:"required"`
	Answers []SubmittedAnswer `json:"answers" binding:"required,min=1,dive"`
}

// QuestionResult reports per-question correctness after grading.
type QuestionResult struct {
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"is_right"`
}

// SubmitResult is the outcome of a graded submission.
type SubmitResult struct {
	PaperID string           `json:"paper_id"`
	Score   int              `json:"score"`
	Results []QuestionResult `json:"results"`
}
