package model

import "time"

// Audit actions emitted by the exam core.
const (
	AuditActionDraw   = "QUESTION_DRAW"
	AuditActionRedraw = "QUESTION_REDRAW"
	AuditActionSubmit = "ANSWER_SUBMIT"
)

// AuditLog records one business event. Writes are best-effort: a failed
// audit insert must never fail the operation it describes.
type AuditLog struct {
	ID        int64     `json:"log_id"`
	UserID    int64     `json:"user_id"`
	OrgID     string    `json:"org_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
