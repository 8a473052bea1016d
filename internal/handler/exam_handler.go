package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/traincenter/traincenter-backend/internal/middleware"
	"github.com/traincenter/traincenter-backend/internal/model"
	"github.com/traincenter/traincenter-backend/internal/response"
	"github.com/traincenter/traincenter-backend/internal/service"
	"github.com/traincenter/traincenter-backend/internal/validator"
)

// ExamHandler exposes the exam-session lifecycle: draw, redraw, submit.
type ExamHandler struct {
	examService *service.ExamSessionService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService *service.ExamSessionService) *ExamHandler {
	return &ExamHandler{examService: examService}
}

// Draw godoc
// POST /api/v1/train/questions/draw
// Draws a fresh random paper for the caller's organization. An empty pool
// yields a successful response with a null paper, not an error.
func (h *ExamHandler) Draw(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.DrawRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.examService.Draw(c.Request.Context(), claims.UserID, claims.OrgID, req.Count)
	if err != nil {
		failExam(c, err)
		return
	}
	if session == nil {
		response.Success(c, http.StatusOK, gin.H{
			"paper":   nil,
			"message": response.GetMessage(response.ErrNoQuestions),
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": session})
}

// Redraw godoc
// POST /api/v1/train/questions/redraw
// Replaces an existing paper with a disjoint question set under a new paper id.
func (h *ExamHandler) Redraw(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.RedrawRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.examService.Redraw(c.Request.Context(), claims.UserID, req.PaperID, claims.OrgID, req.Count)
	if err != nil {
		failExam(c, err)
		return
	}
	if session == nil {
		response.Success(c, http.StatusOK, gin.H{
			"paper":   nil,
			"message": response.GetMessage(response.ErrNoQuestions),
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": session})
}

// Submit godoc
// POST /api/v1/train/questions/judge
// Grades a submitted paper exactly once and returns per-question results.
func (h *ExamHandler) Submit(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.examService.Submit(c.Request.Context(), claims.UserID, claims.OrgID, &req)
	if err != nil {
		failExam(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// History godoc
// GET /api/v1/train/results
// Lists the caller's graded papers, newest first.
func (h *ExamHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	records, err := h.examService.History(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": records})
}

// failExam maps exam core errors onto HTTP status codes and error codes.
func failExam(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, ve.Reason)
	case errors.Is(err, service.ErrSessionExpired):
		response.Fail(c, http.StatusGone, response.ErrSessionExpired)
	case errors.Is(err, service.ErrDuplicateSubmission):
		response.Fail(c, http.StatusConflict, response.ErrDuplicateSubmission)
	case errors.Is(err, service.ErrStoreUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStoreUnavailable)
	case errors.Is(err, service.ErrPersistFailed):
		response.Fail(c, http.StatusInternalServerError, response.ErrPersistFailed)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
