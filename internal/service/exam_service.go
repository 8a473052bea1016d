package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/traincenter/traincenter-backend/internal/config"
	"github.com/traincenter/traincenter-backend/internal/grader"
	"github.com/traincenter/traincenter-backend/internal/model"
	"github.com/traincenter/traincenter-backend/internal/repository"
	"github.com/traincenter/traincenter-backend/internal/store"
)

// Exam core errors.
var (
	// ErrSessionExpired covers a true TTL expiry and a forged or foreign
	// paperId identically, so callers cannot probe whether a paperId ever
	// existed.
	ErrSessionExpired = errors.New("exam session has expired or does not exist")
	// ErrDuplicateSubmission means another grading attempt for the same
	// (paper, user) pair is in flight. Callers must not retry automatically.
	ErrDuplicateSubmission = errors.New("answers for this paper are already being graded")
	// ErrStoreUnavailable signals the session store or lock backend failed.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrPersistFailed signals the graded batch could not be saved.
	ErrPersistFailed = errors.New("failed to persist graded answers")
)

// ValidationError rejects a malformed draw or submission with a specific
// reason string.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// QuestionPool is the read-only question bank the exam core draws from.
type QuestionPool interface {
	DrawRandom(ctx context.Context, orgScopes []string, count int) ([]model.Question, error)
	DrawRandomExcluding(ctx context.Context, orgScopes []string, excludeIDs []int64, count int) ([]model.Question, error)
	ResolveCanonicalAnswer(ctx context.Context, questionID int64) (string, error)
}

// ResultSink is the append-only store for graded answers and quality records.
type ResultSink interface {
	SaveGradedBatch(ctx context.Context, answers []model.GradedAnswer, quality *model.QualityRecord) error
	ListQualityByUser(ctx context.Context, userID int64, limit int) ([]model.QualityRecord, error)
}

// AuditRecorder records business events. The exam core never fails because
// an audit write failed.
type AuditRecorder interface {
	Record(ctx context.Context, entry *model.AuditLog) error
}

// ExamSessionService orchestrates drawing papers and grading submissions.
// It holds no mutable state of its own; sessions and locks live in the
// shared store, so any number of instances can run concurrently.
type ExamSessionService struct {
	questions QuestionPool
	sessions  *store.SessionStore
	locks     *store.SubmissionLock
	results   ResultSink
	audit     AuditRecorder
	cfg       *config.Config
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	questions QuestionPool,
	sessions *store.SessionStore,
	locks *store.SubmissionLock,
	results ResultSink,
	audit AuditRecorder,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		questions: questions,
		sessions:  sessions,
		locks:     locks,
		results:   results,
		audit:     audit,
		cfg:       cfg,
		log:       log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Draw selects count random questions visible to orgID, materializes them as
// a new session and stores it with the configured TTL. Returns (nil, nil)
// when the pool has no eligible questions: no session is created and that is
// not an error.
func (s *ExamSessionService) Draw(ctx context.Context, userID int64, orgID string, count int) (*model.ExamSession, error) {
	if strings.TrimSpace(orgID) == "" {
		return nil, &ValidationError{Reason: "organization id must not be blank"}
	}
	if count <= 0 {
		return nil, &ValidationError{Reason: "question count must be greater than zero"}
	}

	questions, err := s.questions.DrawRandom(ctx, s.orgScopes(orgID), count)
	if err != nil {
		return nil, fmt.Errorf("draw questions: %w", err)
	}
	if len(questions) == 0 {
		s.log.Info().Str("org_id", orgID).Int("count", count).Msg("No eligible questions for draw")
		return nil, nil
	}

	session := s.buildSession(newPaperID(), orgID, questions)
	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, userID, orgID, model.AuditActionDraw,
		fmt.Sprintf("paper_id=%s questions=%d", session.PaperID, len(session.Questions)))

	return session, nil
}

// Redraw replaces the paper oldPaperID with a freshly drawn session whose
// question set is disjoint from the old one. The old session is deleted
// best-effort: if the delete fails the orphaned entry simply expires.
func (s *ExamSessionService) Redraw(ctx context.Context, userID int64, oldPaperID, orgID string, count int) (*model.ExamSession, error) {
	if strings.TrimSpace(oldPaperID) == "" {
		return nil, &ValidationError{Reason: "previous paper id must not be blank"}
	}
	if strings.TrimSpace(orgID) == "" {
		return nil, &ValidationError{Reason: "organization id must not be blank"}
	}
	if count <= 0 {
		return nil, &ValidationError{Reason: "question count must be greater than zero"}
	}

	// Capture the old paper's question IDs for the exclusion set, then
	// retire it. Store trouble here never blocks the redraw.
	oldKey := config.CacheKey.ExamSessionKey(orgID, oldPaperID)
	var excludeIDs []int64
	oldSession, err := s.sessions.Get(ctx, oldKey)
	if err != nil {
		s.log.Warn().Err(err).Str("paper_id", oldPaperID).Msg("Failed to load old session for redraw")
	}
	if oldSession != nil {
		for _, q := range oldSession.Questions {
			excludeIDs = append(excludeIDs, q.QuestionID)
		}
		if _, err := s.sessions.Delete(ctx, oldKey); err != nil {
			s.log.Warn().Err(err).Str("paper_id", oldPaperID).Msg("Failed to delete old session, leaving it to expire")
		}
	}

	questions, err := s.questions.DrawRandomExcluding(ctx, s.orgScopes(orgID), excludeIDs, count)
	if err != nil {
		return nil, fmt.Errorf("redraw questions: %w", err)
	}
	if len(questions) == 0 {
		s.log.Info().Str("org_id", orgID).Int("excluded", len(excludeIDs)).Msg("No eligible questions for redraw")
		return nil, nil
	}

	// paperIds are random, so a collision with the old id is all but
	// impossible; regenerate anyway so the guarantee is unconditional.
	paperID := newPaperID()
	for paperID == oldPaperID {
		paperID = newPaperID()
	}

	session := s.buildSession(paperID, orgID, questions)
	if err := s.persistSession(ctx, session); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, userID, orgID, model.AuditActionRedraw,
		fmt.Sprintf("old_paper_id=%s paper_id=%s questions=%d", oldPaperID, session.PaperID, len(session.Questions)))

	return session, nil
}

// Submit grades a submission against its session exactly once. The session
// is the sole authority on which questions were shown: the submitted set of
// question IDs must equal the session's set before anything is graded.
func (s *ExamSessionService) Submit(ctx context.Context, userID int64, orgID string, req *model.SubmitRequest) (*model.SubmitResult, error) {
	if req == nil || strings.TrimSpace(req.PaperID) == "" {
		return nil, &ValidationError{Reason: "paper id must not be blank"}
	}
	if len(req.Answers) == 0 {
		return nil, &ValidationError{Reason: "submission must contain at least one answer"}
	}

	sessionKey := config.CacheKey.ExamSessionKey(orgID, req.PaperID)
	session, err := s.sessions.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	if err := validateConsistency(session, req.Answers); err != nil {
		return nil, err
	}

	// Checked before taking the lock so a doomed call never holds a lease.
	for _, a := range req.Answers {
		if strings.TrimSpace(a.Answer) == "" {
			return nil, &ValidationError{Reason: "one or more answers are blank, complete the paper before submitting"}
		}
	}

	lockKey := config.CacheKey.SubmitLockKey(req.PaperID, userID)
	token := uuid.NewString()
	acquired, err := s.locks.TryAcquire(ctx, lockKey, token, s.cfg.SubmitLockLease)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acquired {
		return nil, ErrDuplicateSubmission
	}

	// Grading is terminal for the session: drop the session and release the
	// lock on every exit path, success or failure, so a failed attempt
	// neither blocks the slot nor leaves a dangling lock. The session goes
	// first; combined with the recheck below, a caller that raced past the
	// first Get can never grade the same paper a second time.
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)
		if _, err := s.sessions.Delete(cleanupCtx, sessionKey); err != nil {
			s.log.Error().Err(err).Str("paper_id", req.PaperID).Msg("Failed to delete graded session")
		}
		if _, err := s.locks.Release(cleanupCtx, lockKey, token); err != nil {
			s.log.Error().Err(err).Str("lock_key", lockKey).Msg("Failed to release submission lock")
		}
	}()

	// Recheck under the lock: if the session vanished between the first
	// read and acquisition, a concurrent attempt already graded it.
	exists, err := s.sessions.Exists(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, ErrSessionExpired
	}

	result, graded, quality, err := s.gradeSubmission(ctx, userID, orgID, session, req)
	if err != nil {
		return nil, err
	}

	if err := s.results.SaveGradedBatch(ctx, graded, quality); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	s.recordAudit(ctx, userID, orgID, model.AuditActionSubmit,
		fmt.Sprintf("paper_id=%s score=%d", req.PaperID, result.Score))

	return result, nil
}

// History returns the caller's most recent graded papers.
func (s *ExamSessionService) History(ctx context.Context, userID int64, limit int) ([]model.QualityRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.results.ListQualityByUser(ctx, userID, limit)
}

// gradeSubmission scores every answer, in submission order, and assembles
// the persistence batch. A question whose canonical answer cannot be
// resolved scores zero instead of failing the batch: a missing answer row is
// a data anomaly, not the submitter's fault.
func (s *ExamSessionService) gradeSubmission(
	ctx context.Context,
	userID int64,
	orgID string,
	session *model.ExamSession,
	req *model.SubmitRequest,
) (*model.SubmitResult, []model.GradedAnswer, *model.QualityRecord, error) {
	endTime := time.Now()
	quality := &model.QualityRecord{
		PaperID:   req.PaperID,
		UserID:    userID,
		OrgID:     orgID,
		StartTime: session.StartTime,
		EndTime:   endTime,
		UsedTime:  formatUsedTime(endTime.Sub(session.StartTime)),
	}

	result := &model.SubmitResult{PaperID: req.PaperID}
	graded := make([]model.GradedAnswer, 0, len(req.Answers))

	for _, answer := range req.Answers {
		entry := model.GradedAnswer{
			PaperID:    req.PaperID,
			OrgID:      orgID,
			UserID:     userID,
			QuestionID: answer.QuestionID,
			UserAnswer: answer.Answer,
		}

		canonical, err := s.questions.ResolveCanonicalAnswer(ctx, answer.QuestionID)
		switch {
		case errors.Is(err, repository.ErrQuestionNotFound):
			s.log.Error().Int64("question_id", answer.QuestionID).Msg("Canonical answer missing, scoring zero")
		case err != nil:
			return nil, nil, nil, fmt.Errorf("resolve canonical answer: %w", err)
		default:
			correct, score := grader.Grade(canonical, answer.Answer)
			entry.Score = score
			result.Results = append(result.Results, model.QuestionResult{
				QuestionID: answer.QuestionID,
				Answer:     answer.Answer,
				Correct:    correct,
			})
			quality.Score += score
			graded = append(graded, entry)
			continue
		}

		result.Results = append(result.Results, model.QuestionResult{
			QuestionID: answer.QuestionID,
			Answer:     answer.Answer,
			Correct:    false,
		})
		graded = append(graded, entry)
	}

	result.Score = quality.Score
	return result, graded, quality, nil
}

// validateConsistency rejects any submission whose question ID set differs
// from the session's: wrong cardinality or a foreign ID means the client is
// answering questions it was never shown.
func validateConsistency(session *model.ExamSession, answers []model.SubmittedAnswer) error {
	sessionIDs := session.QuestionIDSet()
	if len(sessionIDs) == 0 {
		return &ValidationError{Reason: "session has no questions, submission rejected"}
	}

	submittedIDs := make(map[int64]struct{}, len(answers))
	for _, a := range answers {
		submittedIDs[a.QuestionID] = struct{}{}
	}

	if len(submittedIDs) != len(sessionIDs) {
		return &ValidationError{Reason: fmt.Sprintf(
			"submitted question count does not match the session (expected %d, got %d)",
			len(sessionIDs), len(submittedIDs))}
	}
	for id := range submittedIDs {
		if _, ok := sessionIDs[id]; !ok {
			return &ValidationError{Reason: "submission contains a question that is not part of this session"}
		}
	}
	return nil
}

// orgScopes builds the visibility scope for a draw: the shared system pool
// plus the organization's own pool.
func (s *ExamSessionService) orgScopes(orgID string) []string {
	scopes := []string{config.SystemOrgID}
	if orgID != config.SystemOrgID {
		scopes = append(scopes, orgID)
	}
	return scopes
}

func (s *ExamSessionService) buildSession(paperID, orgID string, questions []model.Question) *model.ExamSession {
	session := &model.ExamSession{
		PaperID:   paperID,
		OrgID:     orgID,
		StartTime: time.Now(),
		Questions: make([]model.SessionQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		session.Questions = append(session.Questions, model.SessionQuestion{
			QuestionID: q.ID,
			Content:    q.Content,
			ImageURLs:  s.imageURLs(q.ImagePath),
		})
	}
	return session
}

// persistSession stores the session with the configured TTL. A session that
// cannot be stored is undeliverable (nothing could ever be submitted against
// it), so the draw fails rather than returning it.
func (s *ExamSessionService) persistSession(ctx context.Context, session *model.ExamSession) error {
	key := config.CacheKey.ExamSessionKey(session.OrgID, session.PaperID)
	if err := s.sessions.Put(ctx, key, session, s.cfg.SessionExpiry); err != nil {
		s.log.Error().Err(err).Str("paper_id", session.PaperID).Msg("Failed to persist exam session")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// imageURLs splits the stored comma-separated image paths and prefixes each
// with the configured base URL.
func (s *ExamSessionService) imageURLs(imagePath string) []string {
	if strings.TrimSpace(imagePath) == "" {
		return []string{}
	}
	parts := strings.Split(imagePath, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, s.cfg.ImageURLPrefix+trimmed)
		}
	}
	return urls
}

func (s *ExamSessionService) recordAudit(ctx context.Context, userID int64, orgID, action, detail string) {
	entry := &model.AuditLog{
		UserID: userID,
		OrgID:  orgID,
		Action: action,
		Detail: detail,
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("Audit record failed")
	}
}

// formatUsedTime renders a grading duration as mm:ss. Minutes are not
// wrapped at the hour, so a one hour paper reads 60:00.
func formatUsedTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// newPaperID returns a collision-resistant opaque session handle.
func newPaperID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
