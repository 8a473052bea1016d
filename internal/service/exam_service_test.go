package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/traincenter/traincenter-backend/internal/config"
	"github.com/traincenter/traincenter-backend/internal/model"
	"github.com/traincenter/traincenter-backend/internal/repository"
	"github.com/traincenter/traincenter-backend/internal/store"
)

// fakePool is an in-memory QuestionPool.
type fakePool struct {
	mu        sync.Mutex
	questions []model.Question
}

func (p *fakePool) DrawRandom(_ context.Context, orgScopes []string, count int) ([]model.Question, error) {
	return p.DrawRandomExcluding(context.Background(), orgScopes, nil, count)
}

func (p *fakePool) DrawRandomExcluding(_ context.Context, orgScopes []string, excludeIDs []int64, count int) ([]model.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scopes := make(map[string]struct{}, len(orgScopes))
	for _, s := range orgScopes {
		scopes[s] = struct{}{}
	}
	excluded := make(map[int64]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	var out []model.Question
	for _, q := range p.questions {
		if len(out) == count {
			break
		}
		if _, ok := scopes[q.OrgID]; !ok {
			continue
		}
		if _, ok := excluded[q.ID]; ok {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (p *fakePool) ResolveCanonicalAnswer(_ context.Context, questionID int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.questions {
		if q.ID == questionID {
			return q.Answer, nil
		}
	}
	return "", repository.ErrQuestionNotFound
}

// fakeSink is an in-memory ResultSink that can be told to fail.
type fakeSink struct {
	mu        sync.Mutex
	failWith  error
	saves     int
	answers   []model.GradedAnswer
	qualities []model.QualityRecord
}

func (s *fakeSink) SaveGradedBatch(_ context.Context, answers []model.GradedAnswer, quality *model.QualityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.saves++
	s.answers = append(s.answers, answers...)
	s.qualities = append(s.qualities, *quality)
	return nil
}

func (s *fakeSink) ListQualityByUser(_ context.Context, userID int64, limit int) ([]model.QualityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.QualityRecord
	for _, q := range s.qualities {
		if q.UserID == userID && len(out) < limit {
			out = append(out, q)
		}
	}
	return out, nil
}

// noopAudit accepts every event.
type noopAudit struct{}

func (noopAudit) Record(context.Context, *model.AuditLog) error { return nil }

func testQuestions(n int, orgID string) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, model.Question{
			ID:      int64(i),
			Content: fmt.Sprintf("question %d", i),
			Answer:  fmt.Sprintf("answer%d", i),
			OrgID:   orgID,
			Status:  model.QuestionStatusActive,
		})
	}
	return qs
}

func newTestService(t *testing.T, pool QuestionPool, sink ResultSink) (*ExamSessionService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{
		SessionExpiry:   30 * time.Minute,
		SubmitLockLease: 30 * time.Second,
		ImageURLPrefix:  "http://cdn.test/images/",
	}

	svc := NewExamSessionService(
		pool,
		store.NewSessionStore(rdb),
		store.NewSubmissionLock(rdb),
		sink,
		noopAudit{},
		cfg,
		zerolog.Nop(),
	)
	return svc, mr
}

func submissionFor(session *model.ExamSession, answerFor func(id int64) string) *model.SubmitRequest {
	req := &model.SubmitRequest{PaperID: session.PaperID}
	for _, q := range session.Questions {
		req.Answers = append(req.Answers, model.SubmittedAnswer{
			QuestionID: q.QuestionID,
			Answer:     answerFor(q.QuestionID),
		})
	}
	return req
}

func correctAnswer(id int64) string { return fmt.Sprintf("answer%d", id) }

func TestDrawCreatesStoredSession(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	svc, mr := newTestService(t, pool, &fakeSink{})
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if session == nil {
		t.Fatal("expected a session")
	}
	if len(session.Questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(session.Questions))
	}
	if session.PaperID == "" || strings.Contains(session.PaperID, "-") {
		t.Fatalf("unexpected paper id %q", session.PaperID)
	}

	seen := make(map[int64]struct{})
	for _, q := range session.Questions {
		if _, dup := seen[q.QuestionID]; dup {
			t.Fatalf("duplicate question id %d in session", q.QuestionID)
		}
		seen[q.QuestionID] = struct{}{}
	}

	key := config.CacheKey.ExamSessionKey("org1", session.PaperID)
	if !mr.Exists(key) {
		t.Fatalf("expected session key %q in store", key)
	}
	ttl := mr.TTL(key)
	if ttl <= 0 || ttl > 30*time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestDrawEmptyPool(t *testing.T) {
	svc, _ := newTestService(t, &fakePool{}, &fakeSink{})

	session, err := svc.Draw(context.Background(), 7, "org1", 5)
	if err != nil {
		t.Fatalf("draw against empty pool must not error, got %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session, got %+v", session)
	}
}

func TestDrawSystemScopeVisibleToEveryOrg(t *testing.T) {
	pool := &fakePool{questions: testQuestions(3, config.SystemOrgID)}
	svc, _ := newTestService(t, pool, &fakeSink{})

	session, err := svc.Draw(context.Background(), 7, "org9", 3)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	if session == nil || len(session.Questions) != 3 {
		t.Fatalf("expected system-scope questions to be drawable, got %+v", session)
	}
}

func TestDrawFailsWhenStoreUnavailable(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	svc, mr := newTestService(t, pool, &fakeSink{})

	mr.Close()

	_, err := svc.Draw(context.Background(), 7, "org1", 5)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedrawDisjointFromOldSession(t *testing.T) {
	pool := &fakePool{questions: testQuestions(10, "org1")}
	svc, mr := newTestService(t, pool, &fakeSink{})
	ctx := context.Background()

	old, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || old == nil {
		t.Fatalf("draw: %v", err)
	}
	oldIDs := old.QuestionIDSet()

	fresh, err := svc.Redraw(ctx, 7, old.PaperID, "org1", 5)
	if err != nil {
		t.Fatalf("redraw: %v", err)
	}
	if fresh == nil {
		t.Fatal("expected a new session")
	}
	if fresh.PaperID == old.PaperID {
		t.Fatal("redraw must issue a new paper id")
	}
	for _, q := range fresh.Questions {
		if _, clash := oldIDs[q.QuestionID]; clash {
			t.Fatalf("question %d appears in both old and new paper", q.QuestionID)
		}
	}

	if mr.Exists(config.CacheKey.ExamSessionKey("org1", old.PaperID)) {
		t.Fatal("old session must be deleted on redraw")
	}
	if !mr.Exists(config.CacheKey.ExamSessionKey("org1", fresh.PaperID)) {
		t.Fatal("new session must be stored")
	}
}

func TestRedrawValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakePool{}, &fakeSink{})
	ctx := context.Background()

	cases := []struct {
		name    string
		paperID string
		orgID   string
		count   int
	}{
		{"blank paper id", "  ", "org1", 5},
		{"blank org id", "paper", " ", 5},
		{"zero count", "paper", "org1", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Redraw(ctx, 7, tc.paperID, tc.orgID, tc.count)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRedrawMissingOldSessionStillDraws(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	svc, _ := newTestService(t, pool, &fakeSink{})

	fresh, err := svc.Redraw(context.Background(), 7, "nosuchpaper", "org1", 5)
	if err != nil {
		t.Fatalf("redraw with absent old session: %v", err)
	}
	if fresh == nil || len(fresh.Questions) != 5 {
		t.Fatalf("expected a full fresh paper, got %+v", fresh)
	}
}

func TestSubmitGradesAndPersists(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	sink := &fakeSink{}
	svc, mr := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}

	// Answer three correctly, two wrong.
	wrong := map[int64]bool{2: true, 4: true}
	req := submissionFor(session, func(id int64) string {
		if wrong[id] {
			return "not even close"
		}
		return correctAnswer(id)
	})

	result, err := svc.Submit(ctx, 7, "org1", req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 60 {
		t.Fatalf("expected score 60, got %d", result.Score)
	}
	if len(result.Results) != 5 {
		t.Fatalf("expected 5 per-question results, got %d", len(result.Results))
	}
	for _, r := range result.Results {
		if r.Correct == wrong[r.QuestionID] {
			t.Fatalf("question %d correctness flipped", r.QuestionID)
		}
	}

	if sink.saves != 1 || len(sink.answers) != 5 {
		t.Fatalf("expected one batch of 5 answers, got saves=%d answers=%d", sink.saves, len(sink.answers))
	}
	q := sink.qualities[0]
	if q.Score != 60 || q.PaperID != session.PaperID || q.UserID != 7 {
		t.Fatalf("unexpected quality record %+v", q)
	}
	if !strings.Contains(q.UsedTime, ":") {
		t.Fatalf("used time not formatted: %q", q.UsedTime)
	}

	// Session is consumed: the key is gone and a second submit sees expiry.
	if mr.Exists(config.CacheKey.ExamSessionKey("org1", session.PaperID)) {
		t.Fatal("session must be deleted after grading")
	}
	if _, err := svc.Submit(ctx, 7, "org1", req); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired on resubmission, got %v", err)
	}
}

func TestSubmitConsistencyEnforcement(t *testing.T) {
	pool := &fakePool{questions: testQuestions(6, "org1")}
	sink := &fakeSink{}
	svc, _ := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}

	full := submissionFor(session, correctAnswer)

	subset := &model.SubmitRequest{PaperID: session.PaperID, Answers: full.Answers[:3]}

	superset := &model.SubmitRequest{PaperID: session.PaperID}
	superset.Answers = append(superset.Answers, full.Answers...)
	superset.Answers = append(superset.Answers, model.SubmittedAnswer{QuestionID: 999, Answer: "x"})

	foreign := submissionFor(session, correctAnswer)
	foreign.Answers[0].QuestionID = 999

	for _, tc := range []struct {
		name string
		req  *model.SubmitRequest
	}{
		{"strict subset", subset},
		{"strict superset", superset},
		{"foreign id", foreign},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, 7, "org1", tc.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	if sink.saves != 0 {
		t.Fatalf("no partial grades may be persisted, got %d saves", sink.saves)
	}
}

func TestSubmitRejectsBlankAnswerBeforeLocking(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	svc, mr := newTestService(t, pool, &fakeSink{})
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}

	req := submissionFor(session, func(id int64) string {
		if id == 3 {
			return "   "
		}
		return correctAnswer(id)
	})

	_, err = svc.Submit(ctx, 7, "org1", req)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if mr.Exists(config.CacheKey.SubmitLockKey(session.PaperID, 7)) {
		t.Fatal("a doomed submission must not leave a lock behind")
	}
	// The session survives a rejected submission.
	if !mr.Exists(config.CacheKey.ExamSessionKey("org1", session.PaperID)) {
		t.Fatal("session must survive a validation rejection")
	}
}

func TestSubmitExpiredSession(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	svc, mr := newTestService(t, pool, &fakeSink{})
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}

	mr.FastForward(31 * time.Minute)

	req := submissionFor(session, correctAnswer)
	if _, err := svc.Submit(ctx, 7, "org1", req); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSubmitForgedPaperIDLooksExpired(t *testing.T) {
	svc, _ := newTestService(t, &fakePool{questions: testQuestions(5, "org1")}, &fakeSink{})

	req := &model.SubmitRequest{
		PaperID: "forgedpaperid",
		Answers: []model.SubmittedAnswer{{QuestionID: 1, Answer: "a"}},
	}
	if _, err := svc.Submit(context.Background(), 7, "org1", req); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("forged paper id must be indistinguishable from expiry, got %v", err)
	}
}

func TestSubmitConcurrentDuplicate(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	sink := &fakeSink{}
	svc, _ := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}
	req := submissionFor(session, correctAnswer)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(ctx, 7, "org1", req)
		}(i)
	}
	wg.Wait()

	var successes, duplicates, expired int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateSubmission):
			duplicates++
		case errors.Is(err, ErrSessionExpired):
			// A loser that arrived after the winner already deleted the
			// session sees expiry; that is the documented terminal state.
			expired++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Fatalf("exactly one grading must succeed, got %d (dup=%d expired=%d)", successes, duplicates, expired)
	}
	if sink.saves != 1 {
		t.Fatalf("exactly one batch must be persisted, got %d", sink.saves)
	}
}

func TestSubmitCleanupOnPersistenceFailure(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	sink := &fakeSink{failWith: errors.New("disk on fire")}
	svc, mr := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}
	req := submissionFor(session, correctAnswer)

	_, err = svc.Submit(ctx, 7, "org1", req)
	if !errors.Is(err, ErrPersistFailed) {
		t.Fatalf("expected ErrPersistFailed, got %v", err)
	}

	// Cleanup must have run: lock released, session deleted.
	if mr.Exists(config.CacheKey.SubmitLockKey(session.PaperID, 7)) {
		t.Fatal("lock must be released after a failed persist")
	}
	if mr.Exists(config.CacheKey.ExamSessionKey("org1", session.PaperID)) {
		t.Fatal("session must be deleted after a failed persist")
	}

	// A follow-up submit sees expiry, and a fresh draw is not blocked.
	if _, err := svc.Submit(ctx, 7, "org1", req); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after cleanup, got %v", err)
	}
	if _, err := svc.Draw(ctx, 7, "org1", 5); err != nil {
		t.Fatalf("draw after failed submit: %v", err)
	}
}

func TestSubmitScoresMissingCanonicalAnswerZero(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	sink := &fakeSink{}
	svc, _ := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}

	// Simulate a question deleted from the bank after the draw.
	pool.mu.Lock()
	pool.questions = pool.questions[1:]
	pool.mu.Unlock()

	req := submissionFor(session, correctAnswer)
	result, err := svc.Submit(ctx, 7, "org1", req)
	if err != nil {
		t.Fatalf("submit must survive a missing canonical answer: %v", err)
	}
	if result.Score != 80 {
		t.Fatalf("expected 80 (one question degraded to zero), got %d", result.Score)
	}
	for _, r := range result.Results {
		if r.QuestionID == 1 && r.Correct {
			t.Fatal("question with missing canonical answer must be incorrect")
		}
	}
	if len(sink.answers) != 5 {
		t.Fatalf("all 5 answers must still be persisted, got %d", len(sink.answers))
	}
}

func TestHistoryReturnsOwnRecords(t *testing.T) {
	pool := &fakePool{questions: testQuestions(5, "org1")}
	sink := &fakeSink{}
	svc, _ := newTestService(t, pool, sink)
	ctx := context.Background()

	session, err := svc.Draw(ctx, 7, "org1", 5)
	if err != nil || session == nil {
		t.Fatalf("draw: %v", err)
	}
	if _, err := svc.Submit(ctx, 7, "org1", submissionFor(session, correctAnswer)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	records, err := svc.History(ctx, 7, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 || records[0].Score != 100 {
		t.Fatalf("unexpected history %+v", records)
	}

	other, err := svc.History(ctx, 8, 10)
	if err != nil {
		t.Fatalf("history for other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected no records for another user, got %+v", other)
	}
}

func TestFormatUsedTime(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{42 * time.Second, "00:42"},
		{5*time.Minute + 7*time.Second, "05:07"},
		{61 * time.Minute, "61:00"},
		{-3 * time.Second, "00:00"},
	}
	for _, tc := range cases {
		if got := formatUsedTime(tc.d); got != tc.want {
			t.Errorf("formatUsedTime(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
