package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/traincenter/traincenter-backend/internal/model"
)

// ErrQuestionNotFound is returned when a canonical answer cannot be resolved.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionRepository is the read-only query surface over the question bank.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// DrawRandom returns up to count active questions visible under any of the
// given org scopes, in random order with no duplicates. An empty result is
// not an error; callers treat it as "no session created".
func (r *QuestionRepository) DrawRandom(ctx context.Context, orgScopes []string, count int) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, question_content, COALESCE(question_img, ''), answer, org_id
		 FROM train_question
		 WHERE status = $1 AND org_id = ANY($2)
		 ORDER BY random()
		 LIMIT $3`,
		model.QuestionStatusActive, orgScopes, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// DrawRandomExcluding behaves like DrawRandom but guarantees none of the
// returned IDs appear in excludeIDs. A short result (remaining pool smaller
// than count) is returned as-is; the caller decides whether it is acceptable.
func (r *QuestionRepository) DrawRandomExcluding(ctx context.Context, orgScopes []string, excludeIDs []int64, count int) ([]model.Question, error) {
	if len(excludeIDs) == 0 {
		return r.DrawRandom(ctx, orgScopes, count)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT question_id, question_content, COALESCE(question_img, ''), answer, org_id
		 FROM train_question
		 WHERE status = $1 AND org_id = ANY($2) AND question_id <> ALL($3)
		 ORDER BY random()
		 LIMIT $4`,
		model.QuestionStatusActive, orgScopes, excludeIDs, count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// ResolveCanonicalAnswer returns the canonical answer string of one active
// question, or ErrQuestionNotFound.
func (r *QuestionRepository) ResolveCanonicalAnswer(ctx context.Context, questionID int64) (string, error) {
	var answer string
	err := r.pool.QueryRow(ctx,
		`SELECT answer FROM train_question WHERE question_id = $1 AND status = $2`,
		questionID, model.QuestionStatusActive,
	).Scan(&answer)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrQuestionNotFound
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

// Create inserts a new question. Used by seeding tools; the exam core itself
// never writes to the question bank.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO train_question (question_content, question_img, answer, org_id, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING question_id`,
		q.Content, q.ImagePath, q.Answer, q.OrgID, q.Status,
	).Scan(&q.ID)
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Content, &q.ImagePath, &q.Answer, &q.OrgID); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
