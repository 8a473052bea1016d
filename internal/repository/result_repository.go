package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/traincenter/traincenter-backend/internal/model"
)

// ResultRepository is the persistence sink for graded submissions.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// SaveGradedBatch persists every graded answer plus the quality record in a
// single transaction. All-or-nothing: a failure leaves no partial rows.
func (r *ResultRepository) SaveGradedBatch(ctx context.Context, answers []model.GradedAnswer, quality *model.QualityRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO train_answer (paper_id, org_id, user_id, question_id, user_answer, score)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.PaperID, a.OrgID, a.UserID, a.QuestionID, a.UserAnswer, a.Score,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO train_quality (paper_id, user_id, org_id, score, start_time, end_time, used_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING quality_id`,
		quality.PaperID, quality.UserID, quality.OrgID, quality.Score,
		quality.StartTime, quality.EndTime, quality.UsedTime,
	).Scan(&quality.ID)
	if err != nil {
		return fmt.Errorf("insert quality: %w", err)
	}

	return tx.Commit(ctx)
}

// ListQualityByUser returns a user's graded papers, newest first.
func (r *ResultRepository) ListQualityByUser(ctx context.Context, userID int64, limit int) ([]model.QualityRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT quality_id, paper_id, user_id, org_id, score, start_time, end_time, used_time, created_at
		 FROM train_quality
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.QualityRecord
	for rows.Next() {
		var q model.QualityRecord
		if err := rows.Scan(&q.ID, &q.PaperID, &q.UserID, &q.OrgID, &q.Score,
			&q.StartTime, &q.EndTime, &q.UsedTime, &q.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, q)
	}
	return records, rows.Err()
}
