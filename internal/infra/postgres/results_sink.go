package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"live-quiz-service/internal/domain"
)

type resultRow struct {
	bun.BaseModel `bun:"table:quiz_results,alias:r"`

	ID             string                `bun:"id,pk"`
	SessionID      string                `bun:"session_id,notnull"`
	QuizID         string                `bun:"quiz_id,notnull"`
	AdminID        string                `bun:"admin_id,notnull"`
	TotalQuestions int                   `bun:"total_questions,notnull"`
	StartedAt      time.Time             `bun:"started_at,nullzero"`
	FinishedAt     time.Time             `bun:"finished_at,notnull"`
	Answers        []domain.AnswerRecord `bun:"answers,type:jsonb"`
}

type resultEntryRow struct {
	bun.BaseModel `bun:"table:quiz_result_entries,alias:e"`

	ResultID    string `bun:"result_id,pk"`
	UserID      string `bun:"user_id,pk"`
	DisplayName string `bun:"display_name"`
	Rank        int    `bun:"rank"`
	Score       int    `bun:"score"`
	Correct     int    `bun:"correct"`
	Wrong       int    `bun:"wrong"`
	Declined    int    `bun:"declined"`
	LeftEarly   bool   `bun:"left_early"`
}

// ResultsSink writes finished sessions into quiz_results and quiz_result_entries.
type ResultsSink struct {
	db *bun.DB
}

func NewResultsSink(db *bun.DB) *ResultsSink {
	return &ResultsSink{db: db}
}

// OpenBun opens a bun handle over pgdriver for dsn.
func OpenBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// SaveResults stores one session atomically. A session already stored is left as is.
func (s *ResultsSink) SaveResults(ctx context.Context, result domain.SessionResult) error {
	row, entries := toRows(result)
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().Model(&row).On("CONFLICT (session_id) DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil
		}
		if len(entries) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&entries).Exec(ctx); err != nil {
			return fmt.Errorf("insert result entries: %w", err)
		}
		return nil
	})
}

// Scores reads back the stored standings of a session, best first.
func (s *ResultsSink) Scores(ctx context.Context, sessionID string) ([]domain.FinalScore, error) {
	var entries []resultEntryRow
	err := s.db.NewSelect().
		Model(&entries).
		Join("JOIN quiz_results AS r ON r.id = e.result_id").
		Where("r.session_id = ?", sessionID).
		Order("e.rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no results stored for %s", domain.ErrSessionNotFound, sessionID)
	}
	scores := make([]domain.FinalScore, 0, len(entries))
	for _, e := range entries {
		scores = append(scores, domain.FinalScore{
			UserID:      e.UserID,
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Correct:     e.Correct,
			Wrong:       e.Wrong,
			Declined:    e.Declined,
			Left:        e.LeftEarly,
		})
	}
	return scores, nil
}

func toRows(result domain.SessionResult) (resultRow, []resultEntryRow) {
	answers := result.Answers
	if answers == nil {
		answers = []domain.AnswerRecord{}
	}
	row := resultRow{
		ID:             result.ID,
		SessionID:      result.SessionID,
		QuizID:         result.QuizID,
		AdminID:        result.AdminID,
		TotalQuestions: result.TotalQuestions,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
		Answers:        answers,
	}
	entries := make([]resultEntryRow, 0, len(result.Scores))
	for i, score := range result.Scores {
		entries = append(entries, resultEntryRow{
			ResultID:    result.ID,
			UserID:      score.UserID,
			DisplayName: score.DisplayName,
			Rank:        i + 1,
			Score:       score.Score,
			Correct:     score.Correct,
			Wrong:       score.Wrong,
			Declined:    score.Declined,
			LeftEarly:   score.Left,
		})
	}
	return row, entries
}
