package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"hello-world-api/internal/domain"
)

const questionColumns = `id, quiz_id, kind, question, choices, correct_answer_index, created_at`

// QuestionReader loads question JSONB straight from Postgres.
type QuestionReader struct {
	pool *pgxpool.Pool
}

func NewQuestionReader(pool *pgxpool.Pool) *QuestionReader {
	return &QuestionReader{pool: pool}
}

func (r *QuestionReader) QuizQuestions(ctx context.Context, quizID int64) ([]*domain.QuizQuestion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+questionColumns+` FROM quiz_questions WHERE quiz_id=$1 ORDER BY id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []*domain.QuizQuestion
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

func (r *QuestionReader) QuizQuestion(ctx context.Context, quizID, questionID int64) (*domain.QuizQuestion, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM quiz_questions WHERE quiz_id=$1 AND id=$2`, quizID, questionID)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return q, err
}

func scanQuestion(row pgx.Row) (*domain.QuizQuestion, error) {
	var (
		q              domain.QuizQuestion
		kind           string
		choices, index []byte
	)
	if err := row.Scan(&q.ID, &q.QuizID, &kind, &q.Question, &choices, &index, &q.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.Kind = domain.QuestionKind(kind)
	if err := json.Unmarshal(choices, &q.Choices); err != nil {
		return nil, fmt.Errorf("unmarshal choices of question %d: %w", q.ID, err)
	}
	if err := json.Unmarshal(index, &q.CorrectAnswerIndex); err != nil {
		return nil, fmt.Errorf("unmarshal answer index of question %d: %w", q.ID, err)
	}
	return &q, nil
}
