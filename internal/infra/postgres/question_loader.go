package postgres

import (
	"context"
	"fmt"

	"knowledge-test-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads the question bank from Postgres, grouped by category
// in bank order.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadSections(ctx context.Context) ([]domain.Section, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT category, id, prompt, COALESCE(tooltip, ''), correct_answer FROM questions ORDER BY category, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var sections []domain.Section
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.Category, &q.ID, &q.Prompt, &q.Tooltip, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(sections) == 0 || sections[len(sections)-1].Category != q.Category {
			sections = append(sections, domain.Section{Category: q.Category})
		}
		last := &sections[len(sections)-1]
		last.Questions = append(last.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	if len(sections) == 0 {
		return nil, domain.ErrBankShape
	}
	return sections, nil
}
