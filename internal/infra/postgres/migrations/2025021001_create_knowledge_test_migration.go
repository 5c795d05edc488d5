package migrations

import (
	"context"
	_ "embed"

	"knowledge-test-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_questions.sql
var createQuestionsSQL string

//go:embed 0002_create_attempts.sql
var createAttemptsSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			if _, err := db.Exec(createQuestionsSQL); err != nil {
				return err
			}
			return seedQuestions(ctx, db)
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`DROP TABLE IF EXISTS questions`)
			return err
		},
	)
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createAttemptsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`DROP TABLE IF EXISTS attempts`)
			return err
		},
	)
}

// seedQuestions fills an empty questions table with the built-in bank so a
// fresh deployment can serve the test before the real content is imported.
func seedQuestions(ctx context.Context, db *bun.DB) error {
	for _, section := range domain.BuiltinSections() {
		for _, q := range section.Questions {
			_, err := db.ExecContext(ctx,
				`INSERT INTO questions (id, category, prompt, tooltip, correct_answer) VALUES (?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
				q.ID, q.Category, q.Prompt, q.Tooltip, q.CorrectAnswer)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
