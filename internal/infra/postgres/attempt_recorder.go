package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"knowledge-test-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptRecorder persists scored attempts and derives the account status
// from the latest one. The retest cooldown is computed from taken_epoch.
type AttemptRecorder struct {
	pool     *pgxpool.Pool
	cooldown time.Duration
	clock    func() time.Time
}

func NewAttemptRecorder(pool *pgxpool.Pool, cooldown time.Duration) *AttemptRecorder {
	return &AttemptRecorder{pool: pool, cooldown: cooldown, clock: time.Now}
}

func (r *AttemptRecorder) AccountStatus(ctx context.Context, userID string) (domain.AccountStatus, error) {
	var (
		passed bool
		taken  int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT passed, taken_epoch FROM attempts WHERE user_id=$1 ORDER BY taken_epoch DESC LIMIT 1`,
		userID).Scan(&passed, &taken)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AccountStatus{State: domain.StateTestPending}, nil
	}
	if err != nil {
		return domain.AccountStatus{}, fmt.Errorf("load last attempt: %w", err)
	}
	if passed {
		return domain.AccountStatus{State: domain.StateTestComplete, LastTestEpoch: taken}, nil
	}
	return domain.AccountStatus{
		State:         domain.StateTestFail,
		NextTestEpoch: taken + int64(r.cooldown/time.Second),
		LastTestEpoch: taken,
	}, nil
}

func (r *AttemptRecorder) SubmitAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	status, err := r.AccountStatus(ctx, attempt.UserID)
	if err != nil {
		return domain.Attempt{}, err
	}
	now := r.clock()
	if status.State == domain.StateTestComplete ||
		(status.State == domain.StateTestFail && now.Unix() < status.NextTestEpoch) {
		return domain.Attempt{}, &domain.SubmitError{
			Code:    domain.CodeTestUnavailable,
			Message: "test cannot be taken again yet",
		}
	}

	attempt.ID = uuid.NewString()
	attempt.TakenEpoch = now.Unix()

	questions, err := json.Marshal(attempt.Questions)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("marshal attempt questions: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO attempts (id, user_id, score, passed, taken_epoch, questions) VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.ID, attempt.UserID, attempt.Score, attempt.Passed, attempt.TakenEpoch, questions)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return attempt, nil
}
