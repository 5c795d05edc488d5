package redis

import (
	"context"
	"strconv"
	"time"

	"knowledge-test-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AttemptStore records the latest attempt per user in Redis and enforces the
// retest cooldown with an expiring key:
//
//	HSET kt:test:{userID}:last  score/status/taken_epoch
//	SET  kt:test:{userID}:cooldown 1 EX {cooldown}
//
// The cooldown key's TTL is the rate limit; its absence makes a failed user
// eligible again. Per-question detail is persisted by the Postgres recorder,
// not here.
type AttemptStore struct {
	client   *redis.Client
	cooldown time.Duration
	clock    func() time.Time
}

func NewAttemptStore(client *redis.Client, cooldown time.Duration) *AttemptStore {
	return &AttemptStore{client: client, cooldown: cooldown, clock: time.Now}
}

func (s *AttemptStore) AccountStatus(ctx context.Context, userID string) (domain.AccountStatus, error) {
	last, err := s.client.HGetAll(ctx, s.lastKey(userID)).Result()
	if err != nil {
		return domain.AccountStatus{}, err
	}
	if len(last) == 0 {
		return domain.AccountStatus{State: domain.StateTestPending}, nil
	}

	taken, _ := strconv.ParseInt(last["taken_epoch"], 10, 64)
	if last["status"] == "pass" {
		return domain.AccountStatus{State: domain.StateTestComplete, LastTestEpoch: taken}, nil
	}
	return domain.AccountStatus{
		State:         domain.StateTestFail,
		NextTestEpoch: taken + int64(s.cooldown/time.Second),
		LastTestEpoch: taken,
	}, nil
}

func (s *AttemptStore) SubmitAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	blocked, err := s.client.Exists(ctx, s.cooldownKey(attempt.UserID)).Result()
	if err != nil {
		return domain.Attempt{}, err
	}
	passed, err := s.client.HGet(ctx, s.lastKey(attempt.UserID), "status").Result()
	if err != nil && err != redis.Nil {
		return domain.Attempt{}, err
	}
	if blocked > 0 || passed == "pass" {
		return domain.Attempt{}, &domain.SubmitError{
			Code:    domain.CodeTestUnavailable,
			Message: "test cannot be taken again yet",
		}
	}

	attempt.ID = uuid.NewString()
	attempt.TakenEpoch = s.clock().Unix()

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.lastKey(attempt.UserID),
		"id", attempt.ID,
		"score", attempt.Score,
		"status", attempt.Status(),
		"taken_epoch", attempt.TakenEpoch,
	)
	pipe.Set(ctx, s.cooldownKey(attempt.UserID), "1", s.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Attempt{}, err
	}
	return attempt, nil
}

func (s *AttemptStore) lastKey(userID string) string {
	return "kt:test:" + userID + ":last"
}

func (s *AttemptStore) cooldownKey(userID string) string {
	return "kt:test:" + userID + ":cooldown"
}
