package memory

import (
	"context"
	"sync"
	"time"

	"knowledge-test-service/internal/domain"
	"github.com/google/uuid"
)

// AttemptStore keeps scored attempts in memory and serves both collaborator
// roles derived from them: the account status snapshot and the result
// submitter with its server-side retest cooldown.
type AttemptStore struct {
	cooldown time.Duration
	clock    func() time.Time

	mu       sync.Mutex
	attempts map[string][]domain.Attempt
}

func NewAttemptStore(cooldown time.Duration) *AttemptStore {
	return NewAttemptStoreWithClock(cooldown, time.Now)
}

// NewAttemptStoreWithClock allows deterministic timestamps in tests.
func NewAttemptStoreWithClock(cooldown time.Duration, clock func() time.Time) *AttemptStore {
	return &AttemptStore{
		cooldown: cooldown,
		clock:    clock,
		attempts: make(map[string][]domain.Attempt),
	}
}

// AccountStatus derives eligibility from the recorded attempts: no attempts
// means pending, a failed last attempt carries the cooldown epochs, a passed
// one closes the test for good.
func (s *AttemptStore) AccountStatus(_ context.Context, userID string) (domain.AccountStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	attempts := s.attempts[userID]
	if len(attempts) == 0 {
		return domain.AccountStatus{State: domain.StateTestPending}, nil
	}
	last := attempts[len(attempts)-1]
	if last.Passed {
		return domain.AccountStatus{State: domain.StateTestComplete, LastTestEpoch: last.TakenEpoch}, nil
	}
	return domain.AccountStatus{
		State:         domain.StateTestFail,
		NextTestEpoch: last.TakenEpoch + int64(s.cooldown/time.Second),
		LastTestEpoch: last.TakenEpoch,
	}, nil
}

// SubmitAttempt enforces the retest cooldown, then stamps and records the
// attempt.
func (s *AttemptStore) SubmitAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if attempts := s.attempts[attempt.UserID]; len(attempts) > 0 {
		last := attempts[len(attempts)-1]
		if last.Passed || now.Unix() < last.TakenEpoch+int64(s.cooldown/time.Second) {
			return domain.Attempt{}, &domain.SubmitError{
				Code:    domain.CodeTestUnavailable,
				Message: "test cannot be taken again yet",
			}
		}
	}

	attempt.ID = uuid.NewString()
	attempt.TakenEpoch = now.Unix()
	s.attempts[attempt.UserID] = append(s.attempts[attempt.UserID], attempt)
	return attempt, nil
}
