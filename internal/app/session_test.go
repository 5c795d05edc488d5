package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"knowledge-test-service/internal/app"
	"knowledge-test-service/internal/domain"
	"knowledge-test-service/internal/infra/memory"
)

func TestStartDrawsTwentyUniqueQuestions(t *testing.T) {
	ctx := context.Background()
	service := newTestService(pendingStatus(), &scriptedSubmitter{})
	nav := &navRecorder{}

	outcome, err := service.Start(ctx, "u1", nav)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if outcome.Decision != app.DecisionProceed {
		t.Fatalf("expected proceed, got %v", outcome.Decision)
	}
	set := outcome.Questions
	if len(set.Sections) != domain.SectionCount {
		t.Fatalf("expected %d sections, got %d", domain.SectionCount, len(set.Sections))
	}
	for i, group := range set.Sections {
		if len(group) != domain.QuestionsPerSection {
			t.Fatalf("section %d: expected %d questions, got %d", i+1, domain.QuestionsPerSection, len(group))
		}
	}
	if len(set.Flat) != domain.TotalQuestions {
		t.Fatalf("expected %d flat questions, got %d", domain.TotalQuestions, len(set.Flat))
	}
	seen := make(map[int]bool)
	for _, q := range set.Flat {
		if seen[q.ID] {
			t.Fatalf("question id %d drawn twice", q.ID)
		}
		seen[q.ID] = true
	}
	if nav.refreshes != 1 {
		t.Fatalf("expected one navigation refresh, got %d", nav.refreshes)
	}
}

func TestStartFailsFastOnShortSection(t *testing.T) {
	ctx := context.Background()
	sections := domain.BuiltinSections()
	sections[2].Questions = sections[2].Questions[:3]

	bank := memory.NewBankRepository(memory.NewStaticBankLoader(sections), time.Minute)
	service := app.NewTestService(memory.NewSessionStore(), bank, fixedStatus{pendingStatus()}, &scriptedSubmitter{}, app.Options{})

	_, err := service.Start(ctx, "u1", &navRecorder{})
	if !errors.Is(err, domain.ErrSectionTooSmall) {
		t.Fatalf("expected section pool error, got %v", err)
	}
}

func TestCooldownGate(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	service := newTestService(domain.AccountStatus{
		State:         domain.StateTestFail,
		NextTestEpoch: now + 3600,
		LastTestEpoch: now - 86400,
	}, &scriptedSubmitter{})

	outcome, err := service.Start(ctx, "u1", &navRecorder{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if outcome.Decision != app.DecisionCooldown {
		t.Fatalf("expected cooldown, got %v", outcome.Decision)
	}
	if outcome.NextTestAt == "" || outcome.LastTestAt == "" {
		t.Fatalf("expected both formatted timestamps, got %q / %q", outcome.NextTestAt, outcome.LastTestAt)
	}
	if len(outcome.Questions.Flat) != 0 {
		t.Fatalf("cooldown must not draw questions")
	}
}

func TestElapsedCooldownProceeds(t *testing.T) {
	ctx := context.Background()
	now := time.Now().Unix()

	service := newTestService(domain.AccountStatus{
		State:         domain.StateTestFail,
		NextTestEpoch: now - 10,
		LastTestEpoch: now - 86400,
	}, &scriptedSubmitter{})

	outcome, err := service.Start(ctx, "u1", &navRecorder{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if outcome.Decision != app.DecisionProceed {
		t.Fatalf("expected proceed after elapsed cooldown, got %v", outcome.Decision)
	}
	if len(outcome.Questions.Flat) != domain.TotalQuestions {
		t.Fatalf("expected a full drawn set")
	}
}

func TestIneligibleRedirects(t *testing.T) {
	ctx := context.Background()
	for _, state := range []domain.AccountState{domain.StateNone, domain.StateTestComplete, "something_else"} {
		service := newTestService(domain.AccountStatus{State: state}, &scriptedSubmitter{})
		nav := &navRecorder{}
		outcome, err := service.Start(ctx, "u1", nav)
		if err != nil {
			t.Fatalf("start failed for %q: %v", state, err)
		}
		if outcome.Decision != app.DecisionRedirect {
			t.Fatalf("expected redirect for %q, got %v", state, outcome.Decision)
		}
		if nav.refreshes != 0 {
			t.Fatalf("redirect must not refresh navigation")
		}
	}
}

func TestIncompleteSubmissionBlocked(t *testing.T) {
	ctx := context.Background()
	submitter := &scriptedSubmitter{}
	service := newTestService(pendingStatus(), submitter)

	outcome, err := service.Start(ctx, "u1", &navRecorder{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	flat := outcome.Questions.Flat

	// Leave two holes; the earlier one in flattened order must be reported.
	skipped := map[int]bool{flat[5].ID: true, flat[12].ID: true}
	for _, q := range flat {
		if skipped[q.ID] {
			continue
		}
		if err := service.Answer("u1", q.ID, q.CorrectAnswer); err != nil {
			t.Fatalf("answer %d: %v", q.ID, err)
		}
	}

	sub, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !sub.Incomplete {
		t.Fatalf("expected incomplete outcome, got %+v", sub)
	}
	if sub.FirstUnanswered != flat[5].ID {
		t.Fatalf("expected first unanswered %d, got %d", flat[5].ID, sub.FirstUnanswered)
	}
	if !strings.Contains(sub.Message, "20") {
		t.Fatalf("expected completeness message, got %q", sub.Message)
	}
	if submitter.calls != 0 {
		t.Fatalf("incomplete submission must not reach the submitter")
	}

	// The guard stays clear: completing the set makes submit acceptable.
	for id := range skipped {
		q := outcome.Questions.Index[id]
		if err := service.Answer("u1", id, q.CorrectAnswer); err != nil {
			t.Fatalf("answer %d: %v", id, err)
		}
	}
	sub, err = service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if sub.State != app.StateSubmittedPass {
		t.Fatalf("expected pass after completion, got %+v", sub)
	}
	if submitter.calls != 1 {
		t.Fatalf("expected exactly one submitter call, got %d", submitter.calls)
	}
}

func TestPassBoundaries(t *testing.T) {
	cases := []struct {
		correct int
		passed  bool
	}{
		{0, false},
		{13, false},
		{14, true},
		{20, true},
	}
	for _, tc := range cases {
		service := newTestService(pendingStatus(), &scriptedSubmitter{})
		outcome := mustStart(t, service, "u1")
		answerWithScore(t, service, "u1", outcome.Questions, tc.correct)

		sub, err := service.Submit(context.Background(), "u1", nil)
		if err != nil {
			t.Fatalf("submit (%d correct): %v", tc.correct, err)
		}
		if sub.Score != tc.correct {
			t.Fatalf("expected score %d, got %d", tc.correct, sub.Score)
		}
		if sub.Passed != tc.passed {
			t.Fatalf("score %d: expected passed=%v, got %v", tc.correct, tc.passed, sub.Passed)
		}
		wantState := app.StateSubmittedFail
		if tc.passed {
			wantState = app.StateSubmittedPass
		}
		if sub.State != wantState {
			t.Fatalf("score %d: unexpected state %v", tc.correct, sub.State)
		}
	}
}

func TestDuplicateSubmitIsNoop(t *testing.T) {
	ctx := context.Background()
	submitter := &scriptedSubmitter{}
	service := newTestService(pendingStatus(), submitter)
	outcome := mustStart(t, service, "u1")
	answerWithScore(t, service, "u1", outcome.Questions, 15)

	first, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if first.State != app.StateSubmittedPass || first.Score != 15 {
		t.Fatalf("expected pass with 15, got %+v", first)
	}
	if first.TakenAt == "" {
		t.Fatalf("expected a formatted attempt timestamp")
	}

	second, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("expected duplicate no-op, got %+v", second)
	}
	if submitter.calls != 1 {
		t.Fatalf("expected one submitter call, got %d", submitter.calls)
	}
}

func TestRateLimitedIsTerminal(t *testing.T) {
	ctx := context.Background()
	submitter := &scriptedSubmitter{errs: []error{
		&domain.SubmitError{Code: domain.CodeTestUnavailable, Message: "cooldown active"},
	}}
	service := newTestService(pendingStatus(), submitter)
	outcome := mustStart(t, service, "u1")
	answerWithScore(t, service, "u1", outcome.Questions, 20)

	sub, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if sub.State != app.StateRateLimited {
		t.Fatalf("expected rate limited, got %+v", sub)
	}
	if sub.Message == "" || sub.Score != 0 {
		t.Fatalf("rate limited outcome must carry the fixed message and no score, got %+v", sub)
	}

	// The guard stays set; a retry against the server cooldown is pointless.
	again, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !again.Duplicate {
		t.Fatalf("expected guard to swallow the retry, got %+v", again)
	}
	if submitter.calls != 1 {
		t.Fatalf("expected one submitter call, got %d", submitter.calls)
	}
}

func TestGenericErrorAllowsRetry(t *testing.T) {
	ctx := context.Background()
	submitter := &scriptedSubmitter{errs: []error{
		&domain.SubmitError{Code: "InternalServerError", Message: "X"},
	}}
	service := newTestService(pendingStatus(), submitter)
	outcome := mustStart(t, service, "u1")
	answerWithScore(t, service, "u1", outcome.Questions, 14)

	sub, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if sub.State != app.StateSubmissionError {
		t.Fatalf("expected submission error, got %+v", sub)
	}
	if sub.Message != "X" {
		t.Fatalf("expected server message verbatim, got %q", sub.Message)
	}

	retry, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retry.State != app.StateSubmittedPass || retry.Score != 14 {
		t.Fatalf("expected pass on retry, got %+v", retry)
	}
	if submitter.calls != 2 {
		t.Fatalf("expected two submitter calls, got %d", submitter.calls)
	}
}

func TestSubmitTimeoutIsRecoverable(t *testing.T) {
	ctx := context.Background()
	submitter := &hangingSubmitter{}
	bank := memory.NewBankRepository(memory.NewBuiltinBankLoader(), time.Minute)
	service := app.NewTestService(memory.NewSessionStore(), bank, fixedStatus{pendingStatus()}, submitter, app.Options{
		SubmitTimeout: 20 * time.Millisecond,
	})

	outcome := mustStart(t, service, "u1")
	answerWithScore(t, service, "u1", outcome.Questions, 20)

	sub, err := service.Submit(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if sub.State != app.StateSubmissionError {
		t.Fatalf("expected timeout to surface as submission error, got %+v", sub)
	}
}

func TestScenarioPendingPass(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAttemptStore(24 * time.Hour)
	bank := memory.NewBankRepository(memory.NewBuiltinBankLoader(), time.Minute)
	service := app.NewTestService(memory.NewSessionStore(), bank, store, store, app.Options{})
	nav := &navRecorder{}

	outcome, err := service.Start(ctx, "u1", nav)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	answerWithScore(t, service, "u1", outcome.Questions, 15)

	sub, err := service.Submit(ctx, "u1", nav)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !sub.Passed || sub.Score != 15 {
		t.Fatalf("expected pass with score 15, got %+v", sub)
	}
	if sub.TakenAt == "" {
		t.Fatalf("expected attempt timestamp from the store")
	}
	if nav.refreshes != 2 {
		t.Fatalf("expected navigation refresh at start and after result, got %d", nav.refreshes)
	}

	// A passed account no longer reaches the test.
	service.End("u1")
	next, err := service.Start(ctx, "u1", &navRecorder{})
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if next.Decision != app.DecisionRedirect {
		t.Fatalf("expected redirect after pass, got %v", next.Decision)
	}
}

func TestRefreshSignalsFollowCaller(t *testing.T) {
	ctx := context.Background()
	service := newTestService(pendingStatus(), &scriptedSubmitter{})

	first := &navRecorder{}
	if _, err := service.Start(ctx, "u1", first); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// A reconnect reuses the session but signals its own navigator.
	second := &navRecorder{}
	outcome, err := service.Start(ctx, "u1", second)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if second.refreshes != 1 {
		t.Fatalf("expected refresh on the reconnecting caller, got %d", second.refreshes)
	}
	if first.refreshes != 1 {
		t.Fatalf("stale navigator must not receive further refreshes, got %d", first.refreshes)
	}

	answerWithScore(t, service, "u1", outcome.Questions, 20)
	if _, err := service.Submit(ctx, "u1", second); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if second.refreshes != 2 || first.refreshes != 1 {
		t.Fatalf("result refresh routed to the wrong caller: first=%d second=%d", first.refreshes, second.refreshes)
	}
}

// helpers

func pendingStatus() domain.AccountStatus {
	return domain.AccountStatus{State: domain.StateTestPending}
}

func newTestService(status domain.AccountStatus, submitter app.ResultSubmitter) *app.TestService {
	bank := memory.NewBankRepository(memory.NewBuiltinBankLoader(), 5*time.Minute)
	return app.NewTestService(memory.NewSessionStore(), bank, fixedStatus{status}, submitter, app.Options{})
}

func mustStart(t *testing.T, service *app.TestService, userID string) app.StartOutcome {
	t.Helper()
	outcome, err := service.Start(context.Background(), userID, &navRecorder{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if outcome.Decision != app.DecisionProceed {
		t.Fatalf("expected proceed, got %v", outcome.Decision)
	}
	return outcome
}

// answerWithScore answers every question, the first correct ones correctly
// and the rest wrong.
func answerWithScore(t *testing.T, service *app.TestService, userID string, set domain.QuestionSet, correct int) {
	t.Helper()
	for i, q := range set.Flat {
		answer := q.CorrectAnswer
		if i >= correct {
			answer = !q.CorrectAnswer
		}
		if err := service.Answer(userID, q.ID, answer); err != nil {
			t.Fatalf("answer %d: %v", q.ID, err)
		}
	}
}

type fixedStatus struct {
	status domain.AccountStatus
}

func (f fixedStatus) AccountStatus(context.Context, string) (domain.AccountStatus, error) {
	return f.status, nil
}

// scriptedSubmitter consumes errs one per call; a nil entry or an exhausted
// list confirms the attempt.
type scriptedSubmitter struct {
	calls int
	errs  []error
}

func (s *scriptedSubmitter) SubmitAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return domain.Attempt{}, err
		}
	}
	attempt.ID = "attempt-1"
	attempt.TakenEpoch = 1700000000
	return attempt, nil
}

type hangingSubmitter struct{}

func (hangingSubmitter) SubmitAttempt(ctx context.Context, _ domain.Attempt) (domain.Attempt, error) {
	<-ctx.Done()
	return domain.Attempt{}, ctx.Err()
}

type navRecorder struct {
	refreshes int
}

func (n *navRecorder) RefreshNavigation() { n.refreshes++ }
