package app

import (
	"context"
	"time"

	"knowledge-test-service/internal/clock"
	"knowledge-test-service/internal/domain"
)

// SessionRepository abstracts how test sessions are stored per client.
type SessionRepository interface {
	GetOrCreate(userID string) *TestSession
	Get(userID string) (*TestSession, bool)
	Delete(userID string)
}

// StatusProvider returns the current account eligibility snapshot.
type StatusProvider interface {
	AccountStatus(ctx context.Context, userID string) (domain.AccountStatus, error)
}

// QuestionBank supplies the full categorized question pools.
type QuestionBank interface {
	Sections(ctx context.Context) ([]domain.Section, error)
}

// ResultSubmitter persists a scored attempt. On success it returns the
// attempt with ID and TakenEpoch stamped; a *domain.SubmitError carries
// server-side rejections, including the retest cooldown.
type ResultSubmitter interface {
	SubmitAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
}

// Options tune the service; zero values select defaults.
type Options struct {
	PassMark      int
	SubmitTimeout time.Duration
	Formatter     *clock.Formatter
	Now           func() time.Time
}

const defaultSubmitTimeout = 10 * time.Second

// TestService runs the knowledge-test flow over its collaborators.
type TestService struct {
	sessions      SessionRepository
	bank          QuestionBank
	status        StatusProvider
	results       ResultSubmitter
	fmtr          *clock.Formatter
	passMark      int
	submitTimeout time.Duration
	now           func() time.Time
}

func NewTestService(sessions SessionRepository, bank QuestionBank, status StatusProvider, results ResultSubmitter, opts Options) *TestService {
	if opts.PassMark <= 0 {
		opts.PassMark = domain.DefaultPassMark
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.Formatter == nil {
		opts.Formatter = clock.MustFormatter()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TestService{
		sessions:      sessions,
		bank:          bank,
		status:        status,
		results:       results,
		fmtr:          opts.Formatter,
		passMark:      opts.PassMark,
		submitTimeout: opts.SubmitTimeout,
		now:           opts.Now,
	}
}

// Start fetches a fresh account status and runs the eligibility gate:
// pending proceeds, an elapsed fail cooldown proceeds, an active cooldown
// renders both timestamps, anything else redirects away. Proceeding draws a
// fresh randomized set and signals the navigation collaborator.
func (s *TestService) Start(ctx context.Context, userID string, nav Navigator) (StartOutcome, error) {
	status, err := s.status.AccountStatus(ctx, userID)
	if err != nil {
		return StartOutcome{}, err
	}

	switch gateDecision(status, s.now()) {
	case DecisionRedirect:
		return StartOutcome{Decision: DecisionRedirect}, nil
	case DecisionCooldown:
		return StartOutcome{
			Decision:   DecisionCooldown,
			NextTestAt: s.fmtr.FromEpoch(status.NextTestEpoch),
			LastTestAt: s.fmtr.FromEpoch(status.LastTestEpoch),
		}, nil
	}

	sections, err := s.bank.Sections(ctx)
	if err != nil {
		return StartOutcome{}, err
	}
	session := s.sessions.GetOrCreate(userID)
	set, err := session.draw(sections)
	if err != nil {
		return StartOutcome{}, err
	}
	refreshNav(nav)
	return StartOutcome{Decision: DecisionProceed, Questions: set}, nil
}

// Answer records one boolean answer for the session, last write wins.
func (s *TestService) Answer(userID string, questionID int, answer bool) error {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.answer(questionID, answer)
}

// Submit validates completeness, scores a snapshot, and pushes the attempt
// through the submitter under a timeout. The completion guard ensures at most
// one in-flight submission per attempt. A settled pass or fail signals the
// caller's navigator.
func (s *TestService) Submit(ctx context.Context, userID string, nav Navigator) (SubmitOutcome, error) {
	session, ok := s.sessions.Get(userID)
	if !ok {
		return SubmitOutcome{}, domain.ErrSessionNotFound
	}

	attempt, out, proceed, err := session.beginSubmit(s.passMark)
	if err != nil {
		return SubmitOutcome{}, err
	}
	if !proceed {
		return out, nil
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	confirmed, submitErr := s.results.SubmitAttempt(submitCtx, attempt)

	out = session.finishSubmit(confirmed, submitErr, s.fmtr)
	if out.State == StateSubmittedPass || out.State == StateSubmittedFail {
		refreshNav(nav)
	}
	return out, nil
}

func refreshNav(nav Navigator) {
	if nav != nil {
		nav.RefreshNavigation()
	}
}

// End discards the session when the client leaves the page.
func (s *TestService) End(userID string) {
	s.sessions.Delete(userID)
}

// gateDecision implements the eligibility branch on a fresh status snapshot.
func gateDecision(status domain.AccountStatus, now time.Time) Decision {
	switch status.State {
	case domain.StateTestPending:
		return DecisionProceed
	case domain.StateTestFail:
		if now.Unix() >= status.NextTestEpoch {
			return DecisionProceed
		}
		return DecisionCooldown
	default:
		return DecisionRedirect
	}
}
