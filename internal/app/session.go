package app

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"knowledge-test-service/internal/clock"
	"knowledge-test-service/internal/domain"
)

// Navigator is the page-chrome collaborator. The session signals it whenever
// the account status changed in a way the header link visibility depends on.
type Navigator interface {
	RefreshNavigation()
}

// SubmitState tracks one attempt through the submission state machine.
type SubmitState int

const (
	StateNotSubmitted SubmitState = iota
	StateSubmitting
	StateSubmittedPass
	StateSubmittedFail
	StateSubmissionError
	StateRateLimited
)

// Decision is the eligibility gate's verdict at session start.
type Decision int

const (
	// DecisionProceed draws questions and runs the test.
	DecisionProceed Decision = iota
	// DecisionCooldown shows the retest timestamps and nothing else.
	DecisionCooldown
	// DecisionRedirect leaves the test page entirely, without a message.
	DecisionRedirect
)

// StartOutcome is what the transport renders after the eligibility gate.
type StartOutcome struct {
	Decision  Decision
	Questions domain.QuestionSet
	// NextTestAt/LastTestAt are reference-timezone strings, cooldown only.
	NextTestAt string
	LastTestAt string
}

// SubmitOutcome is what the transport renders after a submit trigger.
type SubmitOutcome struct {
	State SubmitState
	// Duplicate marks a trigger swallowed by the completion guard.
	Duplicate bool
	// Incomplete marks a validation failure; FirstUnanswered is the scroll target.
	Incomplete      bool
	FirstUnanswered int
	Score           int
	Passed          bool
	TakenAt         string
	Message         string
}

const (
	msgPass        = "Congratulations, you have passed the test, our Customer Support will contact you shortly."
	msgFail        = "Sorry, you have failed the test, please try again after 24 hours."
	msgUnavailable = "The test is unavailable now, it can only be taken again on the next business day after your most recent attempt."
)

// TestSession owns all per-attempt state: the drawn set, collected answers
// and the submission state machine. Constructed fresh per attempt so nothing
// leaks across sessions. It deliberately holds no reference to the transport:
// a user may reconnect mid-attempt, and refresh signals must reach the
// connection that triggered them, not the one that created the session.
type TestSession struct {
	userID string
	rnd    *rand.Rand

	mu      sync.Mutex
	set     domain.QuestionSet
	answers map[int]bool
	state   SubmitState
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(userID string) *TestSession {
	return &TestSession{
		userID:  userID,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		answers: make(map[int]bool),
	}
}

// draw builds a fresh randomized question set and resets attempt state.
func (s *TestSession) draw(sections []domain.Section) (domain.QuestionSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, err := DrawQuestionSet(sections, s.rnd)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	s.set = set
	s.answers = make(map[int]bool)
	s.state = StateNotSubmitted
	return set, nil
}

// answer records one boolean answer, last write wins. Edits arriving after
// submission started are still recorded but scoring already ran on a snapshot.
func (s *TestSession) answer(id int, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set.Index == nil {
		return domain.ErrSessionNotStarted
	}
	if _, ok := s.set.Index[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.answers[id] = value
	return nil
}

// beginSubmit runs the completion guard and validation, and on success takes
// a scored snapshot and moves the state machine to submitting. proceed is
// false when the outcome should be rendered without calling the submitter.
func (s *TestSession) beginSubmit(passMark int) (domain.Attempt, SubmitOutcome, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set.Index == nil {
		return domain.Attempt{}, SubmitOutcome{}, false, domain.ErrSessionNotStarted
	}
	if s.state != StateNotSubmitted {
		return domain.Attempt{}, SubmitOutcome{State: s.state, Duplicate: true}, false, nil
	}
	if id, complete := s.firstUnansweredLocked(); !complete {
		return domain.Attempt{}, SubmitOutcome{
			State:           s.state,
			Incomplete:      true,
			FirstUnanswered: id,
			Message:         fmt.Sprintf("You need to finish all %d questions.", domain.TotalQuestions),
		}, false, nil
	}

	score, results := ScoreAttempt(s.set, s.answers)
	s.state = StateSubmitting
	return domain.Attempt{
		UserID:    s.userID,
		Score:     score,
		Passed:    score >= passMark,
		Questions: results,
	}, SubmitOutcome{State: StateSubmitting}, true, nil
}

// finishSubmit classifies the submitter's response and settles the state machine.
func (s *TestSession) finishSubmit(confirmed domain.Attempt, err error, fmtr *clock.Formatter) SubmitOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		var submitErr *domain.SubmitError
		if errors.As(err, &submitErr) && submitErr.RateLimited() {
			// The guard stays set: the server retest cooldown makes an
			// immediate retry pointless.
			s.state = StateRateLimited
			return SubmitOutcome{State: StateRateLimited, Message: msgUnavailable}
		}
		msg := err.Error()
		if errors.As(err, &submitErr) {
			msg = submitErr.Message
		}
		s.state = StateNotSubmitted
		return SubmitOutcome{State: StateSubmissionError, Message: msg}
	}

	if confirmed.Passed {
		s.state = StateSubmittedPass
	} else {
		s.state = StateSubmittedFail
	}
	out := SubmitOutcome{
		State:   s.state,
		Score:   confirmed.Score,
		Passed:  confirmed.Passed,
		TakenAt: fmtr.FromEpoch(confirmed.TakenEpoch),
		Message: msgFail,
	}
	if confirmed.Passed {
		out.Message = msgPass
	}
	return out
}

// firstUnansweredLocked walks the flattened section order and returns the
// first question ID with no recorded answer.
func (s *TestSession) firstUnansweredLocked() (int, bool) {
	for _, q := range s.set.Flat {
		if _, ok := s.answers[q.ID]; !ok {
			return q.ID, false
		}
	}
	return 0, true
}

// State reports the current submission state.
func (s *TestSession) State() SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
