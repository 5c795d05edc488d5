package domain

// Fixed layout of the knowledge test.
const (
	SectionCount        = 5
	QuestionsPerSection = 4
	TotalQuestions      = SectionCount * QuestionsPerSection
	// DefaultPassMark is the minimum score that classifies an attempt as a pass.
	DefaultPassMark = 14
)

// AccountState gates whether a client may take the knowledge test.
type AccountState string

const (
	// StateTestPending means the client has not taken the test yet.
	StateTestPending AccountState = "knowledge_test_pending"
	// StateTestFail means the last attempt failed; retesting is allowed once the cooldown elapses.
	StateTestFail AccountState = "knowledge_test_fail"
	// StateTestComplete means a past attempt passed; the test page is no longer reachable.
	StateTestComplete AccountState = "knowledge_test_complete"
	// StateNone means the account carries no test status at all.
	StateNone AccountState = ""
)

// AccountStatus is the eligibility snapshot fetched fresh at session start.
type AccountStatus struct {
	State AccountState `json:"status"`
	// NextTestEpoch is when retesting becomes allowed again (seconds, fail state only).
	NextTestEpoch int64 `json:"next_test_epoch,omitempty"`
	// LastTestEpoch is when the most recent attempt was taken (seconds).
	LastTestEpoch int64 `json:"last_test_epoch,omitempty"`
}

// Question is a single true/false statement from the bank. Immutable once loaded.
type Question struct {
	Category      int    `json:"category"`
	ID            int    `json:"id"`
	Prompt        string `json:"question"`
	Tooltip       string `json:"tooltip,omitempty"`
	CorrectAnswer bool   `json:"-"`
}

// Section is one category's full question pool, in bank order.
type Section struct {
	Category  int
	Questions []Question
}

// QuestionSet is one attempt's drawn questions: QuestionsPerSection from each
// section, flattened in section order for scoring and first-unanswered lookup.
type QuestionSet struct {
	Sections [][]Question
	Flat     []Question
	Index    map[int]Question
}

// ResultQuestion is the scored record submitted for a single question.
type ResultQuestion struct {
	Category int    `json:"category"`
	ID       int    `json:"id"`
	Question string `json:"question"`
	Answer   int    `json:"answer"`
	Pass     int    `json:"pass"`
}

// Attempt is one scored test run. ID and TakenEpoch are stamped by the
// result submitter on success.
type Attempt struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Score      int              `json:"score"`
	Passed     bool             `json:"passed"`
	TakenEpoch int64            `json:"taken_epoch"`
	Questions  []ResultQuestion `json:"questions"`
}

// Status returns the wire status string for the attempt.
func (a Attempt) Status() string {
	if a.Passed {
		return "pass"
	}
	return "fail"
}
