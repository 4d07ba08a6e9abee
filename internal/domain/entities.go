package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrSessionNotFound      = errors.New("session not found")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInvalidState         = errors.New("invalid state")
	ErrConflict             = errors.New("concurrent modification")
	ErrPersistence          = errors.New("persistence failure")
	ErrClassification       = errors.New("classification failure")
	ErrInternal             = errors.New("internal error")
)

// Phase enumerates the interview lifecycle. Transitions are monotonic:
// introduction -> questioning -> final_questions -> completed.
type Phase string

const (
	PhaseIntroduction   Phase = "introduction"
	PhaseQuestioning    Phase = "questioning"
	PhaseFinalQuestions Phase = "final_questions"
	PhaseCompleted      Phase = "completed"
)

// phaseRank orders phases for the monotonicity check.
func phaseRank(p Phase) int {
	switch p {
	case PhaseIntroduction:
		return 0
	case PhaseQuestioning:
		return 1
	case PhaseFinalQuestions:
		return 2
	case PhaseCompleted:
		return 3
	default:
		return -1
	}
}

// CanTransition reports whether moving from p to next preserves phase monotonicity.
func (p Phase) CanTransition(next Phase) bool {
	a, b := phaseRank(p), phaseRank(next)
	return a >= 0 && b >= 0 && b >= a
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool { return phaseRank(p) >= 0 }

// TurnType enumerates conversation turn authorship.
const (
	TurnAI   = "ai"
	TurnUser = "user"
)

// InterviewState is the per-application session record.
// Invariants: ActualQuestionsAsked <= TotalQuestions; a category appears in
// CompletedCategories exactly once, when its quota of counted questions is
// met; ClarificationRequests never decreases and is disjoint from
// ActualQuestionsAsked; Phase never regresses.
type InterviewState struct {
	ApplicationID            string
	Phase                    Phase
	CurrentCategory          string
	CurrentQuestionIndex     int
	ActualQuestionsAsked     int
	TotalQuestions           int
	CompletedCategories      []string
	ClarificationRequests    int
	WaitingForFinalQuestions bool
	// Version supports optimistic concurrency on save; incremented per write.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CategoryCompleted reports whether the named category has reached its quota.
func (s InterviewState) CategoryCompleted(category string) bool {
	for _, c := range s.CompletedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ConversationTurn is one immutable entry in a session transcript.
// Seq defines the transcript order; it is assigned by the store on append.
type ConversationTurn struct {
	MessageID       string
	ApplicationID   string
	Seq             int64
	Type            string
	Content         string
	Phase           Phase
	QuestionIndex   int
	QuestionID      string
	CategoryType    string
	IsRepeat        bool
	IsClarification bool
	CreatedAt       time.Time
}

// QuestionMode enumerates where question text comes from.
const (
	QuestionModeManual    = "manual"
	QuestionModeAutomatic = "automatic"
)

// CategoryConfig is one category quota inside a question plan.
type CategoryConfig struct {
	Type              string
	NumberOfQuestions int
}

// Question is a pre-authored question used in manual mode.
type Question struct {
	ID       string
	Category string
	Text     string
}

// QuestionPlan is the read-only per-application interview configuration.
// The sum of category quotas is the operational source of truth for
// completion even when TotalQuestions disagrees.
type QuestionPlan struct {
	ApplicationID   string
	CategoryConfigs []CategoryConfig
	TotalQuestions  int
	Questions       []Question
	DifficultyLevel string
	QuestionMode    string
}

// QuotaSum returns the sum of category quotas.
func (p QuestionPlan) QuotaSum() int {
	n := 0
	for _, c := range p.CategoryConfigs {
		if c.NumberOfQuestions > 0 {
			n += c.NumberOfQuestions
		}
	}
	return n
}

// Validate checks the plan is usable: at least one category with a positive
// quota overall and no malformed category entries.
func (p QuestionPlan) Validate() error {
	if len(p.CategoryConfigs) == 0 {
		return ErrInvalidConfiguration
	}
	if p.QuotaSum() == 0 {
		return ErrInvalidConfiguration
	}
	for _, c := range p.CategoryConfigs {
		if c.Type == "" || c.NumberOfQuestions < 0 {
			return ErrInvalidConfiguration
		}
	}
	return nil
}

// QuestionsFor returns the authored questions for a category, in plan order.
func (p QuestionPlan) QuestionsFor(category string) []Question {
	var out []Question
	for _, q := range p.Questions {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out
}

// MonitoringKind enumerates snapshot sources.
const (
	MonitoringCamera = "camera"
	MonitoringScreen = "screen"
)

// Snapshot is one stored monitoring capture (still frame or video chunk).
type Snapshot struct {
	ID            string
	ApplicationID string
	Kind          string
	MIME          string
	Data          []byte
	Size          int64
	CreatedAt     time.Time
}

// Classification is the deterministic verdict for a candidate reply.
type Classification struct {
	IsClarification    bool
	IsFinalQuestionsNo bool
	MatchedPhrase      string
}

// Repositories (ports)

//go:generate mockery --name=SessionRepository --with-expecter --filename=session_repository_mock.go
//go:generate mockery --name=PlanRepository --with-expecter --filename=plan_repository_mock.go
//go:generate mockery --name=SnapshotRepository --with-expecter --filename=snapshot_repository_mock.go
//go:generate mockery --name=SessionLocker --with-expecter --filename=session_locker_mock.go
//go:generate mockery --name=EventPublisher --with-expecter --filename=event_publisher_mock.go
//go:generate mockery --name=QuestionGenerator --with-expecter --filename=question_generator_mock.go

type SessionRepository interface {
	// Create inserts a fresh state; an existing row for the application is ErrConflict.
	Create(ctx Context, s InterviewState, turns []ConversationTurn) error
	// Get loads the state; missing row is ErrSessionNotFound.
	Get(ctx Context, applicationID string) (InterviewState, error)
	// Update writes s guarded by s.Version; a stale version is ErrConflict.
	// The supplied turns are appended in the same transaction.
	Update(ctx Context, s InterviewState, turns []ConversationTurn) error
	// History returns all turns in insertion order.
	History(ctx Context, applicationID string) ([]ConversationTurn, error)
	// LastAITurn returns the most recent AI turn, used on resume.
	LastAITurn(ctx Context, applicationID string) (ConversationTurn, error)
}

type PlanRepository interface {
	// Get loads the question plan for an application; missing is ErrSessionNotFound.
	Get(ctx Context, applicationID string) (QuestionPlan, error)
}

type SnapshotRepository interface {
	Create(ctx Context, s Snapshot) (string, error)
	CountByKind(ctx Context, applicationID, kind string) (int64, error)
}

// SessionLocker (port) serializes state transitions per application.
// Acquire fails with ErrConflict while another transition is in flight.
type SessionLocker interface {
	Acquire(ctx Context, applicationID string) (release func(), err error)
}

// EventPublisher (port) emits interview lifecycle events. Publish failures
// must not fail the calling operation.
type EventPublisher interface {
	PublishSessionEvent(ctx Context, ev SessionEvent) error
}

// SessionEvent is the lifecycle payload published to the events topic.
type SessionEvent struct {
	Event          string    `json:"event"`
	ApplicationID  string    `json:"application_id"`
	Phase          Phase     `json:"phase"`
	QuestionsAsked int       `json:"questions_asked"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// QuestionGenerator (port) produces interviewer-facing text. Implementations
// may call an LLM; failures fall back to deterministic templates so the state
// machine never blocks on a provider.
type QuestionGenerator interface {
	Greeting(ctx Context, plan QuestionPlan) (string, error)
	NextQuestion(ctx Context, plan QuestionPlan, category string, index int) (string, error)
	Rephrase(ctx Context, plan QuestionPlan, category, original string) (string, error)
	FinalQuestionsInvite(ctx Context, plan QuestionPlan) (string, error)
	Closing(ctx Context, plan QuestionPlan) (string, error)
}

// ClassifierDelegate (port) is an optional richer-NLU fallback consulted only
// when the rule table is inconclusive.
type ClassifierDelegate interface {
	ClassifyReply(ctx Context, text string) (Classification, error)
}

// Context is an alias so usecases stay decoupled from adapter packages.
type Context = context.Context
