package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
	"github.com/fairyhunter13/ai-interview-engine/pkg/textx"
)

// SessionService is the façade through which all callers drive an interview
// session: Initialize, ProcessResponse, Complete, GetState. All state lives
// in the repository; nothing is cached in process memory across calls.
type SessionService struct {
	Sessions   domain.SessionRepository
	Plans      domain.PlanRepository
	Locker     domain.SessionLocker
	Classifier Classifier
	Gen        domain.QuestionGenerator
	Events     domain.EventPublisher
}

// NewSessionService constructs a SessionService with its dependencies.
func NewSessionService(sessions domain.SessionRepository, plans domain.PlanRepository, locker domain.SessionLocker, classifier Classifier, gen domain.QuestionGenerator, events domain.EventPublisher) SessionService {
	return SessionService{Sessions: sessions, Plans: plans, Locker: locker, Classifier: classifier, Gen: gen, Events: events}
}

// SessionResult is the façade return envelope: the updated state plus the AI
// utterance the UI should render next.
type SessionResult struct {
	State InterviewStateView `json:"interview_state"`
	Reply string             `json:"response"`

	// Classification labels the processed reply ("clarification",
	// "decline" or "substantive") for metrics; empty for non-response
	// operations.
	Classification string `json:"-"`
}

// InterviewStateView is the JSON-serializable projection of InterviewState.
type InterviewStateView struct {
	ApplicationID              string   `json:"application_id"`
	CurrentPhase               string   `json:"current_phase"`
	CurrentCategory            string   `json:"current_category,omitempty"`
	ActualQuestionsAsked       int      `json:"actual_questions_asked"`
	TotalQuestions             int      `json:"total_questions"`
	CompletedCategories        []string `json:"completed_categories"`
	ClarificationRequests      int      `json:"clarification_requests"`
	IsWaitingForFinalQuestions bool     `json:"is_waiting_for_final_questions"`
}

// ViewOf projects a domain state into its API shape.
func ViewOf(s domain.InterviewState) InterviewStateView {
	cats := s.CompletedCategories
	if cats == nil {
		cats = []string{}
	}
	return InterviewStateView{
		ApplicationID:              s.ApplicationID,
		CurrentPhase:               string(s.Phase),
		CurrentCategory:            s.CurrentCategory,
		ActualQuestionsAsked:       s.ActualQuestionsAsked,
		TotalQuestions:             s.TotalQuestions,
		CompletedCategories:        cats,
		ClarificationRequests:      s.ClarificationRequests,
		IsWaitingForFinalQuestions: s.WaitingForFinalQuestions,
	}
}

// Initialize creates a fresh session for the application, or resumes the
// existing one when resume is true. A non-completed session already present
// with resume=false is a conflict; silently resetting it would discard a
// candidate's transcript.
func (s SessionService) Initialize(ctx domain.Context, applicationID string, resume bool) (SessionResult, error) {
	if applicationID == "" {
		return SessionResult{}, fmt.Errorf("%w: application id required", domain.ErrInvalidArgument)
	}
	release, err := s.Locker.Acquire(ctx, applicationID)
	if err != nil {
		return SessionResult{}, err
	}
	defer release()

	plan, err := s.Plans.Get(ctx, applicationID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("op=session.initialize: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return SessionResult{}, fmt.Errorf("op=session.initialize: %w", err)
	}

	existing, err := s.Sessions.Get(ctx, applicationID)
	switch {
	case err == nil:
		if !resume {
			return SessionResult{}, fmt.Errorf("op=session.initialize: session exists: %w", domain.ErrConflict)
		}
		last, lerr := s.Sessions.LastAITurn(ctx, applicationID)
		if lerr != nil {
			slog.Warn("resume without ai turn", slog.String("application_id", applicationID), slog.Any("error", lerr))
		}
		return SessionResult{State: ViewOf(existing), Reply: last.Content}, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		// fresh session below
	default:
		return SessionResult{}, fmt.Errorf("op=session.initialize: %w", err)
	}

	now := time.Now().UTC()
	state := domain.InterviewState{
		ApplicationID:       applicationID,
		Phase:               domain.PhaseIntroduction,
		TotalQuestions:      plan.QuotaSum(),
		CompletedCategories: []string{},
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	greeting := s.generate(func() (string, error) { return s.Gen.Greeting(ctx, plan) },
		"Hello, and welcome! I will be conducting your interview today. To get us started, please introduce yourself briefly.")
	turn := s.aiTurn(state, greeting)
	if err := s.Sessions.Create(ctx, state, []domain.ConversationTurn{turn}); err != nil {
		return SessionResult{}, fmt.Errorf("op=session.initialize: %w", err)
	}
	s.publish(ctx, domain.SessionEvent{Event: "session.started", ApplicationID: applicationID, Phase: state.Phase, OccurredAt: now})
	slog.Info("interview session initialized",
		slog.String("application_id", applicationID),
		slog.Int("total_questions", state.TotalQuestions),
		slog.String("difficulty", plan.DifficultyLevel))
	return SessionResult{State: ViewOf(state), Reply: greeting}, nil
}

// ProcessResponse appends the candidate reply, classifies it, advances the
// state machine, and returns the next AI utterance. Both turns and the state
// update persist in one transaction.
func (s SessionService) ProcessResponse(ctx domain.Context, applicationID, text string) (SessionResult, error) {
	if applicationID == "" {
		return SessionResult{}, fmt.Errorf("%w: application id required", domain.ErrInvalidArgument)
	}
	text = textx.SanitizeText(text)
	if strings.TrimSpace(text) == "" {
		return SessionResult{}, fmt.Errorf("%w: empty response", domain.ErrInvalidArgument)
	}
	release, err := s.Locker.Acquire(ctx, applicationID)
	if err != nil {
		return SessionResult{}, err
	}
	defer release()

	state, err := s.Sessions.Get(ctx, applicationID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("op=session.process: %w", err)
	}
	if state.Phase == domain.PhaseCompleted {
		return SessionResult{}, fmt.Errorf("op=session.process: session completed: %w", domain.ErrInvalidState)
	}
	plan, err := s.Plans.Get(ctx, applicationID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("op=session.process: %w", err)
	}

	// An opening reply is always substantive; phrase rules apply only once
	// questioning starts.
	var verdict domain.Classification
	if state.Phase != domain.PhaseIntroduction {
		verdict = s.Classifier.Classify(ctx, state.Phase, text)
	}
	userTurn := s.userTurn(state, text, verdict)

	var reply string
	var completedNow bool
	switch state.Phase {
	case domain.PhaseIntroduction:
		beginQuestioning(&state, plan)
		reply = s.questionText(ctx, plan, &state)
	case domain.PhaseQuestioning:
		if verdict.IsClarification {
			state.ClarificationRequests++
			reply = s.rephraseText(ctx, plan, state)
		} else {
			if advanceOnAnswer(&state, plan) {
				reply = s.generate(func() (string, error) { return s.Gen.FinalQuestionsInvite(ctx, plan) },
					"That covers everything I wanted to ask. Before we wrap up, do you have any questions for us?")
			} else {
				reply = s.questionText(ctx, plan, &state)
			}
		}
	case domain.PhaseFinalQuestions:
		state.Phase = domain.PhaseCompleted
		state.WaitingForFinalQuestions = false
		completedNow = true
		reply = s.generate(func() (string, error) { return s.Gen.Closing(ctx, plan) },
			"Thank you for your time today. The interview is now complete; the team will follow up with next steps soon.")
		if verdict.IsFinalQuestionsNo {
			reply = "Understood, no questions from your side. " + reply
		}
	default:
		return SessionResult{}, fmt.Errorf("op=session.process: phase %q: %w", state.Phase, domain.ErrInvalidState)
	}

	aiTurn := s.aiTurn(state, reply)
	if verdict.IsClarification {
		aiTurn.IsRepeat = true
	}
	if state.Phase == domain.PhaseQuestioning {
		if q, ok := authoredQuestion(plan, state.CurrentCategory, state.CurrentQuestionIndex); ok {
			aiTurn.QuestionID = q.ID
		}
	}
	state.Version++
	state.UpdatedAt = time.Now().UTC()
	if err := s.Sessions.Update(ctx, state, []domain.ConversationTurn{userTurn, aiTurn}); err != nil {
		return SessionResult{}, fmt.Errorf("op=session.process: %w", err)
	}
	if completedNow {
		s.publish(ctx, domain.SessionEvent{Event: "session.completed", ApplicationID: applicationID, Phase: state.Phase, QuestionsAsked: state.ActualQuestionsAsked, OccurredAt: state.UpdatedAt})
	}
	classification := "substantive"
	switch {
	case verdict.IsClarification:
		classification = "clarification"
	case verdict.IsFinalQuestionsNo:
		classification = "decline"
	}
	return SessionResult{State: ViewOf(state), Reply: reply, Classification: classification}, nil
}

// Complete forces the session into the completed phase. Calling it on an
// already-completed session is idempotent and does not duplicate the closing
// turn.
func (s SessionService) Complete(ctx domain.Context, applicationID string) (SessionResult, error) {
	if applicationID == "" {
		return SessionResult{}, fmt.Errorf("%w: application id required", domain.ErrInvalidArgument)
	}
	release, err := s.Locker.Acquire(ctx, applicationID)
	if err != nil {
		return SessionResult{}, err
	}
	defer release()

	state, err := s.Sessions.Get(ctx, applicationID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("op=session.complete: %w", err)
	}
	if state.Phase == domain.PhaseCompleted {
		last, lerr := s.Sessions.LastAITurn(ctx, applicationID)
		if lerr != nil {
			slog.Warn("completed session without ai turn", slog.String("application_id", applicationID), slog.Any("error", lerr))
		}
		return SessionResult{State: ViewOf(state), Reply: last.Content}, nil
	}
	plan, err := s.Plans.Get(ctx, applicationID)
	if err != nil {
		return SessionResult{}, fmt.Errorf("op=session.complete: %w", err)
	}
	state.Phase = domain.PhaseCompleted
	state.WaitingForFinalQuestions = false
	state.Version++
	state.UpdatedAt = time.Now().UTC()
	reply := s.generate(func() (string, error) { return s.Gen.Closing(ctx, plan) },
		"Thank you for your time today. The interview is now complete; the team will follow up with next steps soon.")
	if err := s.Sessions.Update(ctx, state, []domain.ConversationTurn{s.aiTurn(state, reply)}); err != nil {
		return SessionResult{}, fmt.Errorf("op=session.complete: %w", err)
	}
	s.publish(ctx, domain.SessionEvent{Event: "session.completed", ApplicationID: applicationID, Phase: state.Phase, QuestionsAsked: state.ActualQuestionsAsked, OccurredAt: state.UpdatedAt})
	return SessionResult{State: ViewOf(state), Reply: reply}, nil
}

// StateResult is the GetState envelope: state plus the ordered transcript.
type StateResult struct {
	State   InterviewStateView `json:"interview_state"`
	History []TurnView         `json:"conversation_history"`
}

// TurnView is the JSON projection of a conversation turn.
type TurnView struct {
	MessageID       string    `json:"message_id"`
	Type            string    `json:"type"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Phase           string    `json:"phase,omitempty"`
	QuestionIndex   int       `json:"question_index,omitempty"`
	QuestionID      string    `json:"question_id,omitempty"`
	CategoryType    string    `json:"category_type,omitempty"`
	IsRepeat        bool      `json:"is_repeat,omitempty"`
	IsClarification bool      `json:"is_clarification,omitempty"`
}

// GetState returns the current state and full transcript, read-only.
func (s SessionService) GetState(ctx domain.Context, applicationID string) (StateResult, error) {
	if applicationID == "" {
		return StateResult{}, fmt.Errorf("%w: application id required", domain.ErrInvalidArgument)
	}
	state, err := s.Sessions.Get(ctx, applicationID)
	if err != nil {
		return StateResult{}, fmt.Errorf("op=session.get_state: %w", err)
	}
	turns, err := s.Sessions.History(ctx, applicationID)
	if err != nil {
		return StateResult{}, fmt.Errorf("op=session.get_state: %w", err)
	}
	views := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		views = append(views, TurnView{
			MessageID:       t.MessageID,
			Type:            t.Type,
			Content:         t.Content,
			Timestamp:       t.CreatedAt,
			Phase:           string(t.Phase),
			QuestionIndex:   t.QuestionIndex,
			QuestionID:      t.QuestionID,
			CategoryType:    t.CategoryType,
			IsRepeat:        t.IsRepeat,
			IsClarification: t.IsClarification,
		})
	}
	return StateResult{State: ViewOf(state), History: views}, nil
}

// questionText resolves the text of the question the state currently points
// at: authored questions in manual mode, generated phrasing otherwise.
func (s SessionService) questionText(ctx domain.Context, plan domain.QuestionPlan, state *domain.InterviewState) string {
	if q, ok := authoredQuestion(plan, state.CurrentCategory, state.CurrentQuestionIndex); ok {
		return q.Text
	}
	return s.generate(func() (string, error) {
		return s.Gen.NextQuestion(ctx, plan, state.CurrentCategory, state.CurrentQuestionIndex)
	}, fmt.Sprintf("Let's continue with %s: please walk me through a relevant experience or approach.", state.CurrentCategory))
}

// rephraseText re-presents the current question after a clarification request.
func (s SessionService) rephraseText(ctx domain.Context, plan domain.QuestionPlan, state domain.InterviewState) string {
	original := ""
	if q, ok := authoredQuestion(plan, state.CurrentCategory, state.CurrentQuestionIndex); ok {
		original = q.Text
	}
	return s.generate(func() (string, error) {
		return s.Gen.Rephrase(ctx, plan, state.CurrentCategory, original)
	}, rephraseFallback(original))
}

func rephraseFallback(original string) string {
	if original == "" {
		return "Of course, let me put the question another way. Take your time answering."
	}
	return "Of course, let me repeat that: " + original
}

// generate calls the generator and falls back to the given template on error
// so a provider outage never stalls the interview.
func (s SessionService) generate(fn func() (string, error), fallback string) string {
	out, err := fn()
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			slog.Warn("question generation failed; using template", slog.Any("error", err))
		}
		return fallback
	}
	return out
}

func (s SessionService) publish(ctx domain.Context, ev domain.SessionEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishSessionEvent(ctx, ev); err != nil {
		slog.Error("session event publish failed",
			slog.String("application_id", ev.ApplicationID),
			slog.String("event", ev.Event),
			slog.Any("error", err))
	}
}

func (s SessionService) aiTurn(state domain.InterviewState, content string) domain.ConversationTurn {
	return domain.ConversationTurn{
		MessageID:     uuid.New().String(),
		ApplicationID: state.ApplicationID,
		Type:          domain.TurnAI,
		Content:       content,
		Phase:         state.Phase,
		CategoryType:  state.CurrentCategory,
		QuestionIndex: state.CurrentQuestionIndex,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s SessionService) userTurn(state domain.InterviewState, text string, verdict domain.Classification) domain.ConversationTurn {
	return domain.ConversationTurn{
		MessageID:       uuid.New().String(),
		ApplicationID:   state.ApplicationID,
		Type:            domain.TurnUser,
		Content:         text,
		Phase:           state.Phase,
		CategoryType:    state.CurrentCategory,
		QuestionIndex:   state.CurrentQuestionIndex,
		IsClarification: verdict.IsClarification,
		CreatedAt:       time.Now().UTC(),
	}
}
