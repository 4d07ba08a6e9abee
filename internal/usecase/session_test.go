package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
	"github.com/fairyhunter13/ai-interview-engine/internal/usecase"
)

// memSessionRepo is an in-memory SessionRepository used to walk full
// interview flows without a database.
type memSessionRepo struct {
	mu     sync.Mutex
	states map[string]domain.InterviewState
	turns  map[string][]domain.ConversationTurn
	seq    int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{
		states: map[string]domain.InterviewState{},
		turns:  map[string][]domain.ConversationTurn{},
	}
}

func (r *memSessionRepo) Create(_ domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.states[s.ApplicationID]; ok {
		return domain.ErrConflict
	}
	r.states[s.ApplicationID] = s
	r.append(s.ApplicationID, turns)
	return nil
}

func (r *memSessionRepo) Get(_ domain.Context, id string) (domain.InterviewState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[id]
	if !ok {
		return domain.InterviewState{}, fmt.Errorf("op=mem.get: %w", domain.ErrSessionNotFound)
	}
	return s, nil
}

func (r *memSessionRepo) Update(_ domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.states[s.ApplicationID]
	if !ok {
		return fmt.Errorf("op=mem.update: %w", domain.ErrSessionNotFound)
	}
	if cur.Version != s.Version-1 {
		return fmt.Errorf("op=mem.update: %w", domain.ErrConflict)
	}
	r.states[s.ApplicationID] = s
	r.append(s.ApplicationID, turns)
	return nil
}

func (r *memSessionRepo) History(_ domain.Context, id string) ([]domain.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.ConversationTurn(nil), r.turns[id]...)
	return out, nil
}

func (r *memSessionRepo) LastAITurn(_ domain.Context, id string) (domain.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.turns[id]
	for i := len(ts) - 1; i >= 0; i-- {
		if ts[i].Type == domain.TurnAI {
			return ts[i], nil
		}
	}
	return domain.ConversationTurn{}, fmt.Errorf("op=mem.last_ai: %w", domain.ErrSessionNotFound)
}

func (r *memSessionRepo) append(id string, turns []domain.ConversationTurn) {
	for _, t := range turns {
		r.seq++
		t.Seq = r.seq
		r.turns[id] = append(r.turns[id], t)
	}
}

type memPlanRepo struct{ plans map[string]domain.QuestionPlan }

func (r memPlanRepo) Get(_ domain.Context, id string) (domain.QuestionPlan, error) {
	p, ok := r.plans[id]
	if !ok {
		return domain.QuestionPlan{}, fmt.Errorf("op=mem.plan: %w", domain.ErrSessionNotFound)
	}
	return p, nil
}

type noopLocker struct{}

func (noopLocker) Acquire(domain.Context, string) (func(), error) { return func() {}, nil }

type busyLocker struct{}

func (busyLocker) Acquire(domain.Context, string) (func(), error) {
	return nil, fmt.Errorf("op=lock.acquire: %w", domain.ErrConflict)
}

type memPublisher struct {
	mu     sync.Mutex
	events []domain.SessionEvent
}

func (p *memPublisher) PublishSessionEvent(_ domain.Context, ev domain.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

// stubGen is a deterministic QuestionGenerator for flow tests.
type stubGen struct{}

func (stubGen) Greeting(domain.Context, domain.QuestionPlan) (string, error) {
	return "Welcome! Please introduce yourself.", nil
}
func (stubGen) NextQuestion(_ domain.Context, _ domain.QuestionPlan, category string, index int) (string, error) {
	return fmt.Sprintf("[%s #%d]", category, index), nil
}
func (stubGen) Rephrase(_ domain.Context, _ domain.QuestionPlan, category, _ string) (string, error) {
	return "Let me rephrase the " + category + " question.", nil
}
func (stubGen) FinalQuestionsInvite(domain.Context, domain.QuestionPlan) (string, error) {
	return "Do you have any questions for us?", nil
}
func (stubGen) Closing(domain.Context, domain.QuestionPlan) (string, error) {
	return "Thank you, the interview is complete.", nil
}

func newTestService(plans map[string]domain.QuestionPlan) (usecase.SessionService, *memSessionRepo, *memPublisher) {
	repo := newMemSessionRepo()
	pub := &memPublisher{}
	svc := usecase.NewSessionService(
		repo,
		memPlanRepo{plans: plans},
		noopLocker{},
		usecase.NewClassifier(config.DefaultClassifierRules(), nil),
		stubGen{},
		pub,
	)
	return svc, repo, pub
}

func scenarioPlan() domain.QuestionPlan {
	return domain.QuestionPlan{
		ApplicationID: "app-1",
		CategoryConfigs: []domain.CategoryConfig{
			{Type: "behavioral", NumberOfQuestions: 2},
			{Type: "technical-coding", NumberOfQuestions: 1},
		},
		TotalQuestions: 3,
		QuestionMode:   domain.QuestionModeAutomatic,
	}
}

func TestSession_Initialize_Fresh(t *testing.T) {
	t.Parallel()
	svc, _, pub := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})

	res, err := svc.Initialize(context.Background(), "app-1", false)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseIntroduction), res.State.CurrentPhase)
	assert.Equal(t, 3, res.State.TotalQuestions)
	assert.Equal(t, 0, res.State.ActualQuestionsAsked)
	assert.Equal(t, "Welcome! Please introduce yourself.", res.Reply)

	require.Len(t, pub.events, 1)
	assert.Equal(t, "session.started", pub.events[0].Event)
}

func TestSession_Initialize_ExistingConflicts(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.Initialize(context.Background(), "app-1", false)
	require.NoError(t, err)

	_, err = svc.Initialize(context.Background(), "app-1", false)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSession_Initialize_Resume(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	first, err := svc.Initialize(context.Background(), "app-1", false)
	require.NoError(t, err)

	resumed, err := svc.Initialize(context.Background(), "app-1", true)
	require.NoError(t, err)
	assert.Equal(t, first.State, resumed.State)
	assert.Equal(t, first.Reply, resumed.Reply)
}

func TestSession_Initialize_ZeroQuotaPlan(t *testing.T) {
	t.Parallel()
	plan := domain.QuestionPlan{
		ApplicationID:   "app-1",
		CategoryConfigs: []domain.CategoryConfig{{Type: "behavioral", NumberOfQuestions: 0}},
	}
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": plan})
	_, err := svc.Initialize(context.Background(), "app-1", false)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestSession_ProcessResponse_UnknownSession(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.ProcessResponse(context.Background(), "never-initialized", "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSession_ProcessResponse_EmptyText(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.ProcessResponse(context.Background(), "app-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSession_LockBusy(t *testing.T) {
	t.Parallel()
	repo := newMemSessionRepo()
	svc := usecase.NewSessionService(
		repo, memPlanRepo{plans: map[string]domain.QuestionPlan{"app-1": scenarioPlan()}},
		busyLocker{}, usecase.NewClassifier(config.DefaultClassifierRules(), nil), stubGen{}, nil,
	)
	_, err := svc.ProcessResponse(context.Background(), "app-1", "hello")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// Scenario: full interview with two categories {behavioral:2, technical-coding:1}.
func TestSession_FullFlow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, pub := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})

	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)

	// Opening response moves introduction -> questioning.
	res, err := svc.ProcessResponse(ctx, "app-1", "Hi, I'm Dana, a backend engineer.")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseQuestioning), res.State.CurrentPhase)
	assert.Equal(t, "behavioral", res.State.CurrentCategory)
	assert.Equal(t, 0, res.State.ActualQuestionsAsked)
	assert.Equal(t, "[behavioral #0]", res.Reply)

	// Three substantive answers complete both categories.
	res, err = svc.ProcessResponse(ctx, "app-1", "I resolved a team conflict by pairing.")
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.ActualQuestionsAsked)
	assert.Equal(t, "[behavioral #1]", res.Reply)

	res, err = svc.ProcessResponse(ctx, "app-1", "I once missed a deadline and owned it.")
	require.NoError(t, err)
	assert.Equal(t, 2, res.State.ActualQuestionsAsked)
	assert.Equal(t, []string{"behavioral"}, res.State.CompletedCategories)
	assert.Equal(t, "technical-coding", res.State.CurrentCategory)
	assert.Equal(t, "[technical-coding #0]", res.Reply)

	res, err = svc.ProcessResponse(ctx, "app-1", "I'd use a two-pointer approach.")
	require.NoError(t, err)
	assert.Equal(t, 3, res.State.ActualQuestionsAsked)
	assert.Equal(t, []string{"behavioral", "technical-coding"}, res.State.CompletedCategories)
	assert.Equal(t, string(domain.PhaseFinalQuestions), res.State.CurrentPhase)
	assert.True(t, res.State.IsWaitingForFinalQuestions)
	assert.Equal(t, "Do you have any questions for us?", res.Reply)

	// Final reply completes the session without incrementing the counter.
	res, err = svc.ProcessResponse(ctx, "app-1", "No questions, thank you!")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseCompleted), res.State.CurrentPhase)
	assert.Equal(t, 3, res.State.ActualQuestionsAsked)
	assert.False(t, res.State.IsWaitingForFinalQuestions)

	// Further responses are invalid.
	_, err = svc.ProcessResponse(ctx, "app-1", "one more thing")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	// session.started then session.completed.
	require.Len(t, pub.events, 2)
	assert.Equal(t, "session.completed", pub.events[1].Event)
	assert.Equal(t, 3, pub.events[1].QuestionsAsked)

	// Transcript is strictly ordered and alternates ai/user.
	turns, err := repo.History(ctx, "app-1")
	require.NoError(t, err)
	require.Len(t, turns, 11) // greeting + 5 user/ai pairs
	assert.True(t, sort.SliceIsSorted(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq }))
	for i, turn := range turns {
		if i%2 == 0 {
			assert.Equal(t, domain.TurnAI, turn.Type, "turn %d", i)
		} else {
			assert.Equal(t, domain.TurnUser, turn.Type, "turn %d", i)
		}
	}
}

// Scenario: clarification does not count and re-presents the question.
func TestSession_ClarificationDoesNotCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})

	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)
	_, err = svc.ProcessResponse(ctx, "app-1", "Hi there, I'm ready.")
	require.NoError(t, err)

	res, err := svc.ProcessResponse(ctx, "app-1", "can you repeat that?")
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.ClarificationRequests)
	assert.Equal(t, 0, res.State.ActualQuestionsAsked)
	assert.Equal(t, string(domain.PhaseQuestioning), res.State.CurrentPhase)
	assert.Equal(t, "behavioral", res.State.CurrentCategory)
	assert.Equal(t, "Let me rephrase the behavioral question.", res.Reply)

	turns, err := repo.History(ctx, "app-1")
	require.NoError(t, err)
	last := turns[len(turns)-1]
	assert.Equal(t, domain.TurnAI, last.Type)
	assert.True(t, last.IsRepeat)
	user := turns[len(turns)-2]
	assert.True(t, user.IsClarification)

	// A substantive answer afterwards still counts exactly once.
	res, err = svc.ProcessResponse(ctx, "app-1", "My biggest conflict was over code review tone.")
	require.NoError(t, err)
	assert.Equal(t, 1, res.State.ActualQuestionsAsked)
	assert.Equal(t, 1, res.State.ClarificationRequests)
}

// Declining the final-questions invite must read differently from asking one,
// and the reply label must distinguish the two.
func TestSession_FinalQuestions_DeclineAcknowledged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	onePlan := func(id string) domain.QuestionPlan {
		return domain.QuestionPlan{
			ApplicationID: id,
			CategoryConfigs: []domain.CategoryConfig{
				{Type: "behavioral", NumberOfQuestions: 1},
			},
			TotalQuestions: 1,
			QuestionMode:   domain.QuestionModeAutomatic,
		}
	}
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{
		"app-1": onePlan("app-1"),
		"app-2": onePlan("app-2"),
	})
	drive := func(id, finalReply string) usecase.SessionResult {
		_, err := svc.Initialize(ctx, id, false)
		require.NoError(t, err)
		_, err = svc.ProcessResponse(ctx, id, "Hi, I'm ready to start.")
		require.NoError(t, err)
		_, err = svc.ProcessResponse(ctx, id, "Here is my full answer to the question.")
		require.NoError(t, err)
		res, err := svc.ProcessResponse(ctx, id, finalReply)
		require.NoError(t, err)
		return res
	}

	declined := drive("app-1", "No questions, thanks!")
	asked := drive("app-2", "What is the on-call rotation like?")

	assert.Equal(t, string(domain.PhaseCompleted), declined.State.CurrentPhase)
	assert.Equal(t, string(domain.PhaseCompleted), asked.State.CurrentPhase)
	assert.NotEqual(t, asked.Reply, declined.Reply)
	assert.Contains(t, declined.Reply, "no questions from your side")
	assert.Equal(t, "decline", declined.Classification)
	assert.Equal(t, "substantive", asked.Classification)
}

// An opening reply that happens to contain a clarification phrase is still the
// candidate's introduction, not a repeat request.
func TestSession_IntroductionReplyIsAlwaysSubstantive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)

	res, err := svc.ProcessResponse(ctx, "app-1", "Sorry, can you repeat that?")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseQuestioning), res.State.CurrentPhase)
	assert.Equal(t, 0, res.State.ClarificationRequests)
	assert.Equal(t, "substantive", res.Classification)

	turns, err := repo.History(ctx, "app-1")
	require.NoError(t, err)
	user := turns[len(turns)-2]
	require.Equal(t, domain.TurnUser, user.Type)
	assert.False(t, user.IsClarification)
	ai := turns[len(turns)-1]
	assert.False(t, ai.IsRepeat)
}

func TestSession_ManualModeUsesAuthoredQuestions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	plan := domain.QuestionPlan{
		ApplicationID: "app-1",
		CategoryConfigs: []domain.CategoryConfig{
			{Type: "behavioral", NumberOfQuestions: 2},
		},
		TotalQuestions: 2,
		QuestionMode:   domain.QuestionModeManual,
		Questions: []domain.Question{
			{ID: "q1", Category: "behavioral", Text: "Tell me about a conflict."},
			{ID: "q2", Category: "behavioral", Text: "Describe a failure."},
		},
	}
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": plan})
	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)

	res, err := svc.ProcessResponse(ctx, "app-1", "Hello!")
	require.NoError(t, err)
	assert.Equal(t, "Tell me about a conflict.", res.Reply)

	res, err = svc.ProcessResponse(ctx, "app-1", "We disagreed on schema design.")
	require.NoError(t, err)
	assert.Equal(t, "Describe a failure.", res.Reply)
}

func TestSession_Complete_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, repo, pub := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)

	first, err := svc.Complete(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseCompleted), first.State.CurrentPhase)

	turnsAfterFirst, err := repo.History(ctx, "app-1")
	require.NoError(t, err)

	second, err := svc.Complete(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.Reply, second.Reply)

	turnsAfterSecond, err := repo.History(ctx, "app-1")
	require.NoError(t, err)
	assert.Len(t, turnsAfterSecond, len(turnsAfterFirst), "closing turn must not duplicate")

	// Only one session.completed event.
	completed := 0
	for _, ev := range pub.events {
		if ev.Event == "session.completed" {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestSession_Complete_UnknownSession(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.Complete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSession_GetState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, _ := newTestService(map[string]domain.QuestionPlan{"app-1": scenarioPlan()})
	_, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)
	_, err = svc.ProcessResponse(ctx, "app-1", "Hello, I'm ready.")
	require.NoError(t, err)

	res, err := svc.GetState(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PhaseQuestioning), res.State.CurrentPhase)
	require.Len(t, res.History, 3)
	assert.Equal(t, domain.TurnAI, res.History[0].Type)
	assert.Equal(t, domain.TurnUser, res.History[1].Type)
	assert.Equal(t, domain.TurnAI, res.History[2].Type)

	_, err = svc.GetState(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSession_GeneratorFailureFallsBackToTemplate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newMemSessionRepo()
	svc := usecase.NewSessionService(
		repo, memPlanRepo{plans: map[string]domain.QuestionPlan{"app-1": scenarioPlan()}},
		noopLocker{}, usecase.NewClassifier(config.DefaultClassifierRules(), nil), failingGen{}, nil,
	)
	res, err := svc.Initialize(ctx, "app-1", false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)

	res, err = svc.ProcessResponse(ctx, "app-1", "Hello!")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	assert.Equal(t, string(domain.PhaseQuestioning), res.State.CurrentPhase)
}

type failingGen struct{}

func (failingGen) Greeting(domain.Context, domain.QuestionPlan) (string, error) {
	return "", domain.ErrInternal
}
func (failingGen) NextQuestion(domain.Context, domain.QuestionPlan, string, int) (string, error) {
	return "", domain.ErrInternal
}
func (failingGen) Rephrase(domain.Context, domain.QuestionPlan, string, string) (string, error) {
	return "", domain.ErrInternal
}
func (failingGen) FinalQuestionsInvite(domain.Context, domain.QuestionPlan) (string, error) {
	return "", domain.ErrInternal
}
func (failingGen) Closing(domain.Context, domain.QuestionPlan) (string, error) {
	return "", domain.ErrInternal
}
