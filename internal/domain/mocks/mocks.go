// Package mocks provides testify mocks for the domain ports.
// Regenerate with go generate ./internal/domain.
package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// MockSessionRepository is a mock for domain.SessionRepository.
type MockSessionRepository struct{ mock.Mock }

func (m *MockSessionRepository) Create(ctx domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	args := m.Called(ctx, s, turns)
	return args.Error(0)
}

func (m *MockSessionRepository) Get(ctx domain.Context, applicationID string) (domain.InterviewState, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).(domain.InterviewState), args.Error(1)
}

func (m *MockSessionRepository) Update(ctx domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	args := m.Called(ctx, s, turns)
	return args.Error(0)
}

func (m *MockSessionRepository) History(ctx domain.Context, applicationID string) ([]domain.ConversationTurn, error) {
	args := m.Called(ctx, applicationID)
	var turns []domain.ConversationTurn
	if v := args.Get(0); v != nil {
		turns = v.([]domain.ConversationTurn)
	}
	return turns, args.Error(1)
}

func (m *MockSessionRepository) LastAITurn(ctx domain.Context, applicationID string) (domain.ConversationTurn, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).(domain.ConversationTurn), args.Error(1)
}

// MockPlanRepository is a mock for domain.PlanRepository.
type MockPlanRepository struct{ mock.Mock }

func (m *MockPlanRepository) Get(ctx domain.Context, applicationID string) (domain.QuestionPlan, error) {
	args := m.Called(ctx, applicationID)
	return args.Get(0).(domain.QuestionPlan), args.Error(1)
}

// MockSnapshotRepository is a mock for domain.SnapshotRepository.
type MockSnapshotRepository struct{ mock.Mock }

func (m *MockSnapshotRepository) Create(ctx domain.Context, s domain.Snapshot) (string, error) {
	args := m.Called(ctx, s)
	return args.String(0), args.Error(1)
}

func (m *MockSnapshotRepository) CountByKind(ctx domain.Context, applicationID, kind string) (int64, error) {
	args := m.Called(ctx, applicationID, kind)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessionLocker is a mock for domain.SessionLocker.
type MockSessionLocker struct{ mock.Mock }

func (m *MockSessionLocker) Acquire(ctx domain.Context, applicationID string) (func(), error) {
	args := m.Called(ctx, applicationID)
	var release func()
	if v := args.Get(0); v != nil {
		release = v.(func())
	}
	return release, args.Error(1)
}

// MockEventPublisher is a mock for domain.EventPublisher.
type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishSessionEvent(ctx domain.Context, ev domain.SessionEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// MockQuestionGenerator is a mock for domain.QuestionGenerator.
type MockQuestionGenerator struct{ mock.Mock }

func (m *MockQuestionGenerator) Greeting(ctx domain.Context, plan domain.QuestionPlan) (string, error) {
	args := m.Called(ctx, plan)
	return args.String(0), args.Error(1)
}

func (m *MockQuestionGenerator) NextQuestion(ctx domain.Context, plan domain.QuestionPlan, category string, index int) (string, error) {
	args := m.Called(ctx, plan, category, index)
	return args.String(0), args.Error(1)
}

func (m *MockQuestionGenerator) Rephrase(ctx domain.Context, plan domain.QuestionPlan, category, original string) (string, error) {
	args := m.Called(ctx, plan, category, original)
	return args.String(0), args.Error(1)
}

func (m *MockQuestionGenerator) FinalQuestionsInvite(ctx domain.Context, plan domain.QuestionPlan) (string, error) {
	args := m.Called(ctx, plan)
	return args.String(0), args.Error(1)
}

func (m *MockQuestionGenerator) Closing(ctx domain.Context, plan domain.QuestionPlan) (string, error) {
	args := m.Called(ctx, plan)
	return args.String(0), args.Error(1)
}

// MockClassifierDelegate is a mock for domain.ClassifierDelegate.
type MockClassifierDelegate struct{ mock.Mock }

func (m *MockClassifierDelegate) ClassifyReply(ctx domain.Context, text string) (domain.Classification, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(domain.Classification), args.Error(1)
}
