package template_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-engine/internal/adapter/ai/template"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

func TestGenerator_Greeting_StatesQuestionCount(t *testing.T) {
	t.Parallel()
	g := template.New()
	plan := domain.QuestionPlan{
		CategoryConfigs: []domain.CategoryConfig{
			{Type: "behavioral", NumberOfQuestions: 2},
			{Type: "technical-coding", NumberOfQuestions: 1},
		},
	}
	got, err := g.Greeting(context.Background(), plan)
	require.NoError(t, err)
	assert.Contains(t, got, "3 questions")
}

func TestGenerator_NextQuestion_Deterministic(t *testing.T) {
	t.Parallel()
	g := template.New()
	plan := domain.QuestionPlan{QuestionMode: domain.QuestionModeAutomatic}

	a, err := g.NextQuestion(context.Background(), plan, "behavioral", 0)
	require.NoError(t, err)
	b, err := g.NextQuestion(context.Background(), plan, "behavioral", 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := g.NextQuestion(context.Background(), plan, "behavioral", 1)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerator_NextQuestion_ManualModeUsesAuthoredText(t *testing.T) {
	t.Parallel()
	g := template.New()
	plan := domain.QuestionPlan{
		QuestionMode: domain.QuestionModeManual,
		Questions: []domain.Question{
			{ID: "q-1", Category: "behavioral", Text: "Why engineering?"},
		},
	}
	got, err := g.NextQuestion(context.Background(), plan, "behavioral", 0)
	require.NoError(t, err)
	assert.Equal(t, "Why engineering?", got)
}

func TestGenerator_NextQuestion_ManualModeFallsBackPastAuthored(t *testing.T) {
	t.Parallel()
	g := template.New()
	plan := domain.QuestionPlan{
		QuestionMode: domain.QuestionModeManual,
		Questions: []domain.Question{
			{ID: "q-1", Category: "behavioral", Text: "Why engineering?"},
		},
	}
	got, err := g.NextQuestion(context.Background(), plan, "behavioral", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.NotEqual(t, "Why engineering?", got)
}

func TestGenerator_NextQuestion_UnknownCategoryUsesGenericBank(t *testing.T) {
	t.Parallel()
	g := template.New()
	got, err := g.NextQuestion(context.Background(), domain.QuestionPlan{}, "astrophysics", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestGenerator_Rephrase_IncludesOriginal(t *testing.T) {
	t.Parallel()
	g := template.New()
	got, err := g.Rephrase(context.Background(), domain.QuestionPlan{}, "behavioral", "Why engineering?")
	require.NoError(t, err)
	assert.Contains(t, got, "Why engineering?")
}

func TestGenerator_ClosingAndInvite(t *testing.T) {
	t.Parallel()
	g := template.New()

	invite, err := g.FinalQuestionsInvite(context.Background(), domain.QuestionPlan{})
	require.NoError(t, err)
	assert.Contains(t, invite, "questions for me")

	closing, err := g.Closing(context.Background(), domain.QuestionPlan{})
	require.NoError(t, err)
	assert.Contains(t, closing, "complete")
}
