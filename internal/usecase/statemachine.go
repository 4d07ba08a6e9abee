package usecase

import (
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// The state machine helpers below are pure: they mutate only the supplied
// state value and never touch persistence, so every transition is testable
// without mocks.

// quotaFor returns the question quota for a category, zero when unknown.
func quotaFor(plan domain.QuestionPlan, category string) int {
	for _, c := range plan.CategoryConfigs {
		if c.Type == category {
			return c.NumberOfQuestions
		}
	}
	return 0
}

// firstPendingCategory returns the first category (in plan order) with a
// positive quota that is not yet completed.
func firstPendingCategory(plan domain.QuestionPlan, state domain.InterviewState) (string, bool) {
	for _, c := range plan.CategoryConfigs {
		if c.NumberOfQuestions <= 0 {
			continue
		}
		if !state.CategoryCompleted(c.Type) {
			return c.Type, true
		}
	}
	return "", false
}

// beginQuestioning moves a fresh session out of the introduction phase and
// positions it at the first question of the first pending category.
func beginQuestioning(state *domain.InterviewState, plan domain.QuestionPlan) {
	state.Phase = domain.PhaseQuestioning
	cat, _ := firstPendingCategory(plan, *state)
	state.CurrentCategory = cat
	state.CurrentQuestionIndex = 0
}

// advanceOnAnswer applies one substantive answer: increments the counted
// question total, completes the current category when its quota is met, and
// advances to the next pending category or the final-questions phase.
// It reports true when questioning is finished.
func advanceOnAnswer(state *domain.InterviewState, plan domain.QuestionPlan) bool {
	if state.ActualQuestionsAsked < state.TotalQuestions {
		state.ActualQuestionsAsked++
	}
	answered := state.CurrentQuestionIndex + 1
	if answered < quotaFor(plan, state.CurrentCategory) {
		state.CurrentQuestionIndex++
		return false
	}
	if !state.CategoryCompleted(state.CurrentCategory) {
		state.CompletedCategories = append(state.CompletedCategories, state.CurrentCategory)
	}
	next, ok := firstPendingCategory(plan, *state)
	if !ok {
		state.Phase = domain.PhaseFinalQuestions
		state.WaitingForFinalQuestions = true
		state.CurrentCategory = ""
		state.CurrentQuestionIndex = 0
		return true
	}
	state.CurrentCategory = next
	state.CurrentQuestionIndex = 0
	return false
}

// authoredQuestion returns the pre-authored question for the given position
// when the plan runs in manual mode and has one, otherwise ok=false and the
// caller generates the question text.
func authoredQuestion(plan domain.QuestionPlan, category string, index int) (domain.Question, bool) {
	if plan.QuestionMode != domain.QuestionModeManual {
		return domain.Question{}, false
	}
	qs := plan.QuestionsFor(category)
	if index < 0 || index >= len(qs) {
		return domain.Question{}, false
	}
	return qs[index], true
}
