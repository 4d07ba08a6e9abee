// Package template implements a deterministic question generator. It is the
// default and the fallback when the LLM provider is unavailable, so interview
// flow never depends on an external call.
package template

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// Generator phrases interviewer turns from fixed templates. Authored
// questions from manual-mode plans are used verbatim when present.
type Generator struct{}

// New constructs a template Generator.
func New() *Generator { return &Generator{} }

var categoryPrompts = map[string][]string{
	"behavioral": {
		"Tell me about a time you had to resolve a disagreement within your team. What was your role?",
		"Describe a situation where you received critical feedback. How did you respond?",
		"Tell me about a project that did not go as planned. What did you do?",
		"Give me an example of a time you had to influence someone without authority.",
		"Describe a time you had to deliver under a tight deadline. How did you prioritize?",
	},
	"technical-coding": {
		"Walk me through how you would design a function that deduplicates a large stream of records.",
		"How would you debug a service whose latency doubled after a deploy?",
		"Describe the trade-offs between optimistic and pessimistic locking in a concurrent system.",
		"How would you structure error handling in a long-running data pipeline?",
		"Explain how you would paginate a large result set efficiently.",
	},
	"system-design": {
		"How would you design a rate limiter shared across multiple service instances?",
		"Sketch the architecture for a notification system that must not deliver duplicates.",
		"How would you evolve a monolith toward services without a big-bang rewrite?",
		"Design a file upload pipeline that validates and stores user media safely.",
		"How would you design idempotent processing for an at-least-once message queue?",
	},
	"experience": {
		"Which project are you most proud of, and what was your specific contribution?",
		"What is the most complex production incident you have handled?",
		"Tell me about a technology you introduced to a team. How did you drive adoption?",
		"What part of your current role would you most like to grow beyond?",
		"Describe the team structure you work best in and why.",
	},
}

var genericPrompts = []string{
	"Tell me about a challenge you faced in this area and how you approached it.",
	"What do you consider the most important skill in this area, and how have you applied it?",
	"Describe a recent piece of work in this area you found difficult. What made it hard?",
	"How do you keep your knowledge in this area current? Give a concrete example.",
	"Walk me through a decision you made in this area that you would make differently today.",
}

// Greeting introduces the interview and states its length.
func (g *Generator) Greeting(_ domain.Context, plan domain.QuestionPlan) (string, error) {
	n := plan.QuotaSum()
	noun := "questions"
	if n == 1 {
		noun = "question"
	}
	return fmt.Sprintf(
		"Welcome, and thank you for taking the time to interview with us today. "+
			"I will ask you %d %s across a few areas. Take your time with each answer, "+
			"and feel free to ask me to repeat or clarify anything. Shall we begin?",
		n, noun), nil
}

// NextQuestion returns the question for a category and zero-based index.
// Manual-mode plans use their authored text; otherwise the category bank
// cycles deterministically so the same (category, index) always yields the
// same question.
func (g *Generator) NextQuestion(_ domain.Context, plan domain.QuestionPlan, category string, index int) (string, error) {
	if plan.QuestionMode == domain.QuestionModeManual {
		if qs := plan.QuestionsFor(category); index >= 0 && index < len(qs) {
			return qs[index].Text, nil
		}
	}
	bank := categoryPrompts[normalizeCategory(category)]
	if len(bank) == 0 {
		bank = genericPrompts
	}
	if index < 0 {
		index = 0
	}
	return bank[index%len(bank)], nil
}

// Rephrase restates the original question in simpler framing.
func (g *Generator) Rephrase(_ domain.Context, _ domain.QuestionPlan, _ string, original string) (string, error) {
	original = strings.TrimSpace(original)
	if original == "" {
		return "Let me repeat the question for you.", nil
	}
	return "Of course, let me put it another way: " + original, nil
}

// FinalQuestionsInvite closes the questioning phase and opens the floor.
func (g *Generator) FinalQuestionsInvite(_ domain.Context, _ domain.QuestionPlan) (string, error) {
	return "That covers everything I wanted to ask. Before we wrap up, " +
		"do you have any questions for me about the role or the team?", nil
}

// Closing thanks the candidate and ends the interview.
func (g *Generator) Closing(_ domain.Context, _ domain.QuestionPlan) (string, error) {
	return "Thank you for your time today. The interview is now complete, " +
		"and the team will follow up with next steps soon. Best of luck!", nil
}

func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, "_", "-")
	c = strings.ReplaceAll(c, " ", "-")
	return c
}
