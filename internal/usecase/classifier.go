// Package usecase contains application business logic services.
package usecase

import (
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interview-engine/internal/config"
	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// Classifier decides whether a candidate reply is a substantive answer, a
// clarification/repeat request, or (in the final-questions phase) a decline.
// The phrase tables are the source of truth; the optional delegate is only
// consulted for question-shaped replies no rule matched, and its failure
// falls back to treating the reply as substantive.
type Classifier struct {
	Rules    config.ClassifierRules
	Delegate domain.ClassifierDelegate
}

// NewClassifier constructs a Classifier with the given rules and optional delegate.
func NewClassifier(rules config.ClassifierRules, delegate domain.ClassifierDelegate) Classifier {
	return Classifier{Rules: rules, Delegate: delegate}
}

// Classify evaluates text against the current phase. In final_questions a
// reply is never a clarification; decline phrases are detected so the closing
// message can acknowledge "no questions" explicitly.
func (c Classifier) Classify(ctx domain.Context, phase domain.Phase, text string) domain.Classification {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if phase == domain.PhaseFinalQuestions {
		for _, p := range c.Rules.DeclinePhrases {
			if strings.Contains(lowered, p) {
				return domain.Classification{IsFinalQuestionsNo: true, MatchedPhrase: p}
			}
		}
		return domain.Classification{}
	}
	for _, p := range c.Rules.ClarificationPhrases {
		if strings.Contains(lowered, p) {
			return domain.Classification{IsClarification: true, MatchedPhrase: p}
		}
	}
	// Question-shaped replies with no phrase match are ambiguous; ask the
	// delegate when one is wired. Delegate failure never blocks the session.
	if c.Delegate != nil && strings.HasSuffix(lowered, "?") {
		res, err := c.Delegate.ClassifyReply(ctx, text)
		if err != nil {
			slog.Warn("classifier delegate failed; treating reply as substantive",
				slog.Any("error", err))
			return domain.Classification{}
		}
		return res
	}
	return domain.Classification{}
}
