package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassifierRules holds the phrase tables driving the response classifier.
// Matching is case-insensitive substring; the tables must stay deterministic
// so the state machine is unit-testable without any AI call.
type ClassifierRules struct {
	ClarificationPhrases []string `yaml:"clarification_phrases"`
	DeclinePhrases       []string `yaml:"decline_phrases"`
}

// DefaultClassifierRules returns the built-in phrase tables.
func DefaultClassifierRules() ClassifierRules {
	return ClassifierRules{
		ClarificationPhrases: []string{
			"repeat",
			"say that again",
			"come again",
			"clarify",
			"didn't understand",
			"did not understand",
			"don't understand",
			"do not understand",
			"rephrase",
			"what do you mean",
			"pardon",
			"didn't catch",
			"did not catch",
			"didn't get that",
			"can you explain the question",
		},
		DeclinePhrases: []string{
			"no questions",
			"no, thank",
			"nothing else",
			"nothing from me",
			"i'm good",
			"im good",
			"that's all",
			"thats all",
			"all good",
		},
	}
}

// LoadClassifierRules loads phrase tables from a YAML file, or the built-in
// defaults when path is empty.
func LoadClassifierRules(path string) (ClassifierRules, error) {
	if path == "" {
		return DefaultClassifierRules(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ClassifierRules{}, fmt.Errorf("op=config.LoadClassifierRules: %w", err)
	}
	var rules ClassifierRules
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return ClassifierRules{}, fmt.Errorf("op=config.LoadClassifierRules: parse %s: %w", path, err)
	}
	if len(rules.ClarificationPhrases) == 0 {
		rules.ClarificationPhrases = DefaultClassifierRules().ClarificationPhrases
	}
	if len(rules.DeclinePhrases) == 0 {
		rules.DeclinePhrases = DefaultClassifierRules().DeclinePhrases
	}
	return rules, nil
}
