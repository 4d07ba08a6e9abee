package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// PlanRepo reads per-application question plans. Plans are written by the
// application intake flow and treated as read-only here.
type PlanRepo struct{ Pool PgxPool }

// NewPlanRepo constructs a PlanRepo with the given pool.
func NewPlanRepo(p PgxPool) *PlanRepo { return &PlanRepo{Pool: p} }

// planDoc is the JSONB shape stored in applications.interview_plan.
type planDoc struct {
	CategoryConfigs []struct {
		Type              string `json:"type"`
		NumberOfQuestions int    `json:"numberOfQuestions"`
	} `json:"categoryConfigs"`
	TotalQuestions int `json:"totalQuestions"`
	Questions      []struct {
		ID       string `json:"id"`
		Category string `json:"category"`
		Text     string `json:"text"`
	} `json:"questions"`
	DifficultyLevel string `json:"difficultyLevel"`
	QuestionMode    string `json:"questionMode"`
}

// Get loads the plan for an application. A missing row or missing plan
// document maps to ErrSessionNotFound so the facade reports uniformly.
func (r *PlanRepo) Get(ctx domain.Context, applicationID string) (domain.QuestionPlan, error) {
	tracer := otel.Tracer("repo.plans")
	ctx, span := tracer.Start(ctx, "plans.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "applications"),
	)
	var raw []byte
	q := `SELECT interview_plan FROM applications WHERE id=$1`
	err := r.Pool.QueryRow(ctx, q, applicationID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.QuestionPlan{}, fmt.Errorf("op=plan.get: %w", domain.ErrSessionNotFound)
		}
		return domain.QuestionPlan{}, fmt.Errorf("op=plan.get: %w: %v", domain.ErrPersistence, err)
	}
	if len(raw) == 0 {
		return domain.QuestionPlan{}, fmt.Errorf("op=plan.get: empty plan: %w", domain.ErrInvalidConfiguration)
	}
	var doc planDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.QuestionPlan{}, fmt.Errorf("op=plan.get: malformed plan: %w", domain.ErrInvalidConfiguration)
	}
	plan := domain.QuestionPlan{
		ApplicationID:   applicationID,
		TotalQuestions:  doc.TotalQuestions,
		DifficultyLevel: doc.DifficultyLevel,
		QuestionMode:    doc.QuestionMode,
	}
	if plan.QuestionMode == "" {
		plan.QuestionMode = domain.QuestionModeAutomatic
	}
	for _, c := range doc.CategoryConfigs {
		plan.CategoryConfigs = append(plan.CategoryConfigs, domain.CategoryConfig{
			Type:              c.Type,
			NumberOfQuestions: c.NumberOfQuestions,
		})
	}
	for _, q := range doc.Questions {
		plan.Questions = append(plan.Questions, domain.Question{
			ID:       q.ID,
			Category: q.Category,
			Text:     q.Text,
		})
	}
	return plan, nil
}
