package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

//go:generate mockery --name=PgxPool --with-expecter --filename=pgx_pool_mock.go

// PgxPool is a minimal subset of pgxpool used by the repos for easy testing.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// SessionRepo persists interview state and conversation turns.
// State writes are guarded by an optimistic version column; the turn log is
// append-only and ordered by a bigserial seq.
type SessionRepo struct{ Pool PgxPool }

// NewSessionRepo constructs a SessionRepo with the given pool.
func NewSessionRepo(p PgxPool) *SessionRepo { return &SessionRepo{Pool: p} }

const stateColumns = `application_id, phase, current_category, current_question_index,
 actual_questions_asked, total_questions, completed_categories,
 clarification_requests, waiting_for_final_questions, version, created_at, updated_at`

// Create inserts a fresh session state together with its opening turns.
// A unique-violation on application_id maps to ErrConflict.
func (r *SessionRepo) Create(ctx domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "interview_sessions"),
	)
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=session.create: %w: %v", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `INSERT INTO interview_sessions (` + stateColumns + `)
 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = tx.Exec(ctx, q,
		s.ApplicationID, s.Phase, s.CurrentCategory, s.CurrentQuestionIndex,
		s.ActualQuestionsAsked, s.TotalQuestions, s.CompletedCategories,
		s.ClarificationRequests, s.WaitingForFinalQuestions, s.Version, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("op=session.create: %w", domain.ErrConflict)
		}
		return fmt.Errorf("op=session.create: %w: %v", domain.ErrPersistence, err)
	}
	if err := appendTurnsTx(ctx, tx, turns); err != nil {
		return fmt.Errorf("op=session.create: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=session.create: %w: %v", domain.ErrPersistence, err)
	}
	return nil
}

// Get loads the state for an application.
func (r *SessionRepo) Get(ctx domain.Context, applicationID string) (domain.InterviewState, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Get")
	defer span.End()
	q := `SELECT ` + stateColumns + ` FROM interview_sessions WHERE application_id=$1`
	row := r.Pool.QueryRow(ctx, q, applicationID)
	s, err := scanState(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.InterviewState{}, fmt.Errorf("op=session.get: %w", domain.ErrSessionNotFound)
		}
		return domain.InterviewState{}, fmt.Errorf("op=session.get: %w: %v", domain.ErrPersistence, err)
	}
	return s, nil
}

// Update writes the state guarded by its previous version and appends the
// supplied turns in the same transaction. A stale version is ErrConflict.
func (r *SessionRepo) Update(ctx domain.Context, s domain.InterviewState, turns []domain.ConversationTurn) error {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.Update")
	defer span.End()
	span.SetAttributes(attribute.Int64("session.version", s.Version))
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("op=session.update: %w: %v", domain.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `UPDATE interview_sessions SET
 phase=$2, current_category=$3, current_question_index=$4,
 actual_questions_asked=$5, total_questions=$6, completed_categories=$7,
 clarification_requests=$8, waiting_for_final_questions=$9, version=$10, updated_at=$11
 WHERE application_id=$1 AND version=$12`
	tag, err := tx.Exec(ctx, q,
		s.ApplicationID, s.Phase, s.CurrentCategory, s.CurrentQuestionIndex,
		s.ActualQuestionsAsked, s.TotalQuestions, s.CompletedCategories,
		s.ClarificationRequests, s.WaitingForFinalQuestions, s.Version, s.UpdatedAt,
		s.Version-1)
	if err != nil {
		return fmt.Errorf("op=session.update: %w: %v", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("op=session.update: stale version %d: %w", s.Version-1, domain.ErrConflict)
	}
	if err := appendTurnsTx(ctx, tx, turns); err != nil {
		return fmt.Errorf("op=session.update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("op=session.update: %w: %v", domain.ErrPersistence, err)
	}
	return nil
}

const turnColumns = `message_id, application_id, seq, type, content, phase,
 question_index, question_id, category_type, is_repeat, is_clarification, created_at`

// History returns all turns for an application in insertion order.
func (r *SessionRepo) History(ctx domain.Context, applicationID string) ([]domain.ConversationTurn, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.History")
	defer span.End()
	q := `SELECT ` + turnColumns + ` FROM conversation_turns WHERE application_id=$1 ORDER BY seq ASC`
	rows, err := r.Pool.Query(ctx, q, applicationID)
	if err != nil {
		return nil, fmt.Errorf("op=session.history: %w: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()
	var out []domain.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("op=session.history: %w: %v", domain.ErrPersistence, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=session.history: %w: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

// LastAITurn returns the most recent AI turn, used to re-present the current
// prompt on resume and on idempotent completion.
func (r *SessionRepo) LastAITurn(ctx domain.Context, applicationID string) (domain.ConversationTurn, error) {
	tracer := otel.Tracer("repo.sessions")
	ctx, span := tracer.Start(ctx, "sessions.LastAITurn")
	defer span.End()
	q := `SELECT ` + turnColumns + ` FROM conversation_turns
 WHERE application_id=$1 AND type='ai' ORDER BY seq DESC LIMIT 1`
	row := r.Pool.QueryRow(ctx, q, applicationID)
	t, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConversationTurn{}, fmt.Errorf("op=session.last_ai_turn: %w", domain.ErrSessionNotFound)
		}
		return domain.ConversationTurn{}, fmt.Errorf("op=session.last_ai_turn: %w: %v", domain.ErrPersistence, err)
	}
	return t, nil
}

func appendTurnsTx(ctx context.Context, tx pgx.Tx, turns []domain.ConversationTurn) error {
	q := `INSERT INTO conversation_turns
 (message_id, application_id, type, content, phase, question_index, question_id,
  category_type, is_repeat, is_clarification, created_at)
 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	for _, t := range turns {
		if _, err := tx.Exec(ctx, q,
			t.MessageID, t.ApplicationID, t.Type, t.Content, t.Phase, t.QuestionIndex,
			t.QuestionID, t.CategoryType, t.IsRepeat, t.IsClarification, t.CreatedAt); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanState(row rowScanner) (domain.InterviewState, error) {
	var s domain.InterviewState
	err := row.Scan(&s.ApplicationID, &s.Phase, &s.CurrentCategory, &s.CurrentQuestionIndex,
		&s.ActualQuestionsAsked, &s.TotalQuestions, &s.CompletedCategories,
		&s.ClarificationRequests, &s.WaitingForFinalQuestions, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanTurn(row rowScanner) (domain.ConversationTurn, error) {
	var t domain.ConversationTurn
	err := row.Scan(&t.MessageID, &t.ApplicationID, &t.Seq, &t.Type, &t.Content, &t.Phase,
		&t.QuestionIndex, &t.QuestionID, &t.CategoryType, &t.IsRepeat, &t.IsClarification, &t.CreatedAt)
	return t, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
