package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-interview-engine/internal/domain"
)

// SnapshotRepo stores monitoring captures as bytea rows.
type SnapshotRepo struct{ Pool PgxPool }

// NewSnapshotRepo constructs a SnapshotRepo with the given pool.
func NewSnapshotRepo(p PgxPool) *SnapshotRepo { return &SnapshotRepo{Pool: p} }

// Create inserts a capture and returns its id.
func (r *SnapshotRepo) Create(ctx domain.Context, s domain.Snapshot) (string, error) {
	tracer := otel.Tracer("repo.snapshots")
	ctx, span := tracer.Start(ctx, "snapshots.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "monitoring_snapshots"),
		attribute.Int64("snapshot.size", s.Size),
	)
	q := `INSERT INTO monitoring_snapshots (id, application_id, kind, mime, data, size, created_at)
 VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, q, s.ID, s.ApplicationID, s.Kind, s.MIME, s.Data, s.Size, s.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("op=snapshot.create: %w: %v", domain.ErrPersistence, err)
	}
	return s.ID, nil
}

// CountByKind returns the number of captures stored for an application and kind.
func (r *SnapshotRepo) CountByKind(ctx domain.Context, applicationID, kind string) (int64, error) {
	tracer := otel.Tracer("repo.snapshots")
	ctx, span := tracer.Start(ctx, "snapshots.CountByKind")
	defer span.End()
	var n int64
	q := `SELECT COUNT(*) FROM monitoring_snapshots WHERE application_id=$1 AND kind=$2`
	if err := r.Pool.QueryRow(ctx, q, applicationID, kind).Scan(&n); err != nil {
		return 0, fmt.Errorf("op=snapshot.count: %w: %v", domain.ErrPersistence, err)
	}
	return n, nil
}
