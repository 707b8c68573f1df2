package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/falldetect/internal/config"
	"github.com/your-org/falldetect/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS fall_events (
	id                UUID PRIMARY KEY,
	camera_id         TEXT NOT NULL,
	track_id          INTEGER NOT NULL,
	detected_at       TIMESTAMPTZ NOT NULL,
	frame_time        TEXT NOT NULL DEFAULT '',
	bbox              INTEGER[] NOT NULL,
	velocity          DOUBLE PRECISION NOT NULL,
	max_velocity      DOUBLE PRECISION NOT NULL,
	angle_to_vertical DOUBLE PRECISION NOT NULL,
	shoulder_drop     DOUBLE PRECISION NOT NULL,
	snapshot_key      TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS fall_events_camera_detected_idx ON fall_events (camera_id, detected_at DESC);
`

const fallColumns = `id, camera_id, track_id, detected_at, frame_time, bbox, velocity, max_velocity, angle_to_vertical, shoulder_drop, snapshot_key, created_at`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the fall_events table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateFallEvent stores ev. Storing the same event id twice is a no-op,
// so redelivered messages are harmless.
func (s *PostgresStore) CreateFallEvent(ctx context.Context, ev *models.FallEvent) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO fall_events (id, camera_id, track_id, detected_at, frame_time, bbox, velocity, max_velocity, angle_to_vertical, shoulder_drop, snapshot_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET snapshot_key = EXCLUDED.snapshot_key
		 RETURNING created_at`,
		ev.ID, ev.CameraID, ev.TrackID, ev.DetectedAt, ev.FrameTime, ev.BBox[:],
		ev.Velocity, ev.MaxVelocity, ev.AngleToVertical, ev.ShoulderDrop, ev.SnapshotKey,
	).Scan(&ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("create fall event: %w", err)
	}
	return nil
}

// QueryFallEvents returns one page of a camera's falls, newest first, and
// the total number of matches.
func (s *PostgresStore) QueryFallEvents(ctx context.Context, cameraID string, from, to *time.Time, limit, offset int) ([]models.FallEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE camera_id = $1"
	args := []interface{}{cameraID}
	argIdx := 2

	if from != nil {
		baseWhere += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *from)
		argIdx++
	}
	if to != nil {
		baseWhere += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *to)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM fall_events "+baseWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count fall events: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM fall_events %s ORDER BY detected_at DESC LIMIT $%d OFFSET $%d`,
		fallColumns, baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query fall events: %w", err)
	}
	defer rows.Close()

	events := []models.FallEvent{}
	for rows.Next() {
		ev, err := scanFallEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate fall events: %w", err)
	}
	return events, total, nil
}

// GetFallEvent returns a single fall event by ID, or nil if there is none.
func (s *PostgresStore) GetFallEvent(ctx context.Context, id uuid.UUID) (*models.FallEvent, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+fallColumns+` FROM fall_events WHERE id = $1`, id)
	ev, err := scanFallEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func scanFallEvent(row pgx.Row) (*models.FallEvent, error) {
	var ev models.FallEvent
	var bbox []int32
	if err := row.Scan(&ev.ID, &ev.CameraID, &ev.TrackID, &ev.DetectedAt, &ev.FrameTime, &bbox,
		&ev.Velocity, &ev.MaxVelocity, &ev.AngleToVertical, &ev.ShoulderDrop, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan fall event: %w", err)
	}
	for i := 0; i < len(bbox) && i < len(ev.BBox); i++ {
		ev.BBox[i] = int(bbox[i])
	}
	return &ev, nil
}
